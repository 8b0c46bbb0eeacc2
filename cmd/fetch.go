package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/blacktop/acestep/internal/api"
	"github.com/blacktop/acestep/internal/config"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <task-id>",
	Short: "Download the artifacts of a finished task",
	Long: `Retrieve the audio and record of a task that already succeeded, for when a
generate run timed out or was interrupted before saving anything.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		taskID := args[0]
		params := config.Resolve(cfg, collectOverrides(cmd))
		ctx, cancel := commandContext(cmd)
		defer cancel()

		client := newClient(params)
		states, err := client.QueryStatus(ctx, []string{taskID})
		if err != nil {
			logger.Error("Status query failed", "task", taskID, "error", err)
			os.Exit(1)
		}
		st, ok := states[taskID]
		if !ok {
			logger.Error("Service does not know this task", "task", taskID)
			os.Exit(1)
		}
		switch st.Status {
		case api.StatusSuccess:
		case api.StatusFailed:
			logger.Error("Task failed; nothing to fetch", "task", taskID, "reason", st.Result)
			os.Exit(1)
		default:
			logger.Warn("Task is still processing; try again later", "task", taskID)
			os.Exit(1)
		}
		saveArtifacts(ctx, cancel, client, nil, params, taskID, st.Result)
	},
}

func init() {
	rootCmd.AddCommand(fetchCmd)
	fetchCmd.Flags().StringVarP(&genFormat, "format", "f", config.DefaultAudioFormat, "Audio format of the saved files")
	fetchCmd.Flags().BoolVar(&genNoProgress, "no-progress", false, "Disable the progress spinner")
}
