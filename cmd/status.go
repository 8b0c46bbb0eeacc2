package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/blacktop/acestep/internal/api"
	"github.com/blacktop/acestep/internal/config"
)

var statusCmd = &cobra.Command{
	Use:   "status <task-id>...",
	Short: "Query the state of submitted tasks",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		params := config.Resolve(cfg, collectOverrides(cmd))
		ctx, cancel := commandContext(cmd)
		defer cancel()

		states, err := newClient(params).QueryStatus(ctx, args)
		if err != nil {
			logger.Error("Status query failed", "error", err)
			os.Exit(1)
		}
		for _, id := range args {
			st, ok := states[id]
			if !ok {
				fmt.Printf("%s\tunknown\n", id)
				continue
			}
			if st.Status == api.StatusFailed && st.Result != "" {
				fmt.Printf("%s\t%s\t%s\n", id, st.Status, st.Result)
				continue
			}
			fmt.Printf("%s\t%s\n", id, st.Status)
		}
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
