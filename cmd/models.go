package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/blacktop/acestep/internal/config"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models the service can generate with",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		params := config.Resolve(cfg, collectOverrides(cmd))
		ctx, cancel := commandContext(cmd)
		defer cancel()

		models, err := newClient(params).Models(ctx)
		if err != nil {
			logger.Error("Listing models failed", "error", err)
			os.Exit(1)
		}
		for _, model := range models {
			fmt.Println(model)
		}
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}
