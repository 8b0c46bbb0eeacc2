package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/blacktop/acestep/internal/config"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the service is up",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		params := config.Resolve(cfg, collectOverrides(cmd))
		ctx, cancel := commandContext(cmd)
		defer cancel()

		healthy, err := newClient(params).Health(ctx)
		if err != nil {
			logger.Error("Health check failed", "url", params.APIURL, "error", err)
			os.Exit(1)
		}
		if !healthy {
			logger.Error("Service is not healthy", "url", params.APIURL)
			os.Exit(1)
		}
		fmt.Println("ok")
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
