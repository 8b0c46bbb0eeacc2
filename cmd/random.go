package cmd

import (
	"github.com/spf13/cobra"

	"github.com/blacktop/acestep/internal/gen"
)

var randomCmd = &cobra.Command{
	Use:   "random",
	Short: "Generate a completely random song",
	Long: `Submit a generation with no textual input at all; the service invents the
caption and lyrics. Generation parameters (batch, duration, format, ...) still
apply.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		runGeneration(cmd, gen.Random{})
	},
}

func init() {
	rootCmd.AddCommand(randomCmd)
	addGenerationFlags(randomCmd)
}
