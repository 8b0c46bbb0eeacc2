/*
Copyright © 2024-2025 blacktop

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/blacktop/acestep/internal/api"
	"github.com/blacktop/acestep/internal/config"
)

var (
	logger *log.Logger
	// persistent flags
	verbose   bool
	apiURL    string
	apiKey    string
	cfgPath   string
	outputDir string

	// the persisted defaults document, loaded once per invocation
	cfg *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "acestep",
	Short: "ACE-Step music generation client",
	Long: `Drive an ACE-Step music-generation service from the command line:
submit a generation, watch it until it finishes, and save the audio plus a
JSON record of what was generated under the output folder.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			log.SetLevel(log.DebugLevel)
			logger.SetLevel(log.DebugLevel)
		}
		// .env is optional; most runs will not have one.
		if err := godotenv.Load(); err == nil {
			log.Debug("loaded environment from .env")
		}
		if cfgPath == "" {
			cfgPath = os.Getenv("ACESTEP_CONFIG")
		}
		if cfgPath == "" {
			cfgPath = config.DefaultPath()
		}
		loaded, err := config.Load(cfgPath)
		if err != nil {
			logger.Error("Cannot read config file", "path", cfgPath, "error", err)
			os.Exit(1)
		}
		cfg = loaded
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	// Override the default error level style.
	styles := log.DefaultStyles()
	styles.Levels[log.ErrorLevel] = lipgloss.NewStyle().
		SetString("ERROR!!").
		Padding(0, 1, 0, 1).
		Background(lipgloss.Color("204")).
		Foreground(lipgloss.Color("0"))
	// Add a custom style for key `err`
	styles.Keys["err"] = lipgloss.NewStyle().Foreground(lipgloss.Color("204"))
	styles.Values["err"] = lipgloss.NewStyle().Bold(true)
	logger = log.New(os.Stderr)
	logger.SetStyles(styles)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "V", false, "Verbose output")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "Service base URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "API key (overrides config)")
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Config file (default ~/.acestep/config.json)")
	rootCmd.PersistentFlags().StringVarP(&outputDir, "output", "o", "", "Output folder (default ~/acestep_output)")
	rootCmd.MarkPersistentFlagFilename("config", "json")
	rootCmd.MarkPersistentFlagDirname("output")
}

// commandContext wires interrupt handling into the command's context so a
// ctrl+c stops polling without corrupting anything on disk.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

// newClient builds the HTTP client for the resolved parameters.
func newClient(params config.Params) *api.Client {
	return api.New(params.APIURL, params.APIKey)
}

// outputRoot picks where artifacts land: the --output flag, otherwise the
// default folder in the user's home.
func outputRoot() string {
	if outputDir != "" {
		return outputDir
	}
	return config.OutputRoot()
}
