package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/blacktop/acestep/internal/config"
)

var cfgSet bool

var configCmd = &cobra.Command{
	Use:   "config [--set <key> <value>]",
	Short: "Show or change the persisted defaults",
	Long: `Without arguments, print the effective configuration after layering the
persisted document over the built-in defaults. With --set, persist one key to
the config file; this is the only command that ever writes it.

Settable keys: ` + strings.Join(config.SettableKeys, ", "),
	Args: cobra.MaximumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		if cfgSet {
			if len(args) != 2 {
				logger.Error("--set needs a key and a value", "keys", strings.Join(config.SettableKeys, ", "))
				os.Exit(1)
			}
			// Reload the document without the env fallbacks so a set of
			// one key never persists values that only came from the
			// environment.
			doc, err := config.LoadDocument(cfgPath)
			if err != nil {
				logger.Error("Cannot read config file", "path", cfgPath, "error", err)
				os.Exit(1)
			}
			if err := config.Set(doc, args[0], args[1]); err != nil {
				logger.Error("Cannot apply setting", "error", err)
				os.Exit(1)
			}
			if err := config.Save(cfgPath, doc); err != nil {
				logger.Error("Cannot save config", "path", cfgPath, "error", err)
				os.Exit(1)
			}
			logger.Info("Config updated", "key", args[0], "path", cfgPath)
			return
		}
		if len(args) > 0 {
			logger.Error("Positional arguments only make sense with --set")
			os.Exit(1)
		}

		params := config.Resolve(cfg, collectOverrides(cmd))
		fmt.Printf("%-17s %s\n", "config file", cfgPath)
		fmt.Printf("%-17s %s\n", "api_url", params.APIURL)
		fmt.Printf("%-17s %s\n", "api_key", maskKey(params.APIKey))
		fmt.Printf("%-17s %t\n", "thinking", params.Thinking)
		fmt.Printf("%-17s %t\n", "use_format", params.UseFormat)
		fmt.Printf("%-17s %t\n", "use_cot_caption", params.UseCotCaption)
		fmt.Printf("%-17s %t\n", "use_cot_language", params.UseCotLanguage)
		fmt.Printf("%-17s %d\n", "batch_size", params.BatchSize)
		fmt.Printf("%-17s %s\n", "audio_format", params.AudioFormat)
		fmt.Printf("%-17s %s\n", "vocal_language", params.VocalLanguage)
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.Flags().BoolVar(&cfgSet, "set", false, "Persist <key> <value> to the config file")
}

// maskKey keeps secrets out of terminal scrollback; the tail is enough to
// tell keys apart.
func maskKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	if len(key) <= 4 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}
