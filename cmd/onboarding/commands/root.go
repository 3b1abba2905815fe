package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/emojirades/onboarding/internal/config"
	"github.com/emojirades/onboarding/internal/printer"
)

var (
	configPath string
	noColor    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "onboarding",
	Short: "Emojirades onboarding service",
	Long: `Onboards Slack workspaces to Emojirades.

The serve command runs the OAuth endpoints that install the bot into a
workspace and assign it to a shard. The remaining commands inspect the
shards, assignments and operator alerts the service maintains.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			color.NoColor = true
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		// If no subcommand is specified, show help
		return cmd.Help()
	},
	// Unknown flags cause an error
	FParseErrWhitelist: cobra.FParseErrWhitelist{},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	// Formatted errors are printed by the printer package
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "onboarding.yml", "Path to the configuration file")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
}

func newPrinter(cmd *cobra.Command) *printer.Printer {
	return printer.New(cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// loadConfig reads --config, printing a formatted error on failure.
func loadConfig(p *printer.Printer) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, p.ErrorWithContext(
			"invalid configuration",
			err.Error(),
			map[string]string{"Config": configPath},
			[]string{"Pass the configuration file explicitly:\n  onboarding --config /path/to/onboarding.yml <command>"},
		)
	}
	return cfg, nil
}
