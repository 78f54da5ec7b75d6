package cli

import (
	"github.com/spf13/cobra"

	"github.com/harun/metatool/internal/config"
	"github.com/harun/metatool/internal/logger"
)

const version = "0.1.0"

var (
	cfgFile  string
	logLevel string

	loadedConfig *config.Config
	activeLogger *logger.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "metatool",
	Short: "Metatool - cached tool dispatch with a sandboxed code mode",
	Long: `Metatool exposes a catalog of tools to an LLM orchestrator without
upfront schema cost. It discovers tools lazily, memoizes idempotent tool
results under a TTL, and executes orchestrator-written code in a
restricted sandbox whose only outside channel is the tool proxy.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.NewLoader(cfgFile).Load()
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.Log.Level = logLevel
		}
		loadedConfig = cfg

		activeLogger, err = logger.New(logger.Config{
			Level:   cfg.Log.Level,
			File:    cfg.Log.File,
			Console: true,
			Pretty:  cfg.Log.Pretty,
		})
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if activeLogger != nil {
			_ = activeLogger.Close()
		}
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.metatool/metatool.json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s" .Version}}
`)
}

// GetRootCmd returns the root command for testing
func GetRootCmd() *cobra.Command {
	return rootCmd
}
