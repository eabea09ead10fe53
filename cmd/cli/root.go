package cli

import (
	"fmt"
	"os"

	"github.com/flowbaker/weave/internal/config"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "weave",
		Short: "Weave media workflow editor",
		Long: `Weave runs the backend of a node-based media workflow editor: editing sessions,
node runs through an asynchronous job runner, and workflow storage.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, err := cmd.Flags().GetBool("debug")
			if err != nil {
				return err
			}

			if debug {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}

			return nil
		},
	}

	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("config", "", "Path to a config file (default: ./weave.yaml or $HOME/.weave/weave.yaml)")

	rootCmd.AddCommand(NewServeCommand())
	rootCmd.AddCommand(NewRunnerCommand())
	rootCmd.AddCommand(NewValidateCommand())
	rootCmd.AddCommand(NewKeysCommand())
	rootCmd.AddCommand(NewVersionCommand())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	return config.Load(path)
}
