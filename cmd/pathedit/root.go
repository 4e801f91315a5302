package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const appName = "pathedit"

// configDir is where pathedit.cfg.json is looked up.
var configDir string

// Execute runs the root command
func Execute(ctx context.Context) error {
	return newRootCommand().ExecuteContext(ctx)
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   appName,
		Short: "Interactive robot path editor",
		Long: `pathedit edits robot routines on a field map. Waypoints are dragged with
the mouse; every change is sent to a trajectory service and the returned path
is drawn over the field.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configDir, "config-dir", "c", ".", "directory holding pathedit.cfg.json")
	rootCmd.PersistentFlags().String("log-level", "", "override logLevel")
	rootCmd.PersistentFlags().String("solver", "", "override solver.address")
	bindFlag(rootCmd, "logLevel", "log-level")
	bindFlag(rootCmd, "solver.address", "solver")

	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newSolverCommand())
	rootCmd.AddCommand(newRequestCommand())
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

// bindFlag makes a persistent flag override a config key when it is set.
func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", flag, err))
	}
}

// bindLocalFlag is bindFlag for a command's own flags.
func bindLocalFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", flag, err))
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (commit: %s, built: %s)\n", appName, Version, Commit, BuildDate)
		},
	}
}
