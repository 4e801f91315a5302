package main

import (
	"os"

	"github.com/fieldpath/pathedit/internal/config"
	"github.com/fieldpath/pathedit/internal/logging"
	"github.com/fieldpath/pathedit/internal/solver"
	"github.com/spf13/cobra"
)

func newSolverCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "solver",
		Short: "Serve the reference trajectory service",
		Long: `Serves straight-segment trajectories over the editor's line protocol. It is a
stand-in for a real solver during development.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configDir)
			if err != nil {
				return err
			}

			lm, err := logging.Setup(logging.Options{Level: cfg.LogLevel, Console: os.Stderr})
			if err != nil {
				return err
			}
			defer lm.Close()

			srv := solver.New(cfg.Reference.Samples, lm.Logger())
			if err := srv.Listen(cfg.Reference.Listen); err != nil {
				return err
			}
			return srv.Serve(cmd.Context())
		},
	}

	cmd.Flags().String("listen", "", "override reference.listen")
	cmd.Flags().Int("samples", 0, "override reference.samples")
	bindLocalFlag(cmd, "reference.listen", "listen")
	bindLocalFlag(cmd, "reference.samples", "samples")
	return cmd
}
