package main

import (
	"encoding/json"
	"fmt"

	"github.com/fieldpath/pathedit/internal/config"
	"github.com/fieldpath/pathedit/internal/geo"
	"github.com/fieldpath/pathedit/internal/trajectory"
	"github.com/fieldpath/pathedit/pkg/core"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func newRequestCommand() *cobra.Command {
	var start, end, points string
	var pretty bool

	cmd := &cobra.Command{
		Use:     "request",
		Short:   "Send one trajectory request and print the polyline",
		Example: `  pathedit request --start 1,1,0 --end 6,1,1.57 --points '[[3,2],[4,2.5]]'`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configDir)
			if err != nil {
				return err
			}

			var t core.Trajectory
			if t.Start, err = geo.PoseFromString(start); err != nil {
				return fmt.Errorf("--start: %w", err)
			}
			if t.End, err = geo.PoseFromString(end); err != nil {
				return fmt.Errorf("--end: %w", err)
			}
			if t.Points, err = geo.ParsePoints(points); err != nil {
				return fmt.Errorf("--points: %w", err)
			}

			client, err := trajectory.Connect(cmd.Context(), cfg.Solver.Address,
				trajectory.WithAttempts(1),
				trajectory.WithRequestTimeout(cfg.Solver.RequestTimeout),
				trajectory.WithLogger(zerolog.Nop()),
			)
			if err != nil {
				return err
			}
			defer client.Close()

			poly, err := client.Generate(cmd.Context(), t)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			if pretty {
				enc.SetIndent("", "  ")
			}
			return enc.Encode(poly)
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "start pose as x,y[,heading]")
	cmd.Flags().StringVar(&end, "end", "", "end pose as x,y[,heading]")
	cmd.Flags().StringVar(&points, "points", "", "interior points as JSON [[x,y],...]")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "indent the output")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}
