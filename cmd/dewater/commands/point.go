package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/liamcoop/dewater/dewater"
)

func pointCmd() *cobra.Command {
	var x, y float64

	cmd := &cobra.Command{
		Use:   "point",
		Short: "Evaluate the water table at one location",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("x") || !cmd.Flags().Changed("y") {
				return fmt.Errorf("--x and --y are required")
			}

			req, err := loadRequest()
			if err != nil {
				return err
			}

			alloc, err := dewater.AllocatorFor(req.AllocationExpression)
			if err != nil {
				return err
			}
			ev, err := dewater.NewEvaluator(req.Aquifer, req.Wells, alloc)
			if err != nil {
				return err
			}

			s := ev.Evaluate(x, y)
			out := map[string]any{
				"x":            x,
				"y":            y,
				"elevation":    s.Elevation,
				"clampedWells": s.Clamped,
				"overdrawn":    s.Overdrawn,
			}
			if req.TargetElevation != nil {
				out["targetMet"] = s.Elevation <= *req.TargetElevation
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}

	cmd.Flags().Float64Var(&x, "x", 0, "x coordinate")
	cmd.Flags().Float64Var(&y, "y", 0, "y coordinate")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "dewater %s\n", Version)
		},
	}
}
