package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/liamcoop/dewater/dewater"
	"github.com/liamcoop/dewater/internal/logger"
)

func gridCmd() *cobra.Command {
	var outPath string
	var workers int
	var maxCells int

	cmd := &cobra.Command{
		Use:   "grid",
		Short: "Compute the water-table grid over the request's bounding box",
		Long: "Compute the water-table grid and write it as a GeoJSON FeatureCollection.\n" +
			"A summary is printed to stdout when --out is given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := loadRequest()
			if err != nil {
				return err
			}

			opts := dewater.DefaultOptions()
			if workers > 0 {
				opts.Workers = workers
			}
			opts.MaxCells = maxCells

			start := time.Now()
			res, err := dewater.Simulate(cmd.Context(), req, opts)
			if err != nil {
				return err
			}
			logger.Info("water table computed", "cells", len(res.Cells), "duration", time.Since(start).String())
			for _, w := range res.Warnings {
				if w.Code == dewater.WarnOverdrawn {
					logger.WarnOverdraw(w.Cells)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w.Message)
			}

			fc, err := dewater.NewFeatureCollection(res.Cells)
			if err != nil {
				return err
			}

			if outPath == "" {
				return writeJSON(cmd.OutOrStdout(), fc)
			}

			f, err := os.Create(outPath)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", outPath, err)
			}
			if err := writeJSON(f, fc); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("failed to write %s: %w", outPath, err)
			}
			return writeJSON(cmd.OutOrStdout(), res.Summary)
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "", "write GeoJSON here instead of stdout")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "evaluation goroutines (default GOMAXPROCS)")
	cmd.Flags().IntVar(&maxCells, "max-cells", dewater.DefaultOptions().MaxCells, "reject grids larger than this (0 for no limit)")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
