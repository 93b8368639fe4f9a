package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"tinct/internal/memory"
)

func newEstimateCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "estimate WIDTHxHEIGHT",
		Short:       "Estimate the memory needed to colorize an image of the given size",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			width, height, err := parseDimensions(args[0])
			if err != nil {
				return newExitError(exitFailure, err.Error())
			}

			estimate := memory.Estimate(width, height)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Estimated footprint for %dx%d: %s\n",
				width, height, humanize.IBytes(uint64(estimate)))

			gate := memory.NewGate(nil, nil)
			if usage := gate.Usage(); usage > 0 {
				fmt.Fprintf(out, "Current memory usage: %.0f%%\n", usage*100)
			}
			return nil
		},
	}
}

func parseDimensions(value string) (int, int, error) {
	parts := strings.SplitN(strings.ToLower(strings.TrimSpace(value)), "x", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("dimensions must look like 1024x1536, got %q", value)
	}
	width, err := strconv.Atoi(parts[0])
	if err != nil || width <= 0 {
		return 0, 0, fmt.Errorf("invalid width %q", parts[0])
	}
	height, err := strconv.Atoi(parts[1])
	if err != nil || height <= 0 {
		return 0, 0, fmt.Errorf("invalid height %q", parts[1])
	}
	return width, height, nil
}
