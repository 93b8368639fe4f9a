package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"tinct/internal/classify"
	"tinct/internal/files"
)

func newClassifyCommand(ctx *commandContext) *cobra.Command {
	var inputDir string
	var recursive bool

	cmd := &cobra.Command{
		Use:   "classify [images...]",
		Short: "Label images as line art or colored without processing them",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			inputs, err := collectInputs(args, inputDir, recursive)
			if err != nil {
				return newExitError(exitFailure, err.Error())
			}
			if len(inputs) == 0 {
				return newExitError(exitFailure, "no input images given; pass files or --input-dir")
			}
			for _, path := range inputs {
				if err := files.ValidateImageFile(path); err != nil {
					return newExitError(exitFailure, err.Error())
				}
			}

			classifier := classify.New(logger)
			results, failures := classifier.ClassifyBatch(inputs)

			rep := newReport("Input", "Label", "Confidence", "Metrics")
			for _, path := range inputs {
				if err, failed := failures[path]; failed {
					rep.addRow(filepath.Base(path), "error", "", err.Error())
					continue
				}
				result := results[path]
				rep.addRow(
					filepath.Base(path),
					result.Label,
					fmt.Sprintf("%.0f%%", result.Confidence*100),
					fmt.Sprintf("sat %.2f, colors %d, edges %.2f",
						result.Metrics.Saturation,
						result.Metrics.ColorCount,
						result.Metrics.EdgeDensity),
				)
			}

			fmt.Fprintln(cmd.OutOrStdout(), rep.render())

			if len(failures) == len(inputs) {
				return newExitError(exitFailure, "no image could be classified")
			}
			if len(failures) > 0 {
				return newExitError(exitPartial, "")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&inputDir, "input-dir", "i", "", "Directory to scan for images")
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "Descend into subdirectories of --input-dir")

	return cmd
}
