package colorize

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"

	"tinct/internal/logging"
	"tinct/internal/services"
	"tinct/internal/settings"
)

// Pipeline runs a single image through load, line extraction,
// reference preparation, backend invocation, and output writing. Each
// stage attributes its own failures so batch reporting can say where
// an item died.
type Pipeline struct {
	colorizer Colorizer
	logger    *slog.Logger
}

// NewPipeline wires a Pipeline to a backend.
func NewPipeline(colorizer Colorizer, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pipeline{colorizer: colorizer, logger: logger}
}

// Process colorizes inputPath into outputPath using cfg. The returned
// error names the failing stage.
func (p *Pipeline) Process(ctx context.Context, inputPath, outputPath string, cfg settings.Settings) error {
	input, err := imaging.Open(inputPath, imaging.AutoOrientation(true))
	if err != nil {
		return services.Wrap(services.ErrValidation, "pipeline", "loading input", inputPath, err)
	}

	line, err := extractLine(input, cfg.Style)
	if err != nil {
		return services.Wrap(services.ErrExternal, "pipeline", "extracting line structure", inputPath, err)
	}

	references, err := loadReferences(cfg.ReferenceImages)
	if err != nil {
		return services.Wrap(services.ErrValidation, "pipeline", "preparing references", inputPath, err)
	}

	result, err := p.colorizer.Colorize(ctx, Request{
		Line:           line,
		References:     references,
		Style:          cfg.Style,
		Seed:           cfg.Seed,
		InferenceSteps: cfg.InferenceSteps,
		TopK:           cfg.TopK,
	})
	if err != nil {
		return services.Wrap(nil, "pipeline", "invoking transform", inputPath, err)
	}

	if err := writeOutput(result, outputPath); err != nil {
		return services.Wrap(services.ErrExternal, "pipeline", "writing output", outputPath, err)
	}

	p.logger.Info("colorized image",
		logging.String("input", inputPath),
		logging.String("output", outputPath),
		logging.String("style", cfg.Style))
	return nil
}

// ClearCache forwards to the backend.
func (p *Pipeline) ClearCache() error {
	return p.colorizer.ClearCache()
}

// extractLine reduces the input to the line structure the backend
// expects. Plain line style gets a straight grayscale conversion; the
// shadow style keeps midtone shading via a gamma lift.
func extractLine(img image.Image, style string) (image.Image, error) {
	gray := imaging.Grayscale(img)
	switch style {
	case settings.StyleLine:
		return gray, nil
	case settings.StyleLineShadow:
		return imaging.AdjustGamma(gray, 1.3), nil
	default:
		return nil, fmt.Errorf("unknown style %q", style)
	}
}

func loadReferences(paths []string) ([]image.Image, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	refs := make([]image.Image, 0, len(paths))
	for _, path := range paths {
		img, err := imaging.Open(path)
		if err != nil {
			return nil, fmt.Errorf("reference %s: %w", path, err)
		}
		refs = append(refs, img)
	}
	return refs, nil
}

// writeOutput saves the result and verifies a non-empty file landed on
// disk.
func writeOutput(img image.Image, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := imaging.Save(img, path); err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		return fmt.Errorf("wrote empty file %s", path)
	}
	return nil
}
