package colorize

import (
	"context"
	"image"
)

// Request carries one colorization job to a backend.
type Request struct {
	// Line is the prepared line-structure image.
	Line image.Image
	// References guide the palette. May be empty.
	References []image.Image

	Style          string
	Seed           int
	InferenceSteps int
	TopK           int
}

// Colorizer produces a colored image from prepared line art. ClearCache
// releases any model or activation memory the backend holds between
// jobs.
type Colorizer interface {
	Colorize(ctx context.Context, req Request) (image.Image, error)
	ClearCache() error
}
