package classify

import (
	"fmt"
	"image"
	"log/slog"
	"math"
	"sync"

	"github.com/disintegration/imaging"

	"tinct/internal/logging"
	"tinct/internal/services"
)

// Labels assigned by the classifier.
const (
	LabelLineArt = "line_art"
	LabelColored = "colored"
)

// Analysis thresholds. An image scores a line-art point for each
// metric on the line-art side of its threshold; two of three points
// decide the label.
const (
	saturationThreshold  = 0.15
	colorCountThreshold  = 1000
	edgeDensityThreshold = 0.3
)

// analysisSize is the bounding box images are downscaled to before
// measuring. Metrics are scale-invariant enough that this keeps
// classification fast on large inputs.
const analysisSize = 256

// Metrics holds the raw measurements behind a classification.
type Metrics struct {
	Saturation  float64
	ColorCount  int
	EdgeDensity float64
}

// Result is a classification outcome.
type Result struct {
	Label      string
	Confidence float64
	Metrics    Metrics
}

// Classifier labels images and caches results per path.
type Classifier struct {
	mu     sync.Mutex
	cache  map[string]Result
	logger *slog.Logger
}

// New returns a Classifier with an empty cache.
func New(logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Classifier{cache: make(map[string]Result), logger: logger}
}

// Classify labels the image at path. Repeat calls for the same path
// return the cached result without re-reading the file.
func (c *Classifier) Classify(path string) (Result, error) {
	c.mu.Lock()
	if cached, ok := c.cache[path]; ok {
		c.mu.Unlock()
		return cached, nil
	}
	c.mu.Unlock()

	img, err := imaging.Open(path)
	if err != nil {
		return Result{}, services.Wrap(services.ErrValidation, "classify", "open", fmt.Sprintf("cannot decode %s", path), err)
	}
	result := ClassifyImage(img)
	c.logger.Debug("classified image",
		logging.String("path", path),
		logging.String("label", result.Label),
		logging.Float64("confidence", result.Confidence))

	c.mu.Lock()
	c.cache[path] = result
	c.mu.Unlock()
	return result, nil
}

// ClassifyBatch labels every path, returning results keyed by path.
// Undecodable images are skipped and reported in the error map.
func (c *Classifier) ClassifyBatch(paths []string) (map[string]Result, map[string]error) {
	results := make(map[string]Result, len(paths))
	failures := make(map[string]error)
	for _, path := range paths {
		result, err := c.Classify(path)
		if err != nil {
			failures[path] = err
			continue
		}
		results[path] = result
	}
	return results, failures
}

// ClearCache drops all cached classifications.
func (c *Classifier) ClearCache() {
	c.mu.Lock()
	c.cache = make(map[string]Result)
	c.mu.Unlock()
}

// ClassifyImage measures an already-decoded image and assigns a label.
func ClassifyImage(img image.Image) Result {
	small := imaging.Fit(img, analysisSize, analysisSize, imaging.Lanczos)
	metrics := Metrics{
		Saturation:  meanSaturation(small),
		ColorCount:  distinctColors(small),
		EdgeDensity: edgeDensity(small),
	}
	return score(metrics)
}

func score(m Metrics) Result {
	lowSaturation := m.Saturation < saturationThreshold

	points := 0
	if lowSaturation {
		points++
	}
	if m.ColorCount < colorCountThreshold {
		points++
	}
	if m.EdgeDensity > edgeDensityThreshold {
		points++
	}

	// Near-grayscale images are line art regardless of other metrics.
	if lowSaturation || points >= 2 {
		confidence := float64(points) / 3
		if lowSaturation && points < 2 {
			confidence = 2.0 / 3
		}
		return Result{Label: LabelLineArt, Confidence: confidence, Metrics: m}
	}

	confidence := float64(3-points) / 3
	if m.Saturation < saturationThreshold*2 {
		// Weak color signal, temper the confidence.
		confidence *= 0.7
	}
	return Result{Label: LabelColored, Confidence: confidence, Metrics: m}
}

// meanSaturation averages HSV saturation across all pixels.
func meanSaturation(img *image.NRGBA) float64 {
	bounds := img.Bounds()
	pixels := bounds.Dx() * bounds.Dy()
	if pixels == 0 {
		return 0
	}
	var sum float64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		row := img.Pix[(y-bounds.Min.Y)*img.Stride:]
		for x := 0; x < bounds.Dx(); x++ {
			r := row[x*4]
			g := row[x*4+1]
			b := row[x*4+2]
			hi := max3(r, g, b)
			if hi == 0 {
				continue
			}
			lo := min3(r, g, b)
			sum += float64(hi-lo) / float64(hi)
		}
	}
	return sum / float64(pixels)
}

// distinctColors counts unique quantized colors (5 bits per channel).
func distinctColors(img *image.NRGBA) int {
	bounds := img.Bounds()
	seen := make(map[uint32]struct{})
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		row := img.Pix[(y-bounds.Min.Y)*img.Stride:]
		for x := 0; x < bounds.Dx(); x++ {
			r := uint32(row[x*4]) >> 3
			g := uint32(row[x*4+1]) >> 3
			b := uint32(row[x*4+2]) >> 3
			seen[r<<10|g<<5|b] = struct{}{}
		}
	}
	return len(seen)
}

// edgeDensity is the fraction of pixels whose Sobel gradient magnitude
// exceeds a fixed cutoff, measured on the grayscale image.
func edgeDensity(img *image.NRGBA) float64 {
	gray := imaging.Grayscale(img)
	bounds := gray.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w < 3 || h < 3 {
		return 0
	}

	at := func(x, y int) float64 {
		return float64(gray.Pix[y*gray.Stride+x*4])
	}

	const cutoff = 96.0
	edges := 0
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			gx := -at(x-1, y-1) + at(x+1, y-1) +
				-2*at(x-1, y) + 2*at(x+1, y) +
				-at(x-1, y+1) + at(x+1, y+1)
			gy := -at(x-1, y-1) - 2*at(x, y-1) - at(x+1, y-1) +
				at(x-1, y+1) + 2*at(x, y+1) + at(x+1, y+1)
			if math.Hypot(gx, gy) > cutoff {
				edges++
			}
		}
	}
	return float64(edges) / float64((w-2)*(h-2))
}

func max3(a, b, c uint8) uint8 {
	m := a
	if b > m {
		m = b
	}
	if c > m {
		m = c
	}
	return m
}

func min3(a, b, c uint8) uint8 {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
