package testsupport

import (
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
)

// WriteLineArtPNG writes a black-on-white grid image to path, the kind
// of input the classifier labels line art.
func WriteLineArtPNG(t testing.TB, path string) {
	t.Helper()
	img := imaging.New(64, 64, color.White)
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			if x%4 == 0 || y%4 == 0 {
				img.Set(x, y, color.Black)
			}
		}
	}
	if err := imaging.Save(img, path); err != nil {
		t.Fatalf("write line art fixture %s: %v", path, err)
	}
}

// WriteColoredPNG writes a saturated gradient image to path.
func WriteColoredPNG(t testing.TB, path string) {
	t.Helper()
	img := imaging.New(64, 64, color.White)
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 4), G: uint8(y * 4), B: 128, A: 255})
		}
	}
	if err := imaging.Save(img, path); err != nil {
		t.Fatalf("write colored fixture %s: %v", path, err)
	}
}

// WritePlainPNG writes a small single-color image to path, for tests
// that only need a decodable file.
func WritePlainPNG(t testing.TB, path string) {
	t.Helper()
	img := imaging.New(16, 16, color.NRGBA{R: 90, G: 90, B: 90, A: 255})
	if err := imaging.Save(img, path); err != nil {
		t.Fatalf("write fixture %s: %v", path, err)
	}
}
