package preprocess

import (
	"fmt"
	"image"
	"log/slog"
	"sort"

	"github.com/disintegration/imaging"
)

// stage is one enhancement step. Steps either return a transformed
// bitmap or an error, in which case the pipeline keeps the frame it
// already has.
type stage struct {
	name  string
	apply func(image.Image) (image.Image, error)
}

// The order is deliberate: grayscale first so the later filters work on
// a single channel, contrast and sharpening before noise reduction so
// the median filter cleans up what they amplify, and brightness last so
// the median filter does not partially undo it. Tuned for printed
// thermal receipt paper.
var stages = []stage{
	{"grayscale", func(img image.Image) (image.Image, error) {
		return imaging.Grayscale(img), nil
	}},
	{"contrast", func(img image.Image) (image.Image, error) {
		return imaging.AdjustContrast(img, 50), nil
	}},
	{"sharpen", func(img image.Image) (image.Image, error) {
		return imaging.Sharpen(img, 2.0), nil
	}},
	{"denoise", func(img image.Image) (image.Image, error) {
		return medianFilter(img)
	}},
	{"brighten", func(img image.Image) (image.Image, error) {
		return imaging.AdjustBrightness(img, 10), nil
	}},
}

// Enhance runs the fixed enhancement sequence over the bitmap. It never
// fails: a stage that errors or panics is skipped and the most recent
// good frame carries forward, degrading to the unmodified input when
// everything fails.
func Enhance(img image.Image) image.Image {
	current := img
	for _, st := range stages {
		next, err := runStage(st, current)
		if err != nil {
			slog.Warn("Enhancement stage failed, keeping previous frame", "stage", st.name, "error", err)
			continue
		}
		current = next
	}
	return current
}

func runStage(st stage, img image.Image) (out image.Image, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("stage %s panicked: %v", st.name, r)
		}
	}()
	return st.apply(img)
}

// medianFilter replaces each pixel with the per-channel median of its
// 3x3 neighborhood, clamping at the borders. The imaging library has no
// rank filter, so this walks the NRGBA buffer directly.
func medianFilter(img image.Image) (image.Image, error) {
	src := imaging.Clone(img)
	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("empty bitmap")
	}

	dst := image.NewNRGBA(bounds)
	var window [3][9]uint8
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			n := 0
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := clamp(x+dx, width-1), clamp(y+dy, height-1)
					i := ny*src.Stride + nx*4
					window[0][n] = src.Pix[i]
					window[1][n] = src.Pix[i+1]
					window[2][n] = src.Pix[i+2]
					n++
				}
			}
			i := y*dst.Stride + x*4
			dst.Pix[i] = median9(window[0])
			dst.Pix[i+1] = median9(window[1])
			dst.Pix[i+2] = median9(window[2])
			dst.Pix[i+3] = src.Pix[y*src.Stride+x*4+3]
		}
	}
	return dst, nil
}

func median9(v [9]uint8) uint8 {
	s := v[:]
	sort.Slice(s, func(i, j int) bool { return s[i] < s[j] })
	return s[4]
}

func clamp(v, hi int) int {
	if v < 0 {
		return 0
	}
	if v > hi {
		return hi
	}
	return v
}
