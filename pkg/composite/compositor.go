// Package composite turns a selection of multi-band cubes into an 8-bit RGB image.
//
// Each output channel is built in three steps:
//  1. average the channel's band range per pixel, for every cube
//  2. sum those means across the selected cubes
//  3. min-max normalize the sum to [0, 1] and scale to 8 bits
//
// Channels are normalized independently. Sums are not divided by the number
// of cubes, so combining N cubes scales the raw channel intensity by about N
// before normalization removes it again.
package composite

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"im3viewer/internal/models"
)

// Channels holds one rows x cols matrix per output channel, indexed by Channel
type Channels [3]*mat.Dense

// Result is a composite together with the intermediate channel data
type Result struct {
	// Image is the quantized composite
	Image *models.RGBImage

	// Accumulated holds the per-channel sums before normalization
	Accumulated Channels

	// Degenerate reports channels whose accumulated values were constant.
	// Those channels are written as zeros.
	Degenerate [3]bool
}

// Compose builds the RGB composite of arrays using the given band ranges.
// It is a pure function of its inputs and may be called concurrently.
func Compose(arrays []*models.Array, bands BandConfig) (*models.RGBImage, error) {
	res, err := ComposeDetailed(arrays, bands)
	if err != nil {
		return nil, err
	}
	return res.Image, nil
}

// ComposeDetailed is Compose, but also returns the accumulated channels and
// which of them were degenerate.
func ComposeDetailed(arrays []*models.Array, bands BandConfig) (*Result, error) {
	acc, err := Accumulate(arrays, bands)
	if err != nil {
		return nil, err
	}

	res := &Result{Accumulated: acc}
	var normalized Channels
	for ch := range acc {
		normalized[ch], res.Degenerate[ch] = Normalize(acc[ch])
	}
	res.Image = Quantize(normalized[Red], normalized[Green], normalized[Blue])

	return res, nil
}

// Validate checks that arrays can be composited with bands: the selection is
// non-empty, every array is well formed, every band range fits inside every
// array, and all arrays share the first array's rows and columns.
func Validate(arrays []*models.Array, bands BandConfig) error {
	if len(arrays) == 0 {
		return ErrNoSelection
	}
	if err := bands.Validate(); err != nil {
		return err
	}

	for i, a := range arrays {
		if a == nil {
			return fmt.Errorf("cube %d is nil", i)
		}
		if err := a.Validate(); err != nil {
			return fmt.Errorf("cube %d: %w", i, err)
		}

		for ch, r := range bands.Ranges() {
			if r.End > a.Bands {
				return fmt.Errorf("%w: %s range %s needs %d bands, cube %d has %d",
					ErrOutOfRange, Channel(ch), r, r.End, i, a.Bands)
			}
		}

		if a.Rows != arrays[0].Rows || a.Cols != arrays[0].Cols {
			return fmt.Errorf("%w: cube %d is %dx%d, cube 0 is %dx%d",
				ErrDimensionMismatch, i, a.Rows, a.Cols, arrays[0].Rows, arrays[0].Cols)
		}
	}

	return nil
}

// BandMean returns the per-pixel arithmetic mean of a over the bands in r
func BandMean(a *models.Array, r Range) (*mat.Dense, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if r.End > a.Bands {
		return nil, fmt.Errorf("%w: range %s needs %d bands, cube has %d", ErrOutOfRange, r, r.End, a.Bands)
	}

	mean := mat.NewDense(a.Rows, a.Cols, nil)
	for row := 0; row < a.Rows; row++ {
		for col := 0; col < a.Cols; col++ {
			pixel := a.Pixel(row, col)
			mean.Set(row, col, stat.Mean(pixel[r.Start:r.End], nil))
		}
	}

	return mean, nil
}

// Accumulate sums the band-range means of every array, per channel. The
// accumulators are sized from the first array and live only for this call.
func Accumulate(arrays []*models.Array, bands BandConfig) (Channels, error) {
	var acc Channels
	if err := Validate(arrays, bands); err != nil {
		return acc, err
	}

	rows, cols := arrays[0].Rows, arrays[0].Cols
	for ch := range acc {
		acc[ch] = mat.NewDense(rows, cols, nil)
	}

	ranges := bands.Ranges()
	for _, a := range arrays {
		for ch, r := range ranges {
			mean, err := BandMean(a, r)
			if err != nil {
				return Channels{}, err
			}
			acc[ch].Add(acc[ch], mean)
		}
	}

	return acc, nil
}

// Normalize maps ch linearly onto [0, 1] using its own minimum and maximum.
// When the channel is constant (or its range is not finite) the result is
// all zeros and degenerate is true.
func Normalize(ch *mat.Dense) (normalized *mat.Dense, degenerate bool) {
	rows, cols := ch.Dims()
	min, max := mat.Min(ch), mat.Max(ch)
	span := max - min

	if !(span > 0) || math.IsInf(span, 0) {
		return mat.NewDense(rows, cols, nil), true
	}

	normalized = mat.NewDense(rows, cols, nil)
	normalized.Apply(func(_, _ int, v float64) float64 {
		return (v - min) / span
	}, ch)

	return normalized, false
}

// Quantize stacks three normalized channels into an 8-bit image. Each value
// is scaled by 255 and truncated toward zero. Values outside [0, 1] are
// clamped and NaN becomes 0.
func Quantize(red, green, blue *mat.Dense) *models.RGBImage {
	rows, cols := red.Dims()
	img := models.NewRGBImage(rows, cols)

	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			img.SetRGB(row, col,
				toUint8(red.At(row, col)),
				toUint8(green.At(row, col)),
				toUint8(blue.At(row, col)))
		}
	}

	return img
}

func toUint8(v float64) uint8 {
	q := v * 255
	switch {
	case math.IsNaN(q), q <= 0:
		return 0
	case q >= 255:
		return 255
	}
	return uint8(q)
}
