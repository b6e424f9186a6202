package composite

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSelection is returned when a composite is requested with no cubes
	ErrNoSelection = errors.New("no cubes selected")

	// ErrDimensionMismatch is returned when selected cubes differ in rows or columns
	ErrDimensionMismatch = errors.New("cube dimensions do not match")

	// ErrOutOfRange is returned when a band range reaches past a cube's band count
	ErrOutOfRange = errors.New("band range out of range")

	// ErrInvalidRange is returned for empty or negative band ranges
	ErrInvalidRange = errors.New("invalid band range")
)

// Range is a half-open interval [Start, End) of band indices
type Range struct {
	Start int `yaml:"start"`
	End   int `yaml:"end"`
}

// Len returns the number of bands in the range
func (r Range) Len() int { return r.End - r.Start }

func (r Range) String() string { return fmt.Sprintf("[%d, %d)", r.Start, r.End) }

// Validate rejects ranges that cannot be averaged
func (r Range) Validate() error {
	if r.Start < 0 || r.End <= r.Start {
		return fmt.Errorf("%w: %s", ErrInvalidRange, r)
	}
	return nil
}

// BandConfig holds the band range averaged into each output channel
type BandConfig struct {
	Red   Range `yaml:"red"`
	Green Range `yaml:"green"`
	Blue  Range `yaml:"blue"`
}

// DefaultBands returns the instrument's standard ranges:
// blue [3, 9), green [13, 19), red [23, 29).
func DefaultBands() BandConfig {
	return BandConfig{
		Red:   Range{Start: 23, End: 29},
		Green: Range{Start: 13, End: 19},
		Blue:  Range{Start: 3, End: 9},
	}
}

// Channel identifies an output channel
type Channel int

const (
	Red Channel = iota
	Green
	Blue
)

func (c Channel) String() string {
	return [...]string{"red", "green", "blue"}[c]
}

// Ranges returns the ranges in red, green, blue order
func (b BandConfig) Ranges() [3]Range {
	return [3]Range{b.Red, b.Green, b.Blue}
}

// MaxBand returns the smallest band count that satisfies every range
func (b BandConfig) MaxBand() int {
	max := 0
	for _, r := range b.Ranges() {
		if r.End > max {
			max = r.End
		}
	}
	return max
}

// Validate checks each channel's range
func (b BandConfig) Validate() error {
	for i, r := range b.Ranges() {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("%s channel: %w", Channel(i), err)
		}
	}
	return nil
}
