package models

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"path/filepath"
	"sort"
	"strings"
)

// ErrUnknownCube is returned when a selection names a file that is not loaded
var ErrUnknownCube = errors.New("unknown cube")

// Array is a decoded multi-band image
type Array struct {
	// Rows, Cols, Bands are the dimensions of the array
	Rows, Cols, Bands int

	// Data holds the samples as a 1D array in (row, col, band) order
	Data []float64
}

// NewArray allocates a zero-filled array with the given dimensions
func NewArray(rows, cols, bands int) *Array {
	return &Array{
		Rows:  rows,
		Cols:  cols,
		Bands: bands,
		Data:  make([]float64, rows*cols*bands),
	}
}

// Index returns the position of sample (r, c, b) in Data
func (a *Array) Index(r, c, b int) int {
	return (r*a.Cols+c)*a.Bands + b
}

// At returns the sample at row r, column c, band b
func (a *Array) At(r, c, b int) float64 {
	return a.Data[a.Index(r, c, b)]
}

// Set stores v at row r, column c, band b
func (a *Array) Set(r, c, b int, v float64) {
	a.Data[a.Index(r, c, b)] = v
}

// Pixel returns the band vector of pixel (r, c). The returned slice aliases Data.
func (a *Array) Pixel(r, c int) []float64 {
	start := a.Index(r, c, 0)
	return a.Data[start : start+a.Bands]
}

// Validate checks that the dimensions are positive and match the data length
func (a *Array) Validate() error {
	if a.Rows <= 0 || a.Cols <= 0 || a.Bands <= 0 {
		return fmt.Errorf("invalid array shape (%d, %d, %d)", a.Rows, a.Cols, a.Bands)
	}
	if len(a.Data) != a.Rows*a.Cols*a.Bands {
		return fmt.Errorf("array shape (%d, %d, %d) does not match %d samples",
			a.Rows, a.Cols, a.Bands, len(a.Data))
	}
	return nil
}

// Cube is one loaded cube file. The dimensions come from the embedded Array,
// which the cube owns and nobody mutates after load.
type Cube struct {
	*Array

	// Filename is the base name of the source file, including extension
	Filename string

	// Label is the filename with its extension stripped
	Label string
}

// NewCube wraps a decoded array loaded from filename. The array is not copied.
func NewCube(filename string, data *Array) *Cube {
	base := filepath.Base(filename)
	return &Cube{
		Array:    data,
		Filename: base,
		Label:    Stem(base),
	}
}

// Stem strips the extension from a base file name. Leading dots do not start
// an extension, so ".im3" stays ".im3".
func Stem(name string) string {
	trimmed := strings.TrimLeft(name, ".")
	dot := strings.LastIndex(trimmed, ".")
	if dot < 0 {
		return name
	}
	return name[:len(name)-len(trimmed)+dot]
}

// Collection maps base file names to loaded cubes
type Collection map[string]*Cube

// Names returns the file names in lexicographic order
func (c Collection) Names() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Select returns the named cubes in the order given
func (c Collection) Select(names []string) ([]*Cube, error) {
	cubes := make([]*Cube, 0, len(names))
	for _, name := range names {
		cube, ok := c[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownCube, name)
		}
		cubes = append(cubes, cube)
	}
	return cubes, nil
}

// Arrays returns the decoded arrays of the given cubes
func Arrays(cubes []*Cube) []*Array {
	arrays := make([]*Array, len(cubes))
	for i, cube := range cubes {
		arrays[i] = cube.Array
	}
	return arrays
}

// RGBImage is an 8-bit composite with three samples (red, green, blue) per pixel
type RGBImage struct {
	Rows, Cols int

	// Pix holds the samples in (row, col, channel) order
	Pix []uint8
}

// NewRGBImage allocates a black image
func NewRGBImage(rows, cols int) *RGBImage {
	return &RGBImage{
		Rows: rows,
		Cols: cols,
		Pix:  make([]uint8, rows*cols*3),
	}
}

// RGBAt returns the red, green and blue samples of pixel (r, c)
func (m *RGBImage) RGBAt(r, c int) (uint8, uint8, uint8) {
	i := (r*m.Cols + c) * 3
	return m.Pix[i], m.Pix[i+1], m.Pix[i+2]
}

// SetRGB stores the samples of pixel (r, c)
func (m *RGBImage) SetRGB(r, c int, red, green, blue uint8) {
	i := (r*m.Cols + c) * 3
	m.Pix[i], m.Pix[i+1], m.Pix[i+2] = red, green, blue
}

// Implement golang's image.Image interface. Columns run along x, rows along y.
func (m *RGBImage) ColorModel() color.Model { return color.RGBAModel }
func (m *RGBImage) Bounds() image.Rectangle { return image.Rect(0, 0, m.Cols, m.Rows) }
func (m *RGBImage) At(x, y int) color.Color {
	if !(image.Point{x, y}.In(m.Bounds())) {
		return color.RGBA{}
	}
	r, g, b := m.RGBAt(y, x)
	return color.RGBA{R: r, G: g, B: b, A: 0xff}
}
