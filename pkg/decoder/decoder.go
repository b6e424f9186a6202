// Package decoder provides the multi-band image readers used by the loader.
//
// A Decoder has an explicit lifecycle: Open once, Decode any number of
// files, Close once. Implementations must be safe for concurrent Decode calls
// between Open and Close.
package decoder

import (
	"context"
	"errors"
	"fmt"

	"im3viewer/internal/models"
)

// ErrNotOpen is returned by Decode before Open or after Close
var ErrNotOpen = errors.New("decoder is not open")

// Decoder turns a file into a (rows, cols, bands) array
type Decoder interface {
	// Open prepares the decoder for use
	Open() error

	// Decode reads the file at path
	Decode(ctx context.Context, path string) (*models.Array, error)

	// Close releases everything acquired by Open
	Close() error
}

// Options configures the decoders created by New
type Options struct {
	// Command is the converter invocation used by the external decoder.
	// See External for the placeholders it supports.
	Command []string
}

// New creates the decoder registered under name
func New(name string, opts Options) (Decoder, error) {
	switch name {
	case "", "envi":
		return NewENVI(), nil
	case "external":
		return NewExternal(opts.Command)
	default:
		return nil, fmt.Errorf("no decoder named '%s'", name)
	}
}
