// Package visualization holds the state behind a cube viewer front end and
// turns composites into image files.
package visualization

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"im3viewer/internal/models"
	"im3viewer/pkg/composite"
	"im3viewer/pkg/loader"
)

var (
	// ErrNoImage is returned when saving before any composite was displayed
	ErrNoImage = errors.New("no image to save")

	// ErrStaleCollection is returned by Display when a new collection was
	// loaded while the composite was being built
	ErrStaleCollection = errors.New("collection replaced during composite")
)

// SaveError reports a composite that could not be saved
type SaveError struct {
	Path string
	Err  error
}

func (e *SaveError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("save: %v", e.Err)
	}
	return fmt.Sprintf("save %s: %v", e.Path, e.Err)
}

func (e *SaveError) Unwrap() error { return e.Err }

// Viewer keeps the loaded cubes and the composite currently on display.
// It is safe for concurrent use: a directory load may run in the background
// while the front end keeps reading the previous collection.
type Viewer struct {
	// Format is used when a save path has no recognised extension
	Format string

	loader *loader.Loader
	bands  composite.BandConfig

	mu       sync.RWMutex
	dir      string
	cubes    models.Collection
	gen      uint64 // bumped on every collection swap
	image    *models.RGBImage
	selected []string
}

// NewViewer creates a viewer that loads through l and composites with bands
func NewViewer(l *loader.Loader, bands composite.BandConfig) *Viewer {
	return &Viewer{
		Format: "png",
		loader: l,
		bands:  bands,
		cubes:  models.Collection{},
	}
}

// Load replaces the collection with the cubes in dir. The new collection is
// published only once every file has been decoded; if loading fails the
// previous collection stays in place.
func (v *Viewer) Load(ctx context.Context, dir string) error {
	cubes, err := v.loader.Load(ctx, dir)
	if err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	v.dir = dir
	v.cubes = cubes
	v.gen++
	v.image = nil
	v.selected = nil
	return nil
}

// Dir returns the directory of the current collection
func (v *Viewer) Dir() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.dir
}

// Files returns the loaded file names in lexicographic order
func (v *Viewer) Files() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.cubes.Names()
}

// Cube returns the loaded cube with the given file name
func (v *Viewer) Cube(name string) (*models.Cube, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	cube, ok := v.cubes[name]
	return cube, ok
}

// Display composites the named files and makes the result the current image.
// An empty selection is reported as composite.ErrNoSelection and changes nothing.
func (v *Viewer) Display(names []string) (*models.RGBImage, error) {
	res, err := v.DisplayDetailed(names)
	if err != nil {
		return nil, err
	}
	return res.Image, nil
}

// DisplayDetailed is Display, but also returns the composite's channel data
func (v *Viewer) DisplayDetailed(names []string) (*composite.Result, error) {
	if len(names) == 0 {
		return nil, composite.ErrNoSelection
	}

	v.mu.RLock()
	cubes, err := v.cubes.Select(names)
	gen := v.gen
	v.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	res, err := composite.ComposeDetailed(models.Arrays(cubes), v.bands)
	if err != nil {
		return nil, err
	}

	if err := v.publish(gen, res.Image, names); err != nil {
		return nil, err
	}
	return res, nil
}

// publish makes img the current image, unless the collection it was built
// from is no longer generation gen
func (v *Viewer) publish(gen uint64, img *models.RGBImage, names []string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.gen != gen {
		return ErrStaleCollection
	}
	v.image = img
	v.selected = append([]string(nil), names...)
	return nil
}

// Current returns the image on display and the files it was built from
func (v *Viewer) Current() (*models.RGBImage, []string) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.image, append([]string(nil), v.selected...)
}

// DefaultSaveName returns the name proposed when saving the current image
func (v *Viewer) DefaultSaveName() (string, error) {
	img, selected := v.Current()
	if img == nil {
		return "", ErrNoImage
	}
	return SaveName(selected), nil
}

// Save writes the current image to path
func (v *Viewer) Save(path string) error {
	return v.SaveScaled(path, 1)
}

// SaveScaled writes the current image to path, resampled by factor
func (v *Viewer) SaveScaled(path string, factor float64) error {
	img, _ := v.Current()
	if img == nil {
		return &SaveError{Path: path, Err: ErrNoImage}
	}

	scaled, err := Scale(img, factor)
	if err != nil {
		return &SaveError{Path: path, Err: err}
	}
	if err := WriteImage(scaled, path, v.Format); err != nil {
		return &SaveError{Path: path, Err: err}
	}
	return nil
}
