// Package loader reads a directory of cube files into a models.Collection.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/sync/errgroup"

	"im3viewer/internal/models"
	"im3viewer/pkg/decoder"
)

// DefaultPattern matches the cube files a directory load picks up
const DefaultPattern = "*.im3"

// LoadError reports a directory that could not be read or a file that could
// not be decoded. Path is the directory or the failing file.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string { return fmt.Sprintf("load %s: %v", e.Path, e.Err) }
func (e *LoadError) Unwrap() error { return e.Err }

// Params holds the loader configuration
type Params struct {
	// Pattern is the glob file names must match, case-sensitive
	Pattern string

	// Workers is the number of files decoded at the same time. Values below
	// one mean sequential decoding.
	Workers int
}

// Loader builds collections through a decoder it does not own. The caller
// opens the decoder before loading and closes it afterwards.
type Loader struct {
	decoder decoder.Decoder
	params  Params
	logger  *log.Logger
}

// NewLoader creates a loader. A nil logger discards log output.
func NewLoader(dec decoder.Decoder, params Params, logger *log.Logger) *Loader {
	if params.Pattern == "" {
		params.Pattern = DefaultPattern
	}
	if params.Workers < 1 {
		params.Workers = 1
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Loader{decoder: dec, params: params, logger: logger}
}

// Files lists the base names in dir matching the pattern, in lexicographic
// order. Subdirectories are not searched. A missing directory has no files.
func (l *Loader) Files(dir string) ([]string, error) {
	if _, err := filepath.Match(l.params.Pattern, ""); err != nil {
		return nil, &LoadError{Path: dir, Err: err}
	}

	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, &LoadError{Path: dir, Err: err}
	}

	var files []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() && entry.Type()&fs.ModeSymlink == 0 {
			continue
		}
		if ok, _ := filepath.Match(l.params.Pattern, entry.Name()); !ok {
			continue
		}
		if entry.Type()&fs.ModeSymlink != 0 {
			info, err := os.Stat(filepath.Join(dir, entry.Name()))
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)

	return files, nil
}

// Load decodes every matching file in dir. It stops at the first failure and
// then returns no collection at all, so callers never see a partial result.
// A missing directory or one without matching files gives an empty collection.
func (l *Loader) Load(ctx context.Context, dir string) (models.Collection, error) {
	files, err := l.Files(dir)
	if err != nil {
		return nil, err
	}

	l.logger.Printf("Loading %d cube files from %s", len(files), dir)

	cubes := make([]*models.Cube, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.params.Workers)

	for i, name := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			path := filepath.Join(dir, name)

			data, err := l.decoder.Decode(gctx, path)
			if err != nil {
				return &LoadError{Path: path, Err: err}
			}
			if err := data.Validate(); err != nil {
				return &LoadError{Path: path, Err: err}
			}

			cubes[i] = models.NewCube(name, data)
			l.logger.Printf("Loaded %s: %dx%d, %d bands", name, data.Rows, data.Cols, data.Bands)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	collection := make(models.Collection, len(cubes))
	for _, cube := range cubes {
		collection[cube.Filename] = cube
	}

	return collection, nil
}
