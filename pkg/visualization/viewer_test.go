package visualization

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/image/tiff"

	"im3viewer/internal/models"
	"im3viewer/pkg/composite"
	"im3viewer/pkg/decoder"
	"im3viewer/pkg/loader"
)

// createTestCubes writes ENVI cubes into dir. Each cube has a gradient along
// the rows in every band, offset by its index.
func createTestCubes(t *testing.T, dir string, rows, cols int, names ...string) {
	for i, name := range names {
		a := models.NewArray(rows, cols, 30)
		for r := 0; r < rows; r++ {
			for c := 0; c < cols; c++ {
				for b := 0; b < 30; b++ {
					a.Set(r, c, b, float64(r*10+c+i))
				}
			}
		}
		if err := decoder.WriteENVI(filepath.Join(dir, name), a); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
	}
}

// createTestViewer returns a viewer backed by an open ENVI decoder
func createTestViewer(t *testing.T) *Viewer {
	dec := decoder.NewENVI()
	if err := dec.Open(); err != nil {
		t.Fatalf("Failed to open decoder: %v", err)
	}
	t.Cleanup(func() { dec.Close() })

	return NewViewer(loader.NewLoader(dec, loader.Params{}, nil), composite.DefaultBands())
}

func TestSaveName(t *testing.T) {
	tests := []struct {
		files []string
		want  string
	}{
		{[]string{"a.im3", "b.im3"}, "a_b.png"},
		{[]string{"field_01.im3"}, "field_01.png"},
		{[]string{"/data/x.y.im3", "z"}, "x.y_z.png"},
	}

	for _, tt := range tests {
		if got := SaveName(tt.files); got != tt.want {
			t.Errorf("SaveName(%v): expected %s, got %s", tt.files, tt.want, got)
		}
	}
}

func TestFormatFor(t *testing.T) {
	tests := map[string]string{
		"out.png":  "png",
		"out.PNG":  "png",
		"out.tif":  "tiff",
		"out.tiff": "tiff",
		"out":      "fallback",
		"out.jpg":  "fallback",
	}

	for name, want := range tests {
		if got := FormatFor(name, "fallback"); got != want {
			t.Errorf("FormatFor(%s): expected %s, got %s", name, want, got)
		}
	}
}

func TestEncode(t *testing.T) {
	img := models.NewRGBImage(3, 4)
	img.SetRGB(2, 3, 200, 100, 50)

	var buf bytes.Buffer
	if err := Encode(&buf, img, "png"); err != nil {
		t.Fatalf("Failed to encode PNG: %v", err)
	}
	decoded, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("Failed to decode PNG: %v", err)
	}
	if r, g, b, _ := decoded.At(3, 2).RGBA(); r>>8 != 200 || g>>8 != 100 || b>>8 != 50 {
		t.Errorf("Expected (200,100,50) at (3,2), got (%d,%d,%d)", r>>8, g>>8, b>>8)
	}

	buf.Reset()
	if err := Encode(&buf, img, "tiff"); err != nil {
		t.Fatalf("Failed to encode TIFF: %v", err)
	}
	decoded, err = tiff.Decode(&buf)
	if err != nil {
		t.Fatalf("Failed to decode TIFF: %v", err)
	}
	if decoded.Bounds() != image.Rect(0, 0, 4, 3) {
		t.Errorf("Expected 4x3 TIFF, got %v", decoded.Bounds())
	}

	if err := Encode(&buf, img, "gif"); err == nil {
		t.Error("Expected error for unsupported format, got nil")
	}
}

func TestScale(t *testing.T) {
	img := models.NewRGBImage(10, 20)

	scaled, err := Scale(img, 0.5)
	if err != nil {
		t.Fatalf("Failed to scale: %v", err)
	}
	if scaled.Bounds() != image.Rect(0, 0, 10, 5) {
		t.Errorf("Expected 10x5 image, got %v", scaled.Bounds())
	}

	same, err := Scale(img, 1)
	if err != nil || same != image.Image(img) {
		t.Errorf("Expected unit scale to return the input, got %v (%v)", same, err)
	}

	tiny, err := Scale(img, 0.001)
	if err != nil || tiny.Bounds() != image.Rect(0, 0, 1, 1) {
		t.Errorf("Expected 1x1 image, got %v (%v)", tiny, err)
	}

	if _, err := Scale(img, 0); err == nil {
		t.Error("Expected error for zero scale, got nil")
	}
}

func TestViewerLoadAndDisplay(t *testing.T) {
	dir := t.TempDir()
	createTestCubes(t, dir, 4, 4, "a.im3", "b.im3")
	viewer := createTestViewer(t)

	if err := viewer.Load(context.Background(), dir); err != nil {
		t.Fatalf("Failed to load: %v", err)
	}
	if diff := cmp.Diff([]string{"a.im3", "b.im3"}, viewer.Files()); diff != "" {
		t.Errorf("Files mismatch (-want +got):\n%s", diff)
	}
	if viewer.Dir() != dir {
		t.Errorf("Expected dir %s, got %s", dir, viewer.Dir())
	}
	if cube, ok := viewer.Cube("b.im3"); !ok || cube.Label != "b" {
		t.Errorf("Expected cube b, got %v", cube)
	}

	img, err := viewer.Display([]string{"a.im3", "b.im3"})
	if err != nil {
		t.Fatalf("Failed to display: %v", err)
	}
	if img.Rows != 4 || img.Cols != 4 {
		t.Errorf("Expected 4x4 image, got %dx%d", img.Rows, img.Cols)
	}

	// Both cubes grow with the row, so the last row is the brightest
	red, green, blue := img.RGBAt(3, 3)
	if red != 255 || green != 255 || blue != 255 {
		t.Errorf("Expected white at (3,3), got (%d,%d,%d)", red, green, blue)
	}

	name, err := viewer.DefaultSaveName()
	if err != nil || name != "a_b.png" {
		t.Errorf("Expected default save name a_b.png, got %s (%v)", name, err)
	}
}

func TestViewerNoSelection(t *testing.T) {
	dir := t.TempDir()
	createTestCubes(t, dir, 2, 2, "a.im3")
	viewer := createTestViewer(t)
	if err := viewer.Load(context.Background(), dir); err != nil {
		t.Fatalf("Failed to load: %v", err)
	}

	if _, err := viewer.Display(nil); !errors.Is(err, composite.ErrNoSelection) {
		t.Errorf("Expected ErrNoSelection, got %v", err)
	}
	if img, _ := viewer.Current(); img != nil {
		t.Error("Expected no current image after empty selection")
	}

	if _, err := viewer.Display([]string{"missing.im3"}); !errors.Is(err, models.ErrUnknownCube) {
		t.Errorf("Expected ErrUnknownCube, got %v", err)
	}
}

func TestViewerDimensionMismatch(t *testing.T) {
	dir := t.TempDir()
	createTestCubes(t, dir, 2, 2, "a.im3")
	createTestCubes(t, dir, 3, 2, "b.im3")
	viewer := createTestViewer(t)
	if err := viewer.Load(context.Background(), dir); err != nil {
		t.Fatalf("Failed to load: %v", err)
	}

	if _, err := viewer.Display([]string{"a.im3", "b.im3"}); !errors.Is(err, composite.ErrDimensionMismatch) {
		t.Errorf("Expected ErrDimensionMismatch, got %v", err)
	}
	if img, _ := viewer.Current(); img != nil {
		t.Error("Expected no image after a failed composite")
	}
}

// TestViewerFailedLoadKeepsCollection verifies that a failed load leaves the
// previous collection in place
func TestViewerFailedLoadKeepsCollection(t *testing.T) {
	good := t.TempDir()
	createTestCubes(t, good, 2, 2, "a.im3")

	bad := t.TempDir()
	if err := os.WriteFile(filepath.Join(bad, "broken.im3"), []byte("garbage"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	viewer := createTestViewer(t)
	if err := viewer.Load(context.Background(), good); err != nil {
		t.Fatalf("Failed to load: %v", err)
	}

	err := viewer.Load(context.Background(), bad)
	var loadErr *loader.LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("Expected LoadError, got %v", err)
	}

	if diff := cmp.Diff([]string{"a.im3"}, viewer.Files()); diff != "" {
		t.Errorf("Expected previous collection to remain (-want +got):\n%s", diff)
	}
	if viewer.Dir() != good {
		t.Errorf("Expected dir %s, got %s", good, viewer.Dir())
	}
}

func TestViewerSave(t *testing.T) {
	dir := t.TempDir()
	createTestCubes(t, dir, 4, 6, "a.im3", "b.im3")
	viewer := createTestViewer(t)
	if err := viewer.Load(context.Background(), dir); err != nil {
		t.Fatalf("Failed to load: %v", err)
	}

	// Nothing displayed yet
	err := viewer.Save(filepath.Join(dir, "early.png"))
	var saveErr *SaveError
	if !errors.As(err, &saveErr) || !errors.Is(err, ErrNoImage) {
		t.Errorf("Expected SaveError wrapping ErrNoImage, got %v", err)
	}
	if _, err := viewer.DefaultSaveName(); !errors.Is(err, ErrNoImage) {
		t.Errorf("Expected ErrNoImage, got %v", err)
	}

	if _, err := viewer.Display([]string{"b.im3"}); err != nil {
		t.Fatalf("Failed to display: %v", err)
	}

	out := filepath.Join(dir, "b.png")
	if err := viewer.Save(out); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}
	file, err := os.Open(out)
	if err != nil {
		t.Fatalf("Saved file does not exist: %v", err)
	}
	defer file.Close()
	cfg, err := png.DecodeConfig(file)
	if err != nil {
		t.Fatalf("Saved file is not a PNG: %v", err)
	}
	if cfg.Width != 6 || cfg.Height != 4 {
		t.Errorf("Expected 6x4 PNG, got %dx%d", cfg.Width, cfg.Height)
	}

	scaled := filepath.Join(dir, "b_large.tif")
	if err := viewer.SaveScaled(scaled, 2); err != nil {
		t.Fatalf("Failed to save scaled image: %v", err)
	}
	if _, err := os.Stat(scaled); err != nil {
		t.Errorf("Scaled file does not exist: %v", err)
	}

	// Unwritable target
	err = viewer.Save(filepath.Join(dir, "missing", "out.png"))
	if !errors.As(err, &saveErr) {
		t.Errorf("Expected SaveError for unwritable path, got %v", err)
	}
}

// TestViewerReloadClearsImage verifies that a new collection drops the old composite
func TestViewerReloadClearsImage(t *testing.T) {
	dir := t.TempDir()
	createTestCubes(t, dir, 2, 2, "a.im3")
	viewer := createTestViewer(t)

	if err := viewer.Load(context.Background(), dir); err != nil {
		t.Fatalf("Failed to load: %v", err)
	}
	if _, err := viewer.Display([]string{"a.im3"}); err != nil {
		t.Fatalf("Failed to display: %v", err)
	}

	if err := viewer.Load(context.Background(), t.TempDir()); err != nil {
		t.Fatalf("Failed to reload: %v", err)
	}
	if img, selected := viewer.Current(); img != nil || len(selected) != 0 {
		t.Errorf("Expected no current image after reload, got %v %v", img, selected)
	}
	if len(viewer.Files()) != 0 {
		t.Errorf("Expected empty collection, got %v", viewer.Files())
	}
}

// TestViewerDiscardsStaleComposite verifies that a composite built from a
// collection replaced mid-build is not published over the new one
func TestViewerDiscardsStaleComposite(t *testing.T) {
	first := t.TempDir()
	createTestCubes(t, first, 2, 2, "a.im3")
	second := t.TempDir()
	createTestCubes(t, second, 2, 2, "b.im3")
	viewer := createTestViewer(t)

	if err := viewer.Load(context.Background(), first); err != nil {
		t.Fatalf("Failed to load: %v", err)
	}
	gen := viewer.gen
	img, err := viewer.Display([]string{"a.im3"})
	if err != nil {
		t.Fatalf("Failed to display: %v", err)
	}

	if err := viewer.Load(context.Background(), second); err != nil {
		t.Fatalf("Failed to reload: %v", err)
	}
	if err := viewer.publish(gen, img, []string{"a.im3"}); !errors.Is(err, ErrStaleCollection) {
		t.Errorf("Expected ErrStaleCollection, got %v", err)
	}
	if current, selected := viewer.Current(); current != nil || len(selected) != 0 {
		t.Errorf("Expected no current image, got %v %v", current, selected)
	}

	if err := viewer.publish(viewer.gen, img, []string{"b.im3"}); err != nil {
		t.Errorf("Expected publish on the current collection to succeed, got %v", err)
	}
}
