package visualization

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"

	"im3viewer/internal/models"
)

// SaveName builds the default output name for a composite of the given files:
// their names without extensions joined by "_", plus ".png".
func SaveName(files []string) string {
	stems := make([]string, len(files))
	for i, file := range files {
		stems[i] = models.Stem(filepath.Base(file))
	}
	return strings.Join(stems, "_") + ".png"
}

// FormatFor picks the encoder for filename from its extension, falling back
// to def when the extension is not recognised
func FormatFor(filename, def string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".png":
		return "png"
	case ".tif", ".tiff":
		return "tiff"
	}
	return def
}

// Encode writes img to w in the given format ("png" or "tiff")
func Encode(w io.Writer, img image.Image, format string) error {
	switch format {
	case "png", "":
		return png.Encode(w, img)
	case "tiff":
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		return fmt.Errorf("unsupported image format '%s'", format)
	}
}

// WriteImage saves img to filename, choosing the format from the extension.
// Names without a known extension are written in defaultFormat.
func WriteImage(img image.Image, filename, defaultFormat string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}

	if err := Encode(file, img, FormatFor(filename, defaultFormat)); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// Scale resamples img by factor, the way a display zooms the composite.
// A factor of 1 returns img unchanged.
func Scale(img image.Image, factor float64) (image.Image, error) {
	if !(factor > 0) {
		return nil, fmt.Errorf("scale factor must be positive, got %g", factor)
	}
	if factor == 1 {
		return img, nil
	}

	b := img.Bounds()
	w := int(float64(b.Dx()) * factor)
	h := int(float64(b.Dy()) * factor)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst, nil
}
