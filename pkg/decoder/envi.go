package decoder

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"

	"im3viewer/internal/models"
)

// ENVI data type codes
const (
	TypeUint8   = 1
	TypeInt16   = 2
	TypeInt32   = 3
	TypeFloat32 = 4
	TypeFloat64 = 5
	TypeUint16  = 12
	TypeUint32  = 13
	TypeInt64   = 14
	TypeUint64  = 15
)

var sampleSizes = map[int]int{
	TypeUint8:   1,
	TypeInt16:   2,
	TypeInt32:   4,
	TypeFloat32: 4,
	TypeFloat64: 8,
	TypeUint16:  2,
	TypeUint32:  4,
	TypeInt64:   8,
	TypeUint64:  8,
}

// Header holds the fields of an ENVI header that describe the raw layout
type Header struct {
	Samples      int
	Lines        int
	Bands        int
	HeaderOffset int
	DataType     int
	Interleave   string
	ByteOrder    int

	Wavelengths []float64
	BandNames   []string
}

// Validate checks that the header describes a layout we can read
func (h *Header) Validate() error {
	if h.Samples <= 0 || h.Lines <= 0 || h.Bands <= 0 {
		return fmt.Errorf("envi header: invalid dimensions samples=%d lines=%d bands=%d", h.Samples, h.Lines, h.Bands)
	}
	if _, ok := sampleSizes[h.DataType]; !ok {
		return fmt.Errorf("envi header: unsupported data type %d", h.DataType)
	}
	switch h.Interleave {
	case "bsq", "bil", "bip":
	default:
		return fmt.Errorf("envi header: unsupported interleave '%s'", h.Interleave)
	}
	if h.ByteOrder != 0 && h.ByteOrder != 1 {
		return fmt.Errorf("envi header: invalid byte order %d", h.ByteOrder)
	}
	if h.HeaderOffset < 0 {
		return fmt.Errorf("envi header: negative header offset %d", h.HeaderOffset)
	}
	// lines*samples*bands*size + offset must fit in an int
	limit := (math.MaxInt - h.HeaderOffset) / sampleSizes[h.DataType]
	if h.Lines > limit/h.Samples/h.Bands {
		return fmt.Errorf("envi header: dimensions samples=%d lines=%d bands=%d are too large",
			h.Samples, h.Lines, h.Bands)
	}
	return nil
}

func (h *Header) byteOrder() binary.ByteOrder {
	if h.ByteOrder == 1 {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// sourceIndex returns the position of sample (line, sample, band) in the raw data
func (h *Header) sourceIndex(l, s, b int) int {
	switch h.Interleave {
	case "bsq":
		return (b*h.Lines+l)*h.Samples + s
	case "bil":
		return (l*h.Bands+b)*h.Samples + s
	default:
		return (l*h.Samples+s)*h.Bands + b
	}
}

// ParseHeader reads an ENVI header. Unknown fields are ignored.
func ParseHeader(r io.Reader) (*Header, error) {
	scanner := bufio.NewScanner(r)
	if !scanner.Scan() || strings.TrimSpace(scanner.Text()) != "ENVI" {
		return nil, fmt.Errorf("envi header: missing ENVI signature")
	}

	h := &Header{Interleave: "bsq"}
	for scanner.Scan() {
		line := scanner.Text()
		eq := strings.Index(line, "=")
		if eq < 0 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(line[:eq]))
		value := strings.TrimSpace(line[eq+1:])

		// Brace values may run over several lines
		if strings.HasPrefix(value, "{") {
			for !strings.Contains(value, "}") && scanner.Scan() {
				value += " " + strings.TrimSpace(scanner.Text())
			}
			value = strings.TrimSuffix(strings.TrimPrefix(value, "{"), "}")
		}

		var err error
		switch key {
		case "samples":
			h.Samples, err = strconv.Atoi(value)
		case "lines":
			h.Lines, err = strconv.Atoi(value)
		case "bands":
			h.Bands, err = strconv.Atoi(value)
		case "header offset":
			h.HeaderOffset, err = strconv.Atoi(value)
		case "data type":
			h.DataType, err = strconv.Atoi(value)
		case "byte order":
			h.ByteOrder, err = strconv.Atoi(value)
		case "interleave":
			h.Interleave = strings.ToLower(value)
		case "band names":
			h.BandNames = splitList(value)
		case "wavelength":
			for _, item := range splitList(value) {
				w, perr := strconv.ParseFloat(item, 64)
				if perr != nil {
					err = perr
					break
				}
				h.Wavelengths = append(h.Wavelengths, w)
			}
		}
		if err != nil {
			return nil, fmt.Errorf("envi header: field '%s': %w", key, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("envi header: %w", err)
	}

	return h, h.Validate()
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// HeaderPath finds the header for a raw file: "<file>.hdr" first, then the
// file name with its extension replaced by ".hdr".
func HeaderPath(path string) (string, error) {
	candidates := []string{
		path + ".hdr",
		strings.TrimSuffix(path, filepath.Ext(path)) + ".hdr",
	}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no ENVI header found for %s", path)
}

// ReadHeader parses the header that belongs to the raw file at path
func ReadHeader(path string) (*Header, error) {
	hdrPath, err := HeaderPath(path)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(hdrPath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return ParseHeader(file)
}

// ENVI decodes raw band files described by an ENVI header sidecar
type ENVI struct {
	open atomic.Bool
}

// NewENVI creates an ENVI decoder
func NewENVI() *ENVI {
	return &ENVI{}
}

func (d *ENVI) Open() error {
	d.open.Store(true)
	return nil
}

func (d *ENVI) Close() error {
	d.open.Store(false)
	return nil
}

// Decode reads the raw file at path into a (lines, samples, bands) array,
// whatever the interleave on disk.
func (d *ENVI) Decode(ctx context.Context, path string) (*models.Array, error) {
	if !d.open.Load() {
		return nil, ErrNotOpen
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h, err := ReadHeader(path)
	if err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return decodeRaw(h, raw)
}

func decodeRaw(h *Header, raw []byte) (*models.Array, error) {
	if err := h.Validate(); err != nil {
		return nil, err
	}
	size := sampleSizes[h.DataType]
	count := h.Lines * h.Samples * h.Bands
	need := h.HeaderOffset + count*size
	if len(raw) < need {
		return nil, fmt.Errorf("envi data: expected %d bytes, got %d", need, len(raw))
	}
	raw = raw[h.HeaderOffset:need]

	read := sampleReader(h.DataType, h.byteOrder())
	a := models.NewArray(h.Lines, h.Samples, h.Bands)
	for l := 0; l < h.Lines; l++ {
		for s := 0; s < h.Samples; s++ {
			for b := 0; b < h.Bands; b++ {
				off := h.sourceIndex(l, s, b) * size
				a.Set(l, s, b, read(raw[off:off+size]))
			}
		}
	}

	return a, nil
}

func sampleReader(dataType int, order binary.ByteOrder) func([]byte) float64 {
	switch dataType {
	case TypeUint8:
		return func(p []byte) float64 { return float64(p[0]) }
	case TypeInt16:
		return func(p []byte) float64 { return float64(int16(order.Uint16(p))) }
	case TypeInt32:
		return func(p []byte) float64 { return float64(int32(order.Uint32(p))) }
	case TypeFloat32:
		return func(p []byte) float64 { return float64(math.Float32frombits(order.Uint32(p))) }
	case TypeFloat64:
		return func(p []byte) float64 { return math.Float64frombits(order.Uint64(p)) }
	case TypeUint16:
		return func(p []byte) float64 { return float64(order.Uint16(p)) }
	case TypeUint32:
		return func(p []byte) float64 { return float64(order.Uint32(p)) }
	case TypeInt64:
		return func(p []byte) float64 { return float64(int64(order.Uint64(p))) }
	default:
		return func(p []byte) float64 { return float64(order.Uint64(p)) }
	}
}

// WriteENVI stores a as little-endian float64 samples in band-interleaved-by-pixel
// order, with its header at path+".hdr".
func WriteENVI(path string, a *models.Array) error {
	if err := a.Validate(); err != nil {
		return err
	}

	header := fmt.Sprintf("ENVI\nsamples = %d\nlines = %d\nbands = %d\nheader offset = 0\n"+
		"file type = ENVI Standard\ndata type = %d\ninterleave = bip\nbyte order = 0\n",
		a.Cols, a.Rows, a.Bands, TypeFloat64)
	if err := os.WriteFile(path+".hdr", []byte(header), 0644); err != nil {
		return fmt.Errorf("failed to write envi header: %w", err)
	}

	raw := make([]byte, len(a.Data)*8)
	for i, v := range a.Data {
		binary.LittleEndian.PutUint64(raw[i*8:], math.Float64bits(v))
	}
	if err := os.WriteFile(path, raw, 0644); err != nil {
		return fmt.Errorf("failed to write envi data: %w", err)
	}

	return nil
}
