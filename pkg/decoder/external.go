package decoder

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"im3viewer/internal/models"
)

// External runs a converter program that writes an ENVI file, then decodes
// that file. This is how vendor formats such as .im3 are read, for example
// through a headless Bio-Formats or Fiji export.
//
// Arguments of Command may contain "{input}", replaced by the source path,
// and "{output}", replaced by a raw file path inside the decoder's private
// work directory. The converter must write the header next to {output}.
type External struct {
	Command []string

	program string
	workDir string
	seq     atomic.Uint64
	envi    *ENVI
	mu      sync.RWMutex
}

// NewExternal creates an external decoder for the given command template
func NewExternal(command []string) (*External, error) {
	if len(command) == 0 {
		return nil, fmt.Errorf("external decoder: no command configured")
	}
	joined := strings.Join(command[1:], " ")
	if !strings.Contains(joined, "{input}") || !strings.Contains(joined, "{output}") {
		return nil, fmt.Errorf("external decoder: command must use {input} and {output}")
	}
	return &External{Command: command, envi: NewENVI()}, nil
}

// Open resolves the converter program and creates the work directory.
// Opening an open decoder does nothing.
func (d *External) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.workDir != "" {
		return nil
	}

	program, err := exec.LookPath(d.Command[0])
	if err != nil {
		return fmt.Errorf("external decoder: %w", err)
	}

	workDir, err := os.MkdirTemp("", "im3viewer-decode-*")
	if err != nil {
		return fmt.Errorf("external decoder: failed to create work directory: %w", err)
	}

	d.program = program
	d.workDir = workDir
	return d.envi.Open()
}

// Close removes the work directory
func (d *External) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.workDir == "" {
		return nil
	}
	err := os.RemoveAll(d.workDir)
	d.workDir = ""
	d.envi.Close()
	return err
}

// Decode converts path and reads the converted data
func (d *External) Decode(ctx context.Context, path string) (*models.Array, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.workDir == "" {
		return nil, ErrNotOpen
	}

	output := filepath.Join(d.workDir, fmt.Sprintf("%06d.raw", d.seq.Add(1)))
	defer os.Remove(output)
	defer os.Remove(output + ".hdr")
	defer os.Remove(strings.TrimSuffix(output, ".raw") + ".hdr")

	args := make([]string, len(d.Command)-1)
	for i, arg := range d.Command[1:] {
		arg = strings.ReplaceAll(arg, "{input}", path)
		args[i] = strings.ReplaceAll(arg, "{output}", output)
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, d.program, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("converter failed on %s: %w: %s", path, err, strings.TrimSpace(stderr.String()))
	}

	return d.envi.Decode(ctx, output)
}
