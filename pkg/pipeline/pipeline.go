package pipeline

import (
	"context"
	"fmt"
	"io"
	"log"
	"path/filepath"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"im3viewer/pkg/composite"
	"im3viewer/pkg/decoder"
	"im3viewer/pkg/loader"
	"im3viewer/pkg/visualization"
)

// ChannelStats summarizes one accumulated channel before normalization
type ChannelStats struct {
	Min, Max     float64
	Mean, StdDev float64

	// Degenerate is set when the channel was constant and written as zeros
	Degenerate bool
}

// Params holds the batch composite parameters
type Params struct {
	// InputDir is the directory containing the cube files
	InputDir string

	// Files selects cubes by file name, in compositing order.
	// An empty list selects every loaded cube.
	Files []string

	// OutputFile is where the composite is written. When empty the default
	// save name is used inside InputDir.
	OutputFile string

	// Format is the image format for output names without a known extension
	Format string

	// Scale resizes the saved image
	Scale float64

	// Bands holds the band range of each output channel
	Bands composite.BandConfig

	// Loader configures file matching and parallel decoding
	Loader loader.Params
}

// Pipeline runs a whole composite from directory to image file:
//  1. load every cube in the input directory
//  2. select the requested cubes
//  3. composite them
//  4. save the image
type Pipeline struct {
	params  *Params
	decoder decoder.Decoder
	logger  *log.Logger

	viewer *visualization.Viewer
	output string
	stats  [3]ChannelStats
}

// NewPipeline creates a pipeline that decodes through dec. The pipeline opens
// and closes dec itself. A nil logger discards log output. params is copied.
func NewPipeline(params *Params, dec decoder.Decoder, logger *log.Logger) *Pipeline {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	p := *params
	if p.Scale == 0 {
		p.Scale = 1
	}
	return &Pipeline{params: &p, decoder: dec, logger: logger}
}

// Process runs the complete pipeline
func (p *Pipeline) Process(ctx context.Context) error {
	if err := p.decoder.Open(); err != nil {
		return fmt.Errorf("failed to open decoder: %w", err)
	}
	defer p.decoder.Close()

	p.viewer = visualization.NewViewer(loader.NewLoader(p.decoder, p.params.Loader, p.logger), p.params.Bands)
	if p.params.Format != "" {
		p.viewer.Format = p.params.Format
	}

	// Step 1: Load cubes
	p.logger.Printf("Step 1: Loading cubes from %s...", p.params.InputDir)
	if err := p.viewer.Load(ctx, p.params.InputDir); err != nil {
		return fmt.Errorf("failed to load cubes: %w", err)
	}

	// Step 2: Select cubes
	files := p.params.Files
	if len(files) == 0 {
		files = p.viewer.Files()
	}
	p.logger.Printf("Step 2: Selected %d of %d cubes", len(files), len(p.viewer.Files()))

	// Step 3: Composite
	p.logger.Println("Step 3: Compositing bands...")
	res, err := p.viewer.DisplayDetailed(files)
	if err != nil {
		return fmt.Errorf("failed to composite: %w", err)
	}
	for ch := range res.Accumulated {
		p.stats[ch] = channelStats(res.Accumulated[ch].RawMatrix().Data, res.Degenerate[ch])
		if p.stats[ch].Degenerate {
			p.logger.Printf("Warning: %s channel is constant and was written as zeros", composite.Channel(ch))
		}
	}

	// Step 4: Save
	p.output = p.params.OutputFile
	if p.output == "" {
		name, err := p.viewer.DefaultSaveName()
		if err != nil {
			return err
		}
		p.output = filepath.Join(p.params.InputDir, name)
	}
	p.logger.Printf("Step 4: Saving composite to %s...", p.output)
	if err := p.viewer.SaveScaled(p.output, p.params.Scale); err != nil {
		return err
	}

	return nil
}

// OutputFile returns the path the composite was written to
func (p *Pipeline) OutputFile() string {
	return p.output
}

// Stats returns the accumulated channel statistics in red, green, blue order
func (p *Pipeline) Stats() [3]ChannelStats {
	return p.stats
}

// Viewer returns the viewer holding the loaded cubes and the composite
func (p *Pipeline) Viewer() *visualization.Viewer {
	return p.viewer
}

// channelStats summarizes accumulated channel values. values must not be empty.
func channelStats(values []float64, degenerate bool) ChannelStats {
	mean, std := stat.MeanStdDev(values, nil)
	return ChannelStats{
		Min:        floats.Min(values),
		Max:        floats.Max(values),
		Mean:       mean,
		StdDev:     std,
		Degenerate: degenerate,
	}
}
