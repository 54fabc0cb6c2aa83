// Package render produces image artifacts from an existing dataset.
//
// A render request names one variable and optionally one time segment.
// Without a segment the renderer fans out to every segment plus the
// cross-time average (segment 0). Rendering is idempotent per target
// file: images already on disk are skipped, so partially completed
// fan-outs from earlier requests only fill in the missing segments.
package render

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/ahurka/Arrhenius/config"
	"github.com/ahurka/Arrhenius/dataset"
	"github.com/ahurka/Arrhenius/store"
)

// Painter turns one grid into image bytes. Implementations must be
// safe for concurrent use.
type Painter interface {
	Paint(g *dataset.Grid, scale config.Scale, w io.Writer) error
}

// Renderer writes per-segment images for dataset variables.
type Renderer struct {
	painter Painter
	workers int
	logger  *slog.Logger
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithWorkers caps concurrent segment renders. Values < 1 mean serial.
func WithWorkers(n int) Option {
	return func(r *Renderer) {
		r.workers = n
	}
}

// WithLogger sets the logger used for render progress.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Renderer) {
		r.logger = logger
	}
}

// New creates a Renderer that paints with painter.
func New(painter Painter, opts ...Option) *Renderer {
	r := &Renderer{
		painter: painter,
		workers: 1,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(r)
	}
	return r
}

func (r *Renderer) log() *slog.Logger {
	if r.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return r.logger
}

// Render produces the requested image(s) for one variable into imgDir.
// A nil segment renders every time segment plus the average; a non-nil
// segment renders that one image, with 0 meaning the average.
//
// The dataset at datasetPath must already exist. Returns true when at
// least one image file was written.
func (r *Renderer) Render(ctx context.Context, datasetPath, variable string, segment *int, imgDir string, scale config.Scale) (bool, error) {
	ds, err := dataset.ReadFile(datasetPath)
	if err != nil {
		return false, fmt.Errorf("render: load dataset: %w", err)
	}

	runID := store.RunIDFromDatasetPath(datasetPath)

	var segments []int
	if segment != nil {
		if *segment < 0 || *segment > ds.Shape().Segments {
			return false, fmt.Errorf("%w: %d of %d", dataset.ErrSegmentRange, *segment, ds.Shape().Segments)
		}
		segments = []int{*segment}
	} else {
		segments = make([]int, 0, ds.Shape().Segments+1)
		for seg := 0; seg <= ds.Shape().Segments; seg++ {
			segments = append(segments, seg)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	if r.workers > 1 {
		g.SetLimit(r.workers)
	} else {
		g.SetLimit(1)
	}

	created := make([]bool, len(segments))
	for i, seg := range segments {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			path := filepath.Join(imgDir, store.ImageFileName(runID, variable, seg, scale))
			if _, err := os.Stat(path); err == nil {
				return nil
			}
			if err := r.renderOne(ds, variable, seg, scale, path); err != nil {
				return err
			}
			created[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return anyCreated(created), err
	}

	if n := countCreated(created); n > 0 {
		r.log().Debug("rendered images",
			"run_id", runID, "variable", variable, "count", n)
	}
	return anyCreated(created), nil
}

// renderOne paints a single segment image and moves it into place
// atomically so a concurrent reader can never observe a partial file.
func (r *Renderer) renderOne(ds *dataset.Dataset, variable string, seg int, scale config.Scale, path string) error {
	var (
		grid *dataset.Grid
		err  error
	)
	if seg == 0 {
		grid, err = ds.Average(variable)
	} else {
		grid, err = ds.Segment(variable, seg)
	}
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".render-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if err := r.painter.Paint(grid, scale, tmp); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("render: paint %s segment %d: %w", variable, seg, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}

func anyCreated(created []bool) bool {
	for _, c := range created {
		if c {
			return true
		}
	}
	return false
}

func countCreated(created []bool) int {
	n := 0
	for _, c := range created {
		if c {
			n++
		}
	}
	return n
}
