package arrhenius

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/ahurka/Arrhenius/config"
	"github.com/ahurka/Arrhenius/store"
)

// Runner computes a dataset. After a successful Run the dataset must
// be complete and readable at its canonical store location; partial
// output must fail loudly instead of returning.
type Runner interface {
	Run(ctx context.Context, cfg *config.Config) error
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, cfg *config.Config) error

func (f RunnerFunc) Run(ctx context.Context, cfg *config.Config) error {
	return f(ctx, cfg)
}

// Renderer produces image artifacts from an existing dataset. A nil
// segment fans out to every time segment plus the average; rendering
// must skip target files that already exist. Returns whether any file
// was written.
type Renderer interface {
	Render(ctx context.Context, datasetPath, variable string, segment *int, imgDir string, scale config.Scale) (bool, error)
}

// Archiver bundles a directory of images into a single archive file
// with deterministic contents.
type Archiver interface {
	Archive(srcDir, dstPath string) error
}

// ArchiverFunc adapts a function to the Archiver interface.
type ArchiverFunc func(srcDir, dstPath string) error

func (f ArchiverFunc) Archive(srcDir, dstPath string) error {
	return f(srcDir, dstPath)
}

// Coordinator implements the idempotent ensure operations over the
// durable store. It is safe for concurrent use.
type Coordinator struct {
	layout   *store.Layout
	runner   Runner
	renderer Renderer
	archiver Archiver
	logger   *slog.Logger

	// runs deduplicates concurrent dataset computations per run id:
	// at most one simulation is in flight for a given configuration,
	// with later arrivals waiting on the first.
	runs singleflight.Group

	// guards maps run id to the mutex serializing that run id's image
	// and archive writes. Guards are created on demand and never
	// removed; the id space is bounded by distinct configurations
	// seen by one process.
	guards sync.Map
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger used for cache decisions.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// New creates a Coordinator over layout with the given producers.
func New(layout *store.Layout, runner Runner, renderer Renderer, archiver Archiver, opts ...Option) (*Coordinator, error) {
	if layout == nil {
		return nil, errors.New("arrhenius: layout is nil")
	}
	if runner == nil {
		return nil, errors.New("arrhenius: runner is nil")
	}
	if renderer == nil {
		return nil, errors.New("arrhenius: renderer is nil")
	}
	if archiver == nil {
		return nil, errors.New("arrhenius: archiver is nil")
	}
	c := &Coordinator{
		layout:   layout,
		runner:   runner,
		renderer: renderer,
		archiver: archiver,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(c)
	}
	return c, nil
}

func (c *Coordinator) log() *slog.Logger {
	if c.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.logger
}

// imageGuard returns the mutex for runID's image subsystem.
func (c *Coordinator) imageGuard(runID string) *sync.Mutex {
	if mu, ok := c.guards.Load(runID); ok {
		return mu.(*sync.Mutex)
	}
	mu, _ := c.guards.LoadOrStore(runID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// EnsureDataset guarantees the dataset for cfg is on disk, running the
// simulation only when it is absent. Returns the run directory and
// whether a simulation run was required.
//
// Concurrent calls for the same configuration share one run: the
// first caller computes, the rest wait and observe the same result.
// Whatever a run leaves at the canonical path is trusted as complete;
// the coordinator performs no validation, retries or cleanup.
func (c *Coordinator) EnsureDataset(ctx context.Context, cfg *config.Config) (string, bool, error) {
	runID := cfg.RunID()
	runDir := c.layout.RunDir(runID)
	dsPath := c.layout.DatasetPath(runID)

	if c.layout.Exists(dsPath) {
		c.log().Debug("dataset cache hit", "run_id", runID)
		return runDir, false, nil
	}

	v, err, shared := c.runs.Do(runID, func() (any, error) {
		// Re-check under the guard: the dataset may have appeared
		// between the miss above and this flight starting.
		if c.layout.Exists(dsPath) {
			return false, nil
		}
		c.log().Info("dataset cache miss, running simulation", "run_id", runID)
		if err := c.runner.Run(ctx, cfg); err != nil {
			return false, err
		}
		return true, nil
	})
	if err != nil {
		return "", false, fmt.Errorf("arrhenius: simulation for %s: %w", runID, err)
	}

	ran := v.(bool)
	if ran && shared {
		c.log().Debug("dataset computation shared", "run_id", runID)
	}
	return runDir, ran, nil
}

// EnsureImage guarantees the requested image(s) for one variable are
// on disk. The dataset under datasetDir must already exist; EnsureImage
// never launches a simulation and reports ErrDatasetMissing when the
// precondition does not hold.
//
// A nil segment produces every time segment plus the cross-time
// average (segment 0); already-present segments are skipped. Returns
// the image directory and whether any rendering happened.
func (c *Coordinator) EnsureImage(ctx context.Context, datasetDir, variable string, segment *int, cfg *config.Config) (string, bool, error) {
	runID := cfg.RunID()

	mu := c.imageGuard(runID)
	mu.Lock()
	defer mu.Unlock()

	return c.ensureImageLocked(ctx, datasetDir, runID, variable, segment, cfg.Scale)
}

func (c *Coordinator) ensureImageLocked(ctx context.Context, datasetDir, runID, variable string, segment *int, scale config.Scale) (string, bool, error) {
	dsPath := filepath.Join(datasetDir, store.DatasetFileName(runID))
	if !c.layout.Exists(dsPath) {
		return "", false, fmt.Errorf("%w: %s", ErrDatasetMissing, dsPath)
	}

	imgDir, err := c.layout.ImageDir(runID, variable, scale, true)
	if err != nil {
		return "", false, err
	}

	created, err := c.renderer.Render(ctx, dsPath, variable, segment, imgDir, scale)
	if err != nil {
		return "", false, err
	}
	return imgDir, created, nil
}

// EnsureArchive guarantees the archive bundling every image of one
// variable is on disk. On a miss it first ensures all of the
// variable's images, then packages them; the dataset must already
// exist. Returns the archive path and whether the archive was built.
func (c *Coordinator) EnsureArchive(ctx context.Context, datasetDir, variable string, cfg *config.Config) (string, bool, error) {
	runID := cfg.RunID()
	archivePath := c.layout.ArchivePath(runID, variable, cfg.Scale)

	mu := c.imageGuard(runID)
	mu.Lock()
	defer mu.Unlock()

	if c.layout.Exists(archivePath) {
		c.log().Debug("archive cache hit", "run_id", runID, "variable", variable)
		return archivePath, false, nil
	}

	imgDir, _, err := c.ensureImageLocked(ctx, datasetDir, runID, variable, nil, cfg.Scale)
	if err != nil {
		return "", false, err
	}

	c.log().Info("building archive", "run_id", runID, "variable", variable)
	if err := c.archiver.Archive(imgDir, archivePath); err != nil {
		return "", false, fmt.Errorf("arrhenius: archive %s/%s: %w", runID, variable, err)
	}
	return archivePath, true, nil
}
