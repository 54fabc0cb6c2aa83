package render

import (
	"context"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahurka/Arrhenius/config"
	"github.com/ahurka/Arrhenius/dataset"
	"github.com/ahurka/Arrhenius/store"
)

var testScale = config.Scale{Min: -5, Max: 5}

const testRunID = "run1"

// writeTestDataset stores a 3-segment dataset and returns its path and
// an image output directory.
func writeTestDataset(t *testing.T, vars ...string) (dsPath, imgDir string) {
	t.Helper()

	shape := dataset.Shape{Segments: 3, Lat: 2, Lon: 2}
	d := dataset.New(testRunID, shape)
	for _, v := range vars {
		require.NoError(t, d.SetVariable(v, dataset.Fill(shape, 1.0)))
	}
	data, err := dataset.Encode(d)
	require.NoError(t, err)

	dir := t.TempDir()
	dsPath = filepath.Join(dir, store.DatasetFileName(testRunID))
	require.NoError(t, os.WriteFile(dsPath, data, 0o600))

	imgDir = filepath.Join(dir, "images")
	require.NoError(t, os.MkdirAll(imgDir, 0o700))
	return dsPath, imgDir
}

// countingPainter records paints and writes a marker byte.
type countingPainter struct {
	paints atomic.Int64
}

func (p *countingPainter) Paint(g *dataset.Grid, scale config.Scale, w io.Writer) error {
	p.paints.Add(1)
	_, err := w.Write([]byte{0x89})
	return err
}

func segPtr(n int) *int { return &n }

func TestRenderSingleSegment(t *testing.T) {
	t.Parallel()

	dsPath, imgDir := writeTestDataset(t, "temperature")
	painter := &countingPainter{}
	r := New(painter)

	created, err := r.Render(context.Background(), dsPath, "temperature", segPtr(2), imgDir, testScale)
	require.NoError(t, err)
	assert.True(t, created)
	assert.EqualValues(t, 1, painter.paints.Load())

	assert.FileExists(t, filepath.Join(imgDir,
		store.ImageFileName(testRunID, "temperature", 2, testScale)))
}

func TestRenderFanOut(t *testing.T) {
	t.Parallel()

	dsPath, imgDir := writeTestDataset(t, "temperature")
	painter := &countingPainter{}
	r := New(painter, WithWorkers(4))

	created, err := r.Render(context.Background(), dsPath, "temperature", nil, imgDir, testScale)
	require.NoError(t, err)
	assert.True(t, created)

	// Segments 1..3 plus the average (segment 0).
	assert.EqualValues(t, 4, painter.paints.Load())
	entries, err := os.ReadDir(imgDir)
	require.NoError(t, err)
	assert.Len(t, entries, 4)
}

func TestRenderSkipsExistingSegments(t *testing.T) {
	t.Parallel()

	dsPath, imgDir := writeTestDataset(t, "temperature")
	painter := &countingPainter{}
	r := New(painter)

	// Render one segment, then ask for everything.
	_, err := r.Render(context.Background(), dsPath, "temperature", segPtr(2), imgDir, testScale)
	require.NoError(t, err)
	require.EqualValues(t, 1, painter.paints.Load())

	created, err := r.Render(context.Background(), dsPath, "temperature", nil, imgDir, testScale)
	require.NoError(t, err)
	assert.True(t, created, "missing segments were rendered")
	assert.EqualValues(t, 4, painter.paints.Load(), "segment 2 must not be re-rendered")

	// Everything present: a repeat does no work.
	created, err = r.Render(context.Background(), dsPath, "temperature", nil, imgDir, testScale)
	require.NoError(t, err)
	assert.False(t, created)
	assert.EqualValues(t, 4, painter.paints.Load())
}

func TestRenderUnknownVariable(t *testing.T) {
	t.Parallel()

	dsPath, imgDir := writeTestDataset(t, "temperature")
	r := New(&countingPainter{})

	_, err := r.Render(context.Background(), dsPath, "pressure", segPtr(1), imgDir, testScale)
	assert.ErrorIs(t, err, dataset.ErrUnknownVariable)
}

func TestRenderSegmentOutOfRange(t *testing.T) {
	t.Parallel()

	dsPath, imgDir := writeTestDataset(t, "temperature")
	r := New(&countingPainter{})

	_, err := r.Render(context.Background(), dsPath, "temperature", segPtr(9), imgDir, testScale)
	assert.ErrorIs(t, err, dataset.ErrSegmentRange)
}

func TestPNGPainter(t *testing.T) {
	t.Parallel()

	grid := &dataset.Grid{Lat: 2, Lon: 3, Values: []float64{-5, 0, 5, 1, -1, 2}}
	painter := &PNGPainter{CellSize: 2}

	path := filepath.Join(t.TempDir(), "out.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, painter.Paint(grid, testScale, f))
	require.NoError(t, f.Close())

	f, err = os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 6, img.Bounds().Dx())
	assert.Equal(t, 4, img.Bounds().Dy())
}
