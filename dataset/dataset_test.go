package dataset

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testShape = Shape{Segments: 3, Lat: 2, Lon: 2}

// buildDataset fills one variable with values equal to
// 100*segment + cell index, segment counted from 1.
func buildDataset(t *testing.T) *Dataset {
	t.Helper()

	d := New("testrun", testShape)
	values := make([]float64, 0, testShape.cells())
	for seg := 1; seg <= testShape.Segments; seg++ {
		for cell := 0; cell < testShape.Lat*testShape.Lon; cell++ {
			values = append(values, float64(100*seg+cell))
		}
	}
	require.NoError(t, d.SetVariable("temperature", values))
	return d
}

func TestSetVariableShapeMismatch(t *testing.T) {
	t.Parallel()

	d := New("r", testShape)
	err := d.SetVariable("temperature", []float64{1, 2, 3})
	require.Error(t, err)
}

func TestSegment(t *testing.T) {
	t.Parallel()

	d := buildDataset(t)

	g, err := d.Segment("temperature", 2)
	require.NoError(t, err)
	assert.Equal(t, 200.0, g.At(0, 0))
	assert.Equal(t, 203.0, g.At(1, 1))

	_, err = d.Segment("temperature", 0)
	assert.ErrorIs(t, err, ErrSegmentRange)
	_, err = d.Segment("temperature", 4)
	assert.ErrorIs(t, err, ErrSegmentRange)
	_, err = d.Segment("pressure", 1)
	assert.ErrorIs(t, err, ErrUnknownVariable)
}

func TestAverage(t *testing.T) {
	t.Parallel()

	d := buildDataset(t)

	g, err := d.Average("temperature")
	require.NoError(t, err)
	// Cell 0 averages 100, 200, 300.
	assert.InDelta(t, 200.0, g.At(0, 0), 1e-9)
	// Cell 3 averages 103, 203, 303.
	assert.InDelta(t, 203.0, g.At(1, 1), 1e-9)
}

func TestAverageSkipsMissingCells(t *testing.T) {
	t.Parallel()

	shape := Shape{Segments: 2, Lat: 1, Lon: 2}
	d := New("r", shape)
	require.NoError(t, d.SetVariable("temperature", []float64{
		1, math.NaN(), // segment 1
		3, math.NaN(), // segment 2
	}))

	g, err := d.Average("temperature")
	require.NoError(t, err)
	assert.InDelta(t, 2.0, g.At(0, 0), 1e-9)
	assert.True(t, math.IsNaN(g.At(0, 1)), "cell missing everywhere stays missing")
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	d := buildDataset(t)
	require.NoError(t, d.SetVariable("humidity", Fill(testShape, 0.5)))

	data, err := Encode(d)
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)

	assert.Equal(t, "testrun", got.RunID())
	assert.Equal(t, testShape, got.Shape())
	assert.Equal(t, []string{"temperature", "humidity"}, got.Variables())

	g, err := got.Segment("temperature", 3)
	require.NoError(t, err)
	assert.Equal(t, 302.0, g.At(1, 0))

	h, err := got.Segment("humidity", 1)
	require.NoError(t, err)
	assert.Equal(t, 0.5, h.At(0, 0))
}

func TestEncodePreservesNaN(t *testing.T) {
	t.Parallel()

	d := New("r", Shape{Segments: 1, Lat: 1, Lon: 2})
	require.NoError(t, d.SetVariable("temperature", []float64{math.NaN(), 1.5}))

	data, err := Encode(d)
	require.NoError(t, err)
	got, err := Decode(data)
	require.NoError(t, err)

	g, err := got.Segment("temperature", 1)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(g.At(0, 0)))
	assert.Equal(t, 1.5, g.At(0, 1))
}

func TestDecodeCorrupt(t *testing.T) {
	t.Parallel()

	_, err := Decode([]byte("not a dataset"))
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestReadFile(t *testing.T) {
	t.Parallel()

	d := buildDataset(t)
	data, err := Encode(d)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "testrun.arr")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	got, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "testrun", got.RunID())

	_, err = ReadFile(filepath.Join(t.TempDir(), "absent.arr"))
	require.Error(t, err)
}
