//go:generate flatc --go --go-namespace fb -o internal schema/dataset.fbs

// Package dataset models the output of one simulation run: per-variable
// gridded values over a fixed time x latitude x longitude shape, stored
// on disk as a zstd-framed FlatBuffers blob.
//
// A dataset is immutable once written. A configuration that would
// produce different values produces a different run id and therefore a
// different dataset file.
package dataset

import (
	"errors"
	"fmt"
	"math"
)

// Sentinel errors.
var (
	// ErrUnknownVariable is returned when a dataset does not contain
	// the requested variable.
	ErrUnknownVariable = errors.New("dataset: unknown variable")

	// ErrSegmentRange is returned for a time segment outside the
	// dataset's range.
	ErrSegmentRange = errors.New("dataset: time segment out of range")

	// ErrCorrupt is returned when a dataset file cannot be decoded.
	ErrCorrupt = errors.New("dataset: corrupt dataset file")
)

// Shape is the fixed dimension contract for all gridded values:
// time segments first, then latitude bands south to north, then
// longitude cells.
type Shape struct {
	Segments int
	Lat      int
	Lon      int
}

func (s Shape) cells() int {
	return s.Segments * s.Lat * s.Lon
}

// Grid is one latitude x longitude slice of a variable. Missing cells
// hold NaN.
type Grid struct {
	Lat    int
	Lon    int
	Values []float64
}

// At returns the value at one latitude band and longitude cell.
// Band 0 is the southernmost.
func (g *Grid) At(lat, lon int) float64 {
	return g.Values[lat*g.Lon+lon]
}

// Dataset holds every variable produced by one simulation run.
type Dataset struct {
	runID string
	shape Shape
	vars  map[string][]float64
	names []string
}

// New creates an empty dataset for runID with the given shape.
func New(runID string, shape Shape) *Dataset {
	return &Dataset{
		runID: runID,
		shape: shape,
		vars:  make(map[string][]float64),
	}
}

// RunID returns the run id the dataset was computed for.
func (d *Dataset) RunID() string { return d.runID }

// Shape returns the dataset's dimension contract.
func (d *Dataset) Shape() Shape { return d.shape }

// Variables returns the variable names in insertion order.
func (d *Dataset) Variables() []string {
	out := make([]string, len(d.names))
	copy(out, d.names)
	return out
}

// SetVariable stores values for one variable. The slice length must
// match the dataset shape.
func (d *Dataset) SetVariable(name string, values []float64) error {
	if len(values) != d.shape.cells() {
		return fmt.Errorf("dataset: variable %s: got %d values, shape wants %d",
			name, len(values), d.shape.cells())
	}
	if _, ok := d.vars[name]; !ok {
		d.names = append(d.names, name)
	}
	d.vars[name] = values
	return nil
}

// Segment returns one variable's grid at time segment seg, where seg
// counts from 1. The returned grid shares the dataset's backing array
// and must not be modified.
func (d *Dataset) Segment(name string, seg int) (*Grid, error) {
	values, ok := d.vars[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownVariable, name)
	}
	if seg < 1 || seg > d.shape.Segments {
		return nil, fmt.Errorf("%w: %d of %d", ErrSegmentRange, seg, d.shape.Segments)
	}
	stride := d.shape.Lat * d.shape.Lon
	start := (seg - 1) * stride
	return &Grid{
		Lat:    d.shape.Lat,
		Lon:    d.shape.Lon,
		Values: values[start : start+stride],
	}, nil
}

// Average returns one variable's grid averaged across all time
// segments. Cells that are NaN in a segment do not contribute to that
// cell's average; a cell missing in every segment stays NaN.
func (d *Dataset) Average(name string) (*Grid, error) {
	values, ok := d.vars[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownVariable, name)
	}
	stride := d.shape.Lat * d.shape.Lon
	out := make([]float64, stride)
	for cell := range stride {
		sum := 0.0
		valid := 0
		for seg := 0; seg < d.shape.Segments; seg++ {
			v := values[seg*stride+cell]
			if math.IsNaN(v) {
				continue
			}
			sum += v
			valid++
		}
		if valid == 0 {
			out[cell] = math.NaN()
		} else {
			out[cell] = sum / float64(valid)
		}
	}
	return &Grid{Lat: d.shape.Lat, Lon: d.shape.Lon, Values: out}, nil
}
