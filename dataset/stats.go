package dataset

import "math"

// Statistics over gridded values. Cells holding NaN mark missing data
// and never contribute to sums, counts or moments.

// sumValid reduces a value slice to the sum of its valid cells and the
// number of valid cells, applying modifier to each cell first. The
// reduction walks the flattened time x latitude x longitude layout
// cell by cell; the scalar cell is the base case, and NaN cells
// contribute nothing.
func sumValid(values []float64, modifier func(float64) float64) (sum float64, valid int) {
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		sum += modifier(v)
		valid++
	}
	return sum, valid
}

func identity(v float64) float64 { return v }
func square(v float64) float64   { return v * v }

// Mean returns the average of all valid cells, or NaN when no cell is
// valid.
func Mean(values []float64) float64 {
	sum, valid := sumValid(values, identity)
	if valid == 0 {
		return math.NaN()
	}
	return sum / float64(valid)
}

// Variance returns the second raw moment of all valid cells, or NaN
// when no cell is valid.
func Variance(values []float64) float64 {
	sumSquares, valid := sumValid(values, square)
	if valid == 0 {
		return math.NaN()
	}
	return sumSquares / float64(valid)
}

// StdDev returns the square root of Variance.
func StdDev(values []float64) float64 {
	return math.Sqrt(Variance(values))
}

// BandTable reduces one variable to a latitude-band by time-segment
// table of longitude averages. Row index counts latitude bands from
// the south pole; column index is the time segment. A band with no
// valid cells in a segment holds NaN.
func BandTable(d *Dataset, name string) ([][]float64, error) {
	values, ok := d.vars[name]
	if !ok {
		return nil, ErrUnknownVariable
	}
	shape := d.shape
	table := make([][]float64, shape.Lat)
	for band := range shape.Lat {
		row := make([]float64, shape.Segments)
		for seg := range shape.Segments {
			start := seg*shape.Lat*shape.Lon + band*shape.Lon
			row[seg] = Mean(values[start : start+shape.Lon])
		}
		table[band] = row
	}
	return table, nil
}
