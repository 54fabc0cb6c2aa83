// Package config defines the simulation configuration and derives the
// stable run identity that keys all cached artifacts.
//
// A Config is parsed once per request from untrusted JSON, validated,
// and immutable afterwards. Only its derived run id and the artifacts
// computed from it are ever persisted.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strconv"
)

// Aggregation selects when gridded values are collapsed along an axis.
type Aggregation string

const (
	AggregateBefore Aggregation = "before"
	AggregateAfter  Aggregation = "after"
	AggregateNone   Aggregation = "none"
)

// Weight selects how tabulated absorption coefficients are interpolated.
type Weight string

const (
	WeightClosest Weight = "closest"
	WeightLow     Weight = "low"
	WeightHigh    Weight = "high"
	WeightMean    Weight = "mean"
)

// GridRepr says whether grid dimensions count cells or give cell widths
// in degrees.
type GridRepr string

const (
	GridReprCount GridRepr = "count"
	GridReprWidth GridRepr = "width"
)

// Grid describes the spatial resolution of a run.
type Grid struct {
	Lat  int      `json:"lat"`
	Lon  int      `json:"lon"`
	Repr GridRepr `json:"repr"`
}

// Scale holds the color-scale bounds used when rendering images.
// Scale affects image and archive identity but never the run id,
// since it has no influence on simulation output.
type Scale struct {
	Min float64
	Max float64
}

// DefaultScale is used when a request omits color-scale bounds.
var DefaultScale = Scale{Min: -5, Max: 5}

// Suffix returns the directory/file name component for the scale,
// e.g. "[-5x5]".
func (s Scale) Suffix() string {
	return "[" + formatBound(s.Min) + "x" + formatBound(s.Max) + "]"
}

func formatBound(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Config is an immutable, validated set of simulation parameters.
//
// Two value-equal Configs always derive the same run id; any field
// that affects simulation output contributes to the id.
type Config struct {
	CO2From        []float64   `json:"co2_from"`
	CO2To          []float64   `json:"co2_to"`
	Year           int         `json:"year"`
	Grid           Grid        `json:"grid"`
	Layers         int         `json:"layers"`
	Iters          int         `json:"iters"`
	AggregateLat   Aggregation `json:"aggregate_lat"`
	AggregateLevel Aggregation `json:"aggregate_level"`
	TempSrc        string      `json:"temp_src"`
	HumiditySrc    string      `json:"humidity_src"`
	AlbedoSrc      string      `json:"albedo_src"`
	PressureSrc    string      `json:"pressure_src"`
	AbsorbanceSrc  string      `json:"absorbance_src"`
	CO2Weight      Weight      `json:"co2_weight"`
	H2OWeight      Weight      `json:"h2o_weight"`
	Scale          Scale       `json:"-"`
}

// wire is the request-body shape accepted by Parse. It mirrors the
// template served by Example.
type wire struct {
	CO2 struct {
		From []float64 `json:"from"`
		To   []float64 `json:"to"`
	} `json:"co2"`
	Year           int         `json:"year"`
	Grid           wireGrid    `json:"grid"`
	Layers         int         `json:"layers"`
	Iters          int         `json:"iters"`
	AggregateLat   Aggregation `json:"aggregate_lat"`
	AggregateLevel Aggregation `json:"aggregate_level"`
	TempSrc        string      `json:"temp_src"`
	HumiditySrc    string      `json:"humidity_src"`
	AlbedoSrc      string      `json:"albedo_src"`
	PressureSrc    string      `json:"pressure_src"`
	AbsorbanceSrc  string      `json:"absorbance_src"`
	CO2Weight      Weight      `json:"CO2_weight"`
	H2OWeight      Weight      `json:"H2O_weight"`
	Scale          []float64   `json:"scale"`
}

type wireGrid struct {
	Dims struct {
		Lat int `json:"lat"`
		Lon int `json:"lon"`
	} `json:"dims"`
	Repr GridRepr `json:"repr"`
}

// ValidationError reports a malformed or out-of-range configuration.
// It is a client fault at the transport boundary.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "config: invalid field " + e.Field + ": " + e.Reason
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// Parse decodes and validates a configuration from a JSON request body.
// All failures are reported as *ValidationError.
func Parse(data []byte) (*Config, error) {
	var w wire
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&w); err != nil {
		return nil, &ValidationError{Field: "body", Reason: err.Error()}
	}
	// One JSON document per request body.
	if err := dec.Decode(new(json.RawMessage)); !errors.Is(err, io.EOF) {
		return nil, invalid("body", "trailing data after configuration")
	}

	cfg := &Config{
		CO2From:        w.CO2.From,
		CO2To:          w.CO2.To,
		Year:           w.Year,
		Grid:           Grid{Lat: w.Grid.Dims.Lat, Lon: w.Grid.Dims.Lon, Repr: w.Grid.Repr},
		Layers:         w.Layers,
		Iters:          w.Iters,
		AggregateLat:   w.AggregateLat,
		AggregateLevel: w.AggregateLevel,
		TempSrc:        w.TempSrc,
		HumiditySrc:    w.HumiditySrc,
		AlbedoSrc:      w.AlbedoSrc,
		PressureSrc:    w.PressureSrc,
		AbsorbanceSrc:  w.AbsorbanceSrc,
		CO2Weight:      w.CO2Weight,
		H2OWeight:      w.H2OWeight,
	}
	switch len(w.Scale) {
	case 0:
		cfg.Scale = DefaultScale
	case 2:
		cfg.Scale = Scale{Min: w.Scale[0], Max: w.Scale[1]}
	default:
		return nil, invalid("scale", "expected [min, max]")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.CO2From) == 0 {
		return invalid("co2.from", "at least one ratio required")
	}
	if len(c.CO2To) == 0 {
		return invalid("co2.to", "at least one ratio required")
	}
	for _, r := range append(append([]float64{}, c.CO2From...), c.CO2To...) {
		if r <= 0 {
			return invalid("co2", "ratios must be positive")
		}
	}
	if c.Grid.Lat <= 0 || c.Grid.Lat > 180 {
		return invalid("grid.dims.lat", "must be in (0, 180]")
	}
	if c.Grid.Lon <= 0 || c.Grid.Lon > 360 {
		return invalid("grid.dims.lon", "must be in (0, 360]")
	}
	switch c.Grid.Repr {
	case GridReprCount, GridReprWidth:
	default:
		return invalid("grid.repr", "must be count or width")
	}
	if c.Layers < 1 {
		return invalid("layers", "must be >= 1")
	}
	if c.Iters < 0 {
		return invalid("iters", "must be >= 0")
	}
	if err := validAggregation("aggregate_lat", c.AggregateLat); err != nil {
		return err
	}
	if err := validAggregation("aggregate_level", c.AggregateLevel); err != nil {
		return err
	}
	switch c.AbsorbanceSrc {
	case "table", "modern", "multilayer":
	default:
		return invalid("absorbance_src", "must be table, modern or multilayer")
	}
	if err := validWeight("CO2_weight", c.CO2Weight); err != nil {
		return err
	}
	if err := validWeight("H2O_weight", c.H2OWeight); err != nil {
		return err
	}
	if c.Scale.Min >= c.Scale.Max {
		return invalid("scale", "min must be below max")
	}
	for _, f := range []struct{ name, v string }{
		{"temp_src", c.TempSrc},
		{"humidity_src", c.HumiditySrc},
		{"albedo_src", c.AlbedoSrc},
		{"pressure_src", c.PressureSrc},
	} {
		if f.v == "" {
			return invalid(f.name, "data source required")
		}
	}
	return nil
}

func validAggregation(field string, a Aggregation) error {
	switch a {
	case AggregateBefore, AggregateAfter, AggregateNone:
		return nil
	default:
		return invalid(field, "must be before, after or none")
	}
}

func validWeight(field string, w Weight) error {
	switch w {
	case WeightClosest, WeightLow, WeightHigh, WeightMean:
		return nil
	default:
		return invalid(field, "must be closest, low, high or mean")
	}
}

// Example returns a template describing acceptable configuration
// values, served to clients asking for help composing a request.
func Example() map[string]any {
	return map[string]any{
		"co2": map[string]any{
			"from": []float64{1},
			"to":   []float64{0.67, 1.0, 1.5, 2.0, 2.5, 3.0},
		},
		"year": "int",
		"grid": map[string]any{
			"dims": map[string]string{
				"lat": "(0, 180]",
				"lon": "(0, 360]",
			},
			"repr": []string{"count", "width"},
		},
		"layers":          "<int >= 1>",
		"iters":           "<int >= 0>",
		"aggregate_lat":   []string{"before", "after", "none"},
		"aggregate_level": []string{"before", "after", "none"},
		"temp_src":        "string",
		"humidity_src":    "string",
		"albedo_src":      "string",
		"pressure_src":    "string",
		"absorbance_src":  []string{"table", "modern", "multilayer"},
		"CO2_weight":      []string{"closest", "low", "high", "mean"},
		"H2O_weight":      []string{"closest", "low", "high", "mean"},
		"scale":           []string{"<number>", "<number>"},
	}
}
