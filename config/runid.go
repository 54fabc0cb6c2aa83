package config

import (
	"encoding/json"

	"github.com/opencontainers/go-digest"
)

// identity is the canonical serialization used to derive the run id.
// Field order is fixed by the struct, so value-equal configurations
// always encode to identical bytes. Scale is deliberately absent: it
// changes how images are rendered, never what the simulation outputs.
type identity struct {
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
}

// RunID derives the stable identifier keying all artifacts computed
// from this configuration. The id is the hex encoding of the canonical
// digest of the canonical serialization: deterministic across process
// restarts, injective over output-affecting fields, and safe to use as
// a path component.
func (c *Config) RunID() string {
	id := identity{
		CO2From:        c.CO2From,
		CO2To:          c.CO2To,
		Year:           c.Year,
		Grid:           c.Grid,
		Layers:         c.Layers,
		Iters:          c.Iters,
		AggregateLat:   c.AggregateLat,
		AggregateLevel: c.AggregateLevel,
		TempSrc:        c.TempSrc,
		HumiditySrc:    c.HumiditySrc,
		AlbedoSrc:      c.AlbedoSrc,
		PressureSrc:    c.PressureSrc,
		AbsorbanceSrc:  c.AbsorbanceSrc,
		CO2Weight:      c.CO2Weight,
		H2OWeight:      c.H2OWeight,
	}
	// Marshal cannot fail for this shape.
	data, _ := json.Marshal(id)
	return digest.Canonical.FromBytes(data).Encoded()
}
