package render

import (
	"image"
	"image/color"
	"image/png"
	"io"
	"math"

	"github.com/ahurka/Arrhenius/config"
	"github.com/ahurka/Arrhenius/dataset"
)

// PNGPainter renders a grid as a PNG heat map on a blue-to-red
// diverging ramp clamped to the color-scale bounds. Missing cells are
// transparent. One grid cell maps to a CellSize x CellSize pixel
// block; latitude band 0 (southernmost) is the bottom row.
type PNGPainter struct {
	// CellSize is the pixel edge length per grid cell. Zero means 4.
	CellSize int
}

func (p *PNGPainter) cellSize() int {
	if p.CellSize <= 0 {
		return 4
	}
	return p.CellSize
}

// Paint implements Painter.
func (p *PNGPainter) Paint(g *dataset.Grid, scale config.Scale, w io.Writer) error {
	cell := p.cellSize()
	img := image.NewNRGBA(image.Rect(0, 0, g.Lon*cell, g.Lat*cell))

	for lat := 0; lat < g.Lat; lat++ {
		// Flip so the southernmost band renders at the bottom.
		y0 := (g.Lat - 1 - lat) * cell
		for lon := 0; lon < g.Lon; lon++ {
			c := rampColor(g.At(lat, lon), scale)
			x0 := lon * cell
			for dy := 0; dy < cell; dy++ {
				for dx := 0; dx < cell; dx++ {
					img.SetNRGBA(x0+dx, y0+dy, c)
				}
			}
		}
	}
	return png.Encode(w, img)
}

// rampColor maps a value onto the diverging ramp: scale.Min is full
// blue, the midpoint white, scale.Max full red. Values outside the
// bounds clamp to the endpoints.
func rampColor(v float64, scale config.Scale) color.NRGBA {
	if math.IsNaN(v) {
		return color.NRGBA{}
	}
	t := (v - scale.Min) / (scale.Max - scale.Min)
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	if t < 0.5 {
		// Blue toward white.
		f := t * 2
		return color.NRGBA{
			R: uint8(255 * f),
			G: uint8(255 * f),
			B: 255,
			A: 255,
		}
	}
	// White toward red.
	f := (t - 0.5) * 2
	return color.NRGBA{
		R: 255,
		G: uint8(255 * (1 - f)),
		B: uint8(255 * (1 - f)),
		A: 255,
	}
}
