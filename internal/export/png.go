// Package export renders run traces and spectra as image files.
package export

import (
	"errors"
	"image/color"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	_ "gonum.org/v1/plot/vg/vgimg"

	"github.com/san-kum/blochsim/internal/analysis"
	"github.com/san-kum/blochsim/internal/sim"
)

var ErrEmptyTrace = errors.New("nothing to plot")

const (
	width  = 8 * vg.Inch
	height = 4 * vg.Inch
)

var (
	colorMx  = color.RGBA{R: 0xe6, G: 0x4a, B: 0x19, A: 0xff}
	colorMy  = color.RGBA{R: 0x1e, G: 0x88, B: 0xe5, A: 0xff}
	colorMz  = color.RGBA{R: 0x43, G: 0xa0, B: 0x47, A: 0xff}
	colorMxy = color.RGBA{R: 0x20, G: 0x20, B: 0x20, A: 0xff}
	colorRF  = color.RGBA{R: 0x8e, G: 0x24, B: 0xaa, A: 0xff}
)

type series struct {
	name  string
	color color.Color
	value func(sim.Sample) float64
}

var traceSeries = []series{
	{"Mx", colorMx, func(s sim.Sample) float64 { return s.M.X }},
	{"My", colorMy, func(s sim.Sample) float64 { return s.M.Y }},
	{"Mz", colorMz, func(s sim.Sample) float64 { return s.M.Z }},
	{"|Mxy|", colorMxy, func(s sim.Sample) float64 { return math.Hypot(s.M.X, s.M.Y) }},
	{"|B1|", colorRF, func(s sim.Sample) float64 { return s.RFMag }},
}

// TracePlot plots the normalized magnetization components and the RF
// magnitude against time.
func TracePlot(title string, trace []sim.Sample) (*plot.Plot, error) {
	if len(trace) < 2 {
		return nil, ErrEmptyTrace
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "t"
	p.Y.Label.Text = "M / M0"
	p.Add(plotter.NewGrid())

	for _, s := range traceSeries {
		xys := make(plotter.XYs, len(trace))
		for i, smp := range trace {
			xys[i].X = smp.T
			xys[i].Y = s.value(smp)
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return nil, err
		}
		line.Color = s.color
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(s.name, line)
	}
	p.Legend.Top = true
	return p, nil
}

// SpectrumPlot plots the magnitude of a spectrum against angular frequency.
func SpectrumPlot(title string, spec *analysis.Spectra) (*plot.Plot, error) {
	if spec == nil || len(spec.Freq) < 2 {
		return nil, ErrEmptyTrace
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "ω (rad/t)"
	p.Y.Label.Text = "|S(ω)|"
	p.Add(plotter.NewGrid())

	xys := make(plotter.XYs, len(spec.Freq))
	for i := range xys {
		xys[i].X = spec.Freq[i]
		xys[i].Y = spec.Magnitude[i]
	}
	line, err := plotter.NewLine(xys)
	if err != nil {
		return nil, err
	}
	line.Color = colorMy
	p.Add(line)
	return p, nil
}

// Write renders p in the given format ("png", "svg", "pdf", ...).
func Write(w io.Writer, p *plot.Plot, format string) error {
	wt, err := p.WriterTo(width, height, format)
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}

// Save renders p to path, choosing the format from the extension.
func Save(path string, p *plot.Plot) error {
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if format == "" {
		format = "png"
		path += ".png"
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(f, p, format); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
