package analysis

import (
	"errors"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/blochsim/internal/sim"
)

var ErrShortTrace = errors.New("trace too short")

// Spectra is a frequency-ordered spectrum, most negative frequency first.
type Spectra struct {
	Freq      []float64
	Magnitude []float64
	Phase     []float64
}

// Spectrum transforms the transverse signal of a trace. Samples are taken as
// equally spaced at the trace's mean interval; a jittered trace is smeared
// accordingly. With window set a Hann window is applied first.
func Spectrum(trace []sim.Sample, window bool) (*Spectra, error) {
	n := len(trace)
	if n < 4 {
		return nil, ErrShortTrace
	}
	dt := (trace[n-1].T - trace[0].T) / float64(n-1)
	if !(dt > 0) {
		return nil, ErrShortTrace
	}

	signal := make([]complex128, n)
	for i, s := range trace {
		w := 1.0
		if window {
			w = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
		}
		signal[i] = complex(w*s.M.X, w*s.M.Y)
	}
	bins := fft.FFT(signal)

	out := &Spectra{
		Freq:      make([]float64, n),
		Magnitude: make([]float64, n),
		Phase:     make([]float64, n),
	}
	df := 2 * math.Pi / (float64(n) * dt)
	half := n / 2
	for i := range out.Freq {
		k := i - half
		b := bins[(k+n)%n]
		out.Freq[i] = float64(k) * df
		out.Magnitude[i] = cmplx.Abs(b) / float64(n)
		out.Phase[i] = cmplx.Phase(b)
	}
	return out, nil
}

// Peak returns the frequency of the strongest bin.
func (s *Spectra) Peak() float64 {
	if len(s.Magnitude) == 0 {
		return 0
	}
	return s.Freq[floats.MaxIdx(s.Magnitude)]
}

// PeakFrequency is Spectrum followed by Peak.
func PeakFrequency(trace []sim.Sample) (float64, error) {
	spec, err := Spectrum(trace, true)
	if err != nil {
		return 0, err
	}
	return spec.Peak(), nil
}
