package metrics

import (
	"math"

	"github.com/san-kum/blochsim/internal/bloch"
)

// Signal is the peak transverse magnetization of the sample, normalized by
// the number of isochromats.
type Signal struct {
	name string
	peak float64
}

func NewSignal() *Signal {
	return &Signal{name: "peak_signal"}
}

func (s *Signal) Name() string { return s.name }

func (s *Signal) Observe(r bloch.Readout) {
	if len(r.Isochromats) == 0 {
		return
	}
	mxy := math.Hypot(r.Msum.X, r.Msum.Y) / float64(len(r.Isochromats))
	s.peak = math.Max(s.peak, mxy)
}

func (s *Signal) Value() float64 { return s.peak }

func (s *Signal) Reset() { s.peak = 0 }

// Longitudinal is the mean normalized Mz of the sample over the run.
type Longitudinal struct {
	name    string
	sum     float64
	samples int
}

func NewLongitudinal() *Longitudinal {
	return &Longitudinal{name: "mean_mz"}
}

func (l *Longitudinal) Name() string { return l.name }

func (l *Longitudinal) Observe(r bloch.Readout) {
	if len(r.Isochromats) == 0 {
		return
	}
	l.sum += r.Msum.Z / float64(len(r.Isochromats))
	l.samples++
}

func (l *Longitudinal) Value() float64 {
	if l.samples == 0 {
		return 0
	}
	return l.sum / float64(l.samples)
}

func (l *Longitudinal) Reset() {
	l.sum = 0
	l.samples = 0
}
