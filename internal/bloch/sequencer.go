package bloch

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
)

const (
	tagRepeatPulse = "repeat-pulse"
	tagRepeatSpoil = "repeat-spoil"
	tagRepeatStart = "repeat-start"
)

// Repetition describes a periodic excitation train. Pulse i of the phase
// cycle fires at i*TR and then every TR*len(PhaseCycle).
type Repetition struct {
	TR         float64
	FlipAngle  float64
	PhaseCycle []float64
	Spoil      bool
	// Amplitude of the rect pulses; 0 selects the default amplitude.
	Amplitude float64
}

func (r Repetition) validate() error {
	switch {
	case !(r.TR > 0) || math.IsInf(r.TR, 0):
		return fmt.Errorf("%w: TR %g", ErrInvalidRepetition, r.TR)
	case len(r.PhaseCycle) == 0:
		return fmt.Errorf("%w: empty phase cycle", ErrInvalidRepetition)
	case !(r.FlipAngle > 0) || math.IsInf(r.FlipAngle, 0):
		return fmt.Errorf("%w: %w", ErrInvalidRepetition, ErrInvalidAngle)
	case r.Amplitude < 0 || math.IsInf(r.Amplitude, 0) || math.IsNaN(r.Amplitude):
		return fmt.Errorf("%w: %w", ErrInvalidRepetition, ErrInvalidAmplitude)
	}
	for _, p := range r.PhaseCycle {
		if !finite(p) {
			return fmt.Errorf("%w: phase %g", ErrInvalidRepetition, p)
		}
	}
	return nil
}

// SpoilOffset is when, within each repetition, spoiling starts. Planar
// samples start spoiling earlier.
func (s *Sim) SpoilOffset(tr float64) float64 {
	off := tr - s.tuning.SpoilDuration - s.tuning.RepeatSpoilMargin
	if s.Planar {
		off -= s.tuning.PlanarSpoilMargin
	}
	return off
}

// StartRepetition replaces any running repetition with r.
func (s *Sim) StartRepetition(r Repetition) error {
	if err := r.validate(); err != nil {
		return err
	}
	amp := r.Amplitude
	if amp == 0 {
		amp = s.tuning.DefaultAmplitude
	}
	s.StopRepetition()

	cycle := make([]float64, len(r.PhaseCycle))
	copy(cycle, r.PhaseCycle)
	period := r.TR * float64(len(cycle))
	for i, phase := range cycle {
		s.Every(float64(i)*r.TR, period, tagRepeatPulse, func(s *Sim) {
			if err := s.IssueRFPulse(Rect, r.FlipAngle, phase, amp); err != nil {
				s.log.WithError(err).Warn("repeated pulse rejected")
			}
		})
	}
	if r.Spoil {
		s.Every(s.SpoilOffset(r.TR), r.TR, tagRepeatSpoil, (*Sim).Spoil)
	}

	s.log.WithFields(logrus.Fields{
		"tr":     r.TR,
		"angle":  r.FlipAngle,
		"cycle":  len(cycle),
		"spoil":  r.Spoil,
		"period": period,
	}).Debug("repetition started")
	return nil
}

// StopRepetition cancels all pending repeated pulses and spoils.
func (s *Sim) StopRepetition() {
	s.Cancel(tagRepeatPulse)
	s.Cancel(tagRepeatSpoil)
	s.Cancel(tagRepeatStart)
}

// Repeating reports whether a repetition is scheduled.
func (s *Sim) Repeating() bool {
	return s.Pending(tagRepeatPulse) || s.Pending(tagRepeatStart)
}

// StartSpinEcho excites with a 90° x pulse now and starts a train of 180° y
// refocusing pulses every es seconds, the first one es/2 later.
func (s *Sim) StartSpinEcho(es float64) error {
	echo := Repetition{TR: es, FlipAngle: math.Pi, PhaseCycle: []float64{-math.Pi / 2}, Amplitude: 8}
	if err := echo.validate(); err != nil {
		return err
	}
	s.StopRepetition()
	if err := s.IssueRFPulse(Rect, math.Pi/2, math.Pi, s.tuning.DefaultAmplitude); err != nil {
		return err
	}
	s.Schedule(es/2, tagRepeatStart, func(s *Sim) {
		if err := s.StartRepetition(echo); err != nil {
			s.log.WithError(err).Warn("echo train rejected")
		}
	})
	return nil
}
