package bloch

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
)

func (s *Sim) envelope(kind PulseKind, duration float64) Envelope {
	return Envelope{
		Kind:          kind,
		Duration:      duration,
		ZeroCrossings: s.tuning.SincZeroCrossings,
		Guard:         s.tuning.SincGuard,
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// IssueRFPulse starts an RF pulse rotating the sample by angle radians about
// the in-plane axis selected by phase. Any pulse in flight is replaced.
// On error the state is left untouched.
func (s *Sim) IssueRFPulse(kind PulseKind, angle, phase, amplitude float64) error {
	if kind != Rect && kind != Sinc {
		return fmt.Errorf("%w: %v", ErrUnknownPulseKind, kind)
	}
	if !(amplitude > 0) || math.IsInf(amplitude, 0) {
		return fmt.Errorf("%w: %g", ErrInvalidAmplitude, amplitude)
	}
	if !(angle > 0) || math.IsInf(angle, 0) || !finite(phase) {
		return fmt.Errorf("%w: angle %g phase %g", ErrInvalidAngle, angle, phase)
	}

	duration := angle / (s.Gamma * amplitude)
	if kind == Sinc {
		duration /= s.tuning.SincAreaCorrection
	}
	if !finite(duration) || duration <= 0 {
		return fmt.Errorf("%w: gamma %g amplitude %g", ErrNonFiniteDuration, s.Gamma, amplitude)
	}

	s.TSinceRF = 0
	s.AreaLeftRF = angle
	s.B1 = amplitude
	s.B1Freq = s.Gamma * s.B0
	// Half a mean step of carrier phase cancels the lag of sampling the
	// field at the start of each step.
	phase += s.B1Freq * s.Gamma * s.MeanDt() / 2
	s.FramePhase0 = s.FramePhase
	s.Phi1 = phase
	s.env = s.envelope(kind, duration)
	s.TLeftRF = duration

	s.log.WithFields(logrus.Fields{
		"kind":      kind.String(),
		"angle":     angle,
		"phase":     phase,
		"amplitude": amplitude,
		"duration":  duration,
	}).Debug("rf pulse issued")
	s.notify(SignalFields)
	return nil
}

// RFPulseActive reports whether an RF pulse is in flight.
func (s *Sim) RFPulseActive() bool {
	return s.B1 != 0 && s.TLeftRF > 0
}

// IssueGradientPulse starts a gradient pulse that dephases the sample by
// totalDephase radians per unit distance along direction (radians from
// the x axis, default 0). Any gradient pulse in flight is replaced.
func (s *Sim) IssueGradientPulse(totalDephase float64, direction ...float64) error {
	theta := 0.0
	if len(direction) > 0 {
		theta = direction[0]
	}
	if !finite(totalDephase) || !finite(theta) {
		return fmt.Errorf("%w: dephase %g direction %g", ErrInvalidGradient, totalDephase, theta)
	}
	area := totalDephase * s.tuning.GradScale / s.Gamma
	if !finite(area) {
		return fmt.Errorf("%w: gamma %g", ErrInvalidGradient, s.Gamma)
	}

	sin, cos := math.Sincos(theta)
	s.AreaLeftGrad = area
	s.Gx = cos * area / s.tuning.GradDuration
	s.Gy = sin * area / s.tuning.GradDuration
	s.GradDirection = theta

	s.log.WithFields(logrus.Fields{
		"dephase":   totalDephase,
		"direction": theta,
		"area":      area,
	}).Debug("gradient pulse issued")
	s.notify(SignalGradients)
	return nil
}

// GradientPulseActive reports whether a gradient pulse is in flight.
func (s *Sim) GradientPulseActive() bool {
	return s.AreaLeftGrad != 0
}
