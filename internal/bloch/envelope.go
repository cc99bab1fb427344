package bloch

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// PulseKind selects the RF envelope family.
type PulseKind int

const (
	Rect PulseKind = iota
	Sinc
)

func (k PulseKind) String() string {
	switch k {
	case Rect:
		return "rect"
	case Sinc:
		return "sinc"
	default:
		return fmt.Sprintf("PulseKind(%d)", int(k))
	}
}

// ParsePulseKind maps "rect" or "sinc" to a PulseKind.
func ParsePulseKind(s string) (PulseKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rect", "hard", "const":
		return Rect, nil
	case "sinc":
		return Sinc, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownPulseKind, s)
	}
}

// Envelope is the amplitude shape of the active RF pulse. Sinc envelopes
// close over the duration of the pulse they were issued for.
type Envelope struct {
	Kind          PulseKind
	Duration      float64
	ZeroCrossings int
	// Guard is the |x| below which sin(x)/x is taken as 1.
	Guard float64
}

// Eval returns the RF field vector and its signed envelope for a carrier
// phase, t seconds after the pulse started.
func (e Envelope) Eval(amplitude, t, phase float64) (r3.Vec, float64) {
	env := amplitude
	if e.Kind == Sinc && e.Duration > 0 {
		x := float64(e.ZeroCrossings) * math.Pi * (t/e.Duration - 0.5)
		if math.Abs(x) > e.Guard {
			env = amplitude * math.Sin(x) / x
		}
	}
	return r3.Scale(env, carrier(phase)), env
}

// carrier is the unit RF direction for phase.
func carrier(phase float64) r3.Vec {
	sin, cos := math.Sincos(phase)
	return r3.Vec{X: cos, Y: -sin}
}
