package protocol

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/blochsim/internal/bloch"
)

var (
	ErrUnknownAction = errors.New("protocol: unknown action")
	ErrInvalidTime   = errors.New("protocol: action time must be finite and non-negative")
)

const (
	ActionRF         = "rf"
	ActionGradient   = "gradient"
	ActionSpoil      = "spoil"
	ActionRefocus    = "refocus"
	ActionRepeat     = "repeat"
	ActionStopRepeat = "stop_repeat"
	ActionSpinEcho   = "spin_echo"
)

const tagProtocol = "protocol"

// Protocol is a scripted experiment: a scene followed by timed actions.
type Protocol struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Scene       string   `yaml:"scene"`
	Duration    float64  `yaml:"duration"`
	Actions     []Action `yaml:"actions"`
}

// Action is one operation on the simulation. Angles are in degrees.
type Action struct {
	At        float64   `yaml:"at"`
	Kind      string    `yaml:"action"`
	Pulse     string    `yaml:"pulse,omitempty"`
	Angle     float64   `yaml:"angle,omitempty"`
	Phase     float64   `yaml:"phase,omitempty"`
	Amplitude float64   `yaml:"amplitude,omitempty"`
	Dephase   float64   `yaml:"dephase,omitempty"`
	Direction float64   `yaml:"direction,omitempty"`
	TR        float64   `yaml:"tr,omitempty"`
	Cycle     []float64 `yaml:"cycle,omitempty"`
	Spoil     bool      `yaml:"spoil,omitempty"`
	ES        float64   `yaml:"es,omitempty"`
}

func rad(deg float64) float64 { return deg * math.Pi / 180 }

// Load reads a protocol from a YAML file.
func Load(path string) (*Protocol, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*Protocol, error) {
	var p Protocol
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("protocol: %w", err)
	}
	for i, a := range p.Actions {
		if err := a.Validate(); err != nil {
			return nil, fmt.Errorf("action %d: %w", i+1, err)
		}
	}
	return &p, nil
}

// Validate checks the action kind and time. Parameter errors surface when
// the action is applied.
func (a Action) Validate() error {
	if math.IsNaN(a.At) || math.IsInf(a.At, 0) || a.At < 0 {
		return fmt.Errorf("%w: %g", ErrInvalidTime, a.At)
	}
	switch a.Kind {
	case ActionRF, ActionGradient, ActionSpoil, ActionRefocus,
		ActionRepeat, ActionStopRepeat, ActionSpinEcho:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, a.Kind)
	}
}

// Apply performs the action on s immediately.
func (a Action) Apply(s *bloch.Sim) error {
	switch a.Kind {
	case ActionRF:
		kind := bloch.Rect
		if a.Pulse != "" {
			k, err := bloch.ParsePulseKind(a.Pulse)
			if err != nil {
				return err
			}
			kind = k
		}
		amp := a.Amplitude
		if amp == 0 {
			amp = s.Tuning().DefaultAmplitude
		}
		return s.IssueRFPulse(kind, rad(a.Angle), rad(a.Phase), amp)
	case ActionGradient:
		return s.IssueGradientPulse(a.Dephase, rad(a.Direction))
	case ActionSpoil:
		s.Spoil()
		return nil
	case ActionRefocus:
		s.Refocus()
		return nil
	case ActionRepeat:
		cycle := make([]float64, len(a.Cycle))
		for i, p := range a.Cycle {
			cycle[i] = rad(p)
		}
		return s.StartRepetition(bloch.Repetition{
			TR:         a.TR,
			FlipAngle:  rad(a.Angle),
			PhaseCycle: cycle,
			Spoil:      a.Spoil,
			Amplitude:  a.Amplitude,
		})
	case ActionStopRepeat:
		s.StopRepetition()
		return nil
	case ActionSpinEcho:
		return s.StartSpinEcho(a.ES)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, a.Kind)
	}
}

// Schedule queues actions on s relative to the current simulation
// time. Actions fire at the first step boundary at or after their time;
// failures are logged and do not stop the run.
func Schedule(s *bloch.Sim, actions []Action, log logrus.FieldLogger) error {
	if log == nil {
		log = logrus.StandardLogger()
	}
	for i, a := range actions {
		if err := a.Validate(); err != nil {
			return fmt.Errorf("action %d: %w", i+1, err)
		}
	}
	for _, a := range actions {
		s.Schedule(a.At, tagProtocol, func(s *bloch.Sim) {
			if err := a.Apply(s); err != nil {
				log.WithError(err).WithFields(logrus.Fields{"action": a.Kind, "t": s.T}).Warn("action failed")
				return
			}
			log.WithFields(logrus.Fields{"action": a.Kind, "t": s.T}).Debug("action applied")
		})
	}
	return nil
}

// Cancel drops actions that have not fired yet.
func Cancel(s *bloch.Sim) int { return s.Cancel(tagProtocol) }
