package bloch

import "github.com/sirupsen/logrus"

const tagSpoilClear = "spoil-clear"

// Spoil destroys transverse coherence: an extra transverse relaxation rate
// applies for SpoilDuration, after which the remaining transverse
// magnetization is dropped. A second call while spoiling keeps the rate and
// moves the end of the spoil to the new deadline.
func (s *Sim) Spoil() {
	s.spoilRate = s.tuning.SpoilRate
	s.Cancel(tagSpoilClear)
	s.Schedule(s.tuning.SpoilDuration, tagSpoilClear, (*Sim).clearSpoil)
	s.log.WithFields(logrus.Fields{"t": s.T, "rate": s.spoilRate}).Debug("spoil started")
}

// Spoiling reports whether the transient spoil rate is active.
func (s *Sim) Spoiling() bool { return s.spoilRate != 0 }

func (s *Sim) clearSpoil() {
	s.spoilRate = 0
	if s.Mode == ThermalEnsemble {
		return
	}
	for i := range s.isocs {
		s.isocs[i].M.X, s.isocs[i].M.Y = 0, 0
	}
}
