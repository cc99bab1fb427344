package bloch

import (
	"math"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/spatial/r3"
)

// resolveFrame removes the contribution of the locked quantity from the
// fields seen by the sample.
func (s *Sim) resolveFrame() (b0, b1Freq float64) {
	if s.FrameLocked {
		switch s.Frame {
		case FrameB1:
			return s.B0 - s.B1Freq/s.Gamma, 0
		case FrameB0:
			return 0, s.B1Freq - s.B0/s.Gamma
		}
	}
	return s.B0, s.B1Freq
}

// gradientStep advances the gradient pulse and returns the gradient to apply
// over this step. The last step of a pulse is scaled to land exactly on the
// requested area.
func (s *Sim) gradientStep(dt float64) (gx, gy float64) {
	gx, gy = s.Gx, s.Gy
	if s.AreaLeftGrad == 0 {
		return gx, gy
	}
	sin, cos := math.Sincos(s.GradDirection)
	dArea := dt * s.Gamma * (cos*gx + sin*gy)
	if math.Abs(dArea) < math.Abs(s.AreaLeftGrad) {
		s.AreaLeftGrad -= dArea
		return gx, gy
	}
	scale := s.AreaLeftGrad / dArea
	gx *= scale
	gy *= scale
	s.AreaLeftGrad, s.Gx, s.Gy = 0, 0, 0
	s.log.WithFields(logrus.Fields{"t": s.T}).Debug("gradient pulse complete")
	s.notify(SignalGradients)
	return gx, gy
}

// rfStep evaluates the RF field for this step and advances the pulse. The
// last step of a pulse carries exactly the remaining flip angle.
func (s *Sim) rfStep(dt, b1Freq float64) r3.Vec {
	if s.B1 == 0 {
		return r3.Vec{}
	}
	phase := b1Freq*s.TSinceRF - s.Phi1 + s.FramePhase0
	field, env := s.env.Eval(s.B1, s.TSinceRF, phase)
	if s.TLeftRF <= 0 {
		return field
	}
	if s.TLeftRF <= dt {
		field = r3.Scale(s.AreaLeftRF/(dt*s.Gamma), carrier(phase))
		s.AreaLeftRF, s.TLeftRF, s.B1 = 0, 0, 0
		s.log.WithFields(logrus.Fields{"t": s.T}).Debug("rf pulse complete")
		s.notify(SignalFields)
		return field
	}
	s.AreaLeftRF -= dt * s.Gamma * env
	s.TLeftRF -= dt
	return field
}

// decay returns the global relaxation factors for one step and whether
// deterministic relaxation applies at all.
func (s *Sim) decay(dt float64) (f1, f2 float64, relax bool) {
	if s.Mode == ThermalEnsemble {
		s.relaxThermal()
		return 1, 1, false
	}
	if math.IsInf(s.T1, 1) && math.IsInf(s.T2, 1) {
		if s.spoilRate == 0 {
			return 1, 1, false
		}
		return 1, math.Exp(-dt * s.spoilRate), true
	}
	return math.Exp(-dt / s.T1), math.Exp(-dt * (1/s.T2 + s.spoilRate)), true
}

// Step advances the sample by dt and returns the RF field applied during the
// step.
func (s *Sim) Step(dt float64) r3.Vec {
	s.T += dt
	s.TSinceRF += dt

	gamma := s.Gamma
	b0, b1Freq := s.resolveFrame()
	gx, gy := s.gradientStep(dt)
	rf := s.rfStep(dt, b1Freq)
	f1, f2, relax := s.decay(dt)

	scale := s.tuning.GradScale
	longitudinal := !math.IsInf(s.T1*s.T2, 0) && s.spoilRate == 0
	hasRF := rf != (r3.Vec{})

	for i := range s.isocs {
		iso := &s.isocs[i]
		iso.Detuning = iso.DB0 + (gx*iso.Pos.X+gy*iso.Pos.Y)/scale

		b := rf
		b.Z += b0 + iso.Detuning
		if bmag := r3.Norm(b); bmag > s.tuning.MinField {
			iso.M = r3.NewRotation(-bmag*dt*gamma, b).Rotate(iso.M)
		}

		if hasRF {
			iso.DMRF = r3.Scale(gamma, r3.Cross(iso.M, rf))
		} else {
			iso.DMRF = r3.Vec{}
		}

		if !relax {
			continue
		}
		df2 := 1.0
		if iso.DR2 != 0 {
			df2 = math.Exp(-iso.DR2 * dt)
		}
		df1 := 1.0
		if iso.DR1 != 0 && longitudinal {
			df1 = math.Exp(-iso.DR1 * dt)
		}
		e1 := f1 * df1
		iso.M = r3.Vec{
			X: iso.M.X * f2 * df2,
			Y: iso.M.Y * f2 * df2,
			Z: iso.M.Z*e1 + (1-e1)*iso.M0,
		}
	}
	return rf
}

// Readout snapshots the sample together with the RF field of the last step.
func (s *Sim) Readout(rf r3.Vec) Readout {
	r := Readout{
		T:           s.T,
		RF:          rf,
		RFMag:       r3.Norm(rf),
		ShowTotal:   true,
		Isochromats: make([]IsochromatState, len(s.isocs)),
	}
	for i, iso := range s.isocs {
		r.Msum = r3.Add(r.Msum, iso.M)
		r.Isochromats[i] = IsochromatState{
			M:         iso.M,
			DMRF:      iso.DMRF,
			Detuning:  iso.Detuning,
			ShowCurve: iso.ShowCurve,
		}
		if iso.ShowCurve {
			r.ShowTotal = false
		}
	}
	return r
}
