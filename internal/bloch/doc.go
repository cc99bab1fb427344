// Package bloch integrates the Bloch equations for a sample of independent
// isochromats.
//
// A [Sim] owns the field state (B0, RF, gradients, relaxation times), the
// in-flight RF and gradient pulse bookkeeping, and the isochromat sample.
// It is advanced by an external frame driver:
//
//	s := bloch.New(bloch.Options{Seed: 1})
//	_ = s.Load([]bloch.Isochromat{{M: r3.Vec{Z: 1}}})
//	s.B0 = 2
//	_ = s.IssueRFPulse(bloch.Rect, math.Pi/2, math.Pi, 4)
//	for range 400 {
//	    r := s.Advance(0.001)
//	    _ = r.Msum
//	}
//
// Each step applies the exact rotation propagator for a field held constant
// over the step, followed by relaxation. The last step of an RF or gradient
// pulse is rescaled so the accumulated flip angle or dephasing matches the
// request regardless of the step sizes used.
//
// # Time-keyed events
//
// Delayed work (spoil clears, repeated excitation) is placed on an
// [EventQueue] keyed by simulation time and drained at step boundaries, so a
// run is reproducible for a given seed and dt sequence.
//
// # Thread Safety
//
// A Sim is NOT safe for concurrent use. Drive it from a single goroutine.
package bloch
