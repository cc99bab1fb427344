package analysis

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/blochsim/internal/sim"
)

func fid(n int, dt, omega, t2 float64) []sim.Sample {
	trace := make([]sim.Sample, n)
	for i := range trace {
		t := float64(i) * dt
		a := math.Exp(-t / t2)
		trace[i] = sim.Sample{T: t, M: r3.Vec{X: a * math.Cos(omega*t), Y: a * math.Sin(omega*t)}}
	}
	return trace
}

func TestSpectrumPeak(t *testing.T) {
	// 128 samples spaced so that -2 rad/s falls on bin -8.
	dt := 2 * math.Pi * 8 / 256

	tests := []struct {
		name  string
		omega float64
	}{
		{"negative precession", -2},
		{"positive precession", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			peak, err := PeakFrequency(fid(128, dt, tt.omega, math.Inf(1)))
			if err != nil {
				t.Fatal(err)
			}
			if math.Abs(peak-tt.omega) > 1e-9 {
				t.Errorf("peak = %f, want %f", peak, tt.omega)
			}
		})
	}
}

func TestSpectrumLayout(t *testing.T) {
	spec, err := Spectrum(fid(64, 0.1, 0, math.Inf(1)), false)
	if err != nil {
		t.Fatal(err)
	}
	if len(spec.Freq) != 64 {
		t.Fatalf("expected 64 bins, got %d", len(spec.Freq))
	}
	for i := 1; i < len(spec.Freq); i++ {
		if spec.Freq[i] <= spec.Freq[i-1] {
			t.Fatal("frequencies not ascending")
		}
	}
	if spec.Peak() != 0 {
		t.Errorf("constant signal should peak at 0, got %f", spec.Peak())
	}
	// An unwindowed constant signal puts everything in the zero bin.
	if math.Abs(spec.Magnitude[32]-1) > 1e-9 {
		t.Errorf("zero bin magnitude = %f", spec.Magnitude[32])
	}
}

func TestSpectrumShortTrace(t *testing.T) {
	if _, err := Spectrum(fid(3, 0.1, 1, 1), true); !errors.Is(err, ErrShortTrace) {
		t.Errorf("expected ErrShortTrace, got %v", err)
	}
	flat := make([]sim.Sample, 8)
	if _, err := Spectrum(flat, true); !errors.Is(err, ErrShortTrace) {
		t.Errorf("expected ErrShortTrace for zero spacing, got %v", err)
	}
}

func TestEstimateT2(t *testing.T) {
	t2, err := EstimateT2(fid(200, 0.01, 3, 0.5))
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(t2-0.5) > 1e-9 {
		t.Errorf("T2 = %f, want 0.5", t2)
	}

	t2, err = EstimateT2(fid(50, 0.01, 0, math.Inf(1)))
	if err != nil {
		t.Fatal(err)
	}
	if !math.IsInf(t2, 1) {
		t.Errorf("expected +Inf for undamped signal, got %f", t2)
	}

	if _, err := EstimateT2([]sim.Sample{{T: 0, M: r3.Vec{X: 1}}}); !errors.Is(err, ErrShortTrace) {
		t.Errorf("expected ErrShortTrace, got %v", err)
	}
}

func TestTransversePath(t *testing.T) {
	path := TransversePath(fid(4, 0.5, math.Pi, math.Inf(1)))
	if len(path) != 4 {
		t.Fatalf("expected 4 points, got %d", len(path))
	}
	if math.Abs(path[2].X+1) > 1e-12 || math.Abs(path[2].Y) > 1e-12 {
		t.Errorf("half turn at t=1 gave %+v", path[2])
	}
}
