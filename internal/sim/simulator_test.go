package sim

import (
	"context"
	"math"
	"testing"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/blochsim/internal/bloch"
	"github.com/san-kum/blochsim/internal/metrics"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)
	return log
}

func buildSim(seed int64) (*bloch.Sim, error) {
	s := bloch.New(bloch.Options{Seed: seed, Logger: quietLogger()})
	if err := s.Load([]bloch.Isochromat{bloch.NewIsochromat(r3.Vec{X: 1}, r3.Vec{})}); err != nil {
		return nil, err
	}
	s.B0 = 2
	s.T2 = 1
	return s, nil
}

func newTestSim(t *testing.T, seed int64) *bloch.Sim {
	t.Helper()
	s, err := buildSim(seed)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestRunnerRun(t *testing.T) {
	r := New(newTestSim(t, 1), quietLogger())

	result, err := r.Run(context.Background(), Config{Dt: 0.1, Duration: 1.0})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if result.StepsTaken != 10 {
		t.Errorf("expected 10 steps, got %d", result.StepsTaken)
	}
	if len(result.Trace) != 11 {
		t.Errorf("expected 11 samples, got %d", len(result.Trace))
	}

	final := result.Trace[len(result.Trace)-1]
	if math.Abs(final.T-1) > 1e-9 {
		t.Errorf("final time = %f", final.T)
	}
	mxy := math.Hypot(final.M.X, final.M.Y)
	if expected := math.Exp(-1.0); math.Abs(mxy-expected) > 1e-9 {
		t.Errorf("expected |Mxy| %.6f, got %.6f", expected, mxy)
	}
}

func TestRunnerInvalidConfig(t *testing.T) {
	r := New(newTestSim(t, 1), quietLogger())

	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero dt", Config{Dt: 0, Duration: 1.0}},
		{"negative dt", Config{Dt: -0.1, Duration: 1.0}},
		{"zero duration", Config{Dt: 0.1, Duration: 0}},
		{"negative duration", Config{Dt: 0.1, Duration: -1.0}},
		{"infinite duration", Config{Dt: 0.1, Duration: math.Inf(1)}},
		{"jitter of one", Config{Dt: 0.1, Duration: 1, Jitter: 1}},
		{"negative every", Config{Dt: 0.1, Duration: 1, Every: -2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := r.Run(context.Background(), tt.cfg); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

type testMetric struct {
	count int
}

func (t *testMetric) Name() string          { return "test" }
func (t *testMetric) Observe(bloch.Readout) { t.count++ }
func (t *testMetric) Value() float64        { return float64(t.count) }
func (t *testMetric) Reset()                { t.count = 0 }

func TestRunnerMetrics(t *testing.T) {
	r := New(newTestSim(t, 1), quietLogger())

	metric := &testMetric{}
	r.AddMetric(metric)
	r.AddMetric(metrics.NewSignal())

	result, err := r.Run(context.Background(), Config{Dt: 0.1, Duration: 1.0})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if got := result.Metrics["test"]; got != 11 {
		t.Errorf("expected 11 observations, got %v", got)
	}
	if got := result.Metrics["peak_signal"]; math.Abs(got-1) > 1e-9 {
		t.Errorf("peak signal = %f, want 1", got)
	}
}

func TestRunnerJitterAndDecimation(t *testing.T) {
	r := New(newTestSim(t, 1), quietLogger())

	var dts []float64
	last := 0.0
	r.AddObserver(ObserverFunc(func(rd bloch.Readout) {
		if rd.T > 0 {
			dts = append(dts, rd.T-last)
		}
		last = rd.T
	}))

	result, err := r.Run(context.Background(), Config{Dt: 0.01, Duration: 2, Jitter: 0.5, Every: 5, Seed: 3})
	if err != nil {
		t.Fatal(err)
	}
	if r.Sim().T < 1.995 || r.Sim().T > 2.01 {
		t.Errorf("run ended at t=%f", r.Sim().T)
	}
	distinct := false
	for _, dt := range dts {
		if dt < 0.005-1e-12 || dt > 0.015+1e-12 {
			t.Fatalf("dt %f outside jitter band", dt)
		}
		if math.Abs(dt-0.01) > 1e-3 {
			distinct = true
		}
	}
	if !distinct {
		t.Error("jitter produced uniform steps")
	}
	if want := 1 + result.StepsTaken/5; len(result.Trace) != want {
		t.Errorf("trace has %d samples, want %d", len(result.Trace), want)
	}
}

func TestRunnerCancel(t *testing.T) {
	r := New(newTestSim(t, 1), quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	steps := 0
	r.AddObserver(ObserverFunc(func(bloch.Readout) {
		steps++
		if steps == 20 {
			cancel()
		}
	}))

	result, err := r.Run(ctx, Config{Dt: 0.01, Duration: 100})
	if err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if result == nil || result.StepsTaken != 19 {
		t.Errorf("expected partial result after 19 steps, got %+v", result)
	}
}

func TestRunWithCallback(t *testing.T) {
	r := New(newTestSim(t, 1), quietLogger())

	calls := 0
	err := r.RunWithCallback(context.Background(), Config{Dt: 0.1, Duration: 10}, func(bloch.Readout) bool {
		calls++
		return calls < 5
	})
	if err != nil {
		t.Fatal(err)
	}
	if calls != 5 {
		t.Errorf("expected 5 callbacks, got %d", calls)
	}
}

func TestEnsemble(t *testing.T) {
	e := NewEnsemble(buildSim, 4, 10, quietLogger())

	results, err := e.Run(context.Background(), Config{Dt: 0.1, Duration: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	for i, res := range results {
		if res.StepsTaken != 10 {
			t.Errorf("run %d took %d steps", i, res.StepsTaken)
		}
		if _, ok := res.Metrics["norm_drift"]; !ok {
			t.Errorf("run %d missing default metrics", i)
		}
	}

	mean := MeanTrace(results)
	if len(mean) != 11 {
		t.Fatalf("mean trace has %d samples", len(mean))
	}
	want := results[0].Trace[10].M
	if r3.Norm(r3.Sub(mean[10].M, want)) > 1e-12 {
		t.Errorf("identical deterministic runs averaged to %v, want %v", mean[10].M, want)
	}
	if MeanTrace(nil) != nil {
		t.Error("expected nil for no results")
	}
}
