package experiment

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/san-kum/blochsim/internal/config"
	"github.com/san-kum/blochsim/internal/protocol"
	"github.com/san-kum/blochsim/internal/scenes"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)
	return log
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Dt = 0.01
	cfg.Duration = 1
	cfg.Seed = 7
	return cfg
}

func TestNewResolvesScene(t *testing.T) {
	tests := []struct {
		name    string
		scene   string
		opts    Options
		want    string
		wantErr error
	}{
		{"config scene", "single", Options{}, "single", nil},
		{"option wins", "single", Options{Scene: "plane"}, "plane", nil},
		{"unknown scene", "nope", Options{}, "", scenes.ErrUnknownScene},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.Scene = tt.scene
			e, err := New(cfg, tt.opts, quietLogger())
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if e.Scene() != tt.want {
				t.Errorf("scene = %s, want %s", e.Scene(), tt.want)
			}
		})
	}
}

func TestResolvePreset(t *testing.T) {
	actions, err := ResolvePreset("hard/90x")
	if err != nil {
		t.Fatal(err)
	}
	if len(actions) != 1 || actions[0].Kind != protocol.ActionRF || actions[0].Angle != 90 {
		t.Errorf("unexpected actions %+v", actions)
	}

	for _, ref := range []string{"hard", "hard/91x", "nope/90x"} {
		if _, err := ResolvePreset(ref); !errors.Is(err, ErrUnknownPreset) {
			t.Errorf("%s: expected ErrUnknownPreset, got %v", ref, err)
		}
	}
}

func TestProtocolFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fid.yaml")
	script := `name: fid
scene: single
duration: 3
actions:
  - at: 0.5
    action: rf
    angle: 90
`
	if err := os.WriteFile(path, []byte(script), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := testConfig()
	cfg.Protocol = path
	cfg.Preset = "gradient/spoil"
	e, err := New(cfg, Options{}, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	if e.Scene() != "single" {
		t.Errorf("protocol scene not used: %s", e.Scene())
	}
	info := e.Info()
	if info.Duration != 3 || info.Protocol != "fid" {
		t.Errorf("unexpected info %+v", info)
	}
	if len(e.Actions()) != 2 {
		t.Errorf("expected protocol and preset actions, got %d", len(e.Actions()))
	}

	e, err = New(cfg, Options{Duration: 2}, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	if e.Info().Duration != 2 {
		t.Errorf("duration option ignored: %f", e.Info().Duration)
	}
}

func TestBuildAppliesFieldOverrides(t *testing.T) {
	cfg := testConfig()
	cfg.Scene = "single"
	cfg.Field.B0 = 3
	cfg.Field.T2 = 4
	e, err := New(cfg, Options{}, quietLogger())
	if err != nil {
		t.Fatal(err)
	}

	s, err := e.Build(1)
	if err != nil {
		t.Fatal(err)
	}
	if s.B0 != 3 || s.T2 != 4 {
		t.Errorf("overrides not applied: B0=%f T2=%f", s.B0, s.T2)
	}
	if !math.IsInf(s.T1, 1) {
		t.Errorf("T1 should keep the scene value, got %f", s.T1)
	}
}

func TestRunWithPreset(t *testing.T) {
	cfg := testConfig()
	cfg.Scene = "single"
	cfg.Preset = "hard/90x"
	e, err := New(cfg, Options{}, quietLogger())
	if err != nil {
		t.Fatal(err)
	}

	result, err := e.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if result.StepsTaken != 100 {
		t.Errorf("expected 100 steps, got %d", result.StepsTaken)
	}
	// A 90° pulse leaves the sample in the transverse plane.
	if got := result.Metrics["peak_signal"]; got < 0.99 {
		t.Errorf("peak signal %f after 90° pulse", got)
	}
}

func TestRunEnsemble(t *testing.T) {
	cfg := testConfig()
	cfg.Scene = "precession"
	e, err := New(cfg, Options{Runs: 3}, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	ens, err := e.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	single, err := New(cfg, Options{}, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	one, err := single.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if len(ens.Trace) != len(one.Trace) {
		t.Fatalf("trace lengths differ: %d vs %d", len(ens.Trace), len(one.Trace))
	}
	last := len(one.Trace) - 1
	if d := math.Abs(ens.Trace[last].M.X - one.Trace[last].M.X); d > 1e-12 {
		t.Errorf("deterministic ensemble differs from single run by %g", d)
	}
	if math.Abs(ens.Metrics["mean_mz"]-one.Metrics["mean_mz"]) > 1e-12 {
		t.Error("ensemble metrics not averaged")
	}
}
