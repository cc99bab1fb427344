package scenes

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/blochsim/internal/bloch"
)

func TestCatalogBuildsEveryScene(t *testing.T) {
	c := NewCatalog()
	names := c.List()
	if len(names) != 11 {
		t.Fatalf("expected 11 scenes, got %d: %v", len(names), names)
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Errorf("names not sorted: %v", names)
		}
	}

	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)
	for _, name := range names {
		sc, err := c.Get(name, rand.New(rand.NewSource(1)))
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if sc.Name != name {
			t.Errorf("scene %s reports name %s", name, sc.Name)
		}
		s := bloch.New(bloch.Options{Seed: 1, Logger: log})
		if err := sc.Apply(s); err != nil {
			t.Errorf("%s: apply failed: %v", name, err)
		}
		if len(s.Isochromats()) != len(sc.Isochromats) {
			t.Errorf("%s: loaded %d of %d isochromats", name, len(s.Isochromats()), len(sc.Isochromats))
		}
	}
}

func TestCatalogUnknownScene(t *testing.T) {
	_, err := NewCatalog().Get("vortex", rand.New(rand.NewSource(1)))
	if !errors.Is(err, ErrUnknownScene) {
		t.Errorf("expected ErrUnknownScene, got %v", err)
	}
}

func TestSceneSizes(t *testing.T) {
	tests := []struct {
		scene Scene
		want  int
	}{
		{Single(), 1},
		{Precession(), 1},
		{Inhomogeneity(9), 9},
		{ThermalEnsembleSimple(), 14},
		{MixedMatter(), 3},
		{WeakGradient(), 21},
		{StrongGradient(true), 41},
		{StrongGradient(false), 21},
		{Plane(), 441},
	}
	for _, tt := range tests {
		if got := len(tt.scene.Isochromats); got != tt.want {
			t.Errorf("%s: %d isochromats, want %d", tt.scene.Name, got, tt.want)
		}
	}
}

func TestInhomogeneityIsSymmetric(t *testing.T) {
	isocs := Inhomogeneity(9).Isochromats
	if isocs[4].DB0 != 0 {
		t.Errorf("centre offset = %g, want 0", isocs[4].DB0)
	}
	for i := range 4 {
		if math.Abs(isocs[i].DB0+isocs[8-i].DB0) > 1e-12 {
			t.Errorf("offsets %d and %d not symmetric: %g, %g", i, 8-i, isocs[i].DB0, isocs[8-i].DB0)
		}
		if isocs[i].DB0 >= isocs[i+1].DB0 {
			t.Errorf("offsets not increasing at %d", i)
		}
	}
}

func TestThermalEnsembleFavoursAlignment(t *testing.T) {
	sc := ThermalEnsemble(rand.New(rand.NewSource(3)))
	if sc.Mode != bloch.ThermalEnsemble {
		t.Error("expected thermal ensemble mode")
	}
	up, down := 0, 0
	for _, iso := range sc.Isochromats {
		if n := r3.Norm(iso.M); math.Abs(n-1) > 1e-9 {
			t.Fatalf("|M| = %f", n)
		}
		if iso.M.Z > 0 {
			up++
		} else {
			down++
		}
	}
	if up <= down {
		t.Errorf("expected more spins up than down, got %d up %d down", up, down)
	}
}

func TestStructureLeavesGaps(t *testing.T) {
	isocs := StrongGradient(false).Isochromats
	gaps := 0
	for i := 1; i < len(isocs); i++ {
		if isocs[i].Pos.X-isocs[i-1].Pos.X > 0.2+1e-9 {
			gaps++
		}
	}
	if gaps != 6 {
		t.Errorf("expected 6 gaps, got %d", gaps)
	}
}

func TestApplySetsFields(t *testing.T) {
	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)
	s := bloch.New(bloch.Options{Seed: 1, Logger: log})

	if err := MixedMatter().Apply(s); err != nil {
		t.Fatal(err)
	}
	if s.T1 != 8 || s.T2 != 5 || s.B0 != 2 {
		t.Errorf("T1=%g T2=%g B0=%g", s.T1, s.T2, s.B0)
	}
	if err := Plane().Apply(s); err != nil {
		t.Fatal(err)
	}
	if !s.Planar || !s.FrameLocked {
		t.Error("plane should be planar with a locked frame")
	}
	if !math.IsInf(s.T1, 1) {
		t.Errorf("T1 = %g after switching scene, want +Inf", s.T1)
	}

	if err := (Scene{Name: "empty"}).Apply(s); !errors.Is(err, bloch.ErrEmptySample) {
		t.Errorf("expected ErrEmptySample, got %v", err)
	}
}
