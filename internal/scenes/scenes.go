package scenes

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/blochsim/internal/bloch"
)

var ErrUnknownScene = errors.New("scenes: unknown scene")

// Scene is an initial sample together with the field settings it is shown
// with.
type Scene struct {
	Name        string
	Description string
	Isochromats []bloch.Isochromat

	B0, B1Freq, Gamma float64
	T1, T2            float64
	Gx                float64

	Mode        bloch.SampleMode
	Frame       bloch.Frame
	FrameLocked bool
	Planar      bool
	// Scale is the display scale of the magnetization vectors.
	Scale float64
}

func base(name, desc string) Scene {
	return Scene{
		Name:        name,
		Description: desc,
		B0:          2,
		B1Freq:      5,
		Gamma:       1,
		T1:          math.Inf(1),
		T2:          math.Inf(1),
		Scale:       1,
	}
}

// Apply loads the scene into s and sets its field state. Pulses in flight
// and scheduled events are dropped.
func (sc Scene) Apply(s *bloch.Sim) error {
	if err := s.Load(sc.Isochromats); err != nil {
		return fmt.Errorf("scene %s: %w", sc.Name, err)
	}
	s.B0, s.B1Freq, s.Gamma = sc.B0, sc.B1Freq, sc.Gamma
	s.T1, s.T2 = sc.T1, sc.T2
	s.Gx, s.Gy = sc.Gx, 0
	s.Mode = sc.Mode
	s.Frame, s.FrameLocked = sc.Frame, sc.FrameLocked
	s.Planar = sc.Planar
	return nil
}

type Builder func(rng *rand.Rand) Scene

type Catalog struct {
	builders map[string]Builder
}

func NewCatalog() *Catalog {
	c := &Catalog{builders: make(map[string]Builder)}

	c.builders["single"] = func(*rand.Rand) Scene { return Single() }
	c.builders["precession"] = func(*rand.Rand) Scene { return Precession() }
	c.builders["equilibrium"] = func(*rand.Rand) Scene { return Equilibrium() }
	c.builders["inhomogeneity"] = func(*rand.Rand) Scene { return Inhomogeneity(9) }
	c.builders["ensemble"] = ThermalEnsemble
	c.builders["ensemble-simple"] = func(*rand.Rand) Scene { return ThermalEnsembleSimple() }
	c.builders["mixed-matter"] = func(*rand.Rand) Scene { return MixedMatter() }
	c.builders["weak-gradient"] = func(*rand.Rand) Scene { return WeakGradient() }
	c.builders["strong-gradient"] = func(*rand.Rand) Scene { return StrongGradient(true) }
	c.builders["structure"] = func(*rand.Rand) Scene { return StrongGradient(false) }
	c.builders["plane"] = func(*rand.Rand) Scene { return Plane() }

	return c
}

// Get builds the named scene. rng drives the random layouts.
func (c *Catalog) Get(name string, rng *rand.Rand) (Scene, error) {
	fn, ok := c.builders[name]
	if !ok {
		return Scene{}, fmt.Errorf("%w: %s", ErrUnknownScene, name)
	}
	return fn(rng), nil
}

func (c *Catalog) List() []string {
	names := make([]string, 0, len(c.builders))
	for name := range c.builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func at(m r3.Vec) bloch.Isochromat { return bloch.NewIsochromat(m, r3.Vec{}) }

func Single() Scene {
	sc := base("single", "one isochromat at equilibrium")
	sc.Isochromats = []bloch.Isochromat{at(r3.Vec{Z: 1})}
	return sc
}

func Precession() Scene {
	sc := base("precession", "one isochromat tipped 30° from z")
	sin, cos := math.Sincos(30 * math.Pi / 180)
	sc.Isochromats = []bloch.Isochromat{at(r3.Vec{X: sin, Z: cos})}
	return sc
}

func Equilibrium() Scene {
	sc := Single()
	sc.Name, sc.Description = "equilibrium", "one isochromat, no relaxation"
	return sc
}

// Inhomogeneity spreads n isochromats over a nonlinear range of B0 offsets.
func Inhomogeneity(n int) Scene {
	sc := base("inhomogeneity", fmt.Sprintf("%d isochromats in an inhomogeneous field", n))
	const spread = 1.0 / 6
	nonlin := math.Pi / 1.5
	for i := range n {
		iso := at(r3.Vec{Z: 1})
		iso.DB0 = math.Tan((float64(i)-float64(n-1)/2)/(float64(n)/nonlin)) * spread
		sc.Isochromats = append(sc.Isochromats, iso)
	}
	return sc
}

// ThermalEnsemble fills cos(theta) bands with a count that grows linearly
// towards alignment, each band at a random azimuth.
func ThermalEnsemble(rng *rand.Rand) Scene {
	sc := base("ensemble", "thermal ensemble of independent spins")
	sc.Mode = bloch.ThermalEnsemble
	sc.Frame = bloch.FrameB0

	const (
		bands   = 100
		perBand = 3
		pol     = 1.0
	)
	for i := range bands {
		cosTheta := (float64(i) - bands/2 + 0.5) / (bands / 2)
		phi := 2 * math.Pi * rng.Float64()
		n := int(math.Round((1 + cosTheta*pol) * perBand))
		mxy := math.Sqrt(1 - cosTheta*cosTheta)
		for j := range n {
			arg := phi + 2*math.Pi*(float64(j)+rng.Float64()/2)/float64(n)
			sin, cos := math.Sincos(arg)
			sc.Isochromats = append(sc.Isochromats, at(r3.Vec{X: mxy * cos, Y: mxy * sin, Z: cosTheta}))
		}
	}
	return sc
}

// ThermalEnsembleSimple is a fixed 14-spin ensemble with a slight excess
// along +z.
func ThermalEnsembleSimple() Scene {
	sc := base("ensemble-simple", "14 spins along the axes and diagonals")
	const eps = 0.05
	axes := []r3.Vec{
		{Z: 1.03}, {Z: -0.97},
		{X: 1}, {Y: 1}, {X: -1}, {Y: -1},
	}
	diag := []r3.Vec{
		{X: 1 + eps, Y: 1 - eps, Z: 1},
		{X: -1 - eps, Y: 1 - eps, Z: 1},
		{X: 1 + eps, Y: -1 + eps, Z: 1},
		{X: 1, Y: 1, Z: -1},
		{X: -1 - eps, Y: -1 + eps, Z: 1},
		{X: -1, Y: 1, Z: -1},
		{X: 1, Y: -1, Z: -1},
		{X: -1, Y: -1, Z: -1},
	}
	for _, m := range axes {
		sc.Isochromats = append(sc.Isochromats, at(m))
	}
	for _, m := range diag {
		sc.Isochromats = append(sc.Isochromats, at(r3.Scale(1/math.Sqrt(3), m)))
	}
	return sc
}

// MixedMatter is three substances with different equilibria, relaxation
// and chemical shift.
func MixedMatter() Scene {
	sc := base("mixed-matter", "three substances")
	sc.T1, sc.T2 = 8, 5
	sc.Isochromats = []bloch.Isochromat{
		{M: r3.Vec{Z: 1}, M0: 1, DR1: 0.2, DR2: 0.2, ShowCurve: true},
		{M: r3.Vec{Z: 0.91}, M0: 0.91, DB0: -0.04, ShowCurve: true},
		{M: r3.Vec{Z: 0.91}, M0: 0.91, DR2: 0.2, DB0: 0.04, ShowCurve: true},
	}
	return sc
}

func line(n int, spacing float64, keep func(i int) bool) []bloch.Isochromat {
	var isocs []bloch.Isochromat
	for i := range n {
		if !keep(i) {
			continue
		}
		x := (float64(i) - float64(n-1)/2) * spacing
		isocs = append(isocs, bloch.NewIsochromat(r3.Vec{Z: 1}, r3.Vec{X: x}))
	}
	return isocs
}

// WeakGradient is a sparse line of isochromats under a constant x gradient,
// observed in a locked frame.
func WeakGradient() Scene {
	sc := base("weak-gradient", "21 isochromats along x, weak gradient")
	sc.Isochromats = line(21, 0.4, func(int) bool { return true })
	sc.Gx = 3
	sc.B1Freq = 3
	sc.FrameLocked = true
	sc.Scale = 0.35
	return sc
}

// StrongGradient is a dense line under a strong negative gradient. With
// uniform false, every other group of three isochromats is left out.
func StrongGradient(uniform bool) Scene {
	sc := base("strong-gradient", "41 isochromats along x, strong gradient")
	keep := func(int) bool { return true }
	if !uniform {
		sc.Name, sc.Description = "structure", "structured line, strong gradient"
		keep = func(i int) bool { return int(math.Floor(float64(i-1)/3))%2 == 0 }
	}
	sc.Isochromats = line(41, 0.2, keep)
	sc.Gx = -6
	sc.B1Freq = 0
	sc.Frame = bloch.FrameB0
	sc.FrameLocked = true
	sc.Scale = 0.35
	return sc
}

// Plane is a 21x21 grid in the xy plane, laid out row by row.
func Plane() Scene {
	sc := base("plane", "21x21 isochromats in the xy plane")
	const n = 21
	for i := range n {
		for j := range n {
			pos := r3.Vec{
				X: (float64(j) - (n-1)/2.0) * 0.4,
				Y: (float64(i) - (n-1)/2.0) * 0.4,
			}
			sc.Isochromats = append(sc.Isochromats, bloch.NewIsochromat(r3.Vec{Z: 1}, pos))
		}
	}
	sc.FrameLocked = true
	sc.Planar = true
	sc.Scale = 0.35
	return sc
}
