package bloch_test

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/blochsim/internal/bloch"
)

type issued struct {
	T, Phase, B1 float64
}

// recordPulses captures every RF pulse issuance on s.
func recordPulses(s *bloch.Sim) *[]issued {
	var out []issued
	s.Subscribe(func(sig bloch.Signal) {
		if sig == bloch.SignalFields && s.B1 != 0 && s.TSinceRF == 0 {
			out = append(out, issued{T: s.T, Phase: s.Phi1, B1: s.B1})
		}
	})
	return &out
}

var _ = Describe("Repetition", func() {
	var (
		s      *bloch.Sim
		pulses *[]issued
	)

	BeforeEach(func() {
		s = quietSim()
		pulses = recordPulses(s)
	})

	It("cycles phases every TR", func() {
		Expect(s.StartRepetition(bloch.Repetition{
			TR:         2,
			FlipAngle:  math.Pi / 2,
			PhaseCycle: []float64{math.Pi, 0},
		})).To(Succeed())
		Expect(s.Repeating()).To(BeTrue())

		runUntil(s, 5.5, 0.01)

		Expect(*pulses).To(HaveLen(3))
		for i, want := range []struct{ t, phase float64 }{{0, math.Pi}, {2, 0}, {4, math.Pi}} {
			Expect((*pulses)[i].T).To(BeNumerically("~", want.t, 0.011))
			Expect((*pulses)[i].Phase).To(BeNumerically("~", want.phase, 1e-12))
			Expect((*pulses)[i].B1).To(Equal(s.Tuning().DefaultAmplitude))
		}
	})

	It("spoils before each repetition ends", func() {
		Expect(s.StartRepetition(bloch.Repetition{
			TR:         2,
			FlipAngle:  math.Pi / 2,
			PhaseCycle: []float64{0},
			Spoil:      true,
		})).To(Succeed())
		Expect(s.SpoilOffset(2)).To(BeNumerically("~", 0.8, 1e-12))

		runUntil(s, 0.7, 0.01)
		Expect(s.Spoiling()).To(BeFalse())
		runUntil(s, 1.0, 0.01)
		Expect(s.Spoiling()).To(BeTrue())
		runUntil(s, 1.9, 0.01)
		Expect(s.Spoiling()).To(BeFalse())
		runUntil(s, 3.0, 0.01)
		Expect(s.Spoiling()).To(BeTrue())
	})

	It("spoils planar samples earlier", func() {
		s.Planar = true
		Expect(s.SpoilOffset(2)).To(BeNumerically("~", 0.5, 1e-12))
	})

	It("stops cleanly", func() {
		Expect(s.StartRepetition(bloch.Repetition{
			TR:         1,
			FlipAngle:  math.Pi / 2,
			PhaseCycle: []float64{0},
			Spoil:      true,
		})).To(Succeed())
		runUntil(s, 0.1, 0.01)
		s.StopRepetition()
		Expect(s.Repeating()).To(BeFalse())

		runUntil(s, 3, 0.01)
		Expect(*pulses).To(HaveLen(1))
	})

	It("replaces a running repetition", func() {
		rep := bloch.Repetition{TR: 1, FlipAngle: math.Pi / 2, PhaseCycle: []float64{0}}
		Expect(s.StartRepetition(rep)).To(Succeed())
		rep.TR = 3
		Expect(s.StartRepetition(rep)).To(Succeed())

		runUntil(s, 2.5, 0.01)
		Expect(*pulses).To(HaveLen(1))
	})

	DescribeTable("rejects invalid repetitions",
		func(r bloch.Repetition) {
			Expect(s.StartRepetition(r)).To(MatchError(bloch.ErrInvalidRepetition))
			Expect(s.Repeating()).To(BeFalse())
		},
		Entry("zero TR", bloch.Repetition{TR: 0, FlipAngle: 1, PhaseCycle: []float64{0}}),
		Entry("infinite TR", bloch.Repetition{TR: math.Inf(1), FlipAngle: 1, PhaseCycle: []float64{0}}),
		Entry("empty cycle", bloch.Repetition{TR: 1, FlipAngle: 1}),
		Entry("zero angle", bloch.Repetition{TR: 1, PhaseCycle: []float64{0}}),
		Entry("nan phase", bloch.Repetition{TR: 1, FlipAngle: 1, PhaseCycle: []float64{math.NaN()}}),
		Entry("negative amplitude", bloch.Repetition{TR: 1, FlipAngle: 1, PhaseCycle: []float64{0}, Amplitude: -2}),
	)
})

var _ = Describe("Spin echo", func() {
	It("excites then refocuses every echo spacing", func() {
		s := quietSim()
		pulses := recordPulses(s)

		Expect(s.StartSpinEcho(2)).To(Succeed())
		Expect(s.Repeating()).To(BeTrue())

		runUntil(s, 3.5, 0.01)

		Expect(*pulses).To(HaveLen(3))
		excite := (*pulses)[0]
		Expect(excite.T).To(BeZero())
		Expect(excite.Phase).To(BeNumerically("~", math.Pi, 1e-12))

		for i, t := range []float64{1, 3} {
			p := (*pulses)[i+1]
			Expect(p.T).To(BeNumerically("~", t, 0.011))
			Expect(p.Phase).To(BeNumerically("~", -math.Pi/2, 1e-12))
			Expect(p.B1).To(Equal(8.0))
		}
	})

	It("rejects a non-positive echo spacing without pulsing", func() {
		s := quietSim()
		pulses := recordPulses(s)

		Expect(s.StartSpinEcho(0)).To(MatchError(bloch.ErrInvalidRepetition))
		Expect(*pulses).To(BeEmpty())
	})
})
