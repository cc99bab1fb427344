package bloch_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/blochsim/internal/bloch"
)

var _ = Describe("EventQueue", func() {
	var q *bloch.EventQueue

	BeforeEach(func() {
		q = &bloch.EventQueue{}
	})

	tags := func(events ...bloch.Event) []string {
		out := make([]string, len(events))
		for i, e := range events {
			out[i] = e.Tag
		}
		return out
	}

	drain := func(now float64) []bloch.Event {
		var out []bloch.Event
		for {
			e, ok := q.PopDue(now)
			if !ok {
				return out
			}
			out = append(out, e)
		}
	}

	It("orders events by time", func() {
		q.Push(bloch.Event{At: 3, Tag: "c"})
		q.Push(bloch.Event{At: 1, Tag: "a"})
		q.Push(bloch.Event{At: 2, Tag: "b"})

		next, ok := q.Next()
		Expect(ok).To(BeTrue())
		Expect(next).To(Equal(1.0))
		Expect(tags(drain(10)...)).To(Equal([]string{"a", "b", "c"}))
	})

	It("keeps insertion order for equal times", func() {
		for _, tag := range []string{"first", "second", "third"} {
			q.Push(bloch.Event{At: 5, Tag: tag})
		}
		Expect(tags(drain(5)...)).To(Equal([]string{"first", "second", "third"}))
	})

	It("only pops events that are due", func() {
		q.Push(bloch.Event{At: 1, Tag: "due"})
		q.Push(bloch.Event{At: 1.5, Tag: "later"})

		Expect(tags(drain(1)...)).To(Equal([]string{"due"}))
		Expect(q.Len()).To(Equal(1))
	})

	It("cancels by tag", func() {
		q.Push(bloch.Event{At: 1, Tag: "spoil"})
		q.Push(bloch.Event{At: 2, Tag: "pulse"})
		q.Push(bloch.Event{At: 3, Tag: "spoil"})

		Expect(q.Cancel("spoil")).To(Equal(2))
		Expect(q.Pending("spoil")).To(BeFalse())
		Expect(q.Pending("pulse")).To(BeTrue())
		Expect(tags(drain(10)...)).To(Equal([]string{"pulse"}))
	})

	It("clears everything", func() {
		q.Push(bloch.Event{At: 1, Tag: "a"})
		q.Push(bloch.Event{At: 2, Tag: "b"})
		q.Clear()

		Expect(q.Len()).To(BeZero())
		_, ok := q.Next()
		Expect(ok).To(BeFalse())
	})
})

var _ = Describe("Sim scheduling", func() {
	It("fires one-shot events once, after the step that reaches them", func() {
		s := quietSim()
		var fired []float64
		s.Schedule(0.05, "once", func(s *bloch.Sim) { fired = append(fired, s.T) })

		runUntil(s, 0.2, 0.02)
		Expect(fired).To(HaveLen(1))
		Expect(fired[0]).To(BeNumerically(">=", 0.05))
		Expect(fired[0]).To(BeNumerically("<", 0.07))
	})

	It("reschedules periodic events", func() {
		s := quietSim()
		count := 0
		s.Every(0, 0.1, "tick", func(*bloch.Sim) { count++ })

		runUntil(s, 0.45, 0.01)
		Expect(count).To(Equal(5))
		Expect(s.Pending("tick")).To(BeTrue())

		Expect(s.Cancel("tick")).To(Equal(1))
		runUntil(s, 1, 0.01)
		Expect(count).To(Equal(5))
	})

	It("skips slots missed during a long step", func() {
		s := quietSim()
		count := 0
		s.Every(0, 0.1, "tick", func(*bloch.Sim) { count++ })

		s.Advance(0.55)
		Expect(count).To(Equal(1))
		s.Advance(0.01)
		Expect(count).To(Equal(1))
		s.Advance(0.05)
		Expect(count).To(Equal(2))
	})

	It("fires a vanishing period at most once per step", func() {
		s := quietSim()
		count := 0
		s.Every(0, 1e-12, "tick", func(*bloch.Sim) { count++ })

		for i := 0; i < 10; i++ {
			s.Advance(0.01)
		}
		Expect(count).To(Equal(10))
	})

	It("drops scheduled work when a new sample is loaded", func() {
		s := quietSim()
		fired := false
		s.Schedule(0.01, "late", func(*bloch.Sim) { fired = true })

		Expect(s.Load([]bloch.Isochromat{bloch.NewIsochromat(r3.Vec{Z: 1}, r3.Vec{})})).To(Succeed())
		runUntil(s, 0.1, 0.01)
		Expect(fired).To(BeFalse())
	})
})
