package sim

import (
	"context"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/san-kum/blochsim/internal/bloch"
	"github.com/san-kum/blochsim/internal/metrics"
)

// Factory builds an independent, fully prepared Sim for one ensemble member.
type Factory func(seed int64) (*bloch.Sim, error)

// Ensemble runs the same experiment with consecutive seeds, one goroutine
// per member. Members share nothing.
type Ensemble struct {
	build     Factory
	metrics   func() []metrics.Metric
	numRuns   int
	seedStart int64
	log       logrus.FieldLogger
}

func NewEnsemble(build Factory, numRuns int, seedStart int64, log logrus.FieldLogger) *Ensemble {
	return &Ensemble{
		build:     build,
		metrics:   metrics.Defaults,
		numRuns:   numRuns,
		seedStart: seedStart,
		log:       log,
	}
}

func (e *Ensemble) Run(ctx context.Context, cfg Config) ([]*Result, error) {
	results := make([]*Result, e.numRuns)
	g, ctx := errgroup.WithContext(ctx)

	for i := 0; i < e.numRuns; i++ {
		g.Go(func() error {
			seed := e.seedStart + int64(i)
			s, err := e.build(seed)
			if err != nil {
				return err
			}
			r := New(s, e.log)
			for _, m := range e.metrics() {
				r.AddMetric(m)
			}
			cfgCopy := cfg
			cfgCopy.Seed = seed
			results[i], err = r.Run(ctx, cfgCopy)
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// MeanTrace averages the normalized magnetization of equally sampled traces.
func MeanTrace(results []*Result) []Sample {
	if len(results) == 0 {
		return nil
	}
	n := len(results[0].Trace)
	for _, r := range results[1:] {
		n = min(n, len(r.Trace))
	}
	out := make([]Sample, n)
	w := 1 / float64(len(results))
	for i := range out {
		out[i].T = results[0].Trace[i].T
		for _, r := range results {
			s := r.Trace[i]
			out[i].M.X += w * s.M.X
			out[i].M.Y += w * s.M.Y
			out[i].M.Z += w * s.M.Z
			out[i].RF.X += w * s.RF.X
			out[i].RF.Y += w * s.RF.Y
			out[i].RFMag += w * s.RFMag
		}
	}
	return out
}
