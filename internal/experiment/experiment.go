package experiment

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/blochsim/internal/bloch"
	"github.com/san-kum/blochsim/internal/config"
	"github.com/san-kum/blochsim/internal/metrics"
	"github.com/san-kum/blochsim/internal/protocol"
	"github.com/san-kum/blochsim/internal/scenes"
	"github.com/san-kum/blochsim/internal/sim"
	"github.com/san-kum/blochsim/internal/storage"
)

var ErrUnknownPreset = errors.New("experiment: unknown preset")

// Options override parts of the config for one invocation.
type Options struct {
	// Scene wins over the protocol's and the config's scene.
	Scene string
	// Duration wins over the protocol's and the config's duration.
	Duration float64
	// Runs above 1 run an ensemble with consecutive seeds.
	Runs int
}

// Experiment is a fully resolved run: scene, field overrides and the
// actions to schedule.
type Experiment struct {
	cfg      config.Config
	scene    string
	protocol string
	duration float64
	runs     int
	actions  []protocol.Action
	catalog  *scenes.Catalog
	log      logrus.FieldLogger
}

func New(cfg *config.Config, opts Options, log logrus.FieldLogger) (*Experiment, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	e := &Experiment{
		cfg:      *cfg,
		scene:    cfg.Scene,
		duration: cfg.Duration,
		runs:     max(opts.Runs, 1),
		catalog:  scenes.NewCatalog(),
		log:      log,
	}

	if cfg.Protocol != "" {
		p, err := protocol.Load(cfg.Protocol)
		if err != nil {
			return nil, fmt.Errorf("protocol %s: %w", cfg.Protocol, err)
		}
		e.protocol = p.Name
		if e.protocol == "" {
			e.protocol = cfg.Protocol
		}
		if p.Scene != "" {
			e.scene = p.Scene
		}
		if p.Duration > 0 {
			e.duration = p.Duration
		}
		e.actions = append(e.actions, p.Actions...)
	}

	if cfg.Preset != "" {
		actions, err := ResolvePreset(cfg.Preset)
		if err != nil {
			return nil, err
		}
		e.actions = append(e.actions, actions...)
	}

	if opts.Scene != "" {
		e.scene = opts.Scene
	}
	if opts.Duration > 0 {
		e.duration = opts.Duration
	}
	if _, err := e.catalog.Get(e.scene, rand.New(rand.NewSource(1))); err != nil {
		return nil, err
	}
	return e, nil
}

// ResolvePreset looks up a "group/name" preset.
func ResolvePreset(ref string) ([]protocol.Action, error) {
	group, name, ok := strings.Cut(ref, "/")
	if !ok {
		return nil, fmt.Errorf("%w: %q (want group/name)", ErrUnknownPreset, ref)
	}
	actions := config.GetPreset(group, name)
	if actions == nil {
		return nil, fmt.Errorf("%w: %s (available in %s: %v)", ErrUnknownPreset, ref, group, config.ListPresets(group))
	}
	return actions, nil
}

func (e *Experiment) Scene() string              { return e.scene }
func (e *Experiment) Actions() []protocol.Action { return e.actions }

// Build returns a prepared Sim for seed. It is a sim.Factory.
func (e *Experiment) Build(seed int64) (*bloch.Sim, error) {
	opts := e.cfg.SimOptions(e.log)
	opts.Seed = seed
	s := bloch.New(opts)

	sc, err := e.catalog.Get(e.scene, s.Rand())
	if err != nil {
		return nil, err
	}
	if err := sc.Apply(s); err != nil {
		return nil, err
	}
	e.cfg.Field.Apply(s)
	if err := protocol.Schedule(s, e.actions, e.log); err != nil {
		return nil, err
	}
	return s, nil
}

func (e *Experiment) simConfig() sim.Config {
	return sim.Config{
		Dt:       e.cfg.Dt,
		Duration: e.duration,
		Jitter:   e.cfg.Jitter,
		Seed:     e.cfg.Seed,
	}
}

// Info describes the experiment for storage.
func (e *Experiment) Info() storage.RunInfo {
	return storage.RunInfo{
		Scene:    e.scene,
		Protocol: e.protocol,
		Seed:     e.cfg.Seed,
		Dt:       e.cfg.Dt,
		Duration: e.duration,
		Jitter:   e.cfg.Jitter,
	}
}

// Run executes the experiment. An ensemble returns the mean trace with
// metrics averaged over its members.
func (e *Experiment) Run(ctx context.Context) (*sim.Result, error) {
	e.log.WithFields(logrus.Fields{
		"scene":    e.scene,
		"duration": e.duration,
		"dt":       e.cfg.Dt,
		"runs":     e.runs,
		"actions":  len(e.actions),
	}).Info("starting run")

	if e.runs == 1 {
		s, err := e.Build(e.cfg.Seed)
		if err != nil {
			return nil, err
		}
		r := sim.New(s, e.log)
		for _, m := range metrics.Defaults() {
			r.AddMetric(m)
		}
		return r.Run(ctx, e.simConfig())
	}

	results, err := sim.NewEnsemble(e.Build, e.runs, e.cfg.Seed, e.log).Run(ctx, e.simConfig())
	if err != nil {
		return nil, err
	}
	return merge(results), nil
}

func merge(results []*sim.Result) *sim.Result {
	out := &sim.Result{
		Trace:      sim.MeanTrace(results),
		Metrics:    make(map[string]float64),
		StepsTaken: results[0].StepsTaken,
		Final:      results[0].Final,
	}
	values := make([]float64, len(results))
	for name := range results[0].Metrics {
		for i, r := range results {
			values[i] = r.Metrics[name]
		}
		out.Metrics[name] = stat.Mean(values, nil)
	}
	return out
}
