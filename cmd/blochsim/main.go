package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guptarohit/asciigraph"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/san-kum/blochsim/internal/analysis"
	"github.com/san-kum/blochsim/internal/config"
	"github.com/san-kum/blochsim/internal/experiment"
	"github.com/san-kum/blochsim/internal/export"
	"github.com/san-kum/blochsim/internal/optim"
	"github.com/san-kum/blochsim/internal/scenes"
	"github.com/san-kum/blochsim/internal/sim"
	"github.com/san-kum/blochsim/internal/storage"
	"github.com/san-kum/blochsim/internal/viz"
)

var (
	dataDir    string
	logLevel   string
	configFile string

	dt       float64
	duration float64
	jitter   float64
	seed     int64
	b0       float64
	t1, t2   float64
	protoArg string
	preset   string
	runs     int
	speed    float64
	theme    string
	outPath  string

	sweepParams []string
	metricName  string
	maximize    bool
)

var log = logrus.New()

func main() {
	rootCmd := &cobra.Command{
		Use:   "blochsim",
		Short: "bloch equation isochromat simulator",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := logrus.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			log.SetLevel(level)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLive(cmd, nil)
		},
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", config.DefaultDataDir, "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", config.DefaultLogLevel, "log level")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml or ini)")

	runCmd := &cobra.Command{
		Use:   "run [scene]",
		Short: "run a simulation and store its trace",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSimulation,
	}
	runCmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "timestep")
	runCmd.Flags().Float64Var(&duration, "time", config.DefaultDuration, "duration")
	runCmd.Flags().Float64Var(&jitter, "jitter", 0, "relative dt jitter in [0, 1)")
	runCmd.Flags().Int64Var(&seed, "seed", time.Now().UnixNano(), "random seed")
	runCmd.Flags().Float64Var(&b0, "b0", 0, "main field override")
	runCmd.Flags().Float64Var(&t1, "t1", 0, "T1 override")
	runCmd.Flags().Float64Var(&t2, "t2", 0, "T2 override")
	runCmd.Flags().StringVar(&protoArg, "protocol", "", "protocol file (yaml)")
	runCmd.Flags().StringVar(&preset, "preset", "", "preset applied at t=0 (group/name)")
	runCmd.Flags().IntVar(&runs, "runs", 1, "ensemble size")

	liveCmd := &cobra.Command{
		Use:   "live [scene]",
		Short: "interactive terminal view",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLive,
	}
	liveCmd.Flags().Float64Var(&speed, "speed", 1, "simulation seconds per wall-clock second")
	liveCmd.Flags().StringVar(&theme, "theme", viz.Themes[0].Name, "color theme: "+strings.Join(viz.ThemeNames(), ", "))
	liveCmd.Flags().StringVar(&protoArg, "protocol", "", "protocol file (yaml)")
	liveCmd.Flags().Int64Var(&seed, "seed", time.Now().UnixNano(), "random seed")

	scenesCmd := &cobra.Command{
		Use:   "scenes",
		Short: "list available scenes",
		RunE:  listScenes,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets [group]",
		Short: "list presets",
		Args:  cobra.MaximumNArgs(1),
		RunE:  listPresets,
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot a stored run in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	pngCmd := &cobra.Command{
		Use:   "png [run_id]",
		Short: "render a stored run to an image",
		Args:  cobra.ExactArgs(1),
		RunE:  pngRun,
	}
	pngCmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default <run_id>.png)")

	spectrumCmd := &cobra.Command{
		Use:   "spectrum [run_id]",
		Short: "FID spectrum and T2* estimate of a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  spectrumRun,
	}
	spectrumCmd.Flags().StringVarP(&outPath, "out", "o", "", "also write the spectrum to this image")

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run data to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}
	exportJSONCmd.Flags().StringVarP(&outPath, "out", "o", "-", "output file")

	sweepCmd := &cobra.Command{
		Use:   "sweep [scene]",
		Short: "grid search a metric over config parameters",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSweep,
	}
	sweepCmd.Flags().StringArrayVarP(&sweepParams, "param", "p", nil, "name=v1,v2,... (one of "+strings.Join(config.SweepParams, ", ")+")")
	sweepCmd.Flags().StringVar(&metricName, "metric", "peak_signal", "metric to optimize")
	sweepCmd.Flags().BoolVar(&maximize, "max", false, "maximize the metric instead of minimizing it")
	sweepCmd.Flags().Float64Var(&duration, "time", config.DefaultDuration, "duration")
	sweepCmd.Flags().Int64Var(&seed, "seed", time.Now().UnixNano(), "random seed")
	sweepCmd.Flags().StringVar(&protoArg, "protocol", "", "protocol file (yaml)")
	sweepCmd.Flags().StringVar(&preset, "preset", "", "preset applied at t=0 (group/name)")

	rootCmd.AddCommand(runCmd, liveCmd, scenesCmd, presetsCmd, listCmd, plotCmd, pngCmd, spectrumCmd, exportJSONCmd, sweepCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads --config and lets explicitly set flags override it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	} else {
		cfg.Seed = seed
	}

	flags := cmd.Flags()
	if flags.Changed("dt") {
		cfg.Dt = dt
	}
	if flags.Changed("time") {
		cfg.Duration = duration
	}
	if flags.Changed("jitter") {
		cfg.Jitter = jitter
	}
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("b0") {
		cfg.Field.B0 = b0
	}
	if flags.Changed("t1") {
		cfg.Field.T1 = t1
	}
	if flags.Changed("t2") {
		cfg.Field.T2 = t2
	}
	if flags.Changed("protocol") {
		cfg.Protocol = protoArg
	}
	if flags.Changed("preset") {
		cfg.Preset = preset
	}
	if flags.Changed("data") {
		cfg.DataDir = dataDir
	}
	if !flags.Changed("log-level") {
		if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
			log.SetLevel(level)
		}
	}
	return cfg, cfg.Validate()
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := experiment.Options{Runs: runs}
	if len(args) > 0 {
		opts.Scene = args[0]
	}
	if cmd.Flags().Changed("time") {
		opts.Duration = duration
	}
	exp, err := experiment.New(cfg, opts, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	start := time.Now()
	result, err := exp.Run(ctx)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	st := storage.New(cfg.DataDir)
	runID, err := st.Save(exp.Info(), result)
	if err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"run":     runID,
		"steps":   result.StepsTaken,
		"elapsed": elapsed.Round(time.Millisecond),
	}).Info("run stored")

	fmt.Printf("run: %s\n", runID)
	fmt.Printf("scene: %s\n", exp.Scene())
	fmt.Printf("steps: %d\n\n", result.StepsTaken)
	return printMetrics(result.Metrics)
}

func parseSweepParams(specs []string) (map[string][]float64, error) {
	params := make(map[string][]float64, len(specs))
	for _, spec := range specs {
		name, list, ok := strings.Cut(spec, "=")
		if !ok || list == "" {
			return nil, fmt.Errorf("invalid --param %q, want name=v1,v2", spec)
		}
		for _, field := range strings.Split(list, ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, fmt.Errorf("--param %s: %w", name, err)
			}
			params[name] = append(params[name], v)
		}
	}
	return params, nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	base, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	params, err := parseSweepParams(sweepParams)
	if err != nil {
		return err
	}

	opts := experiment.Options{}
	if len(args) > 0 {
		opts.Scene = args[0]
	}
	if cmd.Flags().Changed("time") {
		opts.Duration = duration
	}

	run := func(ctx context.Context, p map[string]float64) (*sim.Result, error) {
		cfg := *base
		for name, v := range p {
			if err := cfg.Set(name, v); err != nil {
				return nil, err
			}
		}
		exp, err := experiment.New(&cfg, opts, log)
		if err != nil {
			return nil, err
		}
		return exp.Run(ctx)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	goal := optim.Minimize
	if maximize {
		goal = optim.Maximize
	}
	grid := optim.NewGridSearch(params)
	log.WithFields(logrus.Fields{"points": grid.Size(), "metric": metricName}).Info("sweep started")
	points, best, err := grid.Search(ctx, run, metricName, goal)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\t%s\n", strings.ToUpper(strings.Join(names, "\t")), strings.ToUpper(metricName))
	for _, pt := range points {
		for _, name := range names {
			fmt.Fprintf(w, "%g\t", pt.Params[name])
		}
		fmt.Fprintf(w, "%.6f\n", pt.Value)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\nbest %s = %.6f at", metricName, best.Value)
	for _, name := range names {
		fmt.Printf(" %s=%g", name, best.Params[name])
	}
	fmt.Println()
	return nil
}

func printMetrics(m map[string]float64) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "METRIC\tVALUE")
	for _, name := range sortedKeys(m) {
		fmt.Fprintf(w, "%s\t%.6f\n", name, m[name])
	}
	return w.Flush()
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	exp, err := experiment.New(cfg, experiment.Options{}, log)
	if err != nil {
		return err
	}

	opts := viz.Options{
		Protocol: exp.Actions(),
		Sim:      cfg.SimOptions(log),
		Speed:    speed,
		Theme:    theme,
		Log:      log,
	}

	// The alt screen would be garbled by log output.
	log.SetOutput(io.Discard)

	name := ""
	switch {
	case len(args) > 0:
		name = args[0]
	case cfg.Protocol != "" || configFile != "":
		name = exp.Scene()
	}

	var model tea.Model
	if name == "" {
		model = viz.NewPicker(scenes.NewCatalog(), opts, cfg.Seed)
	} else {
		sc, err := scenes.NewCatalog().Get(name, rand.New(rand.NewSource(cfg.Seed)))
		if err != nil {
			return err
		}
		opts.Scene = sc
		m, err := viz.NewModel(opts)
		if err != nil {
			return err
		}
		model = m
	}

	_, err = tea.NewProgram(model, tea.WithAltScreen()).Run()
	return err
}

func listScenes(cmd *cobra.Command, args []string) error {
	catalog := scenes.NewCatalog()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SCENE\tISOCHROMATS\tDESCRIPTION")
	for _, name := range catalog.List() {
		sc, err := catalog.Get(name, rand.New(rand.NewSource(1)))
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%d\t%s\n", sc.Name, len(sc.Isochromats), sc.Description)
	}
	return w.Flush()
}

func listPresets(cmd *cobra.Command, args []string) error {
	groups := config.PresetGroups()
	if len(args) > 0 {
		groups = args
	}
	for _, g := range groups {
		names := config.ListPresets(g)
		if len(names) == 0 {
			fmt.Printf("no presets in group: %s\n", g)
			continue
		}
		fmt.Printf("%s:\n", g)
		for _, n := range names {
			fmt.Printf("  %s/%s\n", g, n)
		}
	}
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSCENE\tPROTOCOL\tDURATION\tSTEPS\tTIMESTAMP")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%d\t%s\n",
			r.ID, r.Scene, r.Protocol, r.Duration, r.Steps, r.Timestamp.Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}

func loadRun(runID string) (*storage.RunMetadata, []sim.Sample, error) {
	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return nil, nil, err
	}
	trace, err := st.LoadTrace(runID)
	if err != nil {
		return nil, nil, err
	}
	if len(trace) == 0 {
		return nil, nil, fmt.Errorf("run %s has no samples", runID)
	}
	return meta, trace, nil
}

func plotRun(cmd *cobra.Command, args []string) error {
	meta, trace, err := loadRun(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("scene: %s\n", meta.Scene)
	fmt.Printf("samples: %d\n\n", len(trace))

	series := []struct {
		caption string
		value   func(sim.Sample) float64
	}{
		{"|Mxy| (transverse signal)", func(s sim.Sample) float64 { return math.Hypot(s.M.X, s.M.Y) }},
		{"Mx", func(s sim.Sample) float64 { return s.M.X }},
		{"Mz (longitudinal)", func(s sim.Sample) float64 { return s.M.Z }},
		{"|B1|", func(s sim.Sample) float64 { return s.RFMag }},
	}
	for _, sr := range series {
		data := make([]float64, len(trace))
		for i, s := range trace {
			data[i] = sr.value(s)
		}
		graph := asciigraph.Plot(data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(sr.caption),
		)
		fmt.Println(graph)
		fmt.Println()
	}
	return nil
}

func pngRun(cmd *cobra.Command, args []string) error {
	meta, trace, err := loadRun(args[0])
	if err != nil {
		return err
	}
	p, err := export.TracePlot(fmt.Sprintf("%s (%s)", meta.Scene, meta.ID), trace)
	if err != nil {
		return err
	}
	path := outPath
	if path == "" {
		path = meta.ID + ".png"
	}
	if err := export.Save(path, p); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", path)
	return nil
}

func spectrumRun(cmd *cobra.Command, args []string) error {
	meta, trace, err := loadRun(args[0])
	if err != nil {
		return err
	}
	spec, err := analysis.Spectrum(trace, true)
	if err != nil {
		return err
	}

	fmt.Printf("spectrum: %s\n", meta.ID)
	fmt.Printf("scene: %s\n\n", meta.Scene)
	graph := asciigraph.Plot(spec.Magnitude,
		asciigraph.Height(15),
		asciigraph.Width(80),
		asciigraph.Caption(fmt.Sprintf("|S(ω)|, ω from %.2f to %.2f", spec.Freq[0], spec.Freq[len(spec.Freq)-1])),
	)
	fmt.Println(graph)
	fmt.Println()

	fmt.Printf("peak frequency: %.3f rad/s\n", spec.Peak())
	if t2, err := analysis.EstimateT2(trace); err == nil {
		fmt.Printf("apparent T2*: %.3f\n", t2)
	}

	if outPath != "" {
		p, err := export.SpectrumPlot(meta.ID, spec)
		if err != nil {
			return err
		}
		if err := export.Save(outPath, p); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", outPath)
	}
	return nil
}

func exportJSON(cmd *cobra.Command, args []string) error {
	meta, trace, err := loadRun(args[0])
	if err != nil {
		return err
	}
	result := &sim.Result{Trace: trace, Metrics: meta.Metrics, StepsTaken: meta.Steps}
	return storage.ExportJSON(outPath, meta.RunInfo, result)
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
