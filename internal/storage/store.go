package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/blochsim/internal/sim"
)

var ErrMalformedTrace = errors.New("malformed trace")

var traceHeader = []string{"time", "rf_x", "rf_y", "rf_mag", "mx", "my", "mz"}

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

// RunInfo describes how a run was produced.
type RunInfo struct {
	Scene    string  `json:"scene"`
	Protocol string  `json:"protocol,omitempty"`
	Seed     int64   `json:"seed"`
	Dt       float64 `json:"dt"`
	Duration float64 `json:"duration"`
	Jitter   float64 `json:"jitter,omitempty"`
}

type RunMetadata struct {
	RunInfo
	ID          string             `json:"id"`
	Timestamp   time.Time          `json:"timestamp"`
	Steps       int                `json:"steps"`
	Isochromats int                `json:"isochromats"`
	Metrics     map[string]float64 `json:"metrics"`
}

// Save writes metadata.json and trace.csv into a fresh run directory and
// returns the run ID.
func (s *Store) Save(info RunInfo, result *sim.Result) (string, error) {
	now := time.Now()
	runID, runDir, err := s.makeRunDir(fmt.Sprintf("%s_%d", info.Scene, now.Unix()))
	if err != nil {
		return "", err
	}

	meta := RunMetadata{
		RunInfo:     info,
		ID:          runID,
		Timestamp:   now,
		Steps:       result.StepsTaken,
		Isochromats: len(result.Final.Isochromats),
		Metrics:     result.Metrics,
	}
	if err := writeJSON(filepath.Join(runDir, "metadata.json"), meta); err != nil {
		return "", err
	}
	if err := writeTrace(filepath.Join(runDir, "trace.csv"), result.Trace); err != nil {
		return "", err
	}
	return runID, nil
}

func (s *Store) makeRunDir(base string) (string, string, error) {
	if err := s.Init(); err != nil {
		return "", "", err
	}
	id := base
	for n := 1; ; n++ {
		dir := filepath.Join(s.baseDir, id)
		err := os.Mkdir(dir, 0755)
		if err == nil {
			return id, dir, nil
		}
		if !os.IsExist(err) {
			return "", "", err
		}
		id = fmt.Sprintf("%s_%d", base, n)
	}
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeTrace(path string, trace []sim.Sample) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(traceHeader); err != nil {
		return err
	}
	for _, smp := range trace {
		row := []string{
			strconv.FormatFloat(smp.T, 'f', 6, 64),
			strconv.FormatFloat(smp.RF.X, 'f', 6, 64),
			strconv.FormatFloat(smp.RF.Y, 'f', 6, 64),
			strconv.FormatFloat(smp.RFMag, 'f', 6, 64),
			strconv.FormatFloat(smp.M.X, 'f', 6, 64),
			strconv.FormatFloat(smp.M.Y, 'f', 6, 64),
			strconv.FormatFloat(smp.M.Z, 'f', 6, 64),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// List returns the stored runs, newest first. Directories without readable
// metadata are skipped.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].Timestamp.After(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (s *Store) LoadTrace(runID string) ([]sim.Sample, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, "trace.csv"))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = len(traceHeader)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTrace, err)
	}
	if len(records) < 1 {
		return []sim.Sample{}, nil
	}

	trace := make([]sim.Sample, 0, len(records)-1)
	for i, record := range records[1:] {
		var v [7]float64
		for j, field := range record {
			v[j], err = strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: row %d: %v", ErrMalformedTrace, i+1, err)
			}
		}
		trace = append(trace, sim.Sample{
			T:     v[0],
			RF:    r3.Vec{X: v[1], Y: v[2]},
			RFMag: v[3],
			M:     r3.Vec{X: v[4], Y: v[5], Z: v[6]},
		})
	}
	return trace, nil
}
