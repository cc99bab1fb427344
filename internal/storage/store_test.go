package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/blochsim/internal/sim"
)

func testResult() *sim.Result {
	return &sim.Result{
		Trace: []sim.Sample{
			{T: 0, M: r3.Vec{Z: 1}},
			{T: 0.01, RF: r3.Vec{X: 0.5, Y: -0.25}, RFMag: math.Hypot(0.5, 0.25), M: r3.Vec{X: 0.1, Y: -0.2, Z: 0.97}},
		},
		Metrics:    map[string]float64{"peak_signal": 0.25},
		StepsTaken: 1,
	}
}

var testInfo = RunInfo{Scene: "single", Seed: 42, Dt: 0.01, Duration: 1}

func TestStoreSaveLoad(t *testing.T) {
	st := New(t.TempDir())

	runID, err := st.Save(testInfo, testResult())
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if runID == "" {
		t.Error("expected non-empty run id")
	}

	meta, err := st.Load(runID)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if meta.Scene != "single" {
		t.Errorf("expected scene 'single', got '%s'", meta.Scene)
	}
	if meta.Seed != 42 {
		t.Errorf("expected seed 42, got %d", meta.Seed)
	}
	if meta.Steps != 1 {
		t.Errorf("expected 1 step, got %d", meta.Steps)
	}
	if meta.Metrics["peak_signal"] != 0.25 {
		t.Errorf("expected peak_signal 0.25, got %f", meta.Metrics["peak_signal"])
	}

	trace, err := st.LoadTrace(runID)
	if err != nil {
		t.Fatalf("load trace failed: %v", err)
	}
	if len(trace) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(trace))
	}
	want := testResult().Trace[1]
	got := trace[1]
	if got.T != want.T || got.RF != want.RF || r3.Norm(r3.Sub(got.M, want.M)) > 1e-6 {
		t.Errorf("sample = %+v, want %+v", got, want)
	}
}

func TestStoreFileStructure(t *testing.T) {
	tmpDir := t.TempDir()
	st := New(tmpDir)

	runID, err := st.Save(testInfo, testResult())
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	for _, name := range []string{"metadata.json", "trace.csv"} {
		if _, err := os.Stat(filepath.Join(tmpDir, runID, name)); os.IsNotExist(err) {
			t.Errorf("%s not created", name)
		}
	}

	data, err := os.ReadFile(filepath.Join(tmpDir, runID, "trace.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if first := bytes.SplitN(data, []byte("\n"), 2)[0]; string(first) != "time,rf_x,rf_y,rf_mag,mx,my,mz" {
		t.Errorf("unexpected header %q", first)
	}
}

func TestStoreList(t *testing.T) {
	st := New(filepath.Join(t.TempDir(), "runs"))

	runs, err := st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("expected 0 runs, got %d", len(runs))
	}

	first, err := st.Save(testInfo, testResult())
	if err != nil {
		t.Fatal(err)
	}
	second, err := st.Save(testInfo, testResult())
	if err != nil {
		t.Fatal(err)
	}
	if first == second {
		t.Errorf("runs saved in the same second share id %s", first)
	}

	runs, err = st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 2 {
		t.Errorf("expected 2 runs, got %d", len(runs))
	}
}

func TestLoadTraceMalformed(t *testing.T) {
	tmpDir := t.TempDir()
	st := New(tmpDir)

	runID, err := st.Save(testInfo, testResult())
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(tmpDir, runID, "trace.csv")
	bad := "time,rf_x,rf_y,rf_mag,mx,my,mz\n0,0,0,0,x,0,1\n"
	if err := os.WriteFile(path, []byte(bad), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := st.LoadTrace(runID); !errors.Is(err, ErrMalformedTrace) {
		t.Errorf("expected ErrMalformedTrace, got %v", err)
	}
	if _, err := st.LoadTrace("missing"); err == nil {
		t.Error("expected error for missing run")
	}
}

func TestExportJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, testInfo, testResult()); err != nil {
		t.Fatal(err)
	}

	var data ExportData
	if err := json.Unmarshal(buf.Bytes(), &data); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if data.Scene != "single" || data.Steps != 1 || len(data.Trace) != 2 {
		t.Errorf("unexpected export %+v", data)
	}
	if data.Trace[1].M != [3]float64{0.1, -0.2, 0.97} {
		t.Errorf("unexpected magnetization %v", data.Trace[1].M)
	}

	path := filepath.Join(t.TempDir(), "run.json")
	if err := ExportJSON(path, testInfo, testResult()); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("export file missing: %v", err)
	}
}
