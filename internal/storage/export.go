package storage

import (
	"encoding/json"
	"io"
	"os"

	"github.com/san-kum/blochsim/internal/sim"
)

type ExportData struct {
	RunInfo
	Steps   int                `json:"steps"`
	Trace   []ExportSample     `json:"trace"`
	Metrics map[string]float64 `json:"metrics"`
}

type ExportSample struct {
	T     float64    `json:"t"`
	RF    [2]float64 `json:"rf"`
	RFMag float64    `json:"rf_mag"`
	M     [3]float64 `json:"m"`
}

func NewExportData(info RunInfo, result *sim.Result) ExportData {
	data := ExportData{
		RunInfo: info,
		Steps:   result.StepsTaken,
		Trace:   make([]ExportSample, len(result.Trace)),
		Metrics: result.Metrics,
	}
	for i, s := range result.Trace {
		data.Trace[i] = ExportSample{
			T:     s.T,
			RF:    [2]float64{s.RF.X, s.RF.Y},
			RFMag: s.RFMag,
			M:     [3]float64{s.M.X, s.M.Y, s.M.Z},
		}
	}
	return data
}

// WriteJSON encodes a run as indented JSON.
func WriteJSON(w io.Writer, info RunInfo, result *sim.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(NewExportData(info, result))
}

// ExportJSON writes a run to path, or to stdout when path is "" or "-".
func ExportJSON(path string, info RunInfo, result *sim.Result) error {
	if path == "" || path == "-" {
		return WriteJSON(os.Stdout, info, result)
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteJSON(file, info, result); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
