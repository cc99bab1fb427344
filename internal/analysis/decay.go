package analysis

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/blochsim/internal/sim"
)

// minSignal drops samples whose transverse magnitude is lost in rounding.
const minSignal = 1e-6

// EstimateT2 fits ln|Mxy| = a - t/T2 over the trace by least squares. It
// returns +Inf when the signal does not decay and ErrShortTrace when fewer
// than two usable samples remain.
func EstimateT2(trace []sim.Sample) (float64, error) {
	ts := make([]float64, 0, len(trace))
	logs := make([]float64, 0, len(trace))
	for _, s := range trace {
		mxy := math.Hypot(s.M.X, s.M.Y)
		if mxy < minSignal {
			continue
		}
		ts = append(ts, s.T)
		logs = append(logs, math.Log(mxy))
	}
	if len(ts) < 2 {
		return 0, ErrShortTrace
	}

	_, slope := stat.LinearRegression(ts, logs, nil, false)
	if slope >= 0 {
		return math.Inf(1), nil
	}
	return -1 / slope, nil
}

// Point is one sample of the transverse path.
type Point struct {
	X, Y float64
}

// TransversePath returns the (Mx, My) trajectory of a trace.
func TransversePath(trace []sim.Sample) []Point {
	path := make([]Point, len(trace))
	for i, s := range trace {
		path[i] = Point{X: s.M.X, Y: s.M.Y}
	}
	return path
}
