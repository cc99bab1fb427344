package optim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/san-kum/blochsim/internal/sim"
)

var ErrNoPoints = errors.New("optim: empty grid")

// Goal selects whether a metric is maximized or minimized.
type Goal int

const (
	Minimize Goal = iota
	Maximize
)

// Runner performs one experiment for a grid point.
type Runner func(ctx context.Context, params map[string]float64) (*sim.Result, error)

// Point is one evaluated grid point.
type Point struct {
	Params map[string]float64
	Value  float64
}

// GridSearch evaluates every combination of parameter values.
type GridSearch struct {
	paramNames []string
	ranges     [][]float64
}

func NewGridSearch(params map[string][]float64) *GridSearch {
	g := &GridSearch{}
	for name := range params {
		g.paramNames = append(g.paramNames, name)
	}
	sort.Strings(g.paramNames)
	for _, name := range g.paramNames {
		g.ranges = append(g.ranges, params[name])
	}
	return g
}

// Size is the number of grid points.
func (g *GridSearch) Size() int {
	if len(g.ranges) == 0 {
		return 0
	}
	n := 1
	for _, r := range g.ranges {
		n *= len(r)
	}
	return n
}

// Search runs every grid point and returns all points in grid order
// together with the best one for goal. The first failing run aborts the
// search.
func (g *GridSearch) Search(ctx context.Context, run Runner, metricName string, goal Goal) ([]Point, Point, error) {
	if g.Size() == 0 {
		return nil, Point{}, ErrNoPoints
	}

	points := make([]Point, 0, g.Size())
	err := g.searchRecursive(ctx, 0, map[string]float64{}, func(params map[string]float64) error {
		result, err := run(ctx, params)
		if err != nil {
			return fmt.Errorf("%v: %w", params, err)
		}
		val, ok := result.Metrics[metricName]
		if !ok {
			return fmt.Errorf("optim: run produced no metric %q", metricName)
		}
		points = append(points, Point{Params: params, Value: val})
		return nil
	})
	if err != nil {
		return nil, Point{}, err
	}

	best := Point{Value: math.Inf(1)}
	if goal == Maximize {
		best.Value = math.Inf(-1)
	}
	for _, p := range points {
		if (goal == Maximize && p.Value > best.Value) || (goal == Minimize && p.Value < best.Value) {
			best = p
		}
	}
	return points, best, nil
}

func (g *GridSearch) searchRecursive(ctx context.Context, depth int, current map[string]float64, visit func(map[string]float64) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if depth == len(g.paramNames) {
		return visit(current)
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		newParams := make(map[string]float64, len(current)+1)
		for k, v := range current {
			newParams[k] = v
		}
		newParams[paramName] = val

		if err := g.searchRecursive(ctx, depth+1, newParams, visit); err != nil {
			return err
		}
	}
	return nil
}
