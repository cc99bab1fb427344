package viz

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

var (
	axisX = r3.Vec{X: 1}
	axisZ = r3.Vec{Z: 1}
)

// Camera looks at the origin of the Bloch sphere. Yaw turns the scene about
// the z axis, Pitch tilts the view above the transverse plane.
type Camera struct {
	Yaw, Pitch float64
	Zoom       float64
	// Distance sets the perspective; larger is flatter.
	Distance float64
}

func NewCamera() *Camera {
	return &Camera{Yaw: -0.6, Pitch: 0.35, Zoom: 1, Distance: 6}
}

func (c *Camera) Turn(da float64) { c.Yaw += da }

func (c *Camera) Tilt(da float64) {
	c.Pitch = math.Max(-math.Pi/2, math.Min(math.Pi/2, c.Pitch+da))
}

func (c *Camera) ZoomIn()  { c.Zoom = math.Min(8, c.Zoom*1.2) }
func (c *Camera) ZoomOut() { c.Zoom = math.Max(0.2, c.Zoom/1.2) }

// view rotates p into camera coordinates: x right, z up, y into the screen.
func (c *Camera) view(p r3.Vec) r3.Vec {
	p = r3.NewRotation(c.Yaw, axisZ).Rotate(p)
	return r3.NewRotation(c.Pitch, axisX).Rotate(p)
}

// Project maps p to sub-pixel coordinates of a w x h canvas. The unit sphere
// fills most of the shorter side.
func (c *Camera) Project(p r3.Vec, w, h int) (x, y int, depth float64) {
	v := c.view(p)
	scale := c.Distance / (c.Distance + v.Y)
	unit := math.Min(float64(w), float64(h)) * 0.45 * c.Zoom
	x = w/2 + int(math.Round(v.X*scale*unit))
	y = h/2 - int(math.Round(v.Z*scale*unit))
	return x, y, v.Y
}

func (c *Camera) line(cv *Canvas, a, b r3.Vec) {
	w, h := cv.Dims()
	x0, y0, _ := c.Project(a, w, h)
	x1, y1, _ := c.Project(b, w, h)
	cv.DrawLine(x0, y0, x1, y1)
}

// DrawVector draws an arrow from the origin to v with a blob at its tip.
func (c *Camera) DrawVector(cv *Canvas, v r3.Vec, tip int) {
	w, h := cv.Dims()
	c.line(cv, r3.Vec{}, v)
	x, y, _ := c.Project(v, w, h)
	cv.Blob(x, y, tip)
}

// DrawSphere draws the equator and the xz and yz meridians, dashing the
// segments on the far side.
func (c *Camera) DrawSphere(cv *Canvas, segments int) {
	w, h := cv.Dims()
	circles := []func(a float64) r3.Vec{
		func(a float64) r3.Vec { return r3.Vec{X: math.Cos(a), Y: math.Sin(a)} },
		func(a float64) r3.Vec { return r3.Vec{X: math.Cos(a), Z: math.Sin(a)} },
		func(a float64) r3.Vec { return r3.Vec{Y: math.Cos(a), Z: math.Sin(a)} },
	}
	for _, circle := range circles {
		for i := 0; i < segments; i++ {
			a0 := 2 * math.Pi * float64(i) / float64(segments)
			a1 := 2 * math.Pi * float64(i+1) / float64(segments)
			x0, y0, d0 := c.Project(circle(a0), w, h)
			x1, y1, d1 := c.Project(circle(a1), w, h)
			if d0+d1 > 0 {
				cv.DrawDashed(x0, y0, x1, y1, 2)
			} else {
				cv.DrawLine(x0, y0, x1, y1)
			}
		}
	}
}

// DrawAxes draws the z axis and the positive x and y half axes.
func (c *Camera) DrawAxes(cv *Canvas) {
	w, h := cv.Dims()
	for _, seg := range [][2]r3.Vec{
		{{Z: -1.1}, {Z: 1.2}},
		{{}, {X: 1.2}},
		{{}, {Y: 1.2}},
	} {
		x0, y0, _ := c.Project(seg[0], w, h)
		x1, y1, _ := c.Project(seg[1], w, h)
		cv.DrawDashed(x0, y0, x1, y1, 1)
	}
}
