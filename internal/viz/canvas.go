package viz

import "strings"

const brailleBase = 0x2800

// dotBits maps a sub-pixel inside a braille cell to its dot bit. Cells are
// two dots wide and four high:
//
//	1 4
//	2 5
//	3 6
//	7 8
var dotBits = [4][2]uint8{
	{0x01, 0x08},
	{0x02, 0x10},
	{0x04, 0x20},
	{0x40, 0x80},
}

// Canvas is a Width x Height grid of braille cells, addressed in sub-pixels
// of (2*Width) x (4*Height).
type Canvas struct {
	Width, Height int
	cells         []uint8
}

func NewCanvas(w, h int) *Canvas {
	return &Canvas{Width: w, Height: h, cells: make([]uint8, w*h)}
}

// Dims returns the canvas size in sub-pixels.
func (c *Canvas) Dims() (int, int) { return c.Width * 2, c.Height * 4 }

func (c *Canvas) cell(x, y int) (int, uint8, bool) {
	if x < 0 || y < 0 {
		return 0, 0, false
	}
	col, row := x/2, y/4
	if col >= c.Width || row >= c.Height {
		return 0, 0, false
	}
	return row*c.Width + col, dotBits[y%4][x%2], true
}

func (c *Canvas) Set(x, y int) {
	if i, bit, ok := c.cell(x, y); ok {
		c.cells[i] |= bit
	}
}

func (c *Canvas) Unset(x, y int) {
	if i, bit, ok := c.cell(x, y); ok {
		c.cells[i] &^= bit
	}
}

func (c *Canvas) IsSet(x, y int) bool {
	i, bit, ok := c.cell(x, y)
	return ok && c.cells[i]&bit != 0
}

func (c *Canvas) Clear() { clear(c.cells) }

// DrawLine draws a line using Bresenham's algorithm.
func (c *Canvas) DrawLine(x0, y0, x1, y1 int) {
	dx, dy := absInt(x1-x0), -absInt(y1-y0)
	sx, sy := 1, 1
	if x1 < x0 {
		sx = -1
	}
	if y1 < y0 {
		sy = -1
	}
	err := dx + dy
	for {
		c.Set(x0, y0)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

// DrawDashed draws every other run of dash sub-pixels of a line.
func (c *Canvas) DrawDashed(x0, y0, x1, y1, dash int) {
	n := max(absInt(x1-x0), absInt(y1-y0))
	if n == 0 || dash <= 0 {
		c.Set(x0, y0)
		return
	}
	for i := 0; i <= n; i++ {
		if (i/dash)%2 != 0 {
			continue
		}
		c.Set(x0+(x1-x0)*i/n, y0+(y1-y0)*i/n)
	}
}

// Blob fills a square of side 2r+1 around (x, y).
func (c *Canvas) Blob(x, y, r int) {
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			c.Set(x+dx, y+dy)
		}
	}
}

func (c *Canvas) String() string {
	var b strings.Builder
	b.Grow(c.Height * (c.Width*3 + 1))
	for row := 0; row < c.Height; row++ {
		for _, cell := range c.cells[row*c.Width : (row+1)*c.Width] {
			b.WriteRune(rune(brailleBase + int(cell)))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
