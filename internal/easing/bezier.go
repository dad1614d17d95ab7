package easing

import "math"

// bezier is a unit cubic-bezier curve from (0,0) to (1,1), evaluated the
// way browsers evaluate CSS timing functions.
type bezier struct {
	cx, bx, ax float64
	cy, by, ay float64
}

func newBezier(x1, y1, x2, y2 float64) bezier {
	var b bezier
	b.cx = 3 * x1
	b.bx = 3*(x2-x1) - b.cx
	b.ax = 1 - b.cx - b.bx
	b.cy = 3 * y1
	b.by = 3*(y2-y1) - b.cy
	b.ay = 1 - b.cy - b.by
	return b
}

func (b bezier) sampleX(t float64) float64 { return ((b.ax*t+b.bx)*t + b.cx) * t }
func (b bezier) sampleY(t float64) float64 { return ((b.ay*t+b.by)*t + b.cy) * t }
func (b bezier) sampleDX(t float64) float64 {
	return (3*b.ax*t+2*b.bx)*t + b.cx
}

const epsilon = 1e-7

// solveX finds the curve parameter for x with Newton steps, falling back
// to bisection.
func (b bezier) solveX(x float64) float64 {
	t := x
	for i := 0; i < 8; i++ {
		x2 := b.sampleX(t) - x
		if math.Abs(x2) < epsilon {
			return t
		}
		d := b.sampleDX(t)
		if math.Abs(d) < 1e-6 {
			break
		}
		t -= x2 / d
	}

	lo, hi := 0.0, 1.0
	t = x
	if t < lo {
		return lo
	}
	if t > hi {
		return hi
	}
	for lo < hi {
		x2 := b.sampleX(t)
		if math.Abs(x2-x) < epsilon {
			return t
		}
		if x > x2 {
			lo = t
		} else {
			hi = t
		}
		t = (hi-lo)/2 + lo
		if hi-lo < epsilon {
			break
		}
	}
	return t
}

// at returns the eased progress for linear progress p in [0,1].
func (b bezier) at(p float64) float64 {
	if p <= 0 {
		return 0
	}
	if p >= 1 {
		return 1
	}
	return b.sampleY(b.solveX(p))
}
