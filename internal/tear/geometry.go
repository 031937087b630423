package tear

import "math"

// Rect is the element's client rectangle in pixels.
type Rect struct {
	X, Y, W, H float64
}

// Empty reports whether the rect has no area.
func (r Rect) Empty() bool {
	return r.W <= 0 || r.H <= 0
}

// Diagonal returns the length of the tear diagonal in pixels.
func (r Rect) Diagonal() float64 {
	return math.Hypot(r.W, r.H)
}

// Point is a 2D point. Depending on context it is in pixels or in
// element-normalized units, where (0,0) is the top-left corner and (1,1) the
// bottom-right one.
type Point struct {
	X, Y float64
}

func (p Point) sub(q Point) Point     { return Point{p.X - q.X, p.Y - q.Y} }
func (p Point) add(q Point) Point     { return Point{p.X + q.X, p.Y + q.Y} }
func (p Point) scale(k float64) Point { return Point{p.X * k, p.Y * k} }
func (p Point) dot(q Point) float64   { return p.X*q.X + p.Y*q.Y }
func (p Point) len() float64          { return math.Hypot(p.X, p.Y) }

// normalize maps a client point into element units.
func (r Rect) normalize(p Point) Point {
	return Point{(p.X - r.X) / r.W, (p.Y - r.Y) / r.H}
}

// direction is the unit tear direction in pixel space, from the top-left to
// the bottom-right corner.
func (r Rect) direction() Point {
	d := r.Diagonal()
	return Point{r.W / d, r.H / d}
}

// inStartZone reports whether n lies in the top-left start square.
func inStartZone(n Point, size, ext float64) bool {
	lim := size + ext
	return n.X >= -ext && n.Y >= -ext && n.X <= lim && n.Y <= lim
}

// inCutlineBand reports whether n lies within half-width of the tear
// diagonal, between the two corners.
func inCutlineBand(n Point, half, ext float64) bool {
	if n.X < -ext || n.Y < -ext || n.X > 1+ext || n.Y > 1+ext {
		return false
	}
	return math.Abs(n.X-n.Y)/math.Sqrt2 <= half+ext
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
