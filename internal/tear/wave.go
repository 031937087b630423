package tear

import "sort"

// Curve is a piecewise-linear torn edge in element units. Knots are sorted by
// X over [0,1]; Y is the depth of the tear below the top edge.
type Curve []Point

// Y interpolates the curve at x. Outside the knot range the end values hold.
func (c Curve) Y(x float64) float64 {
	switch {
	case len(c) == 0:
		return 0
	case x <= c[0].X:
		return c[0].Y
	case x >= c[len(c)-1].X:
		return c[len(c)-1].Y
	}
	i := sort.Search(len(c), func(i int) bool { return c[i].X >= x })
	a, b := c[i-1], c[i]
	if b.X == a.X {
		return b.Y
	}
	t := (x - a.X) / (b.X - a.X)
	return a.Y + (b.Y-a.Y)*t
}

const waveKnots = 8

// WaveCurve returns the torn edge for a stage and progress. Untouched stages
// are flat; tearing stages open a jagged edge over the first progress share
// of the width, deepening with progress; terminal stages are fully torn.
func WaveCurve(stage Stage, progress float64, depth float64) Curve {
	switch stage {
	case StageIntro, StageIdle, StageAligning:
		return Curve{{0, 0}, {1, 0}}
	case StageBurst, StageRevealed:
		progress = 1
	}
	progress = clamp01(progress)

	c := make(Curve, 0, waveKnots+1)
	for i := 0; i <= waveKnots; i++ {
		x := float64(i) / waveKnots
		y := 0.0
		if x <= progress {
			tooth := 0.6
			if i%2 == 1 {
				tooth = 1
			}
			y = depth * progress * tooth
		}
		c = append(c, Point{x, y})
	}
	return c
}

// RepulsionCenter is the point burst impulses push away from: the middle of
// the torn edge, slightly below it.
func RepulsionCenter(c Curve) Point {
	if len(c) == 0 {
		return Point{0.5, 0.25}
	}
	var sum Point
	for _, k := range c {
		sum = sum.add(k)
	}
	mean := sum.scale(1 / float64(len(c)))
	return Point{mean.X, mean.Y + 0.25}
}
