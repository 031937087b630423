package tear

import (
	"math"
	"math/rand/v2"
)

// Particle is one floating particle in element units.
type Particle struct {
	X, Y   float64
	VX, VY float64
	// Base is the particle's intrinsic opacity before Fade.
	Base float64
}

// Pool is the particle pool plus its pool-wide fade coefficient.
type Pool struct {
	Particles []Particle
	Fade      float64
	// Decaying is set by Burst; Fade shrinks every step until the pool clears.
	Decaying bool
}

// Empty reports whether the pool holds no particles.
func (p Pool) Empty() bool {
	return len(p.Particles) == 0
}

// Boundary is the clipping shape particles reflect off.
type Boundary struct {
	CornerRadius float64
	Edge         Curve
}

// Env is the per-step input of Simulate.
type Env struct {
	Stage         Stage
	Progress      float64
	Speed         Speed
	ReducedMotion bool
	Boundary      Boundary
	Physics       Physics
}

// Seed fills a fresh pool of n resting particles below edge.
func Seed(n int, edge Curve, rng *rand.Rand) Pool {
	ps := make([]Particle, n)
	for i := range ps {
		x := 0.04 + 0.92*rng.Float64()
		top := math.Max(edge.Y(x), 0) + 0.04
		ps[i] = Particle{
			X:    x,
			Y:    top + (0.96-top)*rng.Float64(),
			VX:   (rng.Float64()*2 - 1) * 0.02,
			VY:   (rng.Float64()*2 - 1) * 0.02,
			Base: 0.35 + 0.65*rng.Float64(),
		}
	}
	return Pool{Particles: ps, Fade: 1}
}

// Simulate advances the pool by dt seconds. The input pool is not modified.
func Simulate(pool Pool, dt float64, env Env, rng *rand.Rand) Pool {
	ph := env.Physics
	out := Pool{Fade: pool.Fade, Decaying: pool.Decaying}

	if pool.Decaying {
		rate := ph.DecayRate
		if env.ReducedMotion {
			rate = ph.ReducedDecayRate
		}
		out.Fade *= math.Exp(-rate * dt)
		if out.Fade < ph.FadeFloor {
			out.Fade = 0
			return out
		}
	}

	jitter := ph.Jitter
	if env.ReducedMotion {
		jitter *= ph.ReducedJitterScale
	}
	switch env.Speed {
	case SpeedFast:
		jitter *= 1.6
	case SpeedSlow:
		jitter *= 1.2
	}

	ceiling := ph.BaseMaxSpeed + ph.ProgressMaxSpeed*clamp01(env.Progress)
	if pool.Decaying {
		ceiling = ph.BurstMaxSpeed
	}

	out.Particles = make([]Particle, len(pool.Particles))
	for i, p := range pool.Particles {
		if !pool.Decaying {
			p.VX += (rng.Float64()*2 - 1) * jitter * dt
			p.VY += (rng.Float64()*2 - 1) * jitter * dt
		}
		if v := math.Hypot(p.VX, p.VY); v > ceiling {
			k := ceiling / v
			p.VX *= k
			p.VY *= k
		}
		p.X += p.VX * dt
		p.Y += p.VY * dt
		if !pool.Decaying {
			p = contain(p, env.Boundary)
		}
		out.Particles[i] = p
	}
	return out
}

// Burst pushes every particle away from center and starts the fade.
func Burst(pool Pool, center Point, strength float64) Pool {
	out := Pool{Fade: pool.Fade, Decaying: true, Particles: make([]Particle, len(pool.Particles))}
	if out.Fade == 0 {
		out.Fade = 1
	}
	for i, p := range pool.Particles {
		d := Point{p.X, p.Y}.sub(center)
		dist := d.len()
		dir := Point{0, -1}
		if dist > 1e-9 {
			dir = d.scale(1 / dist)
		}
		// Closer particles get the stronger kick.
		k := strength * (1 + (1 - math.Min(dist, 1)))
		p.VX += dir.X * k
		p.VY += dir.Y * k
		out.Particles[i] = p
	}
	return out
}

// contain reflects p back inside the rounded rect and below the torn edge.
func contain(p Particle, b Boundary) Particle {
	if p.X < 0 {
		p.X, p.VX = -p.X, math.Abs(p.VX)
	}
	if p.X > 1 {
		p.X, p.VX = 2-p.X, -math.Abs(p.VX)
	}
	if p.Y > 1 {
		p.Y, p.VY = 2-p.Y, -math.Abs(p.VY)
	}

	if r := b.CornerRadius; r > 0 {
		for _, c := range [...]Point{{r, r}, {1 - r, r}, {r, 1 - r}, {1 - r, 1 - r}} {
			outsideX := (c.X < 0.5 && p.X < c.X) || (c.X > 0.5 && p.X > c.X)
			outsideY := (c.Y < 0.5 && p.Y < c.Y) || (c.Y > 0.5 && p.Y > c.Y)
			if !outsideX || !outsideY {
				continue
			}
			d := Point{p.X, p.Y}.sub(c)
			dist := d.len()
			if dist <= r {
				continue
			}
			n := d.scale(1 / dist)
			pos := c.add(n.scale(r))
			p.X, p.Y = pos.X, pos.Y
			if vn := p.VX*n.X + p.VY*n.Y; vn > 0 {
				p.VX -= 2 * vn * n.X
				p.VY -= 2 * vn * n.Y
			}
		}
	}

	if top := math.Max(b.Edge.Y(p.X), 0); p.Y < top {
		p.Y, p.VY = math.Min(2*top-p.Y, 1), math.Abs(p.VY)
	}
	return p
}
