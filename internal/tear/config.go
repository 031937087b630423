package tear

import "time"

// ModeTuning holds pointer-mode-dependent gesture constants.
type ModeTuning struct {
	// RequiredFraction of the element diagonal a first tear must travel.
	RequiredFraction float64
	// BacktrackRatio of the required distance the pointer may move against
	// the tear direction before the origin is rebased.
	BacktrackRatio float64
	// ZoneExtension widens the start zone and cutline band (normalized).
	ZoneExtension float64
}

// Physics holds particle simulation constants. Speeds are in normalized
// element units per second.
type Physics struct {
	Jitter             float64
	ReducedJitterScale float64
	BaseMaxSpeed       float64
	ProgressMaxSpeed   float64
	BurstMaxSpeed      float64
	BurstImpulse       float64
	DecayRate          float64
	ReducedDecayRate   float64
	FadeFloor          float64
	CornerRadius       float64
	TearDepth          float64
}

// Config holds the gesture tuning. The numbers are illustrative defaults,
// not correctness requirements.
type Config struct {
	IntroDelay   time.Duration
	AlignTimeout time.Duration
	RevealDelay  time.Duration

	// CompletionThreshold is the progress at which a release completes.
	CompletionThreshold float64
	// AlignPromptThreshold is the aborted progress above which the machine
	// re-prompts with an aligning detour instead of going straight to idle.
	AlignPromptThreshold float64

	// StartZone is the side of the top-left start square (normalized).
	StartZone float64
	// CutlineBand is the half-width of the band around the tear diagonal in
	// which a primed gesture may resume (normalized).
	CutlineBand float64
	// PrimedFactor scales the required distance when resuming.
	PrimedFactor float64
	// MinRequiredDistance in pixels.
	MinRequiredDistance float64

	FastVelocity float64
	SlowVelocity float64

	FirstKeyStep  float64
	RepeatKeyStep float64

	Modes map[PointerMode]ModeTuning

	PoolSize     int
	MaxFrameStep time.Duration
	Physics      Physics
}

// DefaultPoolSize is the number of floating particles.
const DefaultPoolSize = 365

// DefaultConfig returns the default tuning.
func DefaultConfig() Config {
	return Config{
		IntroDelay:           900 * time.Millisecond,
		AlignTimeout:         2400 * time.Millisecond,
		RevealDelay:          1100 * time.Millisecond,
		CompletionThreshold:  0.82,
		AlignPromptThreshold: 0.18,
		StartZone:            0.3,
		CutlineBand:          0.12,
		PrimedFactor:         0.7,
		MinRequiredDistance:  90,
		FastVelocity:         0.9,
		SlowVelocity:         0.2,
		FirstKeyStep:         0.14,
		RepeatKeyStep:        0.05,
		Modes: map[PointerMode]ModeTuning{
			PointerMouse:   {RequiredFraction: 0.62, BacktrackRatio: 0.3},
			PointerTouch:   {RequiredFraction: 0.46, BacktrackRatio: 0.22, ZoneExtension: 0.08},
			PointerPen:     {RequiredFraction: 0.5, BacktrackRatio: 0.25, ZoneExtension: 0.05},
			PointerUnknown: {RequiredFraction: 0.62, BacktrackRatio: 0.3},
		},
		PoolSize:     DefaultPoolSize,
		MaxFrameStep: 50 * time.Millisecond,
		Physics: Physics{
			Jitter:             0.35,
			ReducedJitterScale: 0.25,
			BaseMaxSpeed:       0.06,
			ProgressMaxSpeed:   0.22,
			BurstMaxSpeed:      2.4,
			BurstImpulse:       0.9,
			DecayRate:          3.2,
			ReducedDecayRate:   1.6,
			FadeFloor:          0.01,
			CornerRadius:       0.08,
			TearDepth:          0.18,
		},
	}
}

func (c Config) mode(m PointerMode) ModeTuning {
	if t, ok := c.Modes[m]; ok {
		return t
	}
	return c.Modes[PointerUnknown]
}
