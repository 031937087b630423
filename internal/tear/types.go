package tear

// Stage is a discrete phase of the tear interaction.
type Stage string

const (
	StageIntro    Stage = "intro"
	StageIdle     Stage = "idle"
	StageAligning Stage = "aligning"
	StageTearing  Stage = "tearing"
	StagePrimed   Stage = "primed"
	StageBurst    Stage = "burst"
	StageRevealed Stage = "revealed"
)

// Terminal reports whether the stage accepts no further gestures.
func (s Stage) Terminal() bool {
	return s == StageBurst || s == StageRevealed
}

// resting reports whether particles should be floating in this stage.
func (s Stage) resting() bool {
	switch s {
	case StageIdle, StageAligning, StageTearing, StagePrimed:
		return true
	}
	return false
}

// Speed classifies how fast progress is changing.
type Speed string

const (
	SpeedIdle Speed = "idle"
	SpeedSlow Speed = "slow"
	SpeedFast Speed = "fast"
)

// PointerMode is the input device that produced a pointer event.
type PointerMode string

const (
	PointerMouse   PointerMode = "mouse"
	PointerTouch   PointerMode = "touch"
	PointerPen     PointerMode = "pen"
	PointerUnknown PointerMode = "unknown"
)

// ParsePointerMode maps a pointer-type tag to a PointerMode.
func ParsePointerMode(s string) PointerMode {
	switch PointerMode(s) {
	case PointerMouse, PointerTouch, PointerPen:
		return PointerMode(s)
	}
	return PointerUnknown
}

// Key is a keyboard key relevant to the gesture.
type Key string

const (
	KeySpace Key = "space"
	KeyEnter Key = "enter"
)

func (k Key) activates() bool {
	return k == KeySpace || k == KeyEnter
}

// PointerEvent carries one pointer sample in client coordinates.
type PointerEvent struct {
	ID   int
	Mode PointerMode
	X, Y float64
}

// State is the observable gesture state.
type State struct {
	Stage       Stage
	Progress    float64
	Speed       Speed
	PointerMode PointerMode
}

// Capturer grabs and releases pointer capture on the host element.
type Capturer interface {
	Capture(id int)
	Release(id int)
}
