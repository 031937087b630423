package experience

import (
	"github.com/roach88/keepsake/internal/config"
	"github.com/roach88/keepsake/internal/scene"
	"github.com/roach88/keepsake/internal/tap"
	"github.com/roach88/keepsake/internal/tear"
)

// Snapshot keys owned by the session.
const (
	OpenedKey     = "letter.opened"
	VisitedPrefix = "journeys.visited."
)

// counterScenes are the scenes driven by a tap counter.
var counterScenes = []scene.ID{scene.Likes, scene.Links, scene.Media}

func isCounterScene(id scene.ID) bool {
	switch id {
	case scene.Likes, scene.Links, scene.Media:
		return true
	}
	return false
}

func sceneOrder(exp *config.Experience) []scene.ID {
	ids := make([]scene.ID, len(exp.Scenes))
	for i, s := range exp.Scenes {
		ids[i] = scene.ID(s)
	}
	return ids
}

// TearConfig applies the configured tuning over the default gesture tuning.
func TearConfig(t config.Tear) tear.Config {
	cfg := tear.DefaultConfig()
	cfg.IntroDelay = t.IntroDelay.D()
	cfg.AlignTimeout = t.AlignTimeout.D()
	cfg.RevealDelay = t.RevealDelay.D()
	cfg.CompletionThreshold = t.CompletionThreshold
	cfg.AlignPromptThreshold = t.AlignPromptThreshold
	cfg.FirstKeyStep = t.FirstKeyStep
	cfg.RepeatKeyStep = t.RepeatKeyStep
	return cfg
}

// CounterConfig returns the tap counter configuration for a counter scene.
func CounterConfig(exp *config.Experience, id scene.ID) (tap.Config, bool) {
	var c config.Counter
	switch id {
	case scene.Likes:
		c = exp.Counters.Likes
	case scene.Links:
		c = exp.Counters.Links
	case scene.Media:
		c = exp.Counters.Media
	default:
		return tap.Config{}, false
	}
	return tap.Config{
		Name:      string(id),
		Target:    c.Target,
		Increment: c.Increment,
		Start:     c.Start,
		Lines:     append([]string(nil), c.Lines...),
		LineDelay: c.LineDelay.D(),
		CTADelay:  c.CTADelay.D(),
	}, true
}

func counterKeys(id scene.ID) []string {
	prefix := "tap." + string(id) + "."
	return []string{prefix + "count", prefix + "phase", prefix + "shown"}
}
