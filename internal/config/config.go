// Package config loads the experience configuration: scene order, content
// tables and interaction tuning.
//
// Configuration is written in CUE. A file defines an `experience` struct
// which is unified with the embedded #Experience schema, so every field not
// given falls back to its schema default. Without a file the embedded
// default.cue is used.
package config

import (
	_ "embed"
	"fmt"
	"time"
)

//go:embed schema.cue
var schemaCUE string

//go:embed default.cue
var defaultCUE string

// Experience is the decoded configuration.
type Experience struct {
	Title    string    `json:"title"`
	Scenes   []string  `json:"scenes"`
	Boot     Boot      `json:"boot"`
	Preload  Preload   `json:"preload"`
	Tear     Tear      `json:"tear"`
	Prologue Prologue  `json:"prologue"`
	Journeys []Journey `json:"journeys"`
	Messages []Message `json:"messages"`
	Counters Counters  `json:"counters"`
	Letter   Letter    `json:"letter"`
	Result   Result    `json:"result"`
}

type Boot struct {
	Delay Duration `json:"delay"`
}

type Preload struct {
	SoftAfter   Duration `json:"softAfter"`
	SoftRatio   float64  `json:"softRatio"`
	Concurrency int      `json:"concurrency"`
	Assets      []Asset  `json:"assets"`
}

type Asset struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

type Tear struct {
	IntroDelay           Duration `json:"introDelay"`
	AlignTimeout         Duration `json:"alignTimeout"`
	RevealDelay          Duration `json:"revealDelay"`
	CompletionThreshold  float64  `json:"completionThreshold"`
	AlignPromptThreshold float64  `json:"alignPromptThreshold"`
	FirstKeyStep         float64  `json:"firstKeyStep"`
	RepeatKeyStep        float64  `json:"repeatKeyStep"`
}

type Prologue struct {
	Lines []string `json:"lines"`
}

// Journey is one trip on the journeys scene.
type Journey struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	DistanceKm float64 `json:"distanceKm"`
	Steps      []Step  `json:"steps"`
}

// Step is one prompt of a journey. Answer is empty for open questions.
type Step struct {
	ID      string   `json:"id"`
	Prompt  string   `json:"prompt"`
	Type    string   `json:"type"`
	Choices []string `json:"choices"`
	Answer  string   `json:"answer,omitempty"`
}

// StorageKey identifies the step's persisted response.
func (s Step) StorageKey(journeyID string) string {
	return journeyID + "." + s.ID
}

// Message is one "who said it" question.
type Message struct {
	ID      string   `json:"id"`
	Text    string   `json:"text"`
	Choices []string `json:"choices"`
	Answer  string   `json:"answer"`
}

type Counters struct {
	Likes Counter `json:"likes"`
	Links Counter `json:"links"`
	Media Counter `json:"media"`
}

type Counter struct {
	Target    int      `json:"target"`
	Increment int      `json:"increment"`
	Start     int      `json:"start"`
	Lines     []string `json:"lines"`
	LineDelay Duration `json:"lineDelay"`
	CTADelay  Duration `json:"ctaDelay"`
}

type Letter struct {
	Markdown string `json:"markdown"`
}

type Result struct {
	Headline string `json:"headline"`
}

// Duration is a time.Duration written as a Go duration string.
type Duration time.Duration

// D returns the value as a time.Duration.
func (d Duration) D() time.Duration {
	return time.Duration(d)
}

// UnmarshalText parses a duration string such as "700ms".
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", b, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalText formats the duration.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Journey returns the journey with id.
func (e *Experience) Journey(id string) (Journey, bool) {
	for _, j := range e.Journeys {
		if j.ID == id {
			return j, true
		}
	}
	return Journey{}, false
}

// Message returns the message with id.
func (e *Experience) Message(id string) (Message, bool) {
	for _, m := range e.Messages {
		if m.ID == id {
			return m, true
		}
	}
	return Message{}, false
}

// AnswerKey returns every known answer: message answers by message id and
// journey step answers by storage key.
func (e *Experience) AnswerKey() map[string]string {
	key := make(map[string]string)
	for _, m := range e.Messages {
		key[m.ID] = m.Answer
	}
	for _, j := range e.Journeys {
		for _, s := range j.Steps {
			if s.Answer != "" {
				key[s.StorageKey(j.ID)] = s.Answer
			}
		}
	}
	return key
}
