package tui

import (
	"context"

	"github.com/roach88/keepsake/internal/experience"
	"github.com/roach88/keepsake/internal/quiz"
	"github.com/roach88/keepsake/internal/scene"
	"github.com/roach88/keepsake/internal/tap"
	"github.com/roach88/keepsake/internal/tear"
)

// Frame is a copy of everything the view renders. It is captured on the
// session loop and read on the UI goroutine.
type Frame struct {
	Title         string
	Scene         scene.ID
	Index, Total  int
	Boot          scene.BootState
	Ready         bool
	CanGoBack     bool
	Distance      float64
	ShowsDistance bool
	Preload       float64

	Prologue []string
	Journeys []JourneyView
	Messages []MessageView
	Counter  *CounterView
	Tear     *TearView

	LetterOpened bool
	Letter       string
	Headline     string
	Stats        quiz.Stats
}

// JourneyView is one journey with its answered steps.
type JourneyView struct {
	ID         string
	Title      string
	DistanceKm float64
	Steps      []StepView
}

// StepView is one journey prompt.
type StepView struct {
	ID       string
	Prompt   string
	Type     string
	Choices  []string
	Answer   string
	Answered bool
	Correct  *bool
}

// MessageView is one "who said it" message.
type MessageView struct {
	ID      string
	Text    string
	Choices []string
	Answer  string
	Locked  bool
}

// CounterView is the active tap counter.
type CounterView struct {
	Name       string
	Count      int
	Target     int
	Ratio      float64
	Phase      tap.Phase
	Lines      []string
	CanAdvance bool
}

// TearView is the letter gesture.
type TearView struct {
	Stage     tear.Stage
	Progress  float64
	Speed     tear.Speed
	Particles int
}

// Capture copies the session state into a Frame. Must run on the session's
// loop.
func Capture(ctx context.Context, s *experience.Session) Frame {
	exp := s.Experience()
	seq := s.Sequencer()
	f := Frame{
		Title:         exp.Title,
		Scene:         seq.Current(),
		Index:         seq.Index(),
		Total:         len(seq.Order()),
		Boot:          seq.BootState(),
		Ready:         seq.Ready(),
		CanGoBack:     s.CanGoBack(),
		Distance:      seq.Distance(),
		ShowsDistance: seq.ShowsDistance(),
		Preload:       s.Preloader().Ratio(),
		LetterOpened:  s.LetterOpened(),
		Letter:        exp.Letter.Markdown,
		Headline:      exp.Result.Headline,
		Stats:         s.Stats(),
	}

	switch f.Scene {
	case scene.Prologue:
		f.Prologue = append([]string(nil), exp.Prologue.Lines...)
	case scene.Journeys:
		f.Journeys = journeyViews(ctx, s)
	case scene.Messages:
		f.Messages = messageViews(s)
	}

	if c := s.Counter(); c != nil {
		f.Counter = &CounterView{
			Name:       c.Name(),
			Count:      c.Count(),
			Target:     c.Target(),
			Ratio:      c.Ratio(),
			Phase:      c.Phase(),
			Lines:      c.VisibleLines(),
			CanAdvance: c.CanAdvance(),
		}
	}
	if m := s.Tear(); m != nil {
		st := m.State()
		f.Tear = &TearView{
			Stage:     st.Stage,
			Progress:  st.Progress,
			Speed:     st.Speed,
			Particles: len(m.Pool().Particles),
		}
	}
	return f
}

func journeyViews(ctx context.Context, s *experience.Session) []JourneyView {
	answered := make(map[string]quiz.JourneyResponse)
	for _, r := range s.Responses(ctx) {
		answered[r.StorageKey] = r
	}

	exp := s.Experience()
	views := make([]JourneyView, 0, len(exp.Journeys))
	for _, j := range exp.Journeys {
		jv := JourneyView{ID: j.ID, Title: j.Title, DistanceKm: j.DistanceKm}
		for _, st := range j.Steps {
			sv := StepView{
				ID:      st.ID,
				Prompt:  st.Prompt,
				Type:    st.Type,
				Choices: append([]string(nil), st.Choices...),
			}
			if r, ok := answered[st.StorageKey(j.ID)]; ok {
				sv.Answer, sv.Answered, sv.Correct = r.Answer, true, r.IsCorrect
			}
			jv.Steps = append(jv.Steps, sv)
		}
		views = append(views, jv)
	}
	return views
}

func messageViews(s *experience.Session) []MessageView {
	exp := s.Experience()
	views := make([]MessageView, 0, len(exp.Messages))
	for _, m := range exp.Messages {
		mv := MessageView{
			ID:      m.ID,
			Text:    m.Text,
			Choices: append([]string(nil), m.Choices...),
		}
		if sel, ok := s.Selector(m.ID); ok {
			if a, ok := sel.Answer(); ok {
				mv.Answer = a.Answer
			}
			mv.Locked = sel.Locked()
		}
		views = append(views, mv)
	}
	return views
}

// steps flattens the journeys into the order the cursor walks them.
func (f Frame) steps() []stepRef {
	var refs []stepRef
	for _, j := range f.Journeys {
		for _, st := range j.Steps {
			refs = append(refs, stepRef{Journey: j.ID, Step: st})
		}
	}
	return refs
}

type stepRef struct {
	Journey string
	Step    StepView
}
