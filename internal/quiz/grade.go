package quiz

import (
	"strings"
	"time"
)

// AnswerKey maps question ids to their known correct answers.
type AnswerKey map[string]string

// Grade compares answer with the known answer for id after trimming
// surrounding whitespace. known is false when id has no entry.
func (k AnswerKey) Grade(id, answer string) (correct, known bool) {
	want, ok := k[id]
	if !ok {
		return false, false
	}
	return Matches(want, answer), true
}

// Matches reports whether answer equals want, ignoring surrounding
// whitespace. Case is significant.
func Matches(want, answer string) bool {
	return strings.TrimSpace(want) == strings.TrimSpace(answer)
}

// Graded is one graded result that is not a journey response.
type Graded struct {
	Correct    bool
	RecordedAt time.Time
}

// Stats aggregates answered prompts for the result scene.
type Stats struct {
	// Answered counts every response.
	Answered int `json:"answered"`
	// Graded counts responses with a known answer.
	Graded         int       `json:"graded"`
	Correct        int       `json:"correct"`
	LastRecordedAt time.Time `json:"lastRecordedAt"`
}

// Score returns Correct/Graded, or 0 when nothing was graded.
func (s Stats) Score() float64 {
	if s.Graded == 0 {
		return 0
	}
	return float64(s.Correct) / float64(s.Graded)
}

// ComputeStats aggregates responses and extra graded results.
func ComputeStats(responses []JourneyResponse, extra ...Graded) Stats {
	var st Stats
	note := func(at time.Time) {
		if at.After(st.LastRecordedAt) {
			st.LastRecordedAt = at
		}
	}
	for _, r := range responses {
		st.Answered++
		if r.IsCorrect != nil {
			st.Graded++
			if *r.IsCorrect {
				st.Correct++
			}
		}
		note(r.RecordedAt)
	}
	for _, g := range extra {
		st.Answered++
		st.Graded++
		if g.Correct {
			st.Correct++
		}
		note(g.RecordedAt)
	}
	return st
}
