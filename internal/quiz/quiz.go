// Package quiz persists quiz answers and journey prompt responses.
//
// Storage is best effort: every backend failure is logged and swallowed, so
// the experience keeps working with whatever the store could provide.
// Persisted records are validated on load and malformed ones are dropped.
package quiz

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/roach88/keepsake/internal/kv"
)

// Storage keys.
const (
	AnswerPrefix = "quiz.answer."
	ResponsesKey = "quiz.journey-responses"
	StatsKey     = "quiz.stats"
)

// Answer is a persisted quiz answer.
type Answer struct {
	ID         string    `json:"id"`
	Answer     string    `json:"answer"`
	RecordedAt time.Time `json:"recordedAt"`
}

// JourneyResponse is one answered journey prompt. IsCorrect is nil when the
// step has no known answer.
type JourneyResponse struct {
	JourneyID     string    `json:"journeyId"`
	StepID        string    `json:"stepId"`
	StorageKey    string    `json:"storageKey"`
	Prompt        string    `json:"prompt,omitempty"`
	Answer        string    `json:"answer"`
	QuestionType  string    `json:"questionType,omitempty"`
	CorrectAnswer string    `json:"correctAnswer,omitempty"`
	IsCorrect     *bool     `json:"isCorrect,omitempty"`
	RecordedAt    time.Time `json:"recordedAt"`
}

// Store reads and writes quiz records through a kv.Store.
type Store struct {
	kv     kv.Store
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithNow sets the clock used for RecordedAt.
func WithNow(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// New creates a Store over backend.
func New(backend kv.Store, opts ...Option) *Store {
	s := &Store{kv: backend, now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LoadAnswer returns the stored answer for id. ok is false when there is
// none, when it is malformed, or when storage is unavailable.
func (s *Store) LoadAnswer(ctx context.Context, id string) (Answer, bool) {
	raw, ok := s.get(ctx, AnswerPrefix+id)
	if !ok {
		return Answer{}, false
	}
	var a Answer
	if err := decodeValid(answerSchema, raw, &a); err != nil {
		s.logger.Warn("dropping malformed answer", "id", id, "error", err)
		return Answer{}, false
	}
	return a, true
}

// SaveAnswer stores answer for id and returns the record. A storage failure
// is logged; the returned record is still valid for the session.
func (s *Store) SaveAnswer(ctx context.Context, id, answer string) Answer {
	a := Answer{ID: id, Answer: answer, RecordedAt: s.now().UTC()}
	s.put(ctx, AnswerPrefix+id, a)
	return a
}

// Answers returns every stored answer, ordered by id.
func (s *Store) Answers(ctx context.Context) []Answer {
	keys, err := s.kv.Keys(ctx, AnswerPrefix)
	if err != nil {
		s.logger.Warn("listing answers failed", "error", err)
		return nil
	}
	var out []Answer
	for _, k := range keys {
		if a, ok := s.LoadAnswer(ctx, strings.TrimPrefix(k, AnswerPrefix)); ok {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// JourneyResponses returns the stored responses. Malformed entries are
// dropped individually.
func (s *Store) JourneyResponses(ctx context.Context) []JourneyResponse {
	raw, ok := s.get(ctx, ResponsesKey)
	if !ok {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		s.logger.Warn("dropping malformed journey responses", "error", err)
		return nil
	}
	out := make([]JourneyResponse, 0, len(items))
	for i, item := range items {
		var r JourneyResponse
		if err := decodeValid(responseSchema, item, &r); err != nil {
			s.logger.Warn("dropping malformed journey response", "index", i, "error", err)
			continue
		}
		out = append(out, r)
	}
	return out
}

// SaveJourneyResponse stores r, replacing any response with the same
// StorageKey. RecordedAt defaults to now.
func (s *Store) SaveJourneyResponse(ctx context.Context, r JourneyResponse) JourneyResponse {
	if r.RecordedAt.IsZero() {
		r.RecordedAt = s.now().UTC()
	}
	list := s.JourneyResponses(ctx)
	replaced := false
	for i := range list {
		if list[i].StorageKey == r.StorageKey {
			list[i] = r
			replaced = true
			break
		}
	}
	if !replaced {
		list = append(list, r)
	}
	s.put(ctx, ResponsesKey, list)
	return r
}

// JourneyResponse returns the stored response for storageKey.
func (s *Store) JourneyResponse(ctx context.Context, storageKey string) (JourneyResponse, bool) {
	for _, r := range s.JourneyResponses(ctx) {
		if r.StorageKey == storageKey {
			return r, true
		}
	}
	return JourneyResponse{}, false
}

// RefreshStats recomputes the stats from the stored journey responses plus
// extra graded results, persists them and returns them.
func (s *Store) RefreshStats(ctx context.Context, extra ...Graded) Stats {
	st := ComputeStats(s.JourneyResponses(ctx), extra...)
	s.put(ctx, StatsKey, st)
	return st
}

// LoadStats returns the last persisted stats.
func (s *Store) LoadStats(ctx context.Context) (Stats, bool) {
	raw, ok := s.get(ctx, StatsKey)
	if !ok {
		return Stats{}, false
	}
	var st Stats
	if err := decodeValid(statsSchema, raw, &st); err != nil {
		s.logger.Warn("dropping malformed stats", "error", err)
		return Stats{}, false
	}
	return st, true
}

func (s *Store) get(ctx context.Context, key string) ([]byte, bool) {
	raw, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		s.logger.Warn("storage read failed", "key", key, "error", err)
		return nil, false
	}
	return raw, ok
}

func (s *Store) put(ctx context.Context, key string, v any) {
	raw, err := kv.Encode(v)
	if err != nil {
		s.logger.Warn("encoding record failed", "key", key, "error", err)
		return
	}
	if err := s.kv.Set(ctx, key, raw); err != nil {
		s.logger.Warn("storage write failed", "key", key, "error", err)
	}
}
