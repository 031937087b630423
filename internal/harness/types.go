package harness

import "fmt"

// Trace event types.
const (
	TraceInvoke  = "invoke"
	TraceSession = "event"
)

// TraceEvent is one entry of a run's trace: either a scripted invocation or
// a notification emitted by the session while it ran.
type TraceEvent struct {
	Seq int64 `json:"seq"`
	// At is the virtual time in milliseconds since the run started.
	At   int64  `json:"at_ms"`
	Type string `json:"type"`

	// Invocations.
	Action string         `json:"action,omitempty"`
	Args   map[string]any `json:"args,omitempty"`
	Result any            `json:"result,omitempty"`

	// Session events.
	Kind  string `json:"kind,omitempty"`
	From  string `json:"from,omitempty"`
	To    string `json:"to,omitempty"`
	Key   string `json:"key,omitempty"`
	Value string `json:"value,omitempty"`
}

// Label is the short form used by trace_order: the action name for
// invocations, and kind:subject for events, where the subject is the first
// non-empty of To, Value and Key.
func (e TraceEvent) Label() string {
	if e.Type == TraceInvoke {
		return e.Action
	}
	subject := e.To
	if subject == "" {
		subject = e.Value
	}
	if subject == "" {
		subject = e.Key
	}
	if subject == "" {
		return e.Kind
	}
	return e.Kind + ":" + subject
}

// fields flattens the event for subset matching.
func (e TraceEvent) fields() map[string]string {
	if e.Type == TraceInvoke {
		out := map[string]string{"action": e.Action}
		for k, v := range e.Args {
			out[k] = fmt.Sprint(v)
		}
		if e.Result != nil {
			out["result"] = fmt.Sprint(e.Result)
		}
		return out
	}
	return map[string]string{
		"kind":  e.Kind,
		"from":  e.From,
		"to":    e.To,
		"key":   e.Key,
		"value": e.Value,
	}
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace contains every invocation and session event in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failed expectations and assertions.
	Errors []string `json:"errors,omitempty"`

	// State is the session state after the last step.
	State map[string]any `json:"state,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		State:  make(map[string]any),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
