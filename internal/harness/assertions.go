package harness

import (
	"fmt"
	"sort"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] +%dms %s\n", event.Seq, event.At, event.Label())
		}
	}

	return buf.String()
}

// selects reports whether the assertion's action or event selector picks e.
func selects(e TraceEvent, a Assertion) bool {
	if a.Action != "" {
		return e.Type == TraceInvoke && e.Action == a.Action
	}
	return e.Type == TraceSession && e.Kind == a.Event
}

func describe(a Assertion) string {
	target := "action " + a.Action
	if a.Event != "" {
		target = "event " + a.Event
	}
	if len(a.Match) > 0 {
		target += " with " + formatMatch(a.Match)
	}
	return target
}

// matchFields checks that every expected field is present with an equal
// value. Extra fields are ignored.
func matchFields(e TraceEvent, expected map[string]any) bool {
	if len(expected) == 0 {
		return true
	}
	actual := e.fields()
	for key, want := range expected {
		got, ok := actual[key]
		if !ok || !valuesEqual(want, got) {
			return false
		}
	}
	return true
}

// assertTraceContains checks that some entry matches the selector and
// fields.
func assertTraceContains(trace []TraceEvent, a Assertion) error {
	for _, event := range trace {
		if selects(event, a) && matchFields(event, a.Match) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: describe(a),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the labels appear in the given order.
// Entries don't need to be consecutive.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	next := 0
	for _, event := range trace {
		if next < len(a.Order) && event.Label() == a.Order[next] {
			next++
		}
	}
	if next == len(a.Order) {
		return nil
	}

	return &AssertionError{
		Type:     AssertTraceOrder,
		Expected: fmt.Sprintf("labels in order: %v", a.Order),
		Actual:   fmt.Sprintf("%s not found after %v", a.Order[next], a.Order[:next]),
		Trace:    trace,
	}
}

// assertTraceCount checks that exactly Count entries match.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, event := range trace {
		if selects(event, a) && matchFields(event, a.Match) {
			count++
		}
	}

	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", a.Count, describe(a)),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalState checks the expected state keys. Subset semantics; keys
// are compared in sorted order so the first failure is deterministic.
func assertFinalState(state map[string]any, a Assertion) error {
	keys := make([]string, 0, len(a.Expect))
	for k := range a.Expect {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		want := a.Expect[key]
		got, ok := state[key]
		if !ok {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%s = %v", key, want),
				Actual:   fmt.Sprintf("%s not present in state", key),
			}
		}
		if !valuesEqual(want, got) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%s = %v", key, want),
				Actual:   fmt.Sprintf("%s = %v", key, got),
			}
		}
	}
	return nil
}

// floatTolerance absorbs accumulated keyboard steps such as 0.14+14*0.05.
const floatTolerance = 1e-9

// valuesEqual compares a scenario value against an actual one. Numbers
// compare numerically, and a string on either side compares by its printed
// form so YAML scalars match trace fields.
func valuesEqual(expected, actual any) bool {
	if expected == nil || actual == nil {
		return expected == nil && actual == nil
	}

	if e, ok := toFloat(expected); ok {
		if a, ok := toFloat(actual); ok {
			d := e - a
			return d < floatTolerance && d > -floatTolerance
		}
	}

	switch exp := expected.(type) {
	case bool:
		if act, ok := actual.(bool); ok {
			return exp == act
		}
	case string:
		if act, ok := actual.(string); ok {
			return exp == act
		}
	}
	return fmt.Sprint(expected) == fmt.Sprint(actual)
}

func formatMatch(m map[string]any) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, m[k]))
	}
	return strings.Join(parts, " ")
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertFinalState:
			err = assertFinalState(result.State, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	return errs
}
