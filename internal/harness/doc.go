// Package harness runs scripted playthroughs of the experience against a
// virtual clock and checks the resulting trace.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: open_the_letter
//	description: "Keyboard tear completes and unlocks the result"
//	config: ../configs/short.cue   # optional, relative to the scenario
//	reduced_motion: false
//	steps:
//	  - do: advance
//	    args: { duration: 1200ms }
//	  - do: goto
//	    args: { scene: letter }
//	    expect: { ok: true, scene: letter }
//	  - do: key_down
//	    args: { key: space, times: 15 }
//	assertions:
//	  - type: trace_contains
//	    event: stage
//	    match: { to: burst }
//	  - type: trace_order
//	    order: ["stage:tearing", "stage:burst", "stage:revealed"]
//	  - type: final_state
//	    expect: { scene: letter, letter.opened: true }
//
// # Actions
//
// Clock: advance, tick. Navigation: next, previous, goto, restart, back.
// Counters: pulse. Letter: key_down, key_up, pointer_down, pointer_move,
// pointer_up, pointer_cancel, pointer_leave. Quiz: select, answer.
// Preferences: reduced_motion.
//
// # Assertion Types
//
//   - trace_contains: an invocation or event matching the fields appears
//   - trace_order: labels appear as a subsequence of the trace
//   - trace_count: exactly N invocations or events match
//   - final_state: the session's state after the last step
//
// # Deterministic Testing
//
// Every run uses a fresh in-memory answer store, a ManualScheduler starting
// at testutil.Epoch, a fixed session id and a seeded particle source, so a
// scenario produces the same trace on every run. Scenarios never load
// assets; the boot lock releases one boot delay after the first advance.
package harness
