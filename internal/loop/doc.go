// Package loop implements the single-writer event loop every keepsake
// component runs on.
//
// ARCHITECTURE:
//
// Components (history, scene sequencer, tear machine, tap counters) are not
// goroutine-safe. They are only ever touched from the goroutine executing
// Loop.Run. Everything else talks to them by posting closures:
//   - input adapters (terminal front-end, scripted sessions) call Post
//   - timers armed through AfterFunc post their callback when due
//   - background work (asset preloading) posts its results
//
// Closures run one at a time in FIFO order. There is no parallel execution of
// component code, so no locks are needed around component state.
//
// Scheduler is the narrow interface components depend on. Loop implements it
// with wall-clock timers; testutil.ManualScheduler implements it with a
// virtual clock advanced explicitly by tests.
package loop
