// Package tear implements the tear-to-open envelope gesture.
//
// A Machine turns pointer and keyboard input into a progress value and a
// stage (intro, idle, aligning, tearing, primed, burst, revealed). Progress
// is the projection of pointer travel onto the element diagonal, normalized
// by a required distance that depends on the pointer mode and on whether a
// paused tear is being resumed.
//
// The floating particles behind the envelope are simulated by the pure
// Simulate function; the Machine only owns the pool and feeds it the current
// stage, progress and speed. Drawing is left to the caller.
package tear
