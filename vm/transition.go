package vm

import "fmt"

// transitionKey packs a (from, to) pair for the permitted-transition set.
type transitionKey struct {
	from ThreadStatus
	to   ThreadStatus
}

// permittedTransitions is the sparse table of legal status changes, per
// the thread lifecycle state machine. Anything not present here is a
// programmer error.
var permittedTransitions = map[transitionKey]bool{
	{New, Runnable}:       true,
	{New, AsyncWaiting}:   true,
	{New, Terminated}:     true,
	{Runnable, Running}:   true,
	{Runnable, AsyncWaiting}: true,

	{Running, AsyncWaiting}:             true,
	{Running, Terminated}:               true,
	{Running, Blocked}:                  true,
	{Running, Waiting}:                  true,
	{Running, TimedWaiting}:             true,
	{Running, Parked}:                   true,

	{AsyncWaiting, Runnable}:   true,
	{AsyncWaiting, Terminated}: true,

	{Blocked, Runnable}: true,
	{Parked, Runnable}:  true,

	{Waiting, Runnable}:               true,
	{Waiting, UninterruptablyBlocked}: true,

	{TimedWaiting, UninterruptablyBlocked}: true,
	{TimedWaiting, Runnable}:               true,

	{UninterruptablyBlocked, Runnable}: true,

	{Terminated, New}:          true,
	{Terminated, Runnable}:     true,
	{Terminated, AsyncWaiting}: true,
}

// InvariantViolation is panicked by debug-only assertions (spec's error
// plane 2). Release callers should run with Pool.Debug == false, which
// elides the checks entirely.
type InvariantViolation struct {
	Msg string
}

func (e *InvariantViolation) Error() string { return e.Msg }

func assertViolation(debug bool, format string, args ...any) {
	if !debug {
		return
	}
	panic(&InvariantViolation{Msg: fmt.Sprintf(format, args...)})
}

// validateTransition reports whether moving from `from` to `to` is
// legal. RUNNING -> RUNNABLE is not a transition at all (the thread
// simply stays RUNNING); callers must special-case it before calling
// this, matching the table's "Ignored — stays RUNNING" row.
func validateTransition(from, to ThreadStatus) bool {
	return permittedTransitions[transitionKey{from, to}]
}
