// Package task implements the remote task lifecycle: the Task record, its
// state machine (submitted → working → completed | failed), the store that
// makes tasks visible across calls within a context, and the sinks that relay
// state-change events to a transport.
//
// Every transition publishes exactly one Event, in transition order. Terminal
// states are final: a transition attempted out of one returns ErrTerminalState
// and publishes nothing.
package task
