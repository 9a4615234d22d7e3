package coro

import "strings"

// State is the runtime bitmask of a coroutine.
type State uint8

const (
	StateMain State = 1 << iota
	StateIdle
	StateRunning
	StateExit
)

func (s State) String() string {
	if s == 0 {
		return "not-started"
	}
	var parts []string
	if s&StateMain != 0 {
		parts = append(parts, "main")
	}
	if s&StateIdle != 0 {
		parts = append(parts, "idle")
	}
	if s&StateRunning != 0 {
		parts = append(parts, "running")
	}
	if s&StateExit != 0 {
		parts = append(parts, "exit")
	}
	return strings.Join(parts, "|")
}
