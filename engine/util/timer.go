package util

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

type TimerState struct {
	name         string
	lastDuration time.Duration

	totalDuration  time.Duration
	executionCount int64

	minDuration time.Duration
	maxDuration time.Duration
}

func (t TimerState) Name() string {
	return t.name
}

func (t TimerState) Last() time.Duration {
	return t.lastDuration
}

func (t TimerState) Count() int64 {
	return t.executionCount
}

func (t TimerState) Average() time.Duration {
	if t.executionCount == 0 {
		return 0
	}
	return t.totalDuration / time.Duration(t.executionCount)
}

func (t TimerState) Min() time.Duration {
	return t.minDuration
}

func (t TimerState) Max() time.Duration {
	return t.maxDuration
}

func (t TimerState) String() string {
	return fmt.Sprintf("%s last: %v, avg: %v, min: %v, max: %v (%d runs)", t.name, t.lastDuration, t.Average(), t.minDuration, t.maxDuration, t.executionCount)
}

// Timer accumulates durations of named phases.
type Timer struct {
	mu         sync.Mutex
	states     map[string]*TimerState
	timerNames []string
}

func NewTimer() *Timer {
	return &Timer{
		states: make(map[string]*TimerState),
	}
}

// GetState returns a snapshot of the named phase.
func (t *Timer) GetState(name string) (TimerState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	state, ok := t.states[name]
	if !ok {
		return TimerState{}, false
	}
	return *state, true
}

func (t *Timer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, state := range t.states {
		*state = TimerState{name: state.name}
	}
}

func (t *Timer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var sb strings.Builder
	for _, name := range t.timerNames {
		sb.WriteString(t.states[name].String())
		sb.WriteString("\n")
	}
	return sb.String()
}

// Start begins measuring the named phase. The returned func stops it.
func (t *Timer) Start(name string) func() time.Duration {
	start := time.Now()
	return func() time.Duration {
		elapsed := time.Since(start)
		t.record(name, elapsed)
		return elapsed
	}
}

func (t *Timer) record(name string, elapsed time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	state, ok := t.states[name]
	if !ok {
		t.timerNames = append(t.timerNames, name)
		state = &TimerState{name: name}
		t.states[name] = state
	}
	state.lastDuration = elapsed
	state.totalDuration += elapsed
	if state.executionCount == 0 || elapsed < state.minDuration {
		state.minDuration = elapsed
	}
	if elapsed > state.maxDuration {
		state.maxDuration = elapsed
	}
	state.executionCount++
}
