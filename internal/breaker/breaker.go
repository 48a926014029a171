package breaker

import (
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned when the breaker is open and calls are being shed.
var ErrOpen = errors.New("circuit breaker is open")

type state int

const (
	stateClosed state = iota
	stateOpen
	stateHalfOpen
)

// Breaker is a three-state circuit breaker shared by the outbound API
// clients. Consecutive failures trip it open; after the cooldown a single
// probe call is let through, and its result decides whether we close again.
type Breaker struct {
	name        string
	maxFailures int
	cooldown    time.Duration

	mu       sync.Mutex
	state    state
	failures int
	openedAt time.Time

	now func() time.Time
}

func New(name string, maxFailures int, cooldown time.Duration) *Breaker {
	return &Breaker{
		name:        name,
		maxFailures: maxFailures,
		cooldown:    cooldown,
		now:         time.Now,
	}
}

// Do runs fn through the breaker, recording its outcome.
func (b *Breaker) Do(fn func() error) error {
	if !b.allow() {
		return ErrOpen
	}

	err := fn()
	b.record(err)
	return err
}

func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateClosed:
		return true
	case stateOpen:
		if b.now().Sub(b.openedAt) >= b.cooldown {
			b.state = stateHalfOpen
			return true
		}
		return false
	case stateHalfOpen:
		// Only the probe that moved us to half-open gets through; anything
		// else waits for its verdict.
		return false
	}

	return false
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		b.state = stateClosed
		b.failures = 0
		return
	}

	if b.state == stateHalfOpen {
		b.state = stateOpen
		b.openedAt = b.now()
		return
	}

	b.failures++
	if b.failures >= b.maxFailures {
		b.state = stateOpen
		b.openedAt = b.now()
	}
}

// Name identifies the breaker in logs.
func (b *Breaker) Name() string {
	return b.name
}
