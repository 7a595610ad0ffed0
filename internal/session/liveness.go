package session

import (
	"context"
	"sync"
)

// sessionContext is the liveness token of one connect attempt. It is
// created when the attempt starts and destroyed on disconnect, teardown or
// an unsolicited close; callbacks carrying a destroyed token are dropped.
//
// Callbacks that arrive before the manager adopts the connection are queued
// and replayed by adopt, so nothing is applied ahead of the connected flag.
type sessionContext struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	cause error

	// gate serialises delivery against adopt and destroy.
	gate    sync.Mutex
	adopted bool
	pending []func()
}

func newSessionContext() *sessionContext {
	ctx, cancel := context.WithCancel(context.Background())
	return &sessionContext{ctx: ctx, cancel: cancel}
}

func (s *sessionContext) alive() bool {
	return s.ctx.Err() == nil
}

// run executes fn while the token is alive, or queues it until adopt.
// It reports false when the token is already destroyed.
func (s *sessionContext) run(fn func()) bool {
	s.gate.Lock()
	defer s.gate.Unlock()
	if !s.alive() {
		return false
	}
	if !s.adopted {
		s.pending = append(s.pending, fn)
		return true
	}
	fn()
	return true
}

// adopt replays queued callbacks in arrival order and lets later ones run
// directly.
func (s *sessionContext) adopt() bool {
	s.gate.Lock()
	defer s.gate.Unlock()
	if !s.alive() {
		s.pending = nil
		return false
	}
	for _, fn := range s.pending {
		fn()
	}
	s.pending = nil
	s.adopted = true
	return true
}

// destroy waits for a running callback to finish, so nothing is applied
// after it returns.
func (s *sessionContext) destroy(cause error) {
	s.gate.Lock()
	defer s.gate.Unlock()

	s.mu.Lock()
	if s.cause == nil {
		s.cause = cause
	}
	s.mu.Unlock()
	s.cancel()
	s.pending = nil
}

func (s *sessionContext) err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cause
}
