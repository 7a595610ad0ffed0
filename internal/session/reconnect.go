package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"buildsession/internal/monitor"

	"github.com/cenkalti/backoff/v5"
)

// reconnector re-establishes a dropped connection with exponential backoff.
// At most one retry loop runs at a time; Stop cancels it. A drop reported
// while a loop is still winding down starts a new loop once it exits.
type reconnector struct {
	m      *Manager
	policy ReconnectPolicy
	logger *slog.Logger

	mu     sync.Mutex
	stopCh chan struct{}
	rearm  bool
}

func newReconnector(m *Manager, policy ReconnectPolicy, logger *slog.Logger) *reconnector {
	return &reconnector{
		m:      m,
		policy: policy,
		logger: logger.With("component", "reconnector"),
	}
}

// Start launches the retry loop. When one is already running the request is
// remembered and served after that loop returns.
func (r *reconnector) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopCh != nil {
		r.rearm = true
		return
	}
	r.launchLocked()
}

func (r *reconnector) launchLocked() {
	stopCh := make(chan struct{})
	r.stopCh = stopCh
	go r.run(stopCh)
}

// Stop 停止重连循环
func (r *reconnector) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rearm = false
	if r.stopCh == nil {
		return
	}
	select {
	case <-r.stopCh:
		// 已经关闭
	default:
		close(r.stopCh)
	}
	r.stopCh = nil
}

func (r *reconnector) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopCh != nil
}

// finish releases the loop slot held by stopCh and relaunches when a drop
// arrived in the meantime.
func (r *reconnector) finish(stopCh chan struct{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopCh != stopCh {
		return
	}
	r.stopCh = nil
	if r.rearm {
		r.rearm = false
		r.logger.Info("Connection dropped while reconnecting, starting over")
		r.launchLocked()
	}
}

func (r *reconnector) run(stopCh chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	defer r.finish(stopCh)

	r.logger.Info("Reconnect loop started",
		"max_attempts", r.policy.MaxAttempts,
		"initial_interval", r.policy.InitialInterval,
	)

	select {
	case <-ctx.Done():
		return
	case <-time.After(r.policy.InitialInterval):
	}

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		monitor.ReconnectAttempts.Inc()
		r.logger.Info("Reconnecting", "attempt", attempt)

		err := r.m.Connect(ctx)
		if errors.Is(err, ErrMissingSessionID) || errors.Is(err, ErrManagerClosed) || errors.Is(err, ErrConnectAborted) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(r.exponential()),
		backoff.WithMaxTries(r.policy.MaxAttempts),
		backoff.WithMaxElapsedTime(r.policy.MaxElapsedTime),
		backoff.WithNotify(func(err error, next time.Duration) {
			r.logger.Warn("Reconnect attempt failed", "attempt", attempt, "retry_in", next, "error", err)
		}),
	)

	switch {
	case err == nil:
		r.logger.Info("Reconnected", "attempts", attempt)
	case ctx.Err() != nil:
		r.logger.Info("Reconnect loop stopped")
	default:
		r.logger.Error("Giving up on reconnect", "attempts", attempt, "error", err)
	}
}

func (r *reconnector) exponential() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	if r.policy.InitialInterval > 0 {
		b.InitialInterval = r.policy.InitialInterval
	}
	if r.policy.MaxInterval > 0 {
		b.MaxInterval = r.policy.MaxInterval
	}
	if r.policy.Multiplier > 0 {
		b.Multiplier = r.policy.Multiplier
	}
	if r.policy.RandomizationFactor >= 0 {
		b.RandomizationFactor = r.policy.RandomizationFactor
	}
	return b
}
