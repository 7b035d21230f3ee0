package notifications

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrCircuitOpen = errors.New("circuit breaker open")

type breakerState string

const (
	stateClosed   breakerState = "closed"
	stateOpen     breakerState = "open"
	stateHalfOpen breakerState = "half_open"
)

type ProtectedMailerConfig struct {
	Timeout          time.Duration // hard timeout per send
	FailureThreshold int           // consecutive failures to open circuit
	Cooldown         time.Duration // how long to stay open before half-open
	HalfOpenMaxCalls int           // trial sends allowed while half-open
}

// ProtectedMailer bounds every send with a timeout and stops calling a
// failing transport until Cooldown has passed.
type ProtectedMailer struct {
	inner Mailer
	cfg   ProtectedMailerConfig
	now   func() time.Time

	mu                  sync.Mutex
	state               breakerState
	consecutiveFailures int
	openedAt            time.Time
	halfOpenInFlight    int
}

func NewProtectedMailer(inner Mailer, cfg ProtectedMailerConfig) *ProtectedMailer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 15 * time.Second
	}
	if cfg.HalfOpenMaxCalls <= 0 {
		cfg.HalfOpenMaxCalls = 1
	}

	return &ProtectedMailer{
		inner: inner,
		cfg:   cfg,
		now:   time.Now,
		state: stateClosed,
	}
}

func (m *ProtectedMailer) Send(ctx context.Context, msg Message) error {
	if !m.allowRequest() {
		return ErrCircuitOpen
	}

	sendCtx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	err := m.sendWithDeadline(sendCtx, msg)

	m.afterRequest(err)

	return err
}

// sendWithDeadline stops waiting once ctx expires even if the transport does
// not watch ctx itself.
func (m *ProtectedMailer) sendWithDeadline(ctx context.Context, msg Message) error {
	done := make(chan error, 1)

	go func() {
		done <- m.inner.Send(ctx, msg)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *ProtectedMailer) State() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return string(m.state)
}

func (m *ProtectedMailer) allowRequest() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case stateOpen:
		if m.now().Sub(m.openedAt) < m.cfg.Cooldown {
			return false
		}
		m.state = stateHalfOpen
		m.halfOpenInFlight = 1
		return true
	case stateHalfOpen:
		if m.halfOpenInFlight >= m.cfg.HalfOpenMaxCalls {
			return false
		}
		m.halfOpenInFlight++
		return true
	default:
		return true
	}
}

func (m *ProtectedMailer) afterRequest(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == stateHalfOpen && m.halfOpenInFlight > 0 {
		m.halfOpenInFlight--
	}

	if err == nil {
		m.consecutiveFailures = 0
		m.state = stateClosed
		return
	}

	m.consecutiveFailures++

	// a failed trial reopens immediately
	if m.state == stateHalfOpen || m.consecutiveFailures >= m.cfg.FailureThreshold {
		m.state = stateOpen
		m.openedAt = m.now()
	}
}
