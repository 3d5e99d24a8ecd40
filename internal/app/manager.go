package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/helpathands/shiftline/internal/observe"
)

// Registry errors surfaced to the webhook layer.
var (
	// ErrAlreadyExists is returned when a call-started event repeats a
	// call ID that is still live.
	ErrAlreadyExists = errors.New("app: session already exists")

	// ErrNotFound is returned when a call-ended event names an unknown
	// call ID.
	ErrNotFound = errors.New("app: session not found")
)

// DefaultStopGrace is how long Stop waits for a session to wind down before
// forcing its resources closed.
const DefaultStopGrace = 5 * time.Second

// Builder constructs the per-call components for a new session. It is called
// outside the registry lock, once per accepted call-started event.
type Builder func(callID, callerPhone string) (*Session, error)

// CallInfo is a point-in-time description of one live session.
type CallInfo struct {
	CallID    string        `json:"call_id"`
	StartedAt time.Time     `json:"started_at"`
	Uptime    time.Duration `json:"uptime"`
}

// Status is a snapshot of the registry.
type Status struct {
	ActiveSessions int        `json:"active_sessions"`
	Sessions       []CallInfo `json:"sessions"`
}

// Manager keeps the registry of live call sessions. All exported methods are
// safe for concurrent use; per-session work happens outside the registry
// lock so a slow call never blocks the webhook surface.
type Manager struct {
	build     Builder
	log       *slog.Logger
	metrics   *observe.Metrics
	stopGrace time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
}

// ManagerOption is a functional option for configuring a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.log = log
	}
}

// WithMetrics attaches metric instruments to the manager and every session
// it creates.
func WithMetrics(met *observe.Metrics) ManagerOption {
	return func(m *Manager) {
		m.metrics = met
	}
}

// WithStopGrace overrides [DefaultStopGrace].
func WithStopGrace(d time.Duration) ManagerOption {
	return func(m *Manager) {
		m.stopGrace = d
	}
}

// NewManager creates a Manager that builds sessions with build.
func NewManager(build Builder, opts ...ManagerOption) *Manager {
	m := &Manager{
		build:     build,
		log:       slog.Default(),
		stopGrace: DefaultStopGrace,
		sessions:  make(map[string]*Session),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Start registers and boots a session for callID. The call ID is reserved
// before the session is built, so a duplicate call-started event fails with
// [ErrAlreadyExists] even while the first one is still booting. On success
// the session is already listening and the caller has been greeted (or is
// about to be, on the session's own goroutine).
func (m *Manager) Start(ctx context.Context, callID, callerPhone string) error {
	if callID == "" {
		return errors.New("app: call ID must not be empty")
	}

	m.mu.Lock()
	if _, exists := m.sessions[callID]; exists {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyExists, callID)
	}
	m.sessions[callID] = nil // reserve the slot while the session boots
	m.mu.Unlock()

	s, err := m.build(callID, callerPhone)
	if err == nil {
		err = s.start(ctx)
	}
	if err != nil {
		m.remove(callID)
		m.recordCallStarted(ctx, err)
		return fmt.Errorf("app: start call %s: %w", callID, err)
	}

	m.mu.Lock()
	m.sessions[callID] = s
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.ActiveCalls.Add(ctx, 1)
	}
	m.recordCallStarted(ctx, nil)
	m.log.Info("call session started", "call_id", callID)

	go func() {
		s.run()
		if m.remove(callID) && m.metrics != nil {
			m.metrics.ActiveCalls.Add(context.Background(), -1)
		}
		m.log.Info("call session ended", "call_id", callID)
	}()
	return nil
}

// Stop winds down the session for callID. The session gets the configured
// grace period to finish its current turn; after that its resources are
// forced closed. Returns [ErrNotFound] when no such session is live.
func (m *Manager) Stop(ctx context.Context, callID string) error {
	m.mu.Lock()
	s := m.sessions[callID]
	m.mu.Unlock()
	if s == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, callID)
	}

	s.stop()

	grace := time.NewTimer(m.stopGrace)
	defer grace.Stop()
	select {
	case <-s.Finished():
	case <-grace.C:
		m.log.Warn("session did not stop within grace period, forcing release",
			"call_id", callID, "grace", m.stopGrace)
		s.release()
	case <-ctx.Done():
		s.release()
		return ctx.Err()
	}

	if m.remove(callID) && m.metrics != nil {
		m.metrics.ActiveCalls.Add(ctx, -1)
	}
	return nil
}

// Status snapshots the live sessions, oldest first.
func (m *Manager) Status() Status {
	m.mu.Lock()
	infos := make([]CallInfo, 0, len(m.sessions))
	for id, s := range m.sessions {
		if s == nil { // still booting
			continue
		}
		infos = append(infos, CallInfo{
			CallID:    id,
			StartedAt: s.StartedAt(),
			Uptime:    time.Since(s.StartedAt()),
		})
	}
	m.mu.Unlock()

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].StartedAt.Before(infos[j].StartedAt)
	})
	return Status{ActiveSessions: len(infos), Sessions: infos}
}

// Shutdown stops every live session concurrently. Used on process exit.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	for id, s := range m.sessions {
		if s != nil {
			ids = append(ids, id)
		}
	}
	m.mu.Unlock()

	g, ctx := errgroup.WithContext(ctx)
	for _, id := range ids {
		g.Go(func() error {
			if err := m.Stop(ctx, id); err != nil && !errors.Is(err, ErrNotFound) {
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

// remove deletes callID from the registry, reporting whether it was present
// as a live (non-reserved) session.
func (m *Manager) remove(callID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[callID]
	delete(m.sessions, callID)
	return ok && s != nil
}

func (m *Manager) recordCallStarted(ctx context.Context, err error) {
	if m.metrics == nil {
		return
	}
	m.metrics.CallsStarted.Add(ctx, 1, metric.WithAttributes(observe.StatusAttr(err)))
}
