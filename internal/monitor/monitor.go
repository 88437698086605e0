// Package monitor owns the poll loop: it repeatedly asks the provider for
// one booking attempt, routes the outcome, sleeps interruptibly between
// ticks and guarantees at most one active run per process.
package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/clawdshartavenger/alta-parking-app/internal/config"
	"github.com/clawdshartavenger/alta-parking-app/internal/logbus"
	"github.com/clawdshartavenger/alta-parking-app/internal/model"
	"github.com/clawdshartavenger/alta-parking-app/internal/notify"
	"github.com/clawdshartavenger/alta-parking-app/internal/provider"
)

// ErrAlreadyBooked is returned by Start after a run has confirmed a booking.
// Booked is terminal for the process: re-polling a date that is already
// reserved risks a duplicate booking.
var ErrAlreadyBooked = errors.New("a booking was already confirmed")

type Options struct {
	Provider provider.Provider
	Bus      *logbus.Bus
	Notifier notify.Notifier
	Poll     config.PollConfig
}

type Monitor struct {
	provider provider.Provider
	bus      *logbus.Bus
	notifier notify.Notifier
	poll     config.PollConfig

	// limiter is a site-politeness floor on attempt frequency, independent
	// of the configured poll interval.
	limiter *rate.Limiter

	mu      sync.Mutex
	running bool
	booked  bool
	cancel  context.CancelFunc
	done    chan struct{}
	state   model.MonitorState
}

func New(opts Options) *Monitor {
	return &Monitor{
		provider: opts.Provider,
		bus:      opts.Bus,
		notifier: opts.Notifier,
		poll:     opts.Poll,
		limiter:  rate.NewLimiter(rate.Every(opts.Poll.MinInterval()), 1),
	}
}

// Start validates cfg and launches the poll loop. A run already in progress
// is stopped and fully drained first; two concurrent sessions against the
// same account are a correctness hazard. The returned run ID tags all status
// events of this run.
func (m *Monitor) Start(ctx context.Context, cfg model.MonitorConfig) (string, error) {
	if err := cfg.Validate(); err != nil {
		m.status("", model.StatusError, "cannot start monitoring: "+err.Error())
		return "", err
	}

	// Drain any prior run while holding the lock for the final check, so two
	// back-to-back Start calls can never leave two loops alive.
	for {
		m.mu.Lock()
		if !m.running {
			break
		}
		cancel, done := m.cancel, m.done
		m.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		select {
		case <-done:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	if m.booked {
		m.mu.Unlock()
		m.status("", model.StatusSuccess, "a booking is already confirmed; not restarting")
		return "", ErrAlreadyBooked
	}
	runID := uuid.NewString()
	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	m.running = true
	m.cancel = cancel
	m.done = done
	m.state = model.MonitorState{Running: true, RunID: runID, Date: cfg.Date}
	m.publishStateLocked()
	m.mu.Unlock()

	go m.run(runCtx, cfg, runID, done)
	return runID, nil
}

// Stop requests cancellation and waits for the loop to observe it. Idempotent:
// stopping an idle monitor is a no-op. An attempt already in flight finishes
// first; a half-submitted booking form in an unknown state is worse than a
// few extra seconds of shutdown latency.
func (m *Monitor) Stop(ctx context.Context) error {
	return m.stopCurrent(ctx)
}

func (m *Monitor) stopCurrent(ctx context.Context) error {
	m.mu.Lock()
	cancel := m.cancel
	done := m.done
	running := m.running
	m.mu.Unlock()

	if !running {
		return nil
	}
	if cancel != nil {
		cancel()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Monitor) State() model.MonitorState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Monitor) run(ctx context.Context, cfg model.MonitorConfig, runID string, done chan struct{}) {
	defer close(done)
	defer func() {
		m.mu.Lock()
		m.running = false
		m.cancel = nil
		m.state.Running = false
		m.state.StoppedAtMs = time.Now().UnixMilli()
		m.publishStateLocked()
		m.mu.Unlock()
	}()

	interval := m.poll.ClampInterval(cfg.PollIntervalMs)
	m.status(runID, model.StatusMonitoring,
		"monitoring "+cfg.Date+" every "+interval.String())

	for {
		// Cancellation is checked before an attempt and during the sleep,
		// never only between them.
		if ctx.Err() != nil {
			m.status(runID, model.StatusMonitoring, "monitoring stopped")
			return
		}
		if err := m.limiter.Wait(ctx); err != nil {
			m.status(runID, model.StatusMonitoring, "monitoring stopped")
			return
		}

		m.status(runID, model.StatusChecking, "checking availability for "+cfg.Date)
		out := m.attempt(cfg)

		m.mu.Lock()
		m.state.LastAttemptMs = time.Now().UnixMilli()
		m.state.LastOutcome = out.Kind
		if out.Kind == model.OutcomeTransientError || out.Kind == model.OutcomeBookingFailed {
			m.state.LastError = out.Detail
		} else {
			m.state.LastError = ""
		}
		m.publishStateLocked()
		m.mu.Unlock()

		switch out.Kind {
		case model.OutcomeBooked:
			m.mu.Lock()
			m.booked = true
			m.state.Booked = true
			m.publishStateLocked()
			m.mu.Unlock()
			m.status(runID, model.StatusSuccess, "parking booked for "+cfg.Date)
			if m.notifier != nil {
				m.notifier.NotifyBooked(ctx, notify.BookedEvent{
					At:           time.Now().UnixMilli(),
					Date:         cfg.Date,
					Email:        cfg.Email,
					LicensePlate: cfg.LicensePlate,
					RunID:        runID,
				})
			}
			return
		case model.OutcomeSoldOut:
			m.status(runID, model.StatusMonitoring,
				cfg.Date+" is sold out; next check in "+interval.String())
		case model.OutcomeNotFound:
			m.status(runID, model.StatusMonitoring,
				cfg.Date+" is not open for reservations yet; next check in "+interval.String())
		case model.OutcomeBookingFailed:
			m.status(runID, model.StatusError,
				"found a spot but could not finish booking ("+out.Detail+"); will keep monitoring")
		case model.OutcomeTransientError:
			m.status(runID, model.StatusError,
				"check failed ("+out.Detail+"); retrying after "+interval.String())
		}

		if !sleepFor(ctx, interval) {
			m.status(runID, model.StatusMonitoring, "monitoring stopped")
			return
		}
	}
}

// attempt runs one provider attempt on its own timeout context, deliberately
// detached from the run context: an in-flight attempt is allowed to finish
// even when cancellation has been requested.
func (m *Monitor) attempt(cfg model.MonitorConfig) model.AttemptOutcome {
	attemptCtx, cancel := context.WithTimeout(context.Background(), m.poll.AttemptTimeout())
	defer cancel()
	return m.provider.Attempt(attemptCtx, cfg)
}

func (m *Monitor) status(runID string, kind model.StatusKind, msg string) {
	if m.bus != nil {
		m.bus.Status(model.StatusEvent{Kind: kind, Message: msg, RunID: runID})
	}
}

func (m *Monitor) publishStateLocked() {
	if m.bus != nil {
		m.bus.Publish("monitor_state", m.state)
	}
}

// sleepFor waits d or returns false as soon as ctx is cancelled.
func sleepFor(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
