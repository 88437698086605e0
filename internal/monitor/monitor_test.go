package monitor

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/clawdshartavenger/alta-parking-app/internal/config"
	"github.com/clawdshartavenger/alta-parking-app/internal/logbus"
	"github.com/clawdshartavenger/alta-parking-app/internal/model"
)

type fakeProvider struct {
	mu       sync.Mutex
	outcomes []model.AttemptOutcome

	attempts    atomic.Int32
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	delay       time.Duration
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Attempt(_ context.Context, _ model.MonitorConfig) model.AttemptOutcome {
	cur := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		max := f.maxInFlight.Load()
		if cur <= max || f.maxInFlight.CompareAndSwap(max, cur) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	n := int(f.attempts.Add(1))

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.outcomes) == 0 {
		return model.AttemptOutcome{Kind: model.OutcomeSoldOut}
	}
	if n > len(f.outcomes) {
		return f.outcomes[len(f.outcomes)-1]
	}
	return f.outcomes[n-1]
}

func testPoll() config.PollConfig {
	return config.PollConfig{
		MinIntervalMs:     1,
		MaxIntervalMs:     60_000,
		DefaultIntervalMs: 10,
		AttemptTimeoutMs:  5_000,
	}
}

func validConfig() model.MonitorConfig {
	return model.MonitorConfig{
		Email:          "rider@example.com",
		Password:       "secret",
		SeasonPassCode: "PASS-123",
		LicensePlate:   "ABC123",
		Date:           "2026-03-01",
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func countStatus(events []logbus.Event, kind model.StatusKind) int {
	n := 0
	for _, e := range events {
		if e.Type != "status" {
			continue
		}
		if evt, ok := e.Data.(model.StatusEvent); ok && evt.Kind == kind {
			n++
		}
	}
	return n
}

func TestStartInvalidConfig(t *testing.T) {
	blank := func(c model.MonitorConfig, mutate func(*model.MonitorConfig)) model.MonitorConfig {
		mutate(&c)
		return c
	}
	cases := []struct {
		name string
		cfg  model.MonitorConfig
	}{
		{"empty email", blank(validConfig(), func(c *model.MonitorConfig) { c.Email = "" })},
		{"blank email", blank(validConfig(), func(c *model.MonitorConfig) { c.Email = "   " })},
		{"empty password", blank(validConfig(), func(c *model.MonitorConfig) { c.Password = "" })},
		{"empty pass code", blank(validConfig(), func(c *model.MonitorConfig) { c.SeasonPassCode = "" })},
		{"empty plate", blank(validConfig(), func(c *model.MonitorConfig) { c.LicensePlate = "" })},
		{"empty date", blank(validConfig(), func(c *model.MonitorConfig) { c.Date = "" })},
		{"bad date", blank(validConfig(), func(c *model.MonitorConfig) { c.Date = "03/01/2026" })},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fake := &fakeProvider{}
			bus := logbus.New(100)
			m := New(Options{Provider: fake, Bus: bus, Poll: testPoll()})

			if _, err := m.Start(context.Background(), tc.cfg); err == nil {
				t.Fatal("expected validation error")
			}
			if n := fake.attempts.Load(); n != 0 {
				t.Fatalf("provider attempted %d times for invalid config", n)
			}
			if got := countStatus(bus.Snapshot(), model.StatusError); got != 1 {
				t.Fatalf("got %d error events, want exactly 1", got)
			}
			if m.State().Running {
				t.Fatal("monitor must not be running")
			}
		})
	}
}

func TestStartPollsUntilStopped(t *testing.T) {
	fake := &fakeProvider{outcomes: []model.AttemptOutcome{{Kind: model.OutcomeSoldOut}}}
	bus := logbus.New(200)
	m := New(Options{Provider: fake, Bus: bus, Poll: testPoll()})

	runID, err := m.Start(context.Background(), validConfig())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if runID == "" {
		t.Fatal("expected a run ID")
	}

	waitFor(t, 2*time.Second, func() bool { return fake.attempts.Load() >= 3 })

	if err := m.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if m.State().Running {
		t.Fatal("still running after Stop")
	}
	if countStatus(bus.Snapshot(), model.StatusChecking) < 3 {
		t.Fatal("expected one checking event per attempt")
	}
}

func TestStopDuringSleepIsPrompt(t *testing.T) {
	fake := &fakeProvider{outcomes: []model.AttemptOutcome{{Kind: model.OutcomeSoldOut}}}
	m := New(Options{Provider: fake, Bus: logbus.New(100), Poll: testPoll()})

	cfg := validConfig()
	cfg.PollIntervalMs = 30_000 // loop sleeps half a minute between attempts

	if _, err := m.Start(context.Background(), cfg); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool { return fake.attempts.Load() >= 1 })

	started := time.Now()
	if err := m.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if elapsed := time.Since(started); elapsed > 2*time.Second {
		t.Fatalf("Stop took %v, expected well under the poll interval", elapsed)
	}
}

func TestStopWaitsForInFlightAttempt(t *testing.T) {
	fake := &fakeProvider{
		delay:    300 * time.Millisecond,
		outcomes: []model.AttemptOutcome{{Kind: model.OutcomeSoldOut}},
	}
	m := New(Options{Provider: fake, Bus: logbus.New(100), Poll: testPoll()})

	if _, err := m.Start(context.Background(), validConfig()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool { return fake.inFlight.Load() == 1 })

	before := fake.attempts.Load()
	if err := m.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	// The in-flight attempt must have produced its outcome, not been killed.
	if after := fake.attempts.Load(); after != before+1 {
		t.Fatalf("attempts went %d -> %d across Stop, want the in-flight one to finish", before, after)
	}
	if fake.inFlight.Load() != 0 {
		t.Fatal("attempt still in flight after Stop returned")
	}
}

func TestBookedIsTerminal(t *testing.T) {
	fake := &fakeProvider{outcomes: []model.AttemptOutcome{{Kind: model.OutcomeBooked}}}
	bus := logbus.New(100)
	m := New(Options{Provider: fake, Bus: bus, Poll: testPoll()})

	if _, err := m.Start(context.Background(), validConfig()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool { return !m.State().Running })

	if n := fake.attempts.Load(); n != 1 {
		t.Fatalf("made %d attempts after a confirmed booking, want 1", n)
	}
	if !m.State().Booked {
		t.Fatal("state not marked booked")
	}
	if countStatus(bus.Snapshot(), model.StatusSuccess) == 0 {
		t.Fatal("no success event emitted")
	}

	// Restarting after a confirmed booking must not attempt again.
	if _, err := m.Start(context.Background(), validConfig()); err != ErrAlreadyBooked {
		t.Fatalf("second Start err = %v, want ErrAlreadyBooked", err)
	}
	time.Sleep(50 * time.Millisecond)
	if n := fake.attempts.Load(); n != 1 {
		t.Fatalf("attempts after re-Start = %d, want still 1", n)
	}
}

func TestBookingFailedKeepsPolling(t *testing.T) {
	fake := &fakeProvider{outcomes: []model.AttemptOutcome{
		{Kind: model.OutcomeBookingFailed, Detail: "confirm control missing"},
		{Kind: model.OutcomeSoldOut},
	}}
	bus := logbus.New(200)
	m := New(Options{Provider: fake, Bus: bus, Poll: testPoll()})

	if _, err := m.Start(context.Background(), validConfig()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool { return fake.attempts.Load() >= 2 })
	_ = m.Stop(context.Background())

	if countStatus(bus.Snapshot(), model.StatusError) == 0 {
		t.Fatal("booking failure produced no error event")
	}
}

func TestTransientErrorKeepsPolling(t *testing.T) {
	fake := &fakeProvider{outcomes: []model.AttemptOutcome{
		model.Transient("navigation timeout"),
		{Kind: model.OutcomeSoldOut},
	}}
	m := New(Options{Provider: fake, Bus: logbus.New(100), Poll: testPoll()})

	if _, err := m.Start(context.Background(), validConfig()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool { return fake.attempts.Load() >= 2 })
	_ = m.Stop(context.Background())
}

func TestBackToBackStartsNeverOverlap(t *testing.T) {
	fake := &fakeProvider{
		delay:    50 * time.Millisecond,
		outcomes: []model.AttemptOutcome{{Kind: model.OutcomeSoldOut}},
	}
	m := New(Options{Provider: fake, Bus: logbus.New(200), Poll: testPoll()})

	first, err := m.Start(context.Background(), validConfig())
	if err != nil {
		t.Fatalf("first Start: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool { return fake.attempts.Load() >= 1 })

	second, err := m.Start(context.Background(), validConfig())
	if err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if second == first {
		t.Fatal("second run reused the first run's ID")
	}
	waitFor(t, 2*time.Second, func() bool { return m.State().RunID == second })

	_ = m.Stop(context.Background())
	if max := fake.maxInFlight.Load(); max > 1 {
		t.Fatalf("observed %d concurrent attempts, want at most 1", max)
	}
}
