package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agenda/internal/calendar"
	"agenda/internal/store"
)

type memAlarms struct {
	alarms []store.Alarm
	err    error
}

func (m *memAlarms) ListAlarms(context.Context) ([]store.Alarm, error) {
	return m.alarms, m.err
}

type recorder struct {
	mu    sync.Mutex
	fired []store.Alarm
	err   error
}

func (r *recorder) Alert(_ context.Context, a store.Alarm) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fired = append(r.fired, a)
	return r.err
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.fired)
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

// queued empties the alert queue of a scheduler that is not running.
func queued(s *Scheduler) []store.Alarm {
	var out []store.Alarm
	for {
		select {
		case a := <-s.queue:
			out = append(out, a)
		default:
			return out
		}
	}
}

func at(hh, mm, ss int) time.Time {
	return time.Date(2025, time.December, 27, hh, mm, ss, 0, time.Local)
}

func TestFiresOncePerMinute(t *testing.T) {
	alarms := &memAlarms{alarms: []store.Alarm{{Day: "27122025", Time: "07:30"}}}
	rec := &recorder{}
	clk := &clock{t: at(7, 30, 0)}
	s := New(alarms, rec, WithClock(clk.now))

	total := 0
	for i := 0; i < 10; i++ {
		clk.set(at(7, 30, i*5))
		total += s.Tick(context.Background())
	}

	assert.Equal(t, 1, total)
	assert.Len(t, queued(s), 1)
	assert.Zero(t, rec.count(), "Tick only queues")
}

func TestDoesNotFireOutsideItsMinute(t *testing.T) {
	alarms := &memAlarms{alarms: []store.Alarm{
		{Day: "27122025", Time: "07:30"},
		{Day: "28122025", Time: "07:31"},
	}}
	rec := &recorder{}
	clk := &clock{t: at(7, 29, 59)}
	s := New(alarms, rec, WithClock(clk.now))

	assert.Zero(t, s.Tick(context.Background()))
	clk.set(at(7, 31, 0))
	assert.Zero(t, s.Tick(context.Background()), "same time on another day must not fire")
	assert.Empty(t, queued(s))
}

func TestFiresEveryAlarmOfTheMinute(t *testing.T) {
	alarms := &memAlarms{alarms: []store.Alarm{
		{Day: "27122025", Time: "07:30"},
		{Day: "27122025", Time: "07:31"},
	}}
	clk := &clock{t: at(7, 30, 10)}
	s := New(alarms, &recorder{}, WithClock(clk.now))

	assert.Equal(t, 1, s.Tick(context.Background()))
	clk.set(at(7, 31, 0))
	assert.Equal(t, 1, s.Tick(context.Background()))
	assert.Equal(t, alarms.alarms, queued(s))
}

func TestAlertErrorsAreNotFatal(t *testing.T) {
	alarms := &memAlarms{alarms: []store.Alarm{
		{Day: "27122025", Time: "07:30"},
		{Day: "27122025", Time: "07:31"},
	}}
	rec := &recorder{err: errors.New("no sound card")}
	clk := &clock{t: at(7, 30, 0)}
	s := New(alarms, rec, WithClock(clk.now), WithInterval(5*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()

	require.Eventually(t, func() bool { return rec.count() == 1 }, 2*time.Second, 5*time.Millisecond)
	clk.set(at(7, 31, 0))
	require.Eventually(t, func() bool { return rec.count() == 2 }, 2*time.Second, 5*time.Millisecond)
}

// stuck blocks the first alert until release is closed.
type stuck struct {
	recorder
	release chan struct{}
	started chan struct{}
	once    sync.Once
}

func (s *stuck) Alert(ctx context.Context, a store.Alarm) error {
	first := false
	s.once.Do(func() { first = true })
	if first {
		close(s.started)
		<-s.release
	}
	return s.recorder.Alert(ctx, a)
}

func TestBlockedAlertDoesNotSkipNextMinute(t *testing.T) {
	alarms := &memAlarms{alarms: []store.Alarm{
		{Day: "27122025", Time: "07:30"},
		{Day: "27122025", Time: "07:31"},
	}}
	alerter := &stuck{release: make(chan struct{}), started: make(chan struct{})}
	clk := &clock{t: at(7, 30, 0)}
	s := New(alarms, alerter, WithClock(clk.now), WithInterval(5*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()

	<-alerter.started
	clk.set(at(7, 31, 0))
	time.Sleep(50 * time.Millisecond)
	clk.set(at(7, 32, 0))
	time.Sleep(20 * time.Millisecond)
	close(alerter.release)

	require.Eventually(t, func() bool { return alerter.count() == 2 }, 2*time.Second, 5*time.Millisecond)
	alerter.mu.Lock()
	defer alerter.mu.Unlock()
	assert.Equal(t, alarms.alarms, alerter.fired)
}

// silent never finishes on its own, like a device that stopped calling back.
type silent struct {
	recorder
}

func (s *silent) Alert(ctx context.Context, a store.Alarm) error {
	<-ctx.Done()
	_ = s.recorder.Alert(ctx, a)
	return ctx.Err()
}

func TestAlertTimeout(t *testing.T) {
	alarms := &memAlarms{alarms: []store.Alarm{
		{Day: "27122025", Time: "07:30"},
		{Day: "27122025", Time: "07:31"},
	}}
	alerter := &silent{}
	clk := &clock{t: at(7, 30, 0)}
	s := New(alarms, alerter, WithClock(clk.now),
		WithInterval(5*time.Millisecond), WithAlertTimeout(20*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()

	require.Eventually(t, func() bool { return alerter.count() == 1 }, 2*time.Second, 5*time.Millisecond)
	clk.set(at(7, 31, 0))
	require.Eventually(t, func() bool { return alerter.count() == 2 }, 2*time.Second, 5*time.Millisecond)
}

func TestListErrorFiresNothing(t *testing.T) {
	alarms := &memAlarms{err: errors.New("boom")}
	rec := &recorder{}
	s := New(alarms, rec, WithClock(func() time.Time { return at(7, 30, 0) }))

	assert.Zero(t, s.Tick(context.Background()))
	assert.Empty(t, queued(s))
}

type roller struct {
	last  calendar.Date
	calls int
}

func (r *roller) Rollover(context.Context) error {
	r.calls++
	return nil
}

func (r *roller) LastRollover(context.Context) (calendar.Date, error) {
	return r.last, nil
}

func TestRolloverOncePerDay(t *testing.T) {
	r := &roller{last: "26122025"}
	clk := &clock{t: at(0, 0, 1)}
	s := New(&memAlarms{}, &recorder{}, WithClock(clk.now), WithRollover(r))

	s.Tick(context.Background())
	s.Tick(context.Background())
	assert.Equal(t, 1, r.calls)

	clk.set(time.Date(2025, time.December, 28, 0, 0, 0, 0, time.Local))
	s.Tick(context.Background())
	assert.Equal(t, 2, r.calls)
}

func TestRolloverSkippedAfterRestartSameDay(t *testing.T) {
	r := &roller{last: "27122025"}
	s := New(&memAlarms{}, &recorder{}, WithClock(func() time.Time { return at(9, 0, 0) }), WithRollover(r))

	s.Tick(context.Background())
	assert.Zero(t, r.calls)
}

func TestRunWithStore(t *testing.T) {
	clk := &clock{t: at(7, 29, 0)}
	st, err := store.Open(store.Options{Dir: t.TempDir(), Now: clk.now})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.AddAlarm(context.Background(), "27122025", "07:30"))

	rec := &recorder{}
	s := New(st, rec, WithClock(clk.now), WithInterval(5*time.Millisecond), WithRollover(st))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	clk.set(at(7, 30, 0))
	require.Eventually(t, func() bool { return rec.count() == 1 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, rec.count())

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	last, err := st.LastRollover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, calendar.Date("27122025"), last)
}
