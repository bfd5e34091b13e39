package scheduler

import (
	"context"
	log "log/slog"
	"time"

	"agenda/internal/calendar"
	"agenda/internal/store"
)

const (
	DefaultInterval     = time.Second
	DefaultAlertTimeout = 2 * time.Minute
	queueSize           = 16
)

type AlarmLister interface {
	ListAlarms(ctx context.Context) ([]store.Alarm, error)
}

// Alerter makes the alarm heard. It may block until playback ends and should
// return once ctx is done.
type Alerter interface {
	Alert(ctx context.Context, alarm store.Alarm) error
}

// Roller moves today's tasks into the today snapshot.
type Roller interface {
	Rollover(ctx context.Context) error
	LastRollover(ctx context.Context) (calendar.Date, error)
}

type Option func(*Scheduler)

func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

// WithAlertTimeout bounds how long a single alert may play.
func WithAlertTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithRollover performs the daily rollover on the first tick of every new day.
func WithRollover(r Roller) Option {
	return func(s *Scheduler) {
		s.roller = r
	}
}

// Scheduler polls the alarm registry and fires every alarm whose day and
// minute equal the current ones. Each alarm fires at most once per minute
// however many polls land inside it. Alerts are played one at a time off the
// polling goroutine, so a long alarm never delays the next poll.
type Scheduler struct {
	alarms   AlarmLister
	alerter  Alerter
	roller   Roller
	interval time.Duration
	timeout  time.Duration
	now      func() time.Time
	queue    chan store.Alarm

	fired      map[store.Alarm]string
	rolledOver calendar.Date
}

func New(alarms AlarmLister, alerter Alerter, opts ...Option) *Scheduler {
	s := &Scheduler{
		alarms:   alarms,
		alerter:  alerter,
		interval: DefaultInterval,
		timeout:  DefaultAlertTimeout,
		now:      time.Now,
		queue:    make(chan store.Alarm, queueSize),
		fired:    make(map[store.Alarm]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run polls and sounds due alarms until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	log.Info("Alarm scheduler started", "interval", s.interval)

	go s.sound(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Info("Alarm scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs one poll, queues the due alarms for Run to sound and returns how
// many were queued.
func (s *Scheduler) Tick(ctx context.Context) int {
	now := s.now()
	today := calendar.DateOf(now)
	minute := string(today) + " " + string(calendar.ClockOf(now))

	if s.roller != nil {
		s.rollover(ctx, today)
	}

	alarms, err := s.alarms.ListAlarms(ctx)
	if err != nil {
		log.Error("Failed to list alarms", "err", err)
		return 0
	}

	for a, at := range s.fired {
		if at != minute {
			delete(s.fired, a)
		}
	}

	fired := 0
	for _, a := range alarms {
		if a.Day != today || a.Time != calendar.ClockOf(now) {
			continue
		}
		if s.fired[a] == minute {
			continue
		}
		s.fired[a] = minute

		log.Info("Alarm", "day", a.Day, "time", a.Time)
		select {
		case s.queue <- a:
			fired++
		default:
			log.Error("Alarm queue full, dropping alarm", "day", a.Day, "time", a.Time)
		}
	}
	return fired
}

func (s *Scheduler) sound(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case a := <-s.queue:
			s.alert(ctx, a)
		}
	}
}

func (s *Scheduler) alert(ctx context.Context, a store.Alarm) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.alerter.Alert(ctx, a); err != nil {
		log.Error("Failed to sound alarm", "day", a.Day, "time", a.Time, "err", err)
	}
}

func (s *Scheduler) rollover(ctx context.Context, today calendar.Date) {
	if s.rolledOver == today {
		return
	}
	if s.rolledOver == "" {
		last, err := s.roller.LastRollover(ctx)
		if err != nil {
			log.Error("Failed to read last rollover", "err", err)
			return
		}
		if last == today {
			s.rolledOver = today
			return
		}
	}

	if err := s.roller.Rollover(ctx); err != nil {
		log.Error("Failed to roll over tasks", "day", today, "err", err)
		return
	}
	s.rolledOver = today
	log.Info("Rolled over tasks", "day", today)
}
