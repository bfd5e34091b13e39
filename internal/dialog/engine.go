package dialog

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"strings"
	"time"

	"agenda/internal/calendar"
	"agenda/internal/store"
)

// ErrStorage is returned when a flow aborts because the store failed.
var ErrStorage = errors.New("storage failure")

// Speaker blocks until text has been played back.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// Listener returns false on timeout or unrecognised audio. It never fails.
type Listener interface {
	Listen(ctx context.Context) (string, bool)
}

type TaskStore interface {
	AddTask(ctx context.Context, date calendar.Date, text string) (int, error)
	ListTasks(ctx context.Context, date calendar.Date) ([]store.Task, error)
	DeleteTask(ctx context.Context, date calendar.Date, index int) error
	TodayTasks(ctx context.Context) ([]string, error)
}

type AlarmStore interface {
	AlarmExists(ctx context.Context, day calendar.Date, at calendar.Clock) (bool, error)
	AddAlarm(ctx context.Context, day calendar.Date, at calendar.Clock) error
}

type State int

const (
	AwaitDate State = iota
	AwaitTime
	AwaitTaskText
	AwaitIndex
	Committed
	Aborted
)

func (s State) String() string {
	switch s {
	case AwaitDate:
		return "await_date"
	case AwaitTime:
		return "await_time"
	case AwaitTaskText:
		return "await_task_text"
	case AwaitIndex:
		return "await_index"
	case Committed:
		return "committed"
	case Aborted:
		return "aborted"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Values carries what a flow has validated so far.
type Values struct {
	Date  calendar.Date
	Time  calendar.Clock
	Text  string
	Index int
}

// Step handles one Await state. Accept returns the next state and what to say;
// returning the current state re-prompts it. Only storage failures are errors.
type Step struct {
	Prompt string
	Accept func(ctx context.Context, e *Engine, in string, v *Values) (State, string, error)
}

// Flow is one dialog: the Await steps plus the commit performed on entering Committed.
// Commit returns Committed on success, or the Await state whose field was rejected.
type Flow struct {
	Name   string
	Start  State
	Steps  map[State]Step
	Commit func(ctx context.Context, e *Engine, v *Values) (State, string, error)
}

type Options struct {
	Quota       int
	EscapeWords []string
	Now         func() time.Time
}

type Engine struct {
	speaker  Speaker
	listener Listener
	tasks    TaskStore
	alarms   AlarmStore

	quota  int
	escape map[string]bool
	now    func() time.Time
}

func NewEngine(sp Speaker, ls Listener, tasks TaskStore, alarms AlarmStore, opts Options) *Engine {
	if opts.Quota <= 0 {
		opts.Quota = store.DefaultQuota
	}
	if len(opts.EscapeWords) == 0 {
		opts.EscapeWords = []string{"salir", "cancelar"}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	escape := make(map[string]bool, len(opts.EscapeWords))
	for _, w := range opts.EscapeWords {
		escape[calendar.Fold(w)] = true
	}

	return &Engine{
		speaker:  sp,
		listener: ls,
		tasks:    tasks,
		alarms:   alarms,
		quota:    opts.Quota,
		escape:   escape,
		now:      opts.Now,
	}
}

func (e *Engine) today() calendar.Date {
	return calendar.DateOf(e.now())
}

func (e *Engine) say(ctx context.Context, text string) {
	if text == "" {
		return
	}
	if err := e.speaker.Speak(ctx, text); err != nil {
		log.Warn("Failed to speak", "text", text, "err", err)
	}
}

func (e *Engine) listen(ctx context.Context) (string, bool) {
	in, ok := e.listener.Listen(ctx)
	if !ok {
		return "", false
	}
	in = strings.TrimSpace(in)
	return in, in != ""
}

// IsEscape reports whether in is the utterance that abandons the current flow.
func (e *Engine) IsEscape(in string) bool {
	return e.escape[strings.Trim(calendar.Fold(in), ".,!¡¿? ")]
}

// Run drives f until it commits or the user aborts. A Listen miss or an invalid
// answer re-prompts the same state with no retry cap.
func (e *Engine) Run(ctx context.Context, f Flow) (State, error) {
	var (
		v       Values
		state   = f.Start
		retried bool
	)

	for {
		if err := ctx.Err(); err != nil {
			return Aborted, err
		}

		if state == Committed {
			next, msg, err := f.Commit(ctx, e, &v)
			if err != nil {
				return e.fail(ctx, f, err)
			}
			e.say(ctx, msg)
			if next == Committed {
				log.Info("Flow committed", "flow", f.Name)
				return Committed, nil
			}
			state, retried = next, true
			continue
		}

		step, ok := f.Steps[state]
		if !ok {
			return Aborted, fmt.Errorf("%s: no step for state %s", f.Name, state)
		}
		if !retried {
			e.say(ctx, step.Prompt)
		}

		in, ok := e.listen(ctx)
		if !ok {
			if ctx.Err() != nil {
				continue
			}
			e.say(ctx, msgNotUnderstood)
			retried = true
			continue
		}
		if e.IsEscape(in) {
			e.say(ctx, msgAborted)
			log.Info("Flow aborted", "flow", f.Name, "state", state)
			return Aborted, nil
		}

		next, msg, err := step.Accept(ctx, e, in, &v)
		if err != nil {
			return e.fail(ctx, f, err)
		}
		e.say(ctx, msg)
		log.Debug("Flow step", "flow", f.Name, "from", state, "to", next, "input", in)

		retried = next == state
		state = next
	}
}

func (e *Engine) fail(ctx context.Context, f Flow, err error) (State, error) {
	if ctx.Err() != nil {
		return Aborted, ctx.Err()
	}
	log.Error("Flow storage failure", "flow", f.Name, "err", err)
	e.say(ctx, msgStorageFailure)
	return Aborted, fmt.Errorf("%s: %w: %w", f.Name, ErrStorage, err)
}
