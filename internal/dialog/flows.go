package dialog

import (
	"context"
	"errors"

	"agenda/internal/calendar"
	"agenda/internal/store"
)

// rejection maps a store rejection to the Await state that must be asked again.
// Anything that is not a rejection is a storage failure.
func rejection(err error, field State, msg string) (State, string, error) {
	if store.IsRejection(err) {
		return field, msg, nil
	}
	return Aborted, "", err
}

func acceptDate(in string, v *Values) (calendar.Date, string, bool) {
	date, ok := calendar.ParseDate(in)
	if !ok {
		return "", clarifyDate, false
	}
	v.Date = date
	return date, "", true
}

// SetAlarm collects a day and a time and registers the alarm.
func SetAlarm() Flow {
	return Flow{
		Name:  "set_alarm",
		Start: AwaitDate,
		Steps: map[State]Step{
			AwaitDate: {
				Prompt: promptAlarmDate,
				Accept: func(ctx context.Context, e *Engine, in string, v *Values) (State, string, error) {
					date, msg, ok := acceptDate(in, v)
					if !ok {
						return AwaitDate, msg, nil
					}
					if date.Before(e.today()) {
						return AwaitDate, clarifyAlarmDay, nil
					}
					return AwaitTime, "", nil
				},
			},
			AwaitTime: {
				Prompt: promptTime,
				Accept: func(ctx context.Context, e *Engine, in string, v *Values) (State, string, error) {
					at, ok := calendar.ParseTime(in)
					if !ok {
						return AwaitTime, clarifyTime, nil
					}
					exists, err := e.alarms.AlarmExists(ctx, v.Date, at)
					if err != nil {
						return Aborted, "", err
					}
					if exists {
						return AwaitTime, msgDuplicateAlarm(v.Date, at), nil
					}
					v.Time = at
					return Committed, "", nil
				},
			},
		},
		Commit: func(ctx context.Context, e *Engine, v *Values) (State, string, error) {
			if err := e.alarms.AddAlarm(ctx, v.Date, v.Time); err != nil {
				if errors.Is(err, store.ErrDuplicate) {
					return AwaitTime, msgDuplicateAlarm(v.Date, v.Time), nil
				}
				return rejection(err, AwaitDate, clarifyDate)
			}
			return Committed, msgAlarmSet(v.Date, v.Time), nil
		},
	}
}

// AddTask collects a future date and a text and appends the task.
func AddTask() Flow {
	return Flow{
		Name:  "add_task",
		Start: AwaitDate,
		Steps: map[State]Step{
			AwaitDate: {
				Prompt: promptDate,
				Accept: func(ctx context.Context, e *Engine, in string, v *Values) (State, string, error) {
					date, msg, ok := acceptDate(in, v)
					if !ok {
						return AwaitDate, msg, nil
					}
					if !date.After(e.today()) {
						return AwaitDate, clarifyPastDate, nil
					}
					tasks, err := e.tasks.ListTasks(ctx, date)
					if err != nil {
						return Aborted, "", err
					}
					if len(tasks) >= e.quota {
						return AwaitDate, msgQuota(e.quota), nil
					}
					return AwaitTaskText, "", nil
				},
			},
			AwaitTaskText: {
				Prompt: promptTaskText,
				Accept: func(ctx context.Context, e *Engine, in string, v *Values) (State, string, error) {
					if in == "" {
						return AwaitTaskText, clarifyTaskText, nil
					}
					v.Text = in
					return Committed, "", nil
				},
			},
		},
		Commit: func(ctx context.Context, e *Engine, v *Values) (State, string, error) {
			index, err := e.tasks.AddTask(ctx, v.Date, v.Text)
			switch {
			case errors.Is(err, store.ErrPastDate):
				return AwaitDate, clarifyPastDate, nil
			case errors.Is(err, store.ErrQuotaExceeded):
				return AwaitDate, msgQuota(e.quota), nil
			case err != nil:
				return rejection(err, AwaitDate, clarifyDate)
			}
			return Committed, msgTaskAdded(index, v.Date, v.Text), nil
		},
	}
}

// RemoveTask reads out a day's tasks and deletes the one named by index.
func RemoveTask() Flow {
	return Flow{
		Name:  "remove_task",
		Start: AwaitDate,
		Steps: map[State]Step{
			AwaitDate: {
				Prompt: promptDate,
				Accept: func(ctx context.Context, e *Engine, in string, v *Values) (State, string, error) {
					date, msg, ok := acceptDate(in, v)
					if !ok {
						return AwaitDate, msg, nil
					}
					tasks, err := e.tasks.ListTasks(ctx, date)
					if err != nil {
						return Aborted, "", err
					}
					if len(tasks) == 0 {
						return AwaitDate, msgNoTasksRetry(date), nil
					}
					return AwaitIndex, msgTaskList(date, tasks), nil
				},
			},
			AwaitIndex: {
				Prompt: promptIndex,
				Accept: func(ctx context.Context, e *Engine, in string, v *Values) (State, string, error) {
					index, ok := calendar.ParseIndex(in)
					if !ok {
						return AwaitIndex, clarifyIndex, nil
					}
					v.Index = index
					return Committed, "", nil
				},
			},
		},
		Commit: func(ctx context.Context, e *Engine, v *Values) (State, string, error) {
			if err := e.tasks.DeleteTask(ctx, v.Date, v.Index); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return AwaitIndex, msgTaskNotFound(v.Index), nil
				}
				return rejection(err, AwaitDate, clarifyDate)
			}
			return Committed, msgTaskDeleted(v.Index, v.Date), nil
		},
	}
}

// ListTasks reads out every task of one date.
func ListTasks() Flow {
	return Flow{
		Name:  "list_tasks",
		Start: AwaitDate,
		Steps: map[State]Step{
			AwaitDate: {
				Prompt: promptDate,
				Accept: func(ctx context.Context, e *Engine, in string, v *Values) (State, string, error) {
					if _, msg, ok := acceptDate(in, v); !ok {
						return AwaitDate, msg, nil
					}
					return Committed, "", nil
				},
			},
		},
		Commit: func(ctx context.Context, e *Engine, v *Values) (State, string, error) {
			tasks, err := e.tasks.ListTasks(ctx, v.Date)
			if err != nil {
				return rejection(err, AwaitDate, clarifyDate)
			}
			if len(tasks) == 0 {
				return Committed, msgNoTasks(v.Date), nil
			}
			return Committed, msgTaskList(v.Date, tasks), nil
		},
	}
}

// TodayTasks reads the snapshot made by the daily rollover.
func TodayTasks() Flow {
	return Flow{
		Name:  "today_tasks",
		Start: Committed,
		Commit: func(ctx context.Context, e *Engine, v *Values) (State, string, error) {
			tasks, err := e.tasks.TodayTasks(ctx)
			if err != nil {
				return Aborted, "", err
			}
			return Committed, msgToday(tasks), nil
		},
	}
}

func Help() Flow {
	return Flow{
		Name:  "help",
		Start: Committed,
		Commit: func(ctx context.Context, e *Engine, v *Values) (State, string, error) {
			return Committed, msgHelp, nil
		},
	}
}
