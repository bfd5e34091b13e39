package store

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"

	"agenda/internal/calendar"
)

// Task is one indexed entry of a day's list.
type Task struct {
	Date  calendar.Date `json:"date"`
	Index int           `json:"index"`
	Text  string        `json:"text"`
}

// Line renders t the way it is stored on disk: "<index> - <text>".
func (t Task) Line() string {
	return fmt.Sprintf("%d - %s", t.Index, t.Text)
}

func tasksKey(date calendar.Date) string {
	return tasksPrefix + "-" + string(date)
}

func validDate(date calendar.Date) bool {
	parsed, ok := calendar.ParseDate(string(date))
	return ok && parsed == date
}

func decodeTask(date calendar.Date, line string) (Task, bool) {
	idx, text, found := strings.Cut(line, " - ")
	if !found {
		return Task{}, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(idx))
	if err != nil || n <= 0 {
		return Task{}, false
	}
	return Task{Date: date, Index: n, Text: text}, true
}

func sanitizeText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

func (s *Store) readTasks(date calendar.Date) ([]Task, error) {
	lines, err := s.readLines(tasksKey(date))
	if err != nil {
		return nil, err
	}
	tasks := make([]Task, 0, len(lines))
	for _, line := range lines {
		if t, ok := decodeTask(date, line); ok {
			tasks = append(tasks, t)
		}
	}
	return tasks, nil
}

func (s *Store) writeTasks(date calendar.Date, tasks []Task) error {
	if len(tasks) == 0 {
		return s.erase(tasksKey(date))
	}
	lines := make([]string, len(tasks))
	for i, t := range tasks {
		lines[i] = t.Line()
	}
	return s.writeLines(tasksKey(date), lines)
}

// AddTask appends text to the list of date and returns its index.
func (s *Store) AddTask(ctx context.Context, date calendar.Date, text string) (int, error) {
	return call(ctx, s, func() (int, error) {
		if !validDate(date) {
			return 0, ErrInvalidDate
		}
		if !date.After(calendar.Date(s.today())) {
			return 0, ErrPastDate
		}

		tasks, err := s.readTasks(date)
		if err != nil {
			return 0, err
		}
		if len(tasks) >= s.quota {
			return 0, ErrQuotaExceeded
		}

		index := 1
		for _, t := range tasks {
			if t.Index >= index {
				index = t.Index + 1
			}
		}

		tasks = append(tasks, Task{Date: date, Index: index, Text: sanitizeText(text)})
		if err := s.writeTasks(date, tasks); err != nil {
			return 0, err
		}
		return index, nil
	})
}

func (s *Store) ListTasks(ctx context.Context, date calendar.Date) ([]Task, error) {
	return call(ctx, s, func() ([]Task, error) {
		if !validDate(date) {
			return nil, ErrInvalidDate
		}
		return s.readTasks(date)
	})
}

// DeleteTask removes the task with index and renumbers the rest of that
// day's tasks from 1, keeping their order and text.
func (s *Store) DeleteTask(ctx context.Context, date calendar.Date, index int) error {
	_, err := call(ctx, s, func() (struct{}, error) {
		if !validDate(date) {
			return struct{}{}, ErrInvalidDate
		}
		tasks, err := s.readTasks(date)
		if err != nil {
			return struct{}{}, err
		}

		kept := make([]Task, 0, len(tasks))
		found := false
		for _, t := range tasks {
			if t.Index == index && !found {
				found = true
				continue
			}
			kept = append(kept, t)
		}
		if !found {
			return struct{}{}, ErrNotFound
		}

		for i := range kept {
			kept[i].Index = i + 1
		}
		return struct{}{}, s.writeTasks(date, kept)
	})
	return err
}

// TaskDates lists every date holding at least one task, oldest first.
func (s *Store) TaskDates(ctx context.Context) ([]calendar.Date, error) {
	return call(ctx, s, func() ([]calendar.Date, error) {
		var dates []calendar.Date
		for key := range s.d.KeysPrefix(tasksPrefix+"-", s.stop) {
			date := calendar.Date(strings.TrimPrefix(key, tasksPrefix+"-"))
			if validDate(date) {
				dates = append(dates, date)
			}
		}
		sort.Slice(dates, func(i, j int) bool {
			return dates[i].Before(dates[j])
		})
		return dates, nil
	})
}

// Rollover moves today's tasks into the snapshot read by TodayTasks and
// removes today's dated file. The snapshot holds bare texts, no indices.
// The first rollover of a day replaces the snapshot; later ones on the same
// day append what was added since. The dated file is erased last, so a
// rollover that failed halfway is finished by the next call.
func (s *Store) Rollover(ctx context.Context) error {
	_, err := call(ctx, s, func() (struct{}, error) {
		today := calendar.Date(s.today())
		tasks, err := s.readTasks(today)
		if err != nil {
			return struct{}{}, err
		}
		stamp, err := s.readLines(rolloverKey)
		if err != nil {
			return struct{}{}, err
		}

		again := len(stamp) > 0 && strings.TrimSpace(stamp[0]) == string(today)
		if again && len(tasks) == 0 {
			return struct{}{}, nil
		}

		var texts []string
		if again {
			if texts, err = s.readLines(snapshotKey); err != nil {
				return struct{}{}, err
			}
		}
		for _, t := range tasks {
			if again && slices.Contains(texts, t.Text) {
				continue
			}
			texts = append(texts, t.Text)
		}

		if err := s.writeLines(snapshotKey, texts); err != nil {
			return struct{}{}, err
		}
		if err := s.writeLines(rolloverKey, []string{string(today)}); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, s.erase(tasksKey(today))
	})
	return err
}

// LastRollover returns the day of the most recent Rollover, or "" if none ran.
func (s *Store) LastRollover(ctx context.Context) (calendar.Date, error) {
	return call(ctx, s, func() (calendar.Date, error) {
		lines, err := s.readLines(rolloverKey)
		if err != nil || len(lines) == 0 {
			return "", err
		}
		return calendar.Date(strings.TrimSpace(lines[0])), nil
	})
}

func (s *Store) TodayTasks(ctx context.Context) ([]string, error) {
	return call(ctx, s, func() ([]string, error) {
		lines, err := s.readLines(snapshotKey)
		if err != nil {
			return nil, err
		}
		if lines == nil {
			return []string{}, nil
		}
		return lines, nil
	})
}
