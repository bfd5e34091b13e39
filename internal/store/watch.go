package store

import (
	"context"
	"fmt"
	log "log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"agenda/internal/calendar"
)

type EventKind int

const (
	EventTasks EventKind = iota
	EventAlarms
	EventSnapshot
)

// Event reports a change to a file of the data directory.
type Event struct {
	Kind EventKind
	Date calendar.Date
}

func (k EventKind) String() string {
	switch k {
	case EventTasks:
		return "tasks"
	case EventAlarms:
		return "alarms"
	case EventSnapshot:
		return "snapshot"
	}
	return "unknown"
}

// Watch follows the data directory until ctx is done. Every change, including
// hand edits made while the daemon runs, reloads the affected key into the
// store cache before the event is emitted, so the next read sees the file as
// it is on disk. Events are dropped when the consumer lags behind.
func (s *Store) Watch(ctx context.Context) (<-chan Event, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("store: create watcher: %w", err)
	}

	tasksDir := filepath.Join(s.dir, tasksPrefix)
	if err := os.MkdirAll(tasksDir, 0o755); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("store: ensure tasks directory: %w", err)
	}
	for _, dir := range []string{s.dir, tasksDir} {
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return nil, fmt.Errorf("store: watch %s: %w", dir, err)
		}
	}

	events := make(chan Event, 16)

	go func() {
		defer close(events)
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn("Store watcher error", "err", err)
			case evt, ok := <-watcher.Events:
				if !ok {
					return
				}

				key, ev, ok := s.classify(evt.Name)
				if !ok {
					continue
				}

				if _, err := call(ctx, s, func() (struct{}, error) {
					return struct{}{}, s.refresh(key)
				}); err != nil {
					log.Warn("Failed to refresh key", "key", key, "err", err)
				}

				select {
				case events <- ev:
				default:
				}
			}
		}
	}()

	return events, nil
}

func (s *Store) classify(path string) (string, Event, bool) {
	rel, err := filepath.Rel(s.dir, path)
	if err != nil || !strings.HasSuffix(rel, fileExt) {
		return "", Event{}, false
	}

	parts := strings.Split(strings.TrimSuffix(rel, fileExt), string(os.PathSeparator))
	switch {
	case len(parts) == 1 && parts[0] == alarmsKey:
		return alarmsKey, Event{Kind: EventAlarms}, true
	case len(parts) == 1 && parts[0] == snapshotKey:
		return snapshotKey, Event{Kind: EventSnapshot}, true
	case len(parts) == 2 && parts[0] == tasksPrefix:
		date := calendar.Date(parts[1])
		if !validDate(date) {
			return "", Event{}, false
		}
		return tasksKey(date), Event{Kind: EventTasks, Date: date}, true
	}
	return "", Event{}, false
}
