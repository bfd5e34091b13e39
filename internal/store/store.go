package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	log "log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/peterbourgon/diskv/v3"
)

const (
	DefaultQuota = 9

	tasksPrefix  = "tareas"
	alarmsKey    = "alarmas"
	snapshotKey  = "hoy"
	rolloverKey  = "meta-rollover"
	fileExt      = ".txt"
	tempDirName  = ".tmp"
	cacheSizeMax = 1024 * 1024
)

var (
	ErrPastDate      = errors.New("date is not after today")
	ErrQuotaExceeded = errors.New("task quota exceeded for date")
	ErrDuplicate     = errors.New("alarm already exists")
	ErrNotFound      = errors.New("task not found")
	ErrInvalidDate   = errors.New("invalid date")
	ErrInvalidTime   = errors.New("invalid time")
	ErrClosed        = errors.New("store closed")
)

// IsRejection reports whether err is a business rule violation rather than an I/O failure.
func IsRejection(err error) bool {
	for _, target := range []error{ErrPastDate, ErrQuotaExceeded, ErrDuplicate, ErrNotFound, ErrInvalidDate, ErrInvalidTime} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

type Options struct {
	Dir   string
	Quota int
	Now   func() time.Time
}

// Store owns the data directory. Every operation, reads included, runs on a
// single goroutine so read-modify-write sequences never interleave.
type Store struct {
	d     *diskv.Diskv
	dir   string
	quota int
	now   func() time.Time

	ops       chan func()
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func Open(opts Options) (*Store, error) {
	if strings.TrimSpace(opts.Dir) == "" {
		return nil, errors.New("store: data directory required")
	}
	if err := os.MkdirAll(filepath.Join(opts.Dir, tempDirName), 0o755); err != nil {
		return nil, fmt.Errorf("store: ensure data directory: %w", err)
	}
	if opts.Quota <= 0 {
		opts.Quota = DefaultQuota
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Store{
		d: diskv.New(diskv.Options{
			BasePath:          opts.Dir,
			TempDir:           filepath.Join(opts.Dir, tempDirName),
			AdvancedTransform: keyToPath,
			InverseTransform:  pathToKey,
			CacheSizeMax:      cacheSizeMax,
			PathPerm:          0o755,
			FilePerm:          0o644,
		}),
		dir:   opts.Dir,
		quota: opts.Quota,
		now:   opts.Now,
		ops:   make(chan func()),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}

	go s.loop()

	log.Debug("Store opened", "dir", opts.Dir, "quota", opts.Quota)
	return s, nil
}

func (s *Store) Dir() string { return s.dir }

func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		close(s.stop)
	})
	<-s.done
	return nil
}

func (s *Store) loop() {
	defer close(s.done)
	for {
		select {
		case op := <-s.ops:
			op()
		case <-s.stop:
			return
		}
	}
}

// call runs fn on the store goroutine. Once fn has been accepted it always
// runs to completion, so cancelling ctx never leaves a half-applied mutation.
func call[T any](ctx context.Context, s *Store, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	res := make(chan result, 1)
	op := func() {
		v, err := fn()
		res <- result{v: v, err: err}
	}

	var zero T
	select {
	case s.ops <- op:
	case <-s.done:
		return zero, ErrClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}

	r := <-res
	return r.v, r.err
}

func (s *Store) today() string {
	return s.now().Format("02012006")
}

// readLines returns nil when key has never been written.
func (s *Store) readLines(key string) ([]string, error) {
	if !s.d.Has(key) {
		return nil, nil
	}
	data, err := s.d.Read(key)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", key, err)
	}

	var lines []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func (s *Store) writeLines(key string, lines []string) error {
	var b strings.Builder
	for _, line := range lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	if err := s.d.Write(key, []byte(b.String())); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func (s *Store) erase(key string) error {
	if err := s.d.Erase(key); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("erase %s: %w", key, err)
	}
	return nil
}

// refresh reloads key from disk after an edit made outside the store.
func (s *Store) refresh(key string) error {
	if _, err := os.Stat(filepath.Join(s.dir, pathOf(key))); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return s.erase(key)
		}
		return err
	}
	rc, err := s.d.ReadStream(key, true)
	if err != nil {
		return err
	}
	defer rc.Close()
	_, err = io.Copy(io.Discard, rc)
	return err
}

// keyToPath maps "tareas-27122025" to tareas/27122025.txt and "alarmas" to alarmas.txt.
func keyToPath(key string) *diskv.PathKey {
	parts := strings.Split(key, "-")
	return &diskv.PathKey{
		Path:     parts[:len(parts)-1],
		FileName: parts[len(parts)-1] + fileExt,
	}
}

func pathToKey(pk *diskv.PathKey) string {
	name := strings.TrimSuffix(pk.FileName, fileExt)
	if len(pk.Path) == 0 {
		return name
	}
	return strings.Join(pk.Path, "-") + "-" + name
}

func pathOf(key string) string {
	pk := keyToPath(key)
	return filepath.Join(append(append([]string{}, pk.Path...), pk.FileName)...)
}
