package voice

import (
	"bufio"
	"context"
	"fmt"
	"io"
	log "log/slog"
	"sync"
)

// Stream is a text conversation over a line oriented connection: every spoken
// text is written as one line and every line read is one utterance.
type Stream struct {
	mu     sync.Mutex
	w      io.Writer
	lines  chan string
	cancel context.CancelFunc
}

// NewStream starts reading r for the session ctx. When r ends, the next Listen
// calls cancel (the CancelFunc of ctx) so the session winds down.
func NewStream(ctx context.Context, cancel context.CancelFunc, r io.Reader, w io.Writer) *Stream {
	s := &Stream{
		w:      w,
		lines:  make(chan string),
		cancel: cancel,
	}
	go s.read(ctx, r)
	return s
}

func (s *Stream) read(ctx context.Context, r io.Reader) {
	defer close(s.lines)

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		select {
		case s.lines <- sc.Text():
		case <-ctx.Done():
			return
		}
	}
	if err := sc.Err(); err != nil {
		log.Debug("Stream read ended", "err", err)
	}
}

func (s *Stream) Speak(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := fmt.Fprintln(s.w, text)
	return err
}

func (s *Stream) Listen(ctx context.Context) (string, bool) {
	select {
	case <-ctx.Done():
		return "", false
	case line, ok := <-s.lines:
		if !ok {
			if s.cancel != nil {
				s.cancel()
			}
			return "", false
		}
		return line, true
	}
}
