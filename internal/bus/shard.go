package bus

import (
	"context"
	"errors"
	log "log/slog"
	"sync"
	"time"

	"agenda/internal/dialog"
)

const (
	DefaultIdle = 5 * time.Minute
	inboxSize   = 8
)

type Writer interface {
	Write(m Message) error
}

type Reader interface {
	Read() (Message, error)
}

// SessionFunc runs one conversation until it ends or ctx is done.
type SessionFunc func(ctx context.Context, sp dialog.Speaker, ls dialog.Listener) error

// Shard runs an independent conversation per sender on the bus.
type Shard struct {
	name string
	out  Writer
	run  SessionFunc
	idle time.Duration

	mu       sync.Mutex
	sessions map[string]*session
	wg       sync.WaitGroup
}

func NewShard(name string, out Writer, run SessionFunc, idle time.Duration) *Shard {
	if idle <= 0 {
		idle = DefaultIdle
	}
	return &Shard{
		name:     name,
		out:      out,
		run:      run,
		idle:     idle,
		sessions: make(map[string]*session),
	}
}

// Serve reads the bus until ctx is done or the connection fails. Frames that
// are not messages are skipped.
func (s *Shard) Serve(ctx context.Context, in Reader) error {
	for {
		m, err := in.Read()
		if errors.Is(err, ErrDecode) {
			log.Warn("Skipping bus frame", "err", err)
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		s.Dispatch(ctx, m)
	}
}

// Dispatch hands a text message to its sender's session, starting one if needed.
func (s *Shard) Dispatch(ctx context.Context, m Message) {
	if m.Kind != KindText || m.From == "" || m.From == s.name {
		return
	}
	if m.To != "" && m.To != s.name {
		return
	}

	s.mu.Lock()
	s.deliver(ctx, m.From, m.Content)
	s.mu.Unlock()
}

// deliver must be called with s.mu held.
func (s *Shard) deliver(ctx context.Context, peer, text string) {
	sess, ok := s.sessions[peer]
	if !ok || sess.ctx.Err() != nil {
		sess = s.start(ctx, peer)
	}

	select {
	case sess.inbox <- text:
	default:
		log.Warn("Session inbox full, dropping message", "from", peer)
	}
}

// Wait blocks until every session has ended.
func (s *Shard) Wait() {
	s.wg.Wait()
}

// Sessions returns how many conversations are live.
func (s *Shard) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// start must be called with s.mu held.
func (s *Shard) start(parent context.Context, peer string) *session {
	ctx, cancel := context.WithCancel(parent)
	sess := &session{
		shard:  s,
		peer:   peer,
		ctx:    ctx,
		cancel: cancel,
		inbox:  make(chan string, inboxSize),
	}
	s.sessions[peer] = sess
	log.Info("Session started", "peer", peer)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		err := s.run(ctx, sess, sess)
		cancel()
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Session failed", "peer", peer, "err", err)
		}

		s.mu.Lock()
		if s.sessions[peer] == sess {
			delete(s.sessions, peer)
		}
		s.requeue(parent, peer, sess.inbox)
		s.mu.Unlock()
		log.Info("Session ended", "peer", peer)
	}()

	return sess
}

// requeue passes messages that reached a session after it stopped listening
// on to the peer's next session. s.mu must be held.
func (s *Shard) requeue(ctx context.Context, peer string, inbox chan string) {
	if ctx.Err() != nil {
		return
	}
	for {
		select {
		case text := <-inbox:
			s.deliver(ctx, peer, text)
		default:
			return
		}
	}
}

type session struct {
	shard  *Shard
	peer   string
	ctx    context.Context
	cancel context.CancelFunc
	inbox  chan string
}

func (s *session) Speak(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.shard.out.Write(Message{
		From:    s.shard.name,
		To:      s.peer,
		Kind:    KindSay,
		Content: text,
	})
}

// Listen ends the session once the peer has been quiet for the idle period.
func (s *session) Listen(ctx context.Context) (string, bool) {
	timer := time.NewTimer(s.shard.idle)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return "", false
	case text := <-s.inbox:
		return text, true
	case <-timer.C:
		log.Info("Session idle", "peer", s.peer)
		s.cancel()
		return "", false
	}
}
