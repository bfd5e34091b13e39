package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	log "log/slog"
	"net"
	"os"
	"sync"

	"agenda/internal/calendar"
	"agenda/internal/store"
)

const DefaultSocketPath = "/tmp/agenda.sock"

const (
	CmdTrigger  = "trigger"
	CmdChat     = "chat"
	CmdTasks    = "tasks"
	CmdDates    = "dates"
	CmdToday    = "today"
	CmdAlarms   = "alarms"
	CmdRollover = "rollover"
	CmdNote     = "note"
)

// ControlMessage is the first line of every connection.
type ControlMessage struct {
	Cmd  string        `json:"cmd"`
	Date calendar.Date `json:"date,omitempty"`
	Path string        `json:"path,omitempty"`
}

type Response struct {
	Error  string          `json:"error,omitempty"`
	Text   string          `json:"text,omitempty"`
	Tasks  []store.Task    `json:"tasks,omitempty"`
	Alarms []store.Alarm   `json:"alarms,omitempty"`
	Dates  []calendar.Date `json:"dates,omitempty"`
	Today  []string        `json:"today,omitempty"`
}

func (r Response) Err() error {
	if r.Error == "" {
		return nil
	}
	return errors.New(r.Error)
}

func Failure(err error) Response {
	return Response{Error: err.Error()}
}

type Handler interface {
	// Handle answers a one-shot command.
	Handle(ctx context.Context, msg ControlMessage) Response
	// Chat runs a line dialog on the rest of the connection.
	Chat(ctx context.Context, r io.Reader, w io.Writer) error
}

type Server struct {
	path string
	ln   net.Listener
	wg   sync.WaitGroup
}

// Listen replaces a stale socket at path and starts listening.
func Listen(path string) (*Server, error) {
	if path == "" {
		path = DefaultSocketPath
	}
	_ = os.Remove(path)

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}
	return &Server{path: path, ln: ln}, nil
}

func (s *Server) Path() string { return s.path }

// Serve accepts connections until ctx is done, then waits for open ones.
func (s *Server) Serve(ctx context.Context, h Handler) error {
	go func() {
		<-ctx.Done()
		_ = s.ln.Close()
	}()

	log.Info("Control socket listening", "path", s.path)

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.wg.Wait()
				_ = os.Remove(s.path)
				return ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				s.wg.Wait()
				return err
			}
			log.Warn("Failed to accept", "err", err)
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			handleConn(ctx, conn, h)
		}()
	}
}

func handleConn(ctx context.Context, conn net.Conn, h Handler) {
	defer conn.Close()

	// The request is one line; a chat continues on the same reader.
	r := bufio.NewReader(conn)
	line, err := r.ReadBytes('\n')
	if err != nil && !(errors.Is(err, io.EOF) && len(line) > 0) {
		log.Warn("Failed to read control message", "err", err)
		return
	}

	var msg ControlMessage
	if err := json.Unmarshal(line, &msg); err != nil {
		log.Warn("Malformed control message", "err", err)
		_ = json.NewEncoder(conn).Encode(Failure(fmt.Errorf("malformed message: %w", err)))
		return
	}

	log.Debug("Control message", "cmd", msg.Cmd)

	if msg.Cmd == CmdChat {
		if err := h.Chat(ctx, r, conn); err != nil && !errors.Is(err, context.Canceled) {
			log.Warn("Chat ended with error", "err", err)
		}
		return
	}

	if err := json.NewEncoder(conn).Encode(h.Handle(ctx, msg)); err != nil {
		log.Warn("Failed to write response", "cmd", msg.Cmd, "err", err)
	}
}

// Send issues a one-shot command and waits for the response.
func Send(ctx context.Context, path string, msg ControlMessage) (Response, error) {
	conn, err := dial(ctx, path)
	if err != nil {
		return Response{}, err
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if err := json.NewEncoder(conn).Encode(msg); err != nil {
		return Response{}, err
	}

	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return Response{}, fmt.Errorf("read response: %w", err)
	}
	return resp, nil
}

// Chat opens a line dialog: lines from in go to the daemon and its answers
// are copied to out until the daemon ends the conversation.
func Chat(ctx context.Context, path string, in io.Reader, out io.Writer) error {
	conn, err := dial(ctx, path)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := json.NewEncoder(conn).Encode(ControlMessage{Cmd: CmdChat}); err != nil {
		return err
	}

	go func() {
		_, _ = io.Copy(conn, in)
		if uc, ok := conn.(*net.UnixConn); ok {
			_ = uc.CloseWrite()
		}
	}()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	_, err = io.Copy(out, conn)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func dial(ctx context.Context, path string) (net.Conn, error) {
	if path == "" {
		path = DefaultSocketPath
	}
	var d net.Dialer
	return d.DialContext(ctx, "unix", path)
}
