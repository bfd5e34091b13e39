package bus

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agenda/internal/dialog"
	"agenda/internal/store"
)

type chanWriter chan Message

func (w chanWriter) Write(m Message) error {
	w <- m
	return nil
}

func agendaSession(t *testing.T) SessionFunc {
	t.Helper()
	now := func() time.Time { return time.Date(2025, time.December, 20, 10, 0, 0, 0, time.Local) }
	st, err := store.Open(store.Options{Dir: t.TempDir(), Now: now})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	return func(ctx context.Context, sp dialog.Speaker, ls dialog.Listener) error {
		engine := dialog.NewEngine(sp, ls, st, st, dialog.Options{Now: now})
		return dialog.NewRouter(engine, nil).Serve(ctx)
	}
}

func next(t *testing.T, out chanWriter) Message {
	t.Helper()
	select {
	case m := <-out:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("no message from shard")
	}
	return Message{}
}

func TestShardSessionsPerSender(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chanWriter, 16)
	shard := NewShard("agenda", out, agendaSession(t), time.Minute)

	shard.Dispatch(ctx, Message{From: "ana", To: "agenda", Kind: KindText, Content: "ayuda"})
	m := next(t, out)
	assert.Equal(t, Message{From: "agenda", To: "ana", Kind: KindSay, Content: m.Content}, m)
	assert.Contains(t, m.Content, "Puedes decir")

	shard.Dispatch(ctx, Message{From: "luis", Kind: KindText, Content: "salir"})
	m = next(t, out)
	assert.Equal(t, "luis", m.To)
	assert.Equal(t, "Hasta luego.", m.Content)

	shard.Dispatch(ctx, Message{From: "eva", To: "otro", Kind: KindText, Content: "ayuda"})
	shard.Dispatch(ctx, Message{From: "eva", Kind: KindSay, Content: "ayuda"})

	require.Eventually(t, func() bool { return shard.Sessions() == 1 }, 2*time.Second, 10*time.Millisecond)

	shard.Dispatch(ctx, Message{From: "ana", Kind: KindText, Content: "salir"})
	assert.Equal(t, "Hasta luego.", next(t, out).Content)
	shard.Wait()
	assert.Zero(t, shard.Sessions())
}

func TestShardIdleSessionEnds(t *testing.T) {
	out := make(chanWriter, 16)
	shard := NewShard("agenda", out, agendaSession(t), 20*time.Millisecond)

	shard.Dispatch(context.Background(), Message{From: "ana", Kind: KindText, Content: "ayuda"})
	next(t, out)
	shard.Wait()
	assert.Zero(t, shard.Sessions())
}

func TestShardPassesLateMessagesToNextSession(t *testing.T) {
	got := make(chan string, 4)
	proceed := make(chan struct{})
	run := func(ctx context.Context, _ dialog.Speaker, ls dialog.Listener) error {
		if text, ok := ls.Listen(ctx); ok {
			got <- text
		}
		<-proceed
		return nil
	}

	shard := NewShard("agenda", make(chanWriter, 4), run, time.Minute)
	ctx := context.Background()

	shard.Dispatch(ctx, Message{From: "ana", Kind: KindText, Content: "uno"})
	assert.Equal(t, "uno", <-got)

	// The first session is done listening but has not returned yet.
	shard.Dispatch(ctx, Message{From: "ana", Kind: KindText, Content: "dos"})
	close(proceed)

	select {
	case text := <-got:
		assert.Equal(t, "dos", text)
	case <-time.After(2 * time.Second):
		t.Fatal("message sent to a finishing session was lost")
	}
	shard.Wait()
	assert.Zero(t, shard.Sessions())
}

type script struct {
	reads []func() (Message, error)
}

func (s *script) Read() (Message, error) {
	if len(s.reads) == 0 {
		return Message{}, io.EOF
	}
	r := s.reads[0]
	s.reads = s.reads[1:]
	return r()
}

func TestShardSkipsUndecodableFrames(t *testing.T) {
	in := &script{reads: []func() (Message, error){
		func() (Message, error) { return Message{}, fmt.Errorf("%w: unexpected end of JSON input", ErrDecode) },
		func() (Message, error) { return Message{From: "ana", Kind: KindText, Content: "ayuda"}, nil },
	}}
	out := make(chanWriter, 4)
	shard := NewShard("agenda", out, agendaSession(t), 20*time.Millisecond)

	err := shard.Serve(context.Background(), in)
	assert.ErrorIs(t, err, io.EOF)
	assert.Contains(t, next(t, out).Content, "Puedes decir")
	shard.Wait()
}

func TestBusReadRejectsGarbage(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte("not json"))
		_ = conn.WriteJSON(Message{From: "ana", Kind: KindText, Content: "hola"})
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	b, err := Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), time.Second)
	require.NoError(t, err)
	defer b.Close()

	_, err = b.Read()
	assert.ErrorIs(t, err, ErrDecode)
	m, err := b.Read()
	require.NoError(t, err)
	assert.Equal(t, "hola", m.Content)
}

func TestBusRoundTrip(t *testing.T) {
	replies := make(chan Message, 4)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_ = conn.WriteJSON(Message{From: "ana", Kind: KindText, Content: "ayuda"})
		var m Message
		if err := conn.ReadJSON(&m); err == nil {
			replies <- m
		}
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	b, err := Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), time.Second)
	require.NoError(t, err)
	defer b.Close()

	shard := NewShard("agenda", b, agendaSession(t), time.Minute)
	err = shard.Serve(ctx, b)
	assert.True(t, IsClosed(err), "got %v", err)

	m := <-replies
	assert.Equal(t, "ana", m.To)
	assert.Contains(t, m.Content, "Puedes decir")

	cancel()
	shard.Wait()
}
