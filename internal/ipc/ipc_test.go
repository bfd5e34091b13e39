package ipc

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agenda/internal/store"
)

type echoHandler struct{}

func (echoHandler) Handle(_ context.Context, msg ControlMessage) Response {
	switch msg.Cmd {
	case CmdTasks:
		return Response{Tasks: []store.Task{{Date: msg.Date, Index: 1, Text: "comprar pan"}}}
	default:
		return Failure(fmt.Errorf("unknown command %q", msg.Cmd))
	}
}

// Chat answers every line in upper case until "fin".
func (echoHandler) Chat(_ context.Context, r io.Reader, w io.Writer) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if sc.Text() == "fin" {
			return nil
		}
		fmt.Fprintln(w, strings.ToUpper(sc.Text()))
	}
	return sc.Err()
}

func serve(t *testing.T) (string, context.CancelFunc) {
	t.Helper()
	dir, err := os.MkdirTemp("", "ipc")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	srv, err := Listen(filepath.Join(dir, "agenda.sock"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, echoHandler{}) }()
	t.Cleanup(func() {
		cancel()
		assert.ErrorIs(t, <-done, context.Canceled)
	})
	return srv.Path(), cancel
}

func TestSend(t *testing.T) {
	path, _ := serve(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	resp, err := Send(ctx, path, ControlMessage{Cmd: CmdTasks, Date: "27122025"})
	require.NoError(t, err)
	require.NoError(t, resp.Err())
	assert.Equal(t, []store.Task{{Date: "27122025", Index: 1, Text: "comprar pan"}}, resp.Tasks)

	resp, err = Send(ctx, path, ControlMessage{Cmd: "dance"})
	require.NoError(t, err)
	assert.EqualError(t, resp.Err(), `unknown command "dance"`)
}

func TestChat(t *testing.T) {
	path, _ := serve(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var out bytes.Buffer
	err := Chat(ctx, path, strings.NewReader("hola\nqué tal\nfin\nignorado\n"), &out)
	require.NoError(t, err)
	assert.Equal(t, "HOLA\nQUÉ TAL\n", out.String())
}

func TestMalformedMessage(t *testing.T) {
	path, _ := serve(t)

	conn, err := net.Dial("unix", path)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("not json\n"))
	require.NoError(t, err)

	line, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, line, "malformed message")
}

func TestSendWithoutDaemon(t *testing.T) {
	_, err := Send(context.Background(), filepath.Join(t.TempDir(), "none.sock"), ControlMessage{Cmd: CmdToday})
	assert.Error(t, err)
}
