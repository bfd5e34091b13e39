package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	log "log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// KindText carries what a user said or typed to the agenda.
	KindText = "text"
	// KindSay carries what the agenda answers.
	KindSay = "say"
)

// ErrDecode marks a frame that arrived intact but is not a Message.
var ErrDecode = errors.New("decode bus message")

type Message struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Kind    string `json:"kind"`
	Content string `json:"content"`
}

// Bus is one websocket connection to the message hub. Writes are serialised;
// reads must come from a single goroutine.
type Bus struct {
	url    string
	reconn time.Duration

	wmu  sync.Mutex
	conn *websocket.Conn
}

func Dial(ctx context.Context, url string, reconn time.Duration) (*Bus, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	log.Info("Connected to bus", "url", url)
	return &Bus{url: url, reconn: reconn, conn: conn}, nil
}

func (b *Bus) Read() (Message, error) {
	_, data, err := b.conn.ReadMessage()
	if err != nil {
		return Message{}, err
	}

	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	log.Debug("Read bus", "from", m.From, "kind", m.Kind)
	return m, nil
}

func (b *Bus) Write(m Message) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}

	b.wmu.Lock()
	defer b.wmu.Unlock()
	return b.conn.WriteMessage(websocket.TextMessage, data)
}

// Redial replaces a dropped connection, retrying every reconn until ctx is done.
func (b *Bus) Redial(ctx context.Context) error {
	_ = b.conn.Close()

	for {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, b.url, nil)
		if err == nil {
			b.wmu.Lock()
			b.conn = conn
			b.wmu.Unlock()
			log.Info("Reconnected to bus", "url", b.url)
			return nil
		}
		log.Warn("Failed to reconnect to bus", "url", b.url, "err", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.reconn):
		}
	}
}

func (b *Bus) Close() error {
	b.wmu.Lock()
	defer b.wmu.Unlock()
	_ = b.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return b.conn.Close()
}

func IsClosed(err error) bool {
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure)
}
