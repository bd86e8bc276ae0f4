package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"SignalPilot/internal/domain/models"
	drepo "SignalPilot/internal/domain/repository"
	applogger "SignalPilot/pkg/logger"
)

// Relay streams group messages from a websocket relay that forwards a user
// session's updates. Frames are JSON: {"type":"message","id","chat_id","text","date"}.
type Relay struct {
	url            string
	group          string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	l              *applogger.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
}

var _ drepo.MessageSource = (*Relay)(nil)

type relayFrame struct {
	Type   string `json:"type"`
	ID     int64  `json:"id"`
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
	Date   int64  `json:"date"`
	Error  string `json:"error,omitempty"`
}

// NewRelay creates a relay source.
func NewRelay(l *applogger.Logger, url, group string, reconnectDelay, pingInterval time.Duration) *Relay {
	if l == nil {
		l = applogger.Nop()
	}
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	return &Relay{url: url, group: group, reconnectDelay: reconnectDelay, pingInterval: pingInterval, l: l}
}

// Connect dials the relay and subscribes to the group.
func (r *Relay) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, r.url, nil)
	if err != nil {
		return fmt.Errorf("relay connect: %w", err)
	}
	if err := conn.WriteJSON(map[string]string{"type": "subscribe", "group": r.group}); err != nil {
		_ = conn.Close()
		return fmt.Errorf("relay subscribe %s: %w", r.group, err)
	}
	r.mu.Lock()
	r.conn = conn
	r.connected = true
	r.mu.Unlock()
	r.l.Info("relay connected", applogger.String("url", r.url), applogger.String("group", r.group))
	return nil
}

// Read streams messages and errors.
func (r *Relay) Read(ctx context.Context) (<-chan *models.RawMessage, <-chan error) {
	msgs := make(chan *models.RawMessage, 256)
	errs := make(chan error, 1)

	r.mu.Lock()
	conn := r.conn
	r.mu.Unlock()

	// ping loop
	go func() {
		ticker := time.NewTicker(r.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.mu.Lock()
				if r.conn == conn && conn != nil {
					_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
				}
				r.mu.Unlock()
			}
		}
	}()

	// read loop
	go func() {
		defer close(msgs)
		defer close(errs)
		if conn == nil {
			errs <- fmt.Errorf("relay conn nil")
			return
		}
		// unblock ReadMessage on shutdown
		stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
		defer stop()
		for {
			_, b, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					errs <- fmt.Errorf("relay read: %w", err)
				}
				return
			}
			var f relayFrame
			if err := json.Unmarshal(b, &f); err != nil {
				continue
			}
			switch f.Type {
			case "message":
				if f.Text == "" {
					continue
				}
				m := &models.RawMessage{ID: f.ID, ChatID: f.ChatID, Text: f.Text, Date: time.Unix(f.Date, 0).UTC()}
				select {
				case msgs <- m:
				case <-ctx.Done():
					return
				}
			case "error":
				r.l.Warn("relay error frame", applogger.String("error", f.Error))
			}
		}
	}()

	return msgs, errs
}

// Reconnect closes and reconnects.
func (r *Relay) Reconnect(ctx context.Context) error {
	_ = r.Close()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(r.reconnectDelay):
	}
	return r.Connect(ctx)
}

// Close closes the WS connection.
func (r *Relay) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connected = false
	if r.conn != nil {
		err := r.conn.Close()
		r.conn = nil
		return err
	}
	return nil
}

// IsConnected indicates status.
func (r *Relay) IsConnected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connected
}
