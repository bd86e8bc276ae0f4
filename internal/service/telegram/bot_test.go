package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBotServer(t *testing.T, updates []map[string]any) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var lastOffset atomic.Int64
	var served atomic.Bool
	mux := http.NewServeMux()
	mux.HandleFunc("/botTOKEN/getMe", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": map[string]any{"id": 1, "username": "pilot_bot"}})
	})
	mux.HandleFunc("/botTOKEN/getUpdates", func(w http.ResponseWriter, r *http.Request) {
		if off := r.URL.Query().Get("offset"); off != "" {
			var n int64
			_ = json.Unmarshal([]byte(off), &n)
			lastOffset.Store(n)
		}
		result := []map[string]any{}
		if served.CompareAndSwap(false, true) {
			result = updates
		} else {
			time.Sleep(20 * time.Millisecond)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": result})
	})
	mux.HandleFunc("/botBAD/getMe", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error_code": 401, "description": "Unauthorized"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &lastOffset
}

func TestBot_ReadFiltersGroup(t *testing.T) {
	updates := []map[string]any{
		{"update_id": 10, "channel_post": map[string]any{
			"message_id": 501, "date": 1749589200, "text": "✅ WIN EUR/USD",
			"chat": map[string]any{"id": -100123, "title": "Sinais VIP", "username": "sinaisvip"},
		}},
		{"update_id": 11, "message": map[string]any{
			"message_id": 9, "date": 1749589260, "text": "hello",
			"chat": map[string]any{"id": 42, "title": "Other"},
		}},
		{"update_id": 12, "channel_post": map[string]any{
			"message_id": 502, "date": 1749589320,
			"chat": map[string]any{"id": -100123, "username": "sinaisvip"},
		}},
	}
	srv, offset := newBotServer(t, updates)

	bot, err := NewBot(nil, WithToken("TOKEN"), WithAPIURL(srv.URL), WithGroup("@SinaisVIP"), WithPolling(0, time.Millisecond))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, bot.Connect(ctx))
	assert.True(t, bot.IsConnected())

	msgs, _ := bot.Read(ctx)
	select {
	case m := <-msgs:
		require.NotNil(t, m)
		assert.Equal(t, int64(501), m.ID)
		assert.Equal(t, int64(-100123), m.ChatID)
		assert.Equal(t, time.Unix(1749589200, 0).UTC(), m.Date)
	case <-time.After(2 * time.Second):
		t.Fatal("no message")
	}

	require.Eventually(t, func() bool { return offset.Load() == 13 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, bot.Close())
	assert.False(t, bot.IsConnected())
}

func TestBot_ConnectRejectsBadToken(t *testing.T) {
	srv, _ := newBotServer(t, nil)
	bot, err := NewBot(nil, WithToken("BAD"), WithAPIURL(srv.URL))
	require.NoError(t, err)
	err = bot.Connect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Unauthorized")
}

func TestBot_DecodesWithoutJSONContentType(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		wantErr     string
	}{
		{"plain text ok", "text/plain; charset=utf-8", `{"ok":true,"result":{"message_id":1}}`, ""},
		{"no header ok", "", `{"ok":true,"result":{"message_id":1}}`, ""},
		{"plain text error", "text/plain", `{"ok":false,"error_code":400,"description":"chat not found"}`, "chat not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.contentType != "" {
					w.Header().Set("Content-Type", tt.contentType)
				}
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			bot, err := NewBot(nil, WithToken("TOKEN"), WithAPIURL(srv.URL))
			require.NoError(t, err)
			err = bot.SendMessage(context.Background(), "-100123", "hi")
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewBot_RequiresToken(t *testing.T) {
	_, err := NewBot(nil)
	assert.Error(t, err)
}

func TestBot_MatchesGroup(t *testing.T) {
	chat := tgChat{ID: -100123, Title: "Sinais VIP", Username: "sinaisvip"}
	tests := []struct {
		group string
		want  bool
	}{
		{"", true},
		{"@sinaisvip", true},
		{"@other", false},
		{"-100123", true},
		{"sinais vip", true},
		{"Nope", false},
	}
	for _, tt := range tests {
		t.Run(tt.group, func(t *testing.T) {
			b := &Bot{cfg: BotConfig{Group: tt.group}}
			assert.Equal(t, tt.want, b.matchesGroup(chat))
		})
	}
}
