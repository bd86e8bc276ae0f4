package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"

	"SignalPilot/internal/domain/models"
	drepo "SignalPilot/internal/domain/repository"
	applogger "SignalPilot/pkg/logger"
)

var ErrNotConnected = errors.New("telegram: not connected")

// BotConfig configures the Bot API source.
type BotConfig struct {
	Token          string
	APIURL         string
	Group          string
	PollTimeout    time.Duration
	ReconnectDelay time.Duration
	BufferSize     int
}

// BotOption mutates BotConfig.
type BotOption func(*BotConfig)

func WithToken(token string) BotOption {
	return func(c *BotConfig) { c.Token = token }
}

func WithAPIURL(u string) BotOption {
	return func(c *BotConfig) {
		if u != "" {
			c.APIURL = strings.TrimRight(u, "/")
		}
	}
}

// WithGroup restricts messages to one chat: "@username", numeric chat ID or title.
func WithGroup(group string) BotOption {
	return func(c *BotConfig) { c.Group = strings.TrimSpace(group) }
}

func WithPolling(timeout, reconnectDelay time.Duration) BotOption {
	return func(c *BotConfig) {
		if timeout >= 0 {
			c.PollTimeout = timeout
		}
		if reconnectDelay > 0 {
			c.ReconnectDelay = reconnectDelay
		}
	}
}

type apiResponse[T any] struct {
	OK          bool   `json:"ok"`
	Result      T      `json:"result"`
	Description string `json:"description"`
	ErrorCode   int    `json:"error_code"`
}

type tgChat struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	Username string `json:"username"`
}

type tgMessage struct {
	MessageID int64  `json:"message_id"`
	Date      int64  `json:"date"`
	Chat      tgChat `json:"chat"`
	Text      string `json:"text"`
	Caption   string `json:"caption"`
}

type tgUpdate struct {
	UpdateID    int64      `json:"update_id"`
	Message     *tgMessage `json:"message"`
	ChannelPost *tgMessage `json:"channel_post"`
}

type tgUser struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	Username  string `json:"username"`
}

// Bot reads the signal group through Bot API long polling.
type Bot struct {
	cfg    BotConfig
	client *resty.Client
	l      *applogger.Logger

	mu        sync.Mutex
	offset    int64
	connected atomic.Bool
}

var _ drepo.MessageSource = (*Bot)(nil)

func NewBot(l *applogger.Logger, opts ...BotOption) (*Bot, error) {
	cfg := BotConfig{
		APIURL:         "https://api.telegram.org",
		PollTimeout:    30 * time.Second,
		ReconnectDelay: 5 * time.Second,
		BufferSize:     256,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram: bot token is required")
	}
	if l == nil {
		l = applogger.Nop()
	}
	client := resty.New().
		SetBaseURL(cfg.APIURL+"/bot"+cfg.Token).
		SetTimeout(cfg.PollTimeout+10*time.Second).
		SetHeader("User-Agent", "SignalPilot/1.0")
	return &Bot{cfg: cfg, client: client, l: l}, nil
}

// Connect checks the token with getMe.
func (b *Bot) Connect(ctx context.Context) error {
	var res apiResponse[tgUser]
	if err := b.call(ctx, "getMe", nil, &res); err != nil {
		return fmt.Errorf("telegram connect: %w", err)
	}
	b.connected.Store(true)
	b.l.Info("telegram bot connected",
		applogger.String("bot", res.Result.Username),
		applogger.String("group", b.cfg.Group),
	)
	return nil
}

// Read long-polls getUpdates until ctx is done or a request fails.
func (b *Bot) Read(ctx context.Context) (<-chan *models.RawMessage, <-chan error) {
	out := make(chan *models.RawMessage, b.cfg.BufferSize)
	errs := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errs)
		for ctx.Err() == nil {
			if !b.connected.Load() {
				errs <- ErrNotConnected
				return
			}
			updates, err := b.poll(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				errs <- err
				return
			}
			for _, u := range updates {
				msg := b.convert(u)
				if msg == nil {
					continue
				}
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, errs
}

func (b *Bot) poll(ctx context.Context) ([]tgUpdate, error) {
	b.mu.Lock()
	offset := b.offset
	b.mu.Unlock()

	params := map[string]string{
		"timeout":         strconv.Itoa(int(b.cfg.PollTimeout.Seconds())),
		"allowed_updates": `["message","channel_post"]`,
	}
	if offset > 0 {
		params["offset"] = strconv.FormatInt(offset, 10)
	}
	var res apiResponse[[]tgUpdate]
	if err := b.call(ctx, "getUpdates", params, &res); err != nil {
		return nil, fmt.Errorf("telegram getUpdates: %w", err)
	}

	b.mu.Lock()
	for _, u := range res.Result {
		if u.UpdateID >= b.offset {
			b.offset = u.UpdateID + 1
		}
	}
	b.mu.Unlock()
	return res.Result, nil
}

func (b *Bot) convert(u tgUpdate) *models.RawMessage {
	m := u.Message
	if m == nil {
		m = u.ChannelPost
	}
	if m == nil || !b.matchesGroup(m.Chat) {
		return nil
	}
	text := m.Text
	if text == "" {
		text = m.Caption
	}
	if text == "" {
		return nil
	}
	return &models.RawMessage{
		ID:     m.MessageID,
		ChatID: m.Chat.ID,
		Text:   text,
		Date:   time.Unix(m.Date, 0).UTC(),
	}
}

func (b *Bot) matchesGroup(c tgChat) bool {
	g := b.cfg.Group
	switch {
	case g == "":
		return true
	case strings.HasPrefix(g, "@"):
		return strings.EqualFold(strings.TrimPrefix(g, "@"), c.Username)
	case g == strconv.FormatInt(c.ID, 10):
		return true
	default:
		return strings.EqualFold(g, c.Title) || strings.EqualFold(g, c.Username)
	}
}

// SendMessage posts text to chatID.
func (b *Bot) SendMessage(ctx context.Context, chatID string, text string) error {
	var res apiResponse[tgMessage]
	return b.call(ctx, "sendMessage", map[string]string{"chat_id": chatID, "text": text}, &res)
}

// Reconnect waits ReconnectDelay and checks the token again. The update offset is kept.
func (b *Bot) Reconnect(ctx context.Context) error {
	b.connected.Store(false)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(b.cfg.ReconnectDelay):
	}
	return b.Connect(ctx)
}

func (b *Bot) Close() error {
	b.connected.Store(false)
	return nil
}

func (b *Bot) IsConnected() bool { return b.connected.Load() }

func (b *Bot) call(ctx context.Context, method string, params map[string]string, dest interface{ ok() (bool, int, string) }) error {
	resp, err := b.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		ForceContentType("application/json").
		SetResult(dest).
		SetError(dest).
		Get("/" + method)
	if err != nil {
		return err
	}
	ok, code, desc := dest.ok()
	if !ok {
		if code == 0 {
			code = resp.StatusCode()
		}
		return fmt.Errorf("%s failed (%d): %s", method, code, desc)
	}
	return nil
}

func (r *apiResponse[T]) ok() (bool, int, string) { return r.OK, r.ErrorCode, r.Description }
