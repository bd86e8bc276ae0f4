package notify

import (
	"context"
	"fmt"
	"time"

	"SignalPilot/internal/domain/models"
	drepo "SignalPilot/internal/domain/repository"
	xhttp "SignalPilot/pkg/http"
	applogger "SignalPilot/pkg/logger"
)

// Webhook posts change events as JSON. Consecutive failures open a circuit
// breaker so a dead endpoint does not slow the live trader.
type Webhook struct {
	url    string
	client *xhttp.Client
	l      *applogger.Logger
}

var _ drepo.Notifier = (*Webhook)(nil)

func NewWebhook(l *applogger.Logger, url string, timeout time.Duration, failures uint32, cooldown time.Duration) *Webhook {
	if l == nil {
		l = applogger.Nop()
	}
	return &Webhook{
		url: url,
		client: xhttp.NewClient(
			xhttp.WithTimeout(timeout),
			xhttp.WithCircuitBreaker("notify-webhook", failures, cooldown),
		),
		l: l,
	}
}

func (w *Webhook) NotifyStrategyChange(ctx context.Context, prev *models.StrategyType, c models.MarketConditions) error {
	ev := NewEvent(prev, c)
	err := w.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodPost,
		URL:     w.url,
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    ev,
	}, nil)
	if err != nil {
		w.l.Warn("webhook notify failed",
			applogger.String("breaker", w.client.BreakerState()),
			applogger.String("strategy", c.RecommendedStrategy.String()),
			applogger.Error(err),
		)
		return fmt.Errorf("webhook notify: %w", err)
	}
	return nil
}
