package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"SignalPilot/internal/domain/models"
	drepo "SignalPilot/internal/domain/repository"
	"SignalPilot/internal/services/strategy"
)

// Event is the payload sent for a strategy change.
type Event struct {
	Type       string                  `json:"type"`
	Previous   *models.StrategyType    `json:"previous"`
	Current    models.StrategyType     `json:"current"`
	Status     string                  `json:"status"`
	Confidence float64                 `json:"confidence"`
	Conditions models.MarketConditions `json:"conditions"`
	Text       string                  `json:"text"`
}

// NewEvent builds the change event for c.
func NewEvent(prev *models.StrategyType, c models.MarketConditions) Event {
	return Event{
		Type:       "strategy_change",
		Previous:   prev,
		Current:    c.RecommendedStrategy,
		Status:     strategy.Status(c.RecommendedStrategy),
		Confidence: c.ConfidenceLevel,
		Conditions: c,
		Text:       Format(prev, c),
	}
}

// Format renders a change as a short chat message.
func Format(prev *models.StrategyType, c models.MarketConditions) string {
	var b strings.Builder
	b.WriteString("🔄 Mudança de estratégia\n")
	if prev != nil {
		fmt.Fprintf(&b, "%s → %s\n", prev.Label(), c.RecommendedStrategy.Label())
	} else {
		fmt.Fprintf(&b, "Estratégia inicial: %s\n", c.RecommendedStrategy.Label())
	}
	fmt.Fprintf(&b, "Confiança: %.1f%%\n", c.ConfidenceLevel)
	fmt.Fprintf(&b, "Operações: %d | 1ª: %.1f%% | G1: %.1f%% | G2+ stop: %.1f%%",
		c.TotalOperations, c.FirstAttemptSuccessRate, c.G1RecoveryRate, c.G2PlusStopRate)
	if m, ok := models.StrategyCatalog[c.RecommendedStrategy]; ok {
		fmt.Fprintf(&b, "\nWin rate esperado: %.1f%% | Risco: $%.2f", m.WinRate, m.RiskPerSession)
	}
	return b.String()
}

// Multi sends to every notifier and joins their errors.
type Multi []drepo.Notifier

var _ drepo.Notifier = Multi(nil)

func (m Multi) NotifyStrategyChange(ctx context.Context, prev *models.StrategyType, c models.MarketConditions) error {
	var errs []error
	for _, n := range m {
		if err := n.NotifyStrategyChange(ctx, prev, c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Sender posts a text message to a chat.
type Sender interface {
	SendMessage(ctx context.Context, chatID string, text string) error
}

// Chat posts strategy changes to a chat through a bot.
type Chat struct {
	sender Sender
	chatID string
}

var _ drepo.Notifier = (*Chat)(nil)

func NewChat(sender Sender, chatID string) *Chat {
	return &Chat{sender: sender, chatID: chatID}
}

func (c *Chat) NotifyStrategyChange(ctx context.Context, prev *models.StrategyType, mc models.MarketConditions) error {
	if err := c.sender.SendMessage(ctx, c.chatID, Format(prev, mc)); err != nil {
		return fmt.Errorf("chat notify: %w", err)
	}
	return nil
}
