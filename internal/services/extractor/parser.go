package extractor

import (
	"fmt"
	"time"

	"SignalPilot/internal/domain/models"
)

// ParserConfig holds parser settings.
type ParserConfig struct {
	Location  *time.Location
	StartHour int
	EndHour   int
}

// ParserOption is a functional option for the parser.
type ParserOption func(*ParserConfig)

// WithLocation sets the trading timezone.
func WithLocation(loc *time.Location) ParserOption {
	return func(c *ParserConfig) {
		if loc != nil {
			c.Location = loc
		}
	}
}

// WithCollectionHours sets the inclusive hour window of accepted messages.
func WithCollectionHours(start, end int) ParserOption {
	return func(c *ParserConfig) {
		c.StartHour = start
		c.EndHour = end
	}
}

// Parser converts raw chat messages into validated signals.
type Parser struct {
	cfg ParserConfig
}

// NewParser creates a parser. Defaults to UTC and the whole day.
func NewParser(opts ...ParserOption) *Parser {
	cfg := ParserConfig{Location: time.UTC, StartHour: 0, EndHour: 23}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Parser{cfg: cfg}
}

// Location returns the trading timezone.
func (p *Parser) Location() *time.Location { return p.cfg.Location }

// InWindow reports whether t falls into the collection hours.
func (p *Parser) InWindow(t time.Time) bool {
	h := t.In(p.cfg.Location).Hour()
	return h >= p.cfg.StartHour && h <= p.cfg.EndHour
}

// Parse returns the signal in msg, or nil when the message carries none.
// Messages outside the collection window yield ErrOutsideTradingHours.
func (p *Parser) Parse(msg *models.RawMessage) (*models.Signal, error) {
	if msg == nil {
		return nil, nil
	}
	m, ok := Extract(msg.Text)
	if !ok {
		return nil, nil
	}
	ts := msg.Date.In(p.cfg.Location).Truncate(time.Minute)
	if !p.InWindow(ts) {
		return nil, fmt.Errorf("%w: %s", models.ErrOutsideTradingHours, ts.Format("15:04"))
	}
	s := &models.Signal{Timestamp: ts, Asset: m.Asset, Result: m.Result, Attempt: m.Attempt}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// ParseAll parses a batch. Messages without a signal or outside the window are
// dropped silently; invalid ones are reported in the returned error.
func (p *Parser) ParseAll(msgs []*models.RawMessage) ([]models.Signal, error) {
	out := make([]models.Signal, 0, len(msgs))
	errs := &models.RecordErrors{}
	for i, msg := range msgs {
		s, err := p.Parse(msg)
		switch {
		case err == nil && s != nil:
			out = append(out, *s)
		case err != nil && !isOutside(err):
			errs.Add(i, models.Signal{}, err)
		}
	}
	return out, errs.OrNil()
}
