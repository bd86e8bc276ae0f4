// Package strategy holds the adaptive strategy engine: operation grouping,
// market condition analysis, the decision policy and the day simulator.
package strategy

import "time"

// Config holds the tunable thresholds of the engine.
type Config struct {
	Location   *time.Location
	LossWindow time.Duration

	MinOperations     int
	G2PauseRate       float64
	G1MartingaleRate  float64
	FirstInfinityRate float64
	ChangeThreshold   float64

	TradingStartHour    int
	TradingEndHour      int
	DailyTarget         float64
	InfinityStop        float64
	MartingaleMaxLosses int
	SessionProfit       float64
	MartingaleLoss      float64
}

// Option is a functional option for Config.
type Option func(*Config)

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		Location:            time.UTC,
		LossWindow:          10 * time.Minute,
		MinOperations:       10,
		G2PauseRate:         30,
		G1MartingaleRate:    65,
		FirstInfinityRate:   60,
		ChangeThreshold:     70,
		TradingStartHour:    17,
		TradingEndHour:      23,
		DailyTarget:         12,
		InfinityStop:        -49,
		MartingaleMaxLosses: 3,
		SessionProfit:       12,
		MartingaleLoss:      -12,
	}
}

// NewConfig applies opts over DefaultConfig.
func NewConfig(opts ...Option) Config {
	c := DefaultConfig()
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithLocation sets the trading timezone.
func WithLocation(loc *time.Location) Option {
	return func(c *Config) {
		if loc != nil {
			c.Location = loc
		}
	}
}

// WithLossWindow sets the backward window used to reconstruct loss attempts.
func WithLossWindow(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.LossWindow = d
		}
	}
}

// WithPolicyThresholds overrides the decision cascade thresholds.
func WithPolicyThresholds(minOps int, g2Pause, g1Martingale, firstInfinity float64) Option {
	return func(c *Config) {
		if minOps > 0 {
			c.MinOperations = minOps
		}
		if g2Pause > 0 {
			c.G2PauseRate = g2Pause
		}
		if g1Martingale > 0 {
			c.G1MartingaleRate = g1Martingale
		}
		if firstInfinity > 0 {
			c.FirstInfinityRate = firstInfinity
		}
	}
}

// WithChangeThreshold sets the confidence needed to switch strategy.
func WithChangeThreshold(v float64) Option {
	return func(c *Config) {
		if v > 0 {
			c.ChangeThreshold = v
		}
	}
}

// WithTradingHours sets the inclusive simulated trading hours.
func WithTradingHours(start, end int) Option {
	return func(c *Config) {
		if start >= 1 && end <= 23 && start <= end {
			c.TradingStartHour = start
			c.TradingEndHour = end
		}
	}
}

// WithDayLimits sets the daily target, the Infinity stop and the Martingale loss limit.
func WithDayLimits(target, infinityStop float64, martingaleMaxLosses int) Option {
	return func(c *Config) {
		if target > 0 {
			c.DailyTarget = target
		}
		if infinityStop < 0 {
			c.InfinityStop = infinityStop
		}
		if martingaleMaxLosses > 0 {
			c.MartingaleMaxLosses = martingaleMaxLosses
		}
	}
}
