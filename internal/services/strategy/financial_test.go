package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"SignalPilot/internal/domain/models"
)

func TestFinancial(t *testing.T) {
	signals := []models.Signal{
		win(at(17, 15), "ETH/USDT", 3),
		win(at(17, 0), "ADA/USDT", 1),
		win(at(17, 5), "BTC/USDT", 2),
		loss(at(17, 10), "DOT/USDT"),
	}
	m := Financial(signals, DefaultInitialCapital)

	assert.Equal(t, 4, m.Trades)
	assert.InDelta(t, 12, m.TotalPnL, 1e-9)
	assert.InDelta(t, 552, m.FinalCapital, 1e-9)
	assert.InDelta(t, 2.2222222, m.ROI, 1e-6)
	assert.InDelta(t, -2.8985507, m.MaxDrawdown, 1e-6)
	assert.InDelta(t, 3.4982010, m.SharpeRatio, 1e-6)
	assert.Equal(t, 2, m.MaxWinStreak)
	assert.Equal(t, 1, m.MaxLossStreak)
	assert.InDelta(t, 3, m.AvgPnLPerSignal, 1e-9)
	assert.InDelta(t, 6, m.MedianPnL, 1e-9)
}

func TestFinancial_Empty(t *testing.T) {
	m := Financial(nil, DefaultInitialCapital)
	assert.Zero(t, m.Trades)
	assert.InDelta(t, DefaultInitialCapital, m.FinalCapital, 1e-9)
	assert.Zero(t, m.SharpeRatio)
}

func TestSignalPnL(t *testing.T) {
	assert.Equal(t, "4", SignalPnL(win(at(17, 0), "ADA/USDT", 1)).String())
	assert.Equal(t, "16", SignalPnL(win(at(17, 0), "ADA/USDT", 3)).String())
	assert.Equal(t, "-16", SignalPnL(loss(at(17, 0), "ADA/USDT")).String())
}
