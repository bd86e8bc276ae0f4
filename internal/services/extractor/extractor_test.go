package extractor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SignalPilot/internal/domain/models"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		want  Match
		found bool
	}{
		{"first attempt", "✅ WIN em `ADA/USDT` ✅", Match{models.ResultWin, 1, "ADA/USDT"}, true},
		{"g1", "✅ WIN (G1) em `BTC/USDT` ✅", Match{models.ResultWin, 2, "BTC/USDT"}, true},
		{"g2", "✅ WIN (G2) em `ETH/USDT` ✅", Match{models.ResultWin, 3, "ETH/USDT"}, true},
		{"stop", "❎ STOP em `DOT/USDT` ❎", Match{models.ResultLoss, 0, "DOT/USDT"}, true},
		{"extra spaces", "✅  WIN  em  `SOL/USDT`  ✅", Match{models.ResultWin, 1, "SOL/USDT"}, true},
		{"extra spaces g1", "✅  WIN  (G1)  em  `MATIC/USDT`  ✅", Match{models.ResultWin, 2, "MATIC/USDT"}, true},
		{"bold form", "✅ **WIN em XRP/USDT** ✅", Match{models.ResultWin, 1, "XRP/USDT"}, true},
		{"bold stop", "❎ **STOP em LTC/USDT** ❎", Match{models.ResultLoss, 0, "LTC/USDT"}, true},
		{"lower case asset", "✅ win em `ada/usdt` ✅", Match{models.ResultWin, 1, "ADA/USDT"}, true},
		{"inside longer text", "Resultado:\n✅ WIN (G2) em `BNB/USDT` ✅\nboa!", Match{models.ResultWin, 3, "BNB/USDT"}, true},
		{"other message", "Qualquer outra mensagem", Match{}, false},
		{"empty", "", Match{}, false},
		{"missing marks", "WIN em `ADA/USDT`", Match{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Extract(tt.text)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPatternName(t *testing.T) {
	assert.Equal(t, "win_2nd", PatternName("✅ WIN (G1) em `BTC/USDT` ✅"))
	assert.Equal(t, "loss", PatternName("❎ STOP em `DOT/USDT` ❎"))
	assert.Equal(t, "", PatternName("hello"))
}

func TestParser_Parse(t *testing.T) {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)
	p := NewParser(WithLocation(loc), WithCollectionHours(16, 23))

	// 21:05 UTC is 18:05 in Sao Paulo (UTC-3).
	msg := &models.RawMessage{ID: 1, Text: "✅ WIN (G1) em `BTC/USDT` ✅", Date: time.Date(2025, 9, 1, 21, 5, 42, 0, time.UTC)}
	s, err := p.Parse(msg)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, 18, s.Timestamp.Hour())
	assert.Equal(t, 0, s.Timestamp.Second())
	assert.Equal(t, "BTC/USDT", s.Asset)
	assert.Equal(t, 2, s.Attempt)

	s, err = p.Parse(&models.RawMessage{Text: "bom dia", Date: msg.Date})
	assert.NoError(t, err)
	assert.Nil(t, s)

	// 12:00 UTC is 09:00 local, outside the window.
	_, err = p.Parse(&models.RawMessage{Text: "❎ STOP em `DOT/USDT` ❎", Date: time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)})
	assert.ErrorIs(t, err, models.ErrOutsideTradingHours)
}

func TestParser_ParseAll(t *testing.T) {
	p := NewParser()
	base := time.Date(2025, 9, 1, 17, 0, 0, 0, time.UTC)
	msgs := []*models.RawMessage{
		{Text: "✅ WIN em `ADA/USDT` ✅", Date: base},
		{Text: "noise", Date: base.Add(time.Minute)},
		{Text: "❎ STOP em `DOT/USDT` ❎", Date: base.Add(2 * time.Minute)},
		nil,
	}
	out, err := p.ParseAll(msgs)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, models.ResultLoss, out[1].Result)
	assert.Equal(t, 0, out[1].Attempt)
}

func TestStatistics(t *testing.T) {
	base := time.Date(2025, 9, 1, 17, 0, 0, 0, time.UTC)
	st := Statistics([]models.Signal{
		{Timestamp: base, Asset: "ADA/USDT", Result: models.ResultWin, Attempt: 1},
		{Timestamp: base.Add(time.Minute), Asset: "BTC/USDT", Result: models.ResultWin, Attempt: 2},
		{Timestamp: base.Add(2 * time.Minute), Asset: "ADA/USDT", Result: models.ResultLoss},
		{Timestamp: base.Add(3 * time.Minute), Asset: "ETH/USDT", Result: models.ResultWin, Attempt: 1},
	})
	assert.Equal(t, 4, st.Total)
	assert.Equal(t, 3, st.Wins)
	assert.Equal(t, 1, st.Losses)
	assert.InDelta(t, 75.0, st.WinRate, 1e-9)
	assert.Equal(t, map[int]int{1: 2, 2: 1}, st.Attempts)
	assert.Equal(t, 3, st.UniqueAssets)
	assert.Equal(t, base, st.First)
	assert.Equal(t, base.Add(3*time.Minute), st.Last)

	empty := Statistics(nil)
	assert.Zero(t, empty.Total)
}
