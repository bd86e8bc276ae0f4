package strategy

import (
	"time"

	"SignalPilot/internal/domain/models"
)

var testDay = time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)

var testAssets = []string{
	"ADA/USDT", "BTC/USDT", "ETH/USDT", "DOT/USDT", "SOL/USDT",
	"XRP/USDT", "BNB/USDT", "LTC/USDT", "TRX/USDT", "AVAX/USDT",
	"LINK/USDT", "ATOM/USDT",
}

func at(hour, minute int) time.Time {
	return testDay.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func win(ts time.Time, asset string, attempt int) models.Signal {
	return models.Signal{Timestamp: ts, Asset: asset, Result: models.ResultWin, Attempt: attempt}
}

func loss(ts time.Time, asset string) models.Signal {
	return models.Signal{Timestamp: ts, Asset: asset, Result: models.ResultLoss}
}

// hourWith builds n signals in hour h on distinct assets, five minutes apart,
// taking results from pattern in order ("1", "2", "3" for wins, "L" for losses).
func hourWith(h int, pattern ...string) []models.Signal {
	out := make([]models.Signal, 0, len(pattern))
	for i, p := range pattern {
		ts := at(h, i*5)
		asset := testAssets[i%len(testAssets)]
		switch p {
		case "L":
			out = append(out, loss(ts, asset))
		case "2":
			out = append(out, win(ts, asset, 2))
		case "3":
			out = append(out, win(ts, asset, 3))
		default:
			out = append(out, win(ts, asset, 1))
		}
	}
	return out
}

func concat(parts ...[]models.Signal) []models.Signal {
	var out []models.Signal
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
