package extractor

import (
	"errors"

	"SignalPilot/internal/domain/models"
)

func isOutside(err error) bool { return errors.Is(err, models.ErrOutsideTradingHours) }

// Statistics summarizes a batch of signals.
func Statistics(signals []models.Signal) models.SignalStats {
	st := models.SignalStats{Attempts: map[int]int{}}
	if len(signals) == 0 {
		return st
	}
	assets := make(map[string]struct{})
	for i, s := range signals {
		st.Total++
		if s.IsWin() {
			st.Wins++
			st.Attempts[s.Attempt]++
		} else {
			st.Losses++
		}
		assets[s.Asset] = struct{}{}
		if i == 0 || s.Timestamp.Before(st.First) {
			st.First = s.Timestamp
		}
		if s.Timestamp.After(st.Last) {
			st.Last = s.Timestamp
		}
	}
	st.UniqueAssets = len(assets)
	st.WinRate = float64(st.Wins) / float64(st.Total) * 100
	return st
}
