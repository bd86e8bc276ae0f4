package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"SignalPilot/internal/domain/models"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#3B82F6"))

	boxStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#3B82F6")).
			Padding(0, 1)

	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	profitStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Bold(true)
	lossStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)
	strategyTint = map[models.StrategyType]lipgloss.Color{
		models.StrategyPause:                  "#F59E0B",
		models.StrategyMartingaleConservative: "#3B82F6",
		models.StrategyInfinityConservative:   "#10B981",
	}
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func strategyBadge(st models.StrategyType) string {
	return lipgloss.NewStyle().Bold(true).Foreground(strategyTint[st]).Render(st.Label())
}

func money(v float64) string {
	s := fmt.Sprintf("%+.2f", v)
	switch {
	case v > 0:
		return profitStyle.Render(s)
	case v < 0:
		return lossStyle.Render(s)
	}
	return s
}

func kv(rows ...[2]string) string {
	width := 0
	for _, r := range rows {
		width = max(width, len(r[0]))
	}
	var b strings.Builder
	for i, r := range rows {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(dimStyle.Render(fmt.Sprintf("%-*s", width, r[0])))
		b.WriteString("  ")
		b.WriteString(r[1])
	}
	return b.String()
}

func renderConditions(rep *models.ConditionsReport) string {
	c := rep.Conditions
	body := kv(
		[2]string{"period", c.AnalysisPeriod},
		[2]string{"operations", fmt.Sprint(c.TotalOperations)},
		[2]string{"first attempt", fmt.Sprintf("%.1f%%", c.FirstAttemptSuccessRate)},
		[2]string{"g1 recovery", fmt.Sprintf("%.1f%%", c.G1RecoveryRate)},
		[2]string{"g2+ / stop", fmt.Sprintf("%.1f%%", c.G2PlusStopRate)},
		[2]string{"strategy", strategyBadge(c.RecommendedStrategy)},
		[2]string{"confidence", fmt.Sprintf("%.0f%%", c.ConfidenceLevel)},
		[2]string{"status", rep.Status},
	)
	if rep.Skipped > 0 {
		body += "\n" + warnStyle.Render(fmt.Sprintf("%d malformed records skipped", rep.Skipped))
	}
	return boxStyle.Render(headerStyle.Render("Market conditions "+rep.Date) + "\n" + body)
}

func renderHours(hours []models.HourStats) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("%-5s %6s %5s %6s %7s %7s %7s  %s",
		"hour", "total", "wins", "loss", "1st%", "g1%", "stop%", "recommendation")))
	for _, h := range hours {
		fmt.Fprintf(&b, "\n%02dh   %6d %5d %6d %6.1f%% %6.1f%% %6.1f%%  %s",
			h.Hour, h.Total, h.Wins, h.Losses, h.FirstRate, h.G1Rate, h.LossRate, h.Recommendation)
	}
	return b.String()
}

func renderReport(rep *models.SimulationReport) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Simulation "+rep.Date) + "\n")
	if rep.Day != nil {
		for _, e := range rep.Day.TradingLog {
			fmt.Fprintf(&b, "%02dh %-12s %-14s %-10s %8s %8s  %s\n",
				e.Hour, strategyBadge(e.Strategy), e.Action, e.Result,
				money(e.PnL), money(e.CumulativePnL), dimStyle.Render(e.Reason))
		}
	}
	s, f := rep.Summary, rep.Financial
	b.WriteString(kv(
		[2]string{"total pnl", money(s.TotalPnL)},
		[2]string{"hours operated", fmt.Sprint(s.HoursOperated)},
		[2]string{"end reason", s.EndReason},
		[2]string{"win rate", fmt.Sprintf("%.1f%%", s.WinRate)},
		[2]string{"roi", fmt.Sprintf("%.2f%%", f.ROI)},
		[2]string{"max drawdown", fmt.Sprintf("%.2f%%", f.MaxDrawdown)},
		[2]string{"sharpe", fmt.Sprintf("%.2f", f.SharpeRatio)},
		[2]string{"streaks", fmt.Sprintf("%d wins / %d losses", f.MaxWinStreak, f.MaxLossStreak)},
	))
	if rep.Skipped > 0 {
		b.WriteString("\n" + warnStyle.Render(fmt.Sprintf("%d malformed records skipped", rep.Skipped)))
	}
	return boxStyle.Render(b.String())
}

func renderRange(sum models.RangeSummary) string {
	return boxStyle.Render(headerStyle.Render(fmt.Sprintf("Range %s .. %s", sum.From, sum.To)) + "\n" + kv(
		[2]string{"days", fmt.Sprintf("%d (%d traded)", sum.Days, sum.TradedDays)},
		[2]string{"total pnl", money(sum.TotalPnL)},
		[2]string{"avg daily pnl", money(sum.AvgDailyPnL)},
		[2]string{"target / stop", fmt.Sprintf("%d / %d", sum.TargetDays, sum.StopDays)},
		[2]string{"winning / losing", fmt.Sprintf("%d / %d", sum.WinningDays, sum.LosingDays)},
	))
}

func renderStats(st *models.StoreStats) string {
	rows := [][2]string{
		{"signals", fmt.Sprint(st.Total)},
		{"assets", fmt.Sprint(st.UniqueAssets)},
		{"wins / losses", fmt.Sprintf("%d / %d", st.Wins, st.Losses)},
	}
	for _, a := range []int{1, 2, 3} {
		rows = append(rows, [2]string{fmt.Sprintf("wins attempt %d", a), fmt.Sprint(st.WinsByAttempt[a])})
	}
	if st.First != nil && st.Last != nil {
		rows = append(rows, [2]string{"span", st.First.Format("2006-01-02 15:04") + " .. " + st.Last.Format("2006-01-02 15:04")})
	}
	return boxStyle.Render(headerStyle.Render("Stored signals") + "\n" + kv(rows...))
}
