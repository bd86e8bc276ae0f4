package strategy

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"SignalPilot/internal/domain/models"
	"SignalPilot/internal/domain/service"
)

const (
	reasonContinue   = "Continuando"
	reasonNoSignals  = "Nenhum sinal nesta hora"
	labelNoData      = "Dados Insuficientes"
	noOperationsDone = "Nenhuma operação realizada"
)

var _ service.DaySimulator = (*Simulator)(nil)

// HourPlan is the strategy chosen for one trading hour.
type HourPlan struct {
	Hour       int                     `json:"hour"`
	Reference  int                     `json:"reference_hour"`
	Strategy   models.StrategyType     `json:"strategy"`
	Label      string                  `json:"label"`
	Conditions models.MarketConditions `json:"conditions"`
}

// Simulator replays a trading day hour by hour.
type Simulator struct {
	cfg      Config
	analyzer *Analyzer
}

// NewSimulator creates a simulator. The analyzer derives each hour's strategy.
func NewSimulator(cfg Config, analyzer *Analyzer) *Simulator {
	if analyzer == nil {
		analyzer = NewAnalyzer(cfg, nil)
	}
	return &Simulator{cfg: cfg, analyzer: analyzer}
}

// Config returns the simulator settings.
func (s *Simulator) Config() Config { return s.cfg }

// SimulateDay derives each hour's strategy from the previous hour's signals
// and replays the day. Malformed records are skipped and reported in a
// *models.RecordErrors next to a valid result.
func (s *Simulator) SimulateDay(day time.Time, signals []models.Signal) (*models.DayResult, error) {
	byHour, errs := s.bucket(day, signals)
	res := s.run(day, byHour, s.plan(byHour))
	return res, errs.OrNil()
}

// SimulateWithTable replays the day with a fixed strategy per hour. Hours
// missing from table are treated as having insufficient data.
func (s *Simulator) SimulateWithTable(day time.Time, signals []models.Signal, table map[int]models.StrategyType) (*models.DayResult, error) {
	byHour, errs := s.bucket(day, signals)
	plan := make(map[int]HourPlan, len(table))
	for h, st := range table {
		plan[h] = HourPlan{Hour: h, Reference: h - 1, Strategy: st, Label: st.Label()}
	}
	res := s.run(day, byHour, plan)
	return res, errs.OrNil()
}

// Plan returns the strategy of every trading hour for a day of signals.
func (s *Simulator) Plan(day time.Time, signals []models.Signal) []HourPlan {
	byHour, _ := s.bucket(day, signals)
	plan := s.plan(byHour)
	out := make([]HourPlan, 0, s.cfg.TradingEndHour-s.cfg.TradingStartHour+1)
	for h := s.cfg.TradingStartHour; h <= s.cfg.TradingEndHour; h++ {
		out = append(out, plan[h])
	}
	return out
}

func (s *Simulator) plan(byHour map[int][]models.Signal) map[int]HourPlan {
	plan := make(map[int]HourPlan)
	for h := s.cfg.TradingStartHour; h <= s.cfg.TradingEndHour; h++ {
		ref := h - 1
		c := s.analyzer.Analyze(byHour[ref])
		p := HourPlan{Hour: h, Reference: ref, Strategy: c.RecommendedStrategy, Label: c.RecommendedStrategy.Label(), Conditions: c}
		if c.TotalOperations < s.analyzer.Policy().MinOperations() {
			p.Strategy = models.StrategyPause
			p.Label = labelNoData
		}
		plan[h] = p
	}
	return plan
}

func (s *Simulator) run(day time.Time, byHour map[int][]models.Signal, plan map[int]HourPlan) *models.DayResult {
	res := &models.DayResult{Date: day.In(s.cfg.Location).Format("2006-01-02"), TradingLog: []models.TradingLogEntry{}}
	target := decimal.NewFromFloat(s.cfg.DailyTarget)
	infinityStop := decimal.NewFromFloat(s.cfg.InfinityStop)
	cum := decimal.Zero
	martingaleLosses := 0
	ended := false

	for h := s.cfg.TradingStartHour; h <= s.cfg.TradingEndHour && !ended; h++ {
		p, ok := plan[h]
		if !ok {
			p = HourPlan{Hour: h, Reference: h - 1, Strategy: models.StrategyPause, Label: labelNoData}
		}
		entry := models.TradingLogEntry{Hour: h, Strategy: p.Strategy, CumulativePnL: cum.InexactFloat64()}

		switch {
		case !p.Strategy.Trades():
			entry.Action = models.ActionNoOperation
			entry.Reason = "Estratégia: " + p.Label
		case p.Strategy == models.StrategyMartingaleConservative && martingaleLosses >= s.cfg.MartingaleMaxLosses:
			entry.Action = models.ActionDailyStop
			entry.Reason = fmt.Sprintf("Martingale: %d losses diários atingidos", s.cfg.MartingaleMaxLosses)
		case len(byHour[h]) == 0:
			entry.Action = models.ActionNoSignals
			entry.Reason = reasonNoSignals
		default:
			outcome, _ := RunSession(p.Strategy, byHour[h])
			pnl := decimal.NewFromFloat(s.sessionPnL(p.Strategy, outcome))
			if p.Strategy == models.StrategyMartingaleConservative && pnl.IsNegative() {
				martingaleLosses++
			}
			cum = cum.Add(pnl)

			entry.Action = models.ActionOperation
			entry.Result = outcome
			entry.PnL = pnl.InexactFloat64()
			entry.CumulativePnL = cum.InexactFloat64()
			entry.Reason = reasonContinue

			amount := cum.StringFixed(2)
			switch {
			case cum.GreaterThanOrEqual(target):
				ended = true
				res.EndReason = "Meta atingida: $" + amount
			case p.Strategy == models.StrategyMartingaleConservative && martingaleLosses >= s.cfg.MartingaleMaxLosses:
				ended = true
				res.EndReason = fmt.Sprintf("Stop Martingale: %d losses diários ($%s)", s.cfg.MartingaleMaxLosses, amount)
			case p.Strategy == models.StrategyInfinityConservative && cum.LessThanOrEqual(infinityStop):
				ended = true
				res.EndReason = "Stop Infinity: $" + amount
			}
			if ended {
				entry.Reason = res.EndReason
			}
			res.HoursTraded++
		}
		res.TradingLog = append(res.TradingLog, entry)
	}

	if !ended {
		res.EndReason = "Fim do horário de operações: $" + cum.StringFixed(2)
	}
	res.FinalPnL = cum.InexactFloat64()
	res.TargetAchieved = cum.GreaterThanOrEqual(target)
	res.StoppedOut = strings.Contains(res.EndReason, "Stop")
	return res
}

func (s *Simulator) sessionPnL(st models.StrategyType, outcome models.SessionOutcome) float64 {
	switch outcome {
	case models.OutcomeVictory:
		return s.cfg.SessionProfit
	case models.OutcomeDefeat:
		if st == models.StrategyMartingaleConservative {
			return s.cfg.MartingaleLoss
		}
		return 0
	case models.OutcomeIncomplete:
		return 0
	default:
		return 0
	}
}

// bucket groups valid signals of day by local hour and collects the bad ones.
func (s *Simulator) bucket(day time.Time, signals []models.Signal) (map[int][]models.Signal, *models.RecordErrors) {
	errs := &models.RecordErrors{}
	byHour := make(map[int][]models.Signal)
	y, m, d := day.In(s.cfg.Location).Date()
	for i, sig := range signals {
		if err := sig.Validate(); err != nil {
			errs.Add(i, sig, err)
			continue
		}
		local := sig.Timestamp.In(s.cfg.Location)
		if ly, lm, ld := local.Date(); !day.IsZero() && (ly != y || lm != m || ld != d) {
			continue
		}
		byHour[local.Hour()] = append(byHour[local.Hour()], sig)
	}
	return byHour, errs
}

// HourSignals returns the valid signals of day grouped by local hour.
func (s *Simulator) HourSignals(day time.Time, signals []models.Signal) map[int][]models.Signal {
	byHour, _ := s.bucket(day, signals)
	return byHour
}

// Summarize aggregates the operated hours of a simulated day.
func Summarize(res *models.DayResult) models.DaySummary {
	sum := models.DaySummary{StrategiesUsed: map[string]int{}}
	if res == nil {
		sum.EndReason = noOperationsDone
		return sum
	}
	var wins int
	total := decimal.Zero
	for _, e := range res.TradingLog {
		if e.Action != models.ActionOperation {
			continue
		}
		sum.HoursOperated++
		sum.StrategiesUsed[e.Strategy.Label()]++
		total = total.Add(decimal.NewFromFloat(e.PnL))
		if e.PnL > 0 {
			wins++
		}
	}
	if sum.HoursOperated == 0 {
		sum.EndReason = noOperationsDone
		return sum
	}
	sum.TotalPnL = res.FinalPnL
	sum.TargetAchieved = res.TargetAchieved
	sum.StopHit = res.StoppedOut
	sum.EndReason = res.EndReason
	sum.AvgPnLPerHour = total.Div(decimal.NewFromInt(int64(sum.HoursOperated))).InexactFloat64()
	sum.WinRate = float64(wins) / float64(sum.HoursOperated) * 100
	return sum
}

// OperationsStats counts the signals each strategy consumed in the operated hours.
func (s *Simulator) OperationsStats(day time.Time, signals []models.Signal, res *models.DayResult) models.OperationsStats {
	var out models.OperationsStats
	if res == nil {
		return out
	}
	byHour, _ := s.bucket(day, signals)
	for _, e := range res.TradingLog {
		if e.Action != models.ActionOperation {
			continue
		}
		_, c := RunSession(e.Strategy, byHour[e.Hour])
		switch e.Strategy {
		case models.StrategyMartingaleConservative:
			out.Martingale = addCounts(out.Martingale, c)
		case models.StrategyInfinityConservative:
			out.Infinity = addCounts(out.Infinity, c)
		case models.StrategyPause:
		}
	}
	return out
}

func addCounts(a, b models.SessionCounts) models.SessionCounts {
	return models.SessionCounts{Operations: a.Operations + b.Operations, Wins: a.Wins + b.Wins, Losses: a.Losses + b.Losses}
}
