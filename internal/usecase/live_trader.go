package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"SignalPilot/internal/domain/models"
	drepo "SignalPilot/internal/domain/repository"
	domsvc "SignalPilot/internal/domain/service"
	"SignalPilot/internal/services/extractor"
	"SignalPilot/internal/services/features"
	"SignalPilot/internal/services/strategy"
	"SignalPilot/pkg/cache"
	applogger "SignalPilot/pkg/logger"
)

// LiveConfig tunes the live trader.
type LiveConfig struct {
	Location       *time.Location
	StartHour      int
	EndHour        int
	BufferSize     int
	MinHourSignals int
	AnalysisMinute int
	CheckInterval  time.Duration
	LockTTL        time.Duration
	RecentAnalyses int
}

// DefaultLiveConfig returns the production settings.
func DefaultLiveConfig() LiveConfig {
	return LiveConfig{
		Location:       time.UTC,
		StartHour:      17,
		EndHour:        23,
		BufferSize:     200,
		MinHourSignals: 5,
		AnalysisMinute: 59,
		CheckInterval:  30 * time.Second,
		LockTTL:        2 * time.Minute,
		RecentAnalyses: 10,
	}
}

// LiveTrader keeps a window of recent signals, analyses the market once per
// hour and switches the live strategy with hysteresis.
type LiveTrader struct {
	cfg      LiveConfig
	analyzer domsvc.ConditionsAnalyzer
	state    *strategy.State
	archive  drepo.AnalysisArchive
	notifier drepo.Notifier
	metrics  drepo.Metrics
	lock     cache.Service
	l        *applogger.Logger
	now      func() time.Time

	mu           sync.Mutex
	buffer       []models.Signal
	session      models.SessionStats
	sessionSigs  []models.Signal
	active       bool
	lastAnalysed string
	lastStatus   string
}

var _ SignalSink = (*LiveTrader)(nil)

// NewLiveTrader wires the trader. archive, notifier and lock are optional.
func NewLiveTrader(
	cfg LiveConfig,
	analyzer domsvc.ConditionsAnalyzer,
	state *strategy.State,
	archive drepo.AnalysisArchive,
	notifier drepo.Notifier,
	metrics drepo.Metrics,
	lock cache.Service,
	l *applogger.Logger,
) *LiveTrader {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 200
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &LiveTrader{
		cfg:      cfg,
		analyzer: analyzer,
		state:    state,
		archive:  archive,
		notifier: notifier,
		metrics:  metrics,
		lock:     lock,
		l:        l,
		now:      time.Now,
	}
}

// InTradingHours reports whether t falls in [StartHour, EndHour] in the trading timezone.
func (t *LiveTrader) InTradingHours(ts time.Time) bool {
	h := ts.In(t.cfg.Location).Hour()
	return h >= t.cfg.StartHour && h <= t.cfg.EndHour
}

// OnSignal appends s to the buffer and runs the hourly analysis when due.
func (t *LiveTrader) OnSignal(ctx context.Context, s models.Signal) {
	t.mu.Lock()
	t.buffer = append(t.buffer, s)
	if over := len(t.buffer) - t.cfg.BufferSize; over > 0 {
		t.buffer = append(t.buffer[:0:0], t.buffer[over:]...)
	}
	if t.active {
		t.sessionSigs = append(t.sessionSigs, s)
	}
	t.session.TotalSignals++
	total := t.session.TotalSignals
	t.mu.Unlock()

	t.l.Debug("live signal buffered",
		applogger.String("asset", s.Asset),
		applogger.String("result", string(s.Result)),
		applogger.Int("session_total", total),
	)
	t.maybeAnalyze(ctx, t.now())
}

// recent returns the buffered signals from the last hour before now.
func (t *LiveTrader) recent(now time.Time) []models.Signal {
	t.mu.Lock()
	defer t.mu.Unlock()
	return features.LastHours(t.buffer, now, time.Hour)
}

func hourKey(now time.Time) string { return now.Format("2006-01-02T15") }

// maybeAnalyze runs the analysis at the analysis minute, at most once per hour,
// and only with enough signals in the last hour. It reports whether it ran.
func (t *LiveTrader) maybeAnalyze(ctx context.Context, now time.Time) bool {
	now = now.In(t.cfg.Location)
	if now.Minute() != t.cfg.AnalysisMinute {
		return false
	}
	key := hourKey(now)
	t.mu.Lock()
	done := t.lastAnalysed == key
	t.mu.Unlock()
	if done {
		return false
	}

	snapshot := t.recent(now)
	if len(snapshot) < t.cfg.MinHourSignals {
		t.l.Warn("not enough signals in the last hour",
			applogger.Int("signals", len(snapshot)),
			applogger.Int("required", t.cfg.MinHourSignals),
		)
		return false
	}

	if t.lock != nil {
		ok, err := t.lock.TryLock(ctx, cache.Key("live", "analysis", key), t.cfg.LockTTL)
		if err != nil {
			t.metrics.RecordError("analysis_lock")
			t.l.Warn("analysis lock unavailable, analysing locally", applogger.Error(err))
		} else if !ok {
			t.mu.Lock()
			t.lastAnalysed = key
			t.mu.Unlock()
			t.l.Info("hour analysed by another replica", applogger.String("hour", key))
			return false
		}
	}

	t.mu.Lock()
	t.lastAnalysed = key
	t.mu.Unlock()
	t.analyze(ctx, snapshot, now)
	return true
}

func (t *LiveTrader) analyze(ctx context.Context, snapshot []models.Signal, now time.Time) {
	start := time.Now()
	c := t.analyzer.Analyze(snapshot)
	prev, changed := t.state.Update(c, now)

	t.mu.Lock()
	t.session.AnalysisCount++
	if changed && prev != nil {
		t.session.StrategyChanges++
	}
	t.session.CurrentStrategy = t.state.Current()
	stats := t.session
	t.mu.Unlock()

	t.metrics.RecordLatency("live_analysis", time.Since(start).Seconds())
	if cur := t.state.Current(); cur != nil {
		t.metrics.RecordStrategy(cur.String(), c.ConfidenceLevel)
	}

	t.l.Info("market analysis",
		applogger.Int("signals", len(snapshot)),
		applogger.Int("operations", c.TotalOperations),
		applogger.Float64("first_rate", c.FirstAttemptSuccessRate),
		applogger.Float64("g1_rate", c.G1RecoveryRate),
		applogger.Float64("g2_stop_rate", c.G2PlusStopRate),
		applogger.String("recommended", c.RecommendedStrategy.Label()),
		applogger.Float64("confidence", c.ConfidenceLevel),
		applogger.Bool("changed", changed),
	)

	if t.archive != nil {
		entry := &models.AnalysisEntry{ID: uuid.NewString(), Timestamp: now, Conditions: c, SessionStats: stats}
		if err := t.archive.Append(ctx, entry); err != nil {
			t.metrics.RecordError("archive")
			t.l.Error("archive analysis failed", applogger.Error(err))
		}
	}
	if changed && t.notifier != nil {
		if err := t.notifier.NotifyStrategyChange(ctx, prev, c); err != nil {
			t.metrics.RecordError("notify")
			t.l.Warn("strategy change notification failed", applogger.Error(err))
		}
	}
}

// Info is the live strategy state for the API.
func (t *LiveTrader) Info() models.StrategyInfo {
	return t.state.Info(t.cfg.RecentAnalyses)
}

// Session returns a copy of the current session stats.
func (t *LiveTrader) Session() models.SessionStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.session
}

// Buffered is the number of signals in the recent window.
func (t *LiveTrader) Buffered() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.buffer)
}

// Run waits for trading hours, then checks every CheckInterval until trading
// hours end or ctx is cancelled. The session report is returned either way.
func (t *LiveTrader) Run(ctx context.Context) (*models.SessionReport, error) {
	ticker := time.NewTicker(t.cfg.CheckInterval)
	defer ticker.Stop()

	if !t.InTradingHours(t.now()) {
		t.l.Info("outside trading hours, waiting",
			applogger.Int("start_hour", t.cfg.StartHour),
			applogger.Int("end_hour", t.cfg.EndHour),
		)
		for !t.InTradingHours(t.now()) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-ticker.C:
			}
		}
	}

	t.startSession(t.now())
	for {
		select {
		case <-ctx.Done():
			return t.EndSession(context.WithoutCancel(ctx)), nil
		case <-ticker.C:
			now := t.now()
			if !t.InTradingHours(now) {
				t.l.Info("trading hours over")
				return t.EndSession(ctx), nil
			}
			t.maybeAnalyze(ctx, now)
			t.tickStatus(now)
		}
	}
}

func (t *LiveTrader) startSession(now time.Time) {
	t.mu.Lock()
	t.session = models.SessionStats{ID: uuid.NewString(), StartTime: now, CurrentStrategy: t.state.Current()}
	t.sessionSigs = nil
	t.active = true
	id := t.session.ID
	t.mu.Unlock()
	t.l.Info("trading session started",
		applogger.String("session", id),
		applogger.Time("start", now),
		applogger.Int("analysis_minute", t.cfg.AnalysisMinute),
	)
}

// tickStatus logs a status line every ten minutes and a readiness line before the analysis.
func (t *LiveTrader) tickStatus(now time.Time) {
	now = now.In(t.cfg.Location)
	key := now.Format("15:04")
	t.mu.Lock()
	if t.lastStatus == key {
		t.mu.Unlock()
		return
	}
	t.lastStatus = key
	s := t.session
	t.mu.Unlock()

	switch {
	case now.Minute()%10 == 0:
		t.l.Info("session status",
			applogger.Duration("uptime", now.Sub(s.StartTime).Truncate(time.Second)),
			applogger.Int("signals", s.TotalSignals),
			applogger.Int("changes", s.StrategyChanges),
			applogger.Int("analyses", s.AnalysisCount),
			applogger.String("status", t.state.Info(0).Status),
		)
	case now.Minute() == t.cfg.AnalysisMinute-1:
		n := len(t.recent(now))
		t.l.Info("hourly analysis upcoming",
			applogger.String("at", fmt.Sprintf("%d:%02d", now.Hour(), t.cfg.AnalysisMinute)),
			applogger.Int("signals", n),
			applogger.Int("required", t.cfg.MinHourSignals),
			applogger.Bool("ready", n >= t.cfg.MinHourSignals),
		)
	}
}

// EndSession closes the session, logs and archives its report.
func (t *LiveTrader) EndSession(ctx context.Context) *models.SessionReport {
	end := t.now()
	t.mu.Lock()
	t.active = false
	s := t.session
	sigs := t.sessionSigs
	t.mu.Unlock()

	report := &models.SessionReport{
		SessionStats: s,
		EndTime:      end,
		Duration:     end.Sub(s.StartTime).Truncate(time.Second).String(),
		Strategy:     t.state.Info(t.cfg.RecentAnalyses),
		SignalStats:  extractor.Statistics(sigs),
	}
	t.l.Info("trading session finished",
		applogger.String("session", s.ID),
		applogger.String("duration", report.Duration),
		applogger.Int("signals", s.TotalSignals),
		applogger.Int("changes", s.StrategyChanges),
		applogger.Int("analyses", s.AnalysisCount),
	)
	if t.archive != nil && s.ID != "" {
		if err := t.archive.SaveReport(ctx, report); err != nil {
			t.l.Error("save session report failed", applogger.Error(err))
		}
	}
	return report
}
