package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"SignalPilot/internal/domain/models"
	domrepo "SignalPilot/internal/domain/repository"
	domsvc "SignalPilot/internal/domain/service"
	engmetrics "SignalPilot/internal/service/metrics"
	"SignalPilot/internal/services/extractor"
	"SignalPilot/internal/services/features"
	"SignalPilot/internal/services/strategy"
	"SignalPilot/pkg/cache"
	"SignalPilot/pkg/util"
)

// MarketAnalysis answers condition, hourly and statistics queries over stored signals.
type MarketAnalysis struct {
	store    domrepo.SignalStore
	analyzer domsvc.ConditionsAnalyzer
	cache    cache.Service
	ttl      time.Duration
	loc      *time.Location
	th       features.Thresholds
	capital  float64
	timeout  time.Duration
}

// NewMarketAnalysis creates the use case. c may be nil to disable caching.
func NewMarketAnalysis(store domrepo.SignalStore, analyzer domsvc.ConditionsAnalyzer, c cache.Service, ttl time.Duration, loc *time.Location) *MarketAnalysis {
	if loc == nil {
		loc = time.UTC
	}
	return &MarketAnalysis{
		store:    store,
		analyzer: analyzer,
		cache:    c,
		ttl:      ttl,
		loc:      loc,
		th:       features.DefaultThresholds(),
		capital:  strategy.DefaultInitialCapital,
		timeout:  10 * time.Second,
	}
}

// Location is the trading timezone.
func (uc *MarketAnalysis) Location() *time.Location { return uc.loc }

// load returns signals in [from, to). Malformed records are tolerated and counted.
func (uc *MarketAnalysis) load(ctx context.Context, from, to time.Time) ([]models.Signal, int, error) {
	sigs, err := uc.store.Load(ctx, from, to)
	var rec *models.RecordErrors
	if errors.As(err, &rec) {
		return sigs, len(rec.Records), nil
	}
	return sigs, 0, err
}

// DaySignals returns the stored signals of day and their statistics.
func (uc *MarketAnalysis) DaySignals(ctx context.Context, day time.Time) ([]models.Signal, models.SignalStats, error) {
	from, to := util.DayBounds(day, uc.loc)
	sigs, skipped, err := uc.load(ctx, from, to)
	engmetrics.Observe("day_signals", time.Now(), skipped, err)
	if err != nil {
		return nil, models.SignalStats{}, fmt.Errorf("load signals: %w", err)
	}
	return sigs, extractor.Statistics(sigs), nil
}

// Conditions analyses hours fromHour..toHour of day. Results are cached per range.
func (uc *MarketAnalysis) Conditions(ctx context.Context, day time.Time, fromHour, toHour int) (*models.ConditionsReport, error) {
	if fromHour < 0 || toHour > 23 || fromHour > toHour {
		return nil, fmt.Errorf("%w: hour range %d-%d", models.ErrInvalidRequest, fromHour, toHour)
	}
	start := time.Now()
	date := day.In(uc.loc).Format(util.DayLayout)
	key := cache.Key("conditions", date, strconv.Itoa(fromHour), strconv.Itoa(toHour))

	rep, hit, err := cache.GetOrCompute(ctx, uc.cache, key, uc.ttl, func(ctx context.Context) (models.ConditionsReport, error) {
		from, to := util.HourBounds(day, uc.loc, fromHour, toHour)
		sigs, skipped, err := uc.load(ctx, from, to)
		if err != nil {
			return models.ConditionsReport{}, err
		}
		c := uc.analyzer.Analyze(sigs)
		return models.ConditionsReport{
			Date:       date,
			FromHour:   fromHour,
			ToHour:     toHour,
			Signals:    len(sigs),
			Skipped:    skipped,
			Conditions: c,
			Status:     strategy.Status(c.RecommendedStrategy),
		}, nil
	})
	if uc.cache != nil {
		engmetrics.CacheHit("conditions", hit)
	}
	engmetrics.Observe("conditions", start, rep.Skipped, err)
	if err != nil {
		return nil, fmt.Errorf("conditions %s: %w", date, err)
	}
	rep.Cached = hit
	return &rep, nil
}

// Hours returns the per-hour breakdown of day with the quick recommendation.
func (uc *MarketAnalysis) Hours(ctx context.Context, day time.Time) ([]models.HourStats, error) {
	sigs, _, err := uc.DaySignals(ctx, day)
	if err != nil {
		return nil, err
	}
	return features.HourlyBreakdown(sigs, uc.loc, uc.th), nil
}

// Stats returns store statistics for [from, to).
func (uc *MarketAnalysis) Stats(ctx context.Context, from, to time.Time) (*models.StoreStats, error) {
	st, err := uc.store.Stats(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("store stats: %w", err)
	}
	return st, nil
}

type signalsSection struct {
	stats models.SignalStats
	fin   models.FinancialMetrics
}

// Overview computes the day's sections concurrently. A failing section is
// reported in Errors and does not fail the others.
func (uc *MarketAnalysis) Overview(ctx context.Context, day time.Time) (*models.DayOverview, error) {
	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	res := &models.DayOverview{
		Date:      day.In(uc.loc).Format(util.DayLayout),
		Timestamp: time.Now(),
		Errors:    map[string]string{},
	}

	type item struct {
		name string
		val  interface{}
		err  error
	}
	ch := make(chan item, 3)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		sigs, stats, err := uc.DaySignals(ctx, day)
		if err != nil {
			ch <- item{"signals", nil, err}
			return
		}
		ch <- item{"signals", signalsSection{stats, strategy.Financial(sigs, uc.capital)}, nil}
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		v, err := uc.Conditions(ctx, day, 0, 23)
		ch <- item{"conditions", v, err}
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		v, err := uc.Hours(ctx, day)
		ch <- item{"hours", v, err}
	}()

	go func() { wg.Wait(); close(ch) }()

	for it := range ch {
		if it.err != nil {
			res.Errors[it.name] = it.err.Error()
			continue
		}
		switch it.name {
		case "signals":
			v := it.val.(signalsSection)
			res.Signals = &v.stats
			res.Financial = &v.fin
		case "conditions":
			res.Conditions = it.val.(*models.ConditionsReport)
		case "hours":
			res.Hours = it.val.([]models.HourStats)
		}
	}

	if len(res.Errors) == 0 {
		res.Errors = nil
	}
	return res, nil
}
