package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"SignalPilot/internal/domain/models"
	domrepo "SignalPilot/internal/domain/repository"
	engmetrics "SignalPilot/internal/service/metrics"
	"SignalPilot/internal/services/strategy"
	"SignalPilot/pkg/cache"
	applogger "SignalPilot/pkg/logger"
	"SignalPilot/pkg/util"
)

// SimulateDayJobType is the queue message type of asynchronous simulations.
const SimulateDayJobType = "simulate_day"

// JobEnqueuer is the part of the job queue the simulation service needs.
type JobEnqueuer interface {
	EnqueueWithID(ctx context.Context, id, msgType string, payload interface{}) (string, error)
}

// SimulationPayload is the queue payload of an asynchronous simulation.
type SimulationPayload struct {
	ID         string            `json:"id"`
	Date       string            `json:"date"`
	Strategies map[string]string `json:"strategies,omitempty"`
}

// SimulationService replays stored days and keeps the reports by ID.
type SimulationService struct {
	reader  domrepo.SignalReader
	sim     *strategy.Simulator
	cache   cache.Service
	ttl     time.Duration
	loc     *time.Location
	capital float64
	workers int
	queue   JobEnqueuer
	now     func() time.Time
	l       *applogger.Logger
}

// NewSimulationService creates the service. c and q may be nil: reports are
// then not retrievable by ID and asynchronous runs are unavailable.
func NewSimulationService(reader domrepo.SignalReader, sim *strategy.Simulator, c cache.Service, ttl time.Duration, q JobEnqueuer, l *applogger.Logger) *SimulationService {
	if l == nil {
		l = applogger.Nop()
	}
	loc := sim.Config().Location
	if loc == nil {
		loc = time.UTC
	}
	return &SimulationService{
		reader:  reader,
		sim:     sim,
		cache:   c,
		ttl:     ttl,
		loc:     loc,
		capital: strategy.DefaultInitialCapital,
		workers: 4,
		queue:   q,
		now:     time.Now,
		l:       l,
	}
}

// ErrQueueDisabled is returned by Enqueue when no job queue is configured.
var ErrQueueDisabled = errors.New("simulation queue disabled")

// ParseStrategyTable converts {"17": "infinity"} into an hour table.
func ParseStrategyTable(raw map[string]string) (map[int]models.StrategyType, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[int]models.StrategyType, len(raw))
	for k, v := range raw {
		h, err := strconv.Atoi(k)
		if err != nil || h < 0 || h > 23 {
			return nil, fmt.Errorf("%w: hour %q", models.ErrInvalidRequest, k)
		}
		st, err := models.ParseStrategy(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrInvalidRequest, err)
		}
		out[h] = st
	}
	return out, nil
}

// SimulateDay replays day. With a table, the hour strategies are fixed;
// otherwise they are decided from the previous hour's signals.
func (s *SimulationService) SimulateDay(ctx context.Context, day time.Time, table map[int]models.StrategyType) (*models.SimulationReport, error) {
	return s.simulate(ctx, uuid.NewString(), day, table)
}

func (s *SimulationService) simulate(ctx context.Context, id string, day time.Time, table map[int]models.StrategyType) (*models.SimulationReport, error) {
	start := time.Now()
	from, to := util.DayBounds(day, s.loc)
	sigs, err := s.reader.Load(ctx, from, to)
	skipped := 0
	var rec *models.RecordErrors
	if errors.As(err, &rec) {
		skipped, err = len(rec.Records), nil
	}
	if err != nil {
		engmetrics.Observe("simulate_day", start, 0, err)
		return nil, fmt.Errorf("load %s: %w", from.Format(util.DayLayout), err)
	}

	var res *models.DayResult
	if table != nil {
		res, err = s.sim.SimulateWithTable(day, sigs, table)
	} else {
		res, err = s.sim.SimulateDay(day, sigs)
	}
	if errors.As(err, &rec) {
		skipped += len(rec.Records)
		err = nil
	}
	engmetrics.Observe("simulate_day", start, skipped, err)
	if err != nil {
		return nil, err
	}

	report := &models.SimulationReport{
		ID:         id,
		Date:       res.Date,
		Day:        res,
		Summary:    strategy.Summarize(res),
		Operations: s.sim.OperationsStats(day, sigs, res),
		Financial:  strategy.Financial(sigs, s.capital),
		Skipped:    skipped,
		CreatedAt:  s.now(),
	}
	s.store(ctx, &models.SimulationJob{
		ID: id, Date: res.Date, Status: models.JobDone, Report: report,
		CreatedAt: report.CreatedAt, UpdatedAt: report.CreatedAt,
	})
	return report, nil
}

// SimulateRange replays every day in [from, to] concurrently and returns the
// reports in date order with an aggregate summary.
func (s *SimulationService) SimulateRange(ctx context.Context, from, to time.Time) ([]*models.SimulationReport, models.RangeSummary, error) {
	days := util.Days(from, to, s.loc)
	reports := make([]*models.SimulationReport, len(days))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, d := range days {
		g.Go(func() error {
			r, err := s.SimulateDay(gctx, d, nil)
			if err != nil {
				return err
			}
			reports[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, models.RangeSummary{}, err
	}

	sort.SliceStable(reports, func(i, j int) bool { return reports[i].Date < reports[j].Date })
	sum := models.RangeSummary{Days: len(reports)}
	if len(days) > 0 {
		sum.From = days[0].Format(util.DayLayout)
		sum.To = days[len(days)-1].Format(util.DayLayout)
	}
	total := decimal.Zero
	for _, r := range reports {
		total = total.Add(decimal.NewFromFloat(r.Summary.TotalPnL))
		if r.Summary.HoursOperated > 0 {
			sum.TradedDays++
		}
		if r.Summary.TargetAchieved {
			sum.TargetDays++
		}
		if r.Summary.StopHit {
			sum.StopDays++
		}
		switch {
		case r.Summary.TotalPnL > 0:
			sum.WinningDays++
		case r.Summary.TotalPnL < 0:
			sum.LosingDays++
		}
	}
	sum.TotalPnL = total.InexactFloat64()
	if sum.Days > 0 {
		sum.AvgDailyPnL = total.Div(decimal.NewFromInt(int64(sum.Days))).Round(2).InexactFloat64()
	}
	return reports, sum, nil
}

// Enqueue schedules an asynchronous simulation and returns its pending job.
func (s *SimulationService) Enqueue(ctx context.Context, req models.SimulateRequest) (*models.SimulationJob, error) {
	if s.queue == nil || s.cache == nil {
		return nil, ErrQueueDisabled
	}
	if _, err := util.ParseDay(req.Date, s.loc, s.now()); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidRequest, err)
	}
	if _, err := ParseStrategyTable(req.Strategies); err != nil {
		return nil, err
	}
	now := s.now()
	job := &models.SimulationJob{ID: uuid.NewString(), Date: req.Date, Status: models.JobPending, CreatedAt: now, UpdatedAt: now}
	if err := s.cache.Set(ctx, s.key(job.ID), job, s.ttl); err != nil {
		return nil, fmt.Errorf("store job: %w", err)
	}
	payload := SimulationPayload{ID: job.ID, Date: req.Date, Strategies: req.Strategies}
	if _, err := s.queue.EnqueueWithID(ctx, job.ID, SimulateDayJobType, payload); err != nil {
		_ = s.cache.Delete(ctx, s.key(job.ID))
		return nil, fmt.Errorf("enqueue simulation: %w", err)
	}
	return job, nil
}

// Run executes a queued simulation and records its outcome.
func (s *SimulationService) Run(ctx context.Context, p SimulationPayload) error {
	day, err := util.ParseDay(p.Date, s.loc, s.now())
	if err != nil {
		s.markFailed(ctx, p, err)
		return nil
	}
	table, err := ParseStrategyTable(p.Strategies)
	if err != nil {
		s.markFailed(ctx, p, err)
		return nil
	}
	if _, err := s.simulate(ctx, p.ID, day, table); err != nil {
		s.markFailed(ctx, p, err)
		return err
	}
	return nil
}

func (s *SimulationService) markFailed(ctx context.Context, p SimulationPayload, err error) {
	now := s.now()
	s.store(ctx, &models.SimulationJob{ID: p.ID, Date: p.Date, Status: models.JobFailed, Error: err.Error(), CreatedAt: now, UpdatedAt: now})
}

// Get returns a simulation job by ID.
func (s *SimulationService) Get(ctx context.Context, id string) (*models.SimulationJob, error) {
	if s.cache == nil {
		return nil, models.ErrNotFound
	}
	var job models.SimulationJob
	err := s.cache.Get(ctx, s.key(id), &job)
	engmetrics.CacheHit("simulation", err == nil)
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load simulation: %w", err)
	}
	return &job, nil
}

func (s *SimulationService) store(ctx context.Context, job *models.SimulationJob) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, s.key(job.ID), job, s.ttl); err != nil {
		s.l.Warn("store simulation failed",
			applogger.String("id", job.ID),
			applogger.String("status", string(job.Status)),
			applogger.Error(err))
	}
}

func (s *SimulationService) key(id string) string { return cache.Key("simulation", id) }
