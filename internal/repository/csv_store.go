package repository

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"SignalPilot/internal/domain/models"
	"SignalPilot/internal/domain/repository"
	"SignalPilot/pkg/util"
)

const csvTimeLayout = "2006-01-02 15:04:05"

var csvHeader = []string{"timestamp", "asset", "result", "attempt"}

// CSVStore keeps one file per trading day: <dir>/signals_YYYY-MM-DD.csv.
type CSVStore struct {
	dir string
	loc *time.Location
	mu  sync.Mutex
}

var _ repository.SignalStore = (*CSVStore)(nil)

func NewCSVStore(dir string, loc *time.Location) *CSVStore {
	if loc == nil {
		loc = time.UTC
	}
	return &CSVStore{dir: dir, loc: loc}
}

func (s *CSVStore) Init(context.Context) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("csv store: %w", err)
	}
	return nil
}

// Path returns the file holding the signals of day.
func (s *CSVStore) Path(day time.Time) string {
	return filepath.Join(s.dir, "signals_"+day.In(s.loc).Format(util.DayLayout)+".csv")
}

// Save merges signals into their day files, de-duplicating on (timestamp, asset, result).
func (s *CSVStore) Save(_ context.Context, signals []models.Signal) (int, error) {
	if len(signals) == 0 {
		return 0, nil
	}
	byDay := make(map[string][]models.Signal)
	for _, sig := range signals {
		p := s.Path(sig.Timestamp)
		byDay[p] = append(byDay[p], sig)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := 0
	for path, batch := range byDay {
		existing, err := s.readFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			var rec *models.RecordErrors
			if !errors.As(err, &rec) {
				return inserted, err
			}
		}
		seen := make(map[string]struct{}, len(existing)+len(batch))
		for _, e := range existing {
			seen[csvKey(e)] = struct{}{}
		}
		merged := existing
		for _, sig := range batch {
			k := csvKey(sig)
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			merged = append(merged, sig)
			inserted++
		}
		sort.SliceStable(merged, func(i, j int) bool { return merged[i].Timestamp.Before(merged[j].Timestamp) })
		if err := s.writeFile(path, merged); err != nil {
			return inserted, err
		}
	}
	return inserted, nil
}

func csvKey(s models.Signal) string {
	return fmt.Sprintf("%d|%s|%s", s.Timestamp.Unix(), s.Asset, s.Result)
}

// Load reads the day files covering [from, to). Unparseable rows are skipped
// and returned as *models.RecordErrors together with the parsed signals.
func (s *CSVStore) Load(_ context.Context, from, to time.Time) ([]models.Signal, error) {
	if !to.After(from) {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Signal
	skipped := &models.RecordErrors{}
	for _, day := range util.Days(from, to.Add(-time.Nanosecond), s.loc) {
		sigs, err := s.readFile(s.Path(day))
		if err != nil {
			var rec *models.RecordErrors
			switch {
			case errors.Is(err, os.ErrNotExist):
				continue
			case errors.As(err, &rec):
				skipped.Records = append(skipped.Records, rec.Records...)
			default:
				return nil, err
			}
		}
		for _, sig := range sigs {
			if !sig.Timestamp.Before(from) && sig.Timestamp.Before(to) {
				out = append(out, sig)
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, skipped.OrNil()
}

func (s *CSVStore) Stats(ctx context.Context, from, to time.Time) (*models.StoreStats, error) {
	sigs, err := s.Load(ctx, from, to)
	var rec *models.RecordErrors
	if err != nil && !errors.As(err, &rec) {
		return nil, err
	}
	return ComputeStats(sigs), nil
}

func (s *CSVStore) Health(context.Context) error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return fmt.Errorf("csv store: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("csv store: %s is not a directory", s.dir)
	}
	return nil
}

func (s *CSVStore) Close() error { return nil }

func (s *CSVStore) readFile(path string) ([]models.Signal, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadCSV(f, s.loc)
}

func (s *CSVStore) writeFile(path string, signals []models.Signal) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("csv store: %w", err)
	}
	if err := WriteCSV(f, signals, s.loc); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("csv store: %w", err)
	}
	return os.Rename(tmp, path)
}

// ReadCSV parses timestamp,asset,result,attempt rows. Timestamps without a
// zone are read in loc. The header row is optional.
func ReadCSV(r io.Reader, loc *time.Location) ([]models.Signal, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var out []models.Signal
	skipped := &models.RecordErrors{}
	for line := 1; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			skipped.Add(line, models.Signal{}, fmt.Errorf("%w: %v", models.ErrInvalidSignal, perr))
			continue
		}
		if err != nil {
			return out, fmt.Errorf("csv line %d: %w", line, err)
		}
		if line == 1 && len(row) > 0 && strings.EqualFold(row[0], "timestamp") {
			continue
		}
		sig, err := parseRow(row, loc)
		if err != nil {
			skipped.Add(line, sig, err)
			continue
		}
		out = append(out, sig)
	}
	return out, skipped.OrNil()
}

func parseRow(row []string, loc *time.Location) (models.Signal, error) {
	var sig models.Signal
	if len(row) < 3 {
		return sig, fmt.Errorf("%w: want 4 columns, got %d", models.ErrInvalidSignal, len(row))
	}
	ts, ok := util.ParseTime(strings.TrimSpace(row[0]), loc)
	if !ok {
		return sig, fmt.Errorf("%w: timestamp %q", models.ErrInvalidSignal, row[0])
	}
	sig.Timestamp = ts.In(loc)
	sig.Asset = strings.ToUpper(strings.TrimSpace(row[1]))
	sig.Result = models.Result(strings.ToUpper(strings.TrimSpace(row[2])))
	if len(row) > 3 {
		if a := strings.TrimSpace(row[3]); a != "" {
			// pandas writes floats for a column with blanks
			n, err := strconv.ParseFloat(a, 64)
			if err != nil || n != math.Trunc(n) {
				return sig, fmt.Errorf("%w: attempt %q", models.ErrInvalidSignal, a)
			}
			sig.Attempt = int(n)
		}
	}
	return sig, sig.Validate()
}

// WriteCSV writes signals with a header, timestamps formatted in loc.
func WriteCSV(w io.Writer, signals []models.Signal, loc *time.Location) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, s := range signals {
		if err := cw.Write([]string{
			s.Timestamp.In(loc).Format(csvTimeLayout),
			s.Asset,
			string(s.Result),
			s.AttemptLabel(),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ComputeStats summarizes signals the way the SQL stores do.
func ComputeStats(signals []models.Signal) *models.StoreStats {
	st := &models.StoreStats{WinsByAttempt: map[int]int{}}
	assets := make(map[string]struct{})
	for i := range signals {
		s := signals[i]
		st.Total++
		assets[s.Asset] = struct{}{}
		if s.IsWin() {
			st.Wins++
			st.WinsByAttempt[s.Attempt]++
		} else {
			st.Losses++
		}
		if st.First == nil || s.Timestamp.Before(*st.First) {
			st.First = &signals[i].Timestamp
		}
		if st.Last == nil || s.Timestamp.After(*st.Last) {
			st.Last = &signals[i].Timestamp
		}
	}
	st.UniqueAssets = len(assets)
	return st
}
