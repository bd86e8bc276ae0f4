package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"SignalPilot/internal/domain/models"
	"SignalPilot/internal/domain/repository"
	applogger "SignalPilot/pkg/logger"
	"SignalPilot/pkg/util"
)

// FileArchive appends live analyses to <dir>/analysis_YYYY-MM-DD.jsonl and
// session reports to <dir>/session_<id>.json. With a producer set, every
// analysis is also published to the analysis topic.
type FileArchive struct {
	dir      string
	loc      *time.Location
	producer MessageProducer
	topic    string
	l        *applogger.Logger
	mu       sync.Mutex
}

var _ repository.AnalysisArchive = (*FileArchive)(nil)

// ArchiveOption configures FileArchive.
type ArchiveOption func(*FileArchive)

// WithArchiveKafka publishes analyses to topic.
func WithArchiveKafka(p MessageProducer, topic string) ArchiveOption {
	return func(a *FileArchive) {
		a.producer = p
		a.topic = topic
	}
}

func WithArchiveLogger(l *applogger.Logger) ArchiveOption {
	return func(a *FileArchive) { a.l = l }
}

func NewFileArchive(dir string, loc *time.Location, opts ...ArchiveOption) *FileArchive {
	if loc == nil {
		loc = time.UTC
	}
	a := &FileArchive{dir: dir, loc: loc, l: applogger.Nop()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Path is the JSONL file holding the analyses of day.
func (a *FileArchive) Path(day time.Time) string {
	return filepath.Join(a.dir, "analysis_"+day.In(a.loc).Format(util.DayLayout)+".jsonl")
}

func (a *FileArchive) Append(ctx context.Context, entry *models.AnalysisEntry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode analysis: %w", err)
	}
	if err := a.appendLine(a.Path(entry.Timestamp), line); err != nil {
		return err
	}
	if a.producer != nil {
		if err := a.producer.Publish(ctx, a.topic, []byte(entry.ID), json.RawMessage(line)); err != nil {
			// the file copy is authoritative
			a.l.Warn("analysis publish failed",
				applogger.String("id", entry.ID),
				applogger.String("topic", a.topic),
				applogger.Error(err),
			)
		}
	}
	return nil
}

func (a *FileArchive) appendLine(path string, line []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return fmt.Errorf("analysis archive: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("analysis archive: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		f.Close()
		return fmt.Errorf("analysis archive: %w", err)
	}
	return f.Close()
}

func (a *FileArchive) SaveReport(_ context.Context, report *models.SessionReport) error {
	b, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session report: %w", err)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return fmt.Errorf("analysis archive: %w", err)
	}
	path := filepath.Join(a.dir, "session_"+report.ID+".json")
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("analysis archive: %w", err)
	}
	return nil
}

// ReadAnalyses returns the analyses archived for day, oldest first.
func (a *FileArchive) ReadAnalyses(day time.Time) ([]models.AnalysisEntry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	f, err := os.Open(a.Path(day))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("analysis archive: %w", err)
	}
	defer f.Close()

	var out []models.AnalysisEntry
	dec := json.NewDecoder(f)
	for dec.More() {
		var e models.AnalysisEntry
		if err := dec.Decode(&e); err != nil {
			return out, fmt.Errorf("analysis archive: %w", err)
		}
		out = append(out, e)
	}
	return out, nil
}
