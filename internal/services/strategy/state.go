package strategy

import (
	"sync"
	"time"

	"SignalPilot/internal/domain/models"
)

const (
	statusWaiting = "Aguardando análise inicial"
	statusPaused  = "Trading pausado - condições desfavoráveis"
)

// State is the live strategy state. A recommendation only replaces the
// current strategy when it differs and its confidence reaches the threshold.
type State struct {
	mu           sync.RWMutex
	threshold    float64
	current      *models.StrategyType
	lastAnalysis time.Time
	lastChange   time.Time
	history      []models.AnalysisRecord
	changes      int
	maxHistory   int
}

// NewState creates an empty state that keeps at most maxHistory analyses.
func NewState(threshold float64, maxHistory int) *State {
	if maxHistory <= 0 {
		maxHistory = 500
	}
	return &State{threshold: threshold, maxHistory: maxHistory}
}

// SetThreshold changes the confidence required to switch strategy.
func (s *State) SetThreshold(v float64) {
	s.mu.Lock()
	s.threshold = v
	s.mu.Unlock()
}

// Threshold is the confidence required to switch strategy.
func (s *State) Threshold() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.threshold
}

// Current returns the current strategy, or nil before the first analysis.
func (s *State) Current() *models.StrategyType {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil
	}
	v := *s.current
	return &v
}

// ShouldChange reports whether c would replace the current strategy.
func (s *State) ShouldChange(c models.MarketConditions) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.shouldChange(c)
}

func (s *State) shouldChange(c models.MarketConditions) bool {
	if s.current == nil {
		return true
	}
	return c.RecommendedStrategy != *s.current && c.ConfidenceLevel >= s.threshold
}

// Update records the analysis and applies the recommendation when allowed.
// It returns the previous strategy and whether a change happened.
func (s *State) Update(c models.MarketConditions, now time.Time) (*models.StrategyType, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.current
	changed := s.shouldChange(c)
	if changed {
		v := c.RecommendedStrategy
		s.current = &v
		s.lastChange = now
		if prev != nil {
			s.changes++
		}
	}
	s.lastAnalysis = now
	s.history = append(s.history, models.AnalysisRecord{Timestamp: now, Conditions: c, Changed: changed})
	if len(s.history) > s.maxHistory {
		s.history = s.history[len(s.history)-s.maxHistory:]
	}
	return prev, changed
}

// Recent returns up to n most recent analyses, oldest first.
func (s *State) Recent(n int) []models.AnalysisRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n <= 0 || n > len(s.history) {
		n = len(s.history)
	}
	out := make([]models.AnalysisRecord, n)
	copy(out, s.history[len(s.history)-n:])
	return out
}

// Info describes the state for reports and the API.
func (s *State) Info(recent int) models.StrategyInfo {
	s.mu.RLock()
	info := models.StrategyInfo{Status: statusWaiting, TotalAnalyses: len(s.history), StrategyChanges: s.changes}
	if s.current != nil {
		v := *s.current
		info.Strategy = &v
		info.Status = Status(v)
		if m, ok := models.StrategyCatalog[v]; ok {
			info.Metrics = &m
		}
	}
	if !s.lastAnalysis.IsZero() {
		t := s.lastAnalysis
		info.LastAnalysis = &t
	}
	s.mu.RUnlock()
	info.RecentAnalyses = s.Recent(recent)
	return info
}

// Status is the human readable status of a strategy.
func Status(st models.StrategyType) string {
	switch st {
	case models.StrategyPause:
		return statusPaused
	case models.StrategyMartingaleConservative:
		return "Ativo - Martingale Conservative"
	case models.StrategyInfinityConservative:
		return "Ativo - Infinity Conservative"
	default:
		return statusWaiting
	}
}
