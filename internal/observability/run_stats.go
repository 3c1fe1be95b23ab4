// Package observability provides per-run pipeline statistics for monitoring
// row survival across stages.
package observability

import (
	"log"
	"sort"
	"sync"
	"time"
)

// RunStats tracks row counts and drop reasons per pipeline stage.
type RunStats struct {
	mu     sync.Mutex
	stages map[string]*StageStats
	order  []string
}

// StageStats holds the outcome of one pipeline stage.
type StageStats struct {
	Stage    string
	RowsIn   int
	RowsOut  int
	Dropped  map[string]int // drop reason → count
	Duration time.Duration
	started  time.Time
}

// NewRunStats creates a run statistics tracker.
func NewRunStats() *RunStats {
	return &RunStats{stages: make(map[string]*StageStats)}
}

// StartStage begins tracking a stage. Calling it twice for the same stage
// resets that stage's stats.
func (r *RunStats) StartStage(stage string, rowsIn int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.stages[stage]; !exists {
		r.order = append(r.order, stage)
	}
	r.stages[stage] = &StageStats{
		Stage:   stage,
		RowsIn:  rowsIn,
		Dropped: make(map[string]int),
		started: time.Now(),
	}
}

// RecordDrop counts one dropped row for the stage under the given reason.
func (r *RunStats) RecordDrop(stage, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, exists := r.stages[stage]; exists {
		s.Dropped[reason]++
	}
}

// EndStage finishes tracking a stage with its surviving row count.
func (r *RunStats) EndStage(stage string, rowsOut int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, exists := r.stages[stage]; exists {
		s.RowsOut = rowsOut
		s.Duration = time.Since(s.started)
	}
}

// Stage returns a copy of one stage's stats, or nil if never started.
func (r *RunStats) Stage(stage string) *StageStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, exists := r.stages[stage]
	if !exists {
		return nil
	}
	return copyStage(s)
}

// Stages returns all stage stats in start order.
func (r *RunStats) Stages() []*StageStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*StageStats, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, copyStage(r.stages[name]))
	}
	return out
}

// LogSummary writes one line per stage in start order.
func (r *RunStats) LogSummary() {
	for _, s := range r.Stages() {
		if len(s.Dropped) == 0 {
			log.Printf("observability: stage=%s in=%d out=%d duration=%s",
				s.Stage, s.RowsIn, s.RowsOut, s.Duration.Round(time.Millisecond))
			continue
		}

		reasons := make([]string, 0, len(s.Dropped))
		for reason := range s.Dropped {
			reasons = append(reasons, reason)
		}
		sort.Strings(reasons)
		for _, reason := range reasons {
			log.Printf("observability: stage=%s dropped %d rows (%s)",
				s.Stage, s.Dropped[reason], reason)
		}
		log.Printf("observability: stage=%s in=%d out=%d duration=%s",
			s.Stage, s.RowsIn, s.RowsOut, s.Duration.Round(time.Millisecond))
	}
}

func copyStage(s *StageStats) *StageStats {
	dropped := make(map[string]int, len(s.Dropped))
	for k, v := range s.Dropped {
		dropped[k] = v
	}
	return &StageStats{
		Stage:    s.Stage,
		RowsIn:   s.RowsIn,
		RowsOut:  s.RowsOut,
		Dropped:  dropped,
		Duration: s.Duration,
	}
}
