package dataset

import (
	"context"
	"sync"
	"sync/atomic"

	"college-predictor/internal/cutoff"
)

// Row is one source row with a raw cell per category column.
type Row struct {
	Institution string            `json:"institution" yaml:"institution"`
	Program     string            `json:"program" yaml:"program"`
	Cutoffs     map[string]string `json:"cutoffs" yaml:"cutoffs"`
}

// Memory is an in-process Dataset used for fixtures and tests.
type Memory struct {
	mu    sync.RWMutex
	rows  map[cutoff.Round][]Row
	err   error
	calls atomic.Int64
}

func NewMemory() *Memory {
	return &Memory{rows: make(map[cutoff.Round][]Row)}
}

// Add appends rows to a round.
func (m *Memory) Add(round cutoff.Round, rows ...Row) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[round] = append(m.rows[round], rows...)
	return m
}

// FailWith makes every later scan return err. A nil err clears it.
func (m *Memory) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls reports how many scans were served.
func (m *Memory) Calls() int64 {
	return m.calls.Load()
}

func (m *Memory) ScanRound(ctx context.Context, round cutoff.Round, category cutoff.Category) ([]cutoff.CutoffRecord, error) {
	m.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}

	rows := m.rows[round]
	records := make([]cutoff.CutoffRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, cutoff.NewRecord(r.Institution, r.Program, r.Cutoffs[string(category)]))
	}
	return records, nil
}
