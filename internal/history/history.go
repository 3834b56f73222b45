// Package history records recent evaluation runs for later inspection.
package history

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sgannotator/sg-annotator/internal/config"
)

// Run is one recorded evaluation run. Results holds the serialized
// metric map so the store stays decoupled from the evaluation package.
type Run struct {
	ID             string          `json:"id"`
	EvaluationType string          `json:"evaluation_type"`
	KValues        []int           `json:"k_values"`
	Results        json.RawMessage `json:"results"`
	Timestamp      time.Time       `json:"timestamp"`
}

// NewRun builds a run record with a fresh id and current timestamp.
func NewRun(evalType string, kValues []int, results any) (Run, error) {
	data, err := json.Marshal(results)
	if err != nil {
		return Run{}, err
	}
	return Run{
		ID:             uuid.NewString(),
		EvaluationType: evalType,
		KValues:        kValues,
		Results:        data,
		Timestamp:      time.Now().UTC(),
	}, nil
}

// Store persists evaluation runs.
type Store interface {
	// Save records a run.
	Save(ctx context.Context, run Run) error

	// Recent returns up to limit runs, newest first.
	Recent(ctx context.Context, limit int) ([]Run, error)

	// Close releases resources.
	Close() error
}

// MemoryStore keeps the most recent runs in a bounded ring.
type MemoryStore struct {
	mu   sync.RWMutex
	runs []Run
	size int
}

// NewMemoryStore creates a memory store holding up to size runs.
func NewMemoryStore(size int) *MemoryStore {
	if size < 1 {
		size = 100
	}
	return &MemoryStore{size: size}
}

func (m *MemoryStore) Save(ctx context.Context, run Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.runs = append(m.runs, run)
	if len(m.runs) > m.size {
		m.runs = m.runs[len(m.runs)-m.size:]
	}
	return nil
}

func (m *MemoryStore) Recent(ctx context.Context, limit int) ([]Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 || limit > len(m.runs) {
		limit = len(m.runs)
	}

	out := make([]Run, 0, limit)
	for i := len(m.runs) - 1; i >= len(m.runs)-limit; i-- {
		out = append(out, m.runs[i])
	}
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }

// NewStore creates a Store based on the configuration.
func NewStore(cfg config.HistoryConfig) (Store, error) {
	if cfg.Type == "redis" {
		return NewRedisStore(cfg.RedisURL, time.Duration(cfg.TTLHours)*time.Hour)
	}
	return NewMemoryStore(cfg.Size), nil
}
