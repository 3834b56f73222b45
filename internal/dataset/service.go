package dataset

import (
	"context"
	"fmt"
	"sync"

	"github.com/sgannotator/sg-annotator/internal/bus"
	"github.com/sgannotator/sg-annotator/internal/config"
	apperrors "github.com/sgannotator/sg-annotator/internal/pkg/errors"
	"github.com/sgannotator/sg-annotator/internal/pkg/logger"
	"github.com/sgannotator/sg-annotator/internal/scenegraph"
)

// Service holds the currently loaded annotation dataset and serializes
// access to it. One dataset is open at a time, matching the annotation
// workflow of a single CSV file per session.
type Service struct {
	mu            sync.RWMutex
	path          string
	rows          []Row
	createBackups bool

	eventBus bus.Bus
	log      *logger.Logger
}

// NewService creates a dataset service. The event bus is optional.
func NewService(cfg config.DatasetConfig, eventBus bus.Bus, log *logger.Logger) *Service {
	return &Service{
		createBackups: cfg.CreateBackups,
		eventBus:      eventBus,
		log:           log,
	}
}

// Open loads and validates a CSV file, replacing any previously loaded
// dataset. Returns the number of rows loaded.
func (s *Service) Open(ctx context.Context, path string) (int, error) {
	rows, err := LoadCSV(path)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	s.path = path
	s.rows = rows
	s.mu.Unlock()

	s.log.WithDataset(path).Info("dataset opened", "rows", len(rows))
	s.publish(ctx, bus.TopicDatasetOpened, map[string]any{
		"path": path,
		"rows": len(rows),
	})

	return len(rows), nil
}

// Loaded reports whether a dataset is currently open.
func (s *Service) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.path != ""
}

// Path returns the path of the open dataset.
func (s *Service) Path() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.path
}

// Rows returns a copy of the loaded rows.
func (s *Service) Rows() []Row {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Row, len(s.rows))
	copy(out, s.rows)
	return out
}

// RowByIndex returns the row at index.
func (s *Service) RowByIndex(index int) (Row, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if index < 0 || index >= len(s.rows) {
		return Row{}, false
	}
	return s.rows[index], true
}

// RowByID returns the first row with the given id.
func (s *Service) RowByID(id string) (Row, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, row := range s.rows {
		if row.ID == id {
			return row, true
		}
	}
	return Row{}, false
}

// UpdateRow applies an update to the row with the given id, validates any
// new scenegraph, and saves the dataset back to disk. On a failed save
// the in-memory row is reverted so memory and file stay consistent.
func (s *Service) UpdateRow(ctx context.Context, id string, update RowUpdate) error {
	if update.Empty() {
		return apperrors.ValidationError("no valid update fields")
	}

	if update.Scenegraph != nil && *update.Scenegraph != "" {
		if err := scenegraph.ValidateDocument([]byte(*update.Scenegraph)); err != nil {
			return apperrors.ValidationError(fmt.Sprintf("scenegraph invalid: %v", err))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return apperrors.ValidationError("no dataset loaded")
	}

	idx := -1
	for i, row := range s.rows {
		if row.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return apperrors.NotFoundError(fmt.Sprintf("row %s", id))
	}

	previous := s.rows[idx]
	applyUpdate(&s.rows[idx], update)

	backupPath, err := SaveCSV(s.path, s.rows, s.createBackups)
	if err != nil {
		s.rows[idx] = previous
		return err
	}
	if backupPath != "" {
		s.log.WithDataset(s.path).Debug("backup created", "backup", backupPath)
	}

	s.publish(ctx, bus.TopicRowUpdated, map[string]any{
		"id":    id,
		"index": idx,
	})
	s.publish(ctx, bus.TopicDatasetSaved, map[string]any{
		"path": s.path,
		"rows": len(s.rows),
	})

	return nil
}

// Progress returns annotation progress counts.
func (s *Service) Progress() Progress {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p := Progress{Total: len(s.rows)}
	for _, row := range s.rows {
		if row.IsAnnotated {
			p.Annotated++
		}
		if row.IsReasonable {
			p.Reasonable++
		}
	}
	return p
}

// Summaries returns the navigation view of all rows.
func (s *Service) Summaries() []RowSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]RowSummary, len(s.rows))
	for i, row := range s.rows {
		out[i] = RowSummary{
			Index:        i,
			ID:           row.ID,
			IsAnnotated:  row.IsAnnotated,
			IsReasonable: row.IsReasonable,
		}
	}
	return out
}

func applyUpdate(row *Row, update RowUpdate) {
	if update.Input != nil {
		row.Input = *update.Input
	}
	if update.Scenegraph != nil {
		row.Scenegraph = *update.Scenegraph
	}
	if update.IsReasonable != nil {
		row.IsReasonable = *update.IsReasonable
	}
	if update.IsAnnotated != nil {
		row.IsAnnotated = *update.IsAnnotated
	}
}

func (s *Service) publish(ctx context.Context, topic string, payload any) {
	if s.eventBus == nil {
		return
	}
	event := bus.NewEvent(topic, "dataset", payload)
	if err := s.eventBus.Publish(ctx, topic, event); err != nil {
		s.log.WithError(err).Warn("failed to publish dataset event", "topic", topic)
	}
}
