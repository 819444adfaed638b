package history

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hypnoticwarchief/cratex/internal/kvstore"
	"github.com/hypnoticwarchief/cratex/pkg/models"
)

// RollbackWindow is how long an execute run stays reversible
const RollbackWindow = 24 * time.Hour

var (
	ErrNotFound          = errors.New("Conversion record not found.")
	ErrExpired           = errors.New("Rollback period expired. Conversions can only be reversed within 24 hours.")
	ErrAlreadyRolledBack = errors.New("This conversion has already been rolled back.")
	ErrNoRewinder        = errors.New("history rollback has no pipeline attached")
)

// Rewinder drives the live pipeline through a history rollback
type Rewinder interface {
	RollbackHistory(ctx context.Context, id string) error
}

// Store keeps executed runs, most recent first
type Store struct {
	kv       kvstore.Store
	logger   *slog.Logger
	rewinder Rewinder
	now      func() time.Time
	mu       sync.Mutex
}

// New creates a history store on top of kv
func New(kv kvstore.Store, logger *slog.Logger) *Store {
	return &Store{
		kv:     kv,
		logger: logger.With("component", "history"),
		now:    time.Now,
	}
}

// SetRewinder attaches the pipeline that animates rollbacks
func (s *Store) SetRewinder(r Rewinder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rewinder = r
}

// SetClock replaces the time source
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// NewItem builds an active record stamped with now
func NewItem(now time.Time, fileCount int, description string) models.HistoryItem {
	return models.HistoryItem{
		ID:          ulid.MustNew(ulid.Timestamp(now), rand.Reader).String(),
		Timestamp:   now.UnixMilli(),
		FileCount:   fileCount,
		Description: description,
		Status:      models.HistoryActive,
	}
}

// List returns all records. Missing or unreadable storage yields an empty list.
func (s *Store) List() []models.HistoryItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Record prepends item and persists the list
func (s *Store) Record(item models.HistoryItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := kvstore.UpdateJSON(s.kv, kvstore.KeyHistory, func(items []models.HistoryItem, _ bool) ([]models.HistoryItem, error) {
		return append([]models.HistoryItem{item}, items...), nil
	})
	if err != nil {
		return fmt.Errorf("failed to save history: %w", err)
	}
	s.logger.Info("Recorded execution", "id", item.ID, "files", item.FileCount)
	return nil
}

// Rollback reverses the run identified by id
func (s *Store) Rollback(ctx context.Context, id string) error {
	s.mu.Lock()
	item, err := s.checkRollback(id)
	rewinder := s.rewinder
	s.mu.Unlock()
	if err != nil {
		return err
	}
	if rewinder == nil {
		return ErrNoRewinder
	}

	s.logger.Info("Rolling back execution", "id", item.ID, "files", item.FileCount)
	if err := rewinder.RollbackHistory(ctx, id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err = kvstore.UpdateJSON(s.kv, kvstore.KeyHistory, func(items []models.HistoryItem, _ bool) ([]models.HistoryItem, error) {
		for i := range items {
			if items[i].ID == id {
				items[i].Status = models.HistoryRolledBack
			}
		}
		return items, nil
	})
	if err != nil {
		return fmt.Errorf("failed to save history: %w", err)
	}
	return nil
}

func (s *Store) checkRollback(id string) (models.HistoryItem, error) {
	for _, item := range s.load() {
		if item.ID != id {
			continue
		}
		age := s.now().Sub(time.UnixMilli(item.Timestamp))
		if age > RollbackWindow {
			return item, ErrExpired
		}
		if item.Status == models.HistoryRolledBack {
			return item, ErrAlreadyRolledBack
		}
		return item, nil
	}
	return models.HistoryItem{}, ErrNotFound
}

func (s *Store) load() []models.HistoryItem {
	var items []models.HistoryItem
	found, err := kvstore.GetJSON(s.kv, kvstore.KeyHistory, &items)
	if err != nil {
		s.logger.Warn("Ignoring unreadable history", "error", err)
		return []models.HistoryItem{}
	}
	if !found || items == nil {
		return []models.HistoryItem{}
	}
	return items
}
