package repository

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rocketscienceinc/gomoku-backend/internal/entity"
)

const defaultHistoryLimit = 50

type dbHistory struct {
	db *gorm.DB
}

// NewHistoryRepository stores game history in the game_histories table.
func NewHistoryRepository(db *gorm.DB) (HistoryStore, error) {
	if err := db.AutoMigrate(&entity.GameHistory{}); err != nil {
		return nil, fmt.Errorf("failed to migrate game history: %w", err)
	}

	return &dbHistory{
		db: db,
	}, nil
}

// Record upserts by match id. The latest conclusion of a match replaces an earlier one.
func (that *dbHistory) Record(ctx context.Context, history *entity.GameHistory) error {
	err := that.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "match_id"}},
			UpdateAll: true,
		}).
		Create(history).Error
	if err != nil {
		return fmt.Errorf("failed to record game history: %w", err)
	}

	return nil
}

func (that *dbHistory) ListByUser(ctx context.Context, userID int64, limit int) ([]entity.GameHistory, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	var histories []entity.GameHistory
	err := that.db.WithContext(ctx).
		Where("first_player_id = ? OR second_player_id = ?", userID, userID).
		Order("ended_at DESC").
		Limit(limit).
		Find(&histories).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list game history: %w", err)
	}

	return histories, nil
}

type memoryHistory struct {
	mu      sync.RWMutex
	records map[int64]entity.GameHistory
}

// NewMemoryHistoryRepository is used when no database is configured.
func NewMemoryHistoryRepository() HistoryStore {
	return &memoryHistory{
		records: make(map[int64]entity.GameHistory),
	}
}

func (that *memoryHistory) Record(_ context.Context, history *entity.GameHistory) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.records[history.MatchID] = *history

	return nil
}

func (that *memoryHistory) ListByUser(_ context.Context, userID int64, limit int) ([]entity.GameHistory, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	that.mu.RLock()
	defer that.mu.RUnlock()

	histories := make([]entity.GameHistory, 0)
	for _, record := range that.records {
		if record.Involves(userID) {
			histories = append(histories, record)
		}
	}

	slices.SortFunc(histories, func(a, b entity.GameHistory) int {
		return cmp.Compare(b.EndedAt.UnixNano(), a.EndedAt.UnixNano())
	})

	if len(histories) > limit {
		histories = histories[:limit]
	}

	return histories, nil
}
