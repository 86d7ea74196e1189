package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/rocketscienceinc/gomoku-backend/internal/apperror"
	"github.com/rocketscienceinc/gomoku-backend/internal/entity"
	"github.com/rocketscienceinc/gomoku-backend/internal/pkg"
)

const maxJoinCodeAttempts = 10

var errJoinCodesExhausted = errors.New("no free join code")

// storeAllocator hands out ids and join codes backed by the room store.
type storeAllocator struct {
	store roomStore
}

func (that storeAllocator) NextRoomID(ctx context.Context) (int64, error) {
	id, err := that.store.NextRoomID(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", apperror.ErrStorageUnavailable, err)
	}

	return id, nil
}

func (that storeAllocator) NextMatchID(ctx context.Context) (int64, error) {
	id, err := that.store.NextMatchID(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", apperror.ErrStorageUnavailable, err)
	}

	return id, nil
}

// ReserveJoinCode draws random codes until one is free.
func (that storeAllocator) ReserveJoinCode(ctx context.Context, roomID int64) (string, error) {
	for range maxJoinCodeAttempts {
		code, err := pkg.GenerateJoinCode(entity.JoinCodeLength)
		if err != nil {
			return "", err
		}

		ok, err := that.store.ReserveJoinCode(ctx, code, roomID)
		if err != nil {
			return "", fmt.Errorf("%w: %w", apperror.ErrStorageUnavailable, err)
		}
		if ok {
			return code, nil
		}
	}

	return "", fmt.Errorf("%w: %w", apperror.ErrStorageUnavailable, errJoinCodesExhausted)
}
