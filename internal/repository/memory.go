package repository

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/rocketscienceinc/gomoku-backend/internal/entity"
)

// memoryRooms keeps rooms in process memory. State is lost on restart.
type memoryRooms struct {
	mu sync.RWMutex

	rooms   map[int64]*entity.Room
	matches map[int64]*entity.Match
	moves   map[int64][]entity.Move
	codes   map[string]int64

	roomSeq  int64
	matchSeq int64
}

func NewMemoryRoomRepository() RoomStore {
	return &memoryRooms{
		rooms:   make(map[int64]*entity.Room),
		matches: make(map[int64]*entity.Match),
		moves:   make(map[int64][]entity.Move),
		codes:   make(map[string]int64),
	}
}

func (that *memoryRooms) LoadRoom(_ context.Context, id int64) (*entity.Room, error) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	room, ok := that.rooms[id]
	if !ok {
		return nil, ErrRoomNotFound
	}

	return room.Clone(), nil
}

func (that *memoryRooms) LoadMatch(_ context.Context, id int64) (*entity.Match, error) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	stored, ok := that.matches[id]
	if !ok {
		return nil, ErrMatchNotFound
	}

	match := stored.Clone()
	if err := match.Replay(that.moves[id]); err != nil {
		return nil, err
	}

	return match, nil
}

func (that *memoryRooms) Save(_ context.Context, changes Changeset) error {
	if len(changes.NewMoves) > 0 && changes.Match == nil {
		return errMovesWithoutMatch
	}

	that.mu.Lock()
	defer that.mu.Unlock()

	for _, room := range changes.Rooms {
		that.rooms[room.ID] = room.Clone()
	}

	if changes.Match != nil {
		header := changes.Match.Clone()
		header.Moves = nil
		that.matches[header.ID] = header
		that.moves[header.ID] = append(that.moves[header.ID], changes.NewMoves...)
	}

	for _, id := range changes.DeletedRooms {
		delete(that.rooms, id)
	}

	for _, code := range changes.ReleasedCodes {
		delete(that.codes, code)
	}

	return nil
}

func (that *memoryRooms) FindRoomByCode(_ context.Context, code string) (int64, error) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	roomID, ok := that.codes[code]
	if !ok {
		return 0, ErrJoinCodeNotFound
	}

	return roomID, nil
}

func (that *memoryRooms) ListPublicRooms(_ context.Context) ([]*entity.Room, error) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	rooms := make([]*entity.Room, 0)
	for _, room := range that.rooms {
		if room.IsListed() {
			rooms = append(rooms, room.Clone())
		}
	}

	slices.SortFunc(rooms, func(a, b *entity.Room) int {
		return cmp.Compare(a.ID, b.ID)
	})

	return rooms, nil
}

func (that *memoryRooms) NextRoomID(_ context.Context) (int64, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.roomSeq++
	return that.roomSeq, nil
}

func (that *memoryRooms) NextMatchID(_ context.Context) (int64, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.matchSeq++
	return that.matchSeq, nil
}

func (that *memoryRooms) ReserveJoinCode(_ context.Context, code string, roomID int64) (bool, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if _, taken := that.codes[code]; taken {
		return false, nil
	}
	that.codes[code] = roomID

	return true, nil
}

func (that *memoryRooms) ReleaseJoinCode(_ context.Context, code string) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	delete(that.codes, code)
	return nil
}
