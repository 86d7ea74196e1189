package repository

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/rocketscienceinc/gomoku-backend/internal/entity"
)

const (
	publicRoomsKey = "rooms:public"
	roomSeqKey     = "seq:room"
	matchSeqKey    = "seq:match"
)

var errMovesWithoutMatch = errors.New("moves without a match")

func roomKey(id int64) string {
	return "room:" + strconv.FormatInt(id, 10)
}

func matchKey(id int64) string {
	return "match:" + strconv.FormatInt(id, 10)
}

func movesKey(matchID int64) string {
	return matchKey(matchID) + ":moves"
}

func joinCodeKey(code string) string {
	return "joincode:" + code
}

type dbRoom struct {
	client *redis.Client
}

func NewRoomRepository(client *redis.Client) RoomStore {
	return &dbRoom{
		client: client,
	}
}

func (that *dbRoom) LoadRoom(ctx context.Context, id int64) (*entity.Room, error) {
	response, err := that.client.Get(ctx, roomKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrRoomNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get room %d: %w", id, err)
	}

	var room entity.Room
	if err = json.Unmarshal([]byte(response), &room); err != nil {
		return nil, fmt.Errorf("failed to unmarshal room: %w", err)
	}

	return &room, nil
}

func (that *dbRoom) LoadMatch(ctx context.Context, id int64) (*entity.Match, error) {
	pipe := that.client.Pipeline()
	headerCmd := pipe.Get(ctx, matchKey(id))
	movesCmd := pipe.LRange(ctx, movesKey(id), 0, -1)

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to get match %d: %w", id, err)
	}

	header, err := headerCmd.Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMatchNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get match %d: %w", id, err)
	}

	var match entity.Match
	if err = json.Unmarshal([]byte(header), &match); err != nil {
		return nil, fmt.Errorf("failed to unmarshal match: %w", err)
	}

	rawMoves, err := movesCmd.Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get moves of match %d: %w", id, err)
	}

	moves := make([]entity.Move, 0, len(rawMoves))
	for _, raw := range rawMoves {
		var move entity.Move
		if err = json.Unmarshal([]byte(raw), &move); err != nil {
			return nil, fmt.Errorf("failed to unmarshal move: %w", err)
		}
		moves = append(moves, move)
	}

	if err = match.Replay(moves); err != nil {
		return nil, fmt.Errorf("failed to replay match %d: %w", id, err)
	}

	return &match, nil
}

// Save writes the changeset in one MULTI/EXEC transaction. Moves are appended to the match's log.
func (that *dbRoom) Save(ctx context.Context, changes Changeset) error {
	if len(changes.NewMoves) > 0 && changes.Match == nil {
		return errMovesWithoutMatch
	}

	payloads := make(map[int64][]byte, len(changes.Rooms))
	for _, room := range changes.Rooms {
		roomJSON, err := json.Marshal(room)
		if err != nil {
			return fmt.Errorf("could not marshal room: %w", err)
		}
		payloads[room.ID] = roomJSON
	}

	var matchJSON []byte
	if changes.Match != nil {
		var err error
		if matchJSON, err = json.Marshal(changes.Match); err != nil {
			return fmt.Errorf("could not marshal match: %w", err)
		}
	}

	moves := make([]any, 0, len(changes.NewMoves))
	for _, move := range changes.NewMoves {
		moveJSON, err := json.Marshal(move)
		if err != nil {
			return fmt.Errorf("could not marshal move: %w", err)
		}
		moves = append(moves, moveJSON)
	}

	_, err := that.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, room := range changes.Rooms {
			pipe.Set(ctx, roomKey(room.ID), payloads[room.ID], 0)
			if room.IsListed() {
				pipe.SAdd(ctx, publicRoomsKey, room.ID)
			} else {
				pipe.SRem(ctx, publicRoomsKey, room.ID)
			}
		}

		if changes.Match != nil {
			pipe.Set(ctx, matchKey(changes.Match.ID), matchJSON, 0)
		}

		if len(moves) > 0 {
			pipe.RPush(ctx, movesKey(changes.Match.ID), moves...)
		}

		for _, id := range changes.DeletedRooms {
			pipe.Del(ctx, roomKey(id))
			pipe.SRem(ctx, publicRoomsKey, id)
		}

		for _, code := range changes.ReleasedCodes {
			pipe.Del(ctx, joinCodeKey(code))
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save changeset: %w", err)
	}

	return nil
}

func (that *dbRoom) FindRoomByCode(ctx context.Context, code string) (int64, error) {
	roomID, err := that.client.Get(ctx, joinCodeKey(code)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, ErrJoinCodeNotFound
	}

	if err != nil {
		return 0, fmt.Errorf("failed to get join code: %w", err)
	}

	return roomID, nil
}

func (that *dbRoom) ListPublicRooms(ctx context.Context) ([]*entity.Room, error) {
	ids, err := that.client.SMembers(ctx, publicRoomsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list public rooms: %w", err)
	}

	if len(ids) == 0 {
		return []*entity.Room{}, nil
	}

	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, "room:"+id)
	}

	values, err := that.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get public rooms: %w", err)
	}

	rooms := make([]*entity.Room, 0, len(values))
	for _, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue
		}

		var room entity.Room
		if err = json.Unmarshal([]byte(raw), &room); err != nil {
			return nil, fmt.Errorf("failed to unmarshal room: %w", err)
		}

		if room.IsListed() {
			rooms = append(rooms, &room)
		}
	}

	slices.SortFunc(rooms, func(a, b *entity.Room) int {
		return cmp.Compare(a.ID, b.ID)
	})

	return rooms, nil
}

func (that *dbRoom) NextRoomID(ctx context.Context) (int64, error) {
	id, err := that.client.Incr(ctx, roomSeqKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to allocate room id: %w", err)
	}

	return id, nil
}

func (that *dbRoom) NextMatchID(ctx context.Context) (int64, error) {
	id, err := that.client.Incr(ctx, matchSeqKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to allocate match id: %w", err)
	}

	return id, nil
}

func (that *dbRoom) ReserveJoinCode(ctx context.Context, code string, roomID int64) (bool, error) {
	ok, err := that.client.SetNX(ctx, joinCodeKey(code), roomID, 0).Result()
	if err != nil {
		return false, fmt.Errorf("failed to reserve join code: %w", err)
	}

	return ok, nil
}

func (that *dbRoom) ReleaseJoinCode(ctx context.Context, code string) error {
	if err := that.client.Del(ctx, joinCodeKey(code)).Err(); err != nil {
		return fmt.Errorf("failed to release join code: %w", err)
	}

	return nil
}
