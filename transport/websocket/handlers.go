package websocket

import (
	"context"
	"fmt"

	"github.com/rocketscienceinc/gomoku-backend/internal/entity"
	"github.com/rocketscienceinc/gomoku-backend/internal/lifecycle"
	"github.com/rocketscienceinc/gomoku-backend/internal/usecase"
)

func (that *Server) handleCreateRoom(ctx context.Context, c *client, req *RequestPayload) (*ResponsePayload, error) {
	agg, err := that.rooms.CreateRoom(ctx, c.userID, req.Name, req.Private)
	if err != nil {
		return nil, err
	}

	that.hub.track(c.userID, agg.Room.ID)

	return roomResponse(agg, c.userID), nil
}

func (that *Server) handleJoinRoom(ctx context.Context, c *client, req *RequestPayload) (*ResponsePayload, error) {
	var (
		agg *lifecycle.Aggregate
		err error
	)

	switch {
	case req.RoomID != 0:
		agg, err = that.rooms.JoinRoom(ctx, req.RoomID, c.userID, req.Code)
	case req.Code != "":
		agg, err = that.rooms.JoinByCode(ctx, req.Code, c.userID)
	default:
		return nil, fmt.Errorf("%w: room_id or code is required", errBadRequest)
	}
	if err != nil {
		return nil, err
	}

	that.hub.track(c.userID, agg.Room.ID)

	return roomResponse(agg, c.userID), nil
}

func (that *Server) handleLeaveRoom(ctx context.Context, c *client, req *RequestPayload) (*ResponsePayload, error) {
	if err := requireRoom(req); err != nil {
		return nil, err
	}

	if err := that.rooms.LeaveRoom(ctx, req.RoomID, c.userID); err != nil {
		return nil, err
	}

	that.hub.untrack(c.userID, req.RoomID)

	return &ResponsePayload{}, nil
}

func (that *Server) handleSetReady(ctx context.Context, c *client, req *RequestPayload) (*ResponsePayload, error) {
	if err := requireRoom(req); err != nil {
		return nil, err
	}

	ready := true
	if req.Ready != nil {
		ready = *req.Ready
	}

	agg, err := that.rooms.SetReady(ctx, req.RoomID, c.userID, ready)
	if err != nil {
		return nil, err
	}

	return roomResponse(agg, c.userID), nil
}

func (that *Server) handleGetRoom(ctx context.Context, c *client, req *RequestPayload) (*ResponsePayload, error) {
	if err := requireRoom(req); err != nil {
		return nil, err
	}

	agg, err := that.rooms.GetRoom(ctx, req.RoomID)
	if err != nil {
		return nil, err
	}

	return roomResponse(agg, c.userID), nil
}

func (that *Server) handleListRooms(ctx context.Context, _ *client, _ *RequestPayload) (*ResponsePayload, error) {
	rooms, err := that.rooms.ListPublicRooms(ctx)
	if err != nil {
		return nil, err
	}

	return &ResponsePayload{Rooms: rooms}, nil
}

func (that *Server) handleGameTurn(ctx context.Context, c *client, req *RequestPayload) (*ResponsePayload, error) {
	if err := requireRoom(req); err != nil {
		return nil, err
	}

	if req.X == nil || req.Y == nil {
		return nil, fmt.Errorf("%w: x and y are required", errBadRequest)
	}

	agg, err := that.rooms.SubmitMove(ctx, req.RoomID, c.userID, entity.Position{X: *req.X, Y: *req.Y})
	if err != nil {
		return nil, err
	}

	return roomResponse(agg, c.userID), nil
}

func (that *Server) handleSurrender(ctx context.Context, c *client, req *RequestPayload) (*ResponsePayload, error) {
	if err := requireRoom(req); err != nil {
		return nil, err
	}

	agg, err := that.rooms.Surrender(ctx, req.RoomID, c.userID)
	if err != nil {
		return nil, err
	}

	return roomResponse(agg, c.userID), nil
}

func (that *Server) handleRematchRequest(ctx context.Context, c *client, req *RequestPayload) (*ResponsePayload, error) {
	if err := requireRoom(req); err != nil {
		return nil, err
	}

	agg, err := that.rooms.RequestRematch(ctx, req.RoomID, c.userID)
	if err != nil {
		return nil, err
	}

	resp := roomResponse(agg, c.userID)
	if agg.Room.RematchRoomID != nil {
		resp.NewRoomID = *agg.Room.RematchRoomID
		that.hub.track(c.userID, resp.NewRoomID)
	}

	return resp, nil
}

func (that *Server) handleRematchAccept(ctx context.Context, c *client, req *RequestPayload) (*ResponsePayload, error) {
	if err := requireRoom(req); err != nil {
		return nil, err
	}

	newRoomID, err := that.rooms.AcceptRematch(ctx, req.RoomID, c.userID)
	if err != nil {
		return nil, err
	}

	if newRoomID != 0 {
		that.hub.track(c.userID, newRoomID)
	}

	return &ResponsePayload{NewRoomID: newRoomID}, nil
}

func (that *Server) handleRematchDecline(ctx context.Context, c *client, req *RequestPayload) (*ResponsePayload, error) {
	if err := requireRoom(req); err != nil {
		return nil, err
	}

	agg, err := that.rooms.DeclineRematch(ctx, req.RoomID, c.userID)
	if err != nil {
		return nil, err
	}

	return roomResponse(agg, c.userID), nil
}

func requireRoom(req *RequestPayload) error {
	if req.RoomID <= 0 {
		return fmt.Errorf("%w: room_id is required", errBadRequest)
	}

	return nil
}

func roomResponse(agg *lifecycle.Aggregate, viewerID int64) *ResponsePayload {
	return &ResponsePayload{Room: usecase.NewRoomView(agg, viewerID)}
}
