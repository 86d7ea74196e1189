package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rocketscienceinc/gomoku-backend/internal/apperror"
	"github.com/rocketscienceinc/gomoku-backend/internal/entity"
	"github.com/rocketscienceinc/gomoku-backend/internal/usecase"
)

const (
	actionRoomCreate     = "room:create"
	actionRoomJoin       = "room:join"
	actionRoomLeave      = "room:leave"
	actionRoomReady      = "room:ready"
	actionRoomGet        = "room:get"
	actionRoomList       = "room:list"
	actionGameTurn       = "game:turn"
	actionGameSurrender  = "game:surrender"
	actionRematchRequest = "rematch:request"
	actionRematchAccept  = "rematch:accept"
	actionRematchDecline = "rematch:decline"
)

const (
	codeBadRequest    = "bad_request"
	codeUnknownAction = "unknown_action"
)

var (
	errBadRequest    = errors.New("bad request")
	errUnknownAction = errors.New("unknown action")
)

// Message represents a WebSocket message with an action type and a payload.
type Message struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type RequestPayload struct {
	RoomID  int64  `json:"room_id,omitempty"`
	Code    string `json:"code,omitempty"`
	Name    string `json:"name,omitempty"`
	Private bool   `json:"private,omitempty"`
	Ready   *bool  `json:"ready,omitempty"`
	X       *int   `json:"x,omitempty"`
	Y       *int   `json:"y,omitempty"`
}

type ResponsePayload struct {
	Room      *usecase.RoomView `json:"room,omitempty"`
	Rooms     []*entity.Room    `json:"rooms,omitempty"`
	NewRoomID int64             `json:"new_room_id,omitempty"`
	Error     *ErrorBody        `json:"error,omitempty"`
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type handlerFunc func(ctx context.Context, c *client, req *RequestPayload) (*ResponsePayload, error)

// readPump - processes messages from the client until the connection fails.
func (that *Server) readPump(ctx context.Context, c *client) {
	log := that.logger.With("method", "readPump", "connectionID", c.id)

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("connection closed unexpectedly", "error", err)
			}
			return
		}

		var message Message
		if err = json.Unmarshal(data, &message); err != nil {
			log.Debug("failed to unmarshal message", "error", err)
			that.reply(c, "", nil, errBadRequest)
			continue
		}

		that.process(ctx, c, &message)
	}
}

func (that *Server) process(ctx context.Context, c *client, message *Message) {
	handler, ok := that.handlers[message.Action]
	if !ok {
		that.reply(c, message.Action, nil, errUnknownAction)
		return
	}

	var req RequestPayload
	if len(message.Payload) > 0 {
		if err := json.Unmarshal(message.Payload, &req); err != nil {
			that.reply(c, message.Action, nil, errBadRequest)
			return
		}
	}

	resp, err := handler(ctx, c, &req)
	that.reply(c, message.Action, resp, err)
}

// reply sends the result of an action back to the connection that asked for it.
func (that *Server) reply(c *client, action string, resp *ResponsePayload, err error) {
	log := that.logger.With("method", "reply", "connectionID", c.id, "action", action)

	if resp == nil {
		resp = &ResponsePayload{}
	}

	if err != nil {
		code := errorCode(err)
		if code == "internal" || code == "unavailable" {
			log.Error("failed to process message", "error", err)
		}
		resp = &ResponsePayload{Error: &ErrorBody{Code: code, Message: err.Error()}}
	}

	payload, err := json.Marshal(resp)
	if err != nil {
		log.Error("failed to marshal response", "error", err)
		return
	}

	data, err := json.Marshal(Message{Action: action, Payload: payload})
	if err != nil {
		log.Error("failed to marshal message", "error", err)
		return
	}

	c.enqueue(data)
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, errBadRequest):
		return codeBadRequest
	case errors.Is(err, errUnknownAction):
		return codeUnknownAction
	default:
		return apperror.Code(err)
	}
}
