package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/rocketscienceinc/gomoku-backend/internal/apperror"
	"github.com/rocketscienceinc/gomoku-backend/internal/entity"
	"github.com/rocketscienceinc/gomoku-backend/internal/lifecycle"
	"github.com/rocketscienceinc/gomoku-backend/internal/service"
	"github.com/rocketscienceinc/gomoku-backend/internal/usecase"
)

const maxHistoryLimit = 100

var errBadRequest = errors.New("bad request")

type roomManager interface {
	CreateRoom(ctx context.Context, hostID int64, name string, isPrivate bool) (*lifecycle.Aggregate, error)
	GetRoom(ctx context.Context, roomID int64) (*lifecycle.Aggregate, error)
	ListPublicRooms(ctx context.Context) ([]*entity.Room, error)
	GameHistory(ctx context.Context, userID int64, limit int) ([]entity.GameHistory, error)
}

type authService interface {
	ParseToken(token string) (int64, error)
}

type ctxUserKey struct{}

type createRoomRequest struct {
	Name    string `json:"name"`
	Private bool   `json:"private"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// requireAuth - rejects requests without a valid token and stores the user id in the context.
func (that *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := that.auth.ParseToken(service.TokenFromRequest(r))
		if err != nil {
			that.writeJSON(w, http.StatusUnauthorized, errorResponse{Error: errorBody{Code: "unauthorized", Message: "unauthorized"}})
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxUserKey{}, userID)))
	})
}

func (that *Server) listRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := that.rooms.ListPublicRooms(r.Context())
	if err != nil {
		that.writeError(w, r, err)
		return
	}

	that.writeJSON(w, http.StatusOK, map[string]any{"rooms": rooms})
}

func (that *Server) getRoom(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value(ctxUserKey{}).(int64)

	roomID, err := pathID(r, "roomID")
	if err != nil {
		that.writeError(w, r, err)
		return
	}

	agg, err := that.rooms.GetRoom(r.Context(), roomID)
	if err != nil {
		that.writeError(w, r, err)
		return
	}

	that.writeJSON(w, http.StatusOK, usecase.NewRoomView(agg, userID))
}

func (that *Server) createRoom(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value(ctxUserKey{}).(int64)

	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		that.writeError(w, r, errBadRequest)
		return
	}

	agg, err := that.rooms.CreateRoom(r.Context(), userID, req.Name, req.Private)
	if err != nil {
		that.writeError(w, r, err)
		return
	}

	that.writeJSON(w, http.StatusCreated, usecase.NewRoomView(agg, userID))
}

func (that *Server) gameHistory(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		that.writeError(w, r, err)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 || limit > maxHistoryLimit {
			that.writeError(w, r, errBadRequest)
			return
		}
	}

	histories, err := that.rooms.GameHistory(r.Context(), userID, limit)
	if err != nil {
		that.writeError(w, r, err)
		return
	}

	that.writeJSON(w, http.StatusOK, map[string]any{"games": histories})
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errBadRequest
	}

	return id, nil
}

func (that *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	code := apperror.Code(err)

	switch {
	case errors.Is(err, errBadRequest):
		status, code = http.StatusBadRequest, "bad_request"
	case errors.Is(err, apperror.ErrRoomNotFound):
		status = http.StatusNotFound
	case apperror.IsPrecondition(err):
		status = http.StatusConflict
	case errors.Is(err, apperror.ErrStorageUnavailable):
		status = http.StatusServiceUnavailable
	}

	if status >= http.StatusInternalServerError {
		that.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"requestID", chimw.GetReqID(r.Context()),
			"error", err,
		)
	}

	that.writeJSON(w, status, errorResponse{Error: errorBody{Code: code, Message: err.Error()}})
}

func (that *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		that.logger.Error("failed to write response", "error", err)
	}
}
