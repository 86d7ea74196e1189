package websocket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rocketscienceinc/gomoku-backend/internal/entity"
	"github.com/rocketscienceinc/gomoku-backend/internal/lifecycle"
	"github.com/rocketscienceinc/gomoku-backend/internal/pkg"
	"github.com/rocketscienceinc/gomoku-backend/internal/service"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 4096
	sendBufferSize = 64
	leaveTimeout   = 5 * time.Second
)

type roomManager interface {
	CreateRoom(ctx context.Context, hostID int64, name string, isPrivate bool) (*lifecycle.Aggregate, error)
	JoinRoom(ctx context.Context, roomID, userID int64, code string) (*lifecycle.Aggregate, error)
	JoinByCode(ctx context.Context, code string, userID int64) (*lifecycle.Aggregate, error)
	LeaveRoom(ctx context.Context, roomID, userID int64) error
	SetReady(ctx context.Context, roomID, userID int64, ready bool) (*lifecycle.Aggregate, error)
	SubmitMove(ctx context.Context, roomID, userID int64, pos entity.Position) (*lifecycle.Aggregate, error)
	Surrender(ctx context.Context, roomID, userID int64) (*lifecycle.Aggregate, error)
	RequestRematch(ctx context.Context, roomID, userID int64) (*lifecycle.Aggregate, error)
	AcceptRematch(ctx context.Context, roomID, userID int64) (int64, error)
	DeclineRematch(ctx context.Context, roomID, userID int64) (*lifecycle.Aggregate, error)
	GetRoom(ctx context.Context, roomID int64) (*lifecycle.Aggregate, error)
	ListPublicRooms(ctx context.Context) ([]*entity.Room, error)
}

type authService interface {
	ParseToken(token string) (int64, error)
}

type connectionObserver interface {
	ConnectionOpened()
	ConnectionClosed()
}

type nopObserver struct{}

func (nopObserver) ConnectionOpened() {}
func (nopObserver) ConnectionClosed() {}

type Server struct {
	logger   *slog.Logger
	rooms    roomManager
	auth     authService
	hub      *Hub
	observer connectionObserver
	upgrader websocket.Upgrader

	handlers map[string]handlerFunc
}

func New(logger *slog.Logger, rooms roomManager, auth authService, hub *Hub, observer connectionObserver) *Server {
	if observer == nil {
		observer = nopObserver{}
	}

	server := &Server{
		logger:   logger.With("component", "websocket"),
		rooms:    rooms,
		auth:     auth,
		hub:      hub,
		observer: observer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(*http.Request) bool {
				return true
			},
		},
		handlers: make(map[string]handlerFunc),
	}

	server.handlers[actionRoomCreate] = server.handleCreateRoom
	server.handlers[actionRoomJoin] = server.handleJoinRoom
	server.handlers[actionRoomLeave] = server.handleLeaveRoom
	server.handlers[actionRoomReady] = server.handleSetReady
	server.handlers[actionRoomGet] = server.handleGetRoom
	server.handlers[actionRoomList] = server.handleListRooms
	server.handlers[actionGameTurn] = server.handleGameTurn
	server.handlers[actionGameSurrender] = server.handleSurrender
	server.handlers[actionRematchRequest] = server.handleRematchRequest
	server.handlers[actionRematchAccept] = server.handleRematchAccept
	server.handlers[actionRematchDecline] = server.handleRematchDecline

	return server
}

// Handler - returns the HTTP handler serving the /ws endpoint.
func (that *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", that.serveWS)

	return mux
}

// Start - starts WebSocket server and stops it when ctx is done.
func (that *Server) Start(ctx context.Context, port string) error {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           that.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			that.logger.Error("failed to shut down websocket server", "error", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// serveWS - authenticates the caller and upgrades the connection to WebSocket.
func (that *Server) serveWS(writer http.ResponseWriter, req *http.Request) {
	log := that.logger.With("method", "serveWS")

	userID, err := that.auth.ParseToken(service.TokenFromRequest(req))
	if err != nil {
		log.Debug("rejected unauthenticated connection", "error", err)
		http.Error(writer, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := that.upgrader.Upgrade(writer, req, nil)
	if err != nil {
		log.Error("failed to upgrade connection", "error", err)
		return
	}

	c := newClient(pkg.GenerateNewSessionID(), userID, conn)
	log = log.With("connectionID", c.id, "userID", userID)

	that.hub.register(c)
	that.observer.ConnectionOpened()
	log.Info("WebSocket connection established")

	go c.writePump()
	that.readPump(req.Context(), c)

	c.close()
	rooms := that.hub.unregister(c)
	that.observer.ConnectionClosed()
	log.Info("WebSocket connection closed")

	that.leaveRooms(req.Context(), userID, rooms)
}

// leaveRooms turns the disconnect of a user's last connection into a normal leave of every room they were in.
func (that *Server) leaveRooms(ctx context.Context, userID int64, rooms []int64) {
	log := that.logger.With("method", "leaveRooms", "userID", userID)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), leaveTimeout)
	defer cancel()

	for _, roomID := range rooms {
		if err := that.rooms.LeaveRoom(ctx, roomID, userID); err != nil {
			log.Warn("failed to leave room on disconnect", "roomID", roomID, "error", err)
		}
	}
}
