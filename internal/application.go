package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/rocketscienceinc/gomoku-backend/internal/config"
	"github.com/rocketscienceinc/gomoku-backend/internal/metrics"
	"github.com/rocketscienceinc/gomoku-backend/internal/notifier"
	"github.com/rocketscienceinc/gomoku-backend/internal/registry"
	"github.com/rocketscienceinc/gomoku-backend/internal/repository"
	"github.com/rocketscienceinc/gomoku-backend/internal/repository/storage"
	"github.com/rocketscienceinc/gomoku-backend/internal/service"
	"github.com/rocketscienceinc/gomoku-backend/internal/usecase"
	"github.com/rocketscienceinc/gomoku-backend/transport/rest"
	"github.com/rocketscienceinc/gomoku-backend/transport/websocket"
)

var ErrAddrNotFound = errors.New("redis address string is empty")

// RunApp - runs the application.
func RunApp(logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Info("Received signal, shutting down", "signal", sig)
		cancel()
	}()

	var redisStorage *redis.Client
	roomStore := repository.NewMemoryRoomRepository()

	if conf.Storage == config.StorageRedis {
		redisAddrString := conf.Redis.GetRedisAddr()
		if redisAddrString == "" {
			return ErrAddrNotFound
		}

		var err error
		redisStorage, err = storage.NewRedis(ctx, redisAddrString)
		if err != nil {
			return fmt.Errorf("could not connect to redis storage: %w", err)
		}

		defer func() {
			if err = redisStorage.Close(); err != nil {
				log.Error("could not close redis storage", "error", err)
			}
		}()

		roomStore = repository.NewRoomRepository(redisStorage)
	}

	historyStore, err := newHistoryStore(conf)
	if err != nil {
		return err
	}

	appMetrics := metrics.New(prometheus.DefaultRegisterer)

	rooms := registry.New[usecase.Session](logger, registry.Options{
		IdleTimeout: conf.Registry.IdleTimeout,
		MailboxSize: conf.Registry.MailboxSize,
		Observer:    appMetrics,
	})

	hub := websocket.NewHub(logger)
	publishers := notifier.Fanout{hub}
	if redisStorage != nil {
		publishers = append(publishers, notifier.NewRedis(redisStorage))
	}
	publisher := notifier.NewRetrying(logger, publishers, appMetrics, conf.Notify.MaxAttempts, conf.Notify.InitialInterval)

	roomManager := usecase.NewRoomManager(logger, rooms, roomStore, historyStore, publisher, appMetrics)
	authService := service.NewAuthService(conf.JWTSecretKey)

	restServer := rest.New(logger, roomManager, authService, promhttp.Handler())
	wsServer := websocket.New(logger, roomManager, authService, hub, appMetrics)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return rooms.Run(groupCtx)
	})

	// run HTTP server
	group.Go(func() error {
		log.Info("Starting HTTP server", "port", conf.HTTPPort)
		if httpErr := restServer.Start(groupCtx, conf.HTTPPort); httpErr != nil {
			return fmt.Errorf("HTTP server error: %w", httpErr)
		}
		return nil
	})

	// run Websocket server
	group.Go(func() error {
		log.Info("Starting WebSocket server", "port", conf.SocketPort)
		if wsErr := wsServer.Start(groupCtx, conf.SocketPort); wsErr != nil {
			return fmt.Errorf("WebSocket server error: %w", wsErr)
		}
		return nil
	})

	if err = group.Wait(); err != nil {
		return err
	}

	log.Info("Application context canceled, shutting down")

	return nil
}

// newHistoryStore - uses Postgres when a DSN is configured and process memory otherwise.
func newHistoryStore(conf *config.Config) (repository.HistoryStore, error) {
	if conf.Postgres.DSN == "" {
		return repository.NewMemoryHistoryRepository(), nil
	}

	db, err := storage.NewPostgres(conf.Postgres.DSN)
	if err != nil {
		return nil, fmt.Errorf("could not connect to postgres: %w", err)
	}

	history, err := repository.NewHistoryRepository(db)
	if err != nil {
		return nil, fmt.Errorf("could not prepare history storage: %w", err)
	}

	return history, nil
}
