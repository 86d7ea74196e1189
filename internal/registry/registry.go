package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rocketscienceinc/gomoku-backend/internal/apperror"
)

var ErrRegistryClosed = errors.New("registry is closed")

// Observer is told when room actors start and stop.
type Observer interface {
	ActorStarted()
	ActorStopped()
}

type nopObserver struct{}

func (nopObserver) ActorStarted() {}
func (nopObserver) ActorStopped() {}

// Func runs inside the actor of one room with exclusive access to its state.
type Func[S any] func(ctx context.Context, state *S) error

type request[S any] struct {
	ctx   context.Context
	fn    Func[S]
	reply chan error
}

type actor[S any] struct {
	roomID   int64
	mailbox  chan request[S]
	refs     int
	lastUsed time.Time
	closing  bool
}

// Registry maps room ids to actors. All calls for one room run one at a time in arrival order.
type Registry[S any] struct {
	logger      *slog.Logger
	observer    Observer
	idleTimeout time.Duration
	mailboxSize int

	mu     sync.Mutex
	actors map[int64]*actor[S]
	closed bool
	wg     sync.WaitGroup
}

type Options struct {
	IdleTimeout time.Duration
	MailboxSize int
	Observer    Observer
}

func New[S any](logger *slog.Logger, opts Options) *Registry[S] {
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	if opts.MailboxSize <= 0 {
		opts.MailboxSize = 16
	}

	return &Registry[S]{
		logger:      logger.With("component", "registry"),
		observer:    opts.Observer,
		idleTimeout: opts.IdleTimeout,
		mailboxSize: opts.MailboxSize,
		actors:      make(map[int64]*actor[S]),
	}
}

// Do runs fn in the actor of roomID and returns its error.
// Once fn is queued the call waits for it to finish even if ctx is cancelled, so a result is never lost.
func (that *Registry[S]) Do(ctx context.Context, roomID int64, fn Func[S]) error {
	act, err := that.acquire(roomID)
	if err != nil {
		return err
	}
	defer that.release(act)

	req := request[S]{
		ctx:   ctx,
		fn:    fn,
		reply: make(chan error, 1),
	}

	select {
	case act.mailbox <- req:
	case <-ctx.Done():
		return fmt.Errorf("failed to queue operation for room %d: %w", roomID, ctx.Err())
	}

	return <-req.reply
}

// Len returns the number of live actors.
func (that *Registry[S]) Len() int {
	that.mu.Lock()
	defer that.mu.Unlock()

	return len(that.actors)
}

// Run sweeps idle actors until ctx is done, then stops every actor.
func (that *Registry[S]) Run(ctx context.Context) error {
	log := that.logger.With("method", "Run")

	if that.idleTimeout <= 0 {
		<-ctx.Done()
		that.Close()
		return nil
	}

	ticker := time.NewTicker(that.idleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			that.Close()
			return nil
		case now := <-ticker.C:
			if evicted := that.Sweep(now); evicted > 0 {
				log.Debug("evicted idle room actors", "count", evicted)
			}
		}
	}
}

// Sweep stops actors that have no callers and were last used before now minus the idle timeout.
func (that *Registry[S]) Sweep(now time.Time) int {
	that.mu.Lock()
	defer that.mu.Unlock()

	evicted := 0
	for roomID, act := range that.actors {
		if act.refs > 0 || now.Sub(act.lastUsed) < that.idleTimeout {
			continue
		}
		delete(that.actors, roomID)
		close(act.mailbox)
		evicted++
	}

	return evicted
}

// Close stops all actors after their queued operations finish. Later calls to Do fail.
func (that *Registry[S]) Close() {
	that.mu.Lock()
	if !that.closed {
		that.closed = true
		for roomID, act := range that.actors {
			delete(that.actors, roomID)
			if act.refs > 0 {
				act.closing = true
				continue
			}
			close(act.mailbox)
		}
	}
	that.mu.Unlock()

	that.wg.Wait()
}

func (that *Registry[S]) acquire(roomID int64) (*actor[S], error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.closed {
		return nil, ErrRegistryClosed
	}

	act, ok := that.actors[roomID]
	if !ok {
		act = &actor[S]{
			roomID:  roomID,
			mailbox: make(chan request[S], that.mailboxSize),
		}
		that.actors[roomID] = act

		that.wg.Add(1)
		go that.loop(act)
	}

	act.refs++
	act.lastUsed = time.Now()

	return act, nil
}

func (that *Registry[S]) release(act *actor[S]) {
	that.mu.Lock()
	defer that.mu.Unlock()

	act.refs--
	act.lastUsed = time.Now()

	if act.closing && act.refs == 0 {
		close(act.mailbox)
	}
}

func (that *Registry[S]) loop(act *actor[S]) {
	defer that.wg.Done()

	that.observer.ActorStarted()
	defer that.observer.ActorStopped()

	var state S
	for req := range act.mailbox {
		req.reply <- that.invoke(act.roomID, req, &state)
	}
}

// invoke runs one request. A panic resets the state so the next request starts from storage.
func (that *Registry[S]) invoke(roomID int64, req request[S], state *S) (err error) {
	defer func() {
		if r := recover(); r != nil {
			that.logger.Error("room operation panicked",
				"roomID", roomID,
				"panic", r,
				"stack", string(debug.Stack()),
			)

			var zero S
			*state = zero
			err = fmt.Errorf("%w: panic in room %d: %v", apperror.ErrInvariantViolation, roomID, r)
		}
	}()

	return req.fn(req.ctx, state)
}
