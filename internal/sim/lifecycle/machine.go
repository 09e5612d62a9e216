// Package lifecycle sequences the simulation through Idle, Init, Start, Step,
// Pause and Stop.
//
// Requests are applied through a (State, Event) table. Init, Start and Stop
// advance on their own. Every exit and entry is announced to synchronous
// listeners on the applying goroutine, and to asynchronous subscribers. The
// edge set itself is enforced by a go-fsm machine.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robbyt/go-fsm/v2"
	"github.com/robbyt/go-fsm/v2/hooks"
	"github.com/robbyt/go-fsm/v2/hooks/broadcast"
	"github.com/robbyt/go-fsm/v2/transitions"
)

// NotificationKind tells whether a state is being left or entered.
type NotificationKind int

const (
	Exit NotificationKind = iota + 1
	Enter
)

func (k NotificationKind) String() string {
	if k == Enter {
		return "enter"
	}
	return "exit"
}

// Notification announces a state exit or entry.
type Notification struct {
	Kind  NotificationKind
	State State
}

// Listener reacts to a notification on the applying goroutine. An error from an
// Init entry listener aborts initialization and returns the machine to Idle.
type Listener func(ctx context.Context, n Notification) error

// Machine is the lifecycle controller. It holds no simulation data.
type Machine struct {
	applyMu sync.Mutex
	fsm     *fsm.Machine
	bcast   *broadcast.Manager

	listenerMu sync.RWMutex
	listeners  []Listener

	subMu       sync.Mutex
	subscribers map[chan Notification]struct{}

	logger *slog.Logger
}

// New creates a Machine in Idle.
func New(opts ...Option) (*Machine, error) {
	m := &Machine{
		subscribers: make(map[chan Notification]struct{}),
		logger:      slog.Default().WithGroup("lifecycle.Machine"),
	}
	for _, opt := range opts {
		opt(m)
	}

	trans, err := transitions.New(allowed)
	if err != nil {
		return nil, fmt.Errorf("failed to build transitions: %w", err)
	}

	handler := m.logger.WithGroup("fsm").Handler()
	registry, err := hooks.NewRegistry(
		hooks.WithLogHandler(handler),
		hooks.WithTransitions(trans),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create hook registry: %w", err)
	}

	m.bcast = broadcast.NewManager(handler)
	if err := registry.RegisterPostTransitionHook(hooks.PostTransitionHookConfig{
		Name:   "broadcast",
		From:   []string{"*"},
		To:     []string{"*"},
		Action: m.bcast.BroadcastHook,
	}); err != nil {
		return nil, fmt.Errorf("failed to register broadcast hook: %w", err)
	}

	m.fsm, err = fsm.New(
		Idle.String(),
		trans,
		fsm.WithLogHandler(handler),
		fsm.WithCallbackRegistry(registry),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create state machine: %w", err)
	}
	return m, nil
}

// State returns the current state. It never blocks on a running Apply.
func (m *Machine) State() State {
	s, _ := ParseState(m.fsm.GetState())
	return s
}

// AddListener registers a synchronous listener. Listeners run in registration order.
func (m *Machine) AddListener(l Listener) {
	m.listenerMu.Lock()
	defer m.listenerMu.Unlock()
	m.listeners = append(m.listeners, l)
}

// Apply dispatches event from the current state and follows automatic
// transitions until a state that waits for a request is reached.
func (m *Machine) Apply(ctx context.Context, event Event) error {
	m.applyMu.Lock()
	defer m.applyMu.Unlock()

	// a transition sequence runs to completion once accepted
	ctx = context.WithoutCancel(ctx)

	from := m.State()
	to, ok := Next(from, event)
	if !ok {
		return fmt.Errorf("%w: %s in %s", ErrEventNotAllowed, event, from)
	}
	m.logger.Debug("Applying event", "event", event, "from", from, "to", to)

	for {
		enterErr, err := m.move(ctx, from, to)
		if err != nil {
			return err
		}

		if enterErr != nil {
			if to == Init {
				m.logger.Error("Initialization failed, returning to Idle", "error", enterErr)
				if _, err := m.move(ctx, Init, Idle); err != nil {
					return err
				}
				return fmt.Errorf("%w: %w", ErrInitFailed, enterErr)
			}
			m.logger.Warn("State entry listener failed", "state", to, "error", enterErr)
		}

		next, ok := automatic[to]
		if !ok {
			return nil
		}
		from, to = to, next
	}
}

// move announces the exit, transitions the fsm and announces the entry. Exit
// listener errors are logged. The first entry listener error is returned as
// enterErr, and err is only set if the fsm refused the edge.
func (m *Machine) move(ctx context.Context, from, to State) (enterErr, err error) {
	if exitErr := m.notify(ctx, Notification{Kind: Exit, State: from}); exitErr != nil {
		m.logger.Warn("State exit listener failed", "state", from, "error", exitErr)
	}

	if err := m.fsm.TransitionWithContext(ctx, to.String()); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransition, err)
	}

	return m.notify(ctx, Notification{Kind: Enter, State: to}), nil
}

func (m *Machine) notify(ctx context.Context, n Notification) error {
	m.broadcast(n)

	m.listenerMu.RLock()
	listeners := m.listeners
	m.listenerMu.RUnlock()

	var errs []error
	for _, l := range listeners {
		if err := l(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Subscribe returns a channel of notifications that is closed when ctx is done.
// Slow subscribers miss notifications rather than stall the machine.
func (m *Machine) Subscribe(ctx context.Context) <-chan Notification {
	ch := make(chan Notification, 32)

	m.subMu.Lock()
	m.subscribers[ch] = struct{}{}
	m.subMu.Unlock()

	go func() {
		<-ctx.Done()
		m.subMu.Lock()
		delete(m.subscribers, ch)
		close(ch)
		m.subMu.Unlock()
	}()

	return ch
}

func (m *Machine) broadcast(n Notification) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	for ch := range m.subscribers {
		select {
		case ch <- n:
		default:
			m.logger.Warn("Subscriber channel full, skipping", "notification", n.Kind, "state", n.State)
		}
	}
}

// GetStateChan returns a channel that receives the current state and then every
// state the fsm enters. It is closed when ctx is done.
func (m *Machine) GetStateChan(ctx context.Context) <-chan string {
	wrapped := make(chan string, 1)

	states, err := m.bcast.GetStateChan(ctx, broadcast.WithBufferSize(16), broadcast.WithTimeout(time.Second))
	if err != nil {
		close(wrapped)
		return wrapped
	}

	wrapped <- m.fsm.GetState()
	go func() {
		defer close(wrapped)
		for s := range states {
			select {
			case wrapped <- s:
			case <-ctx.Done():
				return
			}
		}
	}()
	return wrapped
}
