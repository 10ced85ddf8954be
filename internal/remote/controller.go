package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// DefaultTimeout bounds every fetch so a hung upstream cannot leave a page
// loading forever.
const DefaultTimeout = 10 * time.Second

// ErrPanicked wraps a panic recovered from a fetch function.
var ErrPanicked = errors.New("remote: fetch panicked")

// FetchFunc performs the single read a controller is bound to.
type FetchFunc[T any] func(ctx context.Context) ([]T, error)

type options struct {
	name     string
	timeout  time.Duration
	messages Messages
	logger   *slog.Logger
}

// Option configures a Controller.
type Option func(*options)

// WithName labels the controller in log output.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithTimeout sets the fetch deadline. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithMessages sets the failure strings shown to the user.
func WithMessages(m Messages) Option {
	return func(o *options) { o.messages = m }
}

// WithLogger sets the logger used for failures and dropped results.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// Controller owns one fetch and the state around it. It is mounted at most
// once; a fresh page activation builds a fresh controller.
type Controller[T any] struct {
	fetch FetchFunc[T]
	opts  options

	mu       sync.Mutex
	state    State[T]
	mounted  bool
	disposed bool
	cancel   context.CancelFunc
	done     chan struct{}
}

// New returns an idle controller bound to fetch.
func New[T any](fetch FetchFunc[T], opts ...Option) *Controller[T] {
	o := options{
		name:     "remote",
		timeout:  DefaultTimeout,
		messages: DefaultMessages,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Controller[T]{
		fetch: fetch,
		opts:  o,
		done:  make(chan struct{}),
	}
}

// Mount moves the controller to Loading and starts the fetch. Only the first
// call has any effect, and a disposed controller never starts.
func (c *Controller[T]) Mount(ctx context.Context) {
	c.mu.Lock()
	if c.mounted || c.disposed {
		c.mu.Unlock()
		return
	}
	c.mounted = true
	fetchCtx, cancel := context.WithTimeout(ctx, c.opts.timeout)
	c.cancel = cancel
	c.state = State[T]{Status: StatusLoading}
	c.mu.Unlock()

	go c.run(fetchCtx, cancel)
}

func (c *Controller[T]) run(ctx context.Context, cancel context.CancelFunc) {
	defer close(c.done)
	defer cancel()

	var (
		items []T
		err   error
	)
	// Settles on every exit path, including a panicking fetch.
	defer func() {
		if r := recover(); r != nil {
			items, err = nil, fmt.Errorf("%w: %v", ErrPanicked, r)
		}
		c.settle(items, err)
	}()
	items, err = c.fetch(ctx)
}

func (c *Controller[T]) settle(items []T, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disposed {
		c.opts.logger.Debug("dropping result for disposed controller", "controller", c.opts.name)
		return
	}
	if err != nil {
		c.opts.logger.Warn("fetch failed", "controller", c.opts.name, "error", err)
		c.state = State[T]{Status: StatusFailure, Message: c.opts.messages.Describe(err)}
		return
	}
	if items == nil {
		items = []T{}
	}
	c.state = State[T]{Status: StatusSuccess, Items: items}
}

// Snapshot returns a copy of the current state.
func (c *Controller[T]) Snapshot() State[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.state
	if s.Items != nil {
		s.Items = append(make([]T, 0, len(s.Items)), s.Items...)
	}
	return s
}

// View derives the current view state.
func (c *Controller[T]) View() View[T] {
	return Derive(c.Snapshot())
}

// Done is closed once a mounted controller has settled or dropped its result.
func (c *Controller[T]) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the controller settles or ctx ends, then returns the
// state at that moment. An unmounted controller returns immediately.
func (c *Controller[T]) Wait(ctx context.Context) State[T] {
	c.mu.Lock()
	mounted := c.mounted
	c.mu.Unlock()
	if !mounted {
		return c.Snapshot()
	}
	select {
	case <-c.done:
	case <-ctx.Done():
	}
	return c.Snapshot()
}

// Dispose cancels an in-flight request. Any result that arrives afterwards
// is discarded.
func (c *Controller[T]) Dispose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return
	}
	c.disposed = true
	if c.cancel != nil {
		c.cancel()
	}
}

// Load runs a complete page activation: mount, wait for the outcome, dispose.
// If ctx ends first the returned view is still loading.
func Load[T any](ctx context.Context, fetch FetchFunc[T], opts ...Option) View[T] {
	c := New(fetch, opts...)
	defer c.Dispose()
	c.Mount(ctx)
	return Derive(c.Wait(ctx))
}
