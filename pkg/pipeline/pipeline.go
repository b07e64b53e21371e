// Package pipeline sequences the two hook invocations of a turn.
//
// PromptSubmit runs when the user submits a prompt: it captures the previous
// exchange under the session lock, retrieves patterns for the new prompt and
// hands them to the stop hook through the state directory. Stop runs when the
// assistant finishes: it loads the handoff, parses acknowledgment markers,
// captures the current exchange and clears the handoff.
//
// Neither invocation returns an error. Every degraded step is logged and the
// turn proceeds.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/papercomputeco/reflex/pkg/capture"
	"github.com/papercomputeco/reflex/pkg/dispatch"
	"github.com/papercomputeco/reflex/pkg/eventstream"
	"github.com/papercomputeco/reflex/pkg/eventstream/nop"
	"github.com/papercomputeco/reflex/pkg/handoff"
	"github.com/papercomputeco/reflex/pkg/lock"
	"github.com/papercomputeco/reflex/pkg/logger"
	"github.com/papercomputeco/reflex/pkg/memoryapi"
	"github.com/papercomputeco/reflex/pkg/state"
)

const (
	defaultRetrieveTimeout = 1500 * time.Millisecond
	defaultDispatchTimeout = 8 * time.Second
)

// MemoryAPI is the remote collaborator the pipeline talks to.
// *memoryapi.Client implements it.
type MemoryAPI interface {
	Configured() bool
	Capture(ctx context.Context, req memoryapi.CaptureRequest) (*memoryapi.CaptureResponse, error)
	Retrieve(ctx context.Context, req memoryapi.RetrieveRequest) (*memoryapi.RetrieveResponse, error)
	ForgePattern(ctx context.Context, req memoryapi.ForgeRequest) (*memoryapi.ForgeResponse, error)
	LogReflex(ctx context.Context, event memoryapi.ReflexLogEvent) error
}

// Config is built once per hook invocation and carries every collaborator.
type Config struct {
	// Store is the session state directory.
	Store *state.Store

	// Locker guards the capture ledger. Defaults to a FileLocker on Store.
	Locker lock.Locker

	// API is the remote memory API.
	API MemoryAPI

	// Publisher receives turn summary events. Defaults to a no-op publisher.
	Publisher eventstream.Publisher

	// Project names the repository, reported in events.
	Project string

	// Layers are the retrieval layers requested from the API.
	Layers []string

	// RetrieveTimeout bounds the awaited retrieval call.
	RetrieveTimeout time.Duration

	// DispatchTimeout bounds each fire-and-forget call and the final drain.
	DispatchTimeout time.Duration

	Logger *slog.Logger
}

// Pipeline runs the hook protocol for one invocation.
type Pipeline struct {
	config   *Config
	store    *state.Store
	locker   lock.Locker
	captures *capture.Log
	handoffs *handoff.Store
	api      MemoryAPI
	events   eventstream.Publisher
	pool     *dispatch.Pool
	logger   *slog.Logger
}

// New wires a Pipeline from c and starts its dispatch pool. Call Close before
// the process exits.
func New(c *Config) (*Pipeline, error) {
	if c.Store == nil {
		return nil, errors.New("pipeline requires a state store")
	}
	if c.API == nil {
		return nil, errors.New("pipeline requires a memory api")
	}
	if c.Logger == nil {
		c.Logger = logger.Nop()
	}
	if c.RetrieveTimeout <= 0 {
		c.RetrieveTimeout = defaultRetrieveTimeout
	}
	if c.DispatchTimeout <= 0 {
		c.DispatchTimeout = defaultDispatchTimeout
	}
	if c.Locker == nil {
		c.Locker = lock.NewFileLocker(c.Store, lock.Options{}, c.Logger)
	}
	if c.Publisher == nil {
		c.Publisher = nop.NewPublisher()
	}

	pool, err := dispatch.NewPool(&dispatch.Config{
		JobTimeout: c.DispatchTimeout,
		Logger:     c.Logger,
	})
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		config:   c,
		store:    c.Store,
		locker:   c.Locker,
		captures: capture.NewLog(c.Store, c.Logger),
		handoffs: handoff.NewStore(c.Store, c.Logger),
		api:      c.API,
		events:   c.Publisher,
		pool:     pool,
		logger:   c.Logger,
	}, nil
}

// Close waits for dispatched jobs until the dispatch deadline, then abandons
// whatever is still running and closes the event publisher.
func (p *Pipeline) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), p.config.DispatchTimeout)
	defer cancel()

	if err := p.pool.Close(ctx); err != nil {
		p.logger.Warn("background calls did not finish before exit", "error", err)
	}

	stats := p.pool.Stats()
	p.logger.Debug("dispatch drained",
		"succeeded", stats.Succeeded,
		"failed", stats.Failed,
		"dropped", stats.Dropped,
	)

	if err := p.events.Close(); err != nil {
		p.logger.Debug("closing event publisher", "error", err)
	}
}

// Stats reports dispatched job outcomes.
func (p *Pipeline) Stats() dispatch.Stats {
	return p.pool.Stats()
}

// dispatch enqueues a fire-and-forget job. The only observable effect of the
// job is logging.
func (p *Pipeline) dispatch(name string, run func(ctx context.Context) error) bool {
	if err := p.pool.Enqueue(dispatch.Job{Name: name, Run: run}); err != nil {
		p.logger.Warn("dropping background call", "job", name, "error", err)
		return false
	}
	return true
}
