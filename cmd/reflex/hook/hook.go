// Package hookcmder provides the hook commands the assistant host runs at the
// start and end of every turn.
package hookcmder

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/reflex/cmd/reflex/cmdenv"
	"github.com/papercomputeco/reflex/pkg/config"
	"github.com/papercomputeco/reflex/pkg/eventstream"
	"github.com/papercomputeco/reflex/pkg/eventstream/kafka"
	"github.com/papercomputeco/reflex/pkg/eventstream/nop"
	"github.com/papercomputeco/reflex/pkg/git"
	"github.com/papercomputeco/reflex/pkg/lock"
	"github.com/papercomputeco/reflex/pkg/memoryapi"
	"github.com/papercomputeco/reflex/pkg/pipeline"
	"github.com/papercomputeco/reflex/pkg/state"
	"github.com/papercomputeco/reflex/pkg/sweep"
)

const hookLongDesc string = `Run one side of the reflex turn protocol.

Both commands read the hook payload as JSON on stdin and always exit 0.
Diagnostics go to stderr; stdout is reserved for context the assistant reads.

  reflex hook prompt-submit   Capture the previous exchange and retrieve patterns
  reflex hook stop            Record acknowledgments and capture this exchange`

const hookShortDesc string = "Run a turn hook"

// hookFlags are shared by both hook commands.
var hookFlags = []string{
	config.FlagAPIURL,
	config.FlagRetrieveTimeout,
	config.FlagDispatchTimeout,
	config.FlagMaxAge,
	config.FlagLockBackend,
	config.FlagRedisURL,
	config.FlagKafkaTopic,
	config.FlagLogFile,
}

type hookCommander struct {
	event string

	apiURL          string
	retrieveTimeout uint
	dispatchTimeout uint
	maxAge          uint
	lockBackend     string
	redisURL        string
	kafkaTopic      string
	logFile         string
}

func NewHookCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hook",
		Short: hookShortDesc,
		Long:  hookLongDesc,
	}

	cmd.AddCommand(newEventCmd(pipeline.EventUserPromptSubmit, "prompt-submit",
		"Run at prompt submission: capture, retrieve, hand off"))
	cmd.AddCommand(newEventCmd(pipeline.EventStop, "stop",
		"Run when the assistant stops: acknowledge, forge, capture"))

	return cmd
}

func newEventCmd(event, use, short string) *cobra.Command {
	cmder := &hookCommander{event: event}

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmder.run(cmd)
			return nil
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagAPIURL, &cmder.apiURL)
	config.AddUintFlag(cmd, config.Flags, config.FlagRetrieveTimeout, &cmder.retrieveTimeout)
	config.AddUintFlag(cmd, config.Flags, config.FlagDispatchTimeout, &cmder.dispatchTimeout)
	config.AddUintFlag(cmd, config.Flags, config.FlagMaxAge, &cmder.maxAge)
	config.AddStringFlag(cmd, config.Flags, config.FlagLockBackend, &cmder.lockBackend)
	config.AddStringFlag(cmd, config.Flags, config.FlagRedisURL, &cmder.redisURL)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaTopic, &cmder.kafkaTopic)
	config.AddStringFlag(cmd, config.Flags, config.FlagLogFile, &cmder.logFile)

	return cmd
}

// run never fails the host: every problem is logged and the hook exits 0.
func (c *hookCommander) run(cmd *cobra.Command) {
	cfg, err := cmdenv.LoadConfig(cmd, hookFlags...)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "reflex: loading config: %v\n", err)
		cfg = config.NewDefaultConfig()
	}

	log, closeLog := cmdenv.NewLogger(cmd, cfg)
	defer closeLog()
	log = log.With("hook", c.event)

	in, err := pipeline.ReadInput(cmd.InOrStdin())
	if err != nil {
		log.Warn("could not read hook input", "error", err)
		return
	}
	if in.HookEventName != "" && in.HookEventName != c.event {
		log.Debug("hook event name differs from command", "event", in.HookEventName)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	p, closeAll, err := c.newPipeline(ctx, cmd, cfg, in, log)
	if err != nil {
		log.Warn("hook disabled for this turn", "error", err)
		return
	}
	defer closeAll()

	switch c.event {
	case pipeline.EventUserPromptSubmit:
		res := p.PromptSubmit(ctx, in)
		writeContext(cmd.OutOrStdout(), res.Context, log)

	case pipeline.EventStop:
		p.Stop(ctx, in)
	}
}

// newPipeline wires the pipeline collaborators for one invocation. The
// returned func drains the pipeline and closes every backend.
func (c *hookCommander) newPipeline(
	ctx context.Context,
	cmd *cobra.Command,
	cfg *config.Config,
	in pipeline.HookInput,
	log *slog.Logger,
) (*pipeline.Pipeline, func(), error) {
	store, root, err := cmdenv.ProjectStore(in.Cwd)
	if err != nil {
		return nil, nil, fmt.Errorf("opening state directory: %w", err)
	}

	res := sweep.New(store, log).Sweep(cfg.Hooks.SweepMaxAge())
	if res.Removed > 0 || res.Failed > 0 {
		log.Debug(res.Summary())
	}

	// Unreadable credentials degrade like missing ones: the network steps
	// become no-ops while the local handoff protocol still runs.
	client, err := cmdenv.NewMemoryClient(cmdenv.ConfigDir(cmd), cfg)
	if err != nil {
		log.Warn("memory api disabled for this turn", "error", err)
		client = memoryapi.NewClient(memoryapi.ClientConfig{BaseURL: cfg.API.URL})
	}

	closers := []func(){}

	locker := c.newLocker(ctx, cfg, store, log, &closers)
	publisher := c.newPublisher(cfg, log)

	p, err := pipeline.New(&pipeline.Config{
		Store:           store,
		Locker:          locker,
		API:             client,
		Publisher:       publisher,
		Project:         git.RepoName(ctx, root),
		Layers:          cfg.Hooks.Layers,
		RetrieveTimeout: cfg.Hooks.RetrieveTimeout(),
		DispatchTimeout: cfg.Hooks.DispatchTimeout(),
		Logger:          log,
	})
	if err != nil {
		for _, fn := range closers {
			fn()
		}
		_ = publisher.Close()
		return nil, nil, err
	}

	return p, func() {
		p.Close()
		for _, fn := range closers {
			fn()
		}
	}, nil
}

// newLocker picks the configured lock backend. An unreachable redis falls
// back to the file lock.
func (c *hookCommander) newLocker(
	ctx context.Context,
	cfg *config.Config,
	store *state.Store,
	log *slog.Logger,
	closers *[]func(),
) lock.Locker {
	opts := lock.Options{
		Timeout: cfg.Lock.Timeout(),
		Stale:   cfg.Lock.Stale(),
	}

	if cfg.Lock.Backend == config.LockBackendRedis {
		rl, err := lock.NewRedisLocker(ctx, cfg.Lock.RedisURL, opts, log)
		if err == nil {
			*closers = append(*closers, func() { _ = rl.Close() })
			return rl
		}
		log.Warn("redis lock unavailable, using file lock", "error", err)
	}

	return lock.NewFileLocker(store, opts, log)
}

// newPublisher returns a Kafka publisher when brokers are configured.
func (c *hookCommander) newPublisher(cfg *config.Config, log *slog.Logger) eventstream.Publisher {
	if len(cfg.Events.KafkaBrokers) == 0 {
		return nop.NewPublisher()
	}

	pub, err := kafka.NewPublisher(kafka.Config{
		Brokers: cfg.Events.KafkaBrokers,
		Topic:   cfg.Events.KafkaTopic,
	})
	if err != nil {
		log.Warn("kafka publisher unavailable", "error", err)
		return nop.NewPublisher()
	}
	return pub
}

func writeContext(w io.Writer, block string, log *slog.Logger) {
	if block == "" {
		return
	}
	if _, err := io.WriteString(w, block); err != nil {
		log.Warn("writing context block failed", "error", err)
	}
}
