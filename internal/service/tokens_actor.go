package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/arturoeanton/gitlab-tokens-exporter/internal/domain"
	"github.com/arturoeanton/gitlab-tokens-exporter/internal/logutil"
	"github.com/arturoeanton/gitlab-tokens-exporter/internal/port"
)

// recordTimeout bounds a single history write.
const recordTimeout = 10 * time.Second

// Refresher produces a new snapshot. *RefreshService implements it.
type Refresher interface {
	Refresh(ctx context.Context) (RefreshResult, error)
}

// ActorOptions configures a TokensActor.
type ActorOptions struct {
	// Interval between timer-driven refreshes. Must be positive.
	Interval time.Duration
	// RefreshTimeout bounds one refresh; zero means no bound.
	RefreshTimeout time.Duration
	// Recorder receives every refresh outcome; nil disables recording.
	Recorder port.RunRecorder
	Logger   *slog.Logger
	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

// TokensActor is the single owner of the exported snapshot. All reads and
// writes of its state happen on the goroutine running Run; callers talk to it
// through messages and get value copies back.
type TokensActor struct {
	refresher      Refresher
	recorder       port.RunRecorder
	interval       time.Duration
	refreshTimeout time.Duration
	logger         *slog.Logger
	now            func() time.Time

	requests    chan actorMessage
	completions chan completion
	done        chan struct{}
	running     atomic.Bool

	// Owned by the Run goroutine.
	state domain.State
}

type actorMessage interface{ isActorMessage() }

type getStateMsg struct {
	respond chan<- domain.State
}

type triggerMsg struct {
	respond chan<- bool
}

func (getStateMsg) isActorMessage() {}
func (triggerMsg) isActorMessage()  {}

// completion is what a refresh goroutine sends back when it ends.
type completion struct {
	run    domain.RefreshRun
	result RefreshResult
	err    error
}

// NewTokensActor creates an actor. Call Run to start it.
func NewTokensActor(refresher Refresher, opts ActorOptions) (*TokensActor, error) {
	if refresher == nil {
		return nil, fmt.Errorf("tokens actor: refresher is nil")
	}
	if opts.Interval <= 0 {
		return nil, fmt.Errorf("tokens actor: interval must be positive, got %s", opts.Interval)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &TokensActor{
		refresher:      refresher,
		recorder:       opts.Recorder,
		interval:       opts.Interval,
		refreshTimeout: opts.RefreshTimeout,
		logger:         logutil.NoopIfNil(opts.Logger),
		now:            opts.Now,
		requests:       make(chan actorMessage),
		completions:    make(chan completion),
		done:           make(chan struct{}),
		state:          domain.State{Phase: domain.PhaseLoading},
	}, nil
}

// Run is the actor loop. The first refresh starts immediately, then one per
// interval. Run returns when ctx is cancelled; afterwards every request fails
// with port.ErrActorStopped. Run must be called at most once.
func (a *TokensActor) Run(ctx context.Context) {
	if !a.running.CompareAndSwap(false, true) {
		a.logger.Error("tokens actor already running")
		return
	}
	defer close(a.done)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	a.logger.Info("tokens actor started", "interval", a.interval)
	a.startRefresh(ctx, domain.TriggerTimer)

	for {
		select {
		case <-ctx.Done():
			a.logger.Error("tokens actor stopped", "reason", ctx.Err())
			return
		case msg := <-a.requests:
			a.handle(ctx, msg)
		case <-ticker.C:
			a.startRefresh(ctx, domain.TriggerTimer)
		case c := <-a.completions:
			a.commit(c)
		}
	}
}

// GetState returns the current snapshot ("" until the first refresh succeeds).
func (a *TokensActor) GetState(ctx context.Context) (string, error) {
	st, err := a.Status(ctx)
	if err != nil {
		return "", err
	}
	return st.Snapshot, nil
}

// Status returns a copy of the full actor state.
func (a *TokensActor) Status(ctx context.Context) (domain.State, error) {
	respond := make(chan domain.State, 1)
	if err := a.send(ctx, getStateMsg{respond: respond}); err != nil {
		return domain.State{}, err
	}
	select {
	case st := <-respond:
		return st, nil
	case <-ctx.Done():
		return domain.State{}, ctx.Err()
	}
}

// Trigger asks for an immediate refresh. It reports false when a refresh is
// already running, in which case nothing new is started.
func (a *TokensActor) Trigger(ctx context.Context) (bool, error) {
	respond := make(chan bool, 1)
	if err := a.send(ctx, triggerMsg{respond: respond}); err != nil {
		return false, err
	}
	select {
	case started := <-respond:
		return started, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (a *TokensActor) send(ctx context.Context, msg actorMessage) error {
	select {
	case a.requests <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-a.done:
		return port.ErrActorStopped
	}
}

func (a *TokensActor) handle(ctx context.Context, msg actorMessage) {
	switch m := msg.(type) {
	case getStateMsg:
		st := a.state
		st.SnapshotBytes = len(st.Snapshot)
		m.respond <- st
	case triggerMsg:
		m.respond <- a.startRefresh(ctx, domain.TriggerManual)
	}
}

// startRefresh spawns a refresh goroutine unless one is already in flight.
func (a *TokensActor) startRefresh(ctx context.Context, trigger string) bool {
	now := a.now()
	run := domain.RefreshRun{
		ID:        uuid.NewString(),
		Trigger:   trigger,
		StartedAt: now,
	}

	if a.state.Refreshing {
		a.logger.Warn("refresh already in progress, skipping", "trigger", trigger)
		run.Status = domain.RefreshStatusSkipped
		run.Error = port.ErrRefreshInProgress.Error()
		run.FinishedAt = now
		a.record(run)
		return false
	}

	a.state.Refreshing = true
	a.state.LastAttemptAt = now
	a.logger.Info("updating tokens data", "run_id", run.ID, "trigger", trigger)

	go a.refresh(ctx, run)
	return true
}

// refresh runs on its own goroutine. Whatever happens, including a panic,
// exactly one completion is delivered unless the actor is shutting down.
func (a *TokensActor) refresh(ctx context.Context, run domain.RefreshRun) {
	c := completion{run: run}
	defer func() {
		if r := recover(); r != nil {
			c.err = fmt.Errorf("refresh panicked: %v", r)
		}
		c.run.FinishedAt = a.now()
		select {
		case a.completions <- c:
		case <-ctx.Done():
		}
	}()

	rctx := ctx
	if a.refreshTimeout > 0 {
		var cancel context.CancelFunc
		rctx, cancel = context.WithTimeout(ctx, a.refreshTimeout)
		defer cancel()
	}

	c.result, c.err = a.refresher.Refresh(rctx)
}

// commit applies a refresh outcome. A failed refresh keeps the previous snapshot.
func (a *TokensActor) commit(c completion) {
	a.state.Refreshing = false
	run := c.run

	if c.err != nil {
		a.state.Phase = domain.PhaseFailed
		a.state.LastError = c.err.Error()
		run.Status = domain.RefreshStatusError
		run.Error = c.err.Error()
		a.logger.Error("tokens refresh failed",
			"run_id", run.ID,
			"duration", run.Duration(),
			"error", c.err,
		)
	} else {
		a.state.Snapshot = c.result.Snapshot
		a.state.Phase = domain.PhaseReady
		a.state.LastError = ""
		a.state.UpdatedAt = run.FinishedAt
		run.Status = domain.RefreshStatusSuccess
		run.Projects = c.result.Projects
		run.Tokens = c.result.Tokens
		run.Skipped = c.result.Skipped
		run.Bytes = len(c.result.Snapshot)
		a.logger.Info("tokens data updated",
			"run_id", run.ID,
			"projects", run.Projects,
			"tokens", run.Tokens,
			"skipped", run.Skipped,
			"duration", run.Duration(),
		)
	}

	a.record(run)
}

// record persists run off the actor goroutine so storage I/O never delays readers.
func (a *TokensActor) record(run domain.RefreshRun) {
	if a.recorder == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		if err := a.recorder.RecordRun(ctx, run); err != nil {
			a.logger.Error("failed to record refresh run", "run_id", run.ID, "error", err)
		}
	}()
}
