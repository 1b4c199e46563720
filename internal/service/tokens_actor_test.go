package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/arturoeanton/gitlab-tokens-exporter/internal/adapter/store"
	"github.com/arturoeanton/gitlab-tokens-exporter/internal/domain"
	"github.com/arturoeanton/gitlab-tokens-exporter/internal/port"
)

type step struct {
	snapshot string
	err      error
	panic    bool
}

// scriptedRefresher plays steps in order, repeating the last one. When gate is
// non-nil every call waits for a value on it.
type scriptedRefresher struct {
	steps []step
	gate  chan struct{}

	mu    sync.Mutex
	calls int
}

func (r *scriptedRefresher) Refresh(ctx context.Context) (RefreshResult, error) {
	r.mu.Lock()
	i := r.calls
	r.calls++
	r.mu.Unlock()

	if r.gate != nil {
		select {
		case <-r.gate:
		case <-ctx.Done():
			return RefreshResult{}, ctx.Err()
		}
	}
	s := r.steps[min(i, len(r.steps)-1)]
	if s.panic {
		panic("refresh exploded")
	}
	return RefreshResult{Snapshot: s.snapshot, Projects: 1, Tokens: 1}, s.err
}

func (r *scriptedRefresher) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func startActor(t *testing.T, r Refresher, opts ActorOptions) (*TokensActor, context.CancelFunc) {
	t.Helper()
	if opts.Interval == 0 {
		opts.Interval = time.Hour
	}
	a, err := NewTokensActor(r, opts)
	if err != nil {
		t.Fatalf("NewTokensActor() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go a.Run(ctx)
	t.Cleanup(cancel)
	return a, cancel
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func status(t *testing.T, a *TokensActor) domain.State {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	st, err := a.Status(ctx)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	return st
}

func TestTokensActor_EmptyBeforeFirstRefresh(t *testing.T) {
	r := &scriptedRefresher{steps: []step{{snapshot: "s1"}}, gate: make(chan struct{})}
	a, _ := startActor(t, r, ActorOptions{})

	got, err := a.GetState(context.Background())
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if got != "" {
		t.Errorf("GetState() = %q, want empty", got)
	}
	st := status(t, a)
	if st.Phase != domain.PhaseLoading || !st.Refreshing {
		t.Errorf("state = %+v, want loading and refreshing", st)
	}

	r.gate <- struct{}{}
	waitFor(t, "first snapshot", func() bool { return status(t, a).Phase == domain.PhaseReady })

	got, _ = a.GetState(context.Background())
	if got != "s1" {
		t.Errorf("GetState() = %q, want s1", got)
	}
}

func TestTokensActor_FirstRefreshIsImmediate(t *testing.T) {
	r := &scriptedRefresher{steps: []step{{snapshot: "now"}}}
	a, _ := startActor(t, r, ActorOptions{Interval: 24 * time.Hour})

	waitFor(t, "immediate refresh", func() bool { return status(t, a).Snapshot == "now" })
	if r.Calls() != 1 {
		t.Errorf("refresher called %d times, want 1", r.Calls())
	}
}

func TestTokensActor_TimerDrivesRefreshes(t *testing.T) {
	r := &scriptedRefresher{steps: []step{{snapshot: "a"}, {snapshot: "b"}, {snapshot: "c"}}}
	a, _ := startActor(t, r, ActorOptions{Interval: 20 * time.Millisecond})

	waitFor(t, "third refresh", func() bool { return status(t, a).Snapshot == "c" })
}

func TestTokensActor_FailedRefreshKeepsSnapshot(t *testing.T) {
	boom := errors.New("gitlab down")
	r := &scriptedRefresher{steps: []step{{snapshot: "good"}, {err: boom}}}
	rec := store.NewMemoryStore(10)
	a, _ := startActor(t, r, ActorOptions{Recorder: rec})

	waitFor(t, "first snapshot", func() bool { return status(t, a).Phase == domain.PhaseReady })

	started, err := a.Trigger(context.Background())
	if err != nil || !started {
		t.Fatalf("Trigger() = %v, %v", started, err)
	}
	waitFor(t, "failed refresh", func() bool { return status(t, a).Phase == domain.PhaseFailed })

	st := status(t, a)
	if st.Snapshot != "good" {
		t.Errorf("snapshot = %q, want previous good snapshot", st.Snapshot)
	}
	if st.LastError == "" || !st.Stale() {
		t.Errorf("state = %+v, want error recorded", st)
	}

	waitFor(t, "two recorded runs", func() bool {
		runs, _ := rec.ListRuns(context.Background(), 0)
		return len(runs) == 2
	})
	runs, _ := rec.ListRuns(context.Background(), 0)
	byStatus := map[string]domain.RefreshRun{}
	for _, run := range runs {
		byStatus[run.Status] = run
	}
	if run := byStatus[domain.RefreshStatusError]; run.Trigger != domain.TriggerManual || run.Error != boom.Error() {
		t.Errorf("failed run = %+v", run)
	}
	if run := byStatus[domain.RefreshStatusSuccess]; run.Trigger != domain.TriggerTimer || run.Bytes != len("good") {
		t.Errorf("successful run = %+v", run)
	}
}

func TestTokensActor_SkipsOverlappingRefresh(t *testing.T) {
	r := &scriptedRefresher{steps: []step{{snapshot: "slow"}}, gate: make(chan struct{})}
	rec := store.NewMemoryStore(10)
	a, _ := startActor(t, r, ActorOptions{Recorder: rec})

	started, err := a.Trigger(context.Background())
	if err != nil {
		t.Fatalf("Trigger() error = %v", err)
	}
	if started {
		t.Error("Trigger() started a second refresh while one was in flight")
	}

	// Reads stay responsive while the refresh is blocked.
	if got, err := a.GetState(context.Background()); err != nil || got != "" {
		t.Errorf("GetState() = %q, %v", got, err)
	}

	close(r.gate)
	waitFor(t, "refresh to finish", func() bool { return status(t, a).Snapshot == "slow" })
	if r.Calls() != 1 {
		t.Errorf("refresher called %d times, want 1", r.Calls())
	}

	waitFor(t, "skipped run recorded", func() bool {
		runs, _ := rec.ListRuns(context.Background(), 0)
		for _, run := range runs {
			if run.Status == domain.RefreshStatusSkipped {
				return true
			}
		}
		return false
	})
}

func TestTokensActor_PanicIsContained(t *testing.T) {
	r := &scriptedRefresher{steps: []step{{panic: true}, {snapshot: "recovered"}}}
	a, _ := startActor(t, r, ActorOptions{})

	waitFor(t, "failed state", func() bool { return status(t, a).Phase == domain.PhaseFailed })
	if st := status(t, a); st.Snapshot != "" {
		t.Errorf("snapshot = %q, want empty", st.Snapshot)
	}

	if started, err := a.Trigger(context.Background()); err != nil || !started {
		t.Fatalf("Trigger() = %v, %v", started, err)
	}
	waitFor(t, "recovery", func() bool { return status(t, a).Snapshot == "recovered" })
}

func TestTokensActor_RefreshTimeout(t *testing.T) {
	r := &scriptedRefresher{steps: []step{{snapshot: "never"}}, gate: make(chan struct{})}
	a, _ := startActor(t, r, ActorOptions{RefreshTimeout: 20 * time.Millisecond})

	waitFor(t, "timeout failure", func() bool { return status(t, a).Phase == domain.PhaseFailed })
	if st := status(t, a); st.Refreshing {
		t.Error("actor still marked as refreshing after timeout")
	}
}

func TestTokensActor_StoppedActorRejectsRequests(t *testing.T) {
	r := &scriptedRefresher{steps: []step{{snapshot: "x"}}}
	a, cancel := startActor(t, r, ActorOptions{})
	waitFor(t, "snapshot", func() bool { return status(t, a).Snapshot == "x" })

	cancel()
	waitFor(t, "actor stop", func() bool {
		_, err := a.GetState(context.Background())
		return errors.Is(err, port.ErrActorStopped)
	})
	if _, err := a.Trigger(context.Background()); !errors.Is(err, port.ErrActorStopped) {
		t.Errorf("Trigger() error = %v, want ErrActorStopped", err)
	}
}

func TestTokensActor_CallerContext(t *testing.T) {
	a, err := NewTokensActor(&scriptedRefresher{steps: []step{{}}}, ActorOptions{Interval: time.Hour})
	if err != nil {
		t.Fatal(err)
	}
	// Run was never started, so the request cannot be delivered.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := a.GetState(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("GetState() error = %v, want DeadlineExceeded", err)
	}
}

func TestNewTokensActor_Validation(t *testing.T) {
	if _, err := NewTokensActor(nil, ActorOptions{Interval: time.Hour}); err == nil {
		t.Error("expected error for nil refresher")
	}
	if _, err := NewTokensActor(&scriptedRefresher{}, ActorOptions{}); err == nil {
		t.Error("expected error for zero interval")
	}
}
