package background

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/brettericmartin/teed-sub011/internal/logging"
	"github.com/brettericmartin/teed-sub011/internal/services"
)

func TestRunnerReportsFailuresThroughHook(t *testing.T) {
	var (
		mu     sync.Mutex
		failed []string
	)
	runner := New(logging.NewNop(), Options{OnError: func(name string, err error) {
		mu.Lock()
		defer mu.Unlock()
		failed = append(failed, name)
		if !errors.Is(err, services.ErrPersistence) {
			t.Errorf("unexpected error %v", err)
		}
	}})

	var ran atomic.Int32
	if err := runner.Go(context.Background(), "ok", func(context.Context) error {
		ran.Add(1)
		return nil
	}); err != nil {
		t.Fatalf("Go: %v", err)
	}
	if err := runner.Go(context.Background(), "write", func(context.Context) error {
		ran.Add(1)
		return services.Wrap(services.ErrPersistence, "library", "upsert", "disk full", nil)
	}); err != nil {
		t.Fatalf("Go: %v", err)
	}
	runner.Wait()

	if ran.Load() != 2 {
		t.Fatalf("expected both tasks to run, got %d", ran.Load())
	}
	mu.Lock()
	defer mu.Unlock()
	if len(failed) != 1 || failed[0] != "write" {
		t.Fatalf("unexpected failures %v", failed)
	}
}

func TestRunnerDetachesFromCallerCancellation(t *testing.T) {
	runner := New(nil, Options{})
	ctx, cancel := context.WithCancel(services.WithRequestID(context.Background(), "req-1"))

	started := make(chan struct{})
	release := make(chan struct{})
	var (
		sawErr error
		sawID  string
	)
	_ = runner.Go(ctx, "slow", func(taskCtx context.Context) error {
		close(started)
		<-release
		sawErr = taskCtx.Err()
		sawID, _ = services.RequestIDFromContext(taskCtx)
		return nil
	})
	<-started
	cancel()
	close(release)
	if err := runner.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if sawErr != nil {
		t.Fatalf("task context should not be cancelled with the caller, got %v", sawErr)
	}
	if sawID != "req-1" {
		t.Fatalf("expected request id to propagate, got %q", sawID)
	}
}

func TestRunnerRecoversPanicsAndRejectsAfterClose(t *testing.T) {
	var hookErr error
	runner := New(nil, Options{Timeout: time.Second, OnError: func(_ string, err error) { hookErr = err }})
	_ = runner.Go(context.Background(), "panic", func(context.Context) error { panic("boom") })
	if err := runner.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if hookErr == nil {
		t.Fatal("expected panic to be reported")
	}
	if err := runner.Go(context.Background(), "late", func(context.Context) error { return nil }); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
