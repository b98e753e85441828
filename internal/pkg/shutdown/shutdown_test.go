package shutdown

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"

	"montage/internal/pkg/logger"
)

func newTestLogger(buf *bytes.Buffer) *logger.Logger {
	return logger.New(logger.Config{Level: "debug", Format: "json", Output: buf})
}

func TestRegister(t *testing.T) {
	var buf bytes.Buffer
	mgr := NewManager(newTestLogger(&buf), 0)
	if mgr.timeout != 30*time.Second {
		t.Errorf("expected default timeout, got %v", mgr.timeout)
	}

	var called atomic.Bool
	mgr.Register("pool", func(ctx context.Context) error { return nil })
	mgr.RegisterSimple("redis", func() { called.Store(true) })
	if len(mgr.handlers) != 2 || mgr.handlers[0].Name != "pool" {
		t.Fatalf("unexpected handlers %+v", mgr.handlers)
	}

	mgr.Shutdown()
	if !called.Load() {
		t.Error("expected simple handler to be called")
	}
}

func TestShutdownRunsEveryHandlerOnce(t *testing.T) {
	defer leaktest.Check(t)()

	var buf bytes.Buffer
	mgr := NewManager(newTestLogger(&buf), 5*time.Second)

	var counter atomic.Int32
	for i := 0; i < 10; i++ {
		mgr.Register("handler", func(ctx context.Context) error {
			counter.Add(1)
			time.Sleep(5 * time.Millisecond)
			return nil
		})
	}
	mgr.Register("failing", func(ctx context.Context) error { return errors.New("close failed") })

	mgr.Shutdown()
	mgr.Shutdown()

	if counter.Load() != 10 {
		t.Errorf("expected 10 handler runs, got %d", counter.Load())
	}
	if !strings.Contains(buf.String(), "close failed") {
		t.Error("expected handler failure to be logged")
	}
	select {
	case <-mgr.Done():
	default:
		t.Error("expected done channel to be closed")
	}
}

func TestContextCanceledOnShutdown(t *testing.T) {
	var buf bytes.Buffer
	mgr := NewManager(newTestLogger(&buf), 5*time.Second)

	ctx := mgr.Context()
	select {
	case <-ctx.Done():
		t.Fatal("context canceled before shutdown")
	default:
	}

	mgr.Shutdown()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Error("expected context to be canceled after shutdown")
	}
}

func TestGoLoopsStopBeforeHandlers(t *testing.T) {
	defer leaktest.Check(t)()

	var buf bytes.Buffer
	mgr := NewManager(newTestLogger(&buf), 5*time.Second)

	var loopStopped atomic.Bool
	var sawStoppedLoop atomic.Bool
	mgr.Go("worker", func(ctx context.Context) error {
		<-ctx.Done()
		time.Sleep(10 * time.Millisecond)
		loopStopped.Store(true)
		return ctx.Err()
	})
	mgr.Register("pool", func(ctx context.Context) error {
		sawStoppedLoop.Store(loopStopped.Load())
		return nil
	})

	mgr.Shutdown()
	if !sawStoppedLoop.Load() {
		t.Error("cleanup ran before the background loop returned")
	}
	if strings.Contains(buf.String(), "background loop exited") {
		t.Error("context cancellation should not be reported as a loop failure")
	}
}

func TestGoReportsEarlyFailure(t *testing.T) {
	var buf bytes.Buffer
	mgr := NewManager(newTestLogger(&buf), time.Second)

	mgr.Go("sweeper", func(ctx context.Context) error { return errors.New("bad schedule") })
	mgr.Shutdown()

	if !strings.Contains(buf.String(), "bad schedule") {
		t.Errorf("expected loop error in log, got %s", buf.String())
	}
}

func TestShutdownTimeout(t *testing.T) {
	var buf bytes.Buffer
	mgr := NewManager(newTestLogger(&buf), 100*time.Millisecond)

	release := make(chan struct{})
	defer close(release)
	mgr.Register("slow", func(ctx context.Context) error {
		<-release
		return nil
	})

	start := time.Now()
	mgr.Shutdown()
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("shutdown took too long: %v", elapsed)
	}
	if !strings.Contains(buf.String(), "shutdown timeout exceeded") {
		t.Error("expected timeout warning")
	}
}
