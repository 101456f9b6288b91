package server

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func manualHandler() *ShutdownHandler {
	return NewShutdownHandler(&ShutdownConfig{Timeout: 5 * time.Second})
}

func TestNewShutdownHandler(t *testing.T) {
	h := NewShutdownHandler(nil)
	if h.timeout != 30*time.Second {
		t.Fatalf("expected default timeout, got %v", h.timeout)
	}
	if len(h.signals) != 2 {
		t.Fatalf("expected 2 signals, got %d", len(h.signals))
	}
	if h := NewShutdownHandler(&ShutdownConfig{}); h.timeout != 30*time.Second {
		t.Fatalf("zero timeout should fall back to default, got %v", h.timeout)
	}
}

func TestShutdownHandler_HookOrder(t *testing.T) {
	h := manualHandler()

	var mu sync.Mutex
	var order []string
	record := func(name string) func(context.Context) error {
		return func(context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
			return nil
		}
	}
	h.RegisterHook("graph", PriorityGraph, record("graph"))
	h.RegisterHook("worker", PriorityWorker, record("worker"))
	h.RegisterHook("tracing", PriorityTracing, record("tracing"))
	h.RegisterHook("worker-2", PriorityWorker, record("worker-2"))

	h.Start()
	h.Shutdown()
	if !h.WaitWithTimeout(time.Second) {
		t.Fatal("shutdown did not complete")
	}

	want := []string{"worker", "worker-2", "tracing", "graph"}
	if len(order) != len(want) {
		t.Fatalf("order = %v", order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestShutdownHandler_HookErrorsDoNotStopSequence(t *testing.T) {
	h := manualHandler()
	ran := false
	h.RegisterHook("broken", 10, func(context.Context) error { return errors.New("boom") })
	h.RegisterHook("after", 20, func(context.Context) error {
		ran = true
		return nil
	})

	h.Start()
	h.Shutdown()
	h.Wait()

	if !ran {
		t.Fatal("hook after a failing hook did not run")
	}
	errs := h.Errors()
	if len(errs) != 1 || errs["broken"] == nil {
		t.Fatalf("errors = %v", errs)
	}
}

func TestShutdownHandler_ShutdownCh(t *testing.T) {
	h := manualHandler()
	h.Start()
	select {
	case <-h.ShutdownCh():
		t.Fatal("shutdown channel closed early")
	default:
	}
	h.Shutdown()
	h.Shutdown()
	select {
	case <-h.ShutdownCh():
	case <-time.After(time.Second):
		t.Fatal("shutdown channel not closed")
	}
	<-h.Done()
}

func TestShutdownHandler_WaitWithTimeout(t *testing.T) {
	h := manualHandler()
	h.RegisterHook("slow", 10, func(ctx context.Context) error {
		time.Sleep(200 * time.Millisecond)
		return nil
	})
	h.Start()
	h.Shutdown()
	if h.WaitWithTimeout(10 * time.Millisecond) {
		t.Fatal("expected timeout while hook is running")
	}
	if !h.WaitWithTimeout(2 * time.Second) {
		t.Fatal("expected shutdown to complete")
	}
}

func TestShutdownHandler_ShutdownBeforeStart(t *testing.T) {
	h := manualHandler()
	h.Shutdown()
	select {
	case <-h.ShutdownCh():
		t.Fatal("shutdown before Start should be ignored")
	default:
	}
}

func TestShutdownHandler_HookContextHasDeadline(t *testing.T) {
	h := manualHandler()
	var hasDeadline bool
	h.RegisterHook("check", 10, func(ctx context.Context) error {
		_, hasDeadline = ctx.Deadline()
		return nil
	})
	h.Start()
	h.Shutdown()
	h.Wait()
	if !hasDeadline {
		t.Fatal("hook context has no deadline")
	}
}

func TestHookConstructors(t *testing.T) {
	stopped := false
	tests := []struct {
		hook     ShutdownHook
		name     string
		priority int
	}{
		{HTTPServerShutdownHook("health", func(context.Context) error { return nil }), "health", PriorityHealth},
		{TemporalWorkerShutdownHook(func() { stopped = true }), "temporal-worker", PriorityWorker},
		{TracingShutdownHook(func(context.Context) error { return nil }), "tracing", PriorityTracing},
		{GraphShutdownHook(func(context.Context) error { return nil }), "graph", PriorityGraph},
	}
	for _, tt := range tests {
		if tt.hook.Name != tt.name || tt.hook.Priority != tt.priority {
			t.Errorf("hook = %s/%d, want %s/%d", tt.hook.Name, tt.hook.Priority, tt.name, tt.priority)
		}
		if err := tt.hook.Fn(context.Background()); err != nil {
			t.Errorf("%s: %v", tt.name, err)
		}
	}
	if !stopped {
		t.Error("worker stop function not called")
	}
}

func TestGracefulServer(t *testing.T) {
	g := NewGracefulServer(&HealthConfig{Version: "test"}, &ShutdownConfig{Timeout: 5 * time.Second})
	closed := false
	g.RegisterHook(GraphShutdownHook(func(context.Context) error {
		closed = true
		return nil
	}))
	g.Start("127.0.0.1:0")
	if !g.Health.ready {
		t.Fatal("expected ready after Start")
	}

	g.Shutdown.Shutdown()
	g.Wait()

	if !closed {
		t.Fatal("graph hook did not run")
	}
	g.Health.mu.RLock()
	ready := g.Health.ready
	g.Health.mu.RUnlock()
	if ready {
		t.Fatal("expected not ready after shutdown")
	}
}
