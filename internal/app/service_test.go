package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/consign-next/internal/config"
)

type fakeService struct {
	name     string
	startErr error
	mu       sync.Mutex
	stopped  bool
}

func (s *fakeService) Name() string { return s.name }

func (s *fakeService) Start(ctx context.Context) error {
	if s.startErr != nil {
		return s.startErr
	}
	<-ctx.Done()
	return nil
}

func (s *fakeService) Stop(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	return nil
}

func (s *fakeService) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

func TestRunnerStopsAllServicesOnFailure(t *testing.T) {
	healthy := &fakeService{name: "http"}
	failing := &fakeService{name: "worker", startErr: errors.New("redis unreachable")}
	runner := NewRunner(healthy, failing)
	cleaned := false
	runner.OnShutdown(func() { cleaned = true })

	err := runner.Run(context.Background(), time.Second, nil)
	if err == nil || err.Error() != "redis unreachable" {
		t.Fatalf("expected start error, got %v", err)
	}
	if !healthy.isStopped() || !failing.isStopped() {
		t.Fatalf("all services should be stopped")
	}
	if !cleaned {
		t.Fatalf("cleanup should run after stop")
	}
}

func TestRunnerReturnsNilOnCancel(t *testing.T) {
	svc := &fakeService{name: "http"}
	runner := NewRunner(svc)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	if err := runner.Run(ctx, time.Second, nil); err != nil {
		t.Fatalf("cancel should be treated as clean shutdown, got %v", err)
	}
	if !svc.isStopped() {
		t.Fatalf("service should be stopped")
	}
}

func TestRunnerWithoutServices(t *testing.T) {
	if err := NewRunner().Run(context.Background(), time.Second, nil); err == nil {
		t.Fatalf("expected error for empty runner")
	}
}

func TestNormalizeOptionsUsesConfiguredShutdownTimeout(t *testing.T) {
	cfg := &config.Config{}
	cfg.Server.ShutdownTimeoutSeconds = 25
	opts := normalizeOptions(Options{Config: cfg})
	if opts.ShutdownTimeout != 25*time.Second {
		t.Fatalf("shutdown timeout want 25s got %s", opts.ShutdownTimeout)
	}
	if opts.Mode != ModeAll {
		t.Fatalf("empty mode should default to all, got %q", opts.Mode)
	}

	opts = normalizeOptions(Options{Config: cfg, ShutdownTimeout: time.Second})
	if opts.ShutdownTimeout != time.Second {
		t.Fatalf("explicit shutdown timeout should win, got %s", opts.ShutdownTimeout)
	}
	opts = normalizeOptions(Options{})
	if opts.ShutdownTimeout != defaultShutdownTimeout {
		t.Fatalf("default shutdown timeout want %s got %s", defaultShutdownTimeout, opts.ShutdownTimeout)
	}
}

func TestBuildRunnerRequiresConfig(t *testing.T) {
	if _, err := BuildRunner(nil, ModeAll); err == nil {
		t.Fatalf("nil config should fail")
	}
}
