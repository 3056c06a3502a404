package queue

import (
	"testing"
	"time"

	"github.com/consign-next/internal/config"
)

func TestDisabledClientIsNoop(t *testing.T) {
	client, err := NewClient(&config.QueueConfig{Enabled: false})
	if err != nil {
		t.Fatalf("new client failed: %v", err)
	}
	if client.Enabled() {
		t.Fatalf("expected disabled client")
	}
	if err := client.EnqueueCnReservationExpire(CnReservationExpirePayload{CN: "2026101601", ExpiresAt: time.Now()}); err != nil {
		t.Fatalf("disabled enqueue should be a no-op: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
}

func TestReservationExpirePayloadRoundTrip(t *testing.T) {
	expires := time.Date(2026, 10, 16, 8, 30, 0, 0, time.UTC)
	task, err := NewCnReservationExpireTask(CnReservationExpirePayload{CN: "2026101603", ExpiresAt: expires})
	if err != nil {
		t.Fatalf("new task failed: %v", err)
	}
	if task.Type() != TaskCnReservationExpire {
		t.Fatalf("unexpected task type: %s", task.Type())
	}
	payload, err := ParseCnReservationExpirePayload(task)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if payload.CN != "2026101603" || !payload.ExpiresAt.Equal(expires) {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestBuildServerConfigDefaults(t *testing.T) {
	opt, cfg := BuildServerConfig(&config.QueueConfig{Host: " redis ", Port: 6380})
	if opt.Addr != "redis:6380" {
		t.Fatalf("unexpected addr: %s", opt.Addr)
	}
	if cfg.Concurrency != 10 || cfg.Queues[DefaultQueue] != 1 {
		t.Fatalf("unexpected server config: %+v", cfg)
	}
}
