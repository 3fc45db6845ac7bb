package authcore

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestAuditChannelSinkReceivesLoginEvents(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := newMockUserStore()
	user := seedUser(t, store, "alice@example.com", strongPassword)

	sink, events := NewChannelAuditSink(16)
	cfg := newTestConfig()
	cfg.Audit.Enabled = true

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserStore(store).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	ctx := WithClientIP(context.Background(), "203.0.113.9")
	if _, err := engine.Login(ctx, user.Email, strongPassword); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	engine.Close()

	select {
	case event := <-events:
		if event.EventType != EventLogin || !event.Success {
			t.Fatalf("unexpected event: %+v", event)
		}
		if event.UserID != user.UserID || event.IP != "203.0.113.9" {
			t.Fatalf("event missing identity or IP: %+v", event)
		}
	case <-time.After(time.Second):
		t.Fatal("no audit event delivered")
	}
}

func TestAuditJSONSinkWritesOneLinePerEvent(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := newMockUserStore()
	user := seedUser(t, store, "alice@example.com", strongPassword)

	var buf bytes.Buffer
	cfg := newTestConfig()
	cfg.Audit.Enabled = true

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserStore(store).
		WithAuditSink(NewJSONAuditSink(&buf)).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	ctx := context.Background()
	if _, err := engine.Login(ctx, user.Email, strongPassword); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if _, err := engine.Login(ctx, user.Email, "Wr0ng!Guess#42x"); err == nil {
		t.Fatal("expected login failure")
	}
	// Close drains everything still queued.
	engine.Close()

	var lines int
	scanner := bufio.NewScanner(&buf)
	for scanner.Scan() {
		lines++
		var event AuditEvent
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			t.Fatalf("line %d is not valid JSON: %v", lines, err)
		}
		if event.EventType == "" {
			t.Fatalf("line %d missing event_type", lines)
		}
	}
	if lines != 2 {
		t.Fatalf("expected 2 audit lines, got %d", lines)
	}
}

func TestAuditDisabledIsSilent(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := newMockUserStore()
	user := seedUser(t, store, "alice@example.com", strongPassword)
	engine := newTestEngine(t, rdb, store, nil, nil)

	if _, err := engine.Login(context.Background(), user.Email, strongPassword); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if engine.AuditDropped() != 0 {
		t.Fatalf("disabled audit reported drops: %d", engine.AuditDropped())
	}
}
