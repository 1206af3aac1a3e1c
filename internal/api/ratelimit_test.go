package api

import (
	"net/http/httptest"
	"testing"
	"time"
)

func TestLimiterRefills(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewLimiter(1, 2, 1)
	l.now = func() time.Time { return now }

	if !l.AllowKey("a") || !l.AllowKey("a") {
		t.Fatal("burst of 2 should allow two requests")
	}
	if l.AllowKey("a") {
		t.Fatal("third request should be limited")
	}
	if !l.AllowKey("b") {
		t.Error("other clients have their own bucket")
	}

	now = now.Add(time.Second)
	if !l.AllowKey("a") {
		t.Error("one token should have refilled after a second")
	}
	if l.AllowKey("a") {
		t.Error("only one token should have refilled")
	}
}

func TestLimiterPrunesIdleClients(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewLimiter(1, 1, 1)
	l.now = func() time.Time { return now }
	l.lastPrune = now

	l.AllowKey("idle")
	now = now.Add(time.Hour)
	l.AllowKey("fresh")

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.clients["idle"]; ok {
		t.Error("idle client should have been pruned")
	}
	if _, ok := l.clients["fresh"]; !ok {
		t.Error("fresh client should be tracked")
	}
}

func TestClientIPIgnoresForwardedFor(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.7:5555"
	r.Header.Set("X-Forwarded-For", "1.2.3.4")

	if got := clientIP(r); got != "10.0.0.7" {
		t.Errorf("Expected 10.0.0.7, got %q", got)
	}
}
