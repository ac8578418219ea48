package redis

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}

	c, err := NewClient(mr.Host(), port, "", 0)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func TestRecommendationRoundTrip(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	if _, ok, err := c.GetRecommendation(ctx, "abc"); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}

	if err := c.SetRecommendation(ctx, "abc", "Buy recycled steel.", time.Minute); err != nil {
		t.Fatalf("SetRecommendation: %v", err)
	}

	got, ok, err := c.GetRecommendation(ctx, "abc")
	if err != nil || !ok || got != "Buy recycled steel." {
		t.Fatalf("unexpected lookup %q ok=%v err=%v", got, ok, err)
	}

	if ttl := mr.TTL("recommendation:abc"); ttl != time.Minute {
		t.Fatalf("unexpected ttl %v", ttl)
	}

	mr.FastForward(2 * time.Minute)
	if _, ok, _ := c.GetRecommendation(ctx, "abc"); ok {
		t.Fatal("expected entry to expire")
	}
}

func TestInvalidateRecommendations(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	for _, k := range []string{"a", "b", "c"} {
		if err := c.SetRecommendation(ctx, k, "x", 0); err != nil {
			t.Fatalf("SetRecommendation: %v", err)
		}
	}
	mr.Set("session:42", "keep")

	n, err := c.InvalidateRecommendations(ctx)
	if err != nil || n != 3 {
		t.Fatalf("expected 3 deletions, got %d err=%v", n, err)
	}
	if !mr.Exists("session:42") {
		t.Fatal("unrelated key should survive invalidation")
	}
	if _, ok, _ := c.GetRecommendation(ctx, "a"); ok {
		t.Fatal("expected recommendation to be gone")
	}
}

func TestNewClientFailsWithoutServer(t *testing.T) {
	mr := miniredis.RunT(t)
	port, _ := strconv.Atoi(mr.Port())
	mr.Close()

	if _, err := NewClient(mr.Host(), port, "", 0); err == nil {
		t.Fatal("expected connection error")
	}
}
