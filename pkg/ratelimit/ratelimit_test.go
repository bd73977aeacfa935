package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestTokenBucketAllowDrainsToZero(t *testing.T) {
	tb := NewTokenBucket(3, 1, time.Second)
	for i := 0; i < 3; i++ {
		if !tb.Allow() {
			t.Fatalf("token %d should be available", i)
		}
	}
	if tb.Allow() {
		t.Fatal("bucket should be empty")
	}
}

func TestTokenBucketPerWindowCapacity(t *testing.T) {
	tb := NewTokenBucketPerWindow(4, time.Minute)
	for i := 0; i < 4; i++ {
		if !tb.Allow() {
			t.Fatalf("token %d should be available", i)
		}
	}
	if tb.Allow() {
		t.Fatal("fifth event within the window should be rejected")
	}
	if got := tb.GetRemaining(); got != 0 {
		t.Fatalf("expected 0 remaining, got %d", got)
	}
}

func TestTokenBucketPerWindowRefills(t *testing.T) {
	tb := NewTokenBucketPerWindow(2, 100*time.Millisecond)
	tb.Allow()
	tb.Allow()
	if tb.Allow() {
		t.Fatal("bucket should be empty")
	}
	time.Sleep(120 * time.Millisecond)
	if !tb.Allow() {
		t.Fatal("bucket should have refilled after the window")
	}
}

func TestTokenBucketWaitHonorsContext(t *testing.T) {
	tb := NewTokenBucketPerWindow(1, time.Hour)
	tb.Allow()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := tb.Wait(ctx); err == nil {
		t.Fatal("Wait should fail when the context expires first")
	}
}
