package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/fd1az/nightfall-sdk/internal/ratelimit"
)

func TestLimiter_Burst(t *testing.T) {
	l := ratelimit.New(60) // 1/s, burst 6

	for i := 0; i < 6; i++ {
		if !l.Allow() {
			t.Fatalf("expected request %d to fit in the burst", i)
		}
	}
	if l.Allow() {
		t.Error("expected burst to be exhausted")
	}
}

func TestLimiter_WaitHonoursContext(t *testing.T) {
	l := ratelimit.New(1) // one token per minute, burst 1
	l.Allow()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := l.Wait(ctx); err == nil {
		t.Error("expected wait to fail before the next token")
	}
}
