package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDoSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, Multiplier: 2}, func() (int, error) {
		calls++
		return 42, nil
	})
	if err != nil || got != 42 {
		t.Fatalf("got %d, %v", got, err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d", calls)
	}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, Multiplier: 2}, func() (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("transient")
		}
		return "ok", nil
	})
	if err != nil || got != "ok" {
		t.Fatalf("got %q, %v", got, err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d", calls)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	boom := errors.New("down")
	calls := 0
	_, err := Do(context.Background(), Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, Multiplier: 2}, func() (int, error) {
		calls++
		return 0, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d", calls)
	}
}

func TestDoZeroPolicyUsesDefault(t *testing.T) {
	p := DefaultPolicy()
	if p.MaxAttempts != 3 || p.BaseDelay != time.Second || p.Multiplier != 2 {
		t.Fatalf("default = %+v", p)
	}
}

func TestDoHonorsContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := Do(ctx, Policy{MaxAttempts: 5, BaseDelay: time.Minute, Multiplier: 2}, func() (int, error) {
		calls++
		return 0, errors.New("transient")
	})
	if err == nil {
		t.Fatal("expected error after cancel")
	}
	if calls > 1 {
		t.Fatalf("calls = %d after cancel", calls)
	}
}
