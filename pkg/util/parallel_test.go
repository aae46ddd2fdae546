package util

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

func TestParallelVisitsAll(t *testing.T) {
	inputs := make([]int, 50)
	for i := range inputs {
		inputs[i] = i + 1
	}
	var sum, running, peak atomic.Int64
	err := Parallel(context.Background(), inputs, 4, func(_ context.Context, n int) error {
		cur := running.Add(1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		sum.Add(int64(n))
		running.Add(-1)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if sum.Load() != 50*51/2 {
		t.Errorf("sum = %d", sum.Load())
	}
	if peak.Load() > 4 {
		t.Errorf("peak concurrency = %d, want <= 4", peak.Load())
	}
}

func TestParallelFirstError(t *testing.T) {
	boom := errors.New("boom")
	var calls atomic.Int64
	err := Parallel(context.Background(), make([]int, 100), 1, func(_ context.Context, _ int) error {
		if calls.Add(1) == 3 {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if calls.Load() >= 100 {
		t.Errorf("feeding did not stop after the error: %d calls", calls.Load())
	}
}

func TestParallelEmpty(t *testing.T) {
	err := Parallel(context.Background(), []int(nil), 0, func(context.Context, int) error {
		t.Fatal("fn called for empty input")
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestParallelCancelledParent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Parallel(ctx, []int{1, 2, 3}, 1, func(context.Context, int) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
