package redelivery

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
)

type fakeCounter struct {
	counts map[string]int64
	err    error
}

func (f *fakeCounter) Incr(_ context.Context, key string) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	if f.counts == nil {
		f.counts = map[string]int64{}
	}
	f.counts[key]++
	return f.counts[key], nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGuardAllowsUnderBudget(t *testing.T) {
	g := NewGuard(&fakeCounter{}, 3, testLogger())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if !g.AllowRequeue(ctx, "corr-1") {
			t.Fatalf("attempt %d should be requeued", i+1)
		}
	}
	if g.AllowRequeue(ctx, "corr-1") {
		t.Fatal("attempt 3 should be dropped at maxAttempts=3")
	}
}

func TestGuardTracksCorrelationIDsIndependently(t *testing.T) {
	g := NewGuard(&fakeCounter{}, 2, testLogger())
	ctx := context.Background()

	if !g.AllowRequeue(ctx, "corr-a") {
		t.Fatal("first failure of corr-a should requeue")
	}
	if !g.AllowRequeue(ctx, "corr-b") {
		t.Fatal("first failure of corr-b should requeue")
	}
	if g.AllowRequeue(ctx, "corr-a") {
		t.Fatal("second failure of corr-a should drop")
	}
}

func TestGuardFailsOpenOnCounterError(t *testing.T) {
	g := NewGuard(&fakeCounter{err: errors.New("redis down")}, 1, testLogger())
	if !g.AllowRequeue(context.Background(), "corr-1") {
		t.Fatal("counter errors must fail open")
	}
}

func TestGuardAllowsMissingCorrelationID(t *testing.T) {
	g := NewGuard(&fakeCounter{}, 1, testLogger())
	if !g.AllowRequeue(context.Background(), "") {
		t.Fatal("uncountable messages must be requeued")
	}
}

func TestGuardDefaultsMaxAttempts(t *testing.T) {
	g := NewGuard(&fakeCounter{}, 0, testLogger())
	if g.maxAttempts != 5 {
		t.Fatalf("expected default 5, got %d", g.maxAttempts)
	}
}
