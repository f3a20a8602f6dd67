package precise

import (
	"context"
	"errors"
	"testing"
	"time"

	"vectorstack/internal/adapter/emulator"
)

func TestWaitUntilReady_ObservesTransition(t *testing.T) {
	c, _ := newEmulatorClient(t, emulator.Options{TransitionDelay: 30 * time.Millisecond})
	ctx := context.Background()

	info, err := c.CreateIndex(ctx, CreateIndexRequest{Name: "slow", Dimension: 2})
	if err != nil {
		t.Fatalf("CreateIndex: %v", err)
	}
	if info.Status != StatusInitializing {
		t.Errorf("expected initializing, got %s", info.Status)
	}

	idx, err := c.Index(ctx, "slow")
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	_, err = idx.Upsert(ctx, []Record{{ID: "a", Vector: []float32{1, 2}}})
	if !errors.Is(err, ErrResourceBusy) {
		t.Errorf("expected resource busy before ready, got %v", err)
	}

	info, err = c.WaitUntilReady(ctx, "slow", 5*time.Millisecond)
	if err != nil {
		t.Fatalf("WaitUntilReady: %v", err)
	}
	if info.Status != StatusReady {
		t.Errorf("expected ready, got %s", info.Status)
	}
}

func TestWaitForStatus_RespectsContext(t *testing.T) {
	c, _ := newEmulatorClient(t, emulator.Options{TransitionDelay: time.Hour})
	if _, err := c.CreateIndex(context.Background(), CreateIndexRequest{Name: "never", Dimension: 2}); err != nil {
		t.Fatalf("CreateIndex: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := c.WaitUntilReady(ctx, "never", 5*time.Millisecond)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}
