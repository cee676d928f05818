package runlock

import (
	"context"
	"testing"
)

func TestMemoryRunLock(t *testing.T) {
	lock := NewMemoryRunLock()
	ctx := context.Background()

	ok, err := lock.TryLock(ctx, "fk")
	if err != nil || !ok {
		t.Fatalf("TryLock: ok=%v err=%v", ok, err)
	}

	// Повторный захват того же ключа отклоняется, другой ключ свободен.
	ok, err = lock.TryLock(ctx, "fk")
	if err != nil || ok {
		t.Errorf("second TryLock: ok=%v err=%v, want contention", ok, err)
	}
	ok, err = lock.TryLock(ctx, "other")
	if err != nil || !ok {
		t.Errorf("TryLock on a different key: ok=%v err=%v", ok, err)
	}

	if err := lock.Unlock(ctx, "fk"); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	ok, err = lock.TryLock(ctx, "fk")
	if err != nil || !ok {
		t.Errorf("TryLock after Unlock: ok=%v err=%v", ok, err)
	}

	if err := lock.Unlock(ctx, "never-locked"); err == nil {
		t.Error("Unlock of a key that was never locked succeeded")
	}
}
