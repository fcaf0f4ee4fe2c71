package utils

import (
	"testing"
	"time"
)

func TestTimedBufferSince(t *testing.T) {
	buffer := NewTimedBuffer[string](3)
	now := time.Now()
	buffer.Add("c1", now.Add(-3*time.Hour), "old")
	buffer.Add("c1", now.Add(-30*time.Minute), "a")
	buffer.Add("c1", now.Add(-10*time.Minute), "b")

	got := buffer.Since("c1", now, 2*time.Hour, 0)
	if len(got) != 2 || got[0] != "b" || got[1] != "a" {
		t.Fatalf("expected [b a], got %v", got)
	}
	if got := buffer.Since("c1", now, 2*time.Hour, 1); len(got) != 1 {
		t.Fatalf("expected cap of 1, got %d", len(got))
	}
	if got := buffer.Since("c2", now, time.Hour, 0); len(got) != 0 {
		t.Fatalf("expected empty, got %v", got)
	}
}

func TestTimedBufferLimit(t *testing.T) {
	buffer := NewTimedBuffer[int](2)
	now := time.Now()
	for i := 0; i < 5; i++ {
		buffer.Add("c1", now, i)
	}
	if count := buffer.Len("c1"); count != 2 {
		t.Fatalf("expected 2, got %d", count)
	}
}
