package voice

import "testing"

func TestFrameQueue_DropsOldestAtCapacity(t *testing.T) {
	t.Parallel()

	q := newFrameQueue(3)
	for i := byte(0); i < 5; i++ {
		q.Push([]byte{i})
	}

	if got := q.Dropped(); got != 2 {
		t.Fatalf("dropped = %d, want 2", got)
	}
	// Frames 0 and 1 were evicted; 2, 3, 4 remain in order.
	for want := byte(2); want <= 4; want++ {
		frame := <-q.Frames()
		if frame[0] != want {
			t.Fatalf("frame = %d, want %d", frame[0], want)
		}
	}
}

func TestFrameQueue_DefaultDepth(t *testing.T) {
	t.Parallel()

	q := newFrameQueue(0)
	for i := 0; i < 32; i++ {
		q.Push([]byte{byte(i)})
	}
	if got := q.Dropped(); got != 0 {
		t.Fatalf("dropped = %d before capacity, want 0", got)
	}
	q.Push([]byte{99})
	if got := q.Dropped(); got != 1 {
		t.Fatalf("dropped = %d after overflow, want 1", got)
	}
}
