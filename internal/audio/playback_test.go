package audio

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type recordingSink struct {
	mu     sync.Mutex
	writes [][]byte
	err    error
}

func (r *recordingSink) Write(pcm []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.writes = append(r.writes, pcm)
	return nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestSchedule_ConsecutiveBuffersChain(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := NewScheduler(&recordingSink{}, PlaybackRateHz)
	s.now = fixedClock(base)
	defer s.StopAll()

	// 2400 samples at 24kHz = 100ms, 1200 samples = 50ms.
	d1 := 2400 * bytesPerSample
	d2 := 1200 * bytesPerSample

	start1 := s.Schedule(make([]byte, d1))
	start2 := s.Schedule(make([]byte, d2))

	if !start1.Equal(base) {
		t.Fatalf("first start = %v, want %v", start1, base)
	}
	want := start1.Add(100 * time.Millisecond)
	if !start2.Equal(want) {
		t.Fatalf("second start = %v, want exactly start1+d1 = %v", start2, want)
	}
}

func TestSchedule_WatermarkInPastStartsNow(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := NewScheduler(&recordingSink{}, PlaybackRateHz)
	s.now = fixedClock(base)
	defer s.StopAll()

	s.Schedule(make([]byte, 480*bytesPerSample)) // 20ms
	s.now = fixedClock(base.Add(time.Second))

	start := s.Schedule(make([]byte, 480*bytesPerSample))
	if !start.Equal(base.Add(time.Second)) {
		t.Fatalf("late chunk start = %v, want now", start)
	}
}

func TestStopAll_SafeInAnyState(t *testing.T) {
	t.Parallel()

	// Zero sources.
	s := NewScheduler(&recordingSink{}, PlaybackRateHz)
	s.StopAll()
	s.StopAll()

	// Many sources, failing sink.
	sink := &recordingSink{err: errors.New("sink closed")}
	s = NewScheduler(sink, PlaybackRateHz)
	s.now = fixedClock(time.Now().Add(time.Hour)) // keep timers pending
	for i := 0; i < 10; i++ {
		s.Schedule(make([]byte, 9600))
	}
	if got := s.Pending(); got != 10 {
		t.Fatalf("pending = %d, want 10", got)
	}
	s.StopAll()
	if got := s.Pending(); got != 0 {
		t.Fatalf("pending after StopAll = %d, want 0", got)
	}

	// Schedule after stop is a no-op for playback but must not panic.
	s.Schedule(make([]byte, 480))
	if got := s.Pending(); got != 0 {
		t.Fatalf("stopped scheduler armed a source")
	}
}

func TestScheduler_ResetReArms(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	s := NewScheduler(sink, PlaybackRateHz)
	s.StopAll()
	s.Reset()

	s.Schedule(make([]byte, 48)) // 1ms, fires almost immediately
	deadline := time.After(2 * time.Second)
	for {
		sink.mu.Lock()
		n := len(sink.writes)
		sink.mu.Unlock()
		if n == 1 {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("chunk never played after Reset")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestScheduler_DeliversToSink(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	s := NewScheduler(sink, PlaybackRateHz)
	defer s.StopAll()

	pcm := []byte{1, 2, 3, 4}
	s.Schedule(pcm)

	deadline := time.After(2 * time.Second)
	for {
		sink.mu.Lock()
		n := len(sink.writes)
		sink.mu.Unlock()
		if n == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("chunk never reached sink")
		case <-time.After(5 * time.Millisecond):
		}
	}
	if string(sink.writes[0]) != string(pcm) {
		t.Fatalf("sink received %v, want %v", sink.writes[0], pcm)
	}
}
