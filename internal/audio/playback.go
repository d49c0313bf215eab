package audio

import (
	"log/slog"
	"sync"
	"time"
)

// Sink receives PCM bytes at their scheduled start time. Implemented by
// device.Speaker; tests substitute a recorder.
type Sink interface {
	Write(pcm []byte) error
}

// Scheduler chains inbound audio chunks for gapless playback. Chunks arrive
// as independent network messages; a running watermark marks when the next
// chunk may start, so consecutive buffers play back-to-back with no gap or
// overlap regardless of arrival jitter.
type Scheduler struct {
	sink   Sink
	rateHz int
	now    func() time.Time

	mu        sync.Mutex
	watermark time.Time
	sources   map[*playbackSource]struct{}
	stopped   bool
}

type playbackSource struct {
	timer *time.Timer
}

// NewScheduler creates a Scheduler writing PCM16 mono at rateHz to sink.
func NewScheduler(sink Sink, rateHz int) *Scheduler {
	if rateHz <= 0 {
		rateHz = PlaybackRateHz
	}
	return &Scheduler{
		sink:    sink,
		rateHz:  rateHz,
		now:     time.Now,
		sources: make(map[*playbackSource]struct{}),
	}
}

// Duration returns the playback duration of a PCM16 mono buffer.
func (s *Scheduler) Duration(pcm []byte) time.Duration {
	samples := len(pcm) / bytesPerSample
	return time.Duration(samples) * time.Second / time.Duration(s.rateHz)
}

// Schedule queues pcm to start at the watermark (or immediately if the
// watermark has passed) and advances the watermark by the buffer duration.
// It returns the scheduled start time.
func (s *Scheduler) Schedule(pcm []byte) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	start := s.watermark
	if start.Before(now) {
		start = now
	}
	s.watermark = start.Add(s.Duration(pcm))

	if s.stopped {
		return start
	}

	src := &playbackSource{}
	src.timer = time.AfterFunc(start.Sub(now), func() {
		s.fire(src, pcm)
	})
	s.sources[src] = struct{}{}
	return start
}

func (s *Scheduler) fire(src *playbackSource, pcm []byte) {
	s.mu.Lock()
	if _, ok := s.sources[src]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.sources, src)
	stopped := s.stopped
	s.mu.Unlock()

	if stopped {
		return
	}
	if err := s.sink.Write(pcm); err != nil {
		// Playback is best effort; a dead sink only costs us the chunk.
		slog.Debug("playback write failed", "error", err)
	}
}

// StopAll cancels every pending source and resets the watermark. Safe with
// zero, one, or many active sources and safe to call repeatedly; after
// StopAll the scheduler accepts no further playback until Reset.
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for src := range s.sources {
		if src.timer != nil {
			src.timer.Stop()
		}
		delete(s.sources, src)
	}
	s.watermark = time.Time{}
	s.stopped = true
}

// Reset re-arms a stopped scheduler for a new session.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watermark = time.Time{}
	s.stopped = false
}

// Pending reports the number of sources not yet played.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sources)
}
