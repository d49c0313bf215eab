package voice

import "sync/atomic"

// frameQueue bounds the outbound audio path. The capture callback fires
// faster than a congested socket can drain, so at capacity the oldest
// pending frame is dropped rather than queuing without bound.
type frameQueue struct {
	ch      chan []byte
	dropped atomic.Int64
}

func newFrameQueue(depth int) *frameQueue {
	if depth <= 0 {
		depth = 32
	}
	return &frameQueue{ch: make(chan []byte, depth)}
}

// Push enqueues frame, evicting the oldest pending frame when full.
func (q *frameQueue) Push(frame []byte) {
	for {
		select {
		case q.ch <- frame:
			return
		default:
		}
		select {
		case <-q.ch:
			q.dropped.Add(1)
		default:
		}
	}
}

// Frames is the drain side, consumed by the session send loop.
func (q *frameQueue) Frames() <-chan []byte {
	return q.ch
}

// Dropped reports how many frames were evicted under backpressure.
func (q *frameQueue) Dropped() int64 {
	return q.dropped.Load()
}
