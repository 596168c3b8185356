package connection

import "time"

type queued struct {
	seq   uint64
	id    string
	frame []byte
	at    time.Time
}

// outQueue is a bounded FIFO. The caller holds Manager.mu.
type outQueue struct {
	items    []queued
	cap      int
	seq      uint64
	inflight uint64 // seq of the head while the writer holds it
}

func newOutQueue(capacity int) *outQueue {
	return &outQueue{cap: capacity}
}

func (q *outQueue) push(id string, frame []byte, now time.Time) bool {
	if len(q.items) >= q.cap {
		return false
	}
	q.seq++
	q.items = append(q.items, queued{seq: q.seq, id: id, frame: frame, at: now})
	return true
}

// take returns the head and pins it against expiry until ack or release.
func (q *outQueue) take() (queued, bool) {
	if len(q.items) == 0 {
		return queued{}, false
	}
	q.inflight = q.items[0].seq
	return q.items[0], true
}

// ack removes the head if it is still the entry with seq.
func (q *outQueue) ack(seq uint64) {
	q.inflight = 0
	if len(q.items) > 0 && q.items[0].seq == seq {
		q.items[0] = queued{}
		q.items = q.items[1:]
	}
}

func (q *outQueue) release() { q.inflight = 0 }

// expire drops every entry enqueued more than maxAge before now.
func (q *outQueue) expire(now time.Time, maxAge time.Duration) []queued {
	if maxAge <= 0 || len(q.items) == 0 {
		return nil
	}
	var dropped []queued
	kept := q.items[:0]
	for _, it := range q.items {
		if it.seq != q.inflight && now.Sub(it.at) > maxAge {
			dropped = append(dropped, it)
			continue
		}
		kept = append(kept, it)
	}
	for i := len(kept); i < len(q.items); i++ {
		q.items[i] = queued{}
	}
	q.items = kept
	return dropped
}

func (q *outQueue) drain() []queued {
	out := q.items
	q.items = nil
	q.inflight = 0
	return out
}

func (q *outQueue) len() int { return len(q.items) }
