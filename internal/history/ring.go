package history

import "github.com/filipetorresdecarvalho/NVIDIAWorkloadMonitor/pkg/model"

// ring is a fixed-capacity FIFO of metric records. Append and eviction
// are O(1); the capacity can never be exceeded because an append into a
// full ring overwrites the oldest slot.
type ring struct {
	buf  []model.MetricRecord
	head int // index of the oldest record
	n    int
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]model.MetricRecord, capacity)}
}

func (r *ring) append(rec model.MetricRecord) {
	if r.n < len(r.buf) {
		r.buf[(r.head+r.n)%len(r.buf)] = rec
		r.n++
		return
	}
	// Full: overwrite the oldest slot and advance the head.
	r.buf[r.head] = rec
	r.head = (r.head + 1) % len(r.buf)
}

func (r *ring) latest() (model.MetricRecord, bool) {
	if r.n == 0 {
		return model.MetricRecord{}, false
	}
	return r.buf[(r.head+r.n-1)%len(r.buf)], true
}

// window copies the retained records, oldest first.
func (r *ring) window() []model.MetricRecord {
	out := make([]model.MetricRecord, r.n)
	for i := 0; i < r.n; i++ {
		out[i] = r.buf[(r.head+i)%len(r.buf)]
	}
	return out
}

func (r *ring) len() int { return r.n }
