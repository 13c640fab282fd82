package core

import "time"

// WaitingQueue is a FIFO of guests, unique per connection id.
// It is not safe for concurrent use; the owning room serializes access.
type WaitingQueue struct {
	entries []WaitingEntry
}

// Push appends e unless its connection is already queued.
func (q *WaitingQueue) Push(e WaitingEntry) bool {
	if q.Position(e.ID) > 0 {
		return false
	}
	q.entries = append(q.entries, e)
	return true
}

func (q *WaitingQueue) Remove(sid SessionID) (WaitingEntry, bool) {
	for i, e := range q.entries {
		if e.ID == sid {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return e, true
		}
	}
	return WaitingEntry{}, false
}

func (q *WaitingQueue) Get(sid SessionID) (WaitingEntry, bool) {
	for _, e := range q.entries {
		if e.ID == sid {
			return e, true
		}
	}
	return WaitingEntry{}, false
}

// Position is the 1-based index of sid, or 0 when absent.
func (q *WaitingQueue) Position(sid SessionID) int {
	for i, e := range q.entries {
		if e.ID == sid {
			return i + 1
		}
	}
	return 0
}

func (q *WaitingQueue) HasToken(token string) bool {
	for _, e := range q.entries {
		if e.Token == token {
			return true
		}
	}
	return false
}

func (q *WaitingQueue) Len() int { return len(q.entries) }

func (q *WaitingQueue) Entries() []WaitingEntry {
	out := make([]WaitingEntry, len(q.entries))
	copy(out, q.entries)
	return out
}

func (q *WaitingQueue) Snapshot(now time.Time) []QueuedGuest {
	out := make([]QueuedGuest, 0, len(q.entries))
	for i, e := range q.entries {
		wait := int64(0)
		if now.After(e.JoinedAt) {
			wait = int64(now.Sub(e.JoinedAt) / time.Second)
		}
		out = append(out, QueuedGuest{
			ID:             e.ID,
			Name:           e.Name,
			Position:       i + 1,
			WaitingSeconds: wait,
		})
	}
	return out
}
