package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertContiguous(t *testing.T, snap []QueuedGuest) {
	t.Helper()
	for i, g := range snap {
		assert.Equal(t, i+1, g.Position, "guest %s", g.ID)
	}
}

func TestWaitingQueue_PositionsStayContiguous(t *testing.T) {
	base := time.Unix(1_700_000_000, 0)
	q := &WaitingQueue{}
	for i, id := range []SessionID{"a", "b", "c", "d"} {
		require.True(t, q.Push(WaitingEntry{ID: id, Name: string(id), JoinedAt: base.Add(time.Duration(i) * time.Second)}))
	}

	tests := []struct {
		name   string
		remove SessionID
		want   []SessionID
	}{
		{name: "remove middle", remove: "b", want: []SessionID{"a", "c", "d"}},
		{name: "remove head", remove: "a", want: []SessionID{"c", "d"}},
		{name: "remove missing is no-op", remove: "zz", want: []SessionID{"c", "d"}},
		{name: "remove tail", remove: "d", want: []SessionID{"c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q.Remove(tt.remove)
			snap := q.Snapshot(base.Add(10 * time.Second))
			assertContiguous(t, snap)
			got := make([]SessionID, 0, len(snap))
			for _, g := range snap {
				got = append(got, g.ID)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWaitingQueue_PushIsIdempotent(t *testing.T) {
	q := &WaitingQueue{}
	assert.True(t, q.Push(WaitingEntry{ID: "a"}))
	assert.False(t, q.Push(WaitingEntry{ID: "a", Name: "again"}))
	assert.Equal(t, 1, q.Len())
	assert.Equal(t, 1, q.Position("a"))
	assert.Equal(t, 0, q.Position("b"))
}

func TestWaitingQueue_WaitingSeconds(t *testing.T) {
	base := time.Unix(1_700_000_000, 0)
	q := &WaitingQueue{}
	q.Push(WaitingEntry{ID: "a", JoinedAt: base})
	q.Push(WaitingEntry{ID: "b", JoinedAt: base.Add(30 * time.Second)})

	snap := q.Snapshot(base.Add(90 * time.Second))
	require.Len(t, snap, 2)
	assert.Equal(t, int64(90), snap[0].WaitingSeconds)
	assert.Equal(t, int64(60), snap[1].WaitingSeconds)
}
