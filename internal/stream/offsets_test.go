package stream

import (
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func msgAt(partition int, offset int64) kafka.Message {
	return kafka.Message{Topic: "transaction-events", Partition: partition, Offset: offset}
}

func TestCommitTrackerInOrderCompletion(t *testing.T) {
	tr := newCommitTracker()
	for i := int64(0); i < 3; i++ {
		tr.Track(msgAt(0, i))
	}

	tr.Complete(msgAt(0, 0))
	ready := tr.TakeReady()
	require.Len(t, ready, 1)
	assert.Equal(t, int64(0), ready[0].Offset)

	tr.Complete(msgAt(0, 1))
	tr.Complete(msgAt(0, 2))
	ready = tr.TakeReady()
	require.Len(t, ready, 1)
	assert.Equal(t, int64(2), ready[0].Offset)
}

func TestCommitTrackerHoldsBackOutOfOrderCompletion(t *testing.T) {
	tr := newCommitTracker()
	for i := int64(0); i < 3; i++ {
		tr.Track(msgAt(0, i))
	}

	// Offset 2 finishing first must not become committable: committing it
	// would silently commit 0 and 1 too.
	tr.Complete(msgAt(0, 2))
	assert.Empty(t, tr.TakeReady())

	tr.Complete(msgAt(0, 0))
	ready := tr.TakeReady()
	require.Len(t, ready, 1)
	assert.Equal(t, int64(0), ready[0].Offset)

	// Completing 1 closes the gap, so the boundary jumps to 2.
	tr.Complete(msgAt(0, 1))
	ready = tr.TakeReady()
	require.Len(t, ready, 1)
	assert.Equal(t, int64(2), ready[0].Offset)
}

func TestCommitTrackerPartitionsAreIndependent(t *testing.T) {
	tr := newCommitTracker()
	tr.Track(msgAt(0, 10))
	tr.Track(msgAt(1, 7))

	tr.Complete(msgAt(1, 7))
	ready := tr.TakeReady()
	require.Len(t, ready, 1)
	assert.Equal(t, 1, ready[0].Partition)
	assert.Equal(t, int64(7), ready[0].Offset)

	tr.Complete(msgAt(0, 10))
	ready = tr.TakeReady()
	require.Len(t, ready, 1)
	assert.Equal(t, 0, ready[0].Partition)
}

func TestCommitTrackerTakeReadyClears(t *testing.T) {
	tr := newCommitTracker()
	tr.Track(msgAt(0, 0))
	tr.Complete(msgAt(0, 0))

	require.Len(t, tr.TakeReady(), 1)
	assert.Empty(t, tr.TakeReady())
}
