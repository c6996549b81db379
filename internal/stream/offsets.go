package stream

import (
	"sync"

	"github.com/segmentio/kafka-go"
)

// commitTracker decides which broker offsets are safe to commit. Messages
// complete out of order because different accounts settle in parallel, but an
// offset may only be committed once every earlier offset on its partition has
// durably completed — otherwise a crash would skip uncommitted-but-unapplied
// messages.
//
// Track must be called in fetch order; Complete may be called from any
// worker. TakeReady hands the newest committable message per partition to a
// single committer.
type commitTracker struct {
	mu         sync.Mutex
	partitions map[int]*partitionQueue
	ready      map[int]kafka.Message
}

type pendingMessage struct {
	msg  kafka.Message
	done bool
}

type partitionQueue struct {
	entries []pendingMessage
}

func newCommitTracker() *commitTracker {
	return &commitTracker{
		partitions: make(map[int]*partitionQueue),
		ready:      make(map[int]kafka.Message),
	}
}

// Track registers a fetched message as in flight.
func (t *commitTracker) Track(msg kafka.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()

	q := t.partitions[msg.Partition]
	if q == nil {
		q = &partitionQueue{}
		t.partitions[msg.Partition] = q
	}
	q.entries = append(q.entries, pendingMessage{msg: msg})
}

// Complete marks a message as durably processed and advances the committable
// boundary of its partition past any contiguous prefix of completed messages.
func (t *commitTracker) Complete(msg kafka.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()

	q := t.partitions[msg.Partition]
	if q == nil {
		return
	}
	for i := range q.entries {
		if q.entries[i].msg.Offset == msg.Offset {
			q.entries[i].done = true
			break
		}
	}

	popped := false
	var last kafka.Message
	for len(q.entries) > 0 && q.entries[0].done {
		last = q.entries[0].msg
		q.entries = q.entries[1:]
		popped = true
	}
	if popped {
		t.ready[msg.Partition] = last
	}
}

// TakeReady returns the committable boundary message for each partition that
// advanced since the last call, and clears them.
func (t *commitTracker) TakeReady() []kafka.Message {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.ready) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(t.ready))
	for _, msg := range t.ready {
		msgs = append(msgs, msg)
	}
	t.ready = make(map[int]kafka.Message)
	return msgs
}
