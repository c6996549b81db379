package stream

import (
	"context"
	"errors"
	"hash/fnv"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// ConsumerConfig carries the broker and scheduling settings for the consumer.
type ConsumerConfig struct {
	Brokers       []string
	Topic         string
	GroupID       string
	Workers       int
	ShutdownGrace time.Duration
}

// Consumer pulls transaction events from the broker, routes each to a
// per-account lane, and commits offsets only after the settlement effect is
// durable.
//
// Lanes: each message is hashed by account ID onto one of a fixed pool of
// workers, so two events for the same account are never settled concurrently
// in this process, while different accounts proceed in parallel. The store's
// conditional update remains the authoritative guard for races across
// processes.
type Consumer struct {
	reader  *kafka.Reader
	settler *Settler
	dlq     DeadLetterer
	logger  *slog.Logger

	workers       int
	shutdownGrace time.Duration
}

// NewConsumer creates a Consumer in the given consumer group.
func NewConsumer(cfg ConsumerConfig, settler *Settler, dlq DeadLetterer, logger *slog.Logger) *Consumer {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		Topic:       cfg.Topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.FirstOffset,
	})
	return &Consumer{
		reader:        reader,
		settler:       settler,
		dlq:           dlq,
		logger:        logger,
		workers:       workers,
		shutdownGrace: cfg.ShutdownGrace,
	}
}

type laneItem struct {
	msg kafka.Message
	ev  TransactionEvent
}

// Run consumes until ctx is cancelled, then stops fetching, drains in-flight
// lanes for at most the shutdown grace period, and commits nothing that was
// not fully applied.
func (c *Consumer) Run(ctx context.Context) error {
	// Workers and the committer keep going during drain, after ctx is done.
	drainCtx := context.WithoutCancel(ctx)

	tracker := newCommitTracker()
	commitSignal := make(chan struct{}, 1)
	committerStop := make(chan struct{})

	lanes := make([]chan laneItem, c.workers)
	for i := range lanes {
		lanes[i] = make(chan laneItem, 16)
	}

	var workerWG sync.WaitGroup
	for i := range lanes {
		workerWG.Add(1)
		go func(lane <-chan laneItem) {
			defer workerWG.Done()
			c.runWorker(drainCtx, lane, tracker, commitSignal)
		}(lanes[i])
	}

	var committerWG sync.WaitGroup
	committerWG.Add(1)
	go func() {
		defer committerWG.Done()
		c.runCommitter(drainCtx, tracker, commitSignal, committerStop)
	}()

	c.logger.InfoContext(ctx, "consumer started",
		slog.String("topic", c.reader.Config().Topic),
		slog.String("group_id", c.reader.Config().GroupID),
		slog.Int("workers", c.workers))

	fetchErr := c.fetchLoop(ctx, lanes, tracker, commitSignal)

	// Stop feeding the lanes and give in-flight settlements a bounded window
	// to finish.
	for _, lane := range lanes {
		close(lane)
	}
	drained := make(chan struct{})
	go func() {
		workerWG.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(c.shutdownGrace):
		c.logger.Warn("shutdown grace period expired with settlements still in flight")
	}

	// commitSignal stays open: a straggler past the grace period may still
	// signal into its buffer harmlessly.
	close(committerStop)
	committerWG.Wait()

	// Final commit of whatever became durable during the drain.
	if msgs := tracker.TakeReady(); len(msgs) > 0 {
		if err := c.reader.CommitMessages(drainCtx, msgs...); err != nil {
			c.logger.Warn("final offset commit failed", slog.String("error", err.Error()))
		}
	}

	if err := c.reader.Close(); err != nil {
		c.logger.Warn("failed to close reader", slog.String("error", err.Error()))
	}

	if fetchErr != nil && !errors.Is(fetchErr, context.Canceled) {
		return fetchErr
	}
	return nil
}

func (c *Consumer) fetchLoop(ctx context.Context, lanes []chan laneItem, tracker *commitTracker, commitSignal chan<- struct{}) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				return err
			}
			// Transient broker error; the reader reconnects internally and
			// resumes from the last committed offset.
			c.logger.Warn("fetch failed", slog.String("error", err.Error()))
			continue
		}

		tracker.Track(msg)

		ev, err := DecodeTransactionEvent(msg.Value)
		if err != nil {
			// Poison message: surface it and advance, never block the
			// partition on it.
			c.logger.WarnContext(ctx, "dropping malformed message",
				slog.Int("partition", msg.Partition),
				slog.Int64("offset", msg.Offset),
				slog.String("error", err.Error()))
			c.deadLetter(ctx, msg, err.Error())
			c.finish(msg, tracker, commitSignal)
			continue
		}

		lane := lanes[laneFor(ev.AccountID, c.workers)]
		select {
		case lane <- laneItem{msg: msg, ev: ev}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Consumer) runWorker(ctx context.Context, lane <-chan laneItem, tracker *commitTracker, commitSignal chan<- struct{}) {
	for item := range lane {
		err := c.settler.Settle(ctx, item.ev)
		if err != nil {
			if ctx.Err() != nil {
				// Shutting down mid-settlement: do not mark the offset done,
				// redelivery will finish the job idempotently.
				return
			}
			c.logger.Error("settlement failed terminally, dead-lettering",
				slog.String("txn_id", item.ev.TxnID),
				slog.String("error", err.Error()))
			c.deadLetter(ctx, item.msg, err.Error())
		}
		c.finish(item.msg, tracker, commitSignal)
	}
}

// runCommitter is the only goroutine that talks to the broker's offset store,
// so commits per partition are applied in tracker order and never regress.
func (c *Consumer) runCommitter(ctx context.Context, tracker *commitTracker, commitSignal <-chan struct{}, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case <-commitSignal:
			msgs := tracker.TakeReady()
			if len(msgs) == 0 {
				continue
			}
			if err := c.reader.CommitMessages(ctx, msgs...); err != nil {
				c.logger.Warn("offset commit failed", slog.String("error", err.Error()))
			}
		}
	}
}

func (c *Consumer) finish(msg kafka.Message, tracker *commitTracker, commitSignal chan<- struct{}) {
	tracker.Complete(msg)
	select {
	case commitSignal <- struct{}{}:
	default:
	}
}

func (c *Consumer) deadLetter(ctx context.Context, msg kafka.Message, reason string) {
	if err := c.dlq.DeadLetter(ctx, msg, reason); err != nil {
		// Dead-lettering is best effort; losing the side channel must not
		// stall the partition.
		c.logger.Error("failed to dead-letter message",
			slog.Int("partition", msg.Partition),
			slog.Int64("offset", msg.Offset),
			slog.String("error", err.Error()))
	}
}

// laneFor maps an account ID onto a worker lane.
func laneFor(accountID string, workers int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(accountID))
	return int(h.Sum32() % uint32(workers))
}
