// internal/historian/historian.go pops action records off the Redis queue and persists them in batches.
package historian

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/shadow-signal/internal/models"
)

// maxPendingBatches bounds how many batches are kept for retry while the sink is failing.
const maxPendingBatches = 10

// Sink persists a batch of action records.
type Sink interface {
	InsertActions(ctx context.Context, recs []models.ActionRecord) error
}

// Service moves records from a Redis list into a Sink.
type Service struct {
	rdb   *redis.Client
	sink  Sink
	log   logrus.FieldLogger
	queue string

	BatchSize  int
	FlushDelay time.Duration

	mu        sync.Mutex
	batch     []models.ActionRecord
	lastFlush time.Time
}

// NewService returns a historian reading queue. Batches flush at 20 records or every 500ms.
func NewService(rdb *redis.Client, sink Sink, queue string, logger logrus.FieldLogger) *Service {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{
		rdb:        rdb,
		sink:       sink,
		log:        logger,
		queue:      queue,
		BatchSize:  20,
		FlushDelay: 500 * time.Millisecond,
	}
}

// Run pops records until ctx is cancelled, then flushes what is left.
func (s *Service) Run(ctx context.Context) {
	s.log.WithField("queue", s.queue).Info("historian started")
	s.lastFlush = time.Now()
	// BLPOP timeouts have one second resolution
	popTimeout := max(s.FlushDelay, time.Second)
	for {
		if ctx.Err() != nil {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			s.Flush(flushCtx)
			cancel()
			s.log.Info("historian stopped")
			return
		}

		res, err := s.rdb.BLPop(ctx, popTimeout, s.queue).Result()
		switch {
		case err == nil && len(res) == 2:
			s.accept(ctx, res[1])
		case err == nil, errors.Is(err, redis.Nil), ctx.Err() != nil:
			// nothing popped
		default:
			s.log.WithError(err).Error("BLPop failed")
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
		}

		if time.Since(s.lastFlush) >= s.FlushDelay {
			s.Flush(ctx)
		}
	}
}

// accept decodes one queue entry and flushes once the batch is full.
func (s *Service) accept(ctx context.Context, payload string) {
	var rec models.ActionRecord
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		s.log.WithError(err).Warn("invalid action record")
		return
	}
	s.mu.Lock()
	s.batch = append(s.batch, rec)
	full := len(s.batch) >= s.BatchSize
	s.mu.Unlock()
	if full {
		s.Flush(ctx)
	}
}

// Flush writes the pending batch. On failure the records stay pending for the next flush,
// up to maxPendingBatches worth; older records beyond that are dropped.
func (s *Service) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastFlush = time.Now()
	if len(s.batch) == 0 {
		return nil
	}

	batch := append([]models.ActionRecord(nil), s.batch...)
	if err := s.sink.InsertActions(ctx, batch); err != nil {
		s.log.WithError(err).WithField("pending", len(s.batch)).Error("flush to database failed")
		if limit := maxPendingBatches * s.BatchSize; len(s.batch) > limit {
			dropped := len(s.batch) - limit
			s.batch = append(s.batch[:0], s.batch[dropped:]...)
			s.log.WithField("dropped", dropped).Warn("historian backlog full, dropping oldest records")
		}
		return err
	}
	s.log.Debugf("flushed %d actions", len(batch))
	s.batch = s.batch[:0]
	return nil
}

// Pending returns the number of records waiting to be flushed.
func (s *Service) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batch)
}
