package adapter

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/realmorph/datakit/kvstore"
	"github.com/realmorph/datakit/logger"
	"go.uber.org/zap"
)

// queueSchemaVersion is bumped whenever the persisted queue record changes
// shape. Records with an unknown version are discarded rather than
// misinterpreted.
const queueSchemaVersion = 1

// PendingOperation is a mutating call deferred because the backend was
// unreachable at call time.
type PendingOperation struct {
	ID         string    `json:"id"`
	Type       Operation `json:"type"`
	Endpoint   string    `json:"endpoint"`
	DocID      string    `json:"docId,omitempty"`
	Data       Document  `json:"data,omitempty"`
	Timestamp  int64     `json:"timestamp"`
	RetryCount int       `json:"retryCount"`
}

// queueRecord is the persisted form of the offline queue.
type queueRecord struct {
	SchemaVersion int                `json:"schemaVersion"`
	Ops           []PendingOperation `json:"ops"`
}

// replayFunc applies one pending operation against the backend.
type replayFunc func(ctx context.Context, op PendingOperation) error

// offlineQueue is a durable FIFO log of deferred writes.
//
// Replay takes a snapshot of the queue: operations enqueued while a sync is
// running are excluded from that pass. A successfully replayed operation is
// removed; a failing one is re-appended to the tail, behind anything queued
// in the meantime.
type offlineQueue struct {
	logger logger.Logger
	store  kvstore.Store
	key    string
	replay ReplayConfig
	now    func() time.Time

	mu      sync.Mutex
	syncing bool
}

func newOfflineQueue(log logger.Logger, store kvstore.Store, namespace string, replay ReplayConfig) *offlineQueue {
	return &offlineQueue{
		logger: log,
		store:  store,
		key:    namespace + ":offline-queue",
		replay: replay,
		now:    time.Now,
	}
}

func (q *offlineQueue) load(ctx context.Context) (queueRecord, error) {
	raw, ok, err := q.store.Get(ctx, q.key)
	if err != nil {
		return queueRecord{}, ErrQueue(err)
	}
	if !ok {
		return queueRecord{SchemaVersion: queueSchemaVersion}, nil
	}

	var rec queueRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		q.logger.Error("discarding corrupt offline queue", zap.String("key", q.key), zap.Error(err))
		return queueRecord{SchemaVersion: queueSchemaVersion}, nil
	}
	if rec.SchemaVersion != queueSchemaVersion {
		q.logger.Error("discarding offline queue with unknown schema version",
			zap.String("key", q.key),
			zap.Int("version", rec.SchemaVersion),
		)
		return queueRecord{SchemaVersion: queueSchemaVersion}, nil
	}
	return rec, nil
}

func (q *offlineQueue) save(ctx context.Context, rec queueRecord) error {
	rec.SchemaVersion = queueSchemaVersion
	raw, err := json.Marshal(rec)
	if err != nil {
		return ErrQueue(err)
	}
	if err := q.store.Set(ctx, q.key, raw, 0); err != nil {
		return ErrQueue(err)
	}
	return nil
}

// enqueue appends op to the queue tail and persists it. The operation's ID
// and timestamp are assigned here.
func (q *offlineQueue) enqueue(ctx context.Context, op PendingOperation) (PendingOperation, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	op.ID = uuid.NewString()
	op.Timestamp = q.now().UnixMilli()

	rec, err := q.load(ctx)
	if err != nil {
		return op, err
	}
	rec.Ops = append(rec.Ops, op)
	if err := q.save(ctx, rec); err != nil {
		return op, err
	}

	q.logger.Info("queued offline operation",
		zap.String("op", string(op.Type)),
		zap.String("endpoint", op.Endpoint),
		zap.Int("queue_length", len(rec.Ops)),
	)
	return op, nil
}

// length returns the number of pending operations.
func (q *offlineQueue) length(ctx context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	rec, err := q.load(ctx)
	if err != nil {
		return 0, err
	}
	return len(rec.Ops), nil
}

// sync replays pending operations in FIFO order using apply.
// It returns the number of operations replayed successfully. Per-item
// failures are re-queued and never propagate; only queue persistence
// failures surface as errors.
//
// A second sync while one is running is a no-op returning (0, nil).
func (q *offlineQueue) sync(ctx context.Context, apply replayFunc) (int, error) {
	q.mu.Lock()
	if q.syncing {
		q.mu.Unlock()
		return 0, nil
	}
	q.syncing = true
	rec, err := q.load(ctx)
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		q.syncing = false
		q.mu.Unlock()
	}()

	if err != nil {
		return 0, err
	}
	if len(rec.Ops) == 0 {
		return 0, nil
	}

	snapshot := rec.Ops
	synced := 0
	for _, op := range snapshot {
		if err := apply(ctx, op); err != nil {
			q.logger.Warn("offline replay failed",
				zap.String("op", string(op.Type)),
				zap.String("endpoint", op.Endpoint),
				zap.Int("retry_count", op.RetryCount),
				zap.Error(err),
			)
			if err := q.requeue(ctx, op); err != nil {
				return synced, err
			}
			continue
		}
		if err := q.remove(ctx, op.ID); err != nil {
			return synced, err
		}
		synced++
	}

	q.logger.Info("offline sync completed",
		zap.Int("synced", synced),
		zap.Int("failed", len(snapshot)-synced),
	)
	return synced, nil
}

// remove deletes the operation with the given id from the persisted queue.
func (q *offlineQueue) remove(ctx context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	rec, err := q.load(ctx)
	if err != nil {
		return err
	}
	kept := rec.Ops[:0]
	for _, op := range rec.Ops {
		if op.ID != id {
			kept = append(kept, op)
		}
	}
	rec.Ops = kept
	return q.save(ctx, rec)
}

// requeue moves a failed operation to the queue tail, applying the retry
// bookkeeping from ReplayConfig.
func (q *offlineQueue) requeue(ctx context.Context, failed PendingOperation) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	rec, err := q.load(ctx)
	if err != nil {
		return err
	}
	kept := rec.Ops[:0]
	for _, op := range rec.Ops {
		if op.ID != failed.ID {
			kept = append(kept, op)
		}
	}
	rec.Ops = kept

	if q.replay.CountRetries || q.replay.MaxRetries > 0 {
		failed.RetryCount++
	}
	if q.replay.MaxRetries > 0 && failed.RetryCount >= q.replay.MaxRetries {
		q.logger.Error("dropping offline operation after retry limit",
			zap.String("op", string(failed.Type)),
			zap.String("endpoint", failed.Endpoint),
			zap.Int("retry_count", failed.RetryCount),
		)
	} else {
		rec.Ops = append(rec.Ops, failed)
	}
	return q.save(ctx, rec)
}
