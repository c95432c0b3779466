package app

import (
	"assettree/internal/core/ports"
	"assettree/internal/data/ledger"
	"assettree/internal/data/queue"
	"assettree/internal/shared/observability"
	"context"
	"errors"
	"io"
	"time"
)

const (
	retryBaseDelay = 500 * time.Millisecond
	retryMaxDelay  = 30 * time.Second
)

// initWriteQueue starts the ledger writer: a bounded memory queue, an optional
// sqlite spool behind it, and one worker draining both into the ledger.
func (a *App) initWriteQueue() error {
	if a == nil || a.Config == nil || a.ledger == nil {
		return nil
	}
	capacity := a.Config.DB.QueueCapacity
	if capacity <= 0 {
		capacity = 256
	}
	a.writeQueue = queue.NewMemoryQueue[ledger.PushRecord](capacity)
	if a.Config.DB.SpoolEnabled {
		spool, err := queue.OpenSQLiteSpool[ledger.PushRecord](a.Paths.SpoolPath, "ledger")
		if err != nil {
			_ = a.writeQueue.Close()
			a.writeQueue = nil
			return err
		}
		a.writeSpool = spool
	}
	return a.startWriteWorker()
}

func (a *App) startWriteWorker() error {
	if a == nil || a.writeQueue == nil || a.workerCancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.workerCancel = cancel
	a.workerDone = make(chan struct{})
	go a.runWriteWorker(ctx)
	return nil
}

func (a *App) batchSize() int {
	if a.Config.DB.BatchSize <= 0 {
		return 1
	}
	return a.Config.DB.BatchSize
}

func (a *App) runWriteWorker(ctx context.Context) {
	defer close(a.workerDone)

	batchSize := a.batchSize()
	flushInterval := a.Config.DB.FlushInterval
	if flushInterval <= 0 {
		flushInterval = 100 * time.Millisecond
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		memoryBatch, err := a.writeQueue.DequeueBatch(ctx, batchSize, flushInterval)
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, context.Canceled) {
			a.logger.Warn("ledger queue dequeue failed", "error", err)
			continue
		}
		if errors.Is(err, context.Canceled) {
			return
		}

		batch := make([]ledger.PushRecord, 0, batchSize)
		batch = append(batch, memoryBatch...)

		var spooled []ports.SpoolRow[ledger.PushRecord]
		if len(batch) < batchSize && a.writeSpool != nil {
			rows, spoolErr := a.writeSpool.DequeueBatch(ctx, batchSize-len(batch))
			if spoolErr != nil {
				a.logger.Warn("ledger spool dequeue failed", "error", spoolErr)
			} else {
				for _, row := range rows {
					batch = append(batch, row.Request)
				}
				spooled = rows
			}
		}

		if len(batch) == 0 {
			a.updateQueueMetrics()
			if errors.Is(err, io.EOF) {
				return
			}
			continue
		}

		started := time.Now()
		if applyErr := a.ledger.RecordPushes(batch); applyErr != nil {
			observability.WriteQueueApplyErrorsTotal.Inc()
			a.logger.Warn("ledger write failed", "error", applyErr, "batch_size", len(batch))
			a.handleWriteFailure(spooled, memoryBatch, applyErr)
		} else {
			observability.WriteQueueProcessedTotal.Add(float64(len(batch)))
			a.ackSpooled(spooled)
			observability.WriteQueueFlushLatencySeconds.Observe(time.Since(started).Seconds())
		}
		a.updateQueueMetrics()
	}
}

func (a *App) ackSpooled(rows []ports.SpoolRow[ledger.PushRecord]) {
	if a.writeSpool == nil || len(rows) == 0 {
		return
	}
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	if err := a.writeSpool.Ack(ids); err != nil {
		a.logger.Warn("ledger spool ack failed", "error", err, "count", len(ids))
	}
}

// handleWriteFailure moves a failed memory batch into the spool and schedules
// spooled rows for a later attempt. Without a spool the batch is lost.
func (a *App) handleWriteFailure(spooled []ports.SpoolRow[ledger.PushRecord], memoryBatch []ledger.PushRecord, applyErr error) {
	if a == nil || a.writeSpool == nil {
		if len(memoryBatch) > 0 {
			a.logger.Warn("ledger entries lost", "count", len(memoryBatch), "error", applyErr)
		}
		return
	}
	for _, rec := range memoryBatch {
		if err := a.writeSpool.Enqueue(rec); err != nil {
			a.logger.Warn("failed to spill ledger entry to spool", "error", err, "push_id", rec.PushID)
		} else {
			observability.WriteQueueSpilledTotal.Inc()
		}
	}
	if len(spooled) == 0 {
		return
	}

	maxAttempts := 0
	for _, row := range spooled {
		if row.Attempts > maxAttempts {
			maxAttempts = row.Attempts
		}
	}
	nextAttempt := time.Now().Add(backoffDelay(maxAttempts + 1))
	if err := a.writeSpool.Nack(spooled, nextAttempt, applyErr.Error()); err != nil {
		a.logger.Warn("ledger spool nack failed", "error", err, "count", len(spooled))
		return
	}
	observability.WriteQueueRetryTotal.Add(float64(len(spooled)))
}

func backoffDelay(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	delay := retryBaseDelay
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= retryMaxDelay {
			return retryMaxDelay
		}
	}
	return delay
}

// recordPush queues the ledger row for a push. A full queue without a spool
// drops the row; the push result is unaffected.
func (a *App) recordPush(report ports.PushReport, at time.Time, pushErr error) {
	if a == nil || a.ledger == nil {
		return
	}
	rec := ledger.PushRecord{
		PushID:       report.PushID,
		TreeName:     report.TreeName,
		WorkbookName: report.WorkbookName,
		Timestamp:    at.UTC(),
		Submitted:    report.Submitted,
		Succeeded:    report.Succeeded,
		Failed:       len(report.Failed),
		Duration:     report.Duration,
	}
	if pushErr != nil {
		rec.Error = pushErr.Error()
	}
	for _, f := range report.Failed {
		rec.Failures = append(rec.Failures, ledger.Failure{Path: f.Path, Reason: f.Reason})
	}
	if err := a.enqueueLedgerWrite(rec); err != nil {
		a.logger.Warn("push ledger entry dropped", "push_id", rec.PushID, "error", err)
	}
}

func (a *App) enqueueLedgerWrite(rec ledger.PushRecord) error {
	if a.writeQueue == nil {
		return a.ledger.RecordPushes([]ledger.PushRecord{rec})
	}
	switch result := a.writeQueue.Enqueue(rec); result {
	case ports.EnqueueAccepted:
		observability.WriteQueueEnqueuedTotal.Inc()
		a.updateQueueMetrics()
		return nil
	case ports.EnqueueDropped:
		observability.WriteQueueDroppedTotal.Inc()
		if a.writeSpool == nil {
			return errors.New("ledger queue full")
		}
		if err := a.writeSpool.Enqueue(rec); err != nil {
			return err
		}
		observability.WriteQueueSpilledTotal.Inc()
		a.updateQueueMetrics()
		return nil
	default:
		return errors.New("unknown enqueue result " + string(result))
	}
}

func (a *App) stopWriteWorker(ctx context.Context) error {
	if a == nil {
		return nil
	}
	if a.workerCancel != nil {
		a.workerCancel()
		a.workerCancel = nil
	}
	if a.workerDone != nil {
		select {
		case <-a.workerDone:
		case <-ctx.Done():
			return ctx.Err()
		}
		a.workerDone = nil
	}
	if err := a.drainWriteQueue(ctx); err != nil {
		return err
	}
	if a.writeQueue != nil {
		if err := a.writeQueue.Close(); err != nil {
			return err
		}
		a.writeQueue = nil
	}
	if a.writeSpool != nil {
		if err := a.writeSpool.Close(); err != nil {
			return err
		}
		a.writeSpool = nil
	}
	return nil
}

// drainWriteQueue flushes whatever is left in the memory queue and spool
// after the worker has stopped.
func (a *App) drainWriteQueue(ctx context.Context) error {
	if a == nil || a.ledger == nil {
		return nil
	}
	batchSize := a.batchSize()
	for {
		batch := make([]ledger.PushRecord, 0, batchSize)
		if a.writeQueue != nil {
			memBatch, err := a.writeQueue.DequeueBatch(ctx, batchSize, 0)
			if err != nil && !errors.Is(err, io.EOF) {
				return err
			}
			batch = append(batch, memBatch...)
		}
		if len(batch) < batchSize && a.writeSpool != nil {
			rows, err := a.writeSpool.DequeueBatch(ctx, batchSize-len(batch))
			if err != nil {
				return err
			}
			if len(rows) > 0 {
				for _, row := range rows {
					batch = append(batch, row.Request)
				}
				if err := a.ledger.RecordPushes(batch); err != nil {
					_ = a.writeSpool.Nack(rows, time.Now().Add(backoffDelay(1)), err.Error())
					return err
				}
				a.ackSpooled(rows)
				continue
			}
		}
		if len(batch) == 0 {
			return nil
		}
		if err := a.ledger.RecordPushes(batch); err != nil {
			return err
		}
	}
}

func (a *App) updateQueueMetrics() {
	if a == nil {
		return
	}
	if a.writeQueue != nil {
		observability.WriteQueueDepth.Set(float64(a.writeQueue.Len()))
	}
	if a.writeSpool != nil {
		if count, err := a.writeSpool.PendingCount(context.Background()); err == nil {
			observability.WriteSpoolDepth.Set(float64(count))
		}
	}
}
