package ports

import (
	"assettree/internal/data/ledger"
	"context"
	"time"
)

// RemoteItem is one node in a bulk upsert, addressed by its root-relative path.
type RemoteItem struct {
	Path          string            `json:"path"`
	Name          string            `json:"name"`
	Type          string            `json:"type"`
	Formula       string            `json:"formula,omitempty"`
	FormulaParams map[string]string `json:"formula_params,omitempty"`
	Description   string            `json:"description,omitempty"`
}

// BulkUpsertRequest carries a whole tree to the remote store.
type BulkUpsertRequest struct {
	TreeName     string       `json:"tree_name"`
	WorkbookName string       `json:"workbook_name"`
	Root         RemoteItem   `json:"root"`
	Items        []RemoteItem `json:"items"`
}

// ItemFailure is a per-item rejection reported by the remote store. Path and
// Name echo the rejected item.
type ItemFailure struct {
	Path   string `json:"path"`
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

type BulkUpsertResult struct {
	Succeeded int           `json:"succeeded"`
	Failures  []ItemFailure `json:"failures,omitempty"`
}

// RemoteTree summarizes a tree known to the remote store.
type RemoteTree struct {
	Name         string `json:"name"`
	WorkbookName string `json:"workbook_name"`
	ItemCount    int    `json:"item_count"`
}

// RemoteStore is the external system trees are pushed to. An error return
// means the store could not be reached; item rejections go in the result.
type RemoteStore interface {
	BulkUpsert(ctx context.Context, req BulkUpsertRequest) (BulkUpsertResult, error)
	SearchTree(ctx context.Context, name string) (*RemoteTree, error)
}

// PushLedger persists push attempts.
type PushLedger interface {
	RecordPushes(records []ledger.PushRecord) error
	ListPushes(treeName, workbookName string, limit int) ([]ledger.PushRecord, error)
	Close() error
}

type EnqueueResult string

const (
	EnqueueAccepted EnqueueResult = "accepted"
	EnqueueDropped  EnqueueResult = "dropped"
)

// WriteQueuePort buffers writes for a background worker.
type WriteQueuePort[T any] interface {
	Enqueue(req T) EnqueueResult
	DequeueBatch(ctx context.Context, maxItems int, wait time.Duration) ([]T, error)
	Close() error
	Len() int
}

// SpoolRow is a persisted write awaiting (re)delivery.
type SpoolRow[T any] struct {
	ID       int64
	Request  T
	Attempts int
}

// WriteSpoolPort is the durable overflow behind a WriteQueuePort.
type WriteSpoolPort[T any] interface {
	Enqueue(req T) error
	DequeueBatch(ctx context.Context, maxItems int) ([]SpoolRow[T], error)
	Ack(ids []int64) error
	Nack(rows []SpoolRow[T], nextAttemptAt time.Time, lastErr string) error
	PendingCount(ctx context.Context) (int, error)
	Close() error
}
