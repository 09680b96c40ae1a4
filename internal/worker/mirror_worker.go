package worker

import (
	"context"
	"fmt"
	"sync"

	"pocketbalance/internal/amqp"
	"pocketbalance/internal/core"
	"pocketbalance/internal/log"
	"pocketbalance/internal/sheets"
)

// MirrorWorker applies ledger change events to a spreadsheet mirror.
// Redelivered added events are skipped by transaction id.
type MirrorWorker struct {
	mirror sheets.Mirror
	reader sheets.MirrorReader
	logger *log.Logger

	mu     sync.Mutex
	seen   map[string]struct{}
	primed bool
}

// NewMirrorWorker creates a worker. reader may be nil, in which case only
// ids mirrored by this process are known.
func NewMirrorWorker(mirror sheets.Mirror, reader sheets.MirrorReader, logger *log.Logger) *MirrorWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &MirrorWorker{
		mirror: mirror,
		reader: reader,
		logger: logger.WithComponent(log.ComponentWorker),
		seen:   map[string]struct{}{},
	}
}

// HandleEvent is an amqp.Handler.
func (w *MirrorWorker) HandleEvent(ctx context.Context, evt *amqp.TransactionEvent) error {
	switch evt.Kind {
	case amqp.EventAdded:
		_, err := w.append(ctx, *evt.Transaction)
		return err
	case amqp.EventCleared:
		return w.clear(ctx)
	default:
		return fmt.Errorf("%w: unknown kind %q", amqp.ErrInvalidEvent, evt.Kind)
	}
}

func (w *MirrorWorker) append(ctx context.Context, tx core.Transaction) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.appendLocked(ctx, tx)
}

// appendLocked reports whether a row was written.
func (w *MirrorWorker) appendLocked(ctx context.Context, tx core.Transaction) (bool, error) {
	if err := w.primeLocked(ctx); err != nil {
		return false, err
	}
	if _, ok := w.seen[tx.ID]; ok {
		w.logger.DebugContext(ctx, "Transaction already mirrored", log.FieldTxID, tx.ID)
		return false, nil
	}
	if err := w.mirror.AppendTransaction(ctx, tx); err != nil {
		return false, fmt.Errorf("mirror transaction %s: %w", tx.ID, err)
	}
	w.seen[tx.ID] = struct{}{}
	w.logger.InfoContext(ctx, "Transaction mirrored",
		log.NewFields().WithOperation(log.OpMirror).
			WithTransaction(tx.ID, tx.Type.String(), tx.Amount, string(tx.Category)).ToSlice()...)
	return true, nil
}

func (w *MirrorWorker) clear(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.mirror.Clear(ctx); err != nil {
		return fmt.Errorf("clear mirror: %w", err)
	}
	w.seen = map[string]struct{}{}
	w.primed = true
	w.logger.InfoContext(ctx, "Mirror cleared", log.FieldOperation, log.OpClear)
	return nil
}

// primeLocked loads the ids already in the mirror once.
func (w *MirrorWorker) primeLocked(ctx context.Context) error {
	if w.primed || w.reader == nil {
		w.primed = true
		return nil
	}
	existing, err := w.reader.Transactions(ctx)
	if err != nil {
		return fmt.Errorf("read mirror: %w", err)
	}
	for _, tx := range existing {
		w.seen[tx.ID] = struct{}{}
	}
	w.primed = true
	w.logger.InfoContext(ctx, "Loaded mirrored transaction ids", log.FieldCount, len(existing))
	return nil
}

// Snapshot reads the ledger, most recent first.
type Snapshot func(ctx context.Context) ([]core.Transaction, error)

// Reconcile appends every transaction of the snapshot that the mirror lacks,
// oldest first. This covers events lost while the worker was down. Events
// wait until Reconcile returns, so a clear can never land between reading
// the snapshot and appending from it.
func (w *MirrorWorker) Reconcile(ctx context.Context, snapshot Snapshot) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	txs, err := snapshot(ctx)
	if err != nil {
		return fmt.Errorf("read ledger: %w", err)
	}

	synced, failed := 0, 0
	for i := len(txs) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return err
		}
		added, err := w.appendLocked(ctx, txs[i])
		if err != nil {
			w.logger.Failure(ctx, "Failed to mirror transaction during reconcile", err, log.FieldTxID, txs[i].ID)
			failed++
			continue
		}
		if added {
			synced++
		}
	}
	w.logger.InfoContext(ctx, "Reconcile completed",
		"total", len(txs),
		"synced", synced,
		"errors", failed)
	if failed > 0 {
		return fmt.Errorf("reconcile: %d transactions not mirrored", failed)
	}
	return nil
}
