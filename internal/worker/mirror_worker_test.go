package worker

import (
	"context"
	"errors"
	"testing"

	"pocketbalance/internal/amqp"
	"pocketbalance/internal/core"
)

type fakeMirror struct {
	rows      []core.Transaction
	appendErr error
	readErr   error
	reads     int
	clears    int
}

func (f *fakeMirror) AppendTransaction(_ context.Context, tx core.Transaction) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.rows = append(f.rows, tx)
	return nil
}

func (f *fakeMirror) Clear(context.Context) error {
	f.rows = nil
	f.clears++
	return nil
}

func (f *fakeMirror) Transactions(context.Context) ([]core.Transaction, error) {
	f.reads++
	if f.readErr != nil {
		return nil, f.readErr
	}
	return append([]core.Transaction(nil), f.rows...), nil
}

func tx(id string) core.Transaction {
	return core.Transaction{ID: id, Type: core.KindIncome, Description: "Salary", Amount: 10, Date: "2024-01-01T00:00:00.000Z"}
}

func TestMirrorWorker_HandleEvent(t *testing.T) {
	m := &fakeMirror{rows: []core.Transaction{tx("old")}}
	w := NewMirrorWorker(m, m, nil)
	ctx := context.Background()

	if err := w.HandleEvent(ctx, amqp.NewAddedEvent(tx("a"))); err != nil {
		t.Fatalf("added: %v", err)
	}
	// redelivery and already-mirrored rows are skipped
	if err := w.HandleEvent(ctx, amqp.NewAddedEvent(tx("a"))); err != nil {
		t.Fatalf("redelivered: %v", err)
	}
	if err := w.HandleEvent(ctx, amqp.NewAddedEvent(tx("old"))); err != nil {
		t.Fatalf("existing: %v", err)
	}
	if len(m.rows) != 2 || m.reads != 1 {
		t.Fatalf("rows = %v, reads = %d", m.rows, m.reads)
	}

	if err := w.HandleEvent(ctx, amqp.NewClearedEvent()); err != nil {
		t.Fatalf("cleared: %v", err)
	}
	if len(m.rows) != 0 || m.clears != 1 {
		t.Fatalf("mirror not cleared")
	}
	// ids are forgotten after a clear
	if err := w.HandleEvent(ctx, amqp.NewAddedEvent(tx("a"))); err != nil {
		t.Fatalf("re-add: %v", err)
	}
	if len(m.rows) != 1 {
		t.Fatalf("expected row after clear, got %v", m.rows)
	}
}

func TestMirrorWorker_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("append failure is returned for requeue", func(t *testing.T) {
		m := &fakeMirror{appendErr: errors.New("quota")}
		w := NewMirrorWorker(m, nil, nil)
		if err := w.HandleEvent(ctx, amqp.NewAddedEvent(tx("a"))); err == nil {
			t.Fatal("expected error")
		}
		m.appendErr = nil
		if err := w.HandleEvent(ctx, amqp.NewAddedEvent(tx("a"))); err != nil || len(m.rows) != 1 {
			t.Fatalf("retry should succeed: %v", err)
		}
	})

	t.Run("read failure retries priming", func(t *testing.T) {
		m := &fakeMirror{readErr: errors.New("down")}
		w := NewMirrorWorker(m, m, nil)
		if err := w.HandleEvent(ctx, amqp.NewAddedEvent(tx("a"))); err == nil {
			t.Fatal("expected error")
		}
		m.readErr = nil
		if err := w.HandleEvent(ctx, amqp.NewAddedEvent(tx("a"))); err != nil {
			t.Fatalf("unexpected error %v", err)
		}
		if m.reads != 2 {
			t.Fatalf("reads = %d", m.reads)
		}
	})

	t.Run("unknown kind", func(t *testing.T) {
		w := NewMirrorWorker(&fakeMirror{}, nil, nil)
		if err := w.HandleEvent(ctx, &amqp.TransactionEvent{Kind: "updated"}); !errors.Is(err, amqp.ErrInvalidEvent) {
			t.Fatalf("got %v", err)
		}
	})
}

func TestMirrorWorker_Reconcile(t *testing.T) {
	m := &fakeMirror{rows: []core.Transaction{tx("1")}}
	w := NewMirrorWorker(m, m, nil)

	// most recent first
	ledger := []core.Transaction{tx("3"), tx("2"), tx("1")}
	if err := w.Reconcile(context.Background(), snapshotOf(ledger...)); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(m.rows) != 3 || m.rows[1].ID != "2" || m.rows[2].ID != "3" {
		t.Fatalf("rows = %v", m.rows)
	}

	m.appendErr = errors.New("quota")
	if err := w.Reconcile(context.Background(), snapshotOf(tx("4"))); err == nil {
		t.Fatal("expected reconcile error")
	}

	m.appendErr = nil
	failing := func(context.Context) ([]core.Transaction, error) { return nil, errors.New("disk gone") }
	if err := w.Reconcile(context.Background(), failing); err == nil {
		t.Fatal("expected snapshot error")
	}
}

func snapshotOf(txs ...core.Transaction) Snapshot {
	return func(context.Context) ([]core.Transaction, error) { return txs, nil }
}

func TestMirrorWorker_ClearDuringReconcileWins(t *testing.T) {
	m := &fakeMirror{}
	w := NewMirrorWorker(m, m, nil)
	ctx := context.Background()

	cleared := make(chan error, 1)
	// the ledger is cleared right after the snapshot was read
	snapshot := func(context.Context) ([]core.Transaction, error) {
		go func() { cleared <- w.HandleEvent(ctx, amqp.NewClearedEvent()) }()
		return []core.Transaction{tx("2"), tx("1")}, nil
	}
	if err := w.Reconcile(ctx, snapshot); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if err := <-cleared; err != nil {
		t.Fatalf("cleared: %v", err)
	}
	if len(m.rows) != 0 {
		t.Fatalf("stale rows left after clear: %v", m.rows)
	}
}
