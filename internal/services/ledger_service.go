package services

import (
	"context"
	"fmt"
	"io"

	"pocketbalance/internal/amqp"
	"pocketbalance/internal/core"
	"pocketbalance/internal/entry"
	"pocketbalance/internal/ledger"
	"pocketbalance/internal/log"
)

// EventPublisher sends ledger change events. *amqp.Client implements it.
type EventPublisher interface {
	PublishEvent(ctx context.Context, evt *amqp.TransactionEvent) error
}

// LedgerService validates entries, applies them to the store and announces
// every change. Publishing is best effort: a mutation that reached the
// store is never reported as failed.
type LedgerService struct {
	store     *ledger.Store
	publisher EventPublisher
	cats      core.Categories
	logger    *log.Logger
}

// NewLedgerService wires the store with an optional publisher.
func NewLedgerService(store *ledger.Store, publisher EventPublisher, cats core.Categories, logger *log.Logger) *LedgerService {
	if logger == nil {
		logger = log.Discard()
	}
	if len(cats) == 0 {
		cats = core.DefaultCategories()
	}
	return &LedgerService{
		store:     store,
		publisher: publisher,
		cats:      cats,
		logger:    logger.WithComponent(log.ComponentLedger),
	}
}

// Categories returns the configured enumeration.
func (s *LedgerService) Categories() core.Categories {
	return s.cats
}

// Store exposes the underlying store for readiness checks.
func (s *LedgerService) Store() *ledger.Store {
	return s.store
}

// AddSpending validates f and records it.
func (s *LedgerService) AddSpending(ctx context.Context, f entry.SpendingForm) (core.Transaction, error) {
	d, err := f.Submit(s.cats)
	if err != nil {
		return core.Transaction{}, err
	}
	return s.add(ctx, d), nil
}

// AddIncome validates f and records it.
func (s *LedgerService) AddIncome(ctx context.Context, f entry.IncomeForm) (core.Transaction, error) {
	d, err := f.Submit()
	if err != nil {
		return core.Transaction{}, err
	}
	return s.add(ctx, d), nil
}

func (s *LedgerService) add(ctx context.Context, d core.Draft) core.Transaction {
	tx := s.store.Add(ctx, d)
	s.logger.InfoContext(ctx, "Transaction recorded",
		log.NewFields().WithOperation(log.OpAdd).
			WithTransaction(tx.ID, tx.Type.String(), tx.Amount, string(tx.Category)).ToSlice()...)
	s.publish(ctx, amqp.NewAddedEvent(tx))
	return tx
}

// Clear removes every transaction.
func (s *LedgerService) Clear(ctx context.Context) {
	s.store.Clear(ctx)
	s.publish(ctx, amqp.NewClearedEvent())
}

// List returns the transactions, most recent first.
func (s *LedgerService) List() []core.Transaction {
	return s.store.List()
}

// Summary returns the current totals.
func (s *LedgerService) Summary() core.Totals {
	return s.store.Aggregate()
}

func (s *LedgerService) publish(ctx context.Context, evt *amqp.TransactionEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishEvent(ctx, evt); err != nil {
		// the store already holds the change
		s.logger.Failure(ctx, "Failed to publish transaction event", err,
			log.FieldOperation, log.OpPublish,
			"kind", evt.Kind)
	}
}

// Close closes the publisher when it holds resources.
func (s *LedgerService) Close() error {
	if c, ok := s.publisher.(io.Closer); ok {
		if err := c.Close(); err != nil {
			return fmt.Errorf("close publisher: %w", err)
		}
	}
	return nil
}
