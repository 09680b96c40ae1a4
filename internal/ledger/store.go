// Package ledger holds the transaction list, derives its totals and keeps it
// persisted in an injected key/value backend.
package ledger

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"pocketbalance/internal/core"
	"pocketbalance/internal/log"
	"pocketbalance/internal/storage"
)

// DefaultKey is the storage key the list is persisted under.
const DefaultKey = "pocketbalance-transactions"

// flushTimeout bounds a single write to the backend.
const flushTimeout = 10 * time.Second

// Store is the single owner of the transaction list. The list is kept
// most-recent-first and rewritten wholesale to the backend after every
// mutation. Persistence failures are logged and never reach the caller.
type Store struct {
	kv     storage.KeyValue
	key    string
	logger *log.Logger
	now    func() time.Time
	newID  func() string

	mu     sync.RWMutex
	txs    []core.Transaction
	seen   map[string]struct{}
	loaded bool

	loadOnce sync.Once
	ready    chan struct{}
}

// Option configures a Store.
type Option func(*Store)

// WithKey overrides the storage key.
func WithKey(key string) Option {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l.WithComponent(log.ComponentLedger)
		}
	}
}

// WithClock replaces time.Now for timestamping new transactions.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator replaces the UUID generator. Duplicate ids are re-drawn,
// so a generator must eventually produce a fresh value.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// New creates a store over kv. Call Load before serving reads.
func New(kv storage.KeyValue, opts ...Option) *Store {
	s := &Store{
		kv:     kv,
		key:    DefaultKey,
		logger: log.Discard(),
		now:    time.Now,
		newID:  uuid.NewString,
		seen:   make(map[string]struct{}),
		ready:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Key returns the storage key in use.
func (s *Store) Key() string {
	return s.key
}

// Load reads the persisted list once. Missing, unreadable or corrupt data
// leaves the store empty. Transactions added before Load stay in front of
// the loaded ones and are flushed together with them.
func (s *Store) Load(ctx context.Context) {
	s.loadOnce.Do(func() {
		defer close(s.ready)

		stored := s.read(ctx)

		s.mu.Lock()
		defer s.mu.Unlock()

		pending := len(s.txs)
		for _, tx := range stored {
			if _, dup := s.seen[tx.ID]; dup {
				s.logger.Warn("Dropping duplicate transaction id", log.FieldTxID, tx.ID)
				continue
			}
			s.seen[tx.ID] = struct{}{}
			s.txs = append(s.txs, tx)
		}
		s.loaded = true

		s.logger.Info("Transactions loaded",
			log.FieldKey, s.key,
			log.FieldCount, len(s.txs),
		)
		if pending > 0 {
			s.flushLocked(ctx)
		}
	})
}

func (s *Store) read(ctx context.Context) []core.Transaction {
	raw, ok, err := s.kv.Get(ctx, s.key)
	if err != nil {
		s.logger.Failure(ctx, "Failed to read stored transactions", err, log.FieldKey, s.key)
		return nil
	}
	if !ok || len(raw) == 0 {
		return nil
	}
	var txs []core.Transaction
	if err := json.Unmarshal(raw, &txs); err != nil {
		s.logger.Failure(ctx, "Stored transactions are corrupt, starting empty", err, log.FieldKey, s.key)
		return nil
	}
	return txs
}

// Ready is closed once Load has finished.
func (s *Store) Ready() <-chan struct{} {
	return s.ready
}

// IsReady reports whether Load has finished.
func (s *Store) IsReady() bool {
	select {
	case <-s.ready:
		return true
	default:
		return false
	}
}

// Add assigns a fresh id and the current timestamp to d and puts it at the
// front of the list. Amount and category are not checked here; callers go
// through the entry layer for that.
func (s *Store) Add(ctx context.Context, d core.Draft) core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.newID()
	for {
		if _, dup := s.seen[id]; !dup {
			break
		}
		id = s.newID()
	}
	s.seen[id] = struct{}{}

	tx := d.Transaction(id, s.now())
	s.txs = append([]core.Transaction{tx}, s.txs...)

	s.logger.Debug("Transaction added",
		log.NewFields().WithOperation(log.OpAdd).
			WithTransaction(tx.ID, tx.Type.String(), tx.Amount, string(tx.Category)).ToSlice()...)

	if s.loaded {
		s.flushLocked(ctx)
	}
	return tx
}

// Clear removes every transaction. Ids issued so far stay reserved.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.txs)
	s.txs = nil
	s.logger.Info("Transactions cleared", log.FieldCount, n)

	if s.loaded {
		s.flushLocked(ctx)
	}
}

// List returns a copy of the list, most recent first.
func (s *Store) List() []core.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Transaction, len(s.txs))
	copy(out, s.txs)
	return out
}

// Len returns the number of transactions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.txs)
}

// Aggregate computes the totals of the current list.
func (s *Store) Aggregate() core.Totals {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return core.Aggregate(s.txs)
}

// flushLocked writes the whole list. Callers hold s.mu so that concurrent
// mutations reach the backend in the order they were applied. The write
// ignores cancellation of ctx since the mutation is already applied in memory.
func (s *Store) flushLocked(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flushTimeout)
	defer cancel()

	txs := s.txs
	if txs == nil {
		txs = []core.Transaction{}
	}
	raw, err := json.Marshal(txs)
	if err != nil {
		s.logger.Failure(ctx, "Failed to encode transactions", err, log.FieldOperation, log.OpFlush)
		return
	}
	if err := s.kv.Set(ctx, s.key, raw); err != nil {
		s.logger.Failure(ctx, "Failed to persist transactions", err,
			log.FieldOperation, log.OpFlush,
			log.FieldKey, s.key,
			log.FieldCount, len(txs),
		)
	}
}
