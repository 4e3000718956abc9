package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"ai-interview-be/internal/entity"
	"ai-interview-be/internal/repository/contract"
	"ai-interview-be/internal/repository/unitofwork"

	"github.com/google/uuid"
)

// Store keeps every durable record in process memory. It backs local development when no
// database is configured and the unit tests of the saga components. A transaction holds the
// store lock from Begin until Commit or Rollback, so transactions are serializable.
type Store struct {
	mu           sync.Mutex
	balances     map[uuid.UUID]*entity.CreditBalance
	records      map[uuid.UUID]*entity.ConsumptionRecord
	transactions []*entity.CreditTransaction
	topUps       map[uuid.UUID]*entity.CreditTopUp
	results      map[uuid.UUID]*entity.SessionResult

	faultMu sync.Mutex
	faults  map[string]error
}

func NewStore() *Store {
	return &Store{
		balances: make(map[uuid.UUID]*entity.CreditBalance),
		records:  make(map[uuid.UUID]*entity.ConsumptionRecord),
		topUps:   make(map[uuid.UUID]*entity.CreditTopUp),
		results:  make(map[uuid.UUID]*entity.SessionResult),
		faults:   make(map[string]error),
	}
}

// SetFault makes every call of the named operation (e.g. "balance.increment") fail with err until cleared.
func (s *Store) SetFault(op string, err error) {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	s.faults[op] = err
}

func (s *Store) ClearFault(op string) {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	delete(s.faults, op)
}

func (s *Store) fault(op string) error {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	return s.faults[op]
}

// NewUnitOfWork implements unitofwork.RepositoryFactory.
func (s *Store) NewUnitOfWork(ctx context.Context) unitofwork.UnitOfWork {
	return &unitOfWork{store: s}
}

var _ unitofwork.RepositoryFactory = (*Store)(nil)

type unitOfWork struct {
	store *Store
	inTx  bool
	undo  []func()
}

func (u *unitOfWork) Begin(ctx context.Context) error {
	if u.inTx {
		return fmt.Errorf("transaction already started")
	}
	u.store.mu.Lock()
	u.inTx = true
	u.undo = nil
	return nil
}

func (u *unitOfWork) Commit() error {
	if !u.inTx {
		return fmt.Errorf("no transaction to commit")
	}
	u.undo = nil
	u.inTx = false
	u.store.mu.Unlock()
	return nil
}

func (u *unitOfWork) Rollback() error {
	if !u.inTx {
		return nil
	}
	for i := len(u.undo) - 1; i >= 0; i-- {
		u.undo[i]()
	}
	u.undo = nil
	u.inTx = false
	u.store.mu.Unlock()
	return nil
}

// run executes fn under the store lock unless the transaction already holds it.
func (u *unitOfWork) run(op string, fn func() error) error {
	if err := u.store.fault(op); err != nil {
		return err
	}
	if !u.inTx {
		u.store.mu.Lock()
		defer u.store.mu.Unlock()
	}
	return fn()
}

func (u *unitOfWork) onRollback(fn func()) {
	if u.inTx {
		u.undo = append(u.undo, fn)
	}
}

func (u *unitOfWork) CreditBalanceRepository() contract.CreditBalanceRepository {
	return &balanceRepository{u: u}
}

func (u *unitOfWork) ConsumptionRecordRepository() contract.ConsumptionRecordRepository {
	return &recordRepository{u: u}
}

func (u *unitOfWork) CreditTransactionRepository() contract.CreditTransactionRepository {
	return &transactionRepository{u: u}
}

func (u *unitOfWork) CreditTopUpRepository() contract.CreditTopUpRepository {
	return &topUpRepository{u: u}
}

func (u *unitOfWork) SessionResultRepository() contract.SessionResultRepository {
	return &resultRepository{u: u}
}

// --- balances ---

type balanceRepository struct{ u *unitOfWork }

func (r *balanceRepository) FindByUserId(ctx context.Context, userId uuid.UUID) (*entity.CreditBalance, error) {
	var out *entity.CreditBalance
	err := r.u.run("balance.find", func() error {
		if b, ok := r.u.store.balances[userId]; ok {
			cp := *b
			out = &cp
		}
		return nil
	})
	return out, err
}

func (r *balanceRepository) CreateIfAbsent(ctx context.Context, balance *entity.CreditBalance) (bool, error) {
	created := false
	err := r.u.run("balance.create", func() error {
		if _, ok := r.u.store.balances[balance.UserId]; ok {
			return nil
		}
		cp := *balance
		now := time.Now()
		cp.CreatedAt, cp.UpdatedAt = now, now
		r.u.store.balances[balance.UserId] = &cp
		r.u.onRollback(func() { delete(r.u.store.balances, balance.UserId) })
		created = true
		return nil
	})
	return created, err
}

func bucketField(b *entity.CreditBalance, bucket entity.BalanceBucket) (*int, error) {
	switch bucket {
	case entity.BalanceBucketFree:
		return &b.FreeBalance, nil
	case entity.BalanceBucketPurchased:
		return &b.PurchasedBalance, nil
	}
	return nil, fmt.Errorf("unknown balance bucket %q", bucket)
}

func (r *balanceRepository) DecrementIfPositive(ctx context.Context, userId uuid.UUID, bucket entity.BalanceBucket) (bool, error) {
	ok := false
	err := r.u.run("balance.decrement", func() error {
		b, found := r.u.store.balances[userId]
		if !found {
			return nil
		}
		field, err := bucketField(b, bucket)
		if err != nil {
			return err
		}
		if *field <= 0 {
			return nil
		}
		*field--
		r.u.onRollback(func() { *field++ })
		ok = true
		return nil
	})
	return ok, err
}

func (r *balanceRepository) Increment(ctx context.Context, userId uuid.UUID, bucket entity.BalanceBucket, amount int) error {
	return r.u.run("balance.increment", func() error {
		b, found := r.u.store.balances[userId]
		if !found {
			return fmt.Errorf("credit balance for user %s not found", userId)
		}
		field, err := bucketField(b, bucket)
		if err != nil {
			return err
		}
		*field += amount
		r.u.onRollback(func() { *field -= amount })
		return nil
	})
}

// --- consumption records ---

type recordRepository struct{ u *unitOfWork }

func copyRecord(r *entity.ConsumptionRecord) *entity.ConsumptionRecord {
	cp := *r
	return &cp
}

func (r *recordRepository) Create(ctx context.Context, record *entity.ConsumptionRecord) error {
	return r.u.run("record.create", func() error {
		if record.Id == uuid.Nil {
			record.Id = uuid.New()
		}
		if _, exists := r.u.store.records[record.Id]; exists {
			return contract.ErrDuplicateKey
		}
		if record.IdempotencyKey != nil && record.Status != entity.ConsumptionStatusFailed {
			for _, existing := range r.u.store.records {
				if existing.UserId == record.UserId &&
					existing.IdempotencyKey != nil && *existing.IdempotencyKey == *record.IdempotencyKey &&
					existing.Status != entity.ConsumptionStatusFailed {
					return contract.ErrDuplicateKey
				}
			}
		}
		id := record.Id
		r.u.store.records[id] = copyRecord(record)
		r.u.onRollback(func() { delete(r.u.store.records, id) })
		return nil
	})
}

func (r *recordRepository) FindById(ctx context.Context, id uuid.UUID) (*entity.ConsumptionRecord, error) {
	var out *entity.ConsumptionRecord
	err := r.u.run("record.find", func() error {
		if rec, ok := r.u.store.records[id]; ok {
			out = copyRecord(rec)
		}
		return nil
	})
	return out, err
}

func (r *recordRepository) FindActiveByIdempotencyKey(ctx context.Context, userId uuid.UUID, key string) (*entity.ConsumptionRecord, error) {
	var out *entity.ConsumptionRecord
	err := r.u.run("record.find", func() error {
		for _, rec := range r.u.store.records {
			if rec.UserId == userId && rec.IdempotencyKey != nil && *rec.IdempotencyKey == key &&
				rec.Status != entity.ConsumptionStatusFailed {
				out = copyRecord(rec)
				return nil
			}
		}
		return nil
	})
	return out, err
}

func (r *recordRepository) transition(op string, id uuid.UUID, apply func(rec *entity.ConsumptionRecord)) (bool, error) {
	ok := false
	err := r.u.run(op, func() error {
		rec, found := r.u.store.records[id]
		if !found || rec.Status != entity.ConsumptionStatusPending {
			return nil
		}
		before := *rec
		apply(rec)
		r.u.onRollback(func() { *rec = before })
		ok = true
		return nil
	})
	return ok, err
}

func (r *recordRepository) MarkSuccess(ctx context.Context, id uuid.UUID, output map[string]interface{}, at time.Time) (bool, error) {
	return r.transition("record.success", id, func(rec *entity.ConsumptionRecord) {
		rec.Status = entity.ConsumptionStatusSuccess
		rec.CompletedAt = &at
		if output != nil {
			rec.OutputSnapshot = output
		}
	})
}

func (r *recordRepository) MarkRefunded(ctx context.Context, id uuid.UUID, errorInfo string, at time.Time) (bool, error) {
	return r.transition("record.refund", id, func(rec *entity.ConsumptionRecord) {
		rec.Status = entity.ConsumptionStatusFailed
		rec.ErrorInfo = &errorInfo
		rec.FailedAt = &at
		rec.Refunded = true
		rec.RefundedAt = &at
	})
}

func (r *recordRepository) sorted(filter func(*entity.ConsumptionRecord) bool, desc bool) []*entity.ConsumptionRecord {
	var out []*entity.ConsumptionRecord
	for _, rec := range r.u.store.records {
		if filter(rec) {
			out = append(out, copyRecord(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if desc {
			return out[i].StartedAt.After(out[j].StartedAt)
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

func (r *recordRepository) FindAllByUser(ctx context.Context, userId uuid.UUID, limit, offset int) ([]*entity.ConsumptionRecord, error) {
	var out []*entity.ConsumptionRecord
	err := r.u.run("record.find", func() error {
		all := r.sorted(func(rec *entity.ConsumptionRecord) bool { return rec.UserId == userId }, true)
		out = paginate(all, limit, offset)
		return nil
	})
	return out, err
}

func (r *recordRepository) FindPendingStartedBefore(ctx context.Context, before time.Time) ([]*entity.ConsumptionRecord, error) {
	var out []*entity.ConsumptionRecord
	err := r.u.run("record.find", func() error {
		out = r.sorted(func(rec *entity.ConsumptionRecord) bool {
			return rec.Status == entity.ConsumptionStatusPending && rec.StartedAt.Before(before)
		}, false)
		return nil
	})
	return out, err
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}

// --- credit transactions ---

type transactionRepository struct{ u *unitOfWork }

func (r *transactionRepository) Create(ctx context.Context, tx *entity.CreditTransaction) error {
	return r.u.run("transaction.create", func() error {
		if tx.Id == uuid.Nil {
			tx.Id = uuid.New()
		}
		if tx.CreatedAt.IsZero() {
			tx.CreatedAt = time.Now()
		}
		cp := *tx
		r.u.store.transactions = append(r.u.store.transactions, &cp)
		n := len(r.u.store.transactions)
		r.u.onRollback(func() { r.u.store.transactions = r.u.store.transactions[:n-1] })
		return nil
	})
}

func (r *transactionRepository) FindAllByUser(ctx context.Context, userId uuid.UUID, limit int) ([]*entity.CreditTransaction, error) {
	var out []*entity.CreditTransaction
	err := r.u.run("transaction.find", func() error {
		for i := len(r.u.store.transactions) - 1; i >= 0; i-- {
			t := r.u.store.transactions[i]
			if t.UserId == userId {
				cp := *t
				out = append(out, &cp)
			}
		}
		out = paginate(out, limit, 0)
		return nil
	})
	return out, err
}

// --- top-ups ---

type topUpRepository struct{ u *unitOfWork }

func (r *topUpRepository) Create(ctx context.Context, topUp *entity.CreditTopUp) error {
	return r.u.run("topup.create", func() error {
		if _, exists := r.u.store.topUps[topUp.Id]; exists {
			return contract.ErrDuplicateKey
		}
		cp := *topUp
		r.u.store.topUps[topUp.Id] = &cp
		id := topUp.Id
		r.u.onRollback(func() { delete(r.u.store.topUps, id) })
		return nil
	})
}

func (r *topUpRepository) FindById(ctx context.Context, id uuid.UUID) (*entity.CreditTopUp, error) {
	var out *entity.CreditTopUp
	err := r.u.run("topup.find", func() error {
		if t, ok := r.u.store.topUps[id]; ok {
			cp := *t
			out = &cp
		}
		return nil
	})
	return out, err
}

func (r *topUpRepository) transition(op string, id uuid.UUID, apply func(t *entity.CreditTopUp)) (bool, error) {
	ok := false
	err := r.u.run(op, func() error {
		t, found := r.u.store.topUps[id]
		if !found || t.Status != entity.TopUpStatusPending {
			return nil
		}
		before := *t
		apply(t)
		r.u.onRollback(func() { *t = before })
		ok = true
		return nil
	})
	return ok, err
}

func (r *topUpRepository) MarkPaid(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	return r.transition("topup.paid", id, func(t *entity.CreditTopUp) {
		t.Status = entity.TopUpStatusPaid
		t.PaidAt = &at
	})
}

func (r *topUpRepository) MarkFailed(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.transition("topup.failed", id, func(t *entity.CreditTopUp) {
		t.Status = entity.TopUpStatusFailed
	})
}

// --- session results ---

type resultRepository struct{ u *unitOfWork }

func copyResult(r *entity.SessionResult) *entity.SessionResult {
	cp := *r
	cp.Transcript = append([]entity.TranscriptEntry(nil), r.Transcript...)
	if r.Output != nil {
		cp.Output = make(map[string]interface{}, len(r.Output))
		for k, v := range r.Output {
			cp.Output[k] = v
		}
	}
	return &cp
}

func (r *resultRepository) Create(ctx context.Context, result *entity.SessionResult) error {
	return r.u.run("result.create", func() error {
		if _, exists := r.u.store.results[result.Id]; exists {
			return contract.ErrDuplicateKey
		}
		if result.Transcript == nil {
			result.Transcript = []entity.TranscriptEntry{}
		}
		if result.CreatedAt.IsZero() {
			result.CreatedAt = time.Now()
		}
		r.u.store.results[result.Id] = copyResult(result)
		id := result.Id
		r.u.onRollback(func() { delete(r.u.store.results, id) })
		return nil
	})
}

func (r *resultRepository) FindById(ctx context.Context, id uuid.UUID) (*entity.SessionResult, error) {
	var out *entity.SessionResult
	err := r.u.run("result.find", func() error {
		if res, ok := r.u.store.results[id]; ok {
			out = copyResult(res)
		}
		return nil
	})
	return out, err
}

// FindByIdForUpdate relies on the transaction holding the store lock.
func (r *resultRepository) FindByIdForUpdate(ctx context.Context, id uuid.UUID) (*entity.SessionResult, error) {
	return r.FindById(ctx, id)
}

func (r *resultRepository) Update(ctx context.Context, result *entity.SessionResult) error {
	return r.u.run("result.update", func() error {
		existing, ok := r.u.store.results[result.Id]
		if !ok {
			return fmt.Errorf("session result %s not found", result.Id)
		}
		before := copyResult(existing)
		now := time.Now()
		result.UpdatedAt = &now
		r.u.store.results[result.Id] = copyResult(result)
		id := result.Id
		r.u.onRollback(func() { r.u.store.results[id] = before })
		return nil
	})
}

func (r *resultRepository) FindAllByUser(ctx context.Context, userId uuid.UUID, limit, offset int) ([]*entity.SessionResult, error) {
	var out []*entity.SessionResult
	err := r.u.run("result.find", func() error {
		for _, res := range r.u.store.results {
			if res.UserId == userId {
				out = append(out, copyResult(res))
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
		out = paginate(out, limit, offset)
		return nil
	})
	return out, err
}
