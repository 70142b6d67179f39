package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"github.com/freshpress/api/internal/domain"
	pfirestore "github.com/freshpress/api/internal/platform/firestore"
)

// TransactionRepository persists payment transactions keyed by txnid.
type TransactionRepository struct {
	provider *pfirestore.Provider
	base     *pfirestore.BaseRepository[domain.Transaction]
}

// NewTransactionRepository constructs a Firestore-backed transaction repository.
func NewTransactionRepository(provider *pfirestore.Provider) (*TransactionRepository, error) {
	if provider == nil {
		return nil, errors.New("transaction repository: firestore provider is required")
	}
	base, err := pfirestore.NewBaseRepository(provider, transactionsCollection, decodeTransactionSnapshot)
	if err != nil {
		return nil, err
	}
	return &TransactionRepository{provider: provider, base: base}, nil
}

func decodeTransactionSnapshot(snap *firestore.DocumentSnapshot) (domain.Transaction, error) {
	var doc transactionDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.Transaction{}, err
	}
	return decodeTransaction(snap.Ref.ID, doc), nil
}

// Create stores a new pending transaction. Duplicate IDs surface as conflicts.
func (r *TransactionRepository) Create(ctx context.Context, txn domain.Transaction) error {
	if r == nil || r.base == nil {
		return errors.New("transaction repository not initialised")
	}
	txnID := strings.TrimSpace(txn.ID)
	if txnID == "" {
		return errors.New("transaction repository: transaction id is required")
	}
	docRef, err := r.base.Doc(ctx, txnID)
	if err != nil {
		return err
	}
	if _, err := docRef.Create(ctx, encodeTransaction(txn)); err != nil {
		return pfirestore.WrapError("transactions.create", err)
	}
	return nil
}

// FindByID fetches a single transaction.
func (r *TransactionRepository) FindByID(ctx context.Context, txnID string) (domain.Transaction, error) {
	if r == nil || r.base == nil {
		return domain.Transaction{}, errors.New("transaction repository not initialised")
	}
	txnID = strings.TrimSpace(txnID)
	if txnID == "" {
		return domain.Transaction{}, errors.New("transaction repository: transaction id is required")
	}
	return r.base.Get(ctx, txnID)
}

// MarkFailed records a failed payment outcome. A transaction already in a
// terminal state is returned unchanged so a late failure callback can never
// downgrade a completed payment.
func (r *TransactionRepository) MarkFailed(ctx context.Context, txnID, reason string) (domain.Transaction, error) {
	if r == nil || r.base == nil {
		return domain.Transaction{}, errors.New("transaction repository not initialised")
	}
	txnID = strings.TrimSpace(txnID)
	if txnID == "" {
		return domain.Transaction{}, errors.New("transaction repository: transaction id is required")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "Payment failed"
	}

	var result domain.Transaction
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		docRef, err := r.base.Doc(ctx, txnID)
		if err != nil {
			return err
		}
		snap, err := tx.Get(docRef)
		if err != nil {
			return pfirestore.WrapError("transactions.mark_failed", err)
		}
		txn, err := decodeTransactionSnapshot(snap)
		if err != nil {
			return pfirestore.WrapError("transactions.mark_failed", err)
		}
		if txn.Terminal() {
			result = txn
			return nil
		}

		now := time.Now().UTC()
		if err := tx.Update(docRef, []firestore.Update{
			{Path: "status", Value: string(domain.TransactionStatusFailed)},
			{Path: "paymentStatus", Value: string(domain.PaymentStatusFailed)},
			{Path: "failureReason", Value: reason},
			{Path: "updatedAt", Value: now},
		}); err != nil {
			return pfirestore.WrapError("transactions.mark_failed", err)
		}

		txn.Status = domain.TransactionStatusFailed
		txn.PaymentStatus = domain.PaymentStatusFailed
		txn.FailureReason = reason
		txn.UpdatedAt = now
		result = txn
		return nil
	})
	if err != nil {
		return domain.Transaction{}, err
	}
	return result, nil
}

// ExpirePending fails pending transactions created before the cutoff. Each
// candidate is re-checked inside its own transaction so a payment confirmed
// between the query and the write is left alone.
func (r *TransactionRepository) ExpirePending(ctx context.Context, cutoff time.Time, reason string, limit int) (int, error) {
	if r == nil || r.base == nil {
		return 0, errors.New("transaction repository not initialised")
	}
	if limit <= 0 {
		limit = 100
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "payment window expired"
	}

	col, err := r.base.Collection(ctx)
	if err != nil {
		return 0, err
	}

	query := col.
		Where("status", "==", string(domain.TransactionStatusPending)).
		Where("createdAt", "<", cutoff.UTC()).
		Limit(limit)

	iter := query.Documents(ctx)
	defer iter.Stop()

	var candidates []string
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return 0, pfirestore.WrapError("transactions.expire_pending", err)
		}
		candidates = append(candidates, snap.Ref.ID)
	}

	expired := 0
	for _, txnID := range candidates {
		transitioned, err := r.expireOne(ctx, txnID, reason)
		if err != nil {
			return expired, err
		}
		if transitioned {
			expired++
		}
	}
	return expired, nil
}

func (r *TransactionRepository) expireOne(ctx context.Context, txnID, reason string) (bool, error) {
	var transitioned bool
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		transitioned = false
		docRef, err := r.base.Doc(ctx, txnID)
		if err != nil {
			return err
		}
		snap, err := tx.Get(docRef)
		if err != nil {
			return pfirestore.WrapError("transactions.expire_pending", err)
		}
		txn, err := decodeTransactionSnapshot(snap)
		if err != nil {
			return pfirestore.WrapError("transactions.expire_pending", err)
		}
		if txn.Terminal() {
			return nil
		}
		if err := tx.Update(docRef, []firestore.Update{
			{Path: "status", Value: string(domain.TransactionStatusFailed)},
			{Path: "paymentStatus", Value: string(domain.PaymentStatusFailed)},
			{Path: "failureReason", Value: reason},
			{Path: "updatedAt", Value: time.Now().UTC()},
		}); err != nil {
			return pfirestore.WrapError("transactions.expire_pending", err)
		}
		transitioned = true
		return nil
	})
	if err != nil {
		// Racing confirmations are expected here; skip rather than abort the sweep.
		if pfirestore.IsNotFound(err) || pfirestore.IsConflict(err) {
			return false, nil
		}
		return false, err
	}
	return transitioned, nil
}
