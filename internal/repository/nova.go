package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

var (
	// ErrInsufficientBalance is returned when a redemption would take the
	// wallet below zero. Nothing is written in that case.
	ErrInsufficientBalance = errors.New("insufficient nova balance")

	// ErrWalletOnHold is returned when the wallet is not active.
	ErrWalletOnHold = errors.New("wallet is not active")
)

const (
	NovaTransactionGrant  = "grant"
	NovaTransactionRedeem = "redeem"
)

// uniqueViolation is the Postgres error code raised by the
// (wallet_id, idempotency_key) unique index.
const uniqueViolation = "23505"

type NovaRepository interface {
	Grant(walletID string, amountCents int64, reference, idempotencyKey string) (*models.NovaTransaction, bool, error)
	Redeem(walletID string, amountCents int64, reference, idempotencyKey string) (*models.NovaTransaction, bool, error)
	FindByIdempotencyKey(walletID, idempotencyKey string) (*models.NovaTransaction, bool, error)
	ListByWallet(walletID string, limit, offset int) ([]models.NovaTransaction, error)
	LedgerSum(walletID string) (int64, error)
}

type NovaRepositoryImpl struct {
	db *sqlx.DB
}

func NewNovaRepository(db *sqlx.DB) NovaRepository {
	return &NovaRepositoryImpl{db: db}
}

// Grant credits a wallet and writes the ledger row in one transaction.
// The returned bool is true when the idempotency key had already been used
// and the original transaction is being replayed instead of re-applied.
func (repo *NovaRepositoryImpl) Grant(walletID string, amountCents int64, reference, idempotencyKey string) (*models.NovaTransaction, bool, error) {
	return repo.apply(walletID, NovaTransactionGrant, amountCents, reference, idempotencyKey)
}

// Redeem debits a wallet. Same idempotency semantics as Grant; fails with
// ErrInsufficientBalance when the wallet can't cover the amount.
func (repo *NovaRepositoryImpl) Redeem(walletID string, amountCents int64, reference, idempotencyKey string) (*models.NovaTransaction, bool, error) {
	return repo.apply(walletID, NovaTransactionRedeem, amountCents, reference, idempotencyKey)
}

func (repo *NovaRepositoryImpl) apply(walletID, txnType string, amountCents int64, reference, idempotencyKey string) (*models.NovaTransaction, bool, error) {
	// Replays are resolved from the ledger before the wallet row is touched.
	existing, found, err := repo.FindByIdempotencyKey(walletID, idempotencyKey)
	if err != nil {
		return nil, false, err
	}
	if found {
		return existing, true, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, false, err
	}

	defer tx.Rollback()

	// Pessimistic lock holds the wallet for the duration of the movement.
	var wallet models.Wallet

	query := `
		SELECT * FROM driver_wallets WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`

	err = tx.GetContext(ctx, &wallet, query, walletID)
	if err != nil {
		return nil, false, err
	}

	if wallet.Status != WalletActiveStatus {
		return nil, false, ErrWalletOnHold
	}

	balanceAfter := wallet.BalanceCents + amountCents
	if txnType == NovaTransactionRedeem {
		if wallet.BalanceCents < amountCents {
			return nil, false, ErrInsufficientBalance
		}
		balanceAfter = wallet.BalanceCents - amountCents
	}

	query = `
		UPDATE driver_wallets SET balance_cents = $1, updated_at = NOW() WHERE id = $2`

	_, err = tx.ExecContext(ctx, query, balanceAfter, walletID)
	if err != nil {
		return nil, false, err
	}

	var txn models.NovaTransaction

	query = `
		INSERT INTO nova_transactions (wallet_id, type, amount_cents, reference, idempotency_key, balance_after)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING *`

	err = tx.GetContext(ctx, &txn, query,
		walletID,
		txnType,
		amountCents,
		reference,
		idempotencyKey,
		balanceAfter,
	)
	if err != nil {
		// A concurrent request with the same key won the race; the rollback
		// undoes our balance update and we serve the winner's row.
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			tx.Rollback()
			existing, found, lookupErr := repo.FindByIdempotencyKey(walletID, idempotencyKey)
			if lookupErr != nil {
				return nil, false, lookupErr
			}
			if found {
				return existing, true, nil
			}
		}
		return nil, false, err
	}

	err = tx.Commit()
	if err != nil {
		return nil, false, err
	}

	return &txn, false, nil
}

func (repo *NovaRepositoryImpl) FindByIdempotencyKey(walletID, idempotencyKey string) (*models.NovaTransaction, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var txn models.NovaTransaction

	query := `
		SELECT * FROM nova_transactions WHERE wallet_id = $1 AND idempotency_key = $2`

	err := repo.db.GetContext(ctx, &txn, query, walletID, idempotencyKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return &txn, true, nil
}

func (repo *NovaRepositoryImpl) ListByWallet(walletID string, limit, offset int) ([]models.NovaTransaction, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var txns []models.NovaTransaction

	query := `
		SELECT * FROM nova_transactions
		WHERE wallet_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	err := repo.db.SelectContext(ctx, &txns, query, walletID, limit, offset)
	if err != nil {
		return nil, err
	}

	return txns, nil
}

// LedgerSum recomputes the balance from the ledger: grants minus redemptions.
// Reconciliation compares this to the stored wallet balance.
func (repo *NovaRepositoryImpl) LedgerSum(walletID string) (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var sum int64

	query := `
		SELECT COALESCE(SUM(CASE WHEN type = 'grant' THEN amount_cents ELSE -amount_cents END), 0)
		FROM nova_transactions
		WHERE wallet_id = $1`

	err := repo.db.GetContext(ctx, &sum, query, walletID)
	if err != nil {
		return 0, err
	}

	return sum, nil
}
