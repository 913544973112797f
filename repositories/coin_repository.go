package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// ErrCoinTransactionConflict maps the unique constraint on
// (reference_type, reference_id, transaction_type, user_id): the ledger
// already holds this credit, so a retry must not apply it again.
var ErrCoinTransactionConflict = errors.New("coin transaction already recorded for this reference")

type CoinTransactionRepository interface {
	ExistsByReference(ctx context.Context, referenceType string, referenceID int, transactionType string) (bool, error)
}

type postgresCoinTransactionRepository struct {
	db *sql.DB
}

func NewPostgresCoinTransactionRepository(db *sql.DB) CoinTransactionRepository {
	return &postgresCoinTransactionRepository{db: db}
}

func (r *postgresCoinTransactionRepository) ExistsByReference(ctx context.Context, referenceType string, referenceID int, transactionType string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM coin_transactions
			WHERE reference_type = $1 AND reference_id = $2 AND transaction_type = $3
		)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, referenceType, referenceID, transactionType).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check coin transaction existence: %w", err)
	}
	return exists, nil
}

// PostgresCoinLedger credits coins atomically: the ledger row and the wallet
// balance move in one transaction, so a partial credit can never be observed.
type PostgresCoinLedger struct {
	db *sql.DB
}

func NewPostgresCoinLedger(db *sql.DB) *PostgresCoinLedger {
	return &PostgresCoinLedger{db: db}
}

func (l *PostgresCoinLedger) Credit(ctx context.Context, userID, earnedAmount, premiumAmount int, transactionType, referenceType string, referenceID int, metadata map[string]any) error {
	var metadataRaw []byte
	if metadata != nil {
		var err error
		metadataRaw, err = json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("failed to encode coin transaction metadata: %w", err)
		}
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin ledger transaction: %w", err)
	}
	defer tx.Rollback()

	insert := `
		INSERT INTO coin_transactions (
			user_id, earned_amount, premium_amount, transaction_type,
			reference_type, reference_id, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	if _, err := tx.ExecContext(ctx, insert,
		userID, earnedAmount, premiumAmount, transactionType,
		referenceType, referenceID, metadataRaw,
	); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			if pqErr.Constraint == "coin_transactions_reference_user_key" {
				return ErrCoinTransactionConflict
			}
		}
		return fmt.Errorf("failed to append coin transaction: %w", err)
	}

	upsertWallet := `
		INSERT INTO coin_wallets (user_id, earned_balance, premium_balance)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET
			earned_balance = coin_wallets.earned_balance + EXCLUDED.earned_balance,
			premium_balance = coin_wallets.premium_balance + EXCLUDED.premium_balance`

	if _, err := tx.ExecContext(ctx, upsertWallet, userID, earnedAmount, premiumAmount); err != nil {
		return fmt.Errorf("failed to update coin wallet for user %d: %w", userID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit ledger transaction: %w", err)
	}
	return nil
}
