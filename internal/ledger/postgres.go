package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/photo-relay/shared/postgresql"
	"github.com/jmoiron/sqlx"
)

// PostgresLedger keeps balances in a credit_accounts table so they survive
// a restart. Atomicity per user comes from the conditional UPDATE: a debit
// only applies when the row still covers it.
//
// Schema:
//
//	CREATE TABLE credit_accounts (
//	    user_id    TEXT PRIMARY KEY,
//	    balance    INTEGER NOT NULL DEFAULT 0 CHECK (balance >= 0),
//	    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
//	);
type PostgresLedger struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewPostgresLedger creates a Ledger backed by PostgreSQL.
func NewPostgresLedger(pg *postgresql.Client, logger *slog.Logger) *PostgresLedger {
	return &PostgresLedger{
		db:     pg.GetDB(),
		logger: logger,
	}
}

func (l *PostgresLedger) Debit(ctx context.Context, userID string, n int) error {
	query := `
		UPDATE credit_accounts
		SET balance = balance - $1,
		    updated_at = NOW()
		WHERE user_id = $2
		  AND balance >= $1
	`

	result, err := l.db.ExecContext(ctx, query, n, userID)
	if err != nil {
		return fmt.Errorf("failed to debit credits: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrInsufficientCredits
	}

	l.logger.Debug("Credits debited",
		slog.String("user_id", userID),
		slog.Int("amount", n),
	)

	return nil
}

func (l *PostgresLedger) Credit(ctx context.Context, userID string, n int) (int, error) {
	query := `
		INSERT INTO credit_accounts (user_id, balance, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id)
		DO UPDATE SET balance = credit_accounts.balance + $2, updated_at = NOW()
		RETURNING balance
	`

	var balance int
	if err := l.db.QueryRowContext(ctx, query, userID, n).Scan(&balance); err != nil {
		return 0, fmt.Errorf("failed to credit account: %w", err)
	}

	l.logger.Debug("Credits added",
		slog.String("user_id", userID),
		slog.Int("amount", n),
		slog.Int("balance", balance),
	)

	return balance, nil
}

func (l *PostgresLedger) Balance(ctx context.Context, userID string) (int, error) {
	var balance int
	query := `SELECT balance FROM credit_accounts WHERE user_id = $1`

	err := l.db.GetContext(ctx, &balance, query, userID)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}

	return balance, nil
}
