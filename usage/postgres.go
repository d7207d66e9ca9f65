package usage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// PostgresLedger implements Ledger on Postgres. The balance update is a
// single UPDATE with SQL-side arithmetic, never an application-layer
// read-modify-write, so concurrent charges cannot lose updates.
type PostgresLedger struct {
	db *sql.DB
}

// NewPostgresLedger opens a connection pool against dsn and ensures the schema
func NewPostgresLedger(ctx context.Context, dsn string) (*PostgresLedger, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping ledger database: %w", err)
	}

	schema := `CREATE TABLE IF NOT EXISTS usage_records (
		id UUID PRIMARY KEY,
		account_id TEXT NOT NULL,
		message_id TEXT NOT NULL,
		tokens_in INTEGER NOT NULL,
		tokens_out INTEGER NOT NULL,
		audio_seconds DOUBLE PRECISION NOT NULL,
		pages INTEGER NOT NULL,
		credits_charged DOUBLE PRECISION NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	);
	CREATE TABLE IF NOT EXISTS account_balances (
		account_id TEXT PRIMARY KEY,
		balance DOUBLE PRECISION NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_usage_records_account ON usage_records(account_id, created_at)`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("failed to create ledger tables: %w", err)
	}

	return &PostgresLedger{db: db}, nil
}

// Append implements Ledger
func (l *PostgresLedger) Append(ctx context.Context, record Record) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO usage_records
		 (id, account_id, message_id, tokens_in, tokens_out, audio_seconds, pages, credits_charged, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		record.ID, record.AccountID, record.MessageID, record.TokensIn, record.TokensOut,
		record.AudioSeconds, record.Pages, record.CreditsCharged, record.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert usage record: %w", err)
	}
	return nil
}

// IncrementBalance implements Ledger
func (l *PostgresLedger) IncrementBalance(ctx context.Context, accountID string, delta float64) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO account_balances (account_id, balance) VALUES ($1, $2)
		 ON CONFLICT (account_id) DO UPDATE SET balance = account_balances.balance + EXCLUDED.balance`,
		accountID, delta)
	if err != nil {
		return fmt.Errorf("failed to update balance for account %q: %w", accountID, err)
	}
	return nil
}

// Balance implements Ledger
func (l *PostgresLedger) Balance(ctx context.Context, accountID string) (float64, error) {
	var balance float64
	err := l.db.QueryRowContext(ctx,
		`SELECT balance FROM account_balances WHERE account_id = $1`, accountID).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read balance for account %q: %w", accountID, err)
	}
	return balance, nil
}

// Close closes the connection pool
func (l *PostgresLedger) Close() error {
	return l.db.Close()
}
