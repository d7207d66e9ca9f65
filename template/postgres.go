package template

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
)

// PostgresStore resolves templates from a Postgres table. Structured columns
// (contract, retrieval config, rules, macros) are stored as JSONB.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection pool against dsn and ensures the schema
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open template database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping template database: %w", err)
	}

	schema := `CREATE TABLE IF NOT EXISTS templates (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		generation_instructions TEXT NOT NULL,
		output_contract JSONB NOT NULL DEFAULT '{}',
		retrieval JSONB,
		rules JSONB,
		macros JSONB
	)`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("failed to create templates table: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// Resolve implements Store
func (s *PostgresStore) Resolve(ctx context.Context, id string) (*Template, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, generation_instructions, output_contract, retrieval, rules, macros
		 FROM templates WHERE id = $1`, id)

	var t Template
	var contractJSON []byte
	var retrievalJSON, rulesJSON, macrosJSON sql.NullString
	err := row.Scan(&t.ID, &t.Name, &t.GenerationInstructions, &contractJSON, &retrievalJSON, &rulesJSON, &macrosJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("template %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve template %q: %w", id, err)
	}

	if err := json.Unmarshal(contractJSON, &t.OutputContract); err != nil {
		return nil, fmt.Errorf("failed to parse output contract for template %q: %w", id, err)
	}
	if retrievalJSON.Valid {
		var rc RetrievalConfig
		if err := json.Unmarshal([]byte(retrievalJSON.String), &rc); err != nil {
			return nil, fmt.Errorf("failed to parse retrieval config for template %q: %w", id, err)
		}
		t.Retrieval = &rc
	}
	if rulesJSON.Valid {
		if err := json.Unmarshal([]byte(rulesJSON.String), &t.Rules); err != nil {
			return nil, fmt.Errorf("failed to parse rules for template %q: %w", id, err)
		}
	}
	if macrosJSON.Valid {
		if err := json.Unmarshal([]byte(macrosJSON.String), &t.Macros); err != nil {
			return nil, fmt.Errorf("failed to parse macros for template %q: %w", id, err)
		}
	}

	return &t, nil
}

// Close closes the connection pool
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
