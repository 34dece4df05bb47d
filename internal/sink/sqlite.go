package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"

	"github.com/galois26/tender-sync/internal/config"
)

// SQLite is a single-file store for local runs. The schema matches the
// Postgres one with list columns held as JSON text.
type SQLite struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

// NewSQLite opens path and applies migrations.
func NewSQLite(ctx context.Context, cfg config.SQLiteConfig) (*SQLite, error) {
	db, err := sql.Open("sqlite3", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", cfg.Path, err)
	}
	if err := MigrateSQLite(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLite{db: db, sb: sq.StatementBuilder.PlaceholderFormat(sq.Question)}, nil
}

func (s *SQLite) Name() string { return "sqlite" }

func jsonList(v []string) (any, error) {
	if v == nil {
		v = []string{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (s *SQLite) Push(ctx context.Context, b Batch) error {
	stmts, err := upsertTenders(s.sb, b.Records, jsonList, "CURRENT_TIMESTAMP")
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	for _, ins := range stmts {
		if _, err := ins.RunWith(tx).ExecContext(ctx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("upsert tenders: %w", err)
		}
	}
	if ins, ok := upsertSources(s.sb, b); ok {
		if _, err := ins.RunWith(tx).ExecContext(ctx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("upsert tender_sources: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *SQLite) DB() *sql.DB { return s.db }

func (s *SQLite) Close() error { return s.db.Close() }
