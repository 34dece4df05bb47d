package sink

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/galois26/tender-sync/internal/config"
)

// TxBeginner is satisfied by *pgxpool.Pool and pgxmock pools.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type Postgres struct {
	db   TxBeginner
	pool *pgxpool.Pool
	sb   sq.StatementBuilderType
}

// NewPool opens and pings a pgx pool.
func NewPool(ctx context.Context, cfg config.PostgresConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database DSN: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

func NewPostgres(ctx context.Context, cfg config.PostgresConfig) (*Postgres, error) {
	pool, err := NewPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	p := NewPostgresWith(pool)
	p.pool = pool
	return p, nil
}

// NewPostgresWith wraps an existing pool. Close does not close it.
func NewPostgresWith(db TxBeginner) *Postgres {
	return &Postgres{db: db, sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar)}
}

func (p *Postgres) Name() string { return "postgres" }

func pgList(v []string) (any, error) {
	if v == nil {
		v = []string{}
	}
	return v, nil
}

// Push upserts every record and the per-source sync bookkeeping in one
// transaction.
func (p *Postgres) Push(ctx context.Context, b Batch) error {
	stmts, err := upsertTenders(p.sb, b.Records, pgList, "now()")
	if err != nil {
		return err
	}
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := p.exec(ctx, tx, stmts, b); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("rollback failed: %w (original error: %v)", rbErr, err)
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (p *Postgres) exec(ctx context.Context, tx pgx.Tx, stmts []sq.InsertBuilder, b Batch) error {
	for _, ins := range stmts {
		q, args, err := ins.ToSql()
		if err != nil {
			return fmt.Errorf("build tenders upsert: %w", err)
		}
		if _, err := tx.Exec(ctx, q, args...); err != nil {
			return fmt.Errorf("upsert tenders: %w", err)
		}
	}
	if ins, ok := upsertSources(p.sb, b); ok {
		q, args, err := ins.ToSql()
		if err != nil {
			return fmt.Errorf("build tender_sources upsert: %w", err)
		}
		if _, err := tx.Exec(ctx, q, args...); err != nil {
			return fmt.Errorf("upsert tender_sources: %w", err)
		}
	}
	return nil
}

func (p *Postgres) Close() error {
	if p.pool != nil {
		p.pool.Close()
	}
	return nil
}
