package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/appendiscan/backend/internal/metrics"
)

// Postgres stores each document as a JSONB row in a table named after the
// collection.
type Postgres struct {
	pool  *pgxpool.Pool
	table string
}

func ConnectPostgres(ctx context.Context, url, collection string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse db url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if collection == "" {
		collection = DefaultCollection
	}
	p := &Postgres{pool: pool, table: pgx.Identifier{collection}.Sanitize()}
	if err := p.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

func (p *Postgres) migrate(ctx context.Context) error {
	q := fmt.Sprintf(`create table if not exists %s (
	id         uuid primary key,
	data       jsonb not null,
	created_at timestamptz not null default now()
)`, p.table)
	if _, err := p.pool.Exec(ctx, q); err != nil {
		return fmt.Errorf("create table %s: %w", p.table, err)
	}
	return nil
}

func (p *Postgres) Add(ctx context.Context, doc Document) (string, error) {
	if len(doc) == 0 {
		return "", ErrEmptyDocument
	}
	defer metrics.ObserveUpstream("postgres")()

	js, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}

	id := uuid.NewString()
	q := fmt.Sprintf(`insert into %s (id, data) values ($1, $2)`, p.table)
	if _, err := p.pool.Exec(ctx, q, id, js); err != nil {
		return "", fmt.Errorf("insert into %s: %w", p.table, err)
	}
	return id, nil
}

func (p *Postgres) List(ctx context.Context) ([]Record, error) {
	defer metrics.ObserveUpstream("postgres")()

	q := fmt.Sprintf(`select id::text, data from %s order by created_at`, p.table)
	rows, err := p.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("select from %s: %w", p.table, err)
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Record, error) {
		var (
			id string
			js []byte
		)
		if err := row.Scan(&id, &js); err != nil {
			return Record{}, err
		}
		var doc Document
		if err := json.Unmarshal(js, &doc); err != nil {
			return Record{}, fmt.Errorf("decode document %s: %w", id, err)
		}
		return Record{ID: id, Data: doc}, nil
	})
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
