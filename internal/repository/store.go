package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"palmshell-dispatch/internal/ports/ordertx"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is the postgres unit-of-work runner.
type Store struct {
	db *pgxpool.Pool
}

// NewStore creates a new Store.
func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

var _ ordertx.Runner = (*Store)(nil)

// WithTx opens a transaction and executes fn within it.
func (s *Store) WithTx(ctx context.Context, fn func(tx ordertx.Repository) error) (err error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	// roll back on panic
	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				panic(fmt.Errorf("rollback after panic %v: %w", p, rbErr))
			}
			panic(p)
		}
	}()

	if err := fn(&TxRepo{q: tx}); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("rollback tx: %w (original error: %s)", rbErr, err.Error())
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// View executes fn against the pool without a transaction.
func (s *Store) View(ctx context.Context, fn func(q ordertx.Repository) error) error {
	return fn(&TxRepo{q: s.db})
}

// TxRepo implements ordertx.Repository on a transaction or the pool.
type TxRepo struct {
	q querier
}

var _ ordertx.Repository = (*TxRepo)(nil)
