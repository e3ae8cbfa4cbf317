package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/md-rashed-zaman/availmgr/libs/db"
)

var (
	ErrNotFound  = errors.New("storage: not found")
	ErrDuplicate = errors.New("storage: duplicate")
)

// Store is the Postgres implementation of every repository the service uses.
// Methods run inside the transaction carried on ctx when there is one.
type Store struct {
	pool   *db.Pool
	logger *slog.Logger
}

func NewStore(pool *db.Pool, logger *slog.Logger) *Store {
	return &Store{pool: pool, logger: logger}
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.pool.InTx(ctx, fn)
}

func (s *Store) conn(ctx context.Context) db.Querier {
	return s.pool.Conn(ctx)
}

// IsUniqueViolation reports a unique constraint failure from either backend.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return errors.Is(err, ErrDuplicate)
}

// IsConflict reports a serialization or lock failure worth retrying.
func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "40001", "40P01", "55P03":
		return true
	}
	return false
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// mapErr folds driver errors into the package sentinels.
func mapErr(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	case IsUniqueViolation(err):
		return fmt.Errorf("%s: %w: %w", what, ErrDuplicate, err)
	default:
		return err
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}
