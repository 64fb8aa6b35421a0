package postgres

import (
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the Postgres-backed persistence layer shared by all workers. The
// database serializes conflicting writes; the store adds no locking of its
// own, so concurrent status updates to the same row are last-write-wins.
type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}
