package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store aggregates repositories backed by PostgreSQL.
type Store struct {
	pool *pgxpool.Pool

	Users        UserRepository
	Calendars    CalendarRepository
	Events       EventRepository
	AddressBooks AddressBookRepository
	Contacts     ContactRepository
}

// New wires concrete repository implementations with a shared connection pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{
		pool:         pool,
		Users:        &userRepo{pool: pool},
		Calendars:    &calendarRepo{pool: pool},
		Events:       &eventRepo{pool: pool},
		AddressBooks: &addressBookRepo{pool: pool},
		Contacts:     &contactRepo{pool: pool},
	}
}

// Pool exposes the underlying connection pool for components that need
// dedicated connections, such as the advisory locker.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// HealthCheck verifies that the underlying database is reachable.
func (s *Store) HealthCheck(ctx context.Context) error {
	defer observeDB(ctx, "db.healthcheck")()
	return s.pool.Ping(ctx)
}
