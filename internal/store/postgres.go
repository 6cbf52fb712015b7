package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coder/quartz"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/lox/downforce/internal/game"
	"github.com/lox/downforce/internal/protocol"
)

// PostgresStore keeps rooms in the rooms table created by the migrations
// package. Expiry is evaluated against the store's clock so expired rows
// are invisible before Sweep deletes them.
type PostgresStore struct {
	pool   *pgxpool.Pool
	clock  quartz.Clock
	logger zerolog.Logger
}

// NewPostgresStore connects to connString and pings the database.
func NewPostgresStore(ctx context.Context, connString string, clock quartz.Clock, logger zerolog.Logger) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &PostgresStore{
		pool:   pool,
		clock:  clock,
		logger: logger.With().Str("component", "postgres_store").Logger(),
	}, nil
}

func (p *PostgresStore) Get(ctx context.Context, code string) (*game.State, error) {
	var (
		data     []byte
		revision int64
	)
	err := p.pool.QueryRow(ctx,
		`SELECT state, revision FROM rooms WHERE code = $1 AND expires_at > $2`,
		code, p.clock.Now(),
	).Scan(&data, &revision)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, code)
		}
		return nil, fmt.Errorf("get room %s: %w", code, err)
	}

	s, err := protocol.UnmarshalState(data)
	if err != nil {
		return nil, fmt.Errorf("decode room %s: %w", code, err)
	}
	s.Revision = uint64(revision)
	return s, nil
}

// Create inserts the room. An expired row holding the same code is
// overwritten in place.
func (p *PostgresStore) Create(ctx context.Context, code string, s *game.State, ttl time.Duration) error {
	data, err := encodeAt(s, 1)
	if err != nil {
		return err
	}
	now := p.clock.Now()
	tag, err := p.pool.Exec(ctx,
		`INSERT INTO rooms (code, state, revision, created_at, expires_at)
		 VALUES ($1, $2, 1, $3, $4)
		 ON CONFLICT (code) DO UPDATE
		   SET state = EXCLUDED.state, revision = 1,
		       created_at = EXCLUDED.created_at, expires_at = EXCLUDED.expires_at
		   WHERE rooms.expires_at <= $3`,
		code, data, now, now.Add(ttlOrDefault(ttl)),
	)
	if err != nil {
		return fmt.Errorf("create room %s: %w", code, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrExists, code)
	}
	s.Revision = 1
	return nil
}

func (p *PostgresStore) Update(ctx context.Context, code string, s *game.State, ttl time.Duration) error {
	next := s.Revision + 1
	data, err := encodeAt(s, next)
	if err != nil {
		return err
	}
	now := p.clock.Now()
	tag, err := p.pool.Exec(ctx,
		`UPDATE rooms SET state = $1, revision = $2, expires_at = $3
		 WHERE code = $4 AND revision = $5 AND expires_at > $6`,
		data, int64(next), now.Add(ttlOrDefault(ttl)), code, int64(s.Revision), now,
	)
	if err != nil {
		return fmt.Errorf("update room %s: %w", code, err)
	}
	if tag.RowsAffected() == 0 {
		exists, err := p.Exists(ctx, code)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: %s", ErrNotFound, code)
		}
		return fmt.Errorf("%w: %s at revision %d", ErrConflict, code, s.Revision)
	}
	s.Revision = next
	return nil
}

func (p *PostgresStore) Delete(ctx context.Context, code string) error {
	if _, err := p.pool.Exec(ctx, `DELETE FROM rooms WHERE code = $1`, code); err != nil {
		return fmt.Errorf("delete room %s: %w", code, err)
	}
	return nil
}

func (p *PostgresStore) DeleteAt(ctx context.Context, code string, revision uint64) error {
	tag, err := p.pool.Exec(ctx,
		`DELETE FROM rooms WHERE code = $1 AND revision = $2 AND expires_at > $3`,
		code, int64(revision), p.clock.Now(),
	)
	if err != nil {
		return fmt.Errorf("delete room %s: %w", code, err)
	}
	if tag.RowsAffected() == 0 {
		exists, err := p.Exists(ctx, code)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: %s", ErrNotFound, code)
		}
		return fmt.Errorf("%w: %s at revision %d", ErrConflict, code, revision)
	}
	return nil
}

func (p *PostgresStore) Exists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := p.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM rooms WHERE code = $1 AND expires_at > $2)`,
		code, p.clock.Now(),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check room %s: %w", code, err)
	}
	return exists, nil
}

func (p *PostgresStore) Sweep(ctx context.Context) (int, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM rooms WHERE expires_at <= $1`, p.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("sweep rooms: %w", err)
	}
	removed := int(tag.RowsAffected())
	if removed > 0 {
		p.logger.Debug().Int("removed", removed).Msg("Swept expired rooms")
	}
	return removed, nil
}

func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}

func encodeAt(s *game.State, revision uint64) ([]byte, error) {
	c := s.Clone()
	c.Revision = revision
	data, err := protocol.MarshalState(c)
	if err != nil {
		return nil, fmt.Errorf("encode room %s: %w", s.Code, err)
	}
	return data, nil
}

func ttlOrDefault(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return DefaultTTL
	}
	return ttl
}
