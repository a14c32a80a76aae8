package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"budget-bubble-backend/internal/common/logger"
	"budget-bubble-backend/internal/features/document/models"
	"budget-bubble-backend/internal/features/document/repository"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store keeps one JSONB row per document. Writes NOTIFY the document id on
// "<table>_changes" inside the writing transaction.
type Store struct {
	pool    *pgxpool.Pool
	table   string
	channel string
	hub     *repository.Hub

	mu      sync.Mutex
	started bool
	stop    context.CancelFunc
	done    chan struct{}

	listenerPID atomic.Uint32
}

func NewStore(pool *pgxpool.Pool, table string) *Store {
	return &Store{
		pool:    pool,
		table:   table,
		channel: table + "_changes",
		hub:     repository.NewHub(),
	}
}

var _ repository.DocumentStore = (*Store)(nil)

func (s *Store) ident() string {
	return pgx.Identifier{s.table}.Sanitize()
}

// EnsureSchema creates the documents table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	q := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id TEXT PRIMARY KEY,
		doc JSONB NOT NULL DEFAULT '{}'::jsonb,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`, s.ident())
	if _, err := s.pool.Exec(ctx, q); err != nil {
		return fmt.Errorf("create %s: %w", s.table, err)
	}
	return nil
}

const (
	listenRetryMin = 100 * time.Millisecond
	listenRetryMax = 5 * time.Second
)

// Start holds one pooled connection in LISTEN mode for all subscriptions.
// A lost listener connection is re-established with backoff, after which
// every subscription reloads.
func (s *Store) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}

	conn, err := s.listen(ctx)
	if err != nil {
		return err
	}

	listenCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	s.stop = stop
	s.done = make(chan struct{})
	s.started = true

	go s.run(listenCtx, conn)

	logger.Info().Str("channel", s.channel).Msg("Postgres document listener started")
	return nil
}

func (s *Store) listen(ctx context.Context) (*pgxpool.Conn, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire listener connection: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{s.channel}.Sanitize()); err != nil {
		conn.Release()
		return nil, fmt.Errorf("listen %s: %w", s.channel, err)
	}
	s.listenerPID.Store(conn.Conn().PgConn().PID())
	return conn, nil
}

func (s *Store) run(ctx context.Context, conn *pgxpool.Conn) {
	defer close(s.done)
	for {
		err := s.receive(ctx, conn)
		if ctx.Err() != nil {
			return
		}
		logger.Error().Err(err).Str("channel", s.channel).Msg("Postgres document listener lost its connection")

		conn = s.reconnect(ctx)
		if conn == nil {
			return
		}
		logger.Info().Str("channel", s.channel).Msg("Postgres document listener reconnected")
		s.hub.NotifyAll()
	}
}

// receive forwards notifications until the connection fails or ctx ends,
// then gives the connection back.
func (s *Store) receive(ctx context.Context, conn *pgxpool.Conn) error {
	defer func() {
		pg := conn.Conn()
		if ctx.Err() == nil {
			_ = pg.Close(context.Background())
		} else if !pg.IsClosed() {
			_, _ = conn.Exec(context.Background(), "UNLISTEN *")
		}
		conn.Release()
	}()

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		s.hub.Notify(n.Payload)
	}
}

// reconnect retries listen until it succeeds or ctx ends.
func (s *Store) reconnect(ctx context.Context) *pgxpool.Conn {
	s.listenerPID.Store(0)
	wait := listenRetryMin
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}

		conn, err := s.listen(ctx)
		if err == nil {
			return conn
		}
		if ctx.Err() != nil {
			return nil
		}
		logger.Warn().Err(err).Dur("retry_in", wait).Msg("Postgres document listener reconnect failed")
		wait = min(wait*2, listenRetryMax)
	}
}

func (s *Store) Close() {
	s.hub.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	s.stop()
	<-s.done
	s.started = false
}

func (s *Store) Get(ctx context.Context, id string) (*models.Document, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, fmt.Sprintf(`SELECT doc FROM %s WHERE id = $1`, s.ident()), id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document %s: %w", id, err)
	}

	fields := models.Fields{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", id, err)
	}
	return &models.Document{ID: id, Fields: fields, Exists: true}, nil
}

func (s *Store) Set(ctx context.Context, id string, fields models.Fields) error {
	patch, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode patch: %w", err)
	}

	q := fmt.Sprintf(`INSERT INTO %[1]s (id, doc) VALUES ($1, $2::jsonb)
		ON CONFLICT (id) DO UPDATE SET doc = %[1]s.doc || EXCLUDED.doc, updated_at = now()`, s.ident())

	return s.writeAndNotify(ctx, id, q, id, string(patch))
}

func (s *Store) UpdateArray(ctx context.Context, id, field string, op models.ArrayOp, value json.RawMessage) error {
	if !json.Valid(value) {
		return fmt.Errorf("invalid array value for %s", field)
	}

	var q string
	switch op {
	case models.ArrayUnion:
		q = fmt.Sprintf(`INSERT INTO %[1]s (id, doc) VALUES ($1, jsonb_build_object($2::text, jsonb_build_array($3::jsonb)))
			ON CONFLICT (id) DO UPDATE SET doc = jsonb_set(%[1]s.doc, ARRAY[$2::text],
				CASE
					WHEN jsonb_typeof(%[1]s.doc -> $2::text) <> 'array' OR %[1]s.doc -> $2::text IS NULL
						THEN jsonb_build_array($3::jsonb)
					WHEN (%[1]s.doc -> $2::text) @> jsonb_build_array($3::jsonb)
						THEN %[1]s.doc -> $2::text
					ELSE (%[1]s.doc -> $2::text) || jsonb_build_array($3::jsonb)
				END), updated_at = now()`, s.ident())
	case models.ArrayDifference:
		q = fmt.Sprintf(`INSERT INTO %[1]s (id, doc) VALUES ($1, jsonb_build_object($2::text, '[]'::jsonb))
			ON CONFLICT (id) DO UPDATE SET doc = jsonb_set(%[1]s.doc, ARRAY[$2::text],
				COALESCE((
					SELECT jsonb_agg(e)
					FROM jsonb_array_elements(
						CASE WHEN jsonb_typeof(%[1]s.doc -> $2::text) = 'array' THEN %[1]s.doc -> $2::text ELSE '[]'::jsonb END
					) AS e
					WHERE e <> $3::jsonb
				), '[]'::jsonb)), updated_at = now()`, s.ident())
	default:
		return fmt.Errorf("unknown array op %q", op)
	}

	return s.writeAndNotify(ctx, id, q, id, field, string(value))
}

func (s *Store) Subscribe(ctx context.Context, id string, fn models.SnapshotFunc) (models.CancelFunc, error) {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		return nil, errors.New("postgres document store not started")
	}

	return s.hub.Attach(ctx, id, repository.LoadOrAbsent(id, s.Get), fn, func(err error) {
		logger.Warn().Err(err).Str("document_id", id).Msg("Failed to reload subscribed document")
	})
}

func (s *Store) writeAndNotify(ctx context.Context, id, query string, args ...any) error {
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, query, args...); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, s.channel, id)
		return err
	})
	if err != nil {
		return fmt.Errorf("write document %s: %w", id, err)
	}
	return nil
}
