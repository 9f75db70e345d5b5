// Package pgstore implementa store.Store sobre Postgres: una tabla de
// documentos direccionados por path con datos JSONB, batches como
// transacciones y watches vía LISTEN/NOTIFY.
package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"fitlink/internal/store"
)

const notifyChannel = "fitlink_docs"

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	path       text PRIMARY KEY,
	collection text NOT NULL,
	data       jsonb NOT NULL,
	updated_at timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS documents_collection_idx ON documents (collection);
`

type docWatcher struct {
	path string
	fn   func(store.Snapshot, bool)
}

type colWatcher struct {
	collection string
	query      store.ListQuery
	fn         func([]store.Snapshot)
}

type Store struct {
	pool   *pgxpool.Pool
	logger *zap.Logger

	watchMu     sync.Mutex
	nextWatchID int
	docWatchers map[int]docWatcher
	colWatchers map[int]colWatcher

	listenOnce   sync.Once
	listenCancel context.CancelFunc
}

// NewPool construye el pool de conexiones con la configuración del servicio.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 1
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 30 * time.Second
	poolCfg.ConnConfig.ConnectTimeout = 5 * time.Second

	return pgxpool.NewWithConfig(ctx, poolCfg)
}

func New(pool *pgxpool.Pool, logger *zap.Logger) *Store {
	return &Store{
		pool:        pool,
		logger:      logger,
		docWatchers: make(map[int]docWatcher),
		colWatchers: make(map[int]colWatcher),
	}
}

// Migrate crea el esquema de documentos si no existe.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return err
}

func (s *Store) Close() {
	if s.listenCancel != nil {
		s.listenCancel()
	}
}

func (s *Store) Get(ctx context.Context, path string) (store.Snapshot, error) {
	if err := validDocPath(path); err != nil {
		return store.Snapshot{}, err
	}
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM documents WHERE path = $1`, path).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.Snapshot{}, store.ErrNotFound
	}
	if err != nil {
		return store.Snapshot{}, err
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return store.Snapshot{}, err
	}
	return store.Snapshot{Path: path, Data: data}, nil
}

func (s *Store) Set(ctx context.Context, path string, data map[string]any) error {
	return s.Apply(ctx, []store.Op{store.SetOp(path, data)})
}

func (s *Store) Merge(ctx context.Context, path string, data map[string]any) error {
	return s.Apply(ctx, []store.Op{store.MergeOp(path, data)})
}

func (s *Store) Delete(ctx context.Context, path string) error {
	return s.Apply(ctx, []store.Op{store.DeleteOp(path)})
}

func (s *Store) List(ctx context.Context, collection string, opts ...store.ListOption) ([]store.Snapshot, error) {
	if err := validCollectionPath(collection); err != nil {
		return nil, err
	}
	query := store.BuildQuery(opts)

	sql := `SELECT path, data FROM documents WHERE collection = $1`
	args := []any{collection}
	if len(query.Filters) > 0 {
		filter := make(map[string]any, len(query.Filters))
		for _, f := range query.Filters {
			filter[f.Field] = f.Value
		}
		raw, err := json.Marshal(filter)
		if err != nil {
			return nil, err
		}
		sql += ` AND data @> $2::jsonb`
		args = append(args, string(raw))
	}
	if query.OrderBy != "" {
		direction := "ASC"
		if query.Desc {
			direction = "DESC"
		}
		sql += fmt.Sprintf(` ORDER BY data->>$%d %s`, len(args)+1, direction)
		args = append(args, query.OrderBy)
	} else {
		sql += ` ORDER BY path`
	}

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snaps []store.Snapshot
	for rows.Next() {
		var path string
		var raw []byte
		if err := rows.Scan(&path, &raw); err != nil {
			return nil, err
		}
		var data map[string]any
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, err
		}
		snaps = append(snaps, store.Snapshot{Path: path, Data: data})
	}
	return snaps, rows.Err()
}

// Apply ejecuta el batch dentro de una transacción. Los timestamps de
// servidor se resuelven con el reloj de la base al inicio de la transacción.
func (s *Store) Apply(ctx context.Context, ops []store.Op) error {
	for _, op := range ops {
		if err := validDocPath(op.Path); err != nil {
			return err
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var now time.Time
	if err := tx.QueryRow(ctx, `SELECT now()`).Scan(&now); err != nil {
		return err
	}

	for _, op := range ops {
		switch op.Kind {
		case store.OpSet, store.OpMerge:
			data := op.Data
			if store.HasArrayTransforms(data) {
				existing, err := lockExisting(ctx, tx, op.Path)
				if err != nil {
					return err
				}
				if op.Kind == store.OpSet {
					existing = nil
				}
				data = store.ResolveArrayTransforms(existing, data)
			}
			raw, err := json.Marshal(resolveTimestamps(data, now))
			if err != nil {
				return err
			}
			merge := ""
			if op.Kind == store.OpMerge {
				merge = `documents.data || `
			}
			sql := `
				INSERT INTO documents (path, collection, data, updated_at)
				VALUES ($1, $2, $3::jsonb, now())
				ON CONFLICT (path)
				DO UPDATE SET data = ` + merge + `EXCLUDED.data, updated_at = now()
			`
			if _, err := tx.Exec(ctx, sql, op.Path, store.ParentCollection(op.Path), string(raw)); err != nil {
				return err
			}
		case store.OpDelete:
			if _, err := tx.Exec(ctx, `DELETE FROM documents WHERE path = $1`, op.Path); err != nil {
				return err
			}
		default:
			return fmt.Errorf("pgstore: unknown op kind %d", op.Kind)
		}
		if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, notifyChannel, op.Path); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (s *Store) WatchDoc(path string, fn func(store.Snapshot, bool)) (func(), error) {
	if err := validDocPath(path); err != nil {
		return nil, err
	}
	s.ensureListener()

	s.watchMu.Lock()
	s.nextWatchID++
	id := s.nextWatchID
	s.docWatchers[id] = docWatcher{path: path, fn: fn}
	s.watchMu.Unlock()

	s.fireDoc(path, fn)

	return func() {
		s.watchMu.Lock()
		delete(s.docWatchers, id)
		s.watchMu.Unlock()
	}, nil
}

func (s *Store) WatchCollection(collection string, fn func([]store.Snapshot), opts ...store.ListOption) (func(), error) {
	if err := validCollectionPath(collection); err != nil {
		return nil, err
	}
	s.ensureListener()
	query := store.BuildQuery(opts)

	s.watchMu.Lock()
	s.nextWatchID++
	id := s.nextWatchID
	s.colWatchers[id] = colWatcher{collection: collection, query: query, fn: fn}
	s.watchMu.Unlock()

	s.fireCollection(collection, query, fn)

	return func() {
		s.watchMu.Lock()
		delete(s.colWatchers, id)
		s.watchMu.Unlock()
	}, nil
}

// ensureListener arranca la goroutine LISTEN una sola vez.
func (s *Store) ensureListener() {
	s.listenOnce.Do(func() {
		ctx, cancel := context.WithCancel(context.Background())
		s.listenCancel = cancel
		go s.listenLoop(ctx)
	})
}

func (s *Store) listenLoop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := s.runListener(ctx); err != nil && ctx.Err() == nil {
			s.logger.Warn("pgstore listener reconnecting", zap.Error(err))
			time.Sleep(time.Second)
		}
	}
}

func (s *Store) runListener(ctx context.Context) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `LISTEN `+notifyChannel); err != nil {
		return err
	}
	for {
		notification, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		s.handleChange(notification.Payload)
	}
}

func (s *Store) handleChange(path string) {
	collection := store.ParentCollection(path)

	s.watchMu.Lock()
	docs := make([]docWatcher, 0)
	for _, w := range s.docWatchers {
		if w.path == path {
			docs = append(docs, w)
		}
	}
	cols := make([]colWatcher, 0)
	for _, w := range s.colWatchers {
		if w.collection == collection {
			cols = append(cols, w)
		}
	}
	s.watchMu.Unlock()

	for _, w := range docs {
		s.fireDoc(w.path, w.fn)
	}
	for _, w := range cols {
		s.fireCollection(w.collection, w.query, w.fn)
	}
}

func (s *Store) fireDoc(path string, fn func(store.Snapshot, bool)) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	snap, err := s.Get(ctx, path)
	if errors.Is(err, store.ErrNotFound) {
		fn(store.Snapshot{Path: path}, false)
		return
	}
	if err != nil {
		s.logger.Warn("pgstore watch read failed", zap.String("path", path), zap.Error(err))
		return
	}
	fn(snap, true)
}

func (s *Store) fireCollection(collection string, query store.ListQuery, fn func([]store.Snapshot)) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	opts := optionsFromQuery(query)
	snaps, err := s.List(ctx, collection, opts...)
	if err != nil {
		s.logger.Warn("pgstore watch list failed", zap.String("collection", collection), zap.Error(err))
		return
	}
	fn(snaps)
}

func optionsFromQuery(q store.ListQuery) []store.ListOption {
	var opts []store.ListOption
	for _, f := range q.Filters {
		opts = append(opts, store.Where(f.Field, f.Value))
	}
	if q.OrderBy != "" {
		if q.Desc {
			opts = append(opts, store.OrderByDesc(q.OrderBy))
		} else {
			opts = append(opts, store.OrderByAsc(q.OrderBy))
		}
	}
	return opts
}

// lockExisting lee y bloquea la fila del documento dentro de la transacción
// para resolver transformaciones de arreglo sin perder updates concurrentes.
func lockExisting(ctx context.Context, tx pgx.Tx, path string) (map[string]any, error) {
	var raw []byte
	err := tx.QueryRow(ctx, `SELECT data FROM documents WHERE path = $1 FOR UPDATE`, path).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	return data, nil
}

func resolveTimestamps(data map[string]any, now time.Time) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		if v == store.ServerTimestamp {
			out[k] = now.UTC().Format(store.TimestampLayout)
			continue
		}
		out[k] = v
	}
	return out
}

func validDocPath(path string) error {
	segments := strings.Split(path, "/")
	_, err := store.DocPath(segments...)
	return err
}

func validCollectionPath(path string) error {
	segments := strings.Split(path, "/")
	_, err := store.CollectionPath(segments...)
	return err
}
