// Package memstore implementa store.Store en memoria: backend por defecto
// para desarrollo local y columna vertebral de los tests. Soporta watches,
// batches atómicos y timestamps de servidor.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"fitlink/internal/store"
)

type docWatcher struct {
	id   int
	path string
	fn   func(store.Snapshot, bool)
}

type colWatcher struct {
	id         int
	collection string
	query      store.ListQuery
	fn         func([]store.Snapshot)
}

// Store guarda documentos por path completo y despacha notificaciones en el
// orden en que se aplican las escrituras.
type Store struct {
	mu   sync.RWMutex
	docs map[string]map[string]any

	watchMu     sync.Mutex
	nextWatchID int
	docWatchers map[int]docWatcher
	colWatchers map[int]colWatcher

	// dispatchMu serializa los callbacks para que cada suscriptor vea los
	// snapshots en orden de entrega.
	dispatchMu sync.Mutex

	now func() time.Time
}

func New() *Store {
	return &Store{
		docs:        make(map[string]map[string]any),
		docWatchers: make(map[int]docWatcher),
		colWatchers: make(map[int]colWatcher),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) Get(_ context.Context, path string) (store.Snapshot, error) {
	if err := validDocPath(path); err != nil {
		return store.Snapshot{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.docs[path]
	if !ok {
		return store.Snapshot{}, store.ErrNotFound
	}
	return store.Snapshot{Path: path, Data: copyMap(data)}, nil
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

func (s *Store) List(_ context.Context, collection string, opts ...store.ListOption) ([]store.Snapshot, error) {
	if err := validCollectionPath(collection); err != nil {
		return nil, err
	}
	query := store.BuildQuery(opts)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listLocked(collection, query), nil
}

// Apply ejecuta el batch completo bajo un solo lock: o entra todo o nada.
func (s *Store) Apply(_ context.Context, ops []store.Op) error {
	for _, op := range ops {
		if err := validDocPath(op.Path); err != nil {
			return err
		}
	}

	now := s.now()
	changed := make([]string, 0, len(ops))

	s.mu.Lock()
	for _, op := range ops {
		switch op.Kind {
		case store.OpSet:
			// Un set reemplaza el documento: las transformaciones de
			// arreglo se resuelven contra un documento vacío.
			data := store.ResolveArrayTransforms(nil, copyMap(op.Data))
			s.docs[op.Path] = resolveTimestamps(data, now)
		case store.OpMerge:
			existing, ok := s.docs[op.Path]
			if !ok {
				existing = make(map[string]any)
			}
			data := store.ResolveArrayTransforms(existing, copyMap(op.Data))
			for k, v := range resolveTimestamps(data, now) {
				existing[k] = v
			}
			s.docs[op.Path] = existing
		case store.OpDelete:
			delete(s.docs, op.Path)
		default:
			s.mu.Unlock()
			return fmt.Errorf("memstore: unknown op kind %d", op.Kind)
		}
		changed = append(changed, op.Path)
	}
	s.mu.Unlock()

	s.notify(changed)
	return nil
}

func (s *Store) WatchDoc(path string, fn func(store.Snapshot, bool)) (func(), error) {
	if err := validDocPath(path); err != nil {
		return nil, err
	}

	s.watchMu.Lock()
	s.nextWatchID++
	id := s.nextWatchID
	s.docWatchers[id] = docWatcher{id: id, path: path, fn: fn}
	s.watchMu.Unlock()

	// Replay inicial del estado actual.
	snap, exists := s.currentDoc(path)
	s.dispatch(func() { fn(snap, exists) })

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
	query := store.BuildQuery(opts)

	s.watchMu.Lock()
	s.nextWatchID++
	id := s.nextWatchID
	s.colWatchers[id] = colWatcher{id: id, collection: collection, query: query, fn: fn}
	s.watchMu.Unlock()

	s.mu.RLock()
	snaps := s.listLocked(collection, query)
	s.mu.RUnlock()
	s.dispatch(func() { fn(snaps) })

	return func() {
		s.watchMu.Lock()
		delete(s.colWatchers, id)
		s.watchMu.Unlock()
	}, nil
}

func (s *Store) currentDoc(path string) (store.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.docs[path]
	if !ok {
		return store.Snapshot{Path: path}, false
	}
	return store.Snapshot{Path: path, Data: copyMap(data)}, true
}

func (s *Store) listLocked(collection string, query store.ListQuery) []store.Snapshot {
	prefix := collection + "/"
	var snaps []store.Snapshot
	for path, data := range s.docs {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		if strings.ContainsRune(path[len(prefix):], '/') {
			continue
		}
		if !matches(data, query.Filters) {
			continue
		}
		snaps = append(snaps, store.Snapshot{Path: path, Data: copyMap(data)})
	}

	sort.SliceStable(snaps, func(i, j int) bool {
		if query.OrderBy != "" {
			less, ok := lessByField(snaps[i].Data, snaps[j].Data, query.OrderBy)
			if ok {
				if query.Desc {
					return !less
				}
				return less
			}
		}
		return snaps[i].Path < snaps[j].Path
	})
	return snaps
}

// notify entrega snapshots completos a cada suscriptor afectado por los paths
// cambiados, en el orden de aplicación de la escritura.
func (s *Store) notify(changedPaths []string) {
	s.watchMu.Lock()
	docWatchers := make([]docWatcher, 0, len(s.docWatchers))
	for _, w := range s.docWatchers {
		docWatchers = append(docWatchers, w)
	}
	colWatchers := make([]colWatcher, 0, len(s.colWatchers))
	for _, w := range s.colWatchers {
		colWatchers = append(colWatchers, w)
	}
	s.watchMu.Unlock()

	changedSet := make(map[string]bool, len(changedPaths))
	changedCols := make(map[string]bool, len(changedPaths))
	for _, p := range changedPaths {
		changedSet[p] = true
		changedCols[store.ParentCollection(p)] = true
	}

	for _, w := range docWatchers {
		if !changedSet[w.path] {
			continue
		}
		snap, exists := s.currentDoc(w.path)
		fn := w.fn
		s.dispatch(func() { fn(snap, exists) })
	}
	for _, w := range colWatchers {
		if !changedCols[w.collection] {
			continue
		}
		s.mu.RLock()
		snaps := s.listLocked(w.collection, w.query)
		s.mu.RUnlock()
		fn := w.fn
		s.dispatch(func() { fn(snaps) })
	}
}

func (s *Store) dispatch(fn func()) {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()
	fn()
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

func matches(data map[string]any, filters []store.Filter) bool {
	for _, f := range filters {
		if !equalValues(data[f.Field], f.Value) {
			return false
		}
	}
	return true
}

func equalValues(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a == b {
		return true
	}
	// Los números llegan como float64 tras pasar por JSON; normaliza el resto
	// por representación.
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func lessByField(a, b map[string]any, field string) (less, ok bool) {
	av, aok := a[field]
	bv, bok := b[field]
	if !aok || !bok {
		// Documentos sin el campo van al final.
		if aok != bok {
			return aok, true
		}
		return false, false
	}
	switch x := av.(type) {
	case string:
		if y, yok := bv.(string); yok {
			return x < y, true
		}
	case float64:
		if y, yok := bv.(float64); yok {
			return x < y, true
		}
	}
	return fmt.Sprint(av) < fmt.Sprint(bv), true
}

func resolveTimestamps(data map[string]any, now time.Time) map[string]any {
	for k, v := range data {
		if v == store.ServerTimestamp {
			data[k] = now.UTC().Format(store.TimestampLayout)
		}
	}
	return data
}

func copyMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return copyMap(x)
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = copyValue(item)
		}
		return out
	case []string:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = item
		}
		return out
	default:
		return v
	}
}
