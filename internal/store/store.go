// Package store define la capacidad de documento jerárquico que consume el
// resto del servicio: lecturas puntuales, merges, colecciones con filtros,
// batches atómicos, suscripciones en vivo y timestamps del servidor.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

var (
	ErrNotFound    = errors.New("document not found")
	ErrInvalidPath = errors.New("invalid document path")
)

// serverTimestamp es el valor centinela que los backends reemplazan por su
// reloj al momento de escribir.
type serverTimestamp struct{}

// ServerTimestamp marca un campo para que el backend lo estampe al escribir.
var ServerTimestamp = serverTimestamp{}

// TimestampLayout es el formato con el que los backends resuelven
// ServerTimestamp. Los nanosegundos van con ancho fijo: en UTC el orden
// lexicográfico de estos strings coincide con el orden temporal, así los
// backends pueden ordenar por el valor crudo sin parsearlo.
const TimestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// arrayUnion y arrayRemove son transformaciones de arreglo dentro de un Set
// o Merge. El backend las resuelve contra el documento existente bajo su
// garantía de atomicidad; un read-then-write en el caller perdería updates
// entre escritores concurrentes.
type arrayUnion struct{ items []string }

type arrayRemove struct{ items []string }

// ArrayUnion agrega los items que falten al arreglo del campo, preservando
// el orden existente. Idempotente.
func ArrayUnion(items ...string) any { return arrayUnion{items: items} }

// ArrayRemove quita todas las apariciones de los items del arreglo del campo.
func ArrayRemove(items ...string) any { return arrayRemove{items: items} }

// HasArrayTransforms reporta si data contiene transformaciones de arreglo
// pendientes de resolver.
func HasArrayTransforms(data map[string]any) bool {
	for _, v := range data {
		switch v.(type) {
		case arrayUnion, arrayRemove:
			return true
		}
	}
	return false
}

// ResolveArrayTransforms devuelve una copia de data con cada transformación
// reemplazada por el arreglo resultante contra existing (nil cuenta como
// documento vacío). Los valores que no son transformaciones pasan tal cual.
func ResolveArrayTransforms(existing, data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		switch t := v.(type) {
		case arrayUnion:
			current := stringSlice(existing[k])
			for _, item := range t.items {
				if !containsString(current, item) {
					current = append(current, item)
				}
			}
			out[k] = anySlice(current)
		case arrayRemove:
			kept := make([]string, 0)
			for _, item := range stringSlice(existing[k]) {
				if !containsString(t.items, item) {
					kept = append(kept, item)
				}
			}
			out[k] = anySlice(kept)
		default:
			out[k] = v
		}
	}
	return out
}

func stringSlice(v any) []string {
	switch x := v.(type) {
	case []string:
		return append([]string(nil), x...)
	case []any:
		out := make([]string, 0, len(x))
		for _, item := range x {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func anySlice(items []string) []any {
	out := make([]any, len(items))
	for i, item := range items {
		out[i] = item
	}
	return out
}

func containsString(list []string, item string) bool {
	for _, existing := range list {
		if existing == item {
			return true
		}
	}
	return false
}

// Snapshot es el estado de un documento al momento de leerlo.
type Snapshot struct {
	Path string
	Data map[string]any
}

// ID devuelve el último segmento del path (el id del documento).
func (s Snapshot) ID() string {
	idx := strings.LastIndexByte(s.Path, '/')
	if idx < 0 {
		return s.Path
	}
	return s.Path[idx+1:]
}

// Decode vuelca los datos del documento sobre v vía JSON.
func (s Snapshot) Decode(v any) error {
	raw, err := json.Marshal(s.Data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

// Encode convierte un valor de dominio en el mapa que persiste el store.
func Encode(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	return data, nil
}

// ListOption configura filtros y orden de List y WatchCollection.
type ListOption func(*ListQuery)

// ListQuery es la consulta acumulada por las opciones.
type ListQuery struct {
	Filters []Filter
	OrderBy string
	Desc    bool
}

// Filter es una condición de igualdad sobre un campo plano.
type Filter struct {
	Field string
	Value any
}

// Where agrega un filtro de igualdad.
func Where(field string, value any) ListOption {
	return func(q *ListQuery) {
		q.Filters = append(q.Filters, Filter{Field: field, Value: value})
	}
}

// OrderByAsc ordena por un campo ascendente.
func OrderByAsc(field string) ListOption {
	return func(q *ListQuery) {
		q.OrderBy = field
		q.Desc = false
	}
}

// OrderByDesc ordena por un campo descendente.
func OrderByDesc(field string) ListOption {
	return func(q *ListQuery) {
		q.OrderBy = field
		q.Desc = true
	}
}

// BuildQuery aplica las opciones; lo usan los backends.
func BuildQuery(opts []ListOption) ListQuery {
	var q ListQuery
	for _, opt := range opts {
		opt(&q)
	}
	return q
}

// OpKind discrimina las operaciones de un batch.
type OpKind int

const (
	OpSet OpKind = iota
	OpMerge
	OpDelete
)

// Op es una operación dentro de un batch atómico.
type Op struct {
	Kind OpKind
	Path string
	Data map[string]any
}

func SetOp(path string, data map[string]any) Op {
	return Op{Kind: OpSet, Path: path, Data: data}
}

func MergeOp(path string, data map[string]any) Op {
	return Op{Kind: OpMerge, Path: path, Data: data}
}

func DeleteOp(path string) Op {
	return Op{Kind: OpDelete, Path: path}
}

// Store es la capacidad de documento que implementan memstore y pgstore.
// Las suscripciones reejecutan el resultado completo en cada cambio; cada
// callback es un snapshot de estado, nunca un delta.
type Store interface {
	// Get lee un documento; ErrNotFound si no existe.
	Get(ctx context.Context, path string) (Snapshot, error)
	// Set sobreescribe el documento completo (upsert).
	Set(ctx context.Context, path string, data map[string]any) error
	// Merge aplica solo los campos dados, creando el documento si falta.
	Merge(ctx context.Context, path string, data map[string]any) error
	// Delete borra el documento; borrar uno inexistente no es error.
	Delete(ctx context.Context, path string) error
	// List devuelve los documentos de una colección según filtros y orden.
	List(ctx context.Context, collection string, opts ...ListOption) ([]Snapshot, error)
	// Apply ejecuta un batch de escrituras de forma atómica.
	Apply(ctx context.Context, ops []Op) error
	// WatchDoc entrega el documento actual y cada cambio posterior. El bool
	// indica existencia. Devuelve la función para liberar la suscripción.
	WatchDoc(path string, fn func(Snapshot, bool)) (func(), error)
	// WatchCollection entrega el resultado completo actual y en cada cambio.
	WatchCollection(collection string, fn func([]Snapshot), opts ...ListOption) (func(), error)
}

// DocPath valida y une segmentos en un path de documento (cantidad par).
func DocPath(segments ...string) (string, error) {
	if len(segments) == 0 || len(segments)%2 != 0 {
		return "", ErrInvalidPath
	}
	return joinSegments(segments)
}

// CollectionPath valida y une segmentos en un path de colección (cantidad impar).
func CollectionPath(segments ...string) (string, error) {
	if len(segments)%2 != 1 {
		return "", ErrInvalidPath
	}
	return joinSegments(segments)
}

func joinSegments(segments []string) (string, error) {
	for _, s := range segments {
		if s == "" || strings.ContainsRune(s, '/') {
			return "", ErrInvalidPath
		}
	}
	return strings.Join(segments, "/"), nil
}

// ParentCollection devuelve la colección que contiene al documento.
func ParentCollection(docPath string) string {
	idx := strings.LastIndexByte(docPath, '/')
	if idx < 0 {
		return ""
	}
	return docPath[:idx]
}
