package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Timestamp es el valor de tiempo normalizado que produce la capa de store.
// Acepta las tres formas que existen en documentos viejos: objetos
// {seconds,nanos}, números epoch en milisegundos y strings RFC3339. Siempre
// serializa como RFC3339Nano UTC.
type Timestamp struct {
	time.Time
}

// NewTimestamp crea un Timestamp normalizado en UTC.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{t.UTC()}
}

func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if ts.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(ts.UTC().Format(time.RFC3339Nano))
}

func (ts *Timestamp) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	switch v := raw.(type) {
	case nil:
		*ts = Timestamp{}
		return nil
	case string:
		if v == "" {
			*ts = Timestamp{}
			return nil
		}
		parsed, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return fmt.Errorf("timestamp: invalid string %q: %w", v, err)
		}
		*ts = NewTimestamp(parsed)
		return nil
	case float64:
		// Epoch en milisegundos (forma de Date.now()).
		millis := int64(v)
		*ts = NewTimestamp(time.UnixMilli(millis))
		return nil
	case map[string]any:
		seconds, ok := v["seconds"].(float64)
		if !ok {
			return fmt.Errorf("timestamp: object without seconds field")
		}
		nanos, _ := v["nanos"].(float64)
		*ts = NewTimestamp(time.Unix(int64(seconds), int64(nanos)))
		return nil
	default:
		return fmt.Errorf("timestamp: unsupported shape %T", raw)
	}
}

// Before reporta orden entre timestamps (zero values primero).
func (ts Timestamp) Before(other Timestamp) bool {
	return ts.Time.Before(other.Time)
}
