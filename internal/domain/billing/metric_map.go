package billing

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// MetricMap is an insertion-ordered mapping from Metric to V.
// Iteration and JSON encoding follow the order keys were first set, so
// billing output is reproducible for a given input order.
type MetricMap[V any] struct {
	keys   []Metric
	values map[Metric]V
}

// NewMetricMap creates an empty MetricMap
func NewMetricMap[V any]() MetricMap[V] {
	return MetricMap[V]{values: make(map[Metric]V)}
}

// Set stores v under m. Existing keys keep their position.
func (mm *MetricMap[V]) Set(m Metric, v V) {
	if mm.values == nil {
		mm.values = make(map[Metric]V)
	}
	if _, exists := mm.values[m]; !exists {
		mm.keys = append(mm.keys, m)
	}
	mm.values[m] = v
}

// Get returns the value stored under m
func (mm MetricMap[V]) Get(m Metric) (V, bool) {
	v, ok := mm.values[m]
	return v, ok
}

// Has reports whether m is present
func (mm MetricMap[V]) Has(m Metric) bool {
	_, ok := mm.values[m]
	return ok
}

// Keys returns the metrics in insertion order
func (mm MetricMap[V]) Keys() []Metric {
	out := make([]Metric, len(mm.keys))
	copy(out, mm.keys)
	return out
}

// Len returns the number of entries
func (mm MetricMap[V]) Len() int {
	return len(mm.keys)
}

// Each calls fn for every entry in insertion order
func (mm MetricMap[V]) Each(fn func(m Metric, v V)) {
	for _, k := range mm.keys {
		fn(k, mm.values[k])
	}
}

// MetricMapOf builds a MetricMap from entries in the given order
func MetricMapOf[V any](pairs ...MetricValue[V]) MetricMap[V] {
	mm := NewMetricMap[V]()
	for _, p := range pairs {
		mm.Set(p.Metric, p.Value)
	}
	return mm
}

// MetricValue is a single MetricMap entry
type MetricValue[V any] struct {
	Metric Metric
	Value  V
}

// Entry is shorthand for building a MetricValue
func Entry[V any](m Metric, v V) MetricValue[V] {
	return MetricValue[V]{Metric: m, Value: v}
}

// MarshalJSON encodes the map as a JSON object preserving key order
func (mm MetricMap[V]) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range mm.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(string(k))
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(mm.values[k])
		if err != nil {
			return nil, fmt.Errorf("metric %s: %w", k, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, keeping the document's key order
func (mm *MetricMap[V]) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*mm = NewMetricMap[V]()
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("metric map: expected object, got %v", tok)
	}

	out := NewMetricMap[V]()
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("metric map: expected string key, got %v", keyTok)
		}
		var v V
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("metric %s: %w", key, err)
		}
		out.Set(Metric(key), v)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*mm = out
	return nil
}
