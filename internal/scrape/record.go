package scrape

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Mandatory provenance fields present on every Record.
const (
	FieldSource    = "source"
	FieldScrapedAt = "scraped_at"
)

// Record is an ordered mapping of field name to value. Keys keep the order in
// which they were first set. Copies of a Record share storage; use Clone
// before mutating a record that someone else holds.
type Record struct {
	keys   []string
	values map[string]any
}

// NewRecord returns a Record tagged with its source and scrape time (UTC).
func NewRecord(source string, scrapedAt time.Time) Record {
	r := Record{values: make(map[string]any, 8)}
	r.Set(FieldSource, source)
	r.Set(FieldScrapedAt, scrapedAt.UTC())
	return r
}

// Set assigns value to key. Existing keys keep their position.
func (r *Record) Set(key string, value any) {
	if r.values == nil {
		r.values = make(map[string]any, 8)
	}
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
}

// Get returns the value stored under key.
func (r Record) Get(key string) (any, bool) {
	v, ok := r.values[key]
	return v, ok
}

// String returns the value under key when it is a string, or "".
func (r Record) String(key string) string {
	if s, ok := r.values[key].(string); ok {
		return s
	}
	return ""
}

// Delete removes key from the record.
func (r *Record) Delete(key string) {
	if _, ok := r.values[key]; !ok {
		return
	}
	delete(r.values, key)
	for i, k := range r.keys {
		if k == key {
			r.keys = append(r.keys[:i:i], r.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the field names in insertion order.
func (r Record) Keys() []string {
	return append([]string(nil), r.keys...)
}

// Len reports the number of fields.
func (r Record) Len() int { return len(r.keys) }

// Clone returns a record with its own key order and value map. Values
// themselves are not deep-copied.
func (r Record) Clone() Record {
	out := Record{
		keys:   append([]string(nil), r.keys...),
		values: make(map[string]any, len(r.values)),
	}
	for k, v := range r.values {
		out.values[k] = v
	}
	return out
}

// Source returns the provenance source name.
func (r Record) Source() string { return r.String(FieldSource) }

// ScrapedAt returns the scrape timestamp. Records decoded from JSON carry the
// timestamp as a string, which is parsed on demand.
func (r Record) ScrapedAt() time.Time {
	switch v := r.values[FieldScrapedAt].(type) {
	case time.Time:
		return v
	case string:
		if ts, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return ts.UTC()
		}
	}
	return time.Time{}
}

// Valid reports whether both provenance fields are present.
func (r Record) Valid() bool {
	return r.Source() != "" && !r.ScrapedAt().IsZero()
}

// MarshalJSON encodes the record as a JSON object in key order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, fmt.Errorf("marshal key %q: %w", k, err)
		}
		val, err := json.Marshal(r.values[k])
		if err != nil {
			return nil, fmt.Errorf("marshal field %q: %w", k, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, preserving its key order.
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("decode record: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("decode record: expected object, got %v", tok)
	}
	out := Record{values: make(map[string]any)}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("decode record key: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("decode record: unexpected key %v", keyTok)
		}
		var value any
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("decode record field %q: %w", key, err)
		}
		out.Set(key, value)
	}
	*r = out
	return nil
}
