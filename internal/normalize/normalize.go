// Package normalize flattens and cleans records and ranks them against a
// search query.
package normalize

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/JakeFAU/multisource-scraper/internal/scrape"
)

var timeType = reflect.TypeOf(time.Time{})

// Normalize returns a cleaned copy of rec. Nil values, blank strings and
// empty lists or maps are dropped; strings are trimmed; nested values
// (slices, arrays, maps, structs) become canonical JSON strings with sorted
// map keys. Scalars and times are kept as they are, except NaN and infinite
// floats, which JSON cannot carry and are dropped. Normalize is idempotent.
func Normalize(rec scrape.Record) scrape.Record {
	out := scrape.Record{}
	for _, key := range rec.Keys() {
		value, _ := rec.Get(key)
		if v, keep := flatten(value); keep {
			out.Set(key, v)
		}
	}
	return out
}

// NormalizeAll normalizes every record of a batch.
func NormalizeAll(records []scrape.Record) []scrape.Record {
	out := make([]scrape.Record, len(records))
	for i, rec := range records {
		out[i] = Normalize(rec)
	}
	return out
}

func flatten(value any) (any, bool) {
	switch v := value.(type) {
	case nil:
		return nil, false
	case string:
		s := strings.TrimSpace(v)
		return s, s != ""
	case []byte:
		s := strings.TrimSpace(string(v))
		return s, s != ""
	case time.Time:
		return v, !v.IsZero()
	case float64:
		return v, finite(v)
	case float32:
		return v, finite(float64(v))
	case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return v, true
	case fmt.Stringer:
		if rv := reflect.ValueOf(v); rv.Kind() != reflect.Struct && rv.Kind() != reflect.Pointer {
			s := strings.TrimSpace(v.String())
			return s, s != ""
		}
	}

	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		if rv.Len() == 0 {
			return nil, false
		}
		return canonical(rv.Interface()), true
	case reflect.Struct:
		if rv.Type() == timeType {
			return flatten(rv.Interface())
		}
		return canonical(rv.Interface()), true
	case reflect.String:
		return flatten(rv.String())
	case reflect.Float32, reflect.Float64:
		return rv.Interface(), finite(rv.Float())
	case reflect.Bool, reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Interface(), true
	default:
		return flatten(fmt.Sprint(rv.Interface()))
	}
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// canonical encodes v as compact JSON. encoding/json sorts map keys.
func canonical(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
