package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Fields is a column-name keyed row payload. A nil value inside a patch
// clears the column.
type Fields map[string]any

// Clone returns a shallow copy of the fields.
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// String returns the column value as text, or "" when absent.
func (f Fields) String(column string) string {
	return AsString(f[column])
}

// Record is one stored row together with its store-assigned handle.
type Record struct {
	ID        string    `json:"id"`
	Fields    Fields    `json:"fields"`
	CreatedAt time.Time `json:"created_time"`
}

// SortDirection orders FindSorted results.
type SortDirection string

// Supported sort directions.
const (
	Ascending  SortDirection = "asc"
	Descending SortDirection = "desc"
)

// ErrRecordNotFound is returned by UpdateByField and Update when no row matches.
var ErrRecordNotFound = errors.New("record not found")

// RecordStore is the tabular store contract consumed by the colony manager.
// Find returns matches in store (insertion) order and an empty slice when
// nothing matches. UpdateByField patches the first match only.
type RecordStore interface {
	Find(ctx context.Context, field string, value any) ([]Record, error)
	FindSorted(ctx context.Context, field string, dir SortDirection, limit int) ([]Record, error)
	Insert(ctx context.Context, fields Fields) (Record, error)
	UpdateByField(ctx context.Context, field string, value any, patch Fields) (Record, error)
	Update(ctx context.Context, id string, patch Fields) (Record, error)
}

// ApplyPatch merges patch into fields, deleting columns whose patch value is nil.
func ApplyPatch(fields, patch Fields) Fields {
	out := fields.Clone()
	if out == nil {
		out = make(Fields, len(patch))
	}
	for k, v := range patch {
		if v == nil {
			delete(out, k)
			continue
		}
		out[k] = v
	}
	return out
}

// AsString renders a stored value as text. Integral numbers are printed
// without a fractional part so 6000.0 and "6000" read the same.
func AsString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		if t == math.Trunc(t) && !math.IsInf(t, 0) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return AsString(float64(t))
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case bool:
		return strconv.FormatBool(t)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(v)
	}
}

// AsInt64 converts numeric values and numeric strings; ok is false otherwise.
func AsInt64(v any) (int64, bool) {
	switch t := v.(type) {
	case int:
		return int64(t), true
	case int64:
		return t, true
	case int32:
		return int64(t), true
	case float64:
		if t != math.Trunc(t) {
			return 0, false
		}
		return int64(t), true
	case float32:
		return AsInt64(float64(t))
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			return 0, false
		}
		return n, true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// ValuesEqual is the exact-match predicate used by Find. Numbers and numeric
// strings compare by value; everything else compares by text.
func ValuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return AsString(a) == AsString(b)
}

// CompareValues orders two stored values: numerically when both are
// integral, by text otherwise. Absent values sort first.
func CompareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	ai, aok := AsInt64(a)
	bi, bok := AsInt64(b)
	if aok && bok {
		switch {
		case ai < bi:
			return -1
		case ai > bi:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(AsString(a), AsString(b))
}
