package docstore

import (
	"math"
	"time"

	"github.com/goccy/go-json"
)

// Transform is a field value resolved against the current field value at
// merge time instead of replacing it.
type Transform interface {
	Apply(current any, now time.Time) any
}

// ServerTimestampOp resolves to the store clock at merge time.
type ServerTimestampOp struct{}

// IncrementOp adds By to the current numeric value (missing counts as 0).
type IncrementOp struct{ By float64 }

// ArrayUnionOp appends Items not already present. A positive Max keeps only
// the newest Max elements afterwards.
type ArrayUnionOp struct {
	Items []any
	Max   int
}

func ServerTimestamp() Transform { return ServerTimestampOp{} }

func Increment(n float64) Transform { return IncrementOp{By: n} }

func ArrayUnion(items ...any) Transform { return ArrayUnionOp{Items: items} }

func ArrayUnionCapped(max int, items ...any) Transform {
	return ArrayUnionOp{Items: items, Max: max}
}

func (ServerTimestampOp) Apply(_ any, now time.Time) any { return now.UTC() }

func (op IncrementOp) Apply(current any, _ time.Time) any {
	cur, _ := Number(current)
	return cur + op.By
}

func (op ArrayUnionOp) Apply(current any, _ time.Time) any {
	var out []any
	if cur, ok := current.([]any); ok {
		out = make([]any, 0, len(cur)+len(op.Items))
		out = append(out, cur...)
	}
	seen := make(map[string]struct{}, len(out)+len(op.Items))
	for _, it := range out {
		seen[valueKey(it)] = struct{}{}
	}
	for _, it := range op.Items {
		n := normalizeValue(it)
		k := valueKey(n)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, n)
	}
	if op.Max > 0 && len(out) > op.Max {
		out = append([]any(nil), out[len(out)-op.Max:]...)
	}
	if out == nil {
		out = []any{}
	}
	return out
}

// Merge deep-merges patch into a copy of dst. Nested objects recurse, every
// other value replaces, and transforms resolve against the current value.
func Merge(dst, patch Document, now time.Time) Document {
	out := Clone(dst)
	if out == nil {
		out = Document{}
	}
	mergeInto(out, patch, now)
	return out
}

func mergeInto(dst map[string]any, patch map[string]any, now time.Time) {
	for k, v := range patch {
		switch pv := v.(type) {
		case Transform:
			dst[k] = pv.Apply(dst[k], now)
		case Document:
			mergeChild(dst, k, pv, now)
		case map[string]any:
			mergeChild(dst, k, pv, now)
		default:
			dst[k] = cloneValue(v)
		}
	}
}

func mergeChild(dst map[string]any, k string, patch map[string]any, now time.Time) {
	cur, ok := AsMap(dst[k])
	if !ok {
		cur = map[string]any{}
	}
	mergeInto(cur, patch, now)
	dst[k] = cur
}

// AsMap views a nested object regardless of whether it is typed as Document.
func AsMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, m != nil
	case Document:
		return map[string]any(m), m != nil
	default:
		return nil, false
	}
}

// Clone deep-copies nested maps and slices.
func Clone(d Document) Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case Document:
		m := make(map[string]any, len(x))
		for k, vv := range x {
			m[k] = cloneValue(vv)
		}
		return m
	case map[string]any:
		m := make(map[string]any, len(x))
		for k, vv := range x {
			m[k] = cloneValue(vv)
		}
		return m
	case []any:
		s := make([]any, len(x))
		for i, vv := range x {
			s[i] = cloneValue(vv)
		}
		return s
	default:
		return v
	}
}

// Number reads a numeric document value.
func Number(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int32:
		f = float64(x)
	case int64:
		f = float64(x)
	case uint:
		f = float64(x)
	case uint64:
		f = float64(x)
	case json.Number:
		n, err := x.Float64()
		if err != nil {
			return 0, false
		}
		f = n
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// normalizeValue converts arbitrary values to their JSON document form so
// array elements compare equal across backends.
func normalizeValue(v any) any {
	b, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return v
	}
	return out
}

func valueKey(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
