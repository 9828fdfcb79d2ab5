// Package document models the structured values exchanged with the engine:
// status payloads and configuration documents. A Document is a nested
// mapping whose leaves are scalars, sequences ([]any) or further mappings.
package document

import (
	"fmt"
	"math"
	"reflect"
)

// Document is a structured, arbitrarily nested mapping.
type Document map[string]any

// New returns an empty document.
func New() Document {
	return Document{}
}

// Normalize converts decoder output into the canonical shape: map[string]any
// for mappings and []any for sequences. YAML decoders can produce
// map[any]any for non-string keys; those keys are stringified.
func Normalize(v any) any {
	switch t := v.(type) {
	case Document:
		return normalizeMap(t)
	case map[string]any:
		return normalizeMap(t)
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = Normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = Normalize(val)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = val
		}
		return out
	default:
		return v
	}
}

func normalizeMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, val := range m {
		out[k] = Normalize(val)
	}
	return out
}

// FromValue normalizes v and returns it as a Document. A nil value yields an
// empty document; any other non-mapping value is an error.
func FromValue(v any) (Document, error) {
	if v == nil {
		return New(), nil
	}
	m, ok := Normalize(v).(map[string]any)
	if !ok {
		return nil, fmt.Errorf("document root must be a mapping, got %T", v)
	}
	return Document(m), nil
}

// Clone returns a deep copy of the document. Clone of nil is nil.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	return Document(cloneMap(d))
}

// Clone returns a deep copy of v.
func Clone(v any) any {
	switch t := v.(type) {
	case Document:
		return t.Clone()
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = Clone(val)
		}
		return out
	default:
		return v
	}
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, val := range m {
		out[k] = Clone(val)
	}
	return out
}

// Equal reports whether a and b have the same structure and values. Mapping
// key order never matters; numbers compare by value regardless of width, so
// int 3 equals float64 3.
func Equal(a, b any) bool {
	a, b = unwrap(a), unwrap(b)

	if an, ok := number(a); ok {
		bn, ok := number(b)
		return ok && an.equal(bn)
	}

	switch at := a.(type) {
	case nil:
		return b == nil
	case map[string]any:
		bt, ok := b.(map[string]any)
		if !ok || len(at) != len(bt) {
			return false
		}
		for k, av := range at {
			bv, ok := bt[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	case []any:
		bt, ok := b.([]any)
		if !ok || len(at) != len(bt) {
			return false
		}
		for i := range at {
			if !Equal(at[i], bt[i]) {
				return false
			}
		}
		return true
	case string, bool:
		return a == b
	default:
		return reflect.DeepEqual(a, b)
	}
}

func unwrap(v any) any {
	if d, ok := v.(Document); ok {
		if d == nil {
			return map[string]any(nil)
		}
		return map[string]any(d)
	}
	return v
}

// numeric holds a number in the narrowest exact form: int64 when it fits,
// uint64 above MaxInt64, float64 only for fractional or out-of-range values.
// Two numerics are equal only when kind and value match.
type numeric struct {
	kind numKind
	i    int64
	u    uint64
	f    float64
}

type numKind int

const (
	numInt numKind = iota
	numUint
	numFloat
)

func (n numeric) equal(o numeric) bool {
	if n.kind != o.kind {
		return false
	}
	switch n.kind {
	case numInt:
		return n.i == o.i
	case numUint:
		return n.u == o.u
	default:
		return n.f == o.f
	}
}

func number(v any) (numeric, bool) {
	switch t := v.(type) {
	case int:
		return numeric{i: int64(t)}, true
	case int8:
		return numeric{i: int64(t)}, true
	case int16:
		return numeric{i: int64(t)}, true
	case int32:
		return numeric{i: int64(t)}, true
	case int64:
		return numeric{i: t}, true
	case uint:
		return fromUint(uint64(t)), true
	case uint8:
		return fromUint(uint64(t)), true
	case uint16:
		return fromUint(uint64(t)), true
	case uint32:
		return fromUint(uint64(t)), true
	case uint64:
		return fromUint(t), true
	case float32:
		return fromFloat(float64(t)), true
	case float64:
		return fromFloat(t), true
	default:
		return numeric{}, false
	}
}

func fromUint(u uint64) numeric {
	if u > math.MaxInt64 {
		return numeric{kind: numUint, u: u}
	}
	return numeric{i: int64(u)}
}

// 2^63 and 2^64 are exact in float64; MaxInt64 and MaxUint64 are not.
const (
	twoTo63 = float64(1 << 63)
	twoTo64 = twoTo63 * 2
)

func fromFloat(f float64) numeric {
	if f != math.Trunc(f) {
		return numeric{kind: numFloat, f: f}
	}
	switch {
	case f >= math.MinInt64 && f < twoTo63:
		return numeric{i: int64(f)}
	case f >= twoTo63 && f < twoTo64:
		return numeric{kind: numUint, u: uint64(f)}
	default:
		return numeric{kind: numFloat, f: f}
	}
}

// Merge applies patch to base and returns the result. Nested mappings merge
// recursively, any other patch value replaces the base value, and a nil patch
// value deletes the key. Neither argument is modified.
func Merge(base, patch Document) Document {
	out := base.Clone()
	if out == nil {
		out = New()
	}
	for k, pv := range patch {
		if pv == nil {
			delete(out, k)
			continue
		}
		pm, ok := unwrap(pv).(map[string]any)
		if !ok {
			out[k] = Clone(Normalize(pv))
			continue
		}
		bm, _ := out[k].(map[string]any)
		out[k] = map[string]any(Merge(Document(bm), Document(pm)))
	}
	return out
}

// Lookup returns the value at the nested path.
func (d Document) Lookup(path ...string) (any, bool) {
	var cur any = map[string]any(d)
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Patch builds a nested patch that sets path to value when merged.
func Patch(value any, path ...string) Document {
	if len(path) == 0 {
		return New()
	}
	leaf := Document{path[len(path)-1]: value}
	for i := len(path) - 2; i >= 0; i-- {
		leaf = Document{path[i]: map[string]any(leaf)}
	}
	return leaf
}
