// Package params provides Bag, the heterogeneous key/value container passed
// with every broadcast.
//
// A Bag remembers the runtime type of each value and only hands it back to a
// reader asking for exactly that type:
//
//	bag := params.New().Set("points", 10).Set("player", "p1")
//	points := params.Get(bag, "points", 0)       // 10
//	name := params.Get(bag, "points", "none")    // "none" + warning, stored type is int
//
// Lookups never fail loudly. A missing key or a type mismatch logs a warning
// and returns the caller's default.
package params

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/shashiranjanraj/relay/pkg/logger"
)

// ErrEmptyKey is recorded on the bag when Set is called with an empty key.
var ErrEmptyKey = errors.New("params: key must not be empty")

type entry struct {
	typ   reflect.Type
	value any
}

// Bag is an insertion-ordered map from string key to a typed value.
// The zero value is an empty bag ready for use. A nil *Bag behaves as an
// empty bag for every read.
type Bag struct {
	keys    []string
	entries map[string]entry
	err     error
}

// New returns an empty bag.
func New() *Bag {
	return &Bag{entries: make(map[string]entry)}
}

// With returns a bag holding a single entry.
func With(key string, value any) *Bag {
	return New().Set(key, value)
}

// Set inserts or overwrites key. Overwriting keeps the key's original
// position. An empty key is rejected: nothing is stored, a warning is logged
// and ErrEmptyKey is recorded for Err. On a nil bag Set logs a warning and
// returns nil.
func (b *Bag) Set(key string, value any) *Bag {
	if b == nil {
		logger.Warn("params: set on nil bag ignored", "key", key)
		return nil
	}
	if key == "" {
		logger.Warn("params: rejected entry with empty key", "type", typeName(reflect.TypeOf(value)))
		b.err = errors.Join(b.err, ErrEmptyKey)
		return b
	}
	if b.entries == nil {
		b.entries = make(map[string]entry)
	}
	if _, exists := b.entries[key]; !exists {
		b.keys = append(b.keys, key)
	}
	b.entries[key] = entry{typ: reflect.TypeOf(value), value: value}
	return b
}

// Delete removes key. It reports whether the key was present.
func (b *Bag) Delete(key string) bool {
	if b == nil {
		return false
	}
	if _, ok := b.entries[key]; !ok {
		return false
	}
	delete(b.entries, key)
	for i, k := range b.keys {
		if k == key {
			b.keys = append(b.keys[:i], b.keys[i+1:]...)
			break
		}
	}
	return true
}

// Err returns every rejected insert joined together, or nil.
func (b *Bag) Err() error {
	if b == nil {
		return nil
	}
	return b.err
}

// Has reports whether key is present.
func (b *Bag) Has(key string) bool {
	if b == nil {
		return false
	}
	_, ok := b.entries[key]
	return ok
}

// Len returns the number of entries.
func (b *Bag) Len() int {
	if b == nil {
		return 0
	}
	return len(b.keys)
}

// Keys returns the keys in insertion order.
func (b *Bag) Keys() []string {
	if b == nil {
		return nil
	}
	return append([]string(nil), b.keys...)
}

// TypeOf returns the stored runtime type of key, or nil when the key is
// missing or holds a nil value.
func (b *Bag) TypeOf(key string) reflect.Type {
	if b == nil {
		return nil
	}
	return b.entries[key].typ
}

// Value returns the raw stored value.
func (b *Bag) Value(key string) (any, bool) {
	if b == nil {
		return nil, false
	}
	e, ok := b.entries[key]
	return e.value, ok
}

// Lookup returns the value stored under key if its runtime type is exactly
// T. It never logs.
func Lookup[T any](b *Bag, key string) (T, bool) {
	var zero T
	if b == nil {
		return zero, false
	}
	e, ok := b.entries[key]
	if !ok || e.typ == nil || e.typ != reflect.TypeOf((*T)(nil)).Elem() {
		return zero, false
	}
	return e.value.(T), true
}

// Get returns the value stored under key when its runtime type is exactly T.
// Otherwise it logs a warning and returns def. There is no numeric coercion:
// an int stored value requested as int64 or float64 yields def.
func Get[T any](b *Bag, key string, def T) T {
	if v, ok := Lookup[T](b, key); ok {
		return v
	}

	want := typeName(reflect.TypeOf((*T)(nil)).Elem())
	if !b.Has(key) {
		logger.Warn("params: key not found", "key", key, "want", want)
		return def
	}
	logger.Warn("params: type mismatch", "key", key, "want", want, "got", typeName(b.TypeOf(key)))
	return def
}

// String renders the bag as "ParamList { k: v, k: v }" in insertion order.
// The output is meant for logs, not for parsing.
func (b *Bag) String() string {
	if b.Len() == 0 {
		return "ParamList { }"
	}
	var sb strings.Builder
	sb.WriteString("ParamList { ")
	for i, k := range b.keys {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s: %v", k, b.entries[k].value)
	}
	sb.WriteString(" }")
	return sb.String()
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "nil"
	}
	return t.String()
}
