// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

// Package mergeval implements the structural merge engine: a tagged
// variant value type independent of any serialization format, and the
// fold that combines an ordered sequence of per-layer values into one
// merged value or a conflict record. Pure logic, no I/O; format
// conversion lives in lib/format.
package mergeval

import (
	"fmt"
	"strconv"
	"strings"
)

// Type tags the variant held by a Value.
type Type uint8

const (
	// TypeNull is the explicit deletion marker.
	TypeNull Type = iota + 1
	TypeBool
	TypeNumber
	TypeString
	TypeArray
	TypeObject
	// TypeOpaque references binary or unstructured content by blob id.
	// Opaque values are replace-only, never merged.
	TypeOpaque
)

var typeNames = [...]string{
	TypeNull:   "null",
	TypeBool:   "bool",
	TypeNumber: "number",
	TypeString: "string",
	TypeArray:  "array",
	TypeObject: "object",
	TypeOpaque: "opaque",
}

// String returns the type name.
func (t Type) String() string {
	if int(t) < len(typeNames) && typeNames[t] != "" {
		return typeNames[t]
	}
	return fmt.Sprintf("type(%d)", uint8(t))
}

// Value is one logical configuration value. The zero Value is "absent"
// and is distinct from Null: absence means a layer does not mention a
// path, Null means it explicitly deletes it.
type Value struct {
	typ     Type
	boolean bool
	number  string
	str     string
	arr     []Value
	obj     *Object
	opaque  string
}

// Null returns the explicit deletion marker.
func Null() Value { return Value{typ: TypeNull} }

// Bool returns a boolean value.
func Bool(v bool) Value { return Value{typ: TypeBool, boolean: v} }

// Int returns a number value holding an integer.
func Int(n int64) Value { return Value{typ: TypeNumber, number: strconv.FormatInt(n, 10)} }

// Float returns a number value holding a float. Integral floats render
// without a fractional part, matching how they parse from documents.
func Float(f float64) Value {
	return Value{typ: TypeNumber, number: strconv.FormatFloat(f, 'g', -1, 64)}
}

// Number returns a number value from its decimal text, preserving the
// exact literal from the source document.
func Number(text string) (Value, error) {
	if _, err := strconv.ParseFloat(text, 64); err != nil {
		if _, err := strconv.ParseInt(text, 10, 64); err != nil {
			return Value{}, fmt.Errorf("invalid number literal %q", text)
		}
	}
	return Value{typ: TypeNumber, number: text}, nil
}

// String returns a string value.
func String(s string) Value { return Value{typ: TypeString, str: s} }

// Array returns an array value over the given elements. The slice is
// retained; the caller must not mutate it afterwards.
func Array(items []Value) Value { return Value{typ: TypeArray, arr: items} }

// Opaque returns a replace-only reference to unstructured content.
func Opaque(blobRef string) Value { return Value{typ: TypeOpaque, opaque: blobRef} }

// Type returns the variant tag. The zero Value returns 0.
func (v Value) Type() Type { return v.typ }

// IsZero reports whether the value is absent (not even Null).
func (v Value) IsZero() bool { return v.typ == 0 }

// IsNull reports whether the value is the explicit deletion marker.
func (v Value) IsNull() bool { return v.typ == TypeNull }

// AsBool returns the boolean and true when the value is a bool.
func (v Value) AsBool() (bool, bool) { return v.boolean, v.typ == TypeBool }

// AsString returns the string and true when the value is a string.
func (v Value) AsString() (string, bool) { return v.str, v.typ == TypeString }

// NumberText returns the number's decimal text and true when the value
// is a number.
func (v Value) NumberText() (string, bool) { return v.number, v.typ == TypeNumber }

// AsInt returns the number as an int64 when it is an integral number.
func (v Value) AsInt() (int64, bool) {
	if v.typ != TypeNumber {
		return 0, false
	}
	n, err := strconv.ParseInt(v.number, 10, 64)
	return n, err == nil
}

// AsFloat returns the number as a float64.
func (v Value) AsFloat() (float64, bool) {
	if v.typ != TypeNumber {
		return 0, false
	}
	f, err := strconv.ParseFloat(v.number, 64)
	return f, err == nil
}

// AsArray returns the element slice and true when the value is an
// array. The slice is shared; treat it as read-only.
func (v Value) AsArray() ([]Value, bool) { return v.arr, v.typ == TypeArray }

// AsObject returns the ordered object and true when the value is an
// object. The object is shared; treat it as read-only.
func (v Value) AsObject() (*Object, bool) { return v.obj, v.typ == TypeObject }

// AsOpaque returns the blob reference and true when the value is
// opaque.
func (v Value) AsOpaque() (string, bool) { return v.opaque, v.typ == TypeOpaque }

// Equal reports deep semantic equality. Numbers compare numerically
// ("8080" equals "8080.0"), objects compare by key set regardless of
// insertion order, arrays compare elementwise in order.
func (v Value) Equal(o Value) bool {
	if v.typ != o.typ {
		return false
	}
	switch v.typ {
	case TypeNull:
		return true
	case TypeBool:
		return v.boolean == o.boolean
	case TypeNumber:
		return numberEqual(v.number, o.number)
	case TypeString:
		return v.str == o.str
	case TypeOpaque:
		return v.opaque == o.opaque
	case TypeArray:
		if len(v.arr) != len(o.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(o.arr[i]) {
				return false
			}
		}
		return true
	case TypeObject:
		if v.obj.Len() != o.obj.Len() {
			return false
		}
		for _, key := range v.obj.Keys() {
			ov, ok := o.obj.Get(key)
			if !ok {
				return false
			}
			mine, _ := v.obj.Get(key)
			if !mine.Equal(ov) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func numberEqual(a, b string) bool {
	if a == b {
		return true
	}
	ai, aerr := strconv.ParseInt(a, 10, 64)
	bi, berr := strconv.ParseInt(b, 10, 64)
	if aerr == nil && berr == nil {
		return ai == bi
	}
	af, aerr2 := strconv.ParseFloat(a, 64)
	bf, berr2 := strconv.ParseFloat(b, 64)
	return aerr2 == nil && berr2 == nil && af == bf
}

// Clone returns a deep copy sharing no mutable state with the
// original.
func (v Value) Clone() Value {
	switch v.typ {
	case TypeArray:
		items := make([]Value, len(v.arr))
		for i := range v.arr {
			items[i] = v.arr[i].Clone()
		}
		return Value{typ: TypeArray, arr: items}
	case TypeObject:
		clone := NewObject()
		for _, key := range v.obj.Keys() {
			member, _ := v.obj.Get(key)
			clone.Set(key, member.Clone())
		}
		return clone.Value()
	default:
		return v
	}
}

// String renders a compact JSON-like form for logs and conflict
// artifacts. Not a serialization format; lib/format owns those.
func (v Value) String() string {
	var b strings.Builder
	v.render(&b)
	return b.String()
}

func (v Value) render(b *strings.Builder) {
	switch v.typ {
	case 0:
		b.WriteString("<absent>")
	case TypeNull:
		b.WriteString("null")
	case TypeBool:
		b.WriteString(strconv.FormatBool(v.boolean))
	case TypeNumber:
		b.WriteString(v.number)
	case TypeString:
		b.WriteString(strconv.Quote(v.str))
	case TypeOpaque:
		b.WriteString("opaque(")
		b.WriteString(v.opaque)
		b.WriteByte(')')
	case TypeArray:
		b.WriteByte('[')
		for i, item := range v.arr {
			if i > 0 {
				b.WriteByte(',')
			}
			item.render(b)
		}
		b.WriteByte(']')
	case TypeObject:
		b.WriteByte('{')
		for i, key := range v.obj.Keys() {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.Quote(key))
			b.WriteByte(':')
			member, _ := v.obj.Get(key)
			member.render(b)
		}
		b.WriteByte('}')
	}
}

// Object is an ordered string-keyed map. Insertion order is preserved
// through merging so documents render back out in a stable, human-
// authored order. Setting an existing key keeps its position.
type Object struct {
	keys    []string
	entries map[string]Value
}

// NewObject returns an empty ordered object.
func NewObject() *Object {
	return &Object{entries: make(map[string]Value)}
}

// Value wraps the object as a Value.
func (o *Object) Value() Value { return Value{typ: TypeObject, obj: o} }

// Set inserts or replaces the member. New keys append to the order.
func (o *Object) Set(key string, v Value) {
	if _, exists := o.entries[key]; !exists {
		o.keys = append(o.keys, key)
	}
	o.entries[key] = v
}

// Get returns the member and whether it exists.
func (o *Object) Get(key string) (Value, bool) {
	v, ok := o.entries[key]
	return v, ok
}

// Delete removes the member, preserving the order of the rest.
func (o *Object) Delete(key string) {
	if _, exists := o.entries[key]; !exists {
		return
	}
	delete(o.entries, key)
	for i, k := range o.keys {
		if k == key {
			o.keys = append(o.keys[:i], o.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in insertion order. The slice is shared; treat
// it as read-only.
func (o *Object) Keys() []string { return o.keys }

// Len returns the member count.
func (o *Object) Len() int { return len(o.entries) }
