// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

package format

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/strata-config/strata/lib/errkind"
	"github.com/strata-config/strata/lib/mergeval"
)

// parseTOML converts a TOML document. The decoder returns unordered
// maps, so document key order is reconstructed from the decoder's
// metadata key list (first definition wins).
func parseTOML(content []byte) (mergeval.Value, error) {
	var raw map[string]any
	meta, err := toml.Decode(string(content), &raw)
	if err != nil {
		return mergeval.Value{}, errkind.Parsef("invalid TOML document: %v", err)
	}

	order := make(map[string]int, len(meta.Keys()))
	for i, key := range meta.Keys() {
		path := strings.Join(key, "\x00")
		if _, seen := order[path]; !seen {
			order[path] = i
		}
	}
	return fromTOML(raw, nil, order)
}

func fromTOML(v any, path []string, order map[string]int) (mergeval.Value, error) {
	switch x := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(x))
		for key := range x {
			keys = append(keys, key)
		}
		sort.Slice(keys, func(i, j int) bool {
			oi, iKnown := order[strings.Join(append(path, keys[i]), "\x00")]
			oj, jKnown := order[strings.Join(append(path, keys[j]), "\x00")]
			switch {
			case iKnown && jKnown:
				return oi < oj
			case iKnown:
				return true
			case jKnown:
				return false
			default:
				return keys[i] < keys[j]
			}
		})
		obj := mergeval.NewObject()
		for _, key := range keys {
			member, err := fromTOML(x[key], append(path, key), order)
			if err != nil {
				return mergeval.Value{}, err
			}
			obj.Set(key, member)
		}
		return obj.Value(), nil
	case []map[string]any:
		values := make([]mergeval.Value, 0, len(x))
		for _, elem := range x {
			member, err := fromTOML(elem, path, order)
			if err != nil {
				return mergeval.Value{}, err
			}
			values = append(values, member)
		}
		return mergeval.Array(values), nil
	case []any:
		values := make([]mergeval.Value, 0, len(x))
		for _, elem := range x {
			member, err := fromTOML(elem, path, order)
			if err != nil {
				return mergeval.Value{}, err
			}
			values = append(values, member)
		}
		return mergeval.Array(values), nil
	case string:
		return mergeval.String(x), nil
	case bool:
		return mergeval.Bool(x), nil
	case int64:
		return mergeval.Int(x), nil
	case float64:
		return mergeval.Float(x), nil
	case time.Time:
		// TOML datetimes have no merge-value representation of their
		// own; they carry through as RFC 3339 strings.
		return mergeval.String(x.Format(time.RFC3339)), nil
	default:
		return mergeval.String(fmt.Sprint(x)), nil
	}
}

// encodeTOML renders a value as a TOML document: inline pairs first,
// then subtables, then arrays of tables, each group in object order.
func encodeTOML(v mergeval.Value) ([]byte, error) {
	obj, ok := v.AsObject()
	if !ok {
		return nil, errkind.Parsef("TOML documents must be a table at the top level, got %s", v.Type())
	}
	var b bytes.Buffer
	if err := writeTOMLTable(&b, obj, nil); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func writeTOMLTable(b *bytes.Buffer, obj *mergeval.Object, path []string) error {
	type deferredTable struct {
		key     string
		obj     *mergeval.Object
		asArray []mergeval.Value
	}
	var deferred []deferredTable

	for _, key := range obj.Keys() {
		member, _ := obj.Get(key)
		switch member.Type() {
		case mergeval.TypeObject:
			sub, _ := member.AsObject()
			deferred = append(deferred, deferredTable{key: key, obj: sub})
		case mergeval.TypeArray:
			items, _ := member.AsArray()
			if len(items) > 0 && allObjects(items) {
				deferred = append(deferred, deferredTable{key: key, asArray: items})
				continue
			}
			writeTOMLKey(b, key)
			b.WriteString(" = ")
			if err := writeTOMLValue(b, member); err != nil {
				return err
			}
			b.WriteByte('\n')
		default:
			writeTOMLKey(b, key)
			b.WriteString(" = ")
			if err := writeTOMLValue(b, member); err != nil {
				return err
			}
			b.WriteByte('\n')
		}
	}

	for _, table := range deferred {
		childPath := append(append([]string{}, path...), table.key)
		dotted := dottedTOMLPath(childPath)
		if table.asArray != nil {
			for _, elem := range table.asArray {
				if b.Len() > 0 {
					b.WriteByte('\n')
				}
				b.WriteString("[[")
				b.WriteString(dotted)
				b.WriteString("]]\n")
				elemObj, _ := elem.AsObject()
				if err := writeTOMLTable(b, elemObj, childPath); err != nil {
					return err
				}
			}
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteByte('[')
		b.WriteString(dotted)
		b.WriteString("]\n")
		if err := writeTOMLTable(b, table.obj, childPath); err != nil {
			return err
		}
	}
	return nil
}

func allObjects(items []mergeval.Value) bool {
	for _, item := range items {
		if item.Type() != mergeval.TypeObject {
			return false
		}
	}
	return true
}

func writeTOMLValue(b *bytes.Buffer, v mergeval.Value) error {
	switch v.Type() {
	case mergeval.TypeBool:
		bv, _ := v.AsBool()
		if bv {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case mergeval.TypeNumber:
		text, _ := v.NumberText()
		b.WriteString(text)
	case mergeval.TypeString:
		s, _ := v.AsString()
		// TOML basic strings share JSON's escape syntax.
		writeJSONString(b, s)
	case mergeval.TypeArray:
		items, _ := v.AsArray()
		b.WriteByte('[')
		for i, item := range items {
			if i > 0 {
				b.WriteString(", ")
			}
			if err := writeTOMLValue(b, item); err != nil {
				return err
			}
		}
		b.WriteByte(']')
	case mergeval.TypeObject:
		obj, _ := v.AsObject()
		b.WriteByte('{')
		for i, key := range obj.Keys() {
			if i > 0 {
				b.WriteString(", ")
			}
			writeTOMLKey(b, key)
			b.WriteString(" = ")
			member, _ := obj.Get(key)
			if err := writeTOMLValue(b, member); err != nil {
				return err
			}
		}
		b.WriteByte('}')
	default:
		return errkind.Parsef("cannot encode %s value as TOML", v.Type())
	}
	return nil
}

func writeTOMLKey(b *bytes.Buffer, key string) {
	if isBareTOMLKey(key) {
		b.WriteString(key)
		return
	}
	writeJSONString(b, key)
}

func dottedTOMLPath(path []string) string {
	var b bytes.Buffer
	for i, segment := range path {
		if i > 0 {
			b.WriteByte('.')
		}
		writeTOMLKey(&b, segment)
	}
	return b.String()
}

func isBareTOMLKey(key string) bool {
	if key == "" {
		return false
	}
	for i := 0; i < len(key); i++ {
		c := key[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '-' || c == '_':
		default:
			return false
		}
	}
	return true
}
