// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

package format

import (
	"bytes"
	"encoding/json"

	"github.com/tidwall/gjson"
	"github.com/tidwall/jsonc"

	"github.com/strata-config/strata/lib/errkind"
	"github.com/strata-config/strata/lib/mergeval"
)

func errNotStructured(f Format) error {
	return errkind.Parsef("format %s has no structured representation", f)
}

// parseJSON converts a JSON document. When comments is true the input
// is JSONC and comments plus trailing commas are stripped first.
func parseJSON(content []byte, comments bool) (mergeval.Value, error) {
	if comments {
		content = jsonc.ToJSON(content)
	}
	trimmed := bytes.TrimSpace(content)
	if len(trimmed) == 0 {
		return mergeval.Value{}, errkind.Parsef("empty JSON document")
	}
	if !gjson.ValidBytes(trimmed) {
		return mergeval.Value{}, errkind.Parsef("invalid JSON document")
	}
	return fromResult(gjson.ParseBytes(trimmed))
}

// fromResult converts a gjson result tree. gjson iterates object
// members in document order, which is what keeps the merged output
// stable against the authored layout.
func fromResult(r gjson.Result) (mergeval.Value, error) {
	switch {
	case r.Type == gjson.Null:
		return mergeval.Null(), nil
	case r.Type == gjson.True:
		return mergeval.Bool(true), nil
	case r.Type == gjson.False:
		return mergeval.Bool(false), nil
	case r.Type == gjson.String:
		return mergeval.String(r.String()), nil
	case r.Type == gjson.Number:
		return mergeval.Number(r.Raw)
	case r.IsArray():
		items := r.Array()
		values := make([]mergeval.Value, 0, len(items))
		for _, item := range items {
			v, err := fromResult(item)
			if err != nil {
				return mergeval.Value{}, err
			}
			values = append(values, v)
		}
		return mergeval.Array(values), nil
	case r.IsObject():
		obj := mergeval.NewObject()
		var convErr error
		r.ForEach(func(key, member gjson.Result) bool {
			v, err := fromResult(member)
			if err != nil {
				convErr = err
				return false
			}
			obj.Set(key.String(), v)
			return true
		})
		if convErr != nil {
			return mergeval.Value{}, convErr
		}
		return obj.Value(), nil
	default:
		return mergeval.Value{}, errkind.Parsef("unsupported JSON value %q", r.Raw)
	}
}

// encodeJSON renders a value as indented JSON with a trailing newline,
// object members in insertion order.
func encodeJSON(v mergeval.Value) ([]byte, error) {
	var b bytes.Buffer
	if err := writeJSON(&b, v, 0); err != nil {
		return nil, err
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}

const jsonIndent = "  "

func writeJSON(b *bytes.Buffer, v mergeval.Value, depth int) error {
	switch v.Type() {
	case mergeval.TypeNull:
		b.WriteString("null")
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
		writeJSONString(b, s)
	case mergeval.TypeArray:
		items, _ := v.AsArray()
		if len(items) == 0 {
			b.WriteString("[]")
			return nil
		}
		b.WriteByte('[')
		for i, item := range items {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteByte('\n')
			writeIndent(b, depth+1)
			if err := writeJSON(b, item, depth+1); err != nil {
				return err
			}
		}
		b.WriteByte('\n')
		writeIndent(b, depth)
		b.WriteByte(']')
	case mergeval.TypeObject:
		obj, _ := v.AsObject()
		if obj.Len() == 0 {
			b.WriteString("{}")
			return nil
		}
		b.WriteByte('{')
		for i, key := range obj.Keys() {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteByte('\n')
			writeIndent(b, depth+1)
			writeJSONString(b, key)
			b.WriteString(": ")
			member, _ := obj.Get(key)
			if err := writeJSON(b, member, depth+1); err != nil {
				return err
			}
		}
		b.WriteByte('\n')
		writeIndent(b, depth)
		b.WriteByte('}')
	default:
		return errkind.Parsef("cannot encode %s value as JSON", v.Type())
	}
	return nil
}

func writeIndent(b *bytes.Buffer, depth int) {
	for i := 0; i < depth; i++ {
		b.WriteString(jsonIndent)
	}
}

// writeJSONString emits a JSON string literal. encoding/json handles
// the escaping rules exactly; HTML escaping is off so "<", ">", and
// "&" stay readable in config files.
func writeJSONString(b *bytes.Buffer, s string) {
	var literal bytes.Buffer
	enc := json.NewEncoder(&literal)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		// Strings cannot fail JSON marshalling.
		panic("format: marshalling string literal: " + err.Error())
	}
	b.Write(bytes.TrimRight(literal.Bytes(), "\n"))
}
