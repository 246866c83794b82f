// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

package mergeval_test

import (
	"testing"

	"github.com/strata-config/strata/lib/mergeval"
)

func TestObjectInsertionOrder(t *testing.T) {
	o := mergeval.NewObject()
	o.Set("zeta", mergeval.Int(1))
	o.Set("alpha", mergeval.Int(2))
	o.Set("mid", mergeval.Int(3))
	// Re-setting an existing key keeps its position.
	o.Set("zeta", mergeval.Int(10))

	want := []string{"zeta", "alpha", "mid"}
	got := o.Keys()
	if len(got) != len(want) {
		t.Fatalf("Keys() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("key %d = %q, want %q", i, got[i], want[i])
		}
	}
	if v, _ := o.Get("zeta"); !v.Equal(mergeval.Int(10)) {
		t.Errorf("zeta = %s after re-set, want 10", v)
	}
}

func TestObjectDelete(t *testing.T) {
	o := mergeval.NewObject()
	o.Set("a", mergeval.Int(1))
	o.Set("b", mergeval.Int(2))
	o.Set("c", mergeval.Int(3))

	o.Delete("b")
	o.Delete("ghost")

	want := []string{"a", "c"}
	got := o.Keys()
	if len(got) != len(want) {
		t.Fatalf("Keys() = %v, want %v", got, want)
	}
	if _, ok := o.Get("b"); ok {
		t.Error("deleted key still present")
	}
	if o.Len() != 2 {
		t.Errorf("Len() = %d, want 2", o.Len())
	}
}

func TestEqualSemantics(t *testing.T) {
	mkObj := func(pairs ...any) mergeval.Value { return obj(t, pairs...) }
	num := func(text string) mergeval.Value {
		v, err := mergeval.Number(text)
		if err != nil {
			t.Fatalf("Number(%q): %v", text, err)
		}
		return v
	}

	tests := []struct {
		name string
		a, b mergeval.Value
		want bool
	}{
		{name: "null-null", a: mergeval.Null(), b: mergeval.Null(), want: true},
		{name: "bool", a: mergeval.Bool(true), b: mergeval.Bool(true), want: true},
		{name: "bool-diff", a: mergeval.Bool(true), b: mergeval.Bool(false), want: false},
		{name: "string", a: mergeval.String("x"), b: mergeval.String("x"), want: true},
		{name: "int-float-same", a: mergeval.Int(3), b: num("3.0"), want: true},
		{name: "numbers-diff", a: mergeval.Int(3), b: num("3.5"), want: false},
		{name: "type-mismatch", a: mergeval.String("3"), b: mergeval.Int(3), want: false},
		{name: "null-vs-absent", a: mergeval.Null(), b: mergeval.Value{}, want: false},
		{name: "array-order-matters", a: arr(mergeval.Int(1), mergeval.Int(2)), b: arr(mergeval.Int(2), mergeval.Int(1)), want: false},
		{name: "object-order-ignored", a: mkObj("a", 1, "b", 2), b: mkObj("b", 2, "a", 1), want: true},
		{name: "object-extra-key", a: mkObj("a", 1), b: mkObj("a", 1, "b", 2), want: false},
		{name: "opaque", a: mergeval.Opaque("ref1"), b: mergeval.Opaque("ref1"), want: true},
		{name: "opaque-diff", a: mergeval.Opaque("ref1"), b: mergeval.Opaque("ref2"), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Equal(tt.b); got != tt.want {
				t.Errorf("Equal(%s, %s) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
			if got := tt.b.Equal(tt.a); got != tt.want {
				t.Errorf("Equal is not symmetric for %s, %s", tt.a, tt.b)
			}
		})
	}
}

func TestCloneIsolation(t *testing.T) {
	original := obj(t, "list", arr(obj(t, "id", "a", "v", 1)), "n", 5)
	clone := original.Clone()

	cloneObj, _ := clone.AsObject()
	cloneList, _ := cloneObj.Get("list")
	items, _ := cloneList.AsArray()
	elem, _ := items[0].AsObject()
	elem.Set("v", mergeval.Int(999))

	origObj, _ := original.AsObject()
	origList, _ := origObj.Get("list")
	origItems, _ := origList.AsArray()
	origElem, _ := origItems[0].AsObject()
	if v, _ := origElem.Get("v"); !v.Equal(mergeval.Int(1)) {
		t.Errorf("mutating clone leaked into original: v = %s", v)
	}
}

func TestNumberLiteralValidation(t *testing.T) {
	tests := []struct {
		text    string
		wantErr bool
	}{
		{text: "0"},
		{text: "-17"},
		{text: "3.25"},
		{text: "1e9"},
		{text: "9223372036854775807"},
		{text: "abc", wantErr: true},
		{text: "", wantErr: true},
		{text: "1.2.3", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			_, err := mergeval.Number(tt.text)
			if tt.wantErr && err == nil {
				t.Fatalf("Number(%q) = nil error, want failure", tt.text)
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("Number(%q) = %v", tt.text, err)
			}
		})
	}
}

func TestAsIntAndAsFloat(t *testing.T) {
	intVal := mergeval.Int(42)
	if n, ok := intVal.AsInt(); !ok || n != 42 {
		t.Errorf("AsInt() = %d, %v", n, ok)
	}
	if f, ok := intVal.AsFloat(); !ok || f != 42 {
		t.Errorf("AsFloat() = %v, %v", f, ok)
	}

	floatVal := mergeval.Float(2.5)
	if _, ok := floatVal.AsInt(); ok {
		t.Error("AsInt() on 2.5 should report false")
	}
	if f, ok := floatVal.AsFloat(); !ok || f != 2.5 {
		t.Errorf("AsFloat() = %v, %v", f, ok)
	}

	if _, ok := mergeval.String("7").AsInt(); ok {
		t.Error("AsInt() on a string should report false")
	}
}

func TestStringRendering(t *testing.T) {
	v := obj(t, "name", "web", "ports", arr(mergeval.Int(80), mergeval.Int(443)), "on", true)
	want := `{"name":"web","ports":[80,443],"on":true}`
	if got := v.String(); got != want {
		t.Errorf("String() = %s, want %s", got, want)
	}
}
