// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

package mergeval_test

import (
	"testing"

	"github.com/strata-config/strata/lib/mergeval"
)

// obj builds an object value from alternating key, value pairs.
func obj(t *testing.T, pairs ...any) mergeval.Value {
	t.Helper()
	if len(pairs)%2 != 0 {
		t.Fatalf("obj needs key/value pairs, got %d items", len(pairs))
	}
	o := mergeval.NewObject()
	for i := 0; i < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			t.Fatalf("obj key %d is %T, want string", i/2, pairs[i])
		}
		o.Set(key, val(t, pairs[i+1]))
	}
	return o.Value()
}

// val lifts plain Go values into mergeval values for test brevity.
func val(t *testing.T, v any) mergeval.Value {
	t.Helper()
	switch x := v.(type) {
	case mergeval.Value:
		return x
	case nil:
		return mergeval.Null()
	case bool:
		return mergeval.Bool(x)
	case int:
		return mergeval.Int(int64(x))
	case string:
		return mergeval.String(x)
	default:
		t.Fatalf("val: unsupported type %T", v)
		return mergeval.Value{}
	}
}

func arr(items ...mergeval.Value) mergeval.Value {
	return mergeval.Array(items)
}

func foldAuto(t *testing.T, values ...mergeval.Value) mergeval.Value {
	t.Helper()
	contribs := make([]mergeval.Contribution, len(values))
	for i, v := range values {
		contribs[i] = mergeval.Contribution{Layer: "layer", Value: v}
	}
	merged, conflict := mergeval.Fold("test.json", contribs, mergeval.Policy{})
	if conflict != nil {
		t.Fatalf("unexpected conflict at %q", conflict.KeyPath)
	}
	return merged
}

func TestNullDeletesKey(t *testing.T) {
	base := obj(t, "k", "keep-me", "other", 1)
	overlay := obj(t, "k", nil, "added", true)

	merged := mergeval.Combine(base, overlay)
	want := obj(t, "other", 1, "added", true)
	if !merged.Equal(want) {
		t.Errorf("Combine() = %s, want %s", merged, want)
	}
}

func TestNullOnMissingKeyIsNoop(t *testing.T) {
	base := obj(t, "a", 1)
	overlay := obj(t, "ghost", nil)

	merged := mergeval.Combine(base, overlay)
	if !merged.Equal(base) {
		t.Errorf("Combine() = %s, want %s", merged, base)
	}
}

func TestKeyedArrayMerge(t *testing.T) {
	base := arr(obj(t, "id", "w", "p", 8080))
	overlay := arr(
		obj(t, "id", "w", "p", 9090),
		obj(t, "id", "c", "p", 6379),
	)

	merged := mergeval.Combine(base, overlay)
	want := arr(
		obj(t, "id", "w", "p", 9090),
		obj(t, "id", "c", "p", 6379),
	)
	if !merged.Equal(want) {
		t.Errorf("Combine() = %s, want %s", merged, want)
	}
}

func TestKeyedArrayMergePreservesBaseOrder(t *testing.T) {
	base := arr(
		obj(t, "id", "a", "v", 1),
		obj(t, "id", "b", "v", 2),
		obj(t, "id", "c", "v", 3),
	)
	// Overlay touches c before a; base ordering must still win.
	overlay := arr(
		obj(t, "id", "c", "v", 30),
		obj(t, "id", "a", "v", 10),
		obj(t, "id", "z", "v", 99),
	)

	merged := mergeval.Combine(base, overlay)
	want := arr(
		obj(t, "id", "a", "v", 10),
		obj(t, "id", "b", "v", 2),
		obj(t, "id", "c", "v", 30),
		obj(t, "id", "z", "v", 99),
	)
	if !merged.Equal(want) {
		t.Errorf("Combine() = %s, want %s", merged, want)
	}
}

func TestArrayFallbackWholesaleReplace(t *testing.T) {
	base := arr(obj(t, "id", "w"), obj(t, "p", 2))
	overlay := arr(obj(t, "id", "x"))

	merged := mergeval.Combine(base, overlay)
	if !merged.Equal(overlay) {
		t.Errorf("Combine() = %s, want overlay exactly %s", merged, overlay)
	}
}

func TestArrayFallbackOnNonObjectElement(t *testing.T) {
	base := arr(mergeval.String("plain"), obj(t, "id", "w"))
	overlay := arr(obj(t, "id", "w", "p", 1))

	merged := mergeval.Combine(base, overlay)
	if !merged.Equal(overlay) {
		t.Errorf("Combine() = %s, want overlay exactly %s", merged, overlay)
	}
}

func TestArrayFallbackOnDuplicateIdentity(t *testing.T) {
	base := arr(obj(t, "id", "w", "v", 1), obj(t, "id", "w", "v", 2))
	overlay := arr(obj(t, "id", "w", "v", 3))

	merged := mergeval.Combine(base, overlay)
	if !merged.Equal(overlay) {
		t.Errorf("Combine() = %s, want overlay exactly (ambiguous identity)", merged)
	}
}

func TestArrayIdentityNameFallback(t *testing.T) {
	base := arr(obj(t, "name", "web", "replicas", 1))
	overlay := arr(
		obj(t, "name", "web", "replicas", 3),
		obj(t, "name", "worker", "replicas", 2),
	)

	merged := mergeval.Combine(base, overlay)
	want := arr(
		obj(t, "name", "web", "replicas", 3),
		obj(t, "name", "worker", "replicas", 2),
	)
	if !merged.Equal(want) {
		t.Errorf("Combine() = %s, want %s", merged, want)
	}
}

func TestScalarOverlayWins(t *testing.T) {
	tests := []struct {
		name    string
		base    mergeval.Value
		overlay mergeval.Value
	}{
		{name: "string-string", base: mergeval.String("a"), overlay: mergeval.String("b")},
		{name: "number-number", base: mergeval.Int(1), overlay: mergeval.Int(2)},
		{name: "bool-bool", base: mergeval.Bool(false), overlay: mergeval.Bool(true)},
		{name: "type-mismatch", base: mergeval.String("a"), overlay: mergeval.Int(1)},
		{name: "object-to-scalar", base: mergeval.Int(1), overlay: mergeval.String("x")},
		{name: "opaque", base: mergeval.Opaque("aaaa"), overlay: mergeval.Opaque("bbbb")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			merged := mergeval.Combine(tt.base, tt.overlay)
			if !merged.Equal(tt.overlay) {
				t.Errorf("Combine() = %s, want %s", merged, tt.overlay)
			}
		})
	}
}

func TestNestedObjectRecursion(t *testing.T) {
	base := obj(t, "server", obj(t, "host", "localhost", "port", 8080), "debug", false)
	overlay := obj(t, "server", obj(t, "port", 9090, "tls", true))

	merged := mergeval.Combine(base, overlay)
	want := obj(t,
		"server", obj(t, "host", "localhost", "port", 9090, "tls", true),
		"debug", false,
	)
	if !merged.Equal(want) {
		t.Errorf("Combine() = %s, want %s", merged, want)
	}
}

func TestObjectOrderBaseFirstThenAppends(t *testing.T) {
	base := obj(t, "b", 1, "a", 2)
	overlay := obj(t, "z", 3, "a", 20)

	merged := mergeval.Combine(base, overlay)
	mergedObj, ok := merged.AsObject()
	if !ok {
		t.Fatalf("Combine() = %s, want object", merged)
	}
	wantKeys := []string{"b", "a", "z"}
	gotKeys := mergedObj.Keys()
	if len(gotKeys) != len(wantKeys) {
		t.Fatalf("keys = %v, want %v", gotKeys, wantKeys)
	}
	for i := range wantKeys {
		if gotKeys[i] != wantKeys[i] {
			t.Errorf("key %d = %q, want %q", i, gotKeys[i], wantKeys[i])
		}
	}
}

func TestFoldPrecedenceHighestWins(t *testing.T) {
	merged := foldAuto(t,
		obj(t, "port", 1000),
		obj(t, "port", 2000),
		obj(t, "port", 3000),
	)
	want := obj(t, "port", 3000)
	if !merged.Equal(want) {
		t.Errorf("Fold() = %s, want %s", merged, want)
	}
}

func TestFoldNullTerminates(t *testing.T) {
	// The middle layer deletes the path; the higher layer must not
	// resurrect it.
	contribs := []mergeval.Contribution{
		{Layer: "layers/global", Value: obj(t, "a", 1)},
		{Layer: "layers/mode/dev", Value: mergeval.Null()},
		{Layer: "layers/local", Value: obj(t, "a", 99)},
	}
	merged, conflict := mergeval.Fold("svc.json", contribs, mergeval.Policy{})
	if conflict != nil {
		t.Fatalf("unexpected conflict: %+v", conflict)
	}
	if !merged.IsNull() {
		t.Errorf("Fold() = %s, want null (deletion terminates the fold)", merged)
	}
}

func TestFoldEmptyContributions(t *testing.T) {
	merged, conflict := mergeval.Fold("x.json", nil, mergeval.Policy{})
	if conflict != nil {
		t.Fatalf("unexpected conflict: %+v", conflict)
	}
	if !merged.IsZero() {
		t.Errorf("Fold(no contribs) = %s, want absent", merged)
	}
}

func TestFoldNormalizesLeftoverNulls(t *testing.T) {
	// A null member in the lowest layer has nothing to delete and must
	// not leak into the merged output.
	merged := foldAuto(t,
		obj(t, "keep", 1, "ghost", nil),
		obj(t, "also", obj(t, "inner", nil, "real", 2)),
	)
	want := obj(t, "keep", 1, "also", obj(t, "real", 2))
	if !merged.Equal(want) {
		t.Errorf("Fold() = %s, want %s", merged, want)
	}
}

func TestStrictPathConflict(t *testing.T) {
	policy, err := mergeval.NewPolicy([]string{"secure/**"})
	if err != nil {
		t.Fatalf("NewPolicy: %v", err)
	}
	contribs := []mergeval.Contribution{
		{Layer: "layers/global", Value: obj(t, "key", "old")},
		{Layer: "layers/local", Value: obj(t, "key", "new")},
	}

	merged, conflict := mergeval.Fold("secure/auth.json", contribs, policy)
	if conflict == nil {
		t.Fatalf("Fold() = %s, want conflict on strict path", merged)
	}
	if conflict.Path != "secure/auth.json" {
		t.Errorf("conflict.Path = %q", conflict.Path)
	}
	if conflict.KeyPath != "key" {
		t.Errorf("conflict.KeyPath = %q, want %q", conflict.KeyPath, "key")
	}
	if len(conflict.Contributions) != 2 {
		t.Errorf("conflict carries %d contributions, want 2", len(conflict.Contributions))
	}
	if conflict.Contributions[0].Layer != "layers/global" {
		t.Errorf("contributions not in precedence order: %v", conflict.Contributions)
	}
}

func TestStrictPathAllowsEqualValues(t *testing.T) {
	policy, err := mergeval.NewPolicy([]string{"secure/*"})
	if err != nil {
		t.Fatalf("NewPolicy: %v", err)
	}
	contribs := []mergeval.Contribution{
		{Layer: "a", Value: obj(t, "key", "same")},
		{Layer: "b", Value: obj(t, "key", "same")},
	}
	merged, conflict := mergeval.Fold("secure/auth.json", contribs, policy)
	if conflict != nil {
		t.Fatalf("equal scalar values must not conflict: %+v", conflict)
	}
	if !merged.Equal(obj(t, "key", "same")) {
		t.Errorf("Fold() = %s", merged)
	}
}

func TestStrictPathAllowsTypeChange(t *testing.T) {
	policy, err := mergeval.NewPolicy([]string{"secure/*"})
	if err != nil {
		t.Fatalf("NewPolicy: %v", err)
	}
	contribs := []mergeval.Contribution{
		{Layer: "a", Value: obj(t, "key", "text")},
		{Layer: "b", Value: obj(t, "key", 42)},
	}
	merged, conflict := mergeval.Fold("secure/auth.json", contribs, policy)
	if conflict != nil {
		t.Fatalf("type mismatch auto-resolves even on strict paths: %+v", conflict)
	}
	if !merged.Equal(obj(t, "key", 42)) {
		t.Errorf("Fold() = %s", merged)
	}
}

func TestStrictPathAllowsAdditions(t *testing.T) {
	policy, err := mergeval.NewPolicy([]string{"**"})
	if err != nil {
		t.Fatalf("NewPolicy: %v", err)
	}
	contribs := []mergeval.Contribution{
		{Layer: "a", Value: obj(t, "base", 1)},
		{Layer: "b", Value: obj(t, "added", 2)},
	}
	merged, conflict := mergeval.Fold("anything.json", contribs, policy)
	if conflict != nil {
		t.Fatalf("pure additions must not conflict: %+v", conflict)
	}
	if !merged.Equal(obj(t, "base", 1, "added", 2)) {
		t.Errorf("Fold() = %s", merged)
	}
}

func TestStrictConflictInsideKeyedArray(t *testing.T) {
	policy, err := mergeval.NewPolicy([]string{"svc.json"})
	if err != nil {
		t.Fatalf("NewPolicy: %v", err)
	}
	contribs := []mergeval.Contribution{
		{Layer: "a", Value: arr(obj(t, "id", "w", "port", 8080))},
		{Layer: "b", Value: arr(obj(t, "id", "w", "port", 9090))},
	}
	_, conflict := mergeval.Fold("svc.json", contribs, policy)
	if conflict == nil {
		t.Fatal("want conflict for scalar change inside keyed array element")
	}
	if conflict.KeyPath != "[id=w].port" {
		t.Errorf("conflict.KeyPath = %q, want %q", conflict.KeyPath, "[id=w].port")
	}
}

func TestNumbersCompareNumerically(t *testing.T) {
	intForm := mergeval.Int(8080)
	floatForm, err := mergeval.Number("8080.0")
	if err != nil {
		t.Fatalf("Number: %v", err)
	}
	if !intForm.Equal(floatForm) {
		t.Error("8080 and 8080.0 should compare equal")
	}

	policy, err := mergeval.NewPolicy([]string{"*"})
	if err != nil {
		t.Fatalf("NewPolicy: %v", err)
	}
	contribs := []mergeval.Contribution{
		{Layer: "a", Value: obj(t, "p", intForm)},
		{Layer: "b", Value: obj(t, "p", floatForm)},
	}
	if _, conflict := mergeval.Fold("n.json", contribs, policy); conflict != nil {
		t.Errorf("numerically equal values must not conflict: %+v", conflict)
	}
}

func TestCombineDoesNotMutateInputs(t *testing.T) {
	base := obj(t, "nest", obj(t, "a", 1))
	overlay := obj(t, "nest", obj(t, "b", 2))
	baseSnapshot := base.Clone()
	overlaySnapshot := overlay.Clone()

	mergeval.Combine(base, overlay)

	if !base.Equal(baseSnapshot) {
		t.Error("Combine mutated base")
	}
	if !overlay.Equal(overlaySnapshot) {
		t.Error("Combine mutated overlay")
	}
}
