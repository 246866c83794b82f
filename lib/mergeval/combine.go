// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

package mergeval

// Contribution is one layer's value for a path, labelled with the
// layer's identity (its reference path).
type Contribution struct {
	Layer string
	Value Value
}

// Conflict records a path where the merge policy declined to pick a
// winner: a strict path saw a same-type scalar change. Contributions
// carry every layer's value in precedence order so a resolver can
// choose.
type Conflict struct {
	// Path is the workspace-relative file path.
	Path string

	// KeyPath locates the conflicting scalar inside the document,
	// e.g. "server.port" or "listeners[https].port". Empty when the
	// whole document is the conflicting scalar.
	KeyPath string

	// Contributions lists every contributing layer's value, lowest
	// precedence first.
	Contributions []Contribution
}

// Fold merges an ordered sequence of per-layer values for one path,
// lowest precedence first, into a single value. A Null result means
// the path is explicitly deleted: a Null at any point terminates the
// fold, so no higher layer resurrects the path. When the policy marks
// the path strict and a same-type scalar changes between layers, Fold
// returns a Conflict instead of a value.
func Fold(path string, contribs []Contribution, policy Policy) (Value, *Conflict) {
	if len(contribs) == 0 {
		return Value{}, nil
	}
	strict := policy.Strict(path)

	merged := Normalize(contribs[0].Value)
	if merged.IsNull() {
		return Null(), nil
	}
	for _, c := range contribs[1:] {
		result, halt := combine(merged, c.Value, "", strict)
		if halt != nil {
			return Value{}, &Conflict{Path: path, KeyPath: halt.keyPath, Contributions: contribs}
		}
		if result.IsNull() {
			return Null(), nil
		}
		merged = result
	}
	return merged, nil
}

// Combine merges overlay onto base with the standard auto-resolve
// rules (no strict policy). Exposed for callers that merge outside a
// layered fold, such as preview tooling.
func Combine(base, overlay Value) Value {
	result, _ := combine(base, overlay, "", false)
	return result
}

// strictHalt signals that a strict path saw a same-type scalar change.
type strictHalt struct {
	keyPath string
}

// combine applies the binary merge operator. keyPath tracks the
// location inside the document for conflict reporting; strict enables
// conflict detection on same-type scalar changes.
func combine(base, overlay Value, keyPath string, strict bool) (Value, *strictHalt) {
	// Explicit deletion wins over everything, strict or not.
	if overlay.IsNull() {
		return Null(), nil
	}
	if base.IsZero() || base.IsNull() {
		return Normalize(overlay), nil
	}

	baseObj, baseIsObj := base.AsObject()
	overlayObj, overlayIsObj := overlay.AsObject()
	if baseIsObj && overlayIsObj {
		return combineObjects(baseObj, overlayObj, keyPath, strict)
	}

	baseArr, baseIsArr := base.AsArray()
	overlayArr, overlayIsArr := overlay.AsArray()
	if baseIsArr && overlayIsArr {
		return combineArrays(baseArr, overlayArr, keyPath, strict)
	}

	// Scalar against scalar, type mismatch, or opaque: overlay wins,
	// unless the path is strict and this is a same-type scalar change.
	if strict && base.Type() == overlay.Type() && isScalar(base.Type()) && !base.Equal(overlay) {
		return Value{}, &strictHalt{keyPath: keyPath}
	}
	return Normalize(overlay), nil
}

func isScalar(t Type) bool {
	return t == TypeBool || t == TypeNumber || t == TypeString
}

// combineObjects merges per key: base-only keys are kept, overlay-only
// keys are added, shared keys combine recursively. A combined result
// of Null removes the key entirely.
func combineObjects(base, overlay *Object, keyPath string, strict bool) (Value, *strictHalt) {
	result := NewObject()
	for _, key := range base.Keys() {
		baseMember, _ := base.Get(key)
		overlayMember, shared := overlay.Get(key)
		if !shared {
			result.Set(key, baseMember)
			continue
		}
		combined, halt := combine(baseMember, overlayMember, childKey(keyPath, key), strict)
		if halt != nil {
			return Value{}, halt
		}
		if combined.IsNull() {
			continue
		}
		result.Set(key, combined)
	}
	for _, key := range overlay.Keys() {
		if _, shared := base.Get(key); shared {
			continue
		}
		member, _ := overlay.Get(key)
		if member.IsNull() {
			// Deleting a key the base never had is a no-op.
			continue
		}
		result.Set(key, Normalize(member))
	}
	return result.Value(), nil
}

// combineArrays performs the keyed merge when every element of both
// arrays is an object with a usable identity, and wholesale
// replacement otherwise.
func combineArrays(base, overlay []Value, keyPath string, strict bool) (Value, *strictHalt) {
	baseIDs, baseKeyed := arrayIdentities(base)
	overlayIDs, overlayKeyed := arrayIdentities(overlay)
	if !baseKeyed || !overlayKeyed {
		return Normalize(Array(overlay)), nil
	}

	overlayByID := make(map[string]Value, len(overlay))
	for i, id := range overlayIDs {
		overlayByID[id] = overlay[i]
	}

	merged := make([]Value, 0, len(base)+len(overlay))
	for i, id := range baseIDs {
		overlayElem, shared := overlayByID[id]
		if !shared {
			merged = append(merged, base[i])
			continue
		}
		combined, halt := combine(base[i], overlayElem, childKey(keyPath, "["+id+"]"), strict)
		if halt != nil {
			return Value{}, halt
		}
		merged = append(merged, combined)
	}
	seen := make(map[string]bool, len(baseIDs))
	for _, id := range baseIDs {
		seen[id] = true
	}
	for i, id := range overlayIDs {
		if !seen[id] {
			merged = append(merged, Normalize(overlay[i]))
		}
	}
	return Array(merged), nil
}

// arrayIdentities extracts each element's identity: the "id" member
// when it is a non-empty string or a number, else the "name" member by
// the same rule. It reports false when any element is not an object,
// lacks an identity, or duplicates another element's identity, in
// which case the whole array is replaced instead of merged.
func arrayIdentities(items []Value) ([]string, bool) {
	ids := make([]string, len(items))
	seen := make(map[string]bool, len(items))
	for i, item := range items {
		obj, isObj := item.AsObject()
		if !isObj {
			return nil, false
		}
		id, ok := identityOf(obj)
		if !ok || seen[id] {
			return nil, false
		}
		seen[id] = true
		ids[i] = id
	}
	return ids, true
}

func identityOf(obj *Object) (string, bool) {
	for _, field := range [...]string{"id", "name"} {
		member, present := obj.Get(field)
		if !present {
			continue
		}
		if s, isStr := member.AsString(); isStr && s != "" {
			return field + "=" + s, true
		}
		if n, isNum := member.NumberText(); isNum {
			return field + "=" + n, true
		}
	}
	return "", false
}

func childKey(parent, key string) string {
	if parent == "" {
		return key
	}
	if len(key) > 0 && key[0] == '[' {
		return parent + key
	}
	return parent + "." + key
}

// Normalize strips deletion markers that have nothing left to delete:
// object members whose value is Null are removed recursively. Array
// elements are normalized in place but a Null element is kept, since a
// null inside an array is data, not a deletion marker.
func Normalize(v Value) Value {
	switch v.Type() {
	case TypeObject:
		obj, _ := v.AsObject()
		result := NewObject()
		for _, key := range obj.Keys() {
			member, _ := obj.Get(key)
			if member.IsNull() {
				continue
			}
			result.Set(key, Normalize(member))
		}
		return result.Value()
	case TypeArray:
		items, _ := v.AsArray()
		result := make([]Value, len(items))
		for i := range items {
			if items[i].IsNull() {
				result[i] = items[i]
				continue
			}
			result[i] = Normalize(items[i])
		}
		return Array(result)
	default:
		return v
	}
}
