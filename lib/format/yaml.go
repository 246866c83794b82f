// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

package format

import (
	"bytes"
	"errors"
	"io"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/strata-config/strata/lib/errkind"
	"github.com/strata-config/strata/lib/mergeval"
)

// parseYAML converts a single-document YAML file through the yaml.v3
// node API, which preserves mapping key order.
func parseYAML(content []byte) (mergeval.Value, error) {
	dec := yaml.NewDecoder(bytes.NewReader(content))
	var doc yaml.Node
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return mergeval.Value{}, errkind.Parsef("empty YAML document")
		}
		return mergeval.Value{}, errkind.Parsef("invalid YAML document: %v", err)
	}
	var extra yaml.Node
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return mergeval.Value{}, errkind.Parsef("multi-document YAML is not supported")
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) != 1 {
		return mergeval.Value{}, errkind.Parsef("empty YAML document")
	}
	return fromYAMLNode(doc.Content[0])
}

func fromYAMLNode(node *yaml.Node) (mergeval.Value, error) {
	switch node.Kind {
	case yaml.AliasNode:
		return fromYAMLNode(node.Alias)
	case yaml.ScalarNode:
		return fromYAMLScalar(node)
	case yaml.SequenceNode:
		values := make([]mergeval.Value, 0, len(node.Content))
		for _, item := range node.Content {
			v, err := fromYAMLNode(item)
			if err != nil {
				return mergeval.Value{}, err
			}
			values = append(values, v)
		}
		return mergeval.Array(values), nil
	case yaml.MappingNode:
		obj := mergeval.NewObject()
		for i := 0; i+1 < len(node.Content); i += 2 {
			keyNode := node.Content[i]
			if keyNode.Kind != yaml.ScalarNode {
				return mergeval.Value{}, errkind.Parsef("YAML mapping key at line %d is not a scalar", keyNode.Line)
			}
			v, err := fromYAMLNode(node.Content[i+1])
			if err != nil {
				return mergeval.Value{}, err
			}
			obj.Set(keyNode.Value, v)
		}
		return obj.Value(), nil
	default:
		return mergeval.Value{}, errkind.Parsef("unsupported YAML node kind %d at line %d", node.Kind, node.Line)
	}
}

func fromYAMLScalar(node *yaml.Node) (mergeval.Value, error) {
	switch node.ShortTag() {
	case "!!null":
		return mergeval.Null(), nil
	case "!!bool":
		b, err := strconv.ParseBool(strings.ToLower(node.Value))
		if err != nil {
			return mergeval.Value{}, errkind.Parsef("YAML bool %q at line %d: %v", node.Value, node.Line, err)
		}
		return mergeval.Bool(b), nil
	case "!!int", "!!float":
		v, err := mergeval.Number(node.Value)
		if err != nil {
			return mergeval.Value{}, errkind.Parsef("YAML number %q at line %d: %v", node.Value, node.Line, err)
		}
		return v, nil
	default:
		// Strings, timestamps, and anything exotic carry through as
		// text; the merge engine treats them as plain scalars.
		return mergeval.String(node.Value), nil
	}
}

// encodeYAML renders a value through a yaml.v3 node tree, which emits
// mapping keys in the order the tree provides them.
func encodeYAML(v mergeval.Value) ([]byte, error) {
	node, err := toYAMLNode(v)
	if err != nil {
		return nil, err
	}
	out, err := yaml.Marshal(node)
	if err != nil {
		return nil, errkind.Parsef("encoding YAML: %v", err)
	}
	return out, nil
}

func toYAMLNode(v mergeval.Value) (*yaml.Node, error) {
	switch v.Type() {
	case mergeval.TypeNull:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}, nil
	case mergeval.TypeBool:
		b, _ := v.AsBool()
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(b)}, nil
	case mergeval.TypeNumber:
		text, _ := v.NumberText()
		tag := "!!float"
		if _, ok := v.AsInt(); ok {
			tag = "!!int"
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: text}, nil
	case mergeval.TypeString:
		s, _ := v.AsString()
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}, nil
	case mergeval.TypeArray:
		items, _ := v.AsArray()
		node := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range items {
			child, err := toYAMLNode(item)
			if err != nil {
				return nil, err
			}
			node.Content = append(node.Content, child)
		}
		return node, nil
	case mergeval.TypeObject:
		obj, _ := v.AsObject()
		node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, key := range obj.Keys() {
			member, _ := obj.Get(key)
			child, err := toYAMLNode(member)
			if err != nil {
				return nil, err
			}
			node.Content = append(node.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
				child,
			)
		}
		return node, nil
	default:
		return nil, errkind.Parsef("cannot encode %s value as YAML", v.Type())
	}
}
