package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// AliasEntry is one alias name and the project-relative path it points at.
type AliasEntry struct {
	Name string
	Path string
}

// AliasMap is an alias table in document order.
type AliasMap []AliasEntry

// UnmarshalYAML decodes a YAML mapping while keeping key order.
func (m *AliasMap) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: aliases must be a mapping of alias to path", node.Line)
	}
	out := make(AliasMap, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		k, v := node.Content[i], node.Content[i+1]
		if v.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: alias %q must map to a path string", v.Line, k.Value)
		}
		out = append(out, AliasEntry{Name: k.Value, Path: v.Value})
	}
	*m = out
	return nil
}

// MarshalYAML emits the entries as an ordered mapping.
func (m AliasMap) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, e := range m {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: e.Name},
			&yaml.Node{Kind: yaml.ScalarNode, Value: e.Path},
		)
	}
	return node, nil
}

// KindAliases binds an alias table to the service kind that uses it.
type KindAliases struct {
	Kind    ServiceKind
	Entries AliasMap
}

// Aliases holds the per-kind alias tables in document order.
type Aliases []KindAliases

// UnmarshalYAML decodes kind -> alias table, keeping both levels ordered.
func (a *Aliases) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: aliases must be a mapping of service kind to alias table", node.Line)
	}
	out := make(Aliases, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		k, v := node.Content[i], node.Content[i+1]
		var entries AliasMap
		if v.Kind != 0 && !(v.Kind == yaml.ScalarNode && v.Tag == "!!null") {
			if err := v.Decode(&entries); err != nil {
				return err
			}
		}
		out = append(out, KindAliases{Kind: ServiceKind(k.Value), Entries: entries})
	}
	*a = out
	return nil
}

// MarshalYAML emits the tables as an ordered mapping.
func (a Aliases) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, ka := range a {
		var value yaml.Node
		if err := value.Encode(ka.Entries); err != nil {
			return nil, err
		}
		node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: string(ka.Kind)}, &value)
	}
	return node, nil
}

// For returns the alias table for kind; a kind without an entry yields nil.
func (a Aliases) For(kind ServiceKind) AliasMap {
	for _, ka := range a {
		if ka.Kind == kind {
			return ka.Entries
		}
	}
	return nil
}
