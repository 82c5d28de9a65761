package prepare

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// CopySections extracts the dotted sections (for example "server.tls") from a
// YAML document into a new document with the same nesting. Sections that do
// not exist are reported in missing and otherwise ignored.
func CopySections(src []byte, sections []string) (out []byte, missing []string, err error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(src, &doc); err != nil {
		return nil, nil, fmt.Errorf("parse service config: %w", err)
	}

	var root *yaml.Node
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		root = doc.Content[0]
	}

	result := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, section := range sections {
		keys := strings.Split(section, ".")
		value := lookup(root, keys)
		if value == nil {
			missing = append(missing, section)
			continue
		}
		insert(result, keys, value)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(result); err != nil {
		return nil, nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, nil, err
	}
	return buf.Bytes(), missing, nil
}

func lookup(n *yaml.Node, keys []string) *yaml.Node {
	for _, k := range keys {
		n = mappingValue(n, k)
		if n == nil {
			return nil
		}
	}
	return n
}

func mappingValue(n *yaml.Node, key string) *yaml.Node {
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return nil
}

// insert sets keys to value below root, creating intermediate mappings.
func insert(root *yaml.Node, keys []string, value *yaml.Node) {
	n := root
	for i, k := range keys {
		last := i == len(keys)-1
		idx := -1
		for j := 0; j+1 < len(n.Content); j += 2 {
			if n.Content[j].Value == k {
				idx = j + 1
				break
			}
		}

		if last {
			if idx >= 0 {
				n.Content[idx] = value
			} else {
				n.Content = append(n.Content, scalar(k), value)
			}
			return
		}

		if idx < 0 || n.Content[idx].Kind != yaml.MappingNode {
			child := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
			if idx < 0 {
				n.Content = append(n.Content, scalar(k), child)
			} else {
				n.Content[idx] = child
			}
			n = child
			continue
		}
		n = n.Content[idx]
	}
}

func scalar(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
}
