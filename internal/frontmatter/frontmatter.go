// Package frontmatter splits a markdown document into its YAML header and body,
// and writes headers back in canonical form.
//
// A document carries a header only when its first line is the delimiter and a
// later line closes the block with the same delimiter:
//
//	---
//	id: 20240102
//	tags:
//	  - go
//	---
//	body...
package frontmatter

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/fme/internal/apperr"
)

// Delimiter opens and closes a frontmatter block.
const Delimiter = "---"

const (
	keyID      = "id"
	keyAliases = "aliases"
	keyTags    = "tags"
)

// Parse decodes the leading frontmatter block of doc. The returned body is
// everything after the closing delimiter line, byte for byte.
//
// It fails with apperr.ErrNoFrontmatter when doc has no complete block, and
// with an error wrapping apperr.ErrMalformedFrontmatter when the block is not
// a YAML mapping or a known field has the wrong shape.
func Parse(doc string) (*Header, string, error) {
	block, body, ok := split(doc)
	if !ok {
		return nil, "", apperr.ErrNoFrontmatter
	}
	h, err := decode(block)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", apperr.ErrMalformedFrontmatter, err)
	}
	h.CRLF = HasCRLF(doc)
	return h, body, nil
}

// HasCRLF reports whether the first line of doc ends with \r\n.
func HasCRLF(doc string) bool {
	first, _, found := strings.Cut(doc, "\n")
	return found && strings.HasSuffix(first, "\r")
}

// split returns the raw YAML between the delimiter lines and the body after them.
func split(doc string) (block, body string, ok bool) {
	first, rest, found := strings.Cut(doc, "\n")
	if !found || !isDelimiter(first) {
		return "", "", false
	}
	pos := 0
	for {
		line, after, more := strings.Cut(rest[pos:], "\n")
		if isDelimiter(line) {
			return rest[:pos], after, true
		}
		if !more {
			return "", "", false
		}
		pos += len(line) + 1
	}
}

func isDelimiter(line string) bool {
	return strings.TrimRight(line, " \t\r") == Delimiter
}

func decode(block string) (*Header, error) {
	h := &Header{}

	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(block), &doc); err != nil {
		return nil, err
	}
	if len(doc.Content) == 0 {
		return h, nil
	}
	root := doc.Content[0]
	if isNull(root) {
		return h, nil
	}
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: header is a %s, not a mapping", root.Line, kindName(root.Kind))
	}

	seen := make(map[string]struct{}, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		k, v := root.Content[i], root.Content[i+1]
		if k.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("line %d: keys must be scalars", k.Line)
		}
		if _, dup := seen[k.Value]; dup {
			return nil, fmt.Errorf("line %d: duplicate key %q", k.Line, k.Value)
		}
		seen[k.Value] = struct{}{}

		var err error
		switch k.Value {
		case keyID:
			h.ID, err = decodeString(k.Value, v)
			if h.ID.IsSet() {
				h.src.id = v
			}
		case keyAliases:
			h.Aliases, err = decodeList(k.Value, v)
			h.src.aliases = itemNodes(v)
		case keyTags:
			h.Tags, err = decodeList(k.Value, v)
			h.src.tags = itemNodes(v)
		default:
			h.Other = append(h.Other, Field{Key: k.Value, Value: v, key: k})
		}
		if err != nil {
			return nil, err
		}
	}
	return h, nil
}

func decodeString(key string, n *yaml.Node) (Optional[string], error) {
	if isNull(n) {
		return None[string](), nil
	}
	if n.Kind != yaml.ScalarNode {
		return None[string](), fmt.Errorf("line %d: %s must be a string, found a %s", n.Line, key, kindName(n.Kind))
	}
	return Some(n.Value), nil
}

func decodeList(key string, n *yaml.Node) (Optional[[]string], error) {
	if isNull(n) {
		return None[[]string](), nil
	}
	if n.Kind != yaml.SequenceNode {
		return None[[]string](), fmt.Errorf("line %d: %s must be a list of strings, found a %s", n.Line, key, kindName(n.Kind))
	}
	out := make([]string, 0, len(n.Content))
	for _, item := range n.Content {
		if item.Kind != yaml.ScalarNode || isNull(item) {
			return None[[]string](), fmt.Errorf("line %d: %s must be a list of strings", item.Line, key)
		}
		out = append(out, item.Value)
	}
	return Some(out), nil
}

// itemNodes indexes the scalar items of a sequence by value. The first
// occurrence wins.
func itemNodes(n *yaml.Node) map[string]*yaml.Node {
	if n.Kind != yaml.SequenceNode {
		return nil
	}
	out := make(map[string]*yaml.Node, len(n.Content))
	for _, item := range n.Content {
		if _, ok := out[item.Value]; !ok && item.Kind == yaml.ScalarNode {
			out[item.Value] = item
		}
	}
	return out
}

func isNull(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.ShortTag() == "!!null"
}

func kindName(k yaml.Kind) string {
	switch k {
	case yaml.ScalarNode:
		return "scalar"
	case yaml.SequenceNode:
		return "list"
	case yaml.MappingNode:
		return "mapping"
	case yaml.AliasNode:
		return "alias"
	default:
		return "document"
	}
}

// Serialize encodes h as a fenced frontmatter block. Fields are written in
// the order id, aliases, tags, then Other; absent fields are omitted. A header
// without fields yields an empty block. Known values that were parsed from a
// document keep their original scalar style.
func Serialize(h *Header) (string, error) {
	root := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	if id, ok := h.ID.Get(); ok {
		root.Content = append(root.Content, stringNode(keyID), scalarNode(id, h.src.id))
	}
	if aliases, ok := h.Aliases.Get(); ok {
		root.Content = append(root.Content, stringNode(keyAliases), listNode(aliases, h.src.aliases))
	}
	if tags, ok := h.Tags.Get(); ok {
		root.Content = append(root.Content, stringNode(keyTags), listNode(tags, h.src.tags))
	}
	for _, f := range h.Other {
		k := f.key
		if k == nil || k.Value != f.Key {
			k = stringNode(f.Key)
		}
		root.Content = append(root.Content, k, f.Value)
	}

	var sb strings.Builder
	sb.WriteString(Delimiter + "\n")
	if len(root.Content) > 0 {
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(root); err != nil {
			return "", fmt.Errorf("frontmatter: encode header: %w", err)
		}
		if err := enc.Close(); err != nil {
			return "", fmt.Errorf("frontmatter: encode header: %w", err)
		}
		sb.WriteString(indentSequenceItems(buf.String()))
	}
	sb.WriteString(Delimiter + "\n")
	if h.CRLF {
		return strings.ReplaceAll(sb.String(), "\n", "\r\n"), nil
	}
	return sb.String(), nil
}

// Render serializes h and appends body unchanged.
func Render(h *Header, body string) (string, error) {
	head, err := Serialize(h)
	if err != nil {
		return "", err
	}
	return head + body, nil
}

// indentSequenceItems shifts list items that sit flush with their key two
// spaces to the right and makes sure the block ends with a newline.
func indentSequenceItems(yml string) string {
	lines := strings.Split(strings.TrimSuffix(yml, "\n"), "\n")
	for i, line := range lines {
		if strings.HasPrefix(line, "- ") || line == "-" {
			lines[i] = "  " + line
		}
	}
	return strings.Join(lines, "\n") + "\n"
}

func stringNode(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}

// scalarNode returns a copy of src when it still holds s, and a plain string
// node otherwise.
func scalarNode(s string, src *yaml.Node) *yaml.Node {
	if src == nil || src.Kind != yaml.ScalarNode || src.Value != s {
		return stringNode(s)
	}
	n := *src
	n.Anchor = ""
	return &n
}

func listNode(items []string, src map[string]*yaml.Node) *yaml.Node {
	n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	for _, s := range items {
		n.Content = append(n.Content, scalarNode(s, src[s]))
	}
	return n
}
