package frontmatter

import "gopkg.in/yaml.v3"

// Optional is a header field that is either present with a value or absent.
// Absent fields are never written out.
type Optional[T any] struct {
	value T
	set   bool
}

// Some returns a present field holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{value: v, set: true}
}

// None returns an absent field.
func None[T any]() Optional[T] {
	return Optional[T]{}
}

// Get returns the value and whether the field is present.
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.set
}

// IsSet reports whether the field is present.
func (o Optional[T]) IsSet() bool {
	return o.set
}

// Value returns the value, or the zero value when absent.
func (o Optional[T]) Value() T {
	return o.value
}

// Field is a header entry other than id, aliases and tags. Value keeps the
// decoded node so structure and scalar style survive a rewrite.
type Field struct {
	Key   string
	Value *yaml.Node

	key *yaml.Node // source key node, keeps attached comments
}

// Header is the typed view of a frontmatter block.
type Header struct {
	ID      Optional[string]
	Aliases Optional[[]string]
	Tags    Optional[[]string]

	// Other lists the remaining keys in source order.
	Other []Field

	// CRLF writes the block with \r\n line breaks.
	CRLF bool

	src sourceNodes
}

// sourceNodes remembers the decoded scalars of the known fields, so a value
// that survives an edit is written back in its original style.
type sourceNodes struct {
	id      *yaml.Node
	aliases map[string]*yaml.Node
	tags    map[string]*yaml.Node
}

// Lookup returns the node stored under key in Other.
func (h *Header) Lookup(key string) (*yaml.Node, bool) {
	for _, f := range h.Other {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// OtherValues decodes Other into plain Go values keyed by field name.
func (h *Header) OtherValues() (map[string]any, error) {
	out := make(map[string]any, len(h.Other))
	for _, f := range h.Other {
		var v any
		if err := f.Value.Decode(&v); err != nil {
			return nil, err
		}
		out[f.Key] = v
	}
	return out, nil
}
