// Package transform implements the frontmatter edits applied to notes.
//
// Every function takes a whole document and returns the new document. When
// nothing changes the input string is returned as is, so callers can compare
// the result with the input to decide whether a file needs rewriting.
package transform

import (
	"errors"
	"slices"
	"strings"

	"github.com/starford/fme/internal/apperr"
	"github.com/starford/fme/internal/frontmatter"
)

// AddTags appends every tag not already present. A document without
// frontmatter gets a new block holding an empty id, empty aliases and the tags.
// An empty tags list changes nothing but still reports malformed frontmatter.
func AddTags(doc string, tags []string) (string, error) {
	h, body, err := frontmatter.Parse(doc)
	if errors.Is(err, apperr.ErrNoFrontmatter) {
		if len(tags) == 0 {
			return doc, nil
		}
		h = &frontmatter.Header{
			ID:      frontmatter.Some(""),
			Aliases: frontmatter.Some([]string{}),
			Tags:    frontmatter.Some(appendMissing(nil, tags)),
			CRLF:    frontmatter.HasCRLF(doc),
		}
		return frontmatter.Render(h, doc)
	}
	if err != nil {
		return "", err
	}

	current := h.Tags.Value()
	updated := appendMissing(current, tags)
	if len(updated) == len(current) {
		return doc, nil
	}
	h.Tags = frontmatter.Some(updated)
	return frontmatter.Render(h, body)
}

// RemoveTags drops every tag listed in tags. The field is removed when no tag
// is left.
func RemoveTags(doc string, tags []string) (string, error) {
	return edit(doc, func(h *frontmatter.Header) bool {
		current, ok := h.Tags.Get()
		if !ok {
			return false
		}
		kept := slices.DeleteFunc(slices.Clone(current), func(t string) bool {
			return slices.Contains(tags, t)
		})
		if len(kept) == len(current) {
			return false
		}
		h.Tags = someOrNone(kept)
		return true
	})
}

// ReplaceTags removes every tag that occurs as a substring of from, then adds
// to if anything was removed. Note the direction: tag "proj" is removed by
// from "project", while tag "project" is not removed by from "proj".
func ReplaceTags(doc, from, to string) (string, error) {
	return edit(doc, func(h *frontmatter.Header) bool {
		current, ok := h.Tags.Get()
		if !ok {
			return false
		}
		kept := slices.DeleteFunc(slices.Clone(current), func(t string) bool {
			return strings.Contains(from, t)
		})
		if len(kept) == len(current) {
			return false
		}
		h.Tags = frontmatter.Some(appendMissing(kept, []string{to}))
		return true
	})
}

// ClearTags removes the tags field.
func ClearTags(doc string) (string, error) {
	return edit(doc, func(h *frontmatter.Header) bool {
		if !h.Tags.IsSet() {
			return false
		}
		h.Tags = frontmatter.None[[]string]()
		return true
	})
}

// RemoveBlankAliases removes the aliases field when it is present and empty.
func RemoveBlankAliases(doc string) (string, error) {
	return edit(doc, func(h *frontmatter.Header) bool {
		aliases, ok := h.Aliases.Get()
		if !ok || len(aliases) > 0 {
			return false
		}
		h.Aliases = frontmatter.None[[]string]()
		return true
	})
}

// RemoveID removes the id field.
func RemoveID(doc string) (string, error) {
	return edit(doc, func(h *frontmatter.Header) bool {
		if !h.ID.IsSet() {
			return false
		}
		h.ID = frontmatter.None[string]()
		return true
	})
}

// edit parses doc, lets fn mutate the header and re-renders the document when
// fn reports a change. Documents without frontmatter pass through untouched.
func edit(doc string, fn func(h *frontmatter.Header) bool) (string, error) {
	h, body, err := frontmatter.Parse(doc)
	if errors.Is(err, apperr.ErrNoFrontmatter) {
		return doc, nil
	}
	if err != nil {
		return "", err
	}
	if !fn(h) {
		return doc, nil
	}
	return frontmatter.Render(h, body)
}

// appendMissing returns a copy of current followed by each tag of add that is
// not yet in the result.
func appendMissing(current, add []string) []string {
	out := slices.Clone(current)
	for _, t := range add {
		if !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	return out
}

func someOrNone(tags []string) frontmatter.Optional[[]string] {
	if len(tags) == 0 {
		return frontmatter.None[[]string]()
	}
	return frontmatter.Some(tags)
}
