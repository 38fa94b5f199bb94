package noteservice

import (
	"context"
	"errors"

	"github.com/starford/fme/internal/apperr"
	"github.com/starford/fme/internal/frontmatter"
	"github.com/starford/fme/internal/transform"
)

// NoteFrontmatter is the decoded header of one note. Absent fields are nil;
// present but empty sequences are empty slices.
type NoteFrontmatter struct {
	Path           string         `json:"path"`
	HasFrontmatter bool           `json:"has_frontmatter"`
	ID             *string        `json:"id"`
	Aliases        []string       `json:"aliases"`
	Tags           []string       `json:"tags"`
	Other          map[string]any `json:"other,omitempty"`
}

// Frontmatter reads and decodes the header of the note at path. A note
// without a header is not an error.
func (s *Service) Frontmatter(_ context.Context, path string) (*NoteFrontmatter, error) {
	data, err := s.store.Read(path)
	if err != nil {
		return nil, err
	}
	out := &NoteFrontmatter{Path: path}

	h, _, err := frontmatter.Parse(string(data))
	if errors.Is(err, apperr.ErrNoFrontmatter) {
		return out, nil
	}
	if err != nil {
		return nil, err
	}

	out.HasFrontmatter = true
	if id, ok := h.ID.Get(); ok {
		out.ID = &id
	}
	out.Aliases = presentSlice(h.Aliases)
	out.Tags = presentSlice(h.Tags)
	if len(h.Other) > 0 {
		if out.Other, err = h.OtherValues(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Preview applies op to content without touching any file.
func Preview(op transform.Operation, content string) (string, bool, error) {
	out, err := op.Apply(content)
	if err != nil {
		return "", false, err
	}
	return out, out != content, nil
}

func presentSlice(o frontmatter.Optional[[]string]) []string {
	v, ok := o.Get()
	if !ok {
		return nil
	}
	return nonNilSlice(v)
}
