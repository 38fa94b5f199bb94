package noteservice

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/fme/internal/apperr"
	"github.com/starford/fme/internal/testutil"
	"github.com/starford/fme/internal/transform"
)

func TestFrontmatter(t *testing.T) {
	_, store := testutil.TestNotes(t, map[string]string{
		"full.md":   "---\nid: n1\naliases: []\ntags:\n  - a\ntitle: Hello\n---\nbody\n",
		"plain.md":  "no header\n",
		"broken.md": malformed,
	})
	svc := NewService(store, WithLogger(quietLogger()))

	fm, err := svc.Frontmatter(context.Background(), "full.md")
	if err != nil {
		t.Fatalf("Frontmatter: %v", err)
	}
	id := "n1"
	want := &NoteFrontmatter{
		Path:           "full.md",
		HasFrontmatter: true,
		ID:             &id,
		Aliases:        []string{},
		Tags:           []string{"a"},
		Other:          map[string]any{"title": "Hello"},
	}
	if diff := cmp.Diff(want, fm); diff != "" {
		t.Errorf("frontmatter mismatch (-want +got):\n%s", diff)
	}

	fm, err = svc.Frontmatter(context.Background(), "plain.md")
	if err != nil {
		t.Fatalf("Frontmatter plain: %v", err)
	}
	if fm.HasFrontmatter || fm.ID != nil || fm.Tags != nil {
		t.Errorf("plain = %+v", fm)
	}

	if _, err := svc.Frontmatter(context.Background(), "broken.md"); !errors.Is(err, apperr.ErrMalformedFrontmatter) {
		t.Errorf("broken err = %v, want ErrMalformedFrontmatter", err)
	}
}

func TestPreview(t *testing.T) {
	op := mustOp(t, transform.OpAdd, "a")
	out, changed, err := Preview(op, tagged)
	if err != nil || changed || out != tagged {
		t.Errorf("existing tag: out = %q, changed = %v, err = %v", out, changed, err)
	}

	out, changed, err = Preview(mustOp(t, transform.OpAdd, "b"), tagged)
	if err != nil || !changed || out != taggedAB {
		t.Errorf("new tag: out = %q, changed = %v, err = %v", out, changed, err)
	}

	if _, _, err := Preview(op, malformed); !errors.Is(err, apperr.ErrMalformedFrontmatter) {
		t.Errorf("malformed err = %v", err)
	}
}
