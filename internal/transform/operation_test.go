package transform

import (
	"errors"
	"testing"

	"github.com/starford/fme/internal/apperr"
)

func TestNew_BindsArguments(t *testing.T) {
	op, err := New(OpReplace, []string{"foo", "bar"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := op.Apply("---\ntags:\n  - foo\n---\n")
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got != "---\ntags:\n  - bar\n---\n" {
		t.Errorf("Apply = %q", got)
	}
	if op.String() != "replace foo bar" {
		t.Errorf("String = %q", op.String())
	}
}

func TestNew_ArgsAreCopied(t *testing.T) {
	args := []string{"a"}
	op, err := New(OpAdd, args)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	args[0] = "mutated"
	got, err := op.Apply("body")
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if tags := mustTags(t, got); len(tags) != 1 || tags[0] != "a" {
		t.Errorf("tags = %v, want [a]", tags)
	}
}

func TestNew_Arity(t *testing.T) {
	cases := []struct {
		name string
		args []string
	}{
		{OpAdd, nil},
		{OpRemove, []string{}},
		{OpReplace, []string{"only"}},
		{OpReplace, []string{"a", "b", "c"}},
		{OpClear, []string{"x"}},
		{OpRemoveAliases, []string{"x"}},
		{OpRemoveID, []string{"x"}},
	}
	for _, tc := range cases {
		if _, err := New(tc.name, tc.args); !errors.Is(err, apperr.ErrInvalidArguments) {
			t.Errorf("New(%s, %v) err = %v, want ErrInvalidArguments", tc.name, tc.args, err)
		}
	}
}

func TestNew_Unknown(t *testing.T) {
	if _, err := New("rename", nil); !errors.Is(err, apperr.ErrUnknownOperation) {
		t.Errorf("err = %v, want ErrUnknownOperation", err)
	}
	var zero Operation
	if _, err := zero.Apply("x"); !errors.Is(err, apperr.ErrUnknownOperation) {
		t.Errorf("zero Operation err = %v, want ErrUnknownOperation", err)
	}
}

func TestNamesAndDescribe(t *testing.T) {
	names := Names()
	infos := Describe()
	if len(names) != 6 || len(infos) != 6 {
		t.Fatalf("expected 6 operations, got %d names and %d infos", len(names), len(infos))
	}
	for i, n := range names {
		if infos[i].Name != n {
			t.Errorf("Describe()[%d] = %q, want %q", i, infos[i].Name, n)
		}
		if _, err := New(n, make([]string, infos[i].MinArgs)); err != nil {
			t.Errorf("New(%s) with minimum arguments: %v", n, err)
		}
	}
}
