package transform

import (
	"fmt"
	"strings"

	"github.com/starford/fme/internal/apperr"
)

// Operation names.
const (
	OpAdd           = "add"
	OpRemove        = "remove"
	OpReplace       = "replace"
	OpClear         = "clear"
	OpRemoveAliases = "remove-aliases"
	OpRemoveID      = "remove-id"
)

// Func rewrites one document.
type Func func(doc string) (string, error)

// Info describes an operation for help texts and tool listings.
type Info struct {
	Name      string `json:"name"`
	ArgsUsage string `json:"args_usage,omitempty"`
	Summary   string `json:"summary"`
	MinArgs   int    `json:"min_args"`
	MaxArgs   int    `json:"max_args"` // -1 means unbounded
}

type definition struct {
	Info
	build func(args []string) Func
}

var definitions = []definition{
	{
		Info: Info{Name: OpAdd, ArgsUsage: "<tags...>", Summary: "Add tag(s) to notes", MinArgs: 1, MaxArgs: -1},
		build: func(args []string) Func {
			return func(doc string) (string, error) { return AddTags(doc, args) }
		},
	},
	{
		Info: Info{Name: OpRemove, ArgsUsage: "<tags...>", Summary: "Remove tag(s) from notes", MinArgs: 1, MaxArgs: -1},
		build: func(args []string) Func {
			return func(doc string) (string, error) { return RemoveTags(doc, args) }
		},
	},
	{
		Info: Info{Name: OpReplace, ArgsUsage: "<from> <to>", Summary: "Replace a tag with another", MinArgs: 2, MaxArgs: 2},
		build: func(args []string) Func {
			return func(doc string) (string, error) { return ReplaceTags(doc, args[0], args[1]) }
		},
	},
	{
		Info:  Info{Name: OpClear, Summary: "Remove all tags from notes"},
		build: func([]string) Func { return ClearTags },
	},
	{
		Info:  Info{Name: OpRemoveAliases, Summary: "Remove empty alias fields"},
		build: func([]string) Func { return RemoveBlankAliases },
	},
	{
		Info:  Info{Name: OpRemoveID, Summary: "Remove the id field"},
		build: func([]string) Func { return RemoveID },
	},
}

// Operation is a named transform bound to its arguments.
type Operation struct {
	Name string
	Args []string
	fn   Func
}

// New looks up the operation called name and binds args to it.
func New(name string, args []string) (Operation, error) {
	for _, d := range definitions {
		if d.Name != name {
			continue
		}
		if len(args) < d.MinArgs || (d.MaxArgs >= 0 && len(args) > d.MaxArgs) {
			return Operation{}, fmt.Errorf("%w: %s expects %s", apperr.ErrInvalidArguments, name, arity(d.Info))
		}
		bound := append([]string(nil), args...)
		return Operation{Name: name, Args: bound, fn: d.build(bound)}, nil
	}
	return Operation{}, fmt.Errorf("%w: %q", apperr.ErrUnknownOperation, name)
}

// Apply runs the operation on doc.
func (o Operation) Apply(doc string) (string, error) {
	if o.fn == nil {
		return "", fmt.Errorf("%w: operation %q is not initialised", apperr.ErrUnknownOperation, o.Name)
	}
	return o.fn(doc)
}

func (o Operation) String() string {
	if len(o.Args) == 0 {
		return o.Name
	}
	return o.Name + " " + strings.Join(o.Args, " ")
}

// Names lists every operation name in display order.
func Names() []string {
	out := make([]string, len(definitions))
	for i, d := range definitions {
		out[i] = d.Name
	}
	return out
}

// Describe returns the metadata of every operation in display order.
func Describe() []Info {
	out := make([]Info, len(definitions))
	for i, d := range definitions {
		out[i] = d.Info
	}
	return out
}

func arity(i Info) string {
	switch {
	case i.MaxArgs == 0:
		return "no arguments"
	case i.MaxArgs < 0:
		return fmt.Sprintf("at least %d argument(s)", i.MinArgs)
	case i.MinArgs == i.MaxArgs:
		return fmt.Sprintf("exactly %d arguments", i.MinArgs)
	default:
		return fmt.Sprintf("%d to %d arguments", i.MinArgs, i.MaxArgs)
	}
}
