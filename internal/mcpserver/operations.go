package mcpserver

import (
	"fmt"
	"strings"

	"github.com/starford/fme/internal/transform"
)

const operationsURI = "fme://operations"

// OperationsGuide renders the operation reference served as the
// fme://operations resource.
func OperationsGuide() string {
	var b strings.Builder
	b.WriteString("# fme operations\n\n")
	b.WriteString("Every operation edits only the YAML frontmatter block delimited by `---` lines ")
	b.WriteString("at the top of a note. The body is never touched and a note whose header would ")
	b.WriteString("not change is not rewritten.\n\n")
	b.WriteString("| Operation | Arguments | Effect |\n|---|---|---|\n")
	for _, info := range transform.Describe() {
		args := info.ArgsUsage
		if args == "" {
			args = "none"
		}
		fmt.Fprintf(&b, "| `%s` | %s | %s |\n", info.Name, args, info.Summary)
	}
	b.WriteString(`
## Rules

1. ` + "`add`" + ` on a note without frontmatter creates one holding an empty ` + "`id`" + `, empty ` + "`aliases`" + ` and the tags.
2. Tags are never duplicated. Removing the last tag removes the ` + "`tags`" + ` field.
3. ` + "`replace <from> <to>`" + ` removes every tag contained in ` + "`from`" + ` as a substring, then adds ` + "`to`" + `.
4. ` + "`remove-aliases`" + ` removes the ` + "`aliases`" + ` field only when it is an empty list.
5. Notes with malformed YAML are reported and left unchanged.
6. Keys other than ` + "`id`" + `, ` + "`aliases`" + ` and ` + "`tags`" + ` keep their order and values.
`)
	return b.String()
}
