// Package stepdoc extracts and renders a step's embedded POD-style
// documentation header for --step_help. This is bespoke to the step
// source format named in spec.md §6 ("structured POD-style header");
// no pack library parses it, so it is implemented directly against
// the standard library (justified in DESIGN.md).
package stepdoc

import (
	"fmt"
	"strings"
)

// sections lists the headers --step_help renders, in display order.
var sections = []string{"NAME", "DESCRIPTION", "OPTIONS", "EXAMPLE", "COPYRIGHT"}

// Render extracts the NAME/DESCRIPTION/OPTIONS/EXAMPLE/COPYRIGHT
// "=head1" blocks from source and renders them as plain text. A
// source with no recognizable POD header renders as a single
// "(no documentation)" line rather than an error, since --step_help is
// a best-effort convenience, not a contract any step must satisfy.
func Render(filename string, source []byte) string {
	blocks := parse(string(source))

	var b strings.Builder
	fmt.Fprintf(&b, "=== %s ===\n", filename)

	found := false
	for _, name := range sections {
		text, ok := blocks[name]
		if !ok {
			continue
		}
		found = true
		fmt.Fprintf(&b, "\n%s\n", name)
		b.WriteString(text)
		b.WriteString("\n")
	}
	if !found {
		b.WriteString("(no documentation)\n")
	}
	return b.String()
}

// parse splits text into the body text of each "=head1 NAME" ...
// "=head1 NEXT"/"=cut" block.
func parse(text string) map[string]string {
	blocks := make(map[string]string)
	lines := strings.Split(text, "\n")

	var current string
	var body []string
	flush := func() {
		if current != "" {
			blocks[current] = strings.TrimSpace(strings.Join(body, "\n"))
		}
		body = nil
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "=head1 "):
			flush()
			current = strings.TrimSpace(strings.TrimPrefix(trimmed, "=head1 "))
		case trimmed == "=cut":
			flush()
			current = ""
		case current != "":
			body = append(body, line)
		}
	}
	flush()
	return blocks
}
