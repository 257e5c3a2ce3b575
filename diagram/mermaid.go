package diagram

import (
	"fmt"
	"regexp"
	"strings"
)

const maxTitleWidth = 40

// statusClass maps a record status to the Mermaid CSS class the renderer
// declares for it (§4.8 "maps status to CSS classes").
var statusClass = map[string]string{
	"active":    "statusActive",
	"planning":  "statusPlanning",
	"review":    "statusReview",
	"completed": "statusCompleted",
	"archived":  "statusArchived",
	"blocked":   "statusBlocked",
	"paused":    "statusPaused",
}

var unsafeIDChars = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// sanitizeID turns a record ID into a syntax-safe Mermaid node identifier.
// Mermaid node IDs may not contain most punctuation, so every disallowed
// rune is replaced with an underscore; a leading digit is prefixed since
// Mermaid node IDs are friendliest starting with a letter.
func sanitizeID(id string) string {
	safe := unsafeIDChars.ReplaceAllString(id, "_")
	if safe == "" {
		return "n"
	}
	if safe[0] >= '0' && safe[0] <= '9' {
		safe = "n" + safe
	}
	return safe
}

// wrapTitle truncates a title to maxTitleWidth, appending an ellipsis, and
// escapes characters Mermaid's node-label quoting doesn't tolerate.
func wrapTitle(title string) string {
	title = strings.ReplaceAll(title, `"`, "'")
	title = strings.ReplaceAll(title, "\n", " ")
	runes := []rune(title)
	if len(runes) > maxTitleWidth {
		title = string(runes[:maxTitleWidth-1]) + "…"
	}
	return title
}

func nodeShape(n Node) (open, close string) {
	if n.Kind == NodeCycle {
		return "{{\"", "\"}}"
	}
	return "[\"", "\"]"
}

// RenderMermaid renders a Graph as Mermaid flowchart text (§4.8): node IDs
// sanitized, titles wrapped, cycles drawn as hexagons and tasks as
// rectangles, and each node assigned a CSS class from its status.
func RenderMermaid(g Graph) (string, error) {
	var b strings.Builder
	b.WriteString("flowchart TD\n")

	classAssignments := map[string][]string{}

	for _, n := range g.Nodes {
		id := sanitizeID(n.ID)
		open, close := nodeShape(n)
		fmt.Fprintf(&b, "  %s%s%s%s\n", id, open, wrapTitle(n.Title), close)
		if class, ok := statusClass[n.Status]; ok {
			classAssignments[class] = append(classAssignments[class], id)
		}
	}

	for _, e := range g.Edges {
		from := sanitizeID(e.From)
		to := sanitizeID(e.To)
		arrow := "-->"
		if e.Kind == EdgeChildCycle {
			arrow = "-.->"
		}
		fmt.Fprintf(&b, "  %s %s %s\n", from, arrow, to)
	}

	for class, ids := range classAssignments {
		fmt.Fprintf(&b, "  class %s %s\n", strings.Join(ids, ","), class)
	}

	out := b.String()
	if err := validateMermaid(out); err != nil {
		return "", err
	}
	return out, nil
}

// validateMermaid is a cheap sanity check, not a full grammar: it rejects
// output the renderer should never produce (empty text, an unterminated
// quoted label, or a header mismatch).
func validateMermaid(text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("diagram: rendered empty Mermaid text")
	}
	if !strings.HasPrefix(text, "flowchart TD\n") {
		return fmt.Errorf("diagram: rendered text missing flowchart header")
	}
	if strings.Count(text, "\"")%2 != 0 {
		return fmt.Errorf("diagram: rendered text has an unterminated quoted label")
	}
	return nil
}
