package browser

import (
	"fmt"
	"strings"
)

// Filter selects which accessibility nodes become references.
type Filter string

const (
	// FilterInteractive keeps named nodes with an actionable role.
	FilterInteractive Filter = "interactive"
	// FilterAll keeps every named node that is not structural noise.
	FilterAll Filter = "all"
)

// ParseFilter validates a filter name; empty means interactive.
func ParseFilter(s string) (Filter, error) {
	switch Filter(strings.ToLower(strings.TrimSpace(s))) {
	case "", FilterInteractive:
		return FilterInteractive, nil
	case FilterAll:
		return FilterAll, nil
	default:
		return "", invalidParams("read_page", "unknown filter %q (use \"interactive\" or \"all\")", s)
	}
}

const (
	maxNameLength  = 80
	maxValueLength = 40
)

// skipRoles carry no actionable information and are dropped in every mode.
var skipRoles = map[string]bool{
	"generic":       true,
	"none":          true,
	"presentation":  true,
	"LineBreak":     true,
	"InlineTextBox": true,
	"StaticText":    true,
	"RootWebArea":   true,
	"Ignored":       true,
}

// interactiveRoles is the allow-list for FilterInteractive.
var interactiveRoles = map[string]bool{
	"button":           true,
	"link":             true,
	"textbox":          true,
	"searchbox":        true,
	"combobox":         true,
	"option":           true,
	"menuitem":         true,
	"menuitemcheckbox": true,
	"menuitemradio":    true,
	"treeitem":         true,
	"checkbox":         true,
	"radio":            true,
	"switch":           true,
	"slider":           true,
	"spinbutton":       true,
	"tab":              true,
}

// IsInteractiveRole reports whether role is on the actionable allow-list.
func IsInteractiveRole(role string) bool {
	return interactiveRoles[role]
}

// AXNode is the protocol-independent view of one accessibility node.
type AXNode struct {
	Role          string
	Name          string
	Value         string
	BackendNodeID int
	Ignored       bool

	Focused  bool
	Checked  string // "true", "false", "mixed" or ""
	Disabled bool
	Expanded bool
	Required bool
}

// Compress turns nodes (in document order) into the compact text block
// handed to the model, and repopulates refs with the surviving nodes.
func Compress(nodes []AXNode, pageURL, title string, filter Filter, refs *RefTable) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "URL: %s\n", pageURL)
	if title != "" {
		fmt.Fprintf(&sb, "Title: %s\n", title)
	}
	sb.WriteString("\n")

	count := 0
	refs.rebuild(func(add func(string, int, string) string) {
		for i := range nodes {
			n := &nodes[i]
			if !keepNode(n, filter) {
				continue
			}
			label := nodeLabel(n)
			token := add(label, n.BackendNodeID, selectorHint(n))
			fmt.Fprintf(&sb, "@%s: %s\n", token, label)
			count++
		}
	})

	if count == 0 {
		if filter == FilterAll {
			sb.WriteString("(no named elements found on this page)\n")
		} else {
			sb.WriteString("(no interactive elements found on this page)\n")
		}
	}
	return sb.String()
}

func keepNode(n *AXNode, filter Filter) bool {
	if n.Ignored || skipRoles[n.Role] || n.Role == "" {
		return false
	}
	if strings.TrimSpace(n.Name) == "" {
		return false
	}
	if filter != FilterAll && !interactiveRoles[n.Role] {
		return false
	}
	// nothing to target later
	return n.BackendNodeID != 0
}

// nodeLabel renders role, quoted name and state flags, e.g.
// `checkbox "Remember me" [checked, required]`.
func nodeLabel(n *AXNode) string {
	label := fmt.Sprintf("%s %q", n.Role, Truncate(collapseSpace(n.Name), maxNameLength))

	var flags []string
	if n.Focused {
		flags = append(flags, "focused")
	}
	switch n.Checked {
	case "true":
		flags = append(flags, "checked")
	case "mixed":
		flags = append(flags, "checked=mixed")
	}
	if n.Disabled {
		flags = append(flags, "disabled")
	}
	if n.Expanded {
		flags = append(flags, "expanded")
	}
	if n.Required {
		flags = append(flags, "required")
	}
	if v := collapseSpace(n.Value); v != "" && v != collapseSpace(n.Name) {
		flags = append(flags, fmt.Sprintf("value=%q", Truncate(v, maxValueLength)))
	}

	if len(flags) > 0 {
		label += " [" + strings.Join(flags, ", ") + "]"
	}
	return label
}

// selectorHint is a best-effort locator for humans reading the audit trail.
// It is not guaranteed to match and is never used for clicking.
func selectorHint(n *AXNode) string {
	name := strings.ReplaceAll(Truncate(collapseSpace(n.Name), maxNameLength), `"`, `\"`)
	return fmt.Sprintf(`[role="%s"][name="%s"]`, n.Role, name)
}

// Truncate returns s unchanged when it fits in max runes; otherwise the
// head plus "..." so the result is exactly max runes long.
func Truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
