// Package graph renders the booking workflow as a Mermaid flowchart.
package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/concierge/internal/runtime"
	"github.com/aretw0/concierge/pkg/domain"
)

// Overlay marks session state on the diagram.
type Overlay struct {
	Visited []domain.Stage
	Current domain.Stage
}

// GenerateMermaid produces a Mermaid flowchart from workflow edges.
// Shapes:
// - New: ((Circle))
// - Completed: ([Stadium])
// - Free-text input: [/Parallelogram/]
// - Default: [Rectangle]
// Form submissions are drawn as dotted arrows.
func GenerateMermaid(edges []runtime.Edge, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	seen := make(map[domain.Stage]bool)
	declare := func(s domain.Stage) {
		if seen[s] {
			return
		}
		seen[s] = true
		opener, closer := shape(s)
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", sanitizeMermaidID(string(s)), opener, s, closer)
	}

	for _, e := range edges {
		declare(e.From)
		declare(e.To)
	}

	for _, e := range edges {
		from, to := sanitizeMermaidID(string(e.From)), sanitizeMermaidID(string(e.To))
		label := strings.ReplaceAll(e.Trigger, "\"", "'")
		if e.Trigger == runtime.TriggerForm {
			fmt.Fprintf(&sb, "    %s -. \"%s\" .-> %s\n", from, label, to)
			continue
		}
		fmt.Fprintf(&sb, "    %s -- \"%s\" --> %s\n", from, label, to)
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Black text stays readable on both light and dark themes.
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		styled := make(map[domain.Stage]bool)
		for _, s := range overlay.Visited {
			if s == "" || s == overlay.Current || styled[s] || !seen[s] {
				continue
			}
			styled[s] = true
			fmt.Fprintf(&sb, "    class %s visited;\n", sanitizeMermaidID(string(s)))
		}
		if overlay.Current != "" && seen[overlay.Current] {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(string(overlay.Current)))
		}
	}

	return sb.String()
}

func shape(s domain.Stage) (string, string) {
	switch s {
	case domain.StageNew:
		return "((", "))"
	case domain.StageBookingCompleted:
		return "([", "])"
	case domain.StageAwaitingDate, domain.StageAwaitingAddress:
		return "[/", "/]"
	default:
		return "[", "]"
	}
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	return s
}
