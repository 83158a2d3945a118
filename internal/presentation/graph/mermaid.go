package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/sight/pkg/appconfig"
	"github.com/aretw0/sight/pkg/service"
)

// GraphOverlay contains runtime state to visualize on the graph.
type GraphOverlay struct {
	StartedServices []string
	BoundObjects    []string
}

// GenerateMermaid produces a Mermaid flowchart of a configuration.
// It applies semantic shapes:
// - Service: [[Subroutine]]
// - Deferred object: {{Hexagon}}
// - Referenced object: [(Cylinder)]
// - Preference object: [/Parallelogram/]
// - Default object: [Rectangle]
// Bindings are solid arrows in data flow direction, channels are dotted arrows labeled with
// their signal and slot keys. Overlay styles are applied if provided.
func GenerateMermaid(cfg *appconfig.Config, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph LR\n")

	for _, o := range cfg.Objects() {
		opener, closer := "[", "]"
		switch o.Source {
		case appconfig.SourceDeferred:
			opener, closer = "{{", "}}"
		case appconfig.SourceRef:
			opener, closer = "[(", ")]"
		case appconfig.SourcePreference:
			opener, closer = "[/", "/]"
		}
		fmt.Fprintf(&sb, "    %s%s\"%s <br/> %s\"%s\n", sanitizeMermaidID(o.UID), opener, o.UID, o.Type, closer)
	}

	for _, s := range cfg.Services() {
		safeID := sanitizeMermaidID(s.UID)
		fmt.Fprintf(&sb, "    %s[[\"%s <br/> %s\"]]\n", safeID, s.UID, s.Type)
		for _, b := range s.Objects {
			label := b.Key
			if b.Group {
				label = fmt.Sprintf("%s[%d]", b.Key, b.Index)
			}
			if b.Optional {
				label += "?"
			}
			obj := sanitizeMermaidID(b.UID)
			switch b.Access {
			case service.In:
				fmt.Fprintf(&sb, "    %s -- \"%s\" --> %s\n", obj, label, safeID)
			case service.InOut:
				fmt.Fprintf(&sb, "    %s <-- \"%s\" --> %s\n", obj, label, safeID)
			case service.Out:
				fmt.Fprintf(&sb, "    %s -- \"%s\" --> %s\n", safeID, label, obj)
			}
		}
	}

	for i, c := range cfg.Connections() {
		channel := c.Channel
		if channel == "" {
			channel = fmt.Sprintf("#%d", i+1)
		}
		for _, sig := range c.Signals {
			for _, slot := range c.Slots {
				fmt.Fprintf(&sb, "    %s -. \"%s: %s → %s\" .-> %s\n",
					sanitizeMermaidID(sig.Owner), escape(channel), sig.Key, slot.Key, sanitizeMermaidID(slot.Owner))
			}
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef started fill:#c8e6c9,stroke:#2e7d32,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef bound fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		writeClass(&sb, overlay.StartedServices, "started")
		writeClass(&sb, overlay.BoundObjects, "bound")
	}

	return sb.String()
}

func writeClass(sb *strings.Builder, ids []string, class string) {
	seen := make(map[string]bool)
	for _, id := range ids {
		safeID := sanitizeMermaidID(id)
		if safeID == "" || seen[safeID] {
			continue
		}
		seen[safeID] = true
		fmt.Fprintf(sb, "    class %s %s;\n", safeID, class)
	}
}

func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, ":", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	return s
}
