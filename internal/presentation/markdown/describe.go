package markdown

import (
	"fmt"
	"strings"

	"github.com/aretw0/sight/pkg/appconfig"
)

// Describe renders a Markdown summary of cfg: objects, services with their bindings, channels
// and start/update directives. Empty sections are left out.
func Describe(cfg *appconfig.Config) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", cfg.ID)
	if d := strings.TrimSpace(cfg.Description); d != "" {
		fmt.Fprintf(&sb, "%s\n\n", d)
	}

	if objects := cfg.Objects(); len(objects) > 0 {
		sb.WriteString("## Objects\n\n| uid | type | source |\n|---|---|---|\n")
		for _, o := range objects {
			uid := o.UID
			if uid == "" {
				uid = "(generated)"
			}
			fmt.Fprintf(&sb, "| `%s` | `%s` | %s |\n", uid, o.Type, o.Source)
		}
		sb.WriteString("\n")
	}

	if services := cfg.Services(); len(services) > 0 {
		sb.WriteString("## Services\n\n")
		for _, s := range services {
			fmt.Fprintf(&sb, "### %s\n\n- type: `%s`\n", s.UID, s.Type)
			if s.Worker != "" {
				fmt.Fprintf(&sb, "- worker: `%s`\n", s.Worker)
			}
			for _, b := range s.Objects {
				key := b.Key
				if b.Group {
					key = fmt.Sprintf("%s[%d]", b.Key, b.Index)
				}
				var flags []string
				if b.Optional {
					flags = append(flags, "optional")
				}
				if b.AutoConnect || s.AutoConnect {
					flags = append(flags, "auto-connect")
				}
				line := fmt.Sprintf("- %s `%s` → `%s`", b.Access, key, b.UID)
				if len(flags) > 0 {
					line += " (" + strings.Join(flags, ", ") + ")"
				}
				sb.WriteString(line + "\n")
			}
			sb.WriteString("\n")
		}
	}

	if conns := cfg.Connections(); len(conns) > 0 {
		sb.WriteString("## Channels\n\n")
		for i, c := range conns {
			name := c.Channel
			if name == "" {
				name = fmt.Sprintf("#%d", i+1)
			}
			fmt.Fprintf(&sb, "- `%s`: %s → %s\n", name, endpoints(c.Signals), endpoints(c.Slots))
		}
		sb.WriteString("\n")
	}

	starts, updates := cfg.Starts(), cfg.Updates()
	if len(starts)+len(updates) > 0 {
		sb.WriteString("## Directives\n\n")
		if len(starts) > 0 {
			fmt.Fprintf(&sb, "- start: %s\n", strings.Join(starts, ", "))
		}
		if len(updates) > 0 {
			fmt.Fprintf(&sb, "- update: %s\n", strings.Join(updates, ", "))
		}
	}
	return sb.String()
}

func endpoints(eps []appconfig.Endpoint) string {
	if len(eps) == 0 {
		return "(none)"
	}
	parts := make([]string, len(eps))
	for i, ep := range eps {
		parts[i] = "`" + ep.String() + "`"
	}
	return strings.Join(parts, ", ")
}
