package markdown

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/sight/pkg/appconfig"
)

func TestDescribe(t *testing.T) {
	cfg, err := appconfig.Parse("viewer", []byte(`
description: Counts and prints.
config:
  - object: {uid: ticks, type: "sight::data::integer", value: 1}
  - object: {uid: mesh, type: "sight::data::string", src: deferred}
  - service:
      uid: counter
      type: "sight::service::counter"
      worker: compute
      inout:
        - {key: value, uid: ticks, auto_connect: true}
  - service:
      uid: printer
      type: "sight::service::printer"
      in:
        - group: sources
          items:
            - {uid: ticks}
            - {uid: mesh, optional: true}
  - connect:
      channel: ticks
      signal: [counter/counted]
      slot: [printer/update]
  - start: {uid: counter}
  - start: {uid: printer}
  - update: {uid: counter}
`), nil)
	require.NoError(t, err)

	md := Describe(cfg)
	assert.Contains(t, md, "# viewer\n\nCounts and prints.\n")
	assert.Contains(t, md, "| `ticks` | `sight::data::integer` | new |")
	assert.Contains(t, md, "| `mesh` | `sight::data::string` | deferred |")
	assert.Contains(t, md, "### counter\n\n- type: `sight::service::counter`\n- worker: `compute`\n")
	assert.Contains(t, md, "- inout `value` → `ticks` (auto-connect)")
	assert.Contains(t, md, "- in `sources[1]` → `mesh` (optional)")
	assert.Contains(t, md, "- `ticks`: `counter/counted` → `printer/update`")
	assert.Contains(t, md, "- start: counter, printer\n- update: counter\n")
}

func TestDescribe_Minimal(t *testing.T) {
	md := Describe(&appconfig.Config{ID: "empty"})
	assert.Equal(t, "# empty\n\n", md)
}
