package appconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/sight/pkg/service"
)

const sample = `
description: sample
config:
  - object: {uid: image, type: "sight::data::integer", value: 3}
  - object: {uid: mesh, type: "sight::data::string", src: deferred}
  - object: {uid: threshold, type: "sight::data::float", src: preference, value: 0.5}
  - service:
      uid: printer
      type: "sight::service::printer"
      worker: io
      in: [{key: source, uid: image, auto_connect: true}]
      inout:
        - group: targets
          optional: true
          items: [{uid: image}, {uid: mesh, auto_connect: true}]
      out: [{key: result, uid: mesh}]
      config: {prefix: "${prefix}"}
  - serviceList:
      - service: {uid: nested, type: "sight::service::counter"}
  - service: {uid: late, type: "sight::service::counter", auto_connect: true}
  - connect:
      channel: ch1
      signal: [image/modified]
      slot: [printer/update, nested/update]
  - start: {uid: printer}
  - start: {uid: nested}
  - update: {uid: printer}
`

func TestParse(t *testing.T) {
	cfg, err := Parse("sample", []byte(sample), map[string]string{"prefix": ">"})
	require.NoError(t, err)

	assert.Equal(t, "sample", cfg.ID)
	assert.Equal(t, "sample", cfg.Description)
	require.Len(t, cfg.Entries, 10)

	objs := cfg.Objects()
	require.Len(t, objs, 3)
	assert.Equal(t, SourceNew, objs[0].Source)
	assert.Equal(t, 3, objs[0].Raw["value"])
	assert.Equal(t, SourceDeferred, objs[1].Source)
	assert.Equal(t, SourcePreference, objs[2].Source)

	srvs := cfg.Services()
	require.Len(t, srvs, 3)
	assert.Equal(t, []string{"printer", "late", "nested"}, []string{srvs[0].UID, srvs[1].UID, srvs[2].UID})
	assert.True(t, srvs[1].AutoConnect)

	printer := srvs[0]
	assert.Equal(t, "io", printer.Worker)
	assert.Equal(t, map[string]any{"prefix": ">"}, printer.Config)
	assert.Equal(t, []ObjectBinding{
		{Key: "source", UID: "image", Access: service.In, AutoConnect: true},
		{Key: "targets", Index: 0, Group: true, UID: "image", Access: service.InOut, Optional: true},
		{Key: "targets", Index: 1, Group: true, UID: "mesh", Access: service.InOut, Optional: true, AutoConnect: true},
		{Key: "result", UID: "mesh", Access: service.Out},
	}, printer.Objects)

	conns := cfg.Connections()
	require.Len(t, conns, 1)
	assert.Equal(t, "ch1", conns[0].Channel)
	assert.Equal(t, []Endpoint{{"image", "modified"}}, conns[0].Signals)
	assert.Equal(t, []Endpoint{{"printer", "update"}, {"nested", "update"}}, conns[0].Slots)

	assert.Equal(t, []string{"printer", "nested"}, cfg.Starts())
	assert.Equal(t, []string{"printer"}, cfg.Updates())
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"not yaml", "config: [", "failed to parse config"},
		{"no config", "other: 1", "invalid keys: other"},
		{"empty", "", `missing top-level "config" list`},
		{"two keys", "config: [{object: {type: t}, start: {uid: a}}]", "expected exactly one"},
		{"unknown kind", "config: [{widget: {}}]", `unknown entry kind "widget"`},
		{"object without type", "config: [{object: {uid: a}}]", "validation failed"},
		{"deferred without uid", "config: [{object: {type: t, src: deferred}}]", "requires a uid"},
		{"bad src", "config: [{object: {uid: a, type: t, src: magic}}]", "validation failed"},
		{"binding without key", "config: [{object: {uid: a, type: t}}, {service: {type: s, in: [{uid: a}]}}]", "requires key and uid"},
		{"group with key", "config: [{object: {uid: a, type: t}}, {service: {type: s, in: [{group: g, key: k, items: [{uid: a}]}]}}]", "requires items and no key"},
		{"undeclared object", "config: [{service: {uid: s, type: s, in: [{key: k, uid: ghost}]}}]", "object ghost is not declared"},
		{"duplicate uid", "config: [{object: {uid: a, type: t}}, {service: {uid: a, type: s}}]", "uid a declared twice"},
		{"undeclared start", "config: [{start: {uid: ghost}}]", "start: service ghost is not declared"},
		{"start without uid", "config: [{start: {}}]", "validation failed"},
		{"bad endpoint", "config: [{connect: {signal: [nokey]}}]", "validation failed"},
		{"object in list", "config: [{serviceList: [{object: {type: t}}]}]", "not allowed in a serviceList"},
		{"missing field", "config: [{object: {uid: '${who}', type: t}}]", "unresolved template fields: who"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("bad", []byte(tt.doc), nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestAdapt(t *testing.T) {
	tree := map[string]any{
		"a": "${x}-${y}",
		"b": []any{"${x}", 3},
		"c": map[string]any{"d": "plain"},
	}
	out, err := Adapt(tree, map[string]string{"x": "1", "y": "2"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"a": "1-2",
		"b": []any{"1", 3},
		"c": map[string]any{"d": "plain"},
	}, out)
	// the input is left untouched
	assert.Equal(t, "${x}-${y}", tree["a"])

	_, err = Adapt(tree, map[string]string{"x": "1"})
	assert.EqualError(t, err, "unresolved template fields: y")
}

func TestSourceAndKindNames(t *testing.T) {
	for _, s := range []Source{SourceNew, SourceDeferred, SourceRef, SourcePreference} {
		got, err := ParseSource(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	_, err := ParseSource("copy")
	assert.Error(t, err)
	assert.Equal(t, "serviceList", KindServiceList.String())
	assert.Equal(t, "image/modified", Endpoint{"image", "modified"}.String())
}
