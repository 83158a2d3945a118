package appconfig

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/sight/pkg/service"
)

var validate = validator.New()

type document struct {
	Description string           `mapstructure:"description"`
	Config      []map[string]any `mapstructure:"config"`
}

type objectDTO struct {
	UID  string `mapstructure:"uid"`
	Type string `mapstructure:"type" validate:"required"`
	Src  string `mapstructure:"src" validate:"omitempty,oneof=new deferred ref preference"`
}

type bindingDTO struct {
	Key         string       `mapstructure:"key"`
	Group       string       `mapstructure:"group"`
	UID         string       `mapstructure:"uid"`
	Optional    bool         `mapstructure:"optional"`
	AutoConnect bool         `mapstructure:"auto_connect"`
	Items       []bindingDTO `mapstructure:"items"`
}

type serviceDTO struct {
	UID         string         `mapstructure:"uid"`
	Type        string         `mapstructure:"type" validate:"required"`
	Worker      string         `mapstructure:"worker"`
	AutoConnect bool           `mapstructure:"auto_connect"`
	In          []bindingDTO   `mapstructure:"in"`
	InOut       []bindingDTO   `mapstructure:"inout"`
	Out         []bindingDTO   `mapstructure:"out"`
	Config      map[string]any `mapstructure:"config"`
}

type connectDTO struct {
	Channel string   `mapstructure:"channel"`
	Signal  []string `mapstructure:"signal" validate:"dive,required,contains=/"`
	Slot    []string `mapstructure:"slot" validate:"dive,required,contains=/"`
}

type targetDTO struct {
	UID string `mapstructure:"uid" validate:"required"`
}

// Parse decodes and validates a configuration document. Template fields referenced as
// ${name} are replaced by fields[name]; a reference without value is an error.
func Parse(id string, raw []byte, fields map[string]string) (*Config, error) {
	var generic map[string]any
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", id, err)
	}
	adapted, err := Adapt(generic, fields)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", id, err)
	}
	var doc document
	if err := decode(adapted, &doc); err != nil {
		return nil, fmt.Errorf("config %s: %w", id, err)
	}
	if doc.Config == nil {
		return nil, fmt.Errorf("config %s: missing top-level \"config\" list", id)
	}

	entries, err := decodeEntries(doc.Config, false)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", id, err)
	}
	cfg := &Config{ID: id, Description: doc.Description, Entries: entries}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", id, err)
	}
	return cfg, nil
}

func decode(in, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(in)
}

func decodeValid(in, out any) error {
	if err := decode(in, out); err != nil {
		return err
	}
	if err := validate.Struct(out); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

func decodeEntries(items []map[string]any, servicesOnly bool) ([]Entry, error) {
	entries := make([]Entry, 0, len(items))
	for i, item := range items {
		if len(item) != 1 {
			return nil, fmt.Errorf("entry %d: expected exactly one of object, service, serviceList, connect, start, update", i)
		}
		for kind, body := range item {
			if servicesOnly && kind != "service" && kind != "serviceList" {
				return nil, fmt.Errorf("entry %d: %s is not allowed in a serviceList", i, kind)
			}
			e, err := decodeEntry(kind, body)
			if err != nil {
				return nil, fmt.Errorf("entry %d (%s): %w", i, kind, err)
			}
			entries = append(entries, e)
		}
	}
	return entries, nil
}

func decodeEntry(kind string, body any) (Entry, error) {
	switch kind {
	case "object":
		obj, err := decodeObject(body)
		return Entry{Kind: KindObject, Object: obj}, err
	case "service":
		srv, err := decodeService(body)
		return Entry{Kind: KindService, Service: srv}, err
	case "serviceList":
		var items []map[string]any
		if err := decode(body, &items); err != nil {
			return Entry{}, err
		}
		list, err := decodeEntries(items, true)
		return Entry{Kind: KindServiceList, List: list}, err
	case "connect":
		c, err := decodeConnect(body)
		return Entry{Kind: KindConnect, Connect: c}, err
	case "start", "update":
		var t targetDTO
		if err := decodeValid(body, &t); err != nil {
			return Entry{}, err
		}
		k := KindStart
		if kind == "update" {
			k = KindUpdate
		}
		return Entry{Kind: k, Target: t.UID}, nil
	}
	return Entry{}, fmt.Errorf("unknown entry kind %q", kind)
}

func decodeObject(body any) (*Object, error) {
	raw, ok := body.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("object must be a mapping, got %T", body)
	}
	// the parser owns the remaining fields, only the common ones are checked here
	common := map[string]any{}
	for _, k := range []string{"uid", "type", "src"} {
		if v, ok := raw[k]; ok {
			common[k] = v
		}
	}
	var dto objectDTO
	if err := decodeValid(common, &dto); err != nil {
		return nil, err
	}
	src, err := ParseSource(dto.Src)
	if err != nil {
		return nil, err
	}
	if src != SourceNew && dto.UID == "" {
		return nil, fmt.Errorf("object of type %s with src %s requires a uid", dto.Type, src)
	}
	return &Object{UID: dto.UID, Type: dto.Type, Source: src, Raw: raw}, nil
}

func decodeService(body any) (*Service, error) {
	var dto serviceDTO
	if err := decodeValid(body, &dto); err != nil {
		return nil, err
	}
	srv := &Service{
		UID:         dto.UID,
		Type:        dto.Type,
		Worker:      dto.Worker,
		AutoConnect: dto.AutoConnect,
		Config:      dto.Config,
	}
	for _, group := range []struct {
		access service.Access
		items  []bindingDTO
	}{
		{service.In, dto.In},
		{service.InOut, dto.InOut},
		{service.Out, dto.Out},
	} {
		for _, b := range group.items {
			bindings, err := decodeBinding(b, group.access)
			if err != nil {
				return nil, fmt.Errorf("service %s: %w", dto.UID, err)
			}
			srv.Objects = append(srv.Objects, bindings...)
		}
	}
	return srv, nil
}

func decodeBinding(b bindingDTO, access service.Access) ([]ObjectBinding, error) {
	if b.Group == "" {
		if b.Key == "" || b.UID == "" {
			return nil, fmt.Errorf("%s binding requires key and uid", access)
		}
		return []ObjectBinding{{
			Key:         b.Key,
			UID:         b.UID,
			Access:      access,
			Optional:    b.Optional,
			AutoConnect: b.AutoConnect,
		}}, nil
	}
	if b.Key != "" || len(b.Items) == 0 {
		return nil, fmt.Errorf("%s group %s requires items and no key", access, b.Group)
	}
	out := make([]ObjectBinding, 0, len(b.Items))
	for i, item := range b.Items {
		if item.UID == "" {
			return nil, fmt.Errorf("%s group %s item %d requires a uid", access, b.Group, i)
		}
		out = append(out, ObjectBinding{
			Key:         b.Group,
			Index:       i,
			Group:       true,
			UID:         item.UID,
			Access:      access,
			Optional:    item.Optional || b.Optional,
			AutoConnect: item.AutoConnect || b.AutoConnect,
		})
	}
	return out, nil
}

func decodeConnect(body any) (*Connection, error) {
	var dto connectDTO
	if err := decodeValid(body, &dto); err != nil {
		return nil, err
	}
	c := &Connection{Channel: dto.Channel}
	for _, s := range dto.Signal {
		c.Signals = append(c.Signals, ParseEndpoint(s))
	}
	for _, s := range dto.Slot {
		c.Slots = append(c.Slots, ParseEndpoint(s))
	}
	return c, nil
}

// ParseEndpoint splits "owner/key" at its first slash.
func ParseEndpoint(s string) Endpoint {
	owner, key, _ := strings.Cut(s, "/")
	return Endpoint{Owner: owner, Key: key}
}

// Validate checks the cross references of cfg: uids are unique, bindings and directives
// reference declared objects and services.
func Validate(cfg *Config) error {
	var errs []error
	declared := map[string]string{}
	declare := func(uid, what string) {
		if uid == "" {
			return
		}
		if prev, ok := declared[uid]; ok {
			errs = append(errs, fmt.Errorf("uid %s declared twice (%s and %s)", uid, prev, what))
			return
		}
		declared[uid] = what
	}

	objects := map[string]bool{}
	for _, o := range cfg.Objects() {
		declare(o.UID, "object")
		objects[o.UID] = true
	}
	services := map[string]bool{}
	for _, s := range cfg.Services() {
		declare(s.UID, "service")
		services[s.UID] = true
		for _, b := range s.Objects {
			if !objects[b.UID] {
				errs = append(errs, fmt.Errorf("service %s: object %s is not declared", s.UID, b.UID))
			}
		}
	}
	for _, c := range cfg.Connections() {
		for _, ep := range append(append([]Endpoint(nil), c.Signals...), c.Slots...) {
			if ep.Owner == "" || ep.Key == "" {
				errs = append(errs, fmt.Errorf("connection %q: malformed endpoint %q", c.Channel, ep.String()))
			}
		}
	}
	for _, uid := range cfg.Starts() {
		if !services[uid] {
			errs = append(errs, fmt.Errorf("start: service %s is not declared", uid))
		}
	}
	for _, uid := range cfg.Updates() {
		if !services[uid] {
			errs = append(errs, fmt.Errorf("update: service %s is not declared", uid))
		}
	}
	return errors.Join(errs...)
}

var fieldPattern = regexp.MustCompile(`\$\{([A-Za-z0-9_.\-]+)\}`)

// Adapt returns a copy of tree where every ${name} inside string values is replaced by
// fields[name]. Unknown fields are reported together.
func Adapt(tree map[string]any, fields map[string]string) (map[string]any, error) {
	missing := map[string]bool{}
	out := adaptValue(tree, fields, missing).(map[string]any)
	if len(missing) > 0 {
		names := make([]string, 0, len(missing))
		for n := range missing {
			names = append(names, n)
		}
		sort.Strings(names)
		return nil, fmt.Errorf("unresolved template fields: %s", strings.Join(names, ", "))
	}
	return out, nil
}

func adaptValue(v any, fields map[string]string, missing map[string]bool) any {
	switch t := v.(type) {
	case string:
		return fieldPattern.ReplaceAllStringFunc(t, func(m string) string {
			name := fieldPattern.FindStringSubmatch(m)[1]
			if val, ok := fields[name]; ok {
				return val
			}
			missing[name] = true
			return m
		})
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = adaptValue(val, fields, missing)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = adaptValue(val, fields, missing)
		}
		return out
	}
	return v
}
