package data

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Parser fills an object from its configuration entry and follows the lifecycle of the
// configuration that declared it.
type Parser interface {
	// SetObjectConfig stores the configuration entry of the object.
	SetObjectConfig(cfg map[string]any)
	// Parse fills obj from cfg. Sub-objects declaring a uid are added to objects.
	Parse(cfg map[string]any, obj Object, objects map[string]Object) error
	// CreateConfig parses the stored entry into obj.
	CreateConfig(obj Object) error
	StartConfig() error
	UpdateConfig() error
	StopConfig() error
	DestroyConfig() error
	// Objects returns the sub-objects collected by CreateConfig, keyed by uid.
	Objects() map[string]Object
}

// ParserBase stores the configuration entry and implements the lifecycle as no-ops.
type ParserBase struct {
	Config  map[string]any
	objects map[string]Object
}

func (p *ParserBase) SetObjectConfig(cfg map[string]any) { p.Config = cfg }

func (p *ParserBase) StartConfig() error { return nil }

func (p *ParserBase) UpdateConfig() error { return nil }

func (p *ParserBase) StopConfig() error { return nil }

func (p *ParserBase) DestroyConfig() error { return nil }

func (p *ParserBase) Objects() map[string]Object {
	if p.objects == nil {
		p.objects = make(map[string]Object)
	}
	return p.objects
}

// ValueParser decodes the "value" field of the entry into a Valuer.
type ValueParser struct {
	ParserBase
}

func NewValueParser() *ValueParser {
	return &ValueParser{}
}

func (p *ValueParser) Parse(cfg map[string]any, obj Object, _ map[string]Object) error {
	raw, ok := cfg["value"]
	if !ok {
		return nil
	}
	v, ok := obj.(Valuer)
	if !ok {
		return fmt.Errorf("object %s of type %s does not hold a value", obj.ID(), obj.Classname())
	}
	return v.Decode(raw)
}

func (p *ValueParser) CreateConfig(obj Object) error {
	return p.Parse(p.Config, obj, p.Objects())
}

// CompositeParser builds the "items" of a composite entry.
type CompositeParser struct {
	ParserBase
	factory *Factory
}

func NewCompositeParser(f *Factory) *CompositeParser {
	return &CompositeParser{factory: f}
}

// compositeItem is one entry of the "items" list.
type compositeItem struct {
	Key   string `mapstructure:"key"`
	UID   string `mapstructure:"uid"`
	Type  string `mapstructure:"type"`
	Value any    `mapstructure:"value"`
	Items []any  `mapstructure:"items"`
}

func (p *CompositeParser) Parse(cfg map[string]any, obj Object, objects map[string]Object) error {
	comp, ok := obj.(*Composite)
	if !ok {
		return fmt.Errorf("object %s of type %s is not a composite", obj.ID(), obj.Classname())
	}
	raw, ok := cfg["items"]
	if !ok {
		return nil
	}
	var items []compositeItem
	if err := mapstructure.Decode(raw, &items); err != nil {
		return fmt.Errorf("decode composite items: %w", err)
	}

	for i, item := range items {
		if item.Key == "" || item.Type == "" {
			return fmt.Errorf("composite item %d: key and type are required", i)
		}
		sub, err := p.factory.New(item.Type)
		if err != nil {
			return fmt.Errorf("composite item %q: %w", item.Key, err)
		}
		if item.UID != "" {
			sub.SetID(item.UID)
			objects[item.UID] = sub
		}
		subCfg := map[string]any{}
		if item.Value != nil {
			subCfg["value"] = item.Value
		}
		if item.Items != nil {
			subCfg["items"] = item.Items
		}
		if err := p.factory.NewParser(item.Type).Parse(subCfg, sub, objects); err != nil {
			return fmt.Errorf("composite item %q: %w", item.Key, err)
		}
		comp.Set(item.Key, sub)
	}
	return nil
}

func (p *CompositeParser) CreateConfig(obj Object) error {
	return p.Parse(p.Config, obj, p.Objects())
}
