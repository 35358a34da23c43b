package gateway

import (
	"fmt"
	"time"

	"github.com/meridian-crm/meridian/internal/authz"
)

// Kind names one remote entity collection.
type Kind string

// FieldType constrains the value of a declared entity field.
type FieldType string

const (
	FieldString FieldType = "string"
	FieldNumber FieldType = "number"
	FieldBool   FieldType = "bool"
	FieldTime   FieldType = "time"
	FieldRef    FieldType = "ref" // identifier of another entity
)

// FieldSpec declares one field of an entity kind.
type FieldSpec struct {
	Name     string
	Type     FieldType
	Required bool
}

// Schema declares the shape of one entity kind at the gateway boundary.
// Every ingress row and egress payload is validated against it.
type Schema struct {
	Kind       Kind
	Module     authz.Module
	SoftDelete bool
	Fields     []FieldSpec
}

// Table returns the remote table name for the kind.
func (s Schema) Table() string {
	return string(s.Kind)
}

func (s Schema) field(name string) (FieldSpec, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// Registry holds the closed set of entity kind schemas.
type Registry struct {
	order   []Kind
	schemas map[Kind]Schema
}

// NewRegistry builds a registry from schemas, preserving order.
func NewRegistry(schemas []Schema) *Registry {
	r := &Registry{schemas: make(map[Kind]Schema, len(schemas))}
	for _, s := range schemas {
		if _, dup := r.schemas[s.Kind]; dup {
			panic(fmt.Sprintf("gateway: duplicate schema for kind %s", s.Kind))
		}
		r.schemas[s.Kind] = s
		r.order = append(r.order, s.Kind)
	}
	return r
}

// Schema looks up the schema for a kind.
func (r *Registry) Schema(kind Kind) (Schema, error) {
	s, ok := r.schemas[kind]
	if !ok {
		return Schema{}, fmt.Errorf("%w: unknown kind %q", ErrNotFound, kind)
	}
	return s, nil
}

// Kinds lists every registered kind in declaration order.
func (r *Registry) Kinds() []Kind {
	out := make([]Kind, len(r.order))
	copy(out, r.order)
	return out
}

// ValidateInsert checks a full payload: required fields present, all fields
// declared and type-correct. Returns a normalized copy.
func (s Schema) ValidateInsert(fields map[string]any) (map[string]any, error) {
	out, err := s.ValidatePatch(fields)
	if err != nil {
		return nil, err
	}
	for _, f := range s.Fields {
		if !f.Required {
			continue
		}
		if _, ok := out[f.Name]; !ok {
			return nil, &SchemaError{Kind: s.Kind, Field: f.Name, Reason: "required field missing"}
		}
	}
	return out, nil
}

// ValidatePatch checks a partial payload: every provided field must be
// declared and type-correct. Returns a normalized copy.
func (s Schema) ValidatePatch(fields map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(fields))
	for name, value := range fields {
		spec, ok := s.field(name)
		if !ok {
			return nil, &SchemaError{Kind: s.Kind, Field: name, Reason: "undeclared field"}
		}
		normalized, err := normalizeValue(s.Kind, spec, value)
		if err != nil {
			return nil, err
		}
		out[name] = normalized
	}
	return out, nil
}

func normalizeValue(kind Kind, spec FieldSpec, value any) (any, error) {
	if value == nil {
		if spec.Required {
			return nil, &SchemaError{Kind: kind, Field: spec.Name, Reason: "required field is null"}
		}
		return nil, nil
	}
	switch spec.Type {
	case FieldString, FieldRef:
		s, ok := value.(string)
		if !ok {
			return nil, typeError(kind, spec, value)
		}
		return s, nil
	case FieldNumber:
		switch n := value.(type) {
		case float64:
			return n, nil
		case int:
			return float64(n), nil
		case int64:
			return float64(n), nil
		default:
			return nil, typeError(kind, spec, value)
		}
	case FieldBool:
		b, ok := value.(bool)
		if !ok {
			return nil, typeError(kind, spec, value)
		}
		return b, nil
	case FieldTime:
		switch t := value.(type) {
		case time.Time:
			return t, nil
		case string:
			parsed, err := time.Parse(time.RFC3339, t)
			if err != nil {
				return nil, &SchemaError{Kind: kind, Field: spec.Name, Reason: "not an RFC3339 timestamp"}
			}
			return parsed, nil
		default:
			return nil, typeError(kind, spec, value)
		}
	default:
		return nil, &SchemaError{Kind: kind, Field: spec.Name, Reason: "unknown field type"}
	}
}

func typeError(kind Kind, spec FieldSpec, value any) error {
	return &SchemaError{
		Kind:   kind,
		Field:  spec.Name,
		Reason: fmt.Sprintf("expected %s, got %T", spec.Type, value),
	}
}
