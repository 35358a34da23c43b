package gateway

import (
	"errors"
	"testing"
	"time"

	"github.com/meridian-crm/meridian/internal/authz"
)

func orderSchema() Schema {
	return Schema{
		Kind:   Kind("orders"),
		Module: authz.ModuleFinance,
		Fields: []FieldSpec{
			{Name: "number", Type: FieldString, Required: true},
			{Name: "total", Type: FieldNumber, Required: true},
			{Name: "paid", Type: FieldBool},
			{Name: "due_at", Type: FieldTime},
			{Name: "client_id", Type: FieldRef},
		},
	}
}

func TestValidateInsertRequiresDeclaredFields(t *testing.T) {
	schema := orderSchema()

	_, err := schema.ValidateInsert(map[string]any{"number": "ORD-1"})
	var schemaErr *SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected SchemaError, got %v", err)
	}
	if schemaErr.Field != "total" {
		t.Fatalf("expected missing field total, got %q", schemaErr.Field)
	}
}

func TestValidateInsertRejectsUndeclaredField(t *testing.T) {
	schema := orderSchema()

	_, err := schema.ValidateInsert(map[string]any{
		"number":   "ORD-1",
		"total":    100.0,
		"internal": "nope",
	})
	var schemaErr *SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected SchemaError, got %v", err)
	}
	if schemaErr.Field != "internal" {
		t.Fatalf("expected undeclared field internal, got %q", schemaErr.Field)
	}
}

func TestValidatePatchTypeChecks(t *testing.T) {
	schema := orderSchema()

	cases := []struct {
		name   string
		fields map[string]any
		field  string
	}{
		{"string for number", map[string]any{"total": "a lot"}, "total"},
		{"number for bool", map[string]any{"paid": 1}, "paid"},
		{"garbage timestamp", map[string]any{"due_at": "tomorrow"}, "due_at"},
		{"number for ref", map[string]any{"client_id": 7}, "client_id"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := schema.ValidatePatch(tc.fields)
			var schemaErr *SchemaError
			if !errors.As(err, &schemaErr) {
				t.Fatalf("expected SchemaError, got %v", err)
			}
			if schemaErr.Field != tc.field {
				t.Fatalf("expected field %q, got %q", tc.field, schemaErr.Field)
			}
		})
	}
}

func TestValidatePatchNormalizes(t *testing.T) {
	schema := orderSchema()

	out, err := schema.ValidatePatch(map[string]any{
		"total":  42,
		"due_at": "2026-03-01T09:00:00Z",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := out["total"]; got != float64(42) {
		t.Fatalf("expected total normalized to float64, got %T %v", got, got)
	}
	due, ok := out["due_at"].(time.Time)
	if !ok {
		t.Fatalf("expected due_at parsed to time.Time, got %T", out["due_at"])
	}
	if !due.Equal(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected due_at: %v", due)
	}
}

func TestValidatePatchOptionalNull(t *testing.T) {
	schema := orderSchema()

	out, err := schema.ValidatePatch(map[string]any{"due_at": nil})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, ok := out["due_at"]; !ok || v != nil {
		t.Fatalf("expected null to pass through for optional field, got %v", out)
	}

	_, err = schema.ValidatePatch(map[string]any{"number": nil})
	var schemaErr *SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected SchemaError for null required field, got %v", err)
	}
}

func TestDefaultRegistryKindsAreWellFormed(t *testing.T) {
	registry := DefaultRegistry()
	kinds := registry.Kinds()
	if len(kinds) != 40 {
		t.Fatalf("expected 40 kinds, got %d", len(kinds))
	}
	for _, kind := range kinds {
		schema, err := registry.Schema(kind)
		if err != nil {
			t.Fatalf("schema for %s: %v", kind, err)
		}
		if !authz.Known(schema.Module) {
			t.Fatalf("kind %s bound to unknown module %q", kind, schema.Module)
		}
		if len(schema.Fields) == 0 {
			t.Fatalf("kind %s declares no fields", kind)
		}
	}
}

func TestRegistryUnknownKind(t *testing.T) {
	registry := DefaultRegistry()
	if _, err := registry.Schema(Kind("bogus")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
