package schema

import (
	"strings"
	"testing"
)

func jugs() Object {
	return NewObject(
		Prop("jug3", Int(), "Gallons in the 3-gallon jug"),
		Prop("jug5", Int(), "Gallons in the 5-gallon jug"),
	)
}

func TestObject_Validate(t *testing.T) {
	tests := []struct {
		name     string
		data     map[string]any
		wantErrs int
	}{
		{"valid", map[string]any{"jug3": 0, "jug5": float64(4)}, 0},
		{"missing field", map[string]any{"jug3": 1}, 1},
		{"type mismatch", map[string]any{"jug3": "full", "jug5": 0}, 1},
		{"everything wrong", map[string]any{"jug3": true}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := jugs().Validate(tt.data)
			if tt.wantErrs == 0 {
				if err != nil {
					t.Fatalf("Validate() unexpected error = %v", err)
				}
				return
			}
			if got := len(ValidationErrors(err)); got != tt.wantErrs {
				t.Fatalf("Validate() errors = %d, want %d (%v)", got, tt.wantErrs, err)
			}
		})
	}
}

func TestObject_ValidateOptional(t *testing.T) {
	obj := NewObject(OptionalProp("reasoning", String(), ""))
	if err := obj.Validate(map[string]any{}); err != nil {
		t.Errorf("Validate() error = %v, optional fields may be absent", err)
	}
	if err := obj.Validate(map[string]any{"reasoning": 1}); err == nil {
		t.Error("Validate() should type-check optional fields when present")
	}
}

func TestObject_ZeroValueAcceptsAnything(t *testing.T) {
	var obj Object
	if err := obj.Validate(map[string]any{"x": 1}); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestObject_ValidateFields(t *testing.T) {
	obj := jugs()
	if err := obj.ValidateFields(map[string]any{"jug3": 1}, "jug3"); err != nil {
		t.Errorf("ValidateFields() error = %v", err)
	}
	err := obj.ValidateFields(map[string]any{}, "jug9")
	if err == nil || !strings.Contains(err.Error(), "not defined in schema") {
		t.Errorf("ValidateFields() error = %v, want undefined field", err)
	}
}

func TestObject_JSONSchema(t *testing.T) {
	doc := jugs().JSONSchema()
	if doc["type"] != "object" {
		t.Fatalf("type = %v", doc["type"])
	}
	props := doc["properties"].(map[string]any)
	jug3 := props["jug3"].(map[string]any)
	if jug3["type"] != "integer" || jug3["description"] != "Gallons in the 3-gallon jug" {
		t.Errorf("jug3 = %v", jug3)
	}
	if req := doc["required"].([]any); len(req) != 2 {
		t.Errorf("required = %v", req)
	}
}

func TestAggregateError_String(t *testing.T) {
	err := &AggregateError{Errors: []error{
		&ValidationError{Key: "a", Reason: "required"},
		&ValidationError{Key: "b", Reason: "bad", Value: 1},
	}}
	msg := err.Error()
	if !strings.Contains(msg, "2 validation errors") || !strings.Contains(msg, `field "b": bad (got int)`) {
		t.Errorf("Error() = %q", msg)
	}
}
