package schema

import "slices"

// Field is one named property of an Object.
type Field struct {
	Name        string
	Type        Type
	Description string
	Optional    bool
}

// Prop declares a required field.
func Prop(name string, t Type, description string) Field {
	return Field{Name: name, Type: t, Description: description}
}

// OptionalProp declares a field that may be absent.
func OptionalProp(name string, t Type, description string) Field {
	return Field{Name: name, Type: t, Description: description, Optional: true}
}

// Object is an ordered set of fields describing a JSON object.
// The zero value accepts any object.
type Object struct {
	Description string
	fields      []Field
}

// NewObject builds an Object. Later fields with a repeated name replace earlier ones.
func NewObject(fields ...Field) Object {
	o := Object{}
	for _, f := range fields {
		if i := o.index(f.Name); i >= 0 {
			o.fields[i] = f
			continue
		}
		o.fields = append(o.fields, f)
	}
	return o
}

func (o Object) index(name string) int {
	return slices.IndexFunc(o.fields, func(f Field) bool { return f.Name == name })
}

// Fields returns the declared fields in order.
func (o Object) Fields() []Field { return slices.Clone(o.fields) }

// Field returns the field with the given name.
func (o Object) Field(name string) (Field, bool) {
	if i := o.index(name); i >= 0 {
		return o.fields[i], true
	}
	return Field{}, false
}

// Keys returns the field names in order.
func (o Object) Keys() []string {
	keys := make([]string, len(o.fields))
	for i, f := range o.fields {
		keys[i] = f.Name
	}
	return keys
}

// Len returns the number of declared fields.
func (o Object) Len() int { return len(o.fields) }

// Describe returns a copy of o with the given description.
func (o Object) Describe(description string) Object {
	o.Description = description
	o.fields = slices.Clone(o.fields)
	return o
}

// Validate checks if data conforms to the object.
// Returns an error with all validation failures found.
func (o Object) Validate(data map[string]any) error {
	if len(o.fields) == 0 {
		// No fields = no validation
		return nil
	}

	var errs []error

	for _, field := range o.fields {
		value, exists := data[field.Name]
		if !exists {
			if field.Optional {
				continue
			}
			errs = append(errs, &ValidationError{
				Key:    field.Name,
				Reason: "required",
				Value:  nil,
			})
			continue
		}

		if field.Type == nil {
			continue
		}
		if err := field.Type.Validate(value); err != nil {
			errs = append(errs, &ValidationError{
				Key:    field.Name,
				Reason: err.Error(),
				Value:  value,
			})
		}
	}

	if len(errs) > 0 {
		return &AggregateError{Errors: errs}
	}

	return nil
}

// ValidateFields validates only specific fields from data against the object.
// Missing fields are treated as an error.
func (o Object) ValidateFields(data map[string]any, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}

	var errs []error

	for _, name := range fields {
		field, exists := o.Field(name)
		if !exists {
			errs = append(errs, &ValidationError{
				Key:    name,
				Reason: "not defined in schema",
				Value:  nil,
			})
			continue
		}

		value, fieldExists := data[name]
		if !fieldExists {
			errs = append(errs, &ValidationError{
				Key:    name,
				Reason: "required",
				Value:  nil,
			})
			continue
		}

		if field.Type == nil {
			continue
		}
		if err := field.Type.Validate(value); err != nil {
			errs = append(errs, &ValidationError{
				Key:    name,
				Reason: err.Error(),
				Value:  value,
			})
		}
	}

	if len(errs) > 0 {
		return &AggregateError{Errors: errs}
	}

	return nil
}

// JSONSchema renders the object as a JSON Schema document.
func (o Object) JSONSchema() map[string]any {
	props := make(map[string]any, len(o.fields))
	required := make([]any, 0, len(o.fields))
	for _, f := range o.fields {
		var frag map[string]any
		if f.Type != nil {
			frag = f.Type.JSONSchema()
		} else {
			frag = map[string]any{}
		}
		if f.Description != "" {
			frag["description"] = f.Description
		}
		props[f.Name] = frag
		if !f.Optional {
			required = append(required, f.Name)
		}
	}

	doc := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		doc["required"] = required
	}
	if o.Description != "" {
		doc["description"] = o.Description
	}
	return doc
}
