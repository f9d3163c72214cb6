package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type fieldJSON struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Optional    bool   `json:"optional,omitempty"`
}

// MarshalJSON serializes the object as a map of field names to type specs.
// Fields without a description or optional flag collapse to the bare type string.
func (o Object) MarshalJSON() ([]byte, error) {
	raw := make(map[string]any, len(o.fields))
	for _, f := range o.fields {
		if f.Type == nil {
			return nil, fmt.Errorf("field %s: type is nil", f.Name)
		}
		if f.Description == "" && !f.Optional {
			raw[f.Name] = f.Type.Name()
			continue
		}
		raw[f.Name] = fieldJSON{Type: f.Type.Name(), Description: f.Description, Optional: f.Optional}
	}
	return json.Marshal(raw)
}

// UnmarshalJSON deserializes the object from a map of field names to either
// type strings or {type, description, optional} specs. Fields are ordered by name.
func (o *Object) UnmarshalJSON(data []byte) error {
	if o == nil {
		return fmt.Errorf("schema: UnmarshalJSON on nil pointer")
	}

	if string(bytes.TrimSpace(data)) == "null" {
		*o = Object{}
		return nil
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	parsed, err := ParseFieldMap(raw)
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

// ParseFieldMap builds an Object from decoded JSON or YAML where each value is
// either a type string or a map with "type", "description" and "optional" keys.
func ParseFieldMap(raw map[string]any) (Object, error) {
	typeMap := make(map[string]string, len(raw))
	specs := make(map[string]map[string]any)
	for key, value := range raw {
		switch v := value.(type) {
		case string:
			typeMap[key] = v
		case map[string]any:
			t, _ := v["type"].(string)
			if t == "" {
				t = "any"
			}
			typeMap[key] = t
			specs[key] = v
		default:
			return Object{}, fmt.Errorf("field %s: expected type string or spec, got %T", key, value)
		}
	}

	parsed, err := ParseTypeMap(typeMap)
	if err != nil {
		return Object{}, err
	}
	for i, f := range parsed.fields {
		spec, ok := specs[f.Name]
		if !ok {
			continue
		}
		if d, ok := spec["description"].(string); ok {
			parsed.fields[i].Description = d
		}
		if opt, ok := spec["optional"].(bool); ok {
			parsed.fields[i].Optional = opt
		}
	}
	return parsed, nil
}
