package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// StateValue identifies the active configuration of a state machine.
//
// It is either an atomic state name ("idle") or a mapping from compound or
// parallel region keys to child values ({"player": {"turn": "x"}}).
// The zero value means "no value" and resolves to the initial configuration.
type StateValue struct {
	name     string
	children map[string]StateValue
}

// Atomic returns a StateValue naming a single state.
func Atomic(name string) StateValue {
	return StateValue{name: name}
}

// Compound returns a StateValue with the given child values.
// A nil or empty map yields an empty composite, not the zero value.
func Compound(children map[string]StateValue) StateValue {
	c := make(map[string]StateValue, len(children))
	maps.Copy(c, children)
	return StateValue{children: c}
}

// ParseStateValue converts a dotted path ("a.b.c") into a nested StateValue
// ({"a": {"b": "c"}}).
func ParseStateValue(path string) StateValue {
	if path == "" {
		return StateValue{}
	}
	parts := strings.Split(path, ".")
	v := Atomic(parts[len(parts)-1])
	for i := len(parts) - 2; i >= 0; i-- {
		v = Compound(map[string]StateValue{parts[i]: v})
	}
	return v
}

// IsZero reports whether the value is unset.
func (v StateValue) IsZero() bool { return v.name == "" && v.children == nil }

// IsAtomic reports whether the value names a single state.
func (v StateValue) IsAtomic() bool { return v.name != "" }

// Name returns the atomic state name, or "" for composite values.
func (v StateValue) Name() string { return v.name }

// Keys returns the sorted child keys of a composite value.
func (v StateValue) Keys() []string {
	return slices.Sorted(maps.Keys(v.children))
}

// Child returns the value under key.
func (v StateValue) Child(key string) (StateValue, bool) {
	c, ok := v.children[key]
	return c, ok
}

// Equal reports whether both values describe the same configuration.
func (v StateValue) Equal(o StateValue) bool {
	if v.name != o.name || len(v.children) != len(o.children) {
		return false
	}
	if v.IsZero() != o.IsZero() {
		return false
	}
	for k, c := range v.children {
		oc, ok := o.children[k]
		if !ok || !c.Equal(oc) {
			return false
		}
	}
	return true
}

// Matches reports whether the dotted path is active in v.
// "a" matches both "a" and {"a": "b"}; "a.b" matches {"a": "b"}.
func (v StateValue) Matches(path string) bool {
	if path == "" {
		return true
	}
	cur := v
	for _, seg := range strings.Split(path, ".") {
		if cur.IsAtomic() {
			if cur.name != seg {
				return false
			}
			cur = StateValue{}
			continue
		}
		next, ok := cur.children[seg]
		if !ok {
			return false
		}
		cur = next
	}
	return true
}

// Paths returns the sorted dotted paths of every active leaf.
func (v StateValue) Paths() []string {
	var out []string
	var walk func(prefix string, cur StateValue)
	walk = func(prefix string, cur StateValue) {
		if cur.IsAtomic() {
			out = append(out, join(prefix, cur.name))
			return
		}
		if len(cur.children) == 0 {
			if prefix != "" {
				out = append(out, prefix)
			}
			return
		}
		for _, k := range cur.Keys() {
			walk(join(prefix, k), cur.children[k])
		}
	}
	walk("", v)
	slices.Sort(out)
	return out
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

// String renders the value in its JSON form.
func (v StateValue) String() string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("<invalid state value: %v>", err)
	}
	return string(b)
}

// MarshalJSON encodes atomic values as strings and composites as objects.
func (v StateValue) MarshalJSON() ([]byte, error) {
	if v.IsAtomic() {
		return json.Marshal(v.name)
	}
	if v.children == nil {
		return []byte("null"), nil
	}
	return json.Marshal(v.children)
}

// UnmarshalJSON accepts a string, an object of nested values, or null.
func (v *StateValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*v = StateValue{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		*v = StateValue{name: name}
		return nil
	}
	var children map[string]StateValue
	if err := json.Unmarshal(data, &children); err != nil {
		return fmt.Errorf("state value must be a string or an object: %w", err)
	}
	if children == nil {
		children = map[string]StateValue{}
	}
	*v = StateValue{children: children}
	return nil
}

// ObservedState is the externally visible state of an environment: its
// configuration and its extended data.
type ObservedState struct {
	Value   StateValue     `json:"value"`
	Context map[string]any `json:"context,omitempty"`
}

// Minimal returns a copy detached from the receiver: the context map is
// copied so callees cannot mutate the caller's data.
func (s ObservedState) Minimal() ObservedState {
	out := ObservedState{Value: s.Value}
	if s.Context != nil {
		out.Context = maps.Clone(s.Context)
	}
	return out
}

// Equal compares two observed states by their JSON encoding.
func (s ObservedState) Equal(o ObservedState) bool {
	if !s.Value.Equal(o.Value) {
		return false
	}
	a, errA := json.Marshal(s.Context)
	b, errB := json.Marshal(o.Context)
	if errA != nil || errB != nil {
		return false
	}
	if len(s.Context) == 0 && len(o.Context) == 0 {
		return true
	}
	return bytes.Equal(a, b)
}

// Snapshot is the resolved state of an environment model at one point in time.
type Snapshot struct {
	Value   StateValue     `json:"value"`
	Context map[string]any `json:"context"`
	Done    bool           `json:"done,omitempty"` // A top-level final state was reached
}

// Observed returns the observable part of the snapshot.
func (s Snapshot) Observed() ObservedState {
	return ObservedState{Value: s.Value, Context: maps.Clone(s.Context)}
}

// Matches reports whether the dotted path is active in the snapshot.
func (s Snapshot) Matches(path string) bool { return s.Value.Matches(path) }
