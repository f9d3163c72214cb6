package domain

import (
	"reflect"
)

// StateDiff represents the changes between two snapshots.
// It is designed to be serialized to JSON for step previews.
type StateDiff struct {
	// Value is set when the configuration changed.
	Value *StateValue `json:"value,omitempty"`

	// Context contains only changed, added or deleted keys.
	// For deletions, the key is present with a nil value.
	Context map[string]any `json:"context,omitempty"`

	// Done is set when the snapshot entered or left a final state.
	Done *bool `json:"done,omitempty"`
}

// Diff calculates the difference between prev and next.
// If prev is nil, it returns a diff representing the entire next snapshot.
// It returns nil when nothing changed.
func Diff(prev *Snapshot, next Snapshot) *StateDiff {
	diff := &StateDiff{}

	if prev == nil || !prev.Value.Equal(next.Value) {
		v := next.Value
		diff.Value = &v
	}
	if prev == nil {
		if next.Done {
			diff.Done = &next.Done
		}
	} else if prev.Done != next.Done {
		diff.Done = &next.Done
	}

	var old map[string]any
	if prev != nil {
		old = prev.Context
	}
	diff.Context = diffContext(old, next.Context)

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

func diffContext(old, new map[string]any) map[string]any {
	delta := make(map[string]any)

	// Check for Added or Modified
	for k, newVal := range new {
		oldVal, exists := old[k]
		if !exists || !reflect.DeepEqual(oldVal, newVal) {
			delta[k] = newVal
		}
	}

	// Check for Deletions
	for k := range old {
		if _, exists := new[k]; !exists {
			delta[k] = nil
		}
	}

	if len(delta) == 0 {
		return nil
	}
	return delta
}

// IsEmpty checks if the diff contains any changes.
func (d *StateDiff) IsEmpty() bool {
	return d.Value == nil && d.Done == nil && len(d.Context) == 0
}
