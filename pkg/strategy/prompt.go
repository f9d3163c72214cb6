package strategy

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/aretw0/tendril/pkg/domain"
)

// Field is one named element of a tag-delimited prompt.
type Field struct {
	Name  string
	Value any
}

// RenderXML renders the fields, in order, as nested tags. Maps render their
// keys sorted; slices render their elements under their index.
func RenderXML(fields ...Field) string {
	var b strings.Builder
	for _, f := range fields {
		writeTag(&b, f.Name, f.Value)
	}
	return b.String()
}

func writeTag(b *strings.Builder, name string, v any) {
	b.WriteString("<" + name + ">")
	writeValue(b, v)
	b.WriteString("</" + name + ">")
}

func writeValue(b *strings.Builder, v any) {
	switch val := v.(type) {
	case nil:
	case domain.StateValue:
		if val.IsAtomic() {
			b.WriteString(val.Name())
			return
		}
		for _, k := range val.Keys() {
			child, _ := val.Child(k)
			writeTag(b, k, child)
		}
	case domain.ObservedState:
		writeTag(b, "value", val.Value)
		if val.Context != nil {
			writeTag(b, "context", val.Context)
		}
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			writeTag(b, k, val[k])
		}
	case []any:
		for i, e := range val {
			writeTag(b, strconv.Itoa(i), e)
		}
	case string:
		b.WriteString(val)
	case fmt.Stringer:
		b.WriteString(val.String())
	default:
		// Structs and typed collections go through their JSON shape.
		raw, err := json.Marshal(val)
		if err != nil {
			fmt.Fprint(b, val)
			return
		}
		var generic any
		if err := json.Unmarshal(raw, &generic); err != nil {
			b.Write(raw)
			return
		}
		switch generic.(type) {
		case map[string]any, []any:
			writeValue(b, generic)
		default:
			b.Write(raw)
		}
	}
}

// wrapTag wraps content in a single tag.
func wrapTag(name, content string) string {
	return "<" + name + ">" + content + "</" + name + ">"
}
