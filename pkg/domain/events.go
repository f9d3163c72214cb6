package domain

import (
	"encoding/json"
	"fmt"
	"maps"

	"github.com/mitchellh/mapstructure"
)

// InitEventType is the synthetic event that labels the origin step of a planned path.
const InitEventType = "machine.init"

// Event is a discriminated input to an environment: a type plus parameters.
// Its JSON form flattens the parameters next to "type".
type Event struct {
	Type   string         `json:"type"`
	Params map[string]any `json:"-"`
}

// NewEvent builds an event. A "type" key inside params is ignored.
func NewEvent(eventType string, params map[string]any) Event {
	e := Event{Type: eventType}
	if len(params) > 0 {
		e.Params = make(map[string]any, len(params))
		for k, v := range params {
			if k == "type" {
				continue
			}
			e.Params[k] = v
		}
	}
	return e
}

// Param returns a single parameter.
func (e Event) Param(key string) (any, bool) {
	v, ok := e.Params[key]
	return v, ok
}

// AsMap returns the flattened {"type": ..., params...} form.
func (e Event) AsMap() map[string]any {
	out := make(map[string]any, len(e.Params)+1)
	maps.Copy(out, e.Params)
	out["type"] = e.Type
	return out
}

// Decode decodes the event parameters into out, honouring json tags.
func (e Event) Decode(out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(e.Params)
}

func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.AsMap())
}

func (e *Event) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	t, ok := raw["type"].(string)
	if !ok || t == "" {
		return fmt.Errorf("event: missing string field \"type\"")
	}
	*e = NewEvent(t, raw)
	return nil
}
