package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/tendril/pkg/adapters/file"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/machine"
)

type environment struct {
	def     *file.Definition
	machine *machine.Machine
	events  domain.EventRegistry
}

func loadEnvironment() (*environment, error) {
	def, err := file.LoadDefinition(cfg.Definition)
	if err != nil {
		return nil, err
	}
	m, err := def.Machine(machine.WithLogger(cfg.Logger()))
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", cfg.Definition, err)
	}
	events, err := def.EventRegistry()
	if err != nil {
		return nil, err
	}
	return &environment{def: def, machine: m, events: events}, nil
}

// parseState reads a dotted path or a JSON state value, plus an optional JSON context.
func parseState(value, context string) (domain.ObservedState, error) {
	var state domain.ObservedState
	value = strings.TrimSpace(value)
	if strings.HasPrefix(value, "{") {
		if err := json.Unmarshal([]byte(value), &state.Value); err != nil {
			return state, fmt.Errorf("invalid state value: %w", err)
		}
	} else if value != "" {
		state.Value = domain.ParseStateValue(value)
	}
	if context != "" {
		if err := json.Unmarshal([]byte(context), &state.Context); err != nil {
			return state, fmt.Errorf("invalid context: %w", err)
		}
	}
	return state, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
