/*
Package dsl provides a Go DSL (Domain Specific Language) for programmatically constructing
environment state machines.

It allows developers to define hierarchical, parallel and final states with guarded
transitions using a type-safe, fluent builder pattern instead of relying on external YAML
or JSON files. This is particularly useful for tests and for environments generated in code.

Example usage:

	b := dsl.New("door").Context("opened", 0)

	b.State("closed").
		On("open").To("opened").
		Assign("opened", func(ctx map[string]any, _ domain.Event) any { return ctx["opened"].(int) + 1 })

	b.State("opened").Go("close", "closed")

	m, err := b.Build()
	// m implements ports.Environment
*/
package dsl
