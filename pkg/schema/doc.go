// Package schema provides a small type system for structured data and its
// JSON Schema rendering.
//
// An Object is an ordered set of typed fields. It validates decoded data in
// Go, and renders itself as JSON Schema so the same definition can be handed
// to a language model as a tool parameter schema:
//
//	params := schema.NewObject(
//	    schema.Prop("reasoning", schema.String(), "Why this move"),
//	    schema.OptionalProp("amount", schema.Int(), "Gallons to pour"),
//	)
//
//	if err := params.Validate(map[string]any{"reasoning": "fill first"}); err != nil {
//	    // Handle validation errors
//	}
//
// Objects can also be parsed from type strings:
//
//	ctx, err := schema.ParseTypeMap(map[string]string{"jug3": "int", "jug5": "int"})
//
// Arbitrary JSON Schema documents (for example a synthesized goal predicate)
// are compiled with CompilePredicate and evaluated with Predicate.Match.
package schema
