// Package llm holds the language-model helpers shared by the decision
// strategies: a tool-executing text call, a schema-validated object call,
// middleware composition and deterministic test models.
//
// No provider client lives here. Anything that implements
// ports.LanguageModel can be plugged in.
package llm
