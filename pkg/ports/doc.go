/*
Package ports defines the driven ports (interfaces) of the tendril decision layer.

These interfaces decouple the decision pipeline from concrete collaborators,
allowing it to work with any language model provider, environment model or
storage backend.

# Key Interfaces

  - LanguageModel: generates text, tool calls or structured objects.
  - Environment: the pure model of the world (resolve, enumerate, step, search).
  - Actor: a live environment instance that accepts events.
  - MemoryStore: long-term persistence of agent memory records.
*/
package ports
