/*
Package domain contains the core domain models of the tendril decision layer.

It defines the data that flows between an agent, its language model and the
environment it acts in. The package is kept free of I/O and persistence,
following Hexagonal Architecture principles.

# Key Entities

  - StateValue / ObservedState / Snapshot: the configuration and data of an environment.
  - Event / EventSchema / EventRegistry: the closed catalogue of events an agent may emit.
  - Transition / Tool: candidate moves and their callable, model-facing form.
  - Decision / Path / Step: the outcome of a strategy run.
  - Observation / Feedback / Message / MemoryEvent: the records kept in agent memory.
*/
package domain
