/*
Package machine implements the reference environment: a hierarchical state
machine with compound, parallel and final states, guarded transitions,
context-updating actions and eventless transitions.

A Machine is a pure transition function over domain.Snapshot values. It
implements ports.Environment, so a decision strategy can enumerate the active
transitions of a state, step it, and search it for shortest paths to a goal.

An Actor wraps a Machine with a current snapshot and subscribers. Updates are
delivered one at a time in transition order; sending from a subscriber queues
the event instead of recursing.

Guards and assignments can be written in Go or compiled from CEL expressions
with Expressions, where "context" holds the machine context and "event" the
triggering event.
*/
package machine
