/*
Package observability exports agent activity as Prometheus metrics.

Metrics.Hooks plugs into tendril.WithHooks to time and count decision
attempts; Metrics.Watch counts the records appended to a memory log.
*/
package observability
