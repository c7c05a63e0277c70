// Package metrics declares the agent's Prometheus metrics and writes
// them to a node_exporter textfile-collector drop at the end of a run.
// Unlike a long-running server, this agent never serves /metrics
// itself — it runs once and exits, so exposition happens by rendering
// the registry to the text format and writing it to a file a separate
// node_exporter instance picks up.
package metrics
