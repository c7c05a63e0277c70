// Package agentconfig reads and writes the agent's local configuration
// file: a flat "key = value" text format holding base_url, TLS
// material paths, and similar operational settings that must survive
// between runs. Writes go through a temp file and rename so a crash
// mid-write never corrupts the file a later run reads.
package agentconfig
