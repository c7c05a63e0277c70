// Package config implements the host configuration model: a forest of
// named classes and devices with multiple inheritance (spec §3, §4.3).
//
// Entities are defined once, before any step runs (Device/Class), then
// looked up by path through C/CAll, which walk the ISA graph with an
// explicit visited-set so lookup terminates on any graph shape,
// including cycles. Consumers normalize the (possibly multi-hit)
// result with FlattenList/FlattenHash. The I* predicate family is
// built on top of the same walk via IIterate.
//
// Class/device blocks are loaded from a directory of YAML documents
// (LoadDir) rather than evaluated as code — see the Design Notes in
// SPEC_FULL.md for why. Each document's "kind", "name", and "isa"
// fields are structural; every other top-level field becomes an
// attribute.
package config
