/*
Package types defines the core data structures shared across the agent:
configuration entities, step references, CLI options, the flat agent
configuration map, and the run summary. These are plain structs with no behavior;
the packages that own a concept (pkg/config, pkg/queue, pkg/steps)
build their logic around them.

# Core Types

Entity:
  - Kind: device or class
  - Name, validated against the kind's regex at construction
  - ISA: ordered parent names
  - Attrs: the key -> value mapping defined for the entity

AgentOptions carries the parsed CLI flags (safe mode, validate, filters,
hostname override, configdir) that steer the driver and runtime.
*/
package types
