// Package validator type-checks a host's realized configuration
// against the per-step schemas declared via validate_config (spec
// §4.4). A schema is itself ordinary data (Schema), not code, so it
// can be declared by a compiled-in step and walked recursively
// against whatever value pkg/config resolved for the same path.
package validator
