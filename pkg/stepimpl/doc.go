// Package stepimpl holds the compiled-in step implementations
// dispatched by pkg/steps.Registry. Each step is a plain function
// over *runtime.Engine; the remote index only ever names one of these
// by filename, it never supplies executable code (see pkg/steps'
// package doc for why).
//
// setup, os-detection, modifiers, and complete are the four names the
// driver always includes in --only regardless of what the operator
// passed (spec §6); a deployment's remote index is expected to carry
// a step with a matching short name for each of them, backed here.
package stepimpl
