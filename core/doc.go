// Package core defines the shared primitives of the call-centre routing
// runtime: conversation turns, the append-only history with role filtering,
// the usage accumulator and the per-session state aggregate that the
// orchestrator and specialist handlers operate on.
package core
