// Package model defines the provider-agnostic boundary to the text-completion
// service consumed by the router and the specialist handlers.
//
// Core goals:
//   - Unify streaming + non-streaming generation behind a single interface
//   - Normalize tool exposure (named, described, single-string-argument
//     callables) and structured output requests
//   - Surface a per-call usage delta so the session accumulator can account
//     for every underlying request
//   - Facilitate lightweight stubbing for tests (StubModel)
//
// Providers (e.g. OpenAI, Anthropic) implement the Model interface from this
// package so the routing core remains decoupled from vendor SDKs.
package model
