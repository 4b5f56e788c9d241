// Package core provides the foundational domain types and interfaces shared by
// every agentpipe package. It defines:
//
//   - Messages and the append-only Conversation threaded through a pipeline
//   - Identity, the cache key describing one logical agent
//   - Handle, the single capability every agent / worker implements
//   - OutputEvent, the per-stage record streamed by pipelines
//   - Parts, the closed set of inbound request content segments
//   - The error taxonomy (validation, worker, pipeline abort, cache creation)
package core
