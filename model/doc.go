// Package model defines the provider-agnostic language model abstraction used
// by ModelAgent. Providers live in subpackages (openai, anthropic) and adapt
// the normalized Request / Response types to their SDKs. The core treats a
// model call as an opaque capability: it consumes instructions plus the
// conversation and yields text or an error.
package model
