// Package domain defines the core domain models for TokDrop.
//
// Domain models are pure value objects and entities without any
// IO dependencies or framework coupling. This package contains:
//
//   - TokenRecord: a batch of uploaded files and its creation time
//   - Token codec: id generation and the deep-link transport encoding
//   - Decision: the outcome of gating a delivery request
//   - FileKind: content classification used to pick a send operation
//   - Retraction: a scheduled deletion of a delivered message
//   - Errors: domain-specific error definitions
package domain
