// Package protocol owns the receiver wire contract and shared event types.
//
// Ownership boundary:
// - frame assembly primitives (assembler)
// - cipher envelope decomposition (envelope)
// - authentication event extraction (event)
package protocol
