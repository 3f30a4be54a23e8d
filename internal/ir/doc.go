// Package ir defines the operation algebra for the replicated sequence
// engine: identifiers, the four operation variants, and the wire shapes
// used to exchange them between peers.
//
// This package contains type definitions and pure value logic only. The
// execution and integration algorithms live in internal/engine, which
// imports ir; ir imports nothing internal. This keeps the algebra a
// dependency-free foundation, mirroring how concept/sync IR is laid out
// in rule-sync engines this codebase is descended from.
//
// Key design constraints:
//   - Identifiers order first by creator, then by op_number (Identifier.Less).
//   - Reference fields are resolved eagerly when the argument is already a
//     live operation, or recorded as a pending Identifier otherwise (Ref).
//   - All JSON tags use snake_case for the wire encoding in wire.go.
package ir
