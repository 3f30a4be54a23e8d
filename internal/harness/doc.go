// Package harness wires several deterministic internal/engine replicas
// together over an internal/transport.Bus and runs spec §8's six
// end-to-end multi-peer scenarios (sequential insert, concurrent insert
// under both tie-break orders, interleaved origins, delete-before-insert
// delivery, and out-of-order origin-not-adjacent delivery), then checks
// strong eventual consistency: every replica that has seen the same
// operations must agree on the visible sequence, regardless of arrival
// order.
//
// Scenario outcomes are asserted directly against each replica's visible
// sequence. The wire codec's exact JSON output (an ImmutableObject and a
// Delete round-trip) is pinned by goldie golden files, so a wire-format
// change shows up as a golden diff; scenario CL states have no golden
// files. Run with `-update` to regenerate:
//
//	go test ./internal/harness -update
package harness
