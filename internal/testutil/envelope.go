package testutil

import "sync"

// FixedEnvelopeIDGenerator returns predetermined envelope IDs in order,
// satisfying transport.EnvelopeIDGenerator. Scenario tests seed it with a
// known sequence and get byte-identical dedup behavior every run.
//
// Thread-safety: safe for concurrent use via internal mutex.
type FixedEnvelopeIDGenerator struct {
	mu   sync.Mutex
	ids  []string
	idx  int
}

// NewFixedEnvelopeIDGenerator creates a generator that returns ids in
// order.
func NewFixedEnvelopeIDGenerator(ids ...string) *FixedEnvelopeIDGenerator {
	return &FixedEnvelopeIDGenerator{ids: ids}
}

// Generate returns the next predetermined envelope ID.
//
// Panics if all ids have been consumed, a fail-fast guard against a
// scenario publishing more messages than the test anticipated.
func (g *FixedEnvelopeIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.idx >= len(g.ids) {
		panic("testutil: FixedEnvelopeIDGenerator: all ids exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}

// FixedConstantEnvelopeIDGenerator always returns the same envelope ID —
// every message shares one envelope ID. Useful for scenarios that publish
// exactly one message and don't care about its ID.
type FixedConstantEnvelopeIDGenerator struct {
	id string
}

// NewFixedConstantEnvelopeIDGenerator creates a generator returning id
// every time. An empty id defaults to "test-envelope-default".
func NewFixedConstantEnvelopeIDGenerator(id string) *FixedConstantEnvelopeIDGenerator {
	if id == "" {
		id = "test-envelope-default"
	}
	return &FixedConstantEnvelopeIDGenerator{id: id}
}

// Generate returns the fixed envelope ID.
func (g *FixedConstantEnvelopeIDGenerator) Generate() string {
	return g.id
}
