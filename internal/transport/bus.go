// Package transport provides a demonstration in-process message bus
// connecting multiple engines together. It is not part of the
// replication core (internal/engine) — per the core's scope boundary the
// core only ever talks through receive/onExecute; a real deployment's
// wire transport lives entirely outside this package's concern, which is
// just enough plumbing for internal/harness scenarios and the repcore
// CLI's "connect" demo command to exercise multi-peer convergence.
package transport

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// EnvelopeIDGenerator mints transport-level envelope identifiers, used
// only for wire-level deduplication — distinct from an operation's own
// identity, which the core tracks independently.
type EnvelopeIDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 envelope IDs.
//
// Thread-safety: stateless, safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a new UUIDv7 as a hyphenated string.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Receiver is the subset of internal/engine.Engine the bus delivers to.
// Kept minimal so tests can stub it without a real engine.
type Receiver interface {
	Receive(raw []byte) error
}

// Bus fans out encoded operations to every subscriber other than the one
// that published them, deduplicating on envelope ID: a Publish whose
// envelope ID has already been seen is dropped for every subscriber.
// Each subscriber name holds one receiver, so subscribing the same name
// again replaces it rather than adding a second delivery.
type Bus struct {
	mu     sync.Mutex
	logger *slog.Logger
	idgen  EnvelopeIDGenerator
	subs   map[string]Receiver
	seen   map[string]struct{}
}

// BusOption configures a Bus.
type BusOption func(*Bus)

// WithLogger overrides the bus's logger.
func WithLogger(logger *slog.Logger) BusOption {
	return func(b *Bus) { b.logger = logger }
}

// WithEnvelopeIDGenerator overrides envelope ID generation, primarily for
// deterministic tests (internal/testutil.FixedEnvelopeIDGenerator).
func WithEnvelopeIDGenerator(g EnvelopeIDGenerator) BusOption {
	return func(b *Bus) { b.idgen = g }
}

// NewBus constructs an empty Bus.
func NewBus(opts ...BusOption) *Bus {
	b := &Bus{
		logger: slog.Default(),
		idgen:  UUIDv7Generator{},
		subs:   make(map[string]Receiver),
		seen:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a receiver under name. A second Subscribe call with
// the same name replaces the prior receiver.
func (b *Bus) Subscribe(name string, r Receiver) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[name] = r
}

// Unsubscribe removes name from the bus.
func (b *Bus) Unsubscribe(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, name)
}

// Publish delivers raw to every subscriber except from, tagging it with
// a fresh envelope ID for dedup bookkeeping. Delivery errors are logged
// per-subscriber, not returned, since one bad peer must not block
// delivery to the rest (the core's own ErrDeferred/fatal distinction is
// handled inside each Receiver's Receive).
func (b *Bus) Publish(from string, raw []byte) {
	envelopeID := b.idgen.Generate()

	b.mu.Lock()
	if _, dup := b.seen[envelopeID]; dup {
		b.mu.Unlock()
		return
	}
	b.seen[envelopeID] = struct{}{}

	targets := make(map[string]Receiver, len(b.subs))
	for name, r := range b.subs {
		if name == from {
			continue
		}
		targets[name] = r
	}
	b.mu.Unlock()

	for name, r := range targets {
		if err := r.Receive(raw); err != nil {
			b.logger.Warn("transport: delivery failed", "to", name, "from", from, "envelope", envelopeID, "error", err)
		}
	}
}
