package engine

import (
	"sync"

	"github.com/roach88/repcore/internal/ir"
)

// IdentifierService mints strictly increasing identifiers for one peer
// (spec §6). Counter state must be initialized above every value the peer
// has ever issued — internal/store's persistence adapter is responsible
// for restoring it across restarts; a fresh counter always starts at 0.
type IdentifierService struct {
	mu      sync.Mutex
	peer    ir.PeerID
	counter uint64
}

// NewIdentifierService constructs a service for peer, with counter
// already advanced past startAt (pass the highest previously issued
// op_number, or 0 for a brand new peer).
func NewIdentifierService(peer ir.PeerID, startAt uint64) *IdentifierService {
	return &IdentifierService{peer: peer, counter: startAt}
}

// PeerID returns the peer this service mints identifiers for.
func (s *IdentifierService) PeerID() ir.PeerID { return s.peer }

// NextIdentifier returns (ownPeerId, ++counter).
func (s *IdentifierService) NextIdentifier() ir.Identifier {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counter++
	return ir.Identifier{Creator: s.peer, OpNumber: s.counter}
}

// Observe advances the counter past id if id was issued by this peer and
// is ahead of what the service has seen, e.g. when replaying a persisted
// history on startup.
func (s *IdentifierService) Observe(id ir.Identifier) {
	if id.Creator != s.peer {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if id.OpNumber > s.counter {
		s.counter = id.OpNumber
	}
}
