package ledger

import (
	"github.com/sasha-s/go-deadlock"
)

// Event types published by the ledger.
const (
	EventAgentRegistered       = "agent_registered"
	EventAgentDeactivated      = "agent_deactivated"
	EventAgentReactivated      = "agent_reactivated"
	EventAttestationSubmitted  = "attestation_submitted"
	EventAttestationVerified   = "attestation_verified"
	EventAttestationChallenged = "attestation_challenged"
	EventReputationUpdated     = "reputation_updated"
)

// Event is a single ledger event. Payload is one of the typed payload
// structs below, selected by Type. Consumption is order-independent.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// AgentRegistered is emitted when a new identity is allocated.
type AgentRegistered struct {
	IdentityID   int64  `json:"identity_id"`
	OwnerAddress string `json:"owner_address"`
	DID          string `json:"did"`
}

// AgentDeactivated / AgentReactivated are emitted on active-flag toggles.
type AgentDeactivated struct {
	IdentityID int64 `json:"identity_id"`
}

type AgentReactivated struct {
	IdentityID int64 `json:"identity_id"`
}

// AttestationSubmitted is the signal the off-chain verifier process observes.
type AttestationSubmitted struct {
	AttestationID string `json:"attestation_id"`
	Agent         string `json:"agent"`
	Category      string `json:"category"`
	SubmittedAt   int64  `json:"submitted_at"`
}

// AttestationVerified is emitted on the single terminal verification write.
type AttestationVerified struct {
	AttestationID    string `json:"attestation_id"`
	Verifier         string `json:"verifier"`
	Status           string `json:"status"`
	ConsistencyScore int    `json:"consistency_score"`
}

// AttestationChallenged is emitted when a verified outcome is disputed
// within the challenge window.
type AttestationChallenged struct {
	AttestationID string `json:"attestation_id"`
	Challenger    string `json:"challenger"`
	Reason        string `json:"reason"`
}

// ReputationUpdated is emitted after an outcome is folded into the
// per-agent aggregate.
type ReputationUpdated struct {
	Agent     string `json:"agent"`
	NewScore  int64  `json:"new_score"`
	Timestamp int64  `json:"timestamp"`
}

// subscriberBuffer is the per-subscriber channel capacity. A subscriber that
// falls further behind than this loses events rather than blocking the ledger.
const subscriberBuffer = 64

// Bus is an in-process fan-out of ledger events. Publish never blocks.
type Bus struct {
	mu   deadlock.Mutex
	next int
	subs map[int]chan Event
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe registers a new subscriber. The returned cancel function must be
// called to release the subscription; the channel is closed on cancel.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan Event, subscriberBuffer)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish delivers an event to all subscribers without blocking. Events are
// dropped for subscribers whose buffers are full.
func (b *Bus) Publish(evt Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}
