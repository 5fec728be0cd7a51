// internal/storage/models.go
package storage

// Attestation statuses.
const (
	StatusPending    = "pending"
	StatusVerified   = "verified"
	StatusRejected   = "rejected"
	StatusChallenged = "challenged"
)

// Identity is a soulbound agent identity record. One identity per owner
// address, allocated sequentially starting at 1. Records are never deleted
// and never reassigned to another owner; deactivation only clears the
// Active flag.
type Identity struct {
	ID              int64    `json:"id"`
	OwnerAddress    string   `json:"owner_address"`
	DID             string   `json:"did"`
	ModelType       string   `json:"model_type"`
	ModelVersion    string   `json:"model_version"`
	Specializations []string `json:"specializations"`
	RegisteredAt    int64    `json:"registered_at"`
	Active          bool     `json:"active"`
}

// Attestation is a committed record of an agent decision plus its reasoning,
// keyed by the derived fingerprint.
type Attestation struct {
	ID               string `json:"attestation_id"`
	ContentHash      string `json:"content_hash"`
	ReasoningHash    string `json:"reasoning_hash"`
	AgentAddress     string `json:"agent_address"`
	ModelVersion     string `json:"model_version"`
	Category         string `json:"category"`
	SubmittedAt      int64  `json:"submitted_at"`
	Status           string `json:"status"`
	ConsistencyScore int    `json:"consistency_score"`
	Verifier         string `json:"verifier,omitempty"`
	VerifiedAt       int64  `json:"verified_at,omitempty"`
	Challenger       string `json:"challenger,omitempty"`
	ChallengeReason  string `json:"challenge_reason,omitempty"`
	ChallengedAt     int64  `json:"challenged_at,omitempty"`

	// ReputationApplied marks that this attestation's outcome has been
	// folded into the agent's reputation aggregate exactly once.
	ReputationApplied bool `json:"-"`
}

// ReputationRecord is the per-agent running aggregate. Storage is O(1) per
// agent regardless of attestation volume; the score is recomputed from the
// counters alone.
type ReputationRecord struct {
	AgentAddress            string `json:"agent_address"`
	TotalAttestations       int64  `json:"total_attestations"`
	VerifiedAttestations    int64  `json:"verified_attestations"`
	RejectedAttestations    int64  `json:"rejected_attestations"`
	AverageConsistencyScore int64  `json:"average_consistency_score"`
	RegisteredAt            int64  `json:"registered_at"`
	LastUpdatedAt           int64  `json:"last_updated_at"`
	Score                   int64  `json:"score"`
}

// Verifier is an authorized verifier address.
type Verifier struct {
	Address string `json:"address"`
	AddedAt int64  `json:"added_at"`
}
