package ledger

import "errors"

// Error taxonomy for the ledger. Every public operation either fully succeeds
// or fails atomically with one of these; all checks run before any mutation.
var (
	// ErrAlreadyRegistered means the owner address already holds an identity.
	// Registration is permanent, so this fires even for deactivated identities.
	ErrAlreadyRegistered = errors.New("address already holds an identity")

	// ErrNotAuthorized means the caller is neither the record owner nor the
	// administrator.
	ErrNotAuthorized = errors.New("caller is not authorized")

	// ErrNotFound means the requested identity or attestation does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrIdentityNotRegistered means the submitting address has no identity.
	ErrIdentityNotRegistered = errors.New("agent address has no registered identity")

	// ErrDuplicateAttestation means the derived fingerprint already exists.
	ErrDuplicateAttestation = errors.New("attestation fingerprint already exists")

	// ErrInvalidScore means a consistency score was outside 0-100.
	ErrInvalidScore = errors.New("consistency score out of range")

	// ErrAlreadyVerified means the attestation already left Pending.
	// Verification is single-shot and cannot be overwritten.
	ErrAlreadyVerified = errors.New("attestation already verified")

	// ErrChallengeWindowExpired means the challenge arrived after the
	// configured window following verification.
	ErrChallengeWindowExpired = errors.New("challenge window expired")

	// ErrNotAuthorizedVerifier means the caller is not in the
	// authorized-verifier set.
	ErrNotAuthorizedVerifier = errors.New("caller is not an authorized verifier")

	// ErrNotChallengeable means the attestation is not in a challengeable
	// state (still Pending, or already Challenged).
	ErrNotChallengeable = errors.New("attestation is not in a challengeable state")

	// ErrAttestationPending means a reputation update was requested for an
	// attestation that has not been verified yet.
	ErrAttestationPending = errors.New("attestation is still pending verification")

	// ErrUnderChallenge means a reputation update was requested for an
	// attestation whose outcome is disputed.
	ErrUnderChallenge = errors.New("attestation outcome is under challenge")

	// ErrAlreadyProcessed means the attestation outcome was already folded
	// into the agent's reputation aggregate.
	ErrAlreadyProcessed = errors.New("attestation already folded into reputation")

	// ErrInvalidArgument means an address or hash failed validation.
	ErrInvalidArgument = errors.New("invalid argument")
)
