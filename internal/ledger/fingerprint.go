package ledger

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

const (
	hashHexLen    = 64 // 32 bytes
	addressHexLen = 40 // 20 bytes
)

// AttestationID derives the deterministic fingerprint of an attestation:
//
//	keccak256(keccak256(contentHash || reasoningHash || agent || uint256(submittedAt)))
//
// Two submissions with identical hashes but different timestamps produce
// distinct fingerprints.
func AttestationID(contentHash, reasoningHash, agentAddress string, submittedAt int64) (string, error) {
	content, err := decodeHash(contentHash)
	if err != nil {
		return "", fmt.Errorf("content hash: %w", err)
	}
	reasoning, err := decodeHash(reasoningHash)
	if err != nil {
		return "", fmt.Errorf("reasoning hash: %w", err)
	}
	agent, err := decodeAddress(agentAddress)
	if err != nil {
		return "", fmt.Errorf("agent address: %w", err)
	}

	// Timestamp is encoded as a 32-byte big-endian unsigned integer, matching
	// the uint256 ABI encoding of the reference ledger.
	var ts [32]byte
	binary.BigEndian.PutUint64(ts[24:], uint64(submittedAt))

	inner := keccak256(content, reasoning, agent, ts[:])
	outer := keccak256(inner)
	return "0x" + hex.EncodeToString(outer), nil
}

// NormalizeAddress lowercases an address and validates its shape
// (0x-prefixed, 20 bytes of hex).
func NormalizeAddress(address string) (string, error) {
	addr := strings.ToLower(strings.TrimSpace(address))
	if _, err := decodeAddress(addr); err != nil {
		return "", err
	}
	return addr, nil
}

// NormalizeHash lowercases a 32-byte hash and validates its shape.
func NormalizeHash(hash string) (string, error) {
	h := strings.ToLower(strings.TrimSpace(hash))
	if _, err := decodeHash(h); err != nil {
		return "", err
	}
	return h, nil
}

func keccak256(parts ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}

func decodeHash(s string) ([]byte, error) {
	return decodeHexField(s, hashHexLen, "hash")
}

func decodeAddress(s string) ([]byte, error) {
	return decodeHexField(s, addressHexLen, "address")
}

func decodeHexField(s string, wantLen int, kind string) ([]byte, error) {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return nil, fmt.Errorf("%w: %s missing 0x prefix", ErrInvalidArgument, kind)
	}
	body := s[2:]
	if len(body) != wantLen {
		return nil, fmt.Errorf("%w: %s must be %d hex chars, got %d", ErrInvalidArgument, kind, wantLen, len(body))
	}
	b, err := hex.DecodeString(strings.ToLower(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %s is not valid hex", ErrInvalidArgument, kind)
	}
	return b, nil
}
