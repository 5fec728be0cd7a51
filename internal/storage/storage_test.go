package storage

import (
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

// setupTestDB creates a temporary SQLite database for testing.
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := NewDB(dbPath)
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testAddr(b string) string {
	return "0x" + strings.Repeat(b, 20)
}

func testHash(b string) string {
	return "0x" + strings.Repeat(b, 32)
}

// seedIdentity inserts an identity so attestation and reputation rows can
// reference it.
func seedIdentity(t *testing.T, db *DB, owner string) *Identity {
	t.Helper()
	id := &Identity{
		OwnerAddress:    owner,
		DID:             "did:anna:" + owner,
		ModelType:       "llm",
		ModelVersion:    "v1",
		Specializations: []string{"code"},
		RegisteredAt:    1000,
		Active:          true,
	}
	if err := db.CreateIdentity(id); err != nil {
		t.Fatalf("CreateIdentity: %v", err)
	}
	return id
}

func seedAttestation(t *testing.T, db *DB, id, agent string, submittedAt int64) *Attestation {
	t.Helper()
	a := &Attestation{
		ID:            id,
		ContentHash:   testHash("aa"),
		ReasoningHash: testHash("bb"),
		AgentAddress:  agent,
		ModelVersion:  "v1",
		Category:      "code-review",
		SubmittedAt:   submittedAt,
		Status:        StatusPending,
	}
	if err := db.CreateAttestation(a); err != nil {
		t.Fatalf("CreateAttestation: %v", err)
	}
	return a
}

func TestIdentity_CreateAndGet(t *testing.T) {
	db := setupTestDB(t)

	first := seedIdentity(t, db, testAddr("11"))
	if first.ID != 1 {
		t.Fatalf("first identity ID = %d, want 1", first.ID)
	}
	second := seedIdentity(t, db, testAddr("22"))
	if second.ID != 2 {
		t.Fatalf("second identity ID = %d, want 2", second.ID)
	}

	got, err := db.GetIdentity(first.ID)
	if err != nil {
		t.Fatalf("GetIdentity: %v", err)
	}
	if !reflect.DeepEqual(got, first) {
		t.Fatalf("GetIdentity = %+v, want %+v", got, first)
	}

	byAddr, err := db.GetIdentityByAddress(testAddr("22"))
	if err != nil {
		t.Fatalf("GetIdentityByAddress: %v", err)
	}
	if byAddr.ID != second.ID {
		t.Fatalf("lookup by address ID = %d, want %d", byAddr.ID, second.ID)
	}

	n, err := db.CountIdentities()
	if err != nil {
		t.Fatalf("CountIdentities: %v", err)
	}
	if n != 2 {
		t.Fatalf("CountIdentities = %d, want 2", n)
	}
}

func TestIdentity_GetMissing(t *testing.T) {
	db := setupTestDB(t)

	if _, err := db.GetIdentity(99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetIdentity missing: err = %v, want ErrNotFound", err)
	}
	if _, err := db.GetIdentityByAddress(testAddr("99")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetIdentityByAddress missing: err = %v, want ErrNotFound", err)
	}
}

func TestIdentity_UniqueOwner(t *testing.T) {
	db := setupTestDB(t)
	seedIdentity(t, db, testAddr("11"))

	dup := &Identity{
		OwnerAddress:    testAddr("11"),
		DID:             "did:anna:" + testAddr("11"),
		ModelType:       "llm",
		ModelVersion:    "v2",
		Specializations: []string{},
		RegisteredAt:    2000,
		Active:          true,
	}
	if err := db.CreateIdentity(dup); err == nil {
		t.Fatal("duplicate owner address should fail")
	}
}

func TestIdentity_SetActive(t *testing.T) {
	db := setupTestDB(t)
	id := seedIdentity(t, db, testAddr("11"))

	if err := db.SetIdentityActive(id.ID, false); err != nil {
		t.Fatalf("SetIdentityActive: %v", err)
	}
	got, err := db.GetIdentity(id.ID)
	if err != nil {
		t.Fatalf("GetIdentity: %v", err)
	}
	if got.Active {
		t.Fatal("identity should be inactive")
	}

	if err := db.SetIdentityActive(99, true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("SetIdentityActive missing: err = %v, want ErrNotFound", err)
	}
}

func TestAttestation_CreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	agent := testAddr("11")
	seedIdentity(t, db, agent)
	att := seedAttestation(t, db, testHash("cc"), agent, 5000)

	got, err := db.GetAttestation(att.ID)
	if err != nil {
		t.Fatalf("GetAttestation: %v", err)
	}
	if !reflect.DeepEqual(got, att) {
		t.Fatalf("GetAttestation = %+v, want %+v", got, att)
	}

	exists, err := db.HasAttestation(att.ID)
	if err != nil {
		t.Fatalf("HasAttestation: %v", err)
	}
	if !exists {
		t.Fatal("HasAttestation should report true")
	}
	exists, err = db.HasAttestation(testHash("ff"))
	if err != nil {
		t.Fatalf("HasAttestation: %v", err)
	}
	if exists {
		t.Fatal("HasAttestation should report false for unknown id")
	}
}

func TestAttestation_MarkVerified_SingleShot(t *testing.T) {
	db := setupTestDB(t)
	agent := testAddr("11")
	seedIdentity(t, db, agent)
	att := seedAttestation(t, db, testHash("cc"), agent, 5000)

	verifier := testAddr("99")
	if err := db.MarkVerified(att.ID, StatusVerified, 95, verifier, 6000); err != nil {
		t.Fatalf("MarkVerified: %v", err)
	}

	got, err := db.GetAttestation(att.ID)
	if err != nil {
		t.Fatalf("GetAttestation: %v", err)
	}
	if got.Status != StatusVerified || got.ConsistencyScore != 95 || got.Verifier != verifier || got.VerifiedAt != 6000 {
		t.Fatalf("verified attestation = %+v", got)
	}

	// The conditional update must not overwrite a settled outcome.
	if err := db.MarkVerified(att.ID, StatusRejected, 10, verifier, 7000); !errors.Is(err, ErrConflict) {
		t.Fatalf("second MarkVerified: err = %v, want ErrConflict", err)
	}
}

func TestAttestation_MarkChallenged(t *testing.T) {
	db := setupTestDB(t)
	agent := testAddr("11")
	seedIdentity(t, db, agent)
	att := seedAttestation(t, db, testHash("cc"), agent, 5000)

	// Pending records are not challengeable.
	if err := db.MarkChallenged(att.ID, testAddr("22"), "bad", 6000); !errors.Is(err, ErrConflict) {
		t.Fatalf("challenge pending: err = %v, want ErrConflict", err)
	}

	if err := db.MarkVerified(att.ID, StatusVerified, 90, testAddr("99"), 6000); err != nil {
		t.Fatalf("MarkVerified: %v", err)
	}
	if err := db.MarkChallenged(att.ID, testAddr("22"), "fabricated reasoning", 7000); err != nil {
		t.Fatalf("MarkChallenged: %v", err)
	}

	got, err := db.GetAttestation(att.ID)
	if err != nil {
		t.Fatalf("GetAttestation: %v", err)
	}
	if got.Status != StatusChallenged || got.Challenger != testAddr("22") || got.ChallengeReason != "fabricated reasoning" {
		t.Fatalf("challenged attestation = %+v", got)
	}

	if err := db.MarkChallenged(att.ID, testAddr("33"), "again", 8000); !errors.Is(err, ErrConflict) {
		t.Fatalf("double challenge: err = %v, want ErrConflict", err)
	}
}

func TestAttestation_Lists(t *testing.T) {
	db := setupTestDB(t)
	agent := testAddr("11")
	seedIdentity(t, db, agent)
	seedAttestation(t, db, testHash("c1"), agent, 3000)
	seedAttestation(t, db, testHash("c2"), agent, 1000)
	seedAttestation(t, db, testHash("c3"), agent, 2000)

	pending, err := db.ListAttestationsByStatus(StatusPending, 10)
	if err != nil {
		t.Fatalf("ListAttestationsByStatus: %v", err)
	}
	if len(pending) != 3 {
		t.Fatalf("pending count = %d, want 3", len(pending))
	}
	if pending[0].SubmittedAt != 1000 || pending[2].SubmittedAt != 3000 {
		t.Fatal("pending list should be oldest first")
	}

	limited, err := db.ListAttestationsByStatus(StatusPending, 2)
	if err != nil {
		t.Fatalf("ListAttestationsByStatus limited: %v", err)
	}
	if len(limited) != 2 {
		t.Fatalf("limited count = %d, want 2", len(limited))
	}

	byAgent, err := db.ListAttestationsByAgent(agent)
	if err != nil {
		t.Fatalf("ListAttestationsByAgent: %v", err)
	}
	if len(byAgent) != 3 || byAgent[0].SubmittedAt != 3000 {
		t.Fatal("agent list should be newest first")
	}

	n, err := db.CountAttestationsByAgent(agent)
	if err != nil {
		t.Fatalf("CountAttestationsByAgent: %v", err)
	}
	if n != 3 {
		t.Fatalf("CountAttestationsByAgent = %d, want 3", n)
	}
}

func TestReputation_ApplyUpdate_Idempotent(t *testing.T) {
	db := setupTestDB(t)
	agent := testAddr("11")
	seedIdentity(t, db, agent)
	att := seedAttestation(t, db, testHash("cc"), agent, 5000)
	if err := db.MarkVerified(att.ID, StatusVerified, 95, testAddr("99"), 6000); err != nil {
		t.Fatalf("MarkVerified: %v", err)
	}

	rec := &ReputationRecord{
		AgentAddress:            agent,
		TotalAttestations:       1,
		VerifiedAttestations:    1,
		AverageConsistencyScore: 95,
		RegisteredAt:            1000,
		LastUpdatedAt:           6000,
		Score:                   410,
	}
	if err := db.ApplyReputationUpdate(att.ID, rec); err != nil {
		t.Fatalf("ApplyReputationUpdate: %v", err)
	}

	got, err := db.GetReputation(agent)
	if err != nil {
		t.Fatalf("GetReputation: %v", err)
	}
	if !reflect.DeepEqual(got, rec) {
		t.Fatalf("GetReputation = %+v, want %+v", got, rec)
	}

	// A second fold of the same attestation must fail and leave the
	// aggregate untouched.
	rec2 := *rec
	rec2.TotalAttestations = 2
	if err := db.ApplyReputationUpdate(att.ID, &rec2); !errors.Is(err, ErrConflict) {
		t.Fatalf("second ApplyReputationUpdate: err = %v, want ErrConflict", err)
	}
	got, err = db.GetReputation(agent)
	if err != nil {
		t.Fatalf("GetReputation after conflict: %v", err)
	}
	if got.TotalAttestations != 1 {
		t.Fatalf("aggregate mutated by failed fold: %+v", got)
	}

	attAfter, err := db.GetAttestation(att.ID)
	if err != nil {
		t.Fatalf("GetAttestation: %v", err)
	}
	if !attAfter.ReputationApplied {
		t.Fatal("attestation should be marked as folded")
	}
}

func TestReputation_GetMissing(t *testing.T) {
	db := setupTestDB(t)
	if _, err := db.GetReputation(testAddr("11")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetReputation missing: err = %v, want ErrNotFound", err)
	}
}

func TestVerifierSet(t *testing.T) {
	db := setupTestDB(t)
	v1 := testAddr("aa")
	v2 := testAddr("bb")

	if err := db.AddVerifier(v1, 1000); err != nil {
		t.Fatalf("AddVerifier: %v", err)
	}
	// Idempotent.
	if err := db.AddVerifier(v1, 2000); err != nil {
		t.Fatalf("AddVerifier repeat: %v", err)
	}
	if err := db.AddVerifier(v2, 3000); err != nil {
		t.Fatalf("AddVerifier: %v", err)
	}

	ok, err := db.IsVerifier(v1)
	if err != nil {
		t.Fatalf("IsVerifier: %v", err)
	}
	if !ok {
		t.Fatal("v1 should be a verifier")
	}

	list, err := db.ListVerifiers()
	if err != nil {
		t.Fatalf("ListVerifiers: %v", err)
	}
	if len(list) != 2 || list[0].Address != v1 || list[0].AddedAt != 1000 {
		t.Fatalf("ListVerifiers = %+v", list)
	}

	if err := db.RemoveVerifier(v1); err != nil {
		t.Fatalf("RemoveVerifier: %v", err)
	}
	ok, err = db.IsVerifier(v1)
	if err != nil {
		t.Fatalf("IsVerifier: %v", err)
	}
	if ok {
		t.Fatal("v1 should no longer be a verifier")
	}
	// Removing an absent address is not an error.
	if err := db.RemoveVerifier(v1); err != nil {
		t.Fatalf("RemoveVerifier repeat: %v", err)
	}
}
