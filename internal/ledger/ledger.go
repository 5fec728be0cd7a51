// Package ledger implements the attestation/reputation state machine:
// identity registration, the attestation verification lifecycle, verifier
// authorization, and deterministic reputation scoring. Every mutating
// operation takes an explicit unix-seconds timestamp so histories replay
// identically, checks all preconditions before any write, and is serialized
// against other writes touching the same agent.
package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/sasha-s/go-deadlock"

	"github.com/anna-protocol/anna/internal/storage"
)

// DefaultChallengeWindow is the policy default for disputing a verification
// outcome. Externally configurable; see Options.
const DefaultChallengeWindow = 7 * 24 * time.Hour

// Options configures a Ledger.
type Options struct {
	// Admin is the administrator address. It alone may mutate the
	// authorized-verifier set, and may toggle any identity's active flag.
	Admin string

	// ChallengeWindow bounds how long after verification an attestation may
	// be challenged. Zero means DefaultChallengeWindow.
	ChallengeWindow time.Duration
}

// Ledger is the core state machine over a transactional keyed store.
type Ledger struct {
	store *storage.DB
	bus   *Bus

	admin      string
	windowSecs int64

	// registryMu serializes identity allocation and verifier-set mutation.
	registryMu deadlock.Mutex

	// lockMu guards the per-agent lock table. Writes to a given agent's
	// records are serialized through that agent's lock; cross-agent writes
	// proceed concurrently.
	lockMu     deadlock.Mutex
	agentLocks map[string]*deadlock.Mutex
}

// New creates a Ledger over the given store.
func New(store *storage.DB, opts Options) (*Ledger, error) {
	admin, err := NormalizeAddress(opts.Admin)
	if err != nil {
		return nil, fmt.Errorf("admin address: %w", err)
	}
	window := opts.ChallengeWindow
	if window == 0 {
		window = DefaultChallengeWindow
	}
	return &Ledger{
		store:      store,
		bus:        NewBus(),
		admin:      admin,
		windowSecs: int64(window / time.Second),
		agentLocks: make(map[string]*deadlock.Mutex),
	}, nil
}

// Bus returns the ledger's event bus.
func (l *Ledger) Bus() *Bus {
	return l.bus
}

// ChallengeWindow returns the configured challenge window.
func (l *Ledger) ChallengeWindow() time.Duration {
	return time.Duration(l.windowSecs) * time.Second
}

// isAdmin reports whether a normalized address is the administrator.
func (l *Ledger) isAdmin(address string) bool {
	return address == l.admin
}

// agentLock returns the mutex serializing writes for one agent address,
// creating it on first use. Locks are never removed; the table grows with
// the number of distinct agents, same as the identity set itself.
func (l *Ledger) agentLock(address string) *deadlock.Mutex {
	l.lockMu.Lock()
	defer l.lockMu.Unlock()
	mu, ok := l.agentLocks[address]
	if !ok {
		mu = &deadlock.Mutex{}
		l.agentLocks[address] = mu
	}
	return mu
}

// mapStoreErr converts storage sentinel errors into ledger taxonomy errors.
func mapStoreErr(err error, notFound error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return notFound
	}
	return err
}
