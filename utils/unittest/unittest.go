// Package unittest provides test helpers and domain fixtures.
package unittest

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v2"
	"github.com/stretchr/testify/require"

	"github.com/quorumsafe/dkg-coordinator/model/dkg"
)

func TempDir(t testing.TB) string {
	dir, err := os.MkdirTemp("", "dkg-testing-temp-")
	require.NoError(t, err)
	return dir
}

func RunWithTempDir(t testing.TB, f func(string)) {
	dbDir := TempDir(t)
	defer os.RemoveAll(dbDir)
	f(dbDir)
}

func BadgerDB(t testing.TB, dir string) *badger.DB {
	opts := badger.
		DefaultOptions(dir).
		WithKeepL0InMemory(true).
		WithLogger(nil)
	db, err := badger.Open(opts)
	require.NoError(t, err)
	return db
}

func RunWithBadgerDB(t testing.TB, f func(*badger.DB)) {
	RunWithTempDir(t, func(dir string) {
		db := BadgerDB(t, dir)
		defer db.Close()
		f(db)
	})
}

// AddressFixture returns a deterministic dealer address.
func AddressFixture(i int) dkg.Address {
	return dkg.Address(fmt.Sprintf("dealer-%03d", i))
}

// DealerRecordFixture returns a registered, active dealer record.
func DealerRecordFixture(index dkg.NodeIndex) *dkg.DealerRecord {
	return &dkg.DealerRecord{
		Index:                 index,
		Address:               AddressFixture(int(index)),
		BTEPublicKeyWithProof: []byte(fmt.Sprintf("bte-key-%d", index)),
		IdentityKey:           []byte(fmt.Sprintf("identity-%d", index)),
		AnnounceAddress:       fmt.Sprintf("node%d.example.com:8000", index),
		RegisteredAt:          0,
		Active:                true,
	}
}

// EpochFixture returns an epoch in the given state with a far deadline.
func EpochFixture(state dkg.EpochState) *dkg.Epoch {
	return &dkg.Epoch{
		ID:       0,
		State:    state,
		Deadline: time.Unix(1700000000, 0).UTC().Add(time.Hour),
	}
}

// ProposalFixture returns an open proposal of the given kind.
func ProposalFixture(id uint64, kind dkg.SubjectKind, subject dkg.Address) *dkg.Proposal {
	return &dkg.Proposal{
		ID:      id,
		Epoch:   0,
		Kind:    kind,
		Subject: subject,
		Status:  dkg.ProposalOpen,
		Votes:   make(map[dkg.Address]bool),
	}
}

// FastPhaseDurations returns uniform short phase windows so deadline-driven
// tests stay readable with a mock clock.
func FastPhaseDurations() map[dkg.EpochState]time.Duration {
	return map[dkg.EpochState]time.Duration{
		dkg.PublicKeySubmission:               time.Minute,
		dkg.DealingExchange:                   time.Minute,
		dkg.ComplaintSubmission:               time.Minute,
		dkg.ComplaintVoting:                   time.Minute,
		dkg.VerificationKeySubmission:         time.Minute,
		dkg.VerificationKeyMismatchSubmission: time.Minute,
		dkg.VerificationKeyMismatchVoting:     time.Minute,
	}
}
