package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/repcore/internal/codec"
	"github.com/roach88/repcore/internal/ir"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "repcore.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// TestOpen_CreatesSchema tests that Open applies schema.sql and sets
// user_version on a fresh database file.
func TestOpen_CreatesSchema(t *testing.T) {
	s := openTestStore(t)

	var version int
	require.NoError(t, s.db.QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, currentSchemaVersion, version)

	var name string
	err := s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='operations'").Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "operations", name)
}

// TestOpen_Idempotent tests that reopening an existing database does not
// fail or duplicate schema objects.
func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "repcore.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		require.NoError(t, err)
		require.NoError(t, s.Close())
	}

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	var version int
	require.NoError(t, s.db.QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, currentSchemaVersion, version)
}

// TestPragmas tests that the WAL journal_mode and foreign_keys pragmas
// from applyPragmas took effect.
func TestPragmas(t *testing.T) {
	s := openTestStore(t)

	var journalMode string
	require.NoError(t, s.db.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)

	var foreignKeys int
	require.NoError(t, s.db.QueryRow("PRAGMA foreign_keys").Scan(&foreignKeys))
	assert.Equal(t, 1, foreignKeys)
}

// TestPutOperation_RoundTrips tests that an encoded operation persists and
// comes back out of LoadAll in the same bytes.
func TestPutOperation_RoundTrips(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	head := ir.NewDelimiter(ir.HeadIdentifier, nil, nil)
	tail := ir.NewDelimiter(ir.TailIdentifier, nil, nil)
	id := ir.Identifier{Creator: "alice", OpNumber: 1}
	ins := ir.NewInsert(id, ir.BoundRef(head), ir.BoundRef(head), ir.BoundRef(tail))
	ins.MarkExecuted()

	raw, err := codec.EncodeBytes(ins)
	require.NoError(t, err)

	require.NoError(t, s.PutOperation(ctx, id, ins.Kind(), raw, 1000))

	all, err := s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.JSONEq(t, string(raw), string(all[0]))
}

// TestPutOperation_OverwritesSameIdentifier tests the conflict clause:
// re-recording an operation under the same (creator, op_number) replaces
// rather than duplicates the row.
func TestPutOperation_OverwritesSameIdentifier(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id := ir.Identifier{Creator: "alice", OpNumber: 1}
	require.NoError(t, s.PutOperation(ctx, id, ir.KindDelete, []byte(`{"v":1}`), 1))
	require.NoError(t, s.PutOperation(ctx, id, ir.KindDelete, []byte(`{"v":2}`), 2))

	all, err := s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.JSONEq(t, `{"v":2}`, string(all[0]))
}

// TestHighestOpNumber_EmptyStore tests that a peer with no recorded
// operations reports ok=false.
func TestHighestOpNumber_EmptyStore(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	n, ok, err := s.HighestOpNumber(ctx, ir.PeerID("alice"))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, n)
}

// TestHighestOpNumber_TracksMaxPerPeer tests that the counter is scoped
// per-peer and reflects the highest op_number seen for that peer only.
func TestHighestOpNumber_TracksMaxPerPeer(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutOperation(ctx, ir.Identifier{Creator: "alice", OpNumber: 1}, ir.KindDelete, []byte(`{}`), 1))
	require.NoError(t, s.PutOperation(ctx, ir.Identifier{Creator: "alice", OpNumber: 5}, ir.KindDelete, []byte(`{}`), 2))
	require.NoError(t, s.PutOperation(ctx, ir.Identifier{Creator: "bob", OpNumber: 9}, ir.KindDelete, []byte(`{}`), 3))

	n, ok, err := s.HighestOpNumber(ctx, ir.PeerID("alice"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(5), n)

	n, ok, err = s.HighestOpNumber(ctx, ir.PeerID("bob"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(9), n)
}

// TestClose_NilDB tests that Close on a zero-value Store does not panic.
func TestClose_NilDB(t *testing.T) {
	s := &Store{}
	assert.NoError(t, s.Close())
}
