package state

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relicsprotocol/relicsd/keepsake"
	"github.com/relicsprotocol/relicsd/pool"
)

// the conformance suite runs against both Store implementations so the
// simulated store used by updater tests stays faithful to SQLite

func eachStore(t *testing.T, fn func(t *testing.T, store Store)) {
	t.Helper()
	t.Run("sqlite", func(t *testing.T) {
		store, err := NewStateDB(":memory:")
		require.NoError(t, err)
		defer store.Close()
		fn(t, store)
	})
	t.Run("simulated", func(t *testing.T) {
		fn(t, NewSimulated())
	})
}

func begin(t *testing.T, store Store) Tx {
	t.Helper()
	tx, err := store.Begin()
	require.NoError(t, err)
	return tx
}

func commit(t *testing.T, tx Tx) {
	t.Helper()
	require.NoError(t, tx.Commit())
}

func spacedName(t *testing.T, s string) keepsake.SpacedRelic {
	t.Helper()
	spaced, err := keepsake.SpacedRelicFromString(s)
	require.NoError(t, err)
	return spaced
}

func sampleEntry(t *testing.T) *RelicEntry {
	t.Helper()
	blockCap := uint64(5)
	txCap := uint8(1)
	entry := &RelicEntry{
		Id:     keepsake.RelicId{Block: 840_000, Tx: 3},
		Name:   spacedName(t, "UNCOMMON•RELICS"),
		Symbol: '$',
		Terms: keepsake.MintTerms{
			Cap:      10,
			BlockCap: &blockCap,
			TxCap:    &txCap,
		},
		Minted:         4,
		Number:         7,
		EnshriningTxid: "feed",
	}
	entry.Terms.Amount.SetUint64(100 * 1e8)
	entry.Terms.Price.A.SetUint64(5 * 1e8)
	entry.Terms.Seed.SetUint64(500 * 1e8)
	entry.Escrow.SetUint64(20 * 1e8)
	entry.Burned.SetUint64(3)
	return entry
}

func TestBalancesRoundTrip(t *testing.T) {
	eachStore(t, func(t *testing.T, store Store) {
		outpoint := Outpoint("aa", 1)
		balances := []Balance{
			{Id: keepsake.BaseId, Amount: *uint256.NewInt(1_000)},
			{Id: keepsake.RelicId{Block: 10, Tx: 2}, Amount: *uint256.NewInt(7)},
		}

		tx := begin(t, store)
		require.NoError(t, tx.PutBalances(outpoint, balances))
		commit(t, tx)

		got, err := store.Balances(outpoint)
		require.NoError(t, err)
		assert.Equal(t, balances, got)

		missing, err := store.Balances(Outpoint("aa", 2))
		require.NoError(t, err)
		assert.Nil(t, missing)
	})
}

func TestTakeBalancesConsumes(t *testing.T) {
	eachStore(t, func(t *testing.T, store Store) {
		outpoint := Outpoint("bb", 0)
		balances := []Balance{{Id: keepsake.BaseId, Amount: *uint256.NewInt(42)}}

		tx := begin(t, store)
		require.NoError(t, tx.PutBalances(outpoint, balances))
		commit(t, tx)

		tx = begin(t, store)
		taken, err := tx.TakeBalances(outpoint)
		require.NoError(t, err)
		assert.Equal(t, balances, taken)

		again, err := tx.TakeBalances(outpoint)
		require.NoError(t, err)
		assert.Nil(t, again)
		commit(t, tx)

		gone, err := store.Balances(outpoint)
		require.NoError(t, err)
		assert.Nil(t, gone)
	})
}

func TestRelicRoundTrip(t *testing.T) {
	eachStore(t, func(t *testing.T, store Store) {
		entry := sampleEntry(t)
		entry.Pool = pool.New(uint256.NewInt(50*1e8), uint256.NewInt(500*1e8))

		tx := begin(t, store)
		require.NoError(t, tx.PutRelic(entry))
		commit(t, tx)

		got, err := store.Relic(entry.Id)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, entry, got)

		byName, err := store.RelicByName("UNCOMMONRELICS")
		require.NoError(t, err)
		require.NotNil(t, byName)
		assert.Equal(t, entry.Id, byName.Id)

		all, err := store.Relics()
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, entry, all[0])

		missing, err := store.Relic(keepsake.RelicId{Block: 1, Tx: 1})
		require.NoError(t, err)
		assert.Nil(t, missing)
	})
}

func TestRelicCountAndDelete(t *testing.T) {
	eachStore(t, func(t *testing.T, store Store) {
		entry := sampleEntry(t)

		tx := begin(t, store)
		n, err := tx.RelicCount()
		require.NoError(t, err)
		assert.Equal(t, uint64(0), n)

		require.NoError(t, tx.PutRelic(entry))
		n, err = tx.RelicCount()
		require.NoError(t, err)
		assert.Equal(t, uint64(1), n)

		require.NoError(t, tx.DeleteRelic(entry.Id))
		n, err = tx.RelicCount()
		require.NoError(t, err)
		assert.Equal(t, uint64(0), n)
		commit(t, tx)
	})
}

func TestSealingRoundTrip(t *testing.T) {
	eachStore(t, func(t *testing.T, store Store) {
		rec := &SealingRecord{
			Name:          spacedName(t, "FOO"),
			InscriptionId: "cafei0",
			Txid:          "cafe",
			Block:         840_001,
			TxIndex:       2,
			Outpoint:      Outpoint("cafe", 0),
		}
		rec.FeePaid.SetUint64(2100 * 1e8)

		tx := begin(t, store)
		require.NoError(t, tx.PutSealing(rec))
		commit(t, tx)

		got, err := store.Sealing("FOO")
		require.NoError(t, err)
		assert.Equal(t, rec, got)

		tx = begin(t, store)
		got.Enshrined = true
		require.NoError(t, tx.PutSealing(got))
		commit(t, tx)

		updated, err := store.Sealing("FOO")
		require.NoError(t, err)
		assert.True(t, updated.Enshrined)

		tx = begin(t, store)
		require.NoError(t, tx.DeleteSealing("FOO"))
		commit(t, tx)

		gone, err := store.Sealing("FOO")
		require.NoError(t, err)
		assert.Nil(t, gone)
	})
}

func TestNameIndex(t *testing.T) {
	eachStore(t, func(t *testing.T, store Store) {
		tx := begin(t, store)

		ref, err := tx.NameRef("FOO")
		require.NoError(t, err)
		assert.Equal(t, "", ref)

		require.NoError(t, tx.PutName("FOO", NameRefSealing+":cafe"))
		ref, err = tx.NameRef("FOO")
		require.NoError(t, err)
		assert.Equal(t, "sealing:cafe", ref)

		// enshrining flips the ref in place
		require.NoError(t, tx.PutName("FOO", NameRefRelic+":840001:2"))
		ref, err = tx.NameRef("FOO")
		require.NoError(t, err)
		assert.Equal(t, "relic:840001:2", ref)

		require.NoError(t, tx.DeleteName("FOO"))
		ref, err = tx.NameRef("FOO")
		require.NoError(t, err)
		assert.Equal(t, "", ref)
		commit(t, tx)
	})
}

func TestBlockMints(t *testing.T) {
	eachStore(t, func(t *testing.T, store Store) {
		id := keepsake.RelicId{Block: 10, Tx: 1}

		tx := begin(t, store)
		n, err := tx.BlockMints(id, 100)
		require.NoError(t, err)
		assert.Equal(t, uint64(0), n)

		require.NoError(t, tx.SetBlockMints(id, 100, 3))
		require.NoError(t, tx.SetBlockMints(id, 101, 1))
		n, err = tx.BlockMints(id, 100)
		require.NoError(t, err)
		assert.Equal(t, uint64(3), n)

		// zero deletes the row
		require.NoError(t, tx.SetBlockMints(id, 100, 0))
		n, err = tx.BlockMints(id, 100)
		require.NoError(t, err)
		assert.Equal(t, uint64(0), n)

		require.NoError(t, tx.DeleteBlockMints(101))
		n, err = tx.BlockMints(id, 101)
		require.NoError(t, err)
		assert.Equal(t, uint64(0), n)
		commit(t, tx)
	})
}

func TestEventsRoundTrip(t *testing.T) {
	eachStore(t, func(t *testing.T, store Store) {
		id := keepsake.RelicId{Block: 100, Tx: 1}
		prior := sampleEntry(t)
		first := &Event{
			Height: 100, TxIndex: 1, Seq: 0, Txid: "dead",
			Type:    EventMinted,
			RelicId: &id,
			Amount:  uint256.NewInt(100 * 1e8),
			Fee:     uint256.NewInt(5 * 1e8),
			Undo: &Undo{
				SpentBalances: map[string][]Balance{
					Outpoint("beef", 0): {{Id: keepsake.BaseId, Amount: *uint256.NewInt(9)}},
				},
				CreatedOutputs:  []string{Outpoint("dead", 1)},
				PriorRelics:     []*RelicEntry{prior},
				PriorNames:      map[string]string{"FOO": ""},
				PriorBlockMints: map[string]uint64{id.String(): 2},
			},
		}
		second := &Event{
			Height: 100, TxIndex: 2, Seq: 0, Txid: "f00d",
			Type: EventError, Operation: "mint", Reason: "mint cap reached",
		}

		tx := begin(t, store)
		// append out of order; reads must come back sorted
		require.NoError(t, tx.AppendEvent(second))
		require.NoError(t, tx.AppendEvent(first))
		commit(t, tx)

		events, err := store.BlockEvents(100)
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, first, events[0])
		assert.Equal(t, second, events[1])

		tx = begin(t, store)
		require.NoError(t, tx.DeleteBlockEvents(100))
		commit(t, tx)

		events, err = store.BlockEvents(100)
		require.NoError(t, err)
		assert.Empty(t, events)
	})
}

func TestTipAndBlockHashes(t *testing.T) {
	eachStore(t, func(t *testing.T, store Store) {
		height, hash, err := store.Tip()
		require.NoError(t, err)
		assert.Equal(t, uint64(0), height)
		assert.Equal(t, "", hash)

		tx := begin(t, store)
		require.NoError(t, tx.SetBlockHash(100, "aaa"))
		require.NoError(t, tx.SetTip(100, "aaa"))
		require.NoError(t, tx.SetBlockHash(101, "bbb"))
		require.NoError(t, tx.SetTip(101, "bbb"))
		commit(t, tx)

		height, hash, err = store.Tip()
		require.NoError(t, err)
		assert.Equal(t, uint64(101), height)
		assert.Equal(t, "bbb", hash)

		tx = begin(t, store)
		stored, err := tx.BlockHash(100)
		require.NoError(t, err)
		assert.Equal(t, "aaa", stored)

		require.NoError(t, tx.DeleteBlockHash(101))
		require.NoError(t, tx.SetTip(100, "aaa"))
		commit(t, tx)

		height, hash, err = store.Tip()
		require.NoError(t, err)
		assert.Equal(t, uint64(100), height)
		assert.Equal(t, "aaa", hash)
	})
}

func TestRollbackDiscards(t *testing.T) {
	eachStore(t, func(t *testing.T, store Store) {
		entry := sampleEntry(t)

		tx := begin(t, store)
		require.NoError(t, tx.PutRelic(entry))
		require.NoError(t, tx.PutBalances(Outpoint("aa", 0), []Balance{
			{Id: entry.Id, Amount: *uint256.NewInt(1)},
		}))
		require.NoError(t, tx.SetTip(55, "xyz"))
		require.NoError(t, tx.Rollback())

		got, err := store.Relic(entry.Id)
		require.NoError(t, err)
		assert.Nil(t, got)

		balances, err := store.Balances(Outpoint("aa", 0))
		require.NoError(t, err)
		assert.Nil(t, balances)

		height, hash, err := store.Tip()
		require.NoError(t, err)
		assert.Equal(t, uint64(0), height)
		assert.Equal(t, "", hash)
	})
}

func TestSimulatedSnapshotIsolation(t *testing.T) {
	store := NewSimulated()

	tx := begin(t, store)
	entry := sampleEntry(t)
	require.NoError(t, tx.PutRelic(entry))
	commit(t, tx)

	// mutating a read result must not leak into the store
	got, err := store.Relic(entry.Id)
	require.NoError(t, err)
	got.Minted = 9999

	fresh, err := store.Relic(entry.Id)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), fresh.Minted)
}
