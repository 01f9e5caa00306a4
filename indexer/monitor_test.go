package indexer

import (
	"context"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relicsprotocol/relicsd/state"
)

// fakeChain serves a scripted sequence of headers-only blocks.
type fakeChain struct {
	blocks map[int64]*wire.MsgBlock
	latest int64
}

func newFakeChain() *fakeChain {
	return &fakeChain{blocks: make(map[int64]*wire.MsgBlock)}
}

// extend appends a block on top of the block at height-1, or on an empty
// hash for the first one. Nonce keeps forked headers distinct.
func (f *fakeChain) extend(height int64, nonce uint32) {
	var prev chainhash.Hash
	if parent, ok := f.blocks[height-1]; ok {
		prev = parent.Header.BlockHash()
	}
	f.blocks[height] = &wire.MsgBlock{
		Header: wire.BlockHeader{PrevBlock: prev, Nonce: nonce},
	}
	if height > f.latest {
		f.latest = height
	}
}

func (f *fakeChain) hash(height int64) string {
	return f.blocks[height].Header.BlockHash().String()
}

func (f *fakeChain) GetLatestBlockHeight() (int64, error) {
	return f.latest, nil
}

func (f *fakeChain) GetBlockAtHeight(height int64) (*wire.MsgBlock, *chainhash.Hash, error) {
	block, ok := f.blocks[height]
	if !ok {
		return nil, nil, assert.AnError
	}
	hash := block.Header.BlockHash()
	return block, &hash, nil
}

func TestScanCatchesUpToSafeHeight(t *testing.T) {
	chain := newFakeChain()
	for h := int64(10); h <= 15; h++ {
		chain.extend(h, 0)
	}

	store := state.NewSimulated()
	m := NewMonitor(Config{StartHeight: 10, Confirmations: 1}, chain, store)
	require.NoError(t, m.Scan(context.Background()))

	// latest is 15, one confirmation holds back the last block
	height, hash, err := store.Tip()
	require.NoError(t, err)
	assert.Equal(t, uint64(14), height)
	assert.Equal(t, chain.hash(14), hash)

	// a second scan with nothing new is a no-op
	require.NoError(t, m.Scan(context.Background()))
	height, _, err = store.Tip()
	require.NoError(t, err)
	assert.Equal(t, uint64(14), height)
}

func TestScanFollowsReorg(t *testing.T) {
	chain := newFakeChain()
	for h := int64(10); h <= 14; h++ {
		chain.extend(h, 0)
	}

	store := state.NewSimulated()
	m := NewMonitor(Config{StartHeight: 10}, chain, store)
	require.NoError(t, m.Scan(context.Background()))

	height, _, err := store.Tip()
	require.NoError(t, err)
	require.Equal(t, uint64(14), height)

	// the node replaces blocks 13 and 14 with a longer fork
	chain.extend(13, 1)
	chain.extend(14, 1)
	chain.extend(15, 1)

	require.NoError(t, m.Scan(context.Background()))

	height, hash, err := store.Tip()
	require.NoError(t, err)
	assert.Equal(t, uint64(15), height)
	assert.Equal(t, chain.hash(15), hash)
}

func TestScanHonorsCancel(t *testing.T) {
	chain := newFakeChain()
	chain.extend(10, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := state.NewSimulated()
	m := NewMonitor(Config{StartHeight: 10}, chain, store)
	require.NoError(t, m.Scan(ctx))

	_, hash, err := store.Tip()
	require.NoError(t, err)
	assert.Equal(t, "", hash)
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}
	got := cfg.withDefaults()
	assert.Equal(t, 3*time.Second, got.ScanInterval)
	assert.Equal(t, int64(0), got.Confirmations)
}
