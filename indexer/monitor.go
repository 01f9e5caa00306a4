/*
Package indexer polls the Bitcoin node and feeds blocks to the updater in
strict height order. Shutdown is honored between blocks, never mid-block.
*/
package indexer

import (
	"context"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	logger "github.com/sirupsen/logrus"

	"github.com/relicsprotocol/relicsd/state"
	"github.com/relicsprotocol/relicsd/updater"
)

// BlockSource is the slice of the rpc client the monitor needs.
type BlockSource interface {
	GetLatestBlockHeight() (int64, error)
	GetBlockAtHeight(height int64) (*wire.MsgBlock, *chainhash.Hash, error)
}

type Monitor struct {
	cfg     Config
	source  BlockSource
	store   state.Store
	updater *updater.Updater
	log     *logger.Entry
}

func NewMonitor(cfg Config, source BlockSource, store state.Store) *Monitor {
	return &Monitor{
		cfg:     cfg.withDefaults(),
		source:  source,
		store:   store,
		updater: updater.New(store),
		log:     logger.WithField("component", "monitor"),
	}
}

// Run scans until the context is canceled.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.ScanInterval)
	defer ticker.Stop()
	for {
		if err := m.Scan(ctx); err != nil && ctx.Err() == nil {
			m.log.Warnf("scan failed: %v", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Scan is one round of catching up to the node's safe height. It indexes
// blocks one at a time and rewinds on a prev-hash mismatch.
func (m *Monitor) Scan(ctx context.Context) error {
	latest, err := m.source.GetLatestBlockHeight()
	if err != nil {
		return fmt.Errorf("failed to get latest block height: %v", err)
	}
	safe := latest - m.cfg.Confirmations

	for {
		if ctx.Err() != nil {
			return nil
		}
		tipHeight, tipHash, err := m.store.Tip()
		if err != nil {
			return err
		}
		next := m.cfg.StartHeight
		if tipHash != "" {
			next = tipHeight + 1
		}
		if int64(next) > safe {
			return nil
		}

		block, hash, err := m.source.GetBlockAtHeight(int64(next))
		if err != nil {
			return fmt.Errorf("failed to fetch block %d: %v", next, err)
		}

		if tipHash != "" && block.Header.PrevBlock.String() != tipHash {
			m.log.WithFields(logger.Fields{
				"height":   next,
				"tipHash":  tipHash,
				"prevHash": block.Header.PrevBlock.String(),
			}).Warn("reorg detected, rewinding tip")
			if err := m.updater.UndoBlock(tipHeight); err != nil {
				return err
			}
			continue
		}

		if err := m.updater.IndexBlock(next, hash.String(), block); err != nil {
			return err
		}
	}
}
