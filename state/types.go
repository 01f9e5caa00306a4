/*
Package state defines the logical tables of the relics index and the records
they hold. Two implementations exist: an SQLite store for production and an
in-memory simulated store for tests.

All writes happen inside a per-block transaction owned by the updater;
readers only ever observe committed snapshots.
*/
package state

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/relicsprotocol/relicsd/keepsake"
	"github.com/relicsprotocol/relicsd/pool"
)

// Balance is one relic position on a transaction output.
type Balance struct {
	Id     keepsake.RelicId `json:"id"`
	Amount uint256.Int      `json:"amount"`
}

// Outpoint renders the canonical "txid:vout" key of the balances table.
func Outpoint(txid string, vout uint32) string {
	return fmt.Sprintf("%s:%d", txid, vout)
}

// SealingRecord reserves a ticker ahead of enshrining.
type SealingRecord struct {
	Name          keepsake.SpacedRelic `json:"name"`
	InscriptionId string               `json:"inscriptionId"`
	Txid          string               `json:"txid"`
	Block         uint64               `json:"block"`
	TxIndex       uint32               `json:"txIndex"`
	// Outpoint carrying the sealing inscription; enshrining must spend it.
	Outpoint  string      `json:"outpoint"`
	FeePaid   uint256.Int `json:"feePaid"`
	Enshrined bool        `json:"enshrined"`
}

// RelicEntry is an enshrined token. Terms are immutable after creation;
// only the counters, escrow, burned total and the pool change afterwards.
type RelicEntry struct {
	Id             keepsake.RelicId     `json:"id"`
	Name           keepsake.SpacedRelic `json:"name"`
	Symbol         rune                 `json:"symbol,omitempty"`
	Turbo          bool                 `json:"turbo,omitempty"`
	Terms          keepsake.MintTerms   `json:"terms"`
	Minted         uint64               `json:"minted"`
	Unminted       uint64               `json:"unminted"`
	Burned         uint256.Int          `json:"burned"`
	Escrow         uint256.Int          `json:"escrow"`
	Pool           *pool.Pool           `json:"pool,omitempty"`
	Unmintable     bool                 `json:"unmintable,omitempty"`
	Number         uint64               `json:"number"`
	EnshriningTxid string               `json:"enshriningTxid"`
}

// MintedOut reports whether the mint phase has ended.
func (e *RelicEntry) MintedOut() bool {
	return e.Minted >= e.Terms.Cap
}

// Clone deep-copies the entry for undo pre-images.
func (e *RelicEntry) Clone() *RelicEntry {
	clone := *e
	if e.Pool != nil {
		clone.Pool = e.Pool.Clone()
	}
	if e.Terms.BlockCap != nil {
		v := *e.Terms.BlockCap
		clone.Terms.BlockCap = &v
	}
	if e.Terms.TxCap != nil {
		v := *e.Terms.TxCap
		clone.Terms.TxCap = &v
	}
	if e.Terms.MaxUnmints != nil {
		v := *e.Terms.MaxUnmints
		clone.Terms.MaxUnmints = &v
	}
	return &clone
}

// name_index refs; the payload after the colon is a relic id or sealing txid.
const (
	NameRefBase    = "base"
	NameRefSealing = "sealing"
	NameRefRelic   = "relic"
)

// Tx is a single atomic batch of table mutations; one per indexed block.
type Tx interface {
	Balances(outpoint string) ([]Balance, error)
	// TakeBalances reads and deletes in one step; spending an input.
	TakeBalances(outpoint string) ([]Balance, error)
	PutBalances(outpoint string, balances []Balance) error
	DeleteBalances(outpoint string) error

	Sealing(name string) (*SealingRecord, error)
	PutSealing(rec *SealingRecord) error
	DeleteSealing(name string) error

	Relic(id keepsake.RelicId) (*RelicEntry, error)
	PutRelic(entry *RelicEntry) error
	DeleteRelic(id keepsake.RelicId) error
	RelicCount() (uint64, error)

	// NameRef returns "" for a free name.
	NameRef(name string) (string, error)
	PutName(name string, ref string) error
	DeleteName(name string) error

	BlockMints(id keepsake.RelicId, height uint64) (uint64, error)
	SetBlockMints(id keepsake.RelicId, height uint64, count uint64) error
	DeleteBlockMints(height uint64) error

	AppendEvent(ev *Event) error
	BlockEvents(height uint64) ([]*Event, error)
	DeleteBlockEvents(height uint64) error

	Tip() (uint64, string, error)
	SetTip(height uint64, hash string) error
	BlockHash(height uint64) (string, error)
	SetBlockHash(height uint64, hash string) error
	DeleteBlockHash(height uint64) error

	Commit() error
	Rollback() error
}

// Store opens write batches and serves committed reads.
type Store interface {
	Begin() (Tx, error)

	Relic(id keepsake.RelicId) (*RelicEntry, error)
	RelicByName(name string) (*RelicEntry, error)
	Relics() ([]*RelicEntry, error)
	Balances(outpoint string) ([]Balance, error)
	Sealing(name string) (*SealingRecord, error)
	BlockEvents(height uint64) ([]*Event, error)
	Tip() (uint64, string, error)

	Close() error
}
