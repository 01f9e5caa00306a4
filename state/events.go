package state

import (
	"github.com/holiman/uint256"

	"github.com/relicsprotocol/relicsd/keepsake"
)

// EventType classifies an index event.
type EventType string

const (
	EventSealed      EventType = "sealed"
	EventEnshrined   EventType = "enshrined"
	EventMinted      EventType = "minted"
	EventUnminted    EventType = "unminted"
	EventSwapped     EventType = "swapped"
	EventTransferred EventType = "transferred"
	EventBurned      EventType = "burned"
	EventCenotaph    EventType = "cenotaph"
	// EventError records a rejected operation; the rest of the message
	// still applied.
	EventError EventType = "error"
)

// Event is one append-only log row. Rows are ordered by (Height, TxIndex,
// Seq) and the first event of each transaction carries the undo pre-image
// for every table row that transaction touched.
type Event struct {
	Height  uint64    `json:"height"`
	TxIndex uint32    `json:"txIndex"`
	Seq     uint32    `json:"seq"`
	Txid    string    `json:"txid"`
	Type    EventType `json:"type"`

	RelicId *keepsake.RelicId `json:"relicId,omitempty"`
	Name    string            `json:"name,omitempty"`
	Amount  *uint256.Int      `json:"amount,omitempty"`
	// swap legs
	BaseAmount  *uint256.Int `json:"baseAmount,omitempty"`
	QuoteAmount *uint256.Int `json:"quoteAmount,omitempty"`
	Fee         *uint256.Int `json:"fee,omitempty"`
	Sell        bool         `json:"sell,omitempty"`

	Output *uint32 `json:"output,omitempty"`
	Flaw   string  `json:"flaw,omitempty"`
	// Operation and Reason describe a rejection on EventError rows.
	Operation string `json:"operation,omitempty"`
	Reason    string `json:"reason,omitempty"`

	Undo *Undo `json:"undo,omitempty"`
}

// Undo is the pre-image needed to reverse one transaction's mutations.
// Applying it restores every table to its state before the transaction.
type Undo struct {
	// SpentBalances are the output_balances rows the transaction consumed.
	SpentBalances map[string][]Balance `json:"spentBalances,omitempty"`
	// CreatedOutputs are the outpoints the transaction wrote balances to.
	CreatedOutputs []string `json:"createdOutputs,omitempty"`

	// PriorRelics hold full entries for relics mutated by the transaction.
	PriorRelics []*RelicEntry `json:"priorRelics,omitempty"`
	// CreatedRelics were enshrined by this transaction.
	CreatedRelics []keepsake.RelicId `json:"createdRelics,omitempty"`

	PriorSealings   []*SealingRecord `json:"priorSealings,omitempty"`
	CreatedSealings []string         `json:"createdSealings,omitempty"`

	// PriorNames map name to its previous ref, "" for previously free.
	PriorNames map[string]string `json:"priorNames,omitempty"`

	// PriorBlockMints map relic id to the counter value before the
	// transaction, at the event's own height.
	PriorBlockMints map[string]uint64 `json:"priorBlockMints,omitempty"`
}

// Empty reports whether the pre-image records no mutations at all.
func (u *Undo) Empty() bool {
	return len(u.SpentBalances) == 0 && len(u.CreatedOutputs) == 0 &&
		len(u.PriorRelics) == 0 && len(u.CreatedRelics) == 0 &&
		len(u.PriorSealings) == 0 && len(u.CreatedSealings) == 0 &&
		len(u.PriorNames) == 0 && len(u.PriorBlockMints) == 0
}
