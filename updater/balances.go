/*
Package updater drives the relics state machine over the Bitcoin block
stream: one block per store transaction, one pass per Bitcoin transaction in
strict index order, with undo pre-images recorded for reorg rewind.
*/
package updater

import (
	"sort"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/holiman/uint256"

	"github.com/relicsprotocol/relicsd/keepsake"
)

// balanceSheet tracks relic amounts while one transaction is processed:
// an unallocated pool fed by inputs, mints and swap outputs, a per-output
// allocation table, and a burn bucket.
type balanceSheet struct {
	tx          *wire.MsgTx
	unallocated map[keepsake.RelicId]*uint256.Int
	allocated   []map[keepsake.RelicId]*uint256.Int
	burned      map[keepsake.RelicId]*uint256.Int
}

func newBalanceSheet(tx *wire.MsgTx) *balanceSheet {
	return &balanceSheet{
		tx:          tx,
		unallocated: make(map[keepsake.RelicId]*uint256.Int),
		allocated:   make([]map[keepsake.RelicId]*uint256.Int, len(tx.TxOut)),
		burned:      make(map[keepsake.RelicId]*uint256.Int),
	}
}

func (b *balanceSheet) add(id keepsake.RelicId, amount *uint256.Int) {
	if amount.IsZero() {
		return
	}
	if have, ok := b.unallocated[id]; ok {
		have.Add(have, amount)
	} else {
		b.unallocated[id] = new(uint256.Int).Set(amount)
	}
}

// balance is the unallocated amount of id; never nil.
func (b *balanceSheet) balance(id keepsake.RelicId) *uint256.Int {
	if have, ok := b.unallocated[id]; ok {
		return have
	}
	return new(uint256.Int)
}

// take consumes exactly amount from the unallocated pool, all or nothing.
// A zero amount always succeeds; a free mint needs no inputs at all.
func (b *balanceSheet) take(id keepsake.RelicId, amount *uint256.Int) bool {
	if amount.IsZero() {
		return true
	}
	have, ok := b.unallocated[id]
	if !ok || have.Lt(amount) {
		return false
	}
	have.Sub(have, amount)
	if have.IsZero() {
		delete(b.unallocated, id)
	}
	return true
}

func (b *balanceSheet) burn(id keepsake.RelicId, amount *uint256.Int) {
	if amount.IsZero() {
		return
	}
	if have, ok := b.burned[id]; ok {
		have.Add(have, amount)
	} else {
		b.burned[id] = new(uint256.Int).Set(amount)
	}
}

// allocate moves up to amount of id onto vout. A zero or oversized amount
// moves everything that is left.
func (b *balanceSheet) allocate(vout int, id keepsake.RelicId, amount *uint256.Int) {
	have, ok := b.unallocated[id]
	if !ok || have.IsZero() {
		return
	}
	moved := amount
	if moved.IsZero() || have.Lt(moved) {
		moved = have
	}
	b.credit(vout, id, moved)
	have.Sub(have, moved)
	if have.IsZero() {
		delete(b.unallocated, id)
	}
}

func (b *balanceSheet) credit(vout int, id keepsake.RelicId, amount *uint256.Int) {
	if amount.IsZero() {
		return
	}
	if b.allocated[vout] == nil {
		b.allocated[vout] = make(map[keepsake.RelicId]*uint256.Int)
	}
	if have, ok := b.allocated[vout][id]; ok {
		have.Add(have, amount)
	} else {
		b.allocated[vout][id] = new(uint256.Int).Set(amount)
	}
}

// allocateTransfers applies the message's transfer list in wire order.
// Id (0,0) refers to the relic enshrined by this very transaction.
func (b *balanceSheet) allocateTransfers(transfers []keepsake.Transfer, enshrined *keepsake.RelicId) {
	for i := range transfers {
		transfer := &transfers[i]
		id := transfer.Id
		if id == (keepsake.RelicId{}) {
			if enshrined == nil {
				continue
			}
			id = *enshrined
		}
		if transfer.Output == uint32(len(b.tx.TxOut)) {
			b.split(id, &transfer.Amount)
		} else {
			b.allocate(int(transfer.Output), id, &transfer.Amount)
		}
	}
}

// split is the sentinel form: the amount is spread over all non-OP_RETURN
// outputs. Amount zero divides the whole balance equally with the remainder
// going to the earliest outputs one unit each; a nonzero amount gives up to
// that much to every destination in order.
func (b *balanceSheet) split(id keepsake.RelicId, amount *uint256.Int) {
	var destinations []int
	for vout, out := range b.tx.TxOut {
		if !isOpReturn(out) {
			destinations = append(destinations, vout)
		}
	}
	if len(destinations) == 0 {
		return
	}

	have, ok := b.unallocated[id]
	if !ok || have.IsZero() {
		return
	}

	if amount.IsZero() {
		n := uint256.NewInt(uint64(len(destinations)))
		share := new(uint256.Int).Div(have, n)
		remainder := new(uint256.Int).Mod(have, n)
		one := uint256.NewInt(1)
		for i, vout := range destinations {
			portion := new(uint256.Int).Set(share)
			if uint64(i) < remainder.Uint64() {
				portion.Add(portion, one)
			}
			b.allocate(vout, id, portion)
		}
		return
	}
	for _, vout := range destinations {
		if b.balance(id).IsZero() {
			break
		}
		b.allocate(vout, id, amount)
	}
}

// allocateAll sends every remaining balance to one output.
func (b *balanceSheet) allocateAll(vout int) {
	for _, id := range b.sortedUnallocated() {
		b.allocate(vout, id, new(uint256.Int))
	}
}

func (b *balanceSheet) burnAll() {
	for _, id := range b.sortedUnallocated() {
		b.burn(id, b.unallocated[id])
		delete(b.unallocated, id)
	}
}

// sortedUnallocated yields ids in deterministic order for iteration.
func (b *balanceSheet) sortedUnallocated() []keepsake.RelicId {
	ids := make([]keepsake.RelicId, 0, len(b.unallocated))
	for id := range b.unallocated {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Cmp(ids[j]) < 0 })
	return ids
}

// firstNonOpReturn picks the default output; ok is false when every output
// is an OP_RETURN and the leftover must burn.
func firstNonOpReturn(tx *wire.MsgTx) (int, bool) {
	for vout, out := range tx.TxOut {
		if !isOpReturn(out) {
			return vout, true
		}
	}
	return 0, false
}

func isOpReturn(out *wire.TxOut) bool {
	return len(out.PkScript) > 0 && out.PkScript[0] == txscript.OP_RETURN
}
