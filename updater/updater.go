package updater

import (
	"fmt"
	"sort"

	"github.com/btcsuite/btcd/wire"
	"github.com/holiman/uint256"
	logger "github.com/sirupsen/logrus"

	"github.com/relicsprotocol/relicsd/inscription"
	"github.com/relicsprotocol/relicsd/keepsake"
	"github.com/relicsprotocol/relicsd/pool"
	"github.com/relicsprotocol/relicsd/state"
)

// rejection reasons recorded on error events
const (
	reasonNameTaken           = "name taken"
	reasonMissingInscription  = "sealing inscription missing"
	reasonInsufficientFee     = "insufficient sealing fee"
	reasonSealBase            = "base ticker cannot be sealed"
	reasonNoSealing           = "no sealing for ticker"
	reasonNotSealingOwner     = "sealing not owned by transaction"
	reasonUnknownRelic        = "relic not enshrined"
	reasonUnmintable          = "relic is unmintable"
	reasonCapReached          = "mint cap reached"
	reasonBlockCapReached     = "per-block mint cap reached"
	reasonTxCapZero           = "per-transaction mint cap is zero"
	reasonInsufficientBalance = "insufficient balance"
	reasonNoPool              = "pool not live"
	reasonUnmintsExhausted    = "unmint allowance exhausted"
	reasonMintPhaseOver       = "mint phase is over"
)

// Updater applies blocks to the relics state, one store transaction per
// block. It is the sole writer; readers go through the Store's read side.
type Updater struct {
	store state.Store
	log   *logger.Entry
}

func New(store state.Store) *Updater {
	return &Updater{
		store: store,
		log:   logger.WithField("component", "updater"),
	}
}

// IndexBlock applies one block atomically. The block must extend the
// committed tip by exactly one height; the first indexed block is exempt.
func (u *Updater) IndexBlock(height uint64, hash string, block *wire.MsgBlock) error {
	stx, err := u.store.Begin()
	if err != nil {
		return err
	}
	if err := u.indexBlock(stx, height, hash, block); err != nil {
		_ = stx.Rollback()
		return err
	}
	if err := stx.Commit(); err != nil {
		return err
	}
	u.log.WithFields(logger.Fields{
		"height": height,
		"hash":   hash,
		"txs":    len(block.Transactions),
	}).Info("indexed block")
	return nil
}

func (u *Updater) indexBlock(stx state.Tx, height uint64, hash string, block *wire.MsgBlock) error {
	tipHeight, tipHash, err := stx.Tip()
	if err != nil {
		return err
	}
	if tipHash != "" && height != tipHeight+1 {
		return fmt.Errorf("block %d does not extend tip %d", height, tipHeight)
	}

	for i, msgTx := range block.Transactions {
		t := &txUpdater{
			stx:     stx,
			height:  height,
			txIndex: uint32(i),
			tx:      msgTx,
			txid:    msgTx.TxHash().String(),
			sheet:   newBalanceSheet(msgTx),
			undo:    &state.Undo{},
			relics:  make(map[keepsake.RelicId]*state.RelicEntry),
			dirty:   make(map[keepsake.RelicId]bool),
		}
		if err := t.index(); err != nil {
			return fmt.Errorf("tx %s: %w", t.txid, err)
		}
	}

	if err := stx.SetBlockHash(height, hash); err != nil {
		return err
	}
	return stx.SetTip(height, hash)
}

// txUpdater processes one transaction inside the block's store transaction.
type txUpdater struct {
	stx     state.Tx
	height  uint64
	txIndex uint32
	tx      *wire.MsgTx
	txid    string

	sheet  *balanceSheet
	undo   *state.Undo
	events []*state.Event
	seq    uint32

	// relics caches loaded entries so successive operations in the same
	// transaction observe each other; dirty marks entries needing a write.
	relics map[keepsake.RelicId]*state.RelicEntry
	dirty  map[keepsake.RelicId]bool
}

func (t *txUpdater) index() error {
	artifact := keepsake.Decipher(t.tx)

	if err := t.spendInputs(); err != nil {
		return err
	}
	if artifact == nil && len(t.sheet.unallocated) == 0 {
		return nil
	}

	switch {
	case artifact != nil && artifact.Keepsake != nil:
		if err := t.applyKeepsake(artifact.Keepsake); err != nil {
			return err
		}
	case artifact != nil && artifact.Cenotaph != nil:
		if err := t.applyCenotaph(artifact.Cenotaph); err != nil {
			return err
		}
		t.sheet.burnAll()
	default:
		// no message: balances flow through to the first spendable output
		if vout, ok := firstNonOpReturn(t.tx); ok {
			t.sheet.allocateAll(vout)
		} else {
			t.sheet.burnAll()
		}
	}

	return t.finalize()
}

func (t *txUpdater) applyKeepsake(k *keepsake.Keepsake) error {
	if k.Seal != nil {
		if err := t.seal(k.Seal); err != nil {
			return err
		}
	}
	enshrined, err := t.enshrine(k.Enshrining)
	if err != nil {
		return err
	}
	if k.Swap != nil {
		if err := t.swap(k.Swap); err != nil {
			return err
		}
	}
	if k.Mint != nil {
		if err := t.mint(*k.Mint, enshrined); err != nil {
			return err
		}
	}
	if k.Unmint != nil {
		if err := t.unmint(*k.Unmint); err != nil {
			return err
		}
	}

	t.sheet.allocateTransfers(k.Transfers, enshrined)

	if k.Pointer != nil {
		// the pointer may name an OP_RETURN output; finalize burns those
		t.sheet.allocateAll(int(*k.Pointer))
	} else if vout, ok := firstNonOpReturn(t.tx); ok {
		t.sheet.allocateAll(vout)
	} else {
		t.sheet.burnAll()
	}
	return nil
}

// seal reserves a ticker. The fee burn only happens on success, so a
// rejected sealing leaves the would-be fee flowing to the default output.
func (t *txUpdater) seal(spaced *keepsake.SpacedRelic) error {
	name := spaced.Relic.String()
	if name == keepsake.BaseName {
		t.emitError("seal", reasonSealBase)
		return nil
	}
	ref, err := t.stx.NameRef(name)
	if err != nil {
		return err
	}
	if ref != "" {
		t.emitError("seal", reasonNameTaken)
		return nil
	}
	ticker, ok := inscription.Ticker(t.tx)
	if !ok || ticker != *spaced {
		t.emitError("seal", reasonMissingInscription)
		return nil
	}
	fee := spaced.Relic.SealingFee()
	if !t.sheet.take(keepsake.BaseId, fee) {
		t.emitError("seal", reasonInsufficientFee)
		return nil
	}
	t.sheet.burn(keepsake.BaseId, fee)

	rec := &state.SealingRecord{
		Name:          *spaced,
		InscriptionId: t.txid + "i0",
		Txid:          t.txid,
		Block:         t.height,
		TxIndex:       t.txIndex,
		Outpoint:      state.Outpoint(t.txid, 0),
	}
	rec.FeePaid.Set(fee)
	if err := t.stx.PutSealing(rec); err != nil {
		return err
	}
	t.undo.CreatedSealings = append(t.undo.CreatedSealings, name)
	if err := t.putName(name, state.NameRefSealing+":"+t.txid); err != nil {
		return err
	}

	ev := t.newEvent(state.EventSealed)
	ev.Name = spaced.String()
	ev.Amount = fee
	t.emit(ev)
	return nil
}

// enshrine turns a sealed ticker into a live relic entry. The sealing's
// recorded outpoint must be spent by this transaction.
func (t *txUpdater) enshrine(e *keepsake.Enshrining) (*keepsake.RelicId, error) {
	if e == nil {
		return nil, nil
	}
	rec, id, err := t.claimSealing(e.Name, "enshrine")
	if rec == nil || err != nil {
		return nil, err
	}

	number, err := t.stx.RelicCount()
	if err != nil {
		return nil, err
	}
	entry := &state.RelicEntry{
		Id:             id,
		Name:           rec.Name,
		Symbol:         e.Symbol,
		Turbo:          e.Turbo,
		Terms:          e.Terms,
		Number:         number,
		EnshriningTxid: t.txid,
	}
	t.createRelic(entry)

	ev := t.newEvent(state.EventEnshrined)
	ev.RelicId = &entry.Id
	ev.Name = rec.Name.String()
	t.emit(ev)
	return &entry.Id, nil
}

// claimSealing validates and consumes an un-enshrined sealing owned by this
// transaction, flipping it to enshrined and repointing the name index.
// A nil record with nil error means the operation was rejected.
func (t *txUpdater) claimSealing(name keepsake.Relic, operation string) (*state.SealingRecord, keepsake.RelicId, error) {
	letters := name.String()
	rec, err := t.stx.Sealing(letters)
	if err != nil {
		return nil, keepsake.RelicId{}, err
	}
	if rec == nil || rec.Enshrined {
		t.emitError(operation, reasonNoSealing)
		return nil, keepsake.RelicId{}, nil
	}
	if !t.spendsOutpoint(rec.Outpoint) {
		t.emitError(operation, reasonNotSealingOwner)
		return nil, keepsake.RelicId{}, nil
	}

	prior := *rec
	t.undo.PriorSealings = append(t.undo.PriorSealings, &prior)
	rec.Enshrined = true
	if err := t.stx.PutSealing(rec); err != nil {
		return nil, keepsake.RelicId{}, err
	}

	id := keepsake.RelicId{Block: t.height, Tx: t.txIndex}
	if err := t.putName(letters, state.NameRefRelic+":"+id.String()); err != nil {
		return nil, keepsake.RelicId{}, err
	}
	return rec, id, nil
}

func (t *txUpdater) mint(id keepsake.RelicId, enshrined *keepsake.RelicId) error {
	if id.IsZero() {
		if enshrined == nil {
			t.emitError("mint", reasonUnknownRelic)
			return nil
		}
		id = *enshrined
	}
	entry, err := t.relic(id)
	if err != nil {
		return err
	}
	reason, blockCount, err := t.mintable(id, entry)
	if err != nil {
		return err
	}
	if reason != "" {
		t.emitError("mint", reason)
		return nil
	}

	price, ok := entry.Terms.Price.Price(entry.Minted)
	if !ok {
		t.emitError("mint", reasonUnmintable)
		return nil
	}
	if !t.sheet.take(keepsake.BaseId, price) {
		t.emitError("mint", reasonInsufficientBalance)
		return nil
	}

	entry, err = t.relicForUpdate(id)
	if err != nil {
		return err
	}
	entry.Escrow.Add(&entry.Escrow, price)
	entry.Minted++
	t.sheet.add(id, &entry.Terms.Amount)
	if err := t.bumpBlockMints(id, blockCount); err != nil {
		return err
	}
	if entry.MintedOut() {
		t.seedPool(entry)
	}

	ev := t.newEvent(state.EventMinted)
	ev.RelicId = &id
	ev.Amount = new(uint256.Int).Set(&entry.Terms.Amount)
	ev.Fee = price
	t.emit(ev)
	return nil
}

// mintable runs every mint precondition except payment. An empty reason
// means the mint may proceed.
func (t *txUpdater) mintable(id keepsake.RelicId, entry *state.RelicEntry) (string, uint64, error) {
	if entry == nil {
		return reasonUnknownRelic, 0, nil
	}
	if entry.Unmintable {
		return reasonUnmintable, 0, nil
	}
	if entry.MintedOut() {
		return reasonCapReached, 0, nil
	}
	if entry.Terms.TxCap != nil && *entry.Terms.TxCap == 0 {
		return reasonTxCapZero, 0, nil
	}
	blockCount, err := t.stx.BlockMints(id, t.height)
	if err != nil {
		return "", 0, err
	}
	if entry.Terms.BlockCap != nil && blockCount >= *entry.Terms.BlockCap {
		return reasonBlockCapReached, 0, nil
	}
	return "", blockCount, nil
}

// seedPool goes live once the cap is fully minted: the escrowed MBTC and
// the seed amount become the initial reserves.
func (t *txUpdater) seedPool(entry *state.RelicEntry) {
	if entry.Pool != nil || entry.Escrow.IsZero() || entry.Terms.Seed.IsZero() {
		return
	}
	entry.Pool = pool.New(&entry.Escrow, &entry.Terms.Seed)
	entry.Escrow.Clear()
}

func (t *txUpdater) unmint(id keepsake.RelicId) error {
	entry, err := t.relic(id)
	if err != nil {
		return err
	}
	if entry == nil {
		t.emitError("unmint", reasonUnknownRelic)
		return nil
	}
	if entry.Terms.MaxUnmints == nil || entry.Unminted >= *entry.Terms.MaxUnmints {
		t.emitError("unmint", reasonUnmintsExhausted)
		return nil
	}
	// no unmint once the cap was hit and the pool went live
	if entry.MintedOut() || entry.Minted == 0 {
		t.emitError("unmint", reasonMintPhaseOver)
		return nil
	}
	if !t.sheet.take(id, &entry.Terms.Amount) {
		t.emitError("unmint", reasonInsufficientBalance)
		return nil
	}

	refund, ok := entry.Terms.Price.Price(entry.Minted - 1)
	if !ok || entry.Escrow.Lt(refund) {
		// schedule was validated over the whole range; escrow holds every
		// payment, so this is an invariant break
		return fmt.Errorf("unmint refund unavailable for %s", id)
	}
	entry, err = t.relicForUpdate(id)
	if err != nil {
		return err
	}
	entry.Minted--
	entry.Unminted++
	entry.Escrow.Sub(&entry.Escrow, refund)
	t.sheet.add(keepsake.BaseId, refund)

	ev := t.newEvent(state.EventUnminted)
	ev.RelicId = &id
	ev.Amount = new(uint256.Int).Set(&entry.Terms.Amount)
	ev.Fee = refund
	t.emit(ev)
	return nil
}

func (t *txUpdater) swap(s *keepsake.Swap) error {
	entry, err := t.relic(s.Id)
	if err != nil {
		return err
	}
	if entry == nil {
		t.emitError("swap", reasonUnknownRelic)
		return nil
	}
	if entry.Pool == nil {
		t.emitError("swap", reasonNoPool)
		return nil
	}

	inputId, outputId := keepsake.BaseId, s.Id
	if s.Sell {
		inputId, outputId = s.Id, keepsake.BaseId
	}
	if t.sheet.balance(inputId).Lt(&s.Input) {
		t.emitError("swap", reasonInsufficientBalance)
		return nil
	}
	diff, err := entry.Pool.Quote(&s.Input, &s.OutputMin, s.Sell)
	if err != nil {
		t.emitError("swap", err.Error())
		return nil
	}

	entry, err = t.relicForUpdate(s.Id)
	if err != nil {
		return err
	}
	entry.Pool.Apply(diff, s.Sell)
	t.sheet.take(inputId, &s.Input)
	t.sheet.add(outputId, &diff.Output)

	ev := t.newEvent(state.EventSwapped)
	ev.RelicId = &s.Id
	ev.Sell = s.Sell
	ev.Fee = new(uint256.Int).Set(&diff.Fee)
	if s.Sell {
		ev.BaseAmount = new(uint256.Int).Set(&diff.Output)
		ev.QuoteAmount = new(uint256.Int).Set(&diff.Input)
	} else {
		ev.BaseAmount = new(uint256.Int).Set(&diff.Input)
		ev.QuoteAmount = new(uint256.Int).Set(&diff.Output)
	}
	t.emit(ev)
	return nil
}

// applyCenotaph implements the burn policy for flawed messages: every input
// relic burns, a recognizable enshrine still claims its sealing but the
// entry is unmintable, and a recognizable mint counts toward the caps with
// its units burned. Pools and escrow stay untouched.
func (t *txUpdater) applyCenotaph(c *keepsake.Cenotaph) error {
	ev := t.newEvent(state.EventCenotaph)
	ev.Flaw = c.Flaw.String()
	t.emit(ev)

	if c.Enshrine != nil {
		rec, id, err := t.claimSealing(*c.Enshrine, "enshrine")
		if err != nil {
			return err
		}
		if rec != nil {
			number, err := t.stx.RelicCount()
			if err != nil {
				return err
			}
			entry := &state.RelicEntry{
				Id:             id,
				Name:           rec.Name,
				Unmintable:     true,
				Number:         number,
				EnshriningTxid: t.txid,
			}
			t.createRelic(entry)

			ev := t.newEvent(state.EventEnshrined)
			ev.RelicId = &entry.Id
			ev.Name = rec.Name.String()
			ev.Flaw = c.Flaw.String()
			t.emit(ev)
		}
	}

	if c.Mint != nil && !c.Mint.IsZero() {
		entry, err := t.relic(*c.Mint)
		if err != nil {
			return err
		}
		reason, blockCount, err := t.mintable(*c.Mint, entry)
		if err != nil {
			return err
		}
		if reason == "" {
			entry, err = t.relicForUpdate(*c.Mint)
			if err != nil {
				return err
			}
			entry.Minted++
			t.sheet.add(*c.Mint, &entry.Terms.Amount)
			if err := t.bumpBlockMints(*c.Mint, blockCount); err != nil {
				return err
			}
			ev := t.newEvent(state.EventMinted)
			ev.RelicId = c.Mint
			ev.Amount = new(uint256.Int).Set(&entry.Terms.Amount)
			ev.Flaw = c.Flaw.String()
			t.emit(ev)
		}
	}
	return nil
}

// finalize writes the allocation table, accumulates burns into entries,
// flushes dirty entries and appends the transaction's events with the undo
// pre-image attached to the first one.
func (t *txUpdater) finalize() error {
	for vout, alloc := range t.sheet.allocated {
		if len(alloc) == 0 {
			continue
		}
		ids := make([]keepsake.RelicId, 0, len(alloc))
		for id := range alloc {
			ids = append(ids, id)
		}
		sortIds(ids)

		if isOpReturn(t.tx.TxOut[vout]) {
			for _, id := range ids {
				t.sheet.burn(id, alloc[id])
			}
			continue
		}

		outpoint := state.Outpoint(t.txid, uint32(vout))
		balances := make([]state.Balance, 0, len(ids))
		for _, id := range ids {
			bal := state.Balance{Id: id}
			bal.Amount.Set(alloc[id])
			balances = append(balances, bal)

			output := uint32(vout)
			ev := t.newEvent(state.EventTransferred)
			relicId := id
			ev.RelicId = &relicId
			ev.Amount = new(uint256.Int).Set(alloc[id])
			ev.Output = &output
			t.emit(ev)
		}
		if err := t.stx.PutBalances(outpoint, balances); err != nil {
			return err
		}
		t.undo.CreatedOutputs = append(t.undo.CreatedOutputs, outpoint)
	}

	burnedIds := make([]keepsake.RelicId, 0, len(t.sheet.burned))
	for id := range t.sheet.burned {
		burnedIds = append(burnedIds, id)
	}
	sortIds(burnedIds)
	for _, id := range burnedIds {
		amount := t.sheet.burned[id]
		// the base relic has no entry; its burns simply leave circulation
		if id != keepsake.BaseId {
			entry, err := t.relicForUpdate(id)
			if err != nil {
				return err
			}
			if entry != nil {
				entry.Burned.Add(&entry.Burned, amount)
			}
		}
		relicId := id
		ev := t.newEvent(state.EventBurned)
		ev.RelicId = &relicId
		ev.Amount = new(uint256.Int).Set(amount)
		t.emit(ev)
	}

	for id, entry := range t.relics {
		if t.dirty[id] {
			if err := t.stx.PutRelic(entry); err != nil {
				return err
			}
		}
	}

	if len(t.events) == 0 {
		return nil
	}
	if !t.undo.Empty() {
		t.events[0].Undo = t.undo
	}
	for _, ev := range t.events {
		if err := t.stx.AppendEvent(ev); err != nil {
			return err
		}
	}
	return nil
}

// helpers

func (t *txUpdater) spendInputs() error {
	for _, in := range t.tx.TxIn {
		outpoint := state.Outpoint(in.PreviousOutPoint.Hash.String(), in.PreviousOutPoint.Index)
		balances, err := t.stx.TakeBalances(outpoint)
		if err != nil {
			return err
		}
		if len(balances) == 0 {
			continue
		}
		if t.undo.SpentBalances == nil {
			t.undo.SpentBalances = make(map[string][]state.Balance)
		}
		t.undo.SpentBalances[outpoint] = balances
		for i := range balances {
			t.sheet.add(balances[i].Id, &balances[i].Amount)
		}
	}
	return nil
}

func (t *txUpdater) spendsOutpoint(outpoint string) bool {
	for _, in := range t.tx.TxIn {
		if state.Outpoint(in.PreviousOutPoint.Hash.String(), in.PreviousOutPoint.Index) == outpoint {
			return true
		}
	}
	return false
}

// relic reads an entry through the per-transaction cache.
func (t *txUpdater) relic(id keepsake.RelicId) (*state.RelicEntry, error) {
	if entry, ok := t.relics[id]; ok {
		return entry, nil
	}
	entry, err := t.stx.Relic(id)
	if err != nil {
		return nil, err
	}
	if entry != nil {
		t.relics[id] = entry
	}
	return entry, nil
}

// relicForUpdate records the entry's pre-image on first mutation.
func (t *txUpdater) relicForUpdate(id keepsake.RelicId) (*state.RelicEntry, error) {
	entry, err := t.relic(id)
	if err != nil || entry == nil {
		return entry, err
	}
	if !t.dirty[id] {
		t.undo.PriorRelics = append(t.undo.PriorRelics, entry.Clone())
		t.dirty[id] = true
	}
	return entry, nil
}

// createRelic registers a freshly enshrined entry; undo deletes it.
func (t *txUpdater) createRelic(entry *state.RelicEntry) {
	t.relics[entry.Id] = entry
	t.dirty[entry.Id] = true
	t.undo.CreatedRelics = append(t.undo.CreatedRelics, entry.Id)
}

func (t *txUpdater) putName(name, ref string) error {
	prior, err := t.stx.NameRef(name)
	if err != nil {
		return err
	}
	if t.undo.PriorNames == nil {
		t.undo.PriorNames = make(map[string]string)
	}
	if _, seen := t.undo.PriorNames[name]; !seen {
		t.undo.PriorNames[name] = prior
	}
	return t.stx.PutName(name, ref)
}

func (t *txUpdater) bumpBlockMints(id keepsake.RelicId, current uint64) error {
	if t.undo.PriorBlockMints == nil {
		t.undo.PriorBlockMints = make(map[string]uint64)
	}
	if _, seen := t.undo.PriorBlockMints[id.String()]; !seen {
		t.undo.PriorBlockMints[id.String()] = current
	}
	return t.stx.SetBlockMints(id, t.height, current+1)
}

func (t *txUpdater) newEvent(kind state.EventType) *state.Event {
	ev := &state.Event{
		Height:  t.height,
		TxIndex: t.txIndex,
		Seq:     t.seq,
		Txid:    t.txid,
		Type:    kind,
	}
	t.seq++
	return ev
}

func (t *txUpdater) emit(ev *state.Event) {
	t.events = append(t.events, ev)
}

func (t *txUpdater) emitError(operation, reason string) {
	logger.WithFields(logger.Fields{
		"txid":      t.txid,
		"operation": operation,
		"reason":    reason,
	}).Debug("operation rejected")
	ev := t.newEvent(state.EventError)
	ev.Operation = operation
	ev.Reason = reason
	t.emit(ev)
}

func sortIds(ids []keepsake.RelicId) {
	sort.Slice(ids, func(i, j int) bool { return ids[i].Cmp(ids[j]) < 0 })
}
