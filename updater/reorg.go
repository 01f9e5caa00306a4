package updater

import (
	"fmt"

	"github.com/relicsprotocol/relicsd/keepsake"
	"github.com/relicsprotocol/relicsd/state"
)

// UndoBlock rewinds the committed tip by one block, walking its events
// newest-first and applying the recorded pre-images.
func (u *Updater) UndoBlock(height uint64) error {
	stx, err := u.store.Begin()
	if err != nil {
		return err
	}
	if err := u.undoBlock(stx, height); err != nil {
		_ = stx.Rollback()
		return err
	}
	if err := stx.Commit(); err != nil {
		return err
	}
	u.log.WithField("height", height).Warn("unwound block")
	return nil
}

func (u *Updater) undoBlock(stx state.Tx, height uint64) error {
	tipHeight, _, err := stx.Tip()
	if err != nil {
		return err
	}
	if tipHeight != height {
		return fmt.Errorf("cannot undo block %d, tip is %d", height, tipHeight)
	}

	events, err := stx.BlockEvents(height)
	if err != nil {
		return err
	}
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Undo == nil {
			continue
		}
		if err := applyUndo(stx, events[i].Undo, height); err != nil {
			return err
		}
	}

	if err := stx.DeleteBlockEvents(height); err != nil {
		return err
	}
	if err := stx.DeleteBlockMints(height); err != nil {
		return err
	}
	if err := stx.DeleteBlockHash(height); err != nil {
		return err
	}
	prevHash, err := stx.BlockHash(height - 1)
	if err != nil {
		return err
	}
	return stx.SetTip(height-1, prevHash)
}

func applyUndo(stx state.Tx, undo *state.Undo, height uint64) error {
	for _, outpoint := range undo.CreatedOutputs {
		if err := stx.DeleteBalances(outpoint); err != nil {
			return err
		}
	}
	for outpoint, balances := range undo.SpentBalances {
		if err := stx.PutBalances(outpoint, balances); err != nil {
			return err
		}
	}
	for _, id := range undo.CreatedRelics {
		if err := stx.DeleteRelic(id); err != nil {
			return err
		}
	}
	for _, entry := range undo.PriorRelics {
		if err := stx.PutRelic(entry); err != nil {
			return err
		}
	}
	for _, name := range undo.CreatedSealings {
		if err := stx.DeleteSealing(name); err != nil {
			return err
		}
	}
	for _, rec := range undo.PriorSealings {
		if err := stx.PutSealing(rec); err != nil {
			return err
		}
	}
	for name, ref := range undo.PriorNames {
		var err error
		if ref == "" {
			err = stx.DeleteName(name)
		} else {
			err = stx.PutName(name, ref)
		}
		if err != nil {
			return err
		}
	}
	for idStr, count := range undo.PriorBlockMints {
		id, err := keepsake.ParseRelicId(idStr)
		if err != nil {
			return err
		}
		if err := stx.SetBlockMints(id, height, count); err != nil {
			return err
		}
	}
	return nil
}
