package keepsake

import (
	"sort"

	"github.com/btcsuite/btcd/txscript"
	"github.com/holiman/uint256"
)

// maxScriptElementSize mirrors the consensus limit on a single data push.
const maxScriptElementSize = 520

func appendTag(payload []byte, tag uint64, value *uint256.Int) []byte {
	payload = AppendUvarint128(payload, uint256.NewInt(tag))
	return AppendUvarint128(payload, value)
}

func appendTagUint64(payload []byte, tag uint64, value uint64) []byte {
	return appendTag(payload, tag, uint256.NewInt(value))
}

func appendTagPair(payload []byte, tag uint64, id RelicId) []byte {
	payload = appendTagUint64(payload, tag, id.Block)
	return appendTagUint64(payload, tag, uint64(id.Tx))
}

// Payload serializes the message into the integer wire form.
func (k *Keepsake) Payload() []byte {
	var payload []byte

	if k.Seal != nil {
		payload = appendTag(payload, TagSeal, &k.Seal.Relic.Value)
		if k.Seal.Spacers != 0 {
			payload = appendTagUint64(payload, TagSealSpacers, uint64(k.Seal.Spacers))
		}
	}

	if e := k.Enshrining; e != nil {
		payload = appendTag(payload, TagEnshrine, &e.Name.Value)
		if e.Symbol != 0 {
			payload = appendTagUint64(payload, TagSymbol, uint64(e.Symbol))
		}
		payload = appendTag(payload, TagAmount, &e.Terms.Amount)
		payload = appendTagUint64(payload, TagCap, e.Terms.Cap)
		if e.Terms.BlockCap != nil {
			payload = appendTagUint64(payload, TagBlockCap, *e.Terms.BlockCap)
		}
		if e.Terms.TxCap != nil {
			payload = appendTagUint64(payload, TagTxCap, uint64(*e.Terms.TxCap))
		}
		if e.Terms.MaxUnmints != nil {
			payload = appendTagUint64(payload, TagMaxUnmints, *e.Terms.MaxUnmints)
		}
		payload = appendTagUint64(payload, TagPriceMode, uint64(e.Terms.Price.Mode))
		payload = appendTag(payload, TagPriceA, &e.Terms.Price.A)
		if e.Terms.Price.Mode == PriceFormula {
			payload = appendTag(payload, TagPriceB, &e.Terms.Price.B)
			payload = appendTag(payload, TagPriceC, &e.Terms.Price.C)
		}
		payload = appendTag(payload, TagSeed, &e.Terms.Seed)
		if e.Turbo {
			payload = appendTagUint64(payload, TagTurbo, 1)
		}
	}

	if k.Mint != nil {
		payload = appendTagPair(payload, TagMint, *k.Mint)
	}
	if k.Unmint != nil {
		payload = appendTagPair(payload, TagUnmint, *k.Unmint)
	}
	if s := k.Swap; s != nil {
		payload = appendTagPair(payload, TagSwap, s.Id)
		payload = appendTag(payload, TagSwapInput, &s.Input)
		if !s.OutputMin.IsZero() {
			payload = appendTag(payload, TagSwapOutputMin, &s.OutputMin)
		}
		if s.Sell {
			payload = appendTagUint64(payload, TagSwapDirection, 1)
		}
	}

	if k.Pointer != nil {
		payload = appendTagUint64(payload, TagPointer, uint64(*k.Pointer))
	}

	if len(k.Transfers) != 0 {
		payload = AppendUvarint128(payload, uint256.NewInt(TagBody))

		transfers := make([]Transfer, len(k.Transfers))
		copy(transfers, k.Transfers)
		sort.SliceStable(transfers, func(i, j int) bool {
			return transfers[i].Id.Cmp(transfers[j].Id) < 0
		})

		prev := RelicId{}
		for _, t := range transfers {
			blockDelta, txDelta, _ := prev.Delta(t.Id)
			payload = AppendUvarint128(payload, uint256.NewInt(blockDelta))
			payload = AppendUvarint128(payload, uint256.NewInt(uint64(txDelta)))
			payload = AppendUvarint128(payload, &t.Amount)
			payload = AppendUvarint128(payload, uint256.NewInt(uint64(t.Output)))
			prev = t.Id
		}
	}
	return payload
}

// Script builds the OP_RETURN output script carrying the message.
func (k *Keepsake) Script() ([]byte, error) {
	builder := txscript.NewScriptBuilder()
	builder.AddOp(txscript.OP_RETURN)
	builder.AddOp(MagicOpcode)
	payload := k.Payload()
	for len(payload) > 0 {
		chunk := payload
		if len(chunk) > maxScriptElementSize {
			chunk = chunk[:maxScriptElementSize]
		}
		builder.AddData(chunk)
		payload = payload[len(chunk):]
	}
	return builder.Script()
}
