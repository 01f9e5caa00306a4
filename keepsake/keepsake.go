package keepsake

import (
	"math"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/holiman/uint256"
)

// Keepsake is a parsed protocol message.
type Keepsake struct {
	Transfers  []Transfer
	Pointer    *uint32
	Seal       *SpacedRelic
	Enshrining *Enshrining
	Mint       *RelicId
	Unmint     *RelicId
	Swap       *Swap
}

// Cenotaph is a malformed keepsake. Enshrine and Mint carry whatever the
// parser could still recognize so the burn policy can mark the enshrined
// relic unmintable and count the attempted mint toward its caps.
type Cenotaph struct {
	Flaw     Flaw
	Enshrine *Relic
	Mint     *RelicId
}

// Artifact is the result of deciphering a transaction: exactly one of
// Keepsake or Cenotaph is set.
type Artifact struct {
	Keepsake *Keepsake
	Cenotaph *Cenotaph
}

// MagicOpcode follows OP_RETURN on the protocol output. Runes use OP_13,
// relics use OP_15.
const MagicOpcode = txscript.OP_15

// Decipher extracts the protocol message from a transaction, if any.
// A nil return means the transaction carries no keepsake at all.
func Decipher(tx *wire.MsgTx) *Artifact {
	payload, flaw := payload(tx)
	if flaw != nil {
		return cenotaph(*flaw, nil, nil)
	}
	if payload == nil {
		return nil
	}

	integers, err := Integers(payload)
	if err != nil {
		if err == ErrVarintTruncated {
			return cenotaph(FlawTruncatedVarint, nil, nil)
		}
		return cenotaph(FlawVarintOverflow, nil, nil)
	}

	return parse(tx, integers)
}

func cenotaph(flaw Flaw, enshrine *Relic, mint *RelicId) *Artifact {
	return &Artifact{Cenotaph: &Cenotaph{Flaw: flaw, Enshrine: enshrine, Mint: mint}}
}

// payload locates the single OP_RETURN OP_15 output and concatenates its
// data pushes. More than one such output is a cenotaph in its own right.
func payload(tx *wire.MsgTx) ([]byte, *Flaw) {
	var found []byte
	seen := false
	for _, out := range tx.TxOut {
		script := out.PkScript
		if len(script) < 2 || script[0] != txscript.OP_RETURN || script[1] != MagicOpcode {
			continue
		}
		if seen {
			f := FlawMultipleMessages
			return nil, &f
		}
		seen = true

		var buf []byte
		tokenizer := txscript.MakeScriptTokenizer(0, script[2:])
		for tokenizer.Next() {
			if tokenizer.Opcode() > txscript.OP_PUSHDATA4 {
				f := FlawNonPushOpcode
				return nil, &f
			}
			buf = append(buf, tokenizer.Data()...)
		}
		if tokenizer.Err() != nil {
			f := FlawNonPushOpcode
			return nil, &f
		}
		found = buf
		if found == nil {
			found = []byte{}
		}
	}
	if !seen {
		return nil, nil
	}
	return found, nil
}

type parser struct {
	tx     *wire.MsgTx
	fields map[uint64][]*uint256.Int
	flaw   *Flaw
}

func (p *parser) setFlaw(f Flaw) {
	if p.flaw == nil {
		p.flaw = &f
	}
}

// take1 pulls a single-valued tag; a second occurrence is a DuplicateTag.
func (p *parser) take1(tag uint64) *uint256.Int {
	values, ok := p.fields[tag]
	if !ok {
		return nil
	}
	delete(p.fields, tag)
	if len(values) > 1 {
		p.setFlaw(FlawDuplicateTag)
	}
	return values[0]
}

// takePair pulls a two-valued id tag.
func (p *parser) takePair(tag uint64) *RelicId {
	values, ok := p.fields[tag]
	if !ok {
		return nil
	}
	delete(p.fields, tag)
	switch {
	case len(values) > 2:
		p.setFlaw(FlawDuplicateTag)
		return nil
	case len(values) < 2:
		p.setFlaw(FlawValueOutOfRange)
		return nil
	}
	id, ok := NewRelicIdFromIntegers(values[0], values[1])
	if !ok {
		p.setFlaw(FlawValueOutOfRange)
		return nil
	}
	return &id
}

func (p *parser) takeUint64(tag uint64) *uint64 {
	v := p.take1(tag)
	if v == nil {
		return nil
	}
	if !v.IsUint64() {
		p.setFlaw(FlawValueOutOfRange)
		return nil
	}
	n := v.Uint64()
	return &n
}

func (p *parser) takeBounded(tag uint64, max uint64) *uint64 {
	n := p.takeUint64(tag)
	if n != nil && *n > max {
		p.setFlaw(FlawValueOutOfRange)
		return nil
	}
	return n
}

func parse(tx *wire.MsgTx, integers []*uint256.Int) *Artifact {
	p := &parser{tx: tx, fields: make(map[uint64][]*uint256.Int)}
	var transfers []Transfer

	i := 0
	for i < len(integers) {
		tagInt := integers[i]
		tag := tagInt.Uint64()
		if tagInt.IsUint64() && tag == TagBody {
			transfers = p.parseTransfers(integers[i+1:])
			break
		}
		if i+1 >= len(integers) {
			p.setFlaw(FlawTruncatedVarint)
			break
		}
		value := integers[i+1]
		i += 2
		if !tagInt.IsUint64() || !isKnownTag(tag) {
			if tag&1 == 1 {
				p.setFlaw(FlawUnrecognizedOddTag)
			}
			continue
		}
		p.fields[tag] = append(p.fields[tag], value)
	}

	msg := &Keepsake{Transfers: transfers}

	// sealing
	sealValue := p.take1(TagSeal)
	spacersValue := p.takeBounded(TagSealSpacers, uint64(MaxSpacers))
	if sealValue != nil {
		if relic, ok := NewRelic(sealValue); ok {
			var spacers uint32
			if spacersValue != nil {
				spacers = uint32(*spacersValue)
			}
			if spaced, err := NewSpacedRelic(relic, spacers); err == nil {
				msg.Seal = &spaced
			} else {
				p.setFlaw(FlawNameInvalid)
			}
		} else {
			p.setFlaw(FlawNameInvalid)
		}
	} else if spacersValue != nil {
		p.setFlaw(FlawValueOutOfRange)
	}

	// enshrining
	var enshrineName *Relic
	if v := p.take1(TagEnshrine); v != nil {
		if relic, ok := NewRelic(v); ok {
			enshrineName = &relic
		} else {
			p.setFlaw(FlawNameInvalid)
		}
	}
	if enshrineName != nil && msg.Seal != nil {
		// a single transaction cannot both reserve and instantiate
		p.setFlaw(FlawValueOutOfRange)
	}
	msg.Enshrining = p.parseEnshrining(enshrineName)

	// mints and swap
	msg.Mint = p.takePair(TagMint)
	msg.Unmint = p.takePair(TagUnmint)
	msg.Swap = p.parseSwap()

	if msg.Mint != nil && *msg.Mint == BaseId {
		p.setFlaw(FlawValueOutOfRange)
	}
	if msg.Unmint != nil && *msg.Unmint == BaseId {
		p.setFlaw(FlawValueOutOfRange)
	}

	// pointer
	if v := p.takeUint64(TagPointer); v != nil {
		if *v >= uint64(len(tx.TxOut)) || *v > math.MaxUint32 {
			p.setFlaw(FlawValueOutOfRange)
		} else {
			ptr := uint32(*v)
			msg.Pointer = &ptr
		}
	}

	if p.flaw != nil {
		var mint *RelicId
		if msg.Mint != nil {
			mint = msg.Mint
		}
		return cenotaph(*p.flaw, enshrineName, mint)
	}
	return &Artifact{Keepsake: msg}
}

func (p *parser) parseEnshrining(name *Relic) *Enshrining {
	amount := p.take1(TagAmount)
	capValue := p.takeUint64(TagCap)
	blockCap := p.takeUint64(TagBlockCap)
	txCap := p.takeBounded(TagTxCap, math.MaxUint8)
	maxUnmints := p.takeUint64(TagMaxUnmints)
	priceMode := p.takeBounded(TagPriceMode, 1)
	priceA := p.take1(TagPriceA)
	priceB := p.take1(TagPriceB)
	priceC := p.take1(TagPriceC)
	seed := p.take1(TagSeed)
	turbo := p.takeBounded(TagTurbo, 1)
	symbol := p.takeUint64(TagSymbol)

	if name == nil {
		// enshrining fields without an Enshrine target are malformed
		if amount != nil || capValue != nil || blockCap != nil || txCap != nil ||
			maxUnmints != nil || priceMode != nil || priceA != nil || priceB != nil ||
			priceC != nil || seed != nil || turbo != nil || symbol != nil {
			p.setFlaw(FlawValueOutOfRange)
		}
		return nil
	}

	if amount == nil || capValue == nil || priceMode == nil || priceA == nil || seed == nil {
		p.setFlaw(FlawValueOutOfRange)
		return nil
	}

	enshrining := &Enshrining{Name: *name}
	enshrining.Terms.Amount.Set(amount)
	enshrining.Terms.Cap = *capValue
	enshrining.Terms.BlockCap = blockCap
	enshrining.Terms.MaxUnmints = maxUnmints
	if txCap != nil {
		v := uint8(*txCap)
		enshrining.Terms.TxCap = &v
	}
	enshrining.Terms.Seed.Set(seed)
	enshrining.Turbo = turbo != nil && *turbo == 1

	if symbol != nil {
		if !isValidCodepoint(*symbol) {
			p.setFlaw(FlawValueOutOfRange)
		} else {
			enshrining.Symbol = rune(*symbol)
		}
	}

	enshrining.Terms.Price.A.Set(priceA)
	if *priceMode == uint64(PriceFormula) {
		if priceB == nil || priceC == nil {
			p.setFlaw(FlawValueOutOfRange)
			return nil
		}
		enshrining.Terms.Price.Mode = PriceFormula
		enshrining.Terms.Price.B.Set(priceB)
		enshrining.Terms.Price.C.Set(priceC)
	} else if priceB != nil || priceC != nil {
		p.setFlaw(FlawValueOutOfRange)
		return nil
	}

	if flaw, ok := enshrining.Terms.Validate(); !ok {
		p.setFlaw(flaw)
		return nil
	}
	return enshrining
}

func (p *parser) parseSwap() *Swap {
	id := p.takePair(TagSwap)
	input := p.take1(TagSwapInput)
	outputMin := p.take1(TagSwapOutputMin)
	direction := p.takeBounded(TagSwapDirection, 1)

	if id == nil {
		if input != nil || outputMin != nil || direction != nil {
			p.setFlaw(FlawValueOutOfRange)
		}
		return nil
	}
	if *id == BaseId {
		p.setFlaw(FlawValueOutOfRange)
		return nil
	}
	if input == nil || input.IsZero() {
		p.setFlaw(FlawValueOutOfRange)
		return nil
	}

	swap := &Swap{Id: *id, Sell: direction != nil && *direction == 1}
	swap.Input.Set(input)
	if outputMin != nil {
		swap.OutputMin.Set(outputMin)
	}
	return swap
}

// parseTransfers decodes the flat 4-tuple list following Body. Ids are
// delta-encoded against the previous id in the list.
func (p *parser) parseTransfers(integers []*uint256.Int) []Transfer {
	if len(integers)%4 != 0 {
		p.setFlaw(FlawTruncatedVarint)
	}
	var transfers []Transfer
	prev := RelicId{}
	for i := 0; i+4 <= len(integers); i += 4 {
		id, ok := prev.Next(integers[i], integers[i+1])
		if !ok || (id.Block == 0 && id.Tx != 0) {
			p.setFlaw(FlawTransferOutputOutOfRange)
			break
		}
		output := integers[i+3]
		if !output.IsUint64() || output.Uint64() > uint64(len(p.tx.TxOut)) {
			p.setFlaw(FlawTransferOutputOutOfRange)
			break
		}
		t := Transfer{Id: id, Output: uint32(output.Uint64())}
		t.Amount.Set(integers[i+2])
		transfers = append(transfers, t)
		prev = id
	}
	return transfers
}

func isValidCodepoint(n uint64) bool {
	if n > 0x10ffff {
		return false
	}
	if n >= 0xd800 && n <= 0xdfff {
		return false
	}
	return true
}
