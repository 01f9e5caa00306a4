/*
Package inscription covers the single point where the relics protocol touches
ordinals: a sealing transaction must reveal an inscription whose CBOR
metadata carries the sealed ticker under the "RELIC" key.

Only the envelope fields needed for that check are parsed here; general
inscription indexing is someone else's job.
*/
package inscription

import (
	"bytes"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/fxamacker/cbor/v2"
	logger "github.com/sirupsen/logrus"

	"github.com/relicsprotocol/relicsd/keepsake"
)

// envelope framing: OP_FALSE OP_IF "ord" ... OP_ENDIF inside a tapscript
var protocolId = []byte("ord")

// metadataTag is the ordinals envelope field holding CBOR metadata chunks.
const metadataTag = 5

// Ticker extracts the sealed ticker from the first inscription envelope in
// the transaction's witnesses that carries RELIC metadata.
func Ticker(tx *wire.MsgTx) (keepsake.SpacedRelic, bool) {
	for _, in := range tx.TxIn {
		for _, item := range in.Witness {
			metadata, ok := envelopeMetadata(item)
			if !ok {
				continue
			}
			spaced, ok := tickerFromMetadata(metadata)
			if !ok {
				continue
			}
			return spaced, true
		}
	}
	return keepsake.SpacedRelic{}, false
}

// envelopeMetadata walks a tapscript looking for the ord envelope and
// returns the concatenated metadata field chunks.
func envelopeMetadata(script []byte) ([]byte, bool) {
	tokenizer := txscript.MakeScriptTokenizer(0, script)

	// find OP_FALSE OP_IF "ord"
	state := 0
	for state < 3 && tokenizer.Next() {
		switch state {
		case 0:
			if tokenizer.Opcode() == txscript.OP_0 {
				state = 1
			}
		case 1:
			switch tokenizer.Opcode() {
			case txscript.OP_IF:
				state = 2
			case txscript.OP_0:
			default:
				state = 0
			}
		case 2:
			if tokenizer.Opcode() <= txscript.OP_PUSHDATA4 && bytes.Equal(tokenizer.Data(), protocolId) {
				state = 3
			} else {
				state = 0
			}
		}
	}
	if state != 3 {
		return nil, false
	}

	// field section: (tag push, value push) pairs until the body separator
	var metadata []byte
	seen := false
	for tokenizer.Next() {
		if tokenizer.Opcode() == txscript.OP_ENDIF {
			break
		}
		if tokenizer.Opcode() > txscript.OP_PUSHDATA4 {
			return nil, false
		}
		tag := tokenizer.Data()
		if len(tag) == 0 {
			break // body separator, fields are done
		}
		if !tokenizer.Next() || tokenizer.Opcode() > txscript.OP_PUSHDATA4 {
			return nil, false
		}
		if len(tag) == 1 && tag[0] == metadataTag {
			metadata = append(metadata, tokenizer.Data()...)
			seen = true
		}
	}
	if tokenizer.Err() != nil || !seen {
		return nil, false
	}
	return metadata, true
}

func tickerFromMetadata(metadata []byte) (keepsake.SpacedRelic, bool) {
	var fields map[string]interface{}
	if err := cbor.Unmarshal(metadata, &fields); err != nil {
		logger.WithField("err", err).Debug("undecodable inscription metadata")
		return keepsake.SpacedRelic{}, false
	}
	raw, ok := fields[keepsake.MetadataKey].(string)
	if !ok {
		return keepsake.SpacedRelic{}, false
	}
	spaced, err := keepsake.SpacedRelicFromString(raw)
	if err != nil {
		logger.WithFields(logger.Fields{"ticker": raw, "err": err}).Debug("invalid RELIC metadata")
		return keepsake.SpacedRelic{}, false
	}
	return spaced, true
}

// Metadata builds the CBOR payload a sealing inscription must carry.
func Metadata(spaced keepsake.SpacedRelic) ([]byte, error) {
	return cbor.Marshal(map[string]string{keepsake.MetadataKey: spaced.String()})
}
