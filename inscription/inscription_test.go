package inscription

import (
	"testing"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relicsprotocol/relicsd/keepsake"
)

func spaced(t *testing.T, s string) keepsake.SpacedRelic {
	t.Helper()
	out, err := keepsake.SpacedRelicFromString(s)
	require.NoError(t, err)
	return out
}

func envelopeTx(t *testing.T, chunks ...[]byte) *wire.MsgTx {
	t.Helper()
	builder := txscript.NewScriptBuilder().
		AddOp(txscript.OP_0).
		AddOp(txscript.OP_IF).
		AddData([]byte("ord"))
	for _, chunk := range chunks {
		// literal one-byte push of the tag; AddData would canonicalize
		// []byte{metadataTag} to OP_5, which is not a data push
		builder.AddOp(txscript.OP_DATA_1).AddOp(metadataTag).AddData(chunk)
	}
	builder.AddOp(txscript.OP_ENDIF)
	script, err := builder.Script()
	require.NoError(t, err)

	tx := wire.NewMsgTx(2)
	tx.AddTxIn(&wire.TxIn{Witness: wire.TxWitness{script}})
	return tx
}

func TestTickerRoundTrip(t *testing.T) {
	name := spaced(t, "UNCOMMON•RELICS")
	metadata, err := Metadata(name)
	require.NoError(t, err)

	got, ok := Ticker(envelopeTx(t, metadata))
	require.True(t, ok)
	assert.Equal(t, name, got)
}

func TestTickerChunkedMetadata(t *testing.T) {
	name := spaced(t, "FOO")
	metadata, err := Metadata(name)
	require.NoError(t, err)

	// metadata may arrive as several field chunks
	mid := len(metadata) / 2
	got, ok := Ticker(envelopeTx(t, metadata[:mid], metadata[mid:]))
	require.True(t, ok)
	assert.Equal(t, name, got)
}

func TestTickerMissing(t *testing.T) {
	// plain witness, no envelope
	tx := wire.NewMsgTx(2)
	tx.AddTxIn(&wire.TxIn{Witness: wire.TxWitness{{txscript.OP_TRUE}}})
	_, ok := Ticker(tx)
	assert.False(t, ok)

	// no inputs at all
	_, ok = Ticker(wire.NewMsgTx(2))
	assert.False(t, ok)

	// envelope whose metadata is not CBOR
	_, ok = Ticker(envelopeTx(t, []byte{0xff, 0xff, 0xff}))
	assert.False(t, ok)
}

func TestTickerWrongKey(t *testing.T) {
	// valid CBOR map without the RELIC key
	metadata := []byte{0xa1, 0x63, 'f', 'o', 'o', 0x63, 'b', 'a', 'r'}
	_, ok := Ticker(envelopeTx(t, metadata))
	assert.False(t, ok)
}

func TestTickerInvalidName(t *testing.T) {
	metadata, err := Metadata(spaced(t, "FOO"))
	require.NoError(t, err)
	// corrupt the ticker text inside the CBOR payload
	for i := range metadata {
		if metadata[i] == 'O' {
			metadata[i] = '9'
		}
	}
	_, ok := Ticker(envelopeTx(t, metadata))
	assert.False(t, ok)
}
