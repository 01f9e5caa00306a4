package keepsake

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/holiman/uint256"
)

// RelicId identifies a relic by the block and intra-block transaction index
// of its enshrining. The distinguished id (1, 0) is MBTC, the base token.
type RelicId struct {
	Block uint64 `json:"block"`
	Tx    uint32 `json:"tx"`
}

// BaseId is the reserved id of MBTC.
var BaseId = RelicId{Block: 1, Tx: 0}

// BaseName is the reserved ticker of MBTC.
const BaseName = "MBTC"

func (id RelicId) IsZero() bool {
	return id.Block == 0 && id.Tx == 0
}

func (id RelicId) String() string {
	return fmt.Sprintf("%d:%d", id.Block, id.Tx)
}

// Cmp orders ids by (block, tx).
func (id RelicId) Cmp(other RelicId) int {
	if id.Block != other.Block {
		if id.Block < other.Block {
			return -1
		}
		return 1
	}
	if id.Tx != other.Tx {
		if id.Tx < other.Tx {
			return -1
		}
		return 1
	}
	return 0
}

// Next applies the delta wire form to the previous id in a transfer list.
// A zero block delta stays in the same block and advances tx by the second
// integer; a nonzero block delta advances the block and sets tx absolutely.
func (id RelicId) Next(blockDelta, tx *uint256.Int) (RelicId, bool) {
	if !blockDelta.IsUint64() || !tx.IsUint64() {
		return RelicId{}, false
	}
	bd := blockDelta.Uint64()
	t := tx.Uint64()
	if bd == 0 {
		next := uint64(id.Tx) + t
		if next > math.MaxUint32 {
			return RelicId{}, false
		}
		return RelicId{Block: id.Block, Tx: uint32(next)}, true
	}
	block := id.Block + bd
	if block < id.Block || t > math.MaxUint32 {
		return RelicId{}, false
	}
	return RelicId{Block: block, Tx: uint32(t)}, true
}

// Delta computes the wire deltas from id to next; next must not sort before id.
func (id RelicId) Delta(next RelicId) (uint64, uint32, bool) {
	if next.Cmp(id) < 0 {
		return 0, 0, false
	}
	if next.Block == id.Block {
		return 0, next.Tx - id.Tx, true
	}
	return next.Block - id.Block, next.Tx, true
}

// NewRelicIdFromIntegers builds an absolute id from two wire integers.
func NewRelicIdFromIntegers(block, tx *uint256.Int) (RelicId, bool) {
	if !block.IsUint64() || !tx.IsUint64() || tx.Uint64() > math.MaxUint32 {
		return RelicId{}, false
	}
	id := RelicId{Block: block.Uint64(), Tx: uint32(tx.Uint64())}
	if id.Block == 0 && id.Tx != 0 {
		return RelicId{}, false
	}
	return id, true
}

// ParseRelicId parses the "block:tx" display form.
func ParseRelicId(s string) (RelicId, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return RelicId{}, fmt.Errorf("invalid relic id %q", s)
	}
	block, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return RelicId{}, fmt.Errorf("invalid relic id %q: %v", s, err)
	}
	tx, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return RelicId{}, fmt.Errorf("invalid relic id %q: %v", s, err)
	}
	return RelicId{Block: block, Tx: uint32(tx)}, nil
}
