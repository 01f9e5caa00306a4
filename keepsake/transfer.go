package keepsake

import "github.com/holiman/uint256"

// Transfer allocates relics to a transaction output.
//
// Amount 0 means "all remaining". Output equal to the number of tx outputs
// is the split sentinel: the amount is divided among all non-OP_RETURN
// outputs. Outputs beyond that are invalid and flag a cenotaph.
type Transfer struct {
	Id     RelicId
	Amount uint256.Int
	Output uint32
}

// Swap executes a trade between a relic and MBTC on the relic's pool.
// Direction false buys the relic with MBTC, true sells it for MBTC.
type Swap struct {
	Id        RelicId
	Input     uint256.Int
	OutputMin uint256.Int
	Sell      bool
}
