package keepsake

import "github.com/holiman/uint256"

// PriceMode selects the mint price schedule.
type PriceMode uint8

const (
	PriceFixed PriceMode = iota
	PriceFormula
)

// PriceSchedule is either a fixed price per mint or the integer formula
// price(x) = a - floor(b / (c + x)) evaluated at x = mints so far.
type PriceSchedule struct {
	Mode PriceMode   `json:"mode"`
	A    uint256.Int `json:"a"`
	B    uint256.Int `json:"b"`
	C    uint256.Int `json:"c"`
}

// Price computes the MBTC price of the x-th mint. The second return is false
// when the schedule is unsolvable at x.
func (p *PriceSchedule) Price(x uint64) (*uint256.Int, bool) {
	if p.Mode == PriceFixed {
		return new(uint256.Int).Set(&p.A), true
	}
	denom := new(uint256.Int).AddUint64(&p.C, x)
	if denom.IsZero() {
		return nil, false
	}
	sub := new(uint256.Int).Div(&p.B, denom)
	if sub.Gt(&p.A) {
		return nil, false
	}
	return new(uint256.Int).Sub(&p.A, sub), true
}

// MintTerms are the immutable mint parameters fixed at enshrining.
type MintTerms struct {
	Amount     uint256.Int   `json:"amount"`
	Cap        uint64        `json:"cap"`
	BlockCap   *uint64       `json:"blockCap,omitempty"`
	TxCap      *uint8        `json:"txCap,omitempty"`
	MaxUnmints *uint64       `json:"maxUnmints,omitempty"`
	Price      PriceSchedule `json:"price"`
	Seed       uint256.Int   `json:"seed"`
}

// MaxSupply is cap * amount, the relic supply minted at cap.
func (t *MintTerms) MaxSupply() (*uint256.Int, bool) {
	supply := new(uint256.Int).Mul(uint256.NewInt(t.Cap), &t.Amount)
	if !fitsU128(supply) {
		return nil, false
	}
	return supply, true
}

// Validate applies the coherence rules checked at parse time. The returned
// flaw is meaningful only when ok is false.
func (t *MintTerms) Validate() (Flaw, bool) {
	if t.Cap == 0 {
		return FlawValueOutOfRange, false
	}
	supply, ok := t.MaxSupply()
	if !ok {
		return FlawSupplyOverflow, false
	}
	if _, ok := t.Price.Price(0); !ok {
		return FlawPriceUnsolvable, false
	}
	if _, ok := t.Price.Price(t.Cap - 1); !ok {
		return FlawPriceUnsolvable, false
	}
	if t.Seed.Gt(supply) {
		return FlawSeedExceedsSupply, false
	}
	return 0, true
}

// Enshrining instantiates a sealed ticker as a mintable relic.
type Enshrining struct {
	Name   Relic
	Symbol rune // 0 when unset
	Turbo  bool
	Terms  MintTerms
}
