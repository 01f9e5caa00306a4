package keepsake

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
)

// Relic is the integer form of a ticker name: a base-26 value over A..Z with
// a +1 bias per position so that "A" and "AA" encode differently.
type Relic struct {
	Value uint256.Int
}

// Divisibility is fixed for all relics: 10^8 atomic units per display unit.
const Divisibility = 8

// MaxNameLength bounds ticker names; longer names do not fit the wire u128.
const MaxNameLength = 26

var (
	ErrNameEmpty     = errors.New("keepsake: empty name")
	ErrNameTooLong   = errors.New("keepsake: name longer than 26 letters")
	ErrNameCharacter = errors.New("keepsake: name contains non A-Z character")
)

// AtomsPerUnit is 10^Divisibility.
var AtomsPerUnit = uint256.NewInt(100_000_000)

var maxNameValue = func() *uint256.Int {
	r, err := RelicFromString("ZZZZZZZZZZZZZZZZZZZZZZZZZZ")
	if err != nil {
		panic(err)
	}
	return new(uint256.Int).Set(&r.Value)
}()

func NewRelic(value *uint256.Int) (Relic, bool) {
	if value.Gt(maxNameValue) {
		return Relic{}, false
	}
	var r Relic
	r.Value.Set(value)
	return r, true
}

func RelicFromString(s string) (Relic, error) {
	if len(s) == 0 {
		return Relic{}, ErrNameEmpty
	}
	if len(s) > MaxNameLength {
		return Relic{}, ErrNameTooLong
	}
	x := new(uint256.Int)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < 'A' || c > 'Z' {
			return Relic{}, fmt.Errorf("%w: %q", ErrNameCharacter, c)
		}
		if i > 0 {
			x.AddUint64(x, 1)
		}
		x.Mul(x, uint256.NewInt(26))
		x.AddUint64(x, uint64(c-'A'))
	}
	var r Relic
	r.Value.Set(x)
	return r, nil
}

func (r Relic) String() string {
	n := new(uint256.Int).Set(&r.Value)
	n.AddUint64(n, 1)
	var buf [MaxNameLength + 2]byte
	i := len(buf)
	rem := new(uint256.Int)
	twentySix := uint256.NewInt(26)
	for !n.IsZero() {
		n.SubUint64(n, 1)
		n.DivMod(n, twentySix, rem)
		i--
		buf[i] = byte('A' + rem.Uint64())
	}
	return string(buf[i:])
}

// Length is the number of letters without materializing the string.
func (r Relic) Length() int {
	n := new(uint256.Int).Set(&r.Value)
	n.AddUint64(n, 1)
	length := 0
	twentySix := uint256.NewInt(26)
	for !n.IsZero() {
		n.SubUint64(n, 1)
		n.Div(n, twentySix)
		length++
	}
	return length
}

// SealingFee is the MBTC amount, in atomic units, burned to reserve this
// ticker. Shorter names cost more.
func (r Relic) SealingFee() *uint256.Int {
	var units uint64
	switch length := r.Length(); {
	case length == 1:
		units = 210_000
	case length == 2:
		units = 21_000
	case length == 3:
		units = 2100
	case length <= 6:
		units = 500
	case length <= 12:
		units = 10
	default:
		units = 1
	}
	fee := uint256.NewInt(units)
	return fee.Mul(fee, AtomsPerUnit)
}
