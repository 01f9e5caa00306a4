package keepsake

import (
	"errors"
	"fmt"
	"strings"
)

// SpacedRelic pairs a ticker with its spacer mask. Bit i of the mask renders
// a spacer between letter i and letter i+1; only bits 0..len-2 may be set.
// Names collide on letters alone, spacers are cosmetic.
type SpacedRelic struct {
	Relic   Relic
	Spacers uint32
}

// MaxSpacers is the widest valid mask, 25 bits for a 26-letter name.
const MaxSpacers = uint32(1)<<(MaxNameLength-1) - 1

// MetadataKey is the inscription metadata field carrying the sealed ticker.
const MetadataKey = "RELIC"

var (
	ErrLeadingSpacer  = errors.New("keepsake: leading spacer")
	ErrTrailingSpacer = errors.New("keepsake: trailing spacer")
	ErrDoubleSpacer   = errors.New("keepsake: double spacer")
	ErrSpacerOverflow = errors.New("keepsake: spacer past final letter")
)

func NewSpacedRelic(relic Relic, spacers uint32) (SpacedRelic, error) {
	if length := relic.Length(); length > 0 && spacers>>(length-1) != 0 {
		return SpacedRelic{}, ErrSpacerOverflow
	}
	return SpacedRelic{Relic: relic, Spacers: spacers}, nil
}

// SpacedRelicFromString parses a display form; both '.' and '•' are spacers.
func SpacedRelicFromString(s string) (SpacedRelic, error) {
	var letters strings.Builder
	var spacers uint32
	for _, c := range s {
		switch {
		case c >= 'A' && c <= 'Z':
			letters.WriteRune(c)
		case c == '.' || c == '•':
			if letters.Len() == 0 {
				return SpacedRelic{}, ErrLeadingSpacer
			}
			flag := uint32(1) << (letters.Len() - 1)
			if spacers&flag != 0 {
				return SpacedRelic{}, ErrDoubleSpacer
			}
			spacers |= flag
		default:
			return SpacedRelic{}, fmt.Errorf("%w: %q", ErrNameCharacter, c)
		}
	}
	relic, err := RelicFromString(letters.String())
	if err != nil {
		return SpacedRelic{}, err
	}
	if letters.Len() > 0 && spacers>>(letters.Len()-1) != 0 {
		return SpacedRelic{}, ErrTrailingSpacer
	}
	return SpacedRelic{Relic: relic, Spacers: spacers}, nil
}

func (s SpacedRelic) String() string {
	letters := s.Relic.String()
	var b strings.Builder
	for i := 0; i < len(letters); i++ {
		b.WriteByte(letters[i])
		if i < len(letters)-1 && s.Spacers&(1<<i) != 0 {
			b.WriteRune('•')
		}
	}
	return b.String()
}
