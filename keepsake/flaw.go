package keepsake

// Flaw is a protocol-observable reason a keepsake is classified as a
// cenotaph. Flaws are detectable from the transaction alone; state-dependent
// failures (name collisions, fee shortfalls) are execution rejections and
// live in the updater.
type Flaw int

const (
	FlawVarintOverflow Flaw = iota
	FlawTruncatedVarint
	FlawNonPushOpcode
	FlawUnrecognizedOddTag
	FlawDuplicateTag
	FlawValueOutOfRange
	FlawNameInvalid
	FlawTransferOutputOutOfRange
	FlawPriceUnsolvable
	FlawSeedExceedsSupply
	FlawSupplyOverflow
	FlawMultipleMessages
)

func (f Flaw) String() string {
	switch f {
	case FlawVarintOverflow:
		return "varint overflow"
	case FlawTruncatedVarint:
		return "truncated varint"
	case FlawNonPushOpcode:
		return "non-push opcode in payload"
	case FlawUnrecognizedOddTag:
		return "unrecognized odd tag"
	case FlawDuplicateTag:
		return "duplicate tag"
	case FlawValueOutOfRange:
		return "tag value out of range"
	case FlawNameInvalid:
		return "invalid name"
	case FlawTransferOutputOutOfRange:
		return "transfer output out of range"
	case FlawPriceUnsolvable:
		return "price schedule unsolvable"
	case FlawSeedExceedsSupply:
		return "seed exceeds supply"
	case FlawSupplyOverflow:
		return "supply overflow"
	case FlawMultipleMessages:
		return "multiple protocol outputs"
	default:
		return "unknown flaw"
	}
}
