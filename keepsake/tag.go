package keepsake

// Wire tags. Body introduces the transfer list; all other recognized tags
// are odd. Unknown even tags are ignored for forward compatibility, unknown
// odd tags flag a cenotaph.
const (
	TagBody          uint64 = 0
	TagSeal          uint64 = 1
	TagSealSpacers   uint64 = 3
	TagEnshrine      uint64 = 5
	TagSymbol        uint64 = 7
	TagAmount        uint64 = 9
	TagCap           uint64 = 11
	TagBlockCap      uint64 = 13
	TagTxCap         uint64 = 15
	TagMaxUnmints    uint64 = 17
	TagPriceMode     uint64 = 19
	TagPriceA        uint64 = 21
	TagPriceB        uint64 = 23
	TagPriceC        uint64 = 25
	TagSeed          uint64 = 27
	TagTurbo         uint64 = 29
	TagMint          uint64 = 31
	TagUnmint        uint64 = 33
	TagSwap          uint64 = 35
	TagSwapInput     uint64 = 37
	TagSwapOutputMin uint64 = 39
	TagSwapDirection uint64 = 41
	TagPointer       uint64 = 43
)

// pair tags carry a (block, tx) id as two consecutive values
func isPairTag(tag uint64) bool {
	return tag == TagMint || tag == TagUnmint || tag == TagSwap
}

func isKnownTag(tag uint64) bool {
	switch tag {
	case TagSeal, TagSealSpacers, TagEnshrine, TagSymbol, TagAmount, TagCap,
		TagBlockCap, TagTxCap, TagMaxUnmints, TagPriceMode, TagPriceA,
		TagPriceB, TagPriceC, TagSeed, TagTurbo, TagMint, TagUnmint,
		TagSwap, TagSwapInput, TagSwapOutputMin, TagSwapDirection, TagPointer:
		return true
	}
	return false
}
