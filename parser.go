package amcodec

// KeyframeParser detects the first random-access point in a raw Annex-B
// stream. It is used only when no BitstreamConverter is installed.
type KeyframeParser interface {
	HasKeyframe(data []byte) bool
}

// ParserFactory builds a keyframe parser for codec.
type ParserFactory func(codec CodecID) KeyframeParser

// KeyframeParserFunc adapts a function to KeyframeParser.
type KeyframeParserFunc func(data []byte) bool

func (f KeyframeParserFunc) HasKeyframe(data []byte) bool { return f(data) }

// NewKeyframeParser returns the default parser, which reports an H.264 IDR
// slice anywhere in the packet.
func NewKeyframeParser(CodecID) KeyframeParser {
	return KeyframeParserFunc(hasH264IDR)
}

func hasH264IDR(data []byte) bool {
	for _, nalu := range parseAnnexBNALUnits(data) {
		if h264NALType(nalu) == nalTypeIDR {
			return true
		}
	}
	return false
}
