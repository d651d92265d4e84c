package amcodec

import (
	"errors"
	"fmt"
)

var annexBStartCode = []byte{0, 0, 0, 1}

// Bitstream conversion errors.
var (
	ErrInvalidExtraData = errors.New("amcodec: invalid codec configuration record")
	ErrInvalidNALLength = errors.New("amcodec: NAL unit length exceeds packet")
)

// BitstreamConverter rewrites length-prefixed (avcC/hvcC) packets into
// Annex-B start-code framing for the hardware decoder and tracks whether a
// random-access point has been seen since the last ResetKeyframe.
type BitstreamConverter interface {
	// Convert rewrites one packet. The result is valid until the next call.
	Convert(data []byte) bool

	// ConvertedBuffer returns the output of the last successful Convert.
	ConvertedBuffer() []byte

	// HasKeyframe reports whether a keyframe has been converted since the
	// last ResetKeyframe.
	HasKeyframe() bool

	// ResetKeyframe forgets keyframe state so output resyncs on the next
	// IDR/IRAP.
	ResetKeyframe()

	// ExtraData returns the parameter sets in Annex-B framing.
	ExtraData() []byte
}

// ConverterFactory builds a converter for a codec and its out-of-band
// configuration record.
type ConverterFactory func(codec CodecID, extradata []byte) (BitstreamConverter, error)

// annexBConverter handles H.264 avcC and HEVC hvcC streams. Streams whose
// extradata is already Annex-B (or absent) pass through with keyframe
// tracking only.
type annexBConverter struct {
	codec      CodecID
	lengthSize int // 0 when input is already Annex-B
	paramSets  [][]byte
	extra      []byte
	buf        []byte // Owned scratch space for rewritten packets
	out        []byte // Last result; aliases the input on pass-through
	keyframe   bool
}

// NewBitstreamConverter parses extradata for codec (CodecH264 or CodecHEVC).
func NewBitstreamConverter(codec CodecID, extradata []byte) (BitstreamConverter, error) {
	c := &annexBConverter{codec: codec}

	switch codec {
	case CodecH264:
		switch {
		case len(extradata) > 0 && extradata[0] == 1:
			if err := c.parseAVCC(extradata); err != nil {
				return nil, err
			}
		case len(extradata) > 0 && !isAnnexBStartCode(extradata):
			return nil, fmt.Errorf("%w: neither avcC nor Annex-B", ErrInvalidExtraData)
		}
	case CodecHEVC:
		// hvcC writers disagree on configurationVersion, so anything that
		// is not Annex-B is taken as hvcC.
		if len(extradata) > 3 && !isAnnexBStartCode(extradata) {
			if err := c.parseHVCC(extradata); err != nil {
				return nil, err
			}
		}
	default:
		return nil, fmt.Errorf("amcodec: no bitstream converter for %s", codec)
	}

	if c.lengthSize == 0 {
		c.extra = append([]byte(nil), extradata...)
		return c, nil
	}
	for _, ps := range c.paramSets {
		c.extra = append(c.extra, annexBStartCode...)
		c.extra = append(c.extra, ps...)
	}
	return c, nil
}

// parseAVCC reads an AVCDecoderConfigurationRecord (ISO/IEC 14496-15 5.2.4).
func (c *annexBConverter) parseAVCC(data []byte) error {
	if len(data) < 7 {
		return ErrInvalidExtraData
	}
	c.lengthSize = int(data[4]&0x03) + 1
	if c.lengthSize == 3 {
		return fmt.Errorf("%w: length size 3", ErrInvalidExtraData)
	}

	offset := 5
	numSPS := int(data[offset] & 0x1F)
	offset++
	sets, offset, err := readParamSets(data, offset, numSPS)
	if err != nil {
		return err
	}
	c.paramSets = append(c.paramSets, sets...)

	if offset >= len(data) {
		return ErrInvalidExtraData
	}
	numPPS := int(data[offset])
	offset++
	sets, _, err = readParamSets(data, offset, numPPS)
	if err != nil {
		return err
	}
	c.paramSets = append(c.paramSets, sets...)
	return nil
}

// parseHVCC reads an HEVCDecoderConfigurationRecord (ISO/IEC 14496-15 8.3.3).
func (c *annexBConverter) parseHVCC(data []byte) error {
	if len(data) < 23 {
		return ErrInvalidExtraData
	}
	c.lengthSize = int(data[21]&0x03) + 1
	if c.lengthSize == 3 {
		return fmt.Errorf("%w: length size 3", ErrInvalidExtraData)
	}

	numArrays := int(data[22])
	offset := 23
	for i := 0; i < numArrays; i++ {
		if offset+3 > len(data) {
			return ErrInvalidExtraData
		}
		numNALUs := int(data[offset+1])<<8 | int(data[offset+2])
		offset += 3
		sets, next, err := readParamSets(data, offset, numNALUs)
		if err != nil {
			return err
		}
		c.paramSets = append(c.paramSets, sets...)
		offset = next
	}
	return nil
}

// readParamSets reads count 16-bit length-prefixed NAL units from data.
func readParamSets(data []byte, offset, count int) ([][]byte, int, error) {
	sets := make([][]byte, 0, count)
	for i := 0; i < count; i++ {
		if offset+2 > len(data) {
			return nil, offset, ErrInvalidExtraData
		}
		length := int(data[offset])<<8 | int(data[offset+1])
		offset += 2
		if offset+length > len(data) {
			return nil, offset, ErrInvalidExtraData
		}
		sets = append(sets, append([]byte(nil), data[offset:offset+length]...))
		offset += length
	}
	return sets, offset, nil
}

func (c *annexBConverter) Convert(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	lengthSize := c.lengthSize
	if lengthSize == 0 {
		// Some muxers drop the configuration record but keep length
		// prefixes; those packets are rewritten with 4-byte lengths.
		if isAnnexBStartCode(data) || !isAVCCFormat(data) {
			c.out = data
			for _, nalu := range parseAnnexBNALUnits(data) {
				if c.isKeyframeNAL(nalu) {
					c.keyframe = true
					break
				}
			}
			return true
		}
		lengthSize = 4
	}

	out := c.buf[:0]
	if cap(out) < len(data)+64 {
		out = make([]byte, 0, len(data)+64)
	}
	sawParamSets := false
	insertedParamSets := false

	for offset := 0; offset < len(data); {
		if offset+lengthSize > len(data) {
			return false
		}
		length := 0
		for i := 0; i < lengthSize; i++ {
			length = length<<8 | int(data[offset+i])
		}
		offset += lengthSize
		if length == 0 {
			continue
		}
		if offset+length > len(data) {
			return false
		}
		nalu := data[offset : offset+length]
		offset += length

		if c.isParamSetNAL(nalu) {
			sawParamSets = true
		}
		if c.isKeyframeNAL(nalu) {
			if !sawParamSets && !insertedParamSets {
				for _, ps := range c.paramSets {
					out = append(out, annexBStartCode...)
					out = append(out, ps...)
				}
				insertedParamSets = true
			}
			c.keyframe = true
		}
		out = append(out, annexBStartCode...)
		out = append(out, nalu...)
	}

	c.buf = out
	c.out = out
	return true
}

func (c *annexBConverter) isKeyframeNAL(nalu []byte) bool {
	if c.codec == CodecHEVC {
		return isHEVCKeyframe(hevcNALType(nalu))
	}
	return h264NALType(nalu) == nalTypeIDR
}

func (c *annexBConverter) isParamSetNAL(nalu []byte) bool {
	if c.codec == CodecHEVC {
		t := hevcNALType(nalu)
		return t == hevcNALVPS || t == hevcNALSPS || t == hevcNALPPS
	}
	t := h264NALType(nalu)
	return t == nalTypeSPS || t == nalTypePPS
}

func (c *annexBConverter) ConvertedBuffer() []byte { return c.out }

func (c *annexBConverter) HasKeyframe() bool { return c.keyframe }

func (c *annexBConverter) ResetKeyframe() { c.keyframe = false }

func (c *annexBConverter) ExtraData() []byte { return c.extra }
