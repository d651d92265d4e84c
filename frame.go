// Core picture and packet types used across the amcodec package.
package amcodec

import "math"

// RenderFormat tags how a decoded picture is presented to the renderer.
type RenderFormat int

const (
	FormatNone RenderFormat = iota
	FormatAML               // Picture lives in the hardware video layer
)

func (f RenderFormat) String() string {
	switch f {
	case FormatAML:
		return "AML"
	default:
		return "None"
	}
}

// PictureFlags is a bitmask of DecodedPicture state.
type PictureFlags uint32

const (
	FlagAllocated PictureFlags = 1 << iota // Picture template is live
	FlagDropped                            // Renderer may skip this picture
)

// Has returns true if all specified flags are set.
func (f PictureFlags) Has(flag PictureFlags) bool { return f&flag == flag }

// DecodedPicture describes one picture produced by the hardware decoder.
// The pixels never leave the video layer; Handle ties the picture to the
// hardware buffer it occupies.
type DecodedPicture struct {
	DTS float64 // Decode timestamp in microseconds (NoPTS if unknown)
	PTS float64 // Presentation timestamp in microseconds (NoPTS if unknown)

	Width         int // Intrinsic width in pixels
	Height        int // Intrinsic height in pixels
	DisplayWidth  int // Width after aspect correction
	DisplayHeight int // Height after aspect correction

	Format      RenderFormat
	ColorRange  int
	ColorMatrix int
	Flags       PictureFlags

	// Handle is retained on behalf of the receiver of GetPicture, who must
	// release it exactly once (ClearPicture does that).
	Handle *PictureHandle
}

// displaySize applies aspect to an intrinsic size. The width is derived from
// the height and rounded down to a multiple of 4; if that overflows the
// intrinsic width the width is kept and the height is derived instead.
func displaySize(width, height int, aspect float64) (int, int) {
	dw := int(math.RoundToEven(float64(height)*aspect)) &^ 3
	dh := height
	if dw > width {
		dw = width
		dh = int(math.RoundToEven(float64(width)/aspect)) &^ 3
	}
	return dw, dh
}

// FrameType indicates whether a compressed packet is a keyframe or delta frame.
type FrameType int

const (
	FrameTypeUnknown FrameType = iota
	FrameTypeKey               // IDR/IRAP, decodable on its own
	FrameTypeDelta             // Requires previous frames
)

func (f FrameType) String() string {
	switch f {
	case FrameTypeKey:
		return "Key"
	case FrameTypeDelta:
		return "Delta"
	default:
		return "Unknown"
	}
}

// Packet is one compressed access unit ready for Decode.
type Packet struct {
	Data      []byte
	DTS       float64
	PTS       float64
	FrameType FrameType
}

// Clone creates a deep copy of the packet.
func (p *Packet) Clone() *Packet {
	clone := &Packet{
		DTS:       p.DTS,
		PTS:       p.PTS,
		FrameType: p.FrameType,
	}
	if p.Data != nil {
		clone.Data = make([]byte, len(p.Data))
		copy(clone.Data, p.Data)
	}
	return clone
}
