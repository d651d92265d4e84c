package amcodec

import "math"

// NoPTS marks a missing timestamp. It compares below every real timestamp.
const NoPTS = -math.MaxFloat64

// TimeBase is the number of timestamp units per second (microseconds).
const TimeBase = 1000000.0

// StreamHints describes an opened video stream as reported by the demuxer.
// The Decoder keeps a private copy and updates it when sequence headers
// change mid-stream.
type StreamHints struct {
	Codec   CodecID
	Profile int

	Width  int
	Height int
	Aspect float64 // Display aspect ratio, 0 when not signaled

	FPSRate  int
	FPSScale int

	ExtraData []byte // Out-of-band codec configuration (avcC, hvcC, ...)

	ForcedAspect bool // Keep display size at intrinsic size
	PTSInvalid   bool // Stream timestamps cannot be trusted
	Stills       bool // Still-image stream (menus, cover art)
}

// Clone returns a copy that does not share ExtraData.
func (h StreamHints) Clone() StreamHints {
	c := h
	if h.ExtraData != nil {
		c.ExtraData = make([]byte, len(h.ExtraData))
		copy(c.ExtraData, h.ExtraData)
	}
	return c
}

// FPS returns FPSRate/FPSScale, or 0 when no rate is known.
func (h StreamHints) FPS() float64 {
	if h.FPSRate <= 0 || h.FPSScale == 0 {
		return 0
	}
	return float64(h.FPSRate) / float64(h.FPSScale)
}
