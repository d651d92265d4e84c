package amcodec

// Session is a vendor hardware decoder session. Only the Decoder that owns a
// session drives it; picture handles reach it through PictureHandle.Session.
type Session interface {
	// OpenDecoder configures the hardware for the stream described by hints.
	OpenDecoder(hints StreamHints) error

	// CloseDecoder stops decoding and frees hardware resources.
	CloseDecoder() error

	// Decode submits one packet. data may be nil to poll for output.
	Decode(data []byte, dts, pts float64) Status

	// GetPicture fills pic with the latest decoded picture state.
	GetPicture(pic *DecodedPicture) bool

	// Reset flushes queued input and output (seek).
	Reset()

	// SetSpeed changes trick-play speed (PlaySpeedNormal is 1x).
	SetSpeed(speed int)

	// SetDrain toggles drain-on-flush.
	SetDrain(drain bool)

	// OMXPts returns the presentation clock of the last picture in 90 kHz units.
	OMXPts() int

	// Duration returns the duration of the last picture in 90 kHz units.
	Duration() int

	// BufferIndex returns the hardware buffer slot of the last picture.
	BufferIndex() uint32
}

// SessionFactory creates an unopened hardware session.
type SessionFactory func() (Session, error)
