//go:build !darwin && !linux

package amcodec

// IsHardwareAvailable reports false on platforms without dlopen support.
func IsHardwareAvailable() bool { return false }

// HardwareSession is unavailable on this platform.
type HardwareSession struct{}

// NewHardwareSession always fails on this platform.
func NewHardwareSession(string) (*HardwareSession, error) {
	return nil, ErrLibraryNotFound
}

func (*HardwareSession) OpenDecoder(StreamHints) error          { return ErrSessionNotOpened }
func (*HardwareSession) CloseDecoder() error                    { return nil }
func (*HardwareSession) Decode([]byte, float64, float64) Status { return StatusError }
func (*HardwareSession) GetPicture(*DecodedPicture) bool        { return false }
func (*HardwareSession) Reset()                                 {}
func (*HardwareSession) SetSpeed(int)                           {}
func (*HardwareSession) SetDrain(bool)                          {}
func (*HardwareSession) OMXPts() int                            { return 0 }
func (*HardwareSession) Duration() int                          { return 0 }
func (*HardwareSession) BufferIndex() uint32                    { return 0 }
func (*HardwareSession) Close() error                           { return nil }
