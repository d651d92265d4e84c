package amcodec

import (
	"errors"
	"fmt"
)

// ErrCapability is wrapped by every Open failure caused by the platform or
// the stream. Callers should fall back to another decoder path.
var ErrCapability = errors.New("amcodec: capability")

// Open failures.
var (
	ErrDisabled           = fmt.Errorf("%w: disabled by settings", ErrCapability)
	ErrStills             = fmt.Errorf("%w: still-image stream", ErrCapability)
	ErrPermission         = fmt.Errorf("%w: no permission on amlogic devices", ErrCapability)
	ErrUnsupportedCodec   = fmt.Errorf("%w: codec not supported", ErrCapability)
	ErrUnsupportedProfile = fmt.Errorf("%w: profile not supported", ErrCapability)
	ErrResolution         = fmt.Errorf("%w: resolution not supported", ErrCapability)
	ErrSessionCreate      = fmt.Errorf("%w: failed to create hardware session", ErrCapability)
)

// Usage and lifecycle errors. These do not wrap ErrCapability; they point at
// a caller bug rather than a stream to hand to another decoder.
var (
	ErrInvalidOptions = errors.New("amcodec: invalid open options")
	ErrAlreadyOpen    = errors.New("amcodec: decoder already opened")
	ErrDisposed       = errors.New("amcodec: decoder disposed")
)

// Native library errors.
var (
	ErrLibraryNotFound  = errors.New("amcodec: libmedia_amcodec not found")
	ErrHardwareMissing  = errors.New("amcodec: hardware decoder not available")
	ErrSessionNotOpened = errors.New("amcodec: session not opened")
)

// IsCapabilityError reports whether err means the stream cannot be decoded
// in hardware on this device.
func IsCapabilityError(err error) bool {
	return errors.Is(err, ErrCapability)
}
