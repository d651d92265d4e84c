package amcodec

import (
	"sync"
	"sync/atomic"
)

// PictureHandle ties one decoded picture to the hardware buffer it occupies.
// It is handed to the renderer and may outlive the Decoder that minted it:
// once the decoder is disposed the handle stays valid for Retain/Release but
// Session returns nil.
//
// Retain and Release are safe from any goroutine. Each Retain (including the
// one made on behalf of the GetPicture caller) must be paired with exactly
// one Release.
type PictureHandle struct {
	refs atomic.Int32

	// Guards the back references only. Never held together with the
	// decoder's inflight lock.
	mu      sync.Mutex
	decoder *Decoder
	session Session

	pts         int
	duration    int
	bufferIndex uint32
}

func newPictureHandle(d *Decoder, s Session, pts, duration int, bufferIndex uint32) *PictureHandle {
	return &PictureHandle{
		decoder:     d,
		session:     s,
		pts:         pts,
		duration:    duration,
		bufferIndex: bufferIndex,
	}
}

// Retain adds a reference and returns h, so a handle can be passed on in a
// single expression.
func (h *PictureHandle) Retain() *PictureHandle {
	h.refs.Add(1)
	return h
}

// Release drops a reference and returns the remaining count. The last
// release removes the handle from its decoder's inflight set, if the decoder
// has not been disposed in the meantime.
func (h *PictureHandle) Release() int32 {
	n := h.refs.Add(-1)
	if n < 0 {
		panic("amcodec: PictureHandle released more times than retained")
	}
	if n == 0 {
		h.mu.Lock()
		d := h.decoder
		h.decoder = nil
		h.session = nil
		h.mu.Unlock()

		if d != nil {
			d.removeInfo(h)
		}
	}
	return n
}

// Refs returns the current reference count.
func (h *PictureHandle) Refs() int32 {
	return h.refs.Load()
}

// Session returns the hardware session that produced the picture, or nil
// once the owning decoder has been disposed or the handle fully released.
// Callers must treat nil as "buffer no longer available".
func (h *PictureHandle) Session() Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.session
}

// Valid reports whether the handle still grants access to its session.
func (h *PictureHandle) Valid() bool {
	return h.Session() != nil
}

// PTS returns the hardware presentation clock captured at mint (90 kHz).
func (h *PictureHandle) PTS() int { return h.pts }

// Duration returns the picture duration captured at mint (90 kHz).
func (h *PictureHandle) Duration() int { return h.duration }

// BufferIndex returns the hardware buffer slot captured at mint.
func (h *PictureHandle) BufferIndex() uint32 { return h.bufferIndex }

// invalidate clears the back references. Called by Decoder.Dispose only.
func (h *PictureHandle) invalidate() {
	h.mu.Lock()
	h.decoder = nil
	h.session = nil
	h.mu.Unlock()
}
