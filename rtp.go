package amcodec

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/pion/rtp"
)

// H.264 RTP payload types (RFC 6184 5.2).
const (
	rtpH264STAPA = 24
	rtpH264FUA   = 28
)

// rtpVideoClockRate is the RTP clock for video payloads.
const rtpVideoClockRate = 90000

var errFUATooShort = errors.New("amcodec: FU-A packet too short")

// RTPReader yields RTP packets, e.g. from a WebRTC remote track.
type RTPReader interface {
	ReadRTP(ctx context.Context) (*rtp.Packet, error)
}

// RTPReaderFunc adapts a function to RTPReader.
type RTPReaderFunc func(ctx context.Context) (*rtp.Packet, error)

func (f RTPReaderFunc) ReadRTP(ctx context.Context) (*rtp.Packet, error) { return f(ctx) }

// H264Depacketizer reassembles H.264 access units from RTP packets into
// Annex-B packets with microsecond timestamps.
type H264Depacketizer struct {
	frameData   []byte    // Accumulated Annex-B data for the current access unit
	fuaBuffer   []byte    // NAL unit being assembled from FU-A fragments
	fragmenting bool      // True in the middle of an FU-A sequence
	timestamp   uint32    // RTP timestamp of the current access unit
	started     bool      // A packet has been seen
	frameType   FrameType // Key if the access unit holds an IDR slice

	clock timestampUnwrapper
	mu    sync.Mutex
}

// NewH264Depacketizer creates a new H.264 RTP depacketizer.
func NewH264Depacketizer() *H264Depacketizer {
	return &H264Depacketizer{}
}

// Depacketize processes one RTP packet and returns a complete access unit
// when the marker bit closes it, or nil.
func (d *H264Depacketizer) Depacketize(pkt *rtp.Packet) (*Packet, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(pkt.Payload) == 0 {
		return nil, nil
	}

	// A new timestamp without a marker on the previous one means loss.
	if d.started && d.timestamp != pkt.Timestamp {
		d.reset()
	}
	d.timestamp = pkt.Timestamp
	d.started = true

	nalType := pkt.Payload[0] & 0x1F
	switch {
	case nalType >= 1 && nalType <= 23:
		d.markNAL(nalType)
		d.frameData = append(d.frameData, annexBStartCode...)
		d.frameData = append(d.frameData, pkt.Payload...)

	case nalType == rtpH264STAPA:
		d.depacketizeSTAPA(pkt.Payload)

	case nalType == rtpH264FUA:
		if err := d.depacketizeFUA(pkt.Payload); err != nil {
			return nil, err
		}

	default:
		return nil, fmt.Errorf("amcodec: unsupported NAL type %d", nalType)
	}

	if !pkt.Marker || len(d.frameData) == 0 {
		return nil, nil
	}

	ts := d.clock.unwrap(d.timestamp)
	out := &Packet{
		Data:      append([]byte(nil), d.frameData...),
		DTS:       NoPTS,
		PTS:       float64(ts) * TimeBase / rtpVideoClockRate,
		FrameType: d.frameType,
	}
	d.reset()
	return out, nil
}

func (d *H264Depacketizer) markNAL(nalType byte) {
	if nalType == nalTypeIDR {
		d.frameType = FrameTypeKey
	} else if d.frameType != FrameTypeKey {
		d.frameType = FrameTypeDelta
	}
}

func (d *H264Depacketizer) depacketizeSTAPA(payload []byte) {
	for offset := 1; offset+2 <= len(payload); {
		size := int(binary.BigEndian.Uint16(payload[offset:]))
		offset += 2
		if size == 0 || offset+size > len(payload) {
			return
		}
		d.markNAL(payload[offset] & 0x1F)
		d.frameData = append(d.frameData, annexBStartCode...)
		d.frameData = append(d.frameData, payload[offset:offset+size]...)
		offset += size
	}
}

func (d *H264Depacketizer) depacketizeFUA(payload []byte) error {
	if len(payload) < 2 {
		return errFUATooShort
	}

	indicator, header := payload[0], payload[1]
	isStart := header&0x80 != 0
	isEnd := header&0x40 != 0
	nalType := header & 0x1F

	if isStart {
		d.markNAL(nalType)
		d.fuaBuffer = append(d.fuaBuffer[:0], indicator&0xE0|nalType)
		d.fragmenting = true
	}
	if !d.fragmenting {
		return nil
	}

	d.fuaBuffer = append(d.fuaBuffer, payload[2:]...)
	if isEnd {
		d.frameData = append(d.frameData, annexBStartCode...)
		d.frameData = append(d.frameData, d.fuaBuffer...)
		d.fuaBuffer = d.fuaBuffer[:0]
		d.fragmenting = false
	}
	return nil
}

func (d *H264Depacketizer) reset() {
	d.frameData = d.frameData[:0]
	d.fuaBuffer = d.fuaBuffer[:0]
	d.fragmenting = false
	d.frameType = FrameTypeUnknown
}

// DepacketizeBytes processes raw RTP packet bytes.
func (d *H264Depacketizer) DepacketizeBytes(data []byte) (*Packet, error) {
	var pkt rtp.Packet
	if err := pkt.Unmarshal(data); err != nil {
		return nil, err
	}
	return d.Depacketize(&pkt)
}

// Reset clears buffered partial access units and the timestamp origin.
func (d *H264Depacketizer) Reset() {
	d.mu.Lock()
	d.reset()
	d.started = false
	d.timestamp = 0
	d.clock = timestampUnwrapper{}
	d.mu.Unlock()
}

// timestampUnwrapper extends 32-bit RTP timestamps to 64 bits relative to
// the first timestamp seen.
type timestampUnwrapper struct {
	started bool
	last    uint32
	value   int64
}

func (u *timestampUnwrapper) unwrap(ts uint32) int64 {
	if !u.started {
		u.started = true
		u.last = ts
		return 0
	}
	u.value += int64(int32(ts - u.last))
	u.last = ts
	return u.value
}

// RTPPacketSource is a PacketSource over an RTP H.264 stream.
type RTPPacketSource struct {
	reader       RTPReader
	depacketizer *H264Depacketizer
}

// NewRTPPacketSource reads RTP packets from r.
func NewRTPPacketSource(r RTPReader) *RTPPacketSource {
	return &RTPPacketSource{
		reader:       r,
		depacketizer: NewH264Depacketizer(),
	}
}

// ReadPacket returns the next complete access unit. Malformed RTP payloads
// are skipped.
func (s *RTPPacketSource) ReadPacket(ctx context.Context) (*Packet, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pkt, err := s.reader.ReadRTP(ctx)
		if err != nil {
			return nil, err
		}
		out, err := s.depacketizer.Depacketize(pkt)
		if err != nil {
			continue
		}
		if out != nil {
			return out, nil
		}
	}
}

// Reset drops partial access units, e.g. after a seek or track switch.
func (s *RTPPacketSource) Reset() {
	s.depacketizer.Reset()
}
