package amcodec

import (
	"fmt"
	"io"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"
)

// DecoderState is the lifecycle position of a Decoder.
type DecoderState int32

const (
	StateClosed   DecoderState = iota // Created, not opened
	StateOpened                       // Capabilities validated, session not yet opened
	StateDecoding                     // Session opened by the first accepted packet
	StateDisposed                     // Torn down, terminal
)

func (s DecoderState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpened:
		return "opened"
	case StateDecoding:
		return "decoding"
	case StateDisposed:
		return "disposed"
	default:
		return "unknown"
	}
}

// ProcessInfo receives stream properties for display in player overlays.
type ProcessInfo interface {
	SetVideoDecoderName(name string, hardware bool)
	SetVideoDimensions(width, height int)
	SetVideoDeintMethod(method string)
	SetVideoDAR(aspect float64)
	SetVideoFPS(fps float64)
}

type nopProcessInfo struct{}

func (nopProcessInfo) SetVideoDecoderName(string, bool) {}
func (nopProcessInfo) SetVideoDimensions(int, int)      {}
func (nopProcessInfo) SetVideoDeintMethod(string)       {}
func (nopProcessInfo) SetVideoDAR(float64)              {}
func (nopProcessInfo) SetVideoFPS(float64)              {}

// Options are per-stream decode options passed to Open.
//
//	initial_speed  int   speed applied once the session opens (PlaySpeedNormal = 1x)
//	drain          bool  enable drain-on-flush once the session opens
type Options map[string]any

type openOptions struct {
	InitialSpeed int  `mapstructure:"initial_speed"`
	Drain        bool `mapstructure:"drain"`
}

// Config configures a Decoder. Every field is optional.
type Config struct {
	Settings     *Settings
	Capabilities Capabilities
	NewSession   SessionFactory
	NewConverter ConverterFactory
	NewParser    ParserFactory
	ProcessInfo  ProcessInfo
	Metrics      *Metrics
	Logger       logrus.FieldLogger
}

// Aspect defaults for H.264 streams that signal none. The in-band SPS
// overrides them once seen.
const (
	aspectSDPAL  = 1.8181818181818181
	aspectHDLite = 1.7777777777777778
)

// Largest frame decodable without the 4K capability.
const (
	maxWidth2K  = 1920
	maxHeight2K = 1088
)

// Decoder drives one Amlogic hardware decode session for one stream.
//
// Decoder is owned by a single decode goroutine. The PictureHandles it hands
// out may be retained and released from any goroutine, including after the
// Decoder has been disposed.
type Decoder struct {
	id       uuid.UUID
	log      logrus.FieldLogger
	settings Settings
	caps     Capabilities
	metrics  *Metrics
	procInfo ProcessInfo

	newSession   SessionFactory
	newConverter ConverterFactory
	newParser    ParserFactory

	state atomic.Int32

	hints      StreamHints
	opts       openOptions
	formatName string
	session    Session

	tracker   sequenceTracker
	converter BitstreamConverter
	parser    KeyframeParser

	aspect      float64
	framerate   float64
	videoRate   int
	drop        bool
	hasKeyframe bool

	template DecodedPicture
	inflight *inflightSet
}

// NewDecoder returns a closed decoder.
func NewDecoder(cfg Config) *Decoder {
	settings := DefaultSettings()
	if cfg.Settings != nil {
		settings = *cfg.Settings
	}

	d := &Decoder{
		id:           uuid.New(),
		settings:     settings,
		caps:         cfg.Capabilities,
		metrics:      cfg.Metrics,
		procInfo:     cfg.ProcessInfo,
		newSession:   cfg.NewSession,
		newConverter: cfg.NewConverter,
		newParser:    cfg.NewParser,
		formatName:   FormatNameDefault,
		inflight:     newInflightSet(),
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	d.log = logger.WithFields(logrus.Fields{
		"module":  "amcodec",
		"session": d.id.String(),
	})

	if d.caps == nil {
		d.caps = NewSysfsCapabilities(settings.SysfsRoot)
	}
	if d.procInfo == nil {
		d.procInfo = nopProcessInfo{}
	}
	if d.newSession == nil {
		libPath := settings.LibraryPath
		d.newSession = func() (Session, error) {
			s, err := NewHardwareSession(libPath)
			if err != nil {
				return nil, err
			}
			return s, nil
		}
	}
	if d.newConverter == nil {
		d.newConverter = NewBitstreamConverter
	}
	if d.newParser == nil {
		d.newParser = NewKeyframeParser
	}
	return d
}

// ID returns the decoder's session id, as logged.
func (d *Decoder) ID() uuid.UUID { return d.id }

// State returns the lifecycle state. Safe from any goroutine.
func (d *Decoder) State() DecoderState { return DecoderState(d.state.Load()) }

// FormatName returns the vendor format tag chosen at Open.
func (d *Decoder) FormatName() string { return d.formatName }

// Hints returns a copy of the current stream hints, including updates from
// in-band sequence headers.
func (d *Decoder) Hints() StreamHints { return d.hints.Clone() }

// Aspect returns the aspect ratio applied to the last picture.
func (d *Decoder) Aspect() float64 { return d.aspect }

// FrameRate returns the frame rate from the last MPEG-2 sequence header, or
// 0 before one is seen.
func (d *Decoder) FrameRate() float64 { return d.framerate }

// VideoRate returns the frame duration in 96 kHz ticks derived from
// FrameRate, or 0 before a sequence header is seen.
func (d *Decoder) VideoRate() int { return d.videoRate }

// Inflight returns the number of handles minted and not yet released.
func (d *Decoder) Inflight() int { return d.inflight.len() }

// Open validates that the stream can be decoded in hardware and prepares
// the decoder. The hardware session is created here but opened lazily by
// the first accepted packet. Errors caused by the platform or stream wrap
// ErrCapability and leave no session behind. Malformed opts fail with
// ErrInvalidOptions, a usage error that does not wrap ErrCapability.
func (d *Decoder) Open(hints StreamHints, opts Options) (err error) {
	switch d.State() {
	case StateClosed:
	case StateDisposed:
		return ErrDisposed
	default:
		return ErrAlreadyOpen
	}
	defer func() { d.metrics.incOpen(hints.Codec, err) }()

	if !d.settings.UseAMCodec {
		return ErrDisabled
	}
	if hints.Stills {
		return ErrStills
	}
	if !d.caps.Permitted() {
		d.log.Error("no proper permission on amlogic devices, please contact the device vendor")
		return ErrPermission
	}

	var o openOptions
	if err := mapstructure.Decode(map[string]any(opts), &o); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}

	h := hints.Clone()
	var (
		tracker   sequenceTracker
		converter BitstreamConverter
		parser    KeyframeParser
	)

	switch h.Codec {
	case CodecMPEG1, CodecMPEG2, CodecMPEG2XvMC:
		if h.Width <= d.settings.MinWidthMPEG2 {
			return fmt.Errorf("%w: %s width %d <= %d", ErrResolution, h.Codec, h.Width, d.settings.MinWidthMPEG2)
		}
		tracker = newMPEG2Tracker(h)

	case CodecH264:
		if h.Width <= d.settings.MinWidthH264 {
			return fmt.Errorf("%w: %s width %d <= %d", ErrResolution, h.Codec, h.Width, d.settings.MinWidthH264)
		}
		if h264ProfileUnsupported(h.Profile) {
			return fmt.Errorf("%w: h264 profile %d", ErrUnsupportedProfile, h.Profile)
		}
		if (h.Width > maxWidth2K || h.Height > maxHeight2K) && !d.caps.Supports(CapH2644K2K) {
			return fmt.Errorf("%w: h264 %dx%d needs 4k2k support", ErrResolution, h.Width, h.Height)
		}

		signaled := h.Aspect != 0
		if len(h.ExtraData) > 0 && h.ExtraData[0] == 1 {
			c, err := d.newConverter(h.Codec, h.ExtraData)
			if err != nil {
				return fmt.Errorf("%w: bitstream converter: %w", ErrCapability, err)
			}
			c.ResetKeyframe()
			h.ExtraData = append([]byte(nil), c.ExtraData()...)
			converter = c
		} else {
			parser = d.newParser(h.Codec)
		}

		if h.Aspect == 0 {
			switch {
			case h.Width == 720 && h.Height == 576:
				h.Aspect = aspectSDPAL
			case (h.Width == 1440 || h.Width == 1280) && h.Height == 1080:
				h.Aspect = aspectHDLite
			}
		}
		if !signaled {
			tracker = newH264Tracker(h)
		}

	case CodecMPEG4, CodecMSMPEG4V2, CodecMSMPEG4V3:
		if h.Width <= d.settings.MinWidthMPEG4 {
			return fmt.Errorf("%w: %s width %d <= %d", ErrResolution, h.Codec, h.Width, d.settings.MinWidthMPEG4)
		}

	case CodecH263, CodecH263P, CodecH263I, CodecRV10, CodecRV20, CodecRV30, CodecRV40:
		return fmt.Errorf("%w: %s", ErrUnsupportedCodec, h.Codec)

	case CodecMJPEG, CodecVC1, CodecWMV3, CodecAVS, CodecCAVS:
		// No stream constraints.

	case CodecVP9:
		if !d.caps.Supports(CapVP9) {
			return fmt.Errorf("%w: vp9", ErrUnsupportedCodec)
		}

	case CodecHEVC:
		if !d.caps.Supports(CapHEVC) {
			return fmt.Errorf("%w: hevc", ErrUnsupportedCodec)
		}
		if (h.Width > maxWidth2K || h.Height > maxHeight2K) && !d.caps.Supports(CapHEVC4K2K) {
			return fmt.Errorf("%w: hevc %dx%d needs 4k2k support", ErrResolution, h.Width, h.Height)
		}
		if h.Profile == ProfileHEVCMain10 && !d.caps.Supports(CapHEVC10Bit) {
			return fmt.Errorf("%w: hevc main10", ErrUnsupportedProfile)
		}
		c, err := d.newConverter(h.Codec, h.ExtraData)
		if err != nil {
			return fmt.Errorf("%w: bitstream converter: %w", ErrCapability, err)
		}
		h.ExtraData = append([]byte(nil), c.ExtraData()...)
		converter = c

	default:
		d.log.WithField("codec", int(h.Codec)).Debug("unknown codec")
		return fmt.Errorf("%w: %s", ErrUnsupportedCodec, h.Codec)
	}

	format := formatFor(h.Codec)
	session, err := d.newSession()
	if err != nil {
		d.log.WithError(err).Error("failed to create amlogic codec")
		return fmt.Errorf("%w: %w", ErrSessionCreate, err)
	}

	d.hints = h
	d.opts = o
	d.formatName = format
	d.tracker = tracker
	d.converter = converter
	d.parser = parser
	d.session = session
	d.aspect = h.Aspect
	d.hasKeyframe = false

	d.template = DecodedPicture{
		DTS:           NoPTS,
		PTS:           NoPTS,
		Width:         h.Width,
		Height:        h.Height,
		DisplayWidth:  h.Width,
		DisplayHeight: h.Height,
		Format:        FormatAML,
		ColorRange:    0,
		ColorMatrix:   4,
		Flags:         FlagAllocated,
	}
	if h.Aspect > 0 && !h.ForcedAspect {
		d.template.DisplayWidth, d.template.DisplayHeight = displaySize(h.Width, h.Height, h.Aspect)
	}

	d.procInfo.SetVideoDecoderName(format, true)
	d.procInfo.SetVideoDimensions(h.Width, h.Height)
	d.procInfo.SetVideoDeintMethod("hardware")
	d.procInfo.SetVideoDAR(h.Aspect)

	d.state.Store(int32(StateOpened))
	d.log.WithFields(logrus.Fields{
		"format": format,
		"width":  h.Width,
		"height": h.Height,
		"aspect": h.Aspect,
	}).Info("opened amlogic codec")
	return nil
}

// Decode submits one packet and returns the session status. Every packet is
// accepted: packets that arrive before the first keyframe are reported as
// StatusBuffer and never reach the hardware. A nil data polls the session.
func (d *Decoder) Decode(data []byte, dts, pts float64) Status {
	if d.session == nil {
		return StatusError
	}

	if data != nil {
		d.metrics.incPackets()

		if d.converter != nil {
			if !d.converter.Convert(data) {
				d.metrics.incErrors()
				return StatusError
			}
			if !d.converter.HasKeyframe() {
				d.log.Debug("decode waiting for keyframe (bitstream)")
				d.metrics.incBuffered()
				return StatusBuffer
			}
			data = d.converter.ConvertedBuffer()
		} else if d.parser != nil && !d.hasKeyframe {
			if !d.parser.HasKeyframe(data) {
				d.log.Debug("decode waiting for keyframe (parser)")
				d.metrics.incBuffered()
				return StatusBuffer
			}
			d.hasKeyframe = true
		}

		d.trackSequence(data, dts, pts)

		if d.State() == StateOpened {
			d.openSession(pts)
		}
	}

	if d.hints.PTSInvalid {
		pts = NoPTS
	}

	status := d.session.Decode(data, dts, pts)
	if status.Has(StatusError) {
		d.metrics.incErrors()
	}
	return status
}

// openSession opens the hardware with the current hints. A failure is
// logged only; the session reports it through Decode status.
func (d *Decoder) openSession(pts float64) {
	if pts == NoPTS {
		d.hints.PTSInvalid = true
	}
	if err := d.session.OpenDecoder(d.hints); err != nil {
		d.log.WithError(err).Error("failed to open amlogic codec")
	} else {
		if d.opts.InitialSpeed != 0 {
			d.session.SetSpeed(d.opts.InitialSpeed)
		}
		if d.opts.Drain {
			d.session.SetDrain(true)
		}
	}
	d.state.Store(int32(StateDecoding))
}

// trackSequence probes the packet for in-band sequence headers. Frame rate
// changes apply at once; aspect changes wait for GetPicture to reach the
// snapshot's effective pts.
func (d *Decoder) trackSequence(data []byte, dts, pts float64) {
	switch t := d.tracker.(type) {
	case *mpeg2Tracker:
		if !t.probe(data, dts, pts) {
			return
		}
		seq := t.snapshot()
		d.framerate = seq.Rate
		d.videoRate = int(0.5 + 96000.0/d.framerate)
		d.procInfo.SetVideoFPS(d.framerate)

		d.hints.FPSRate, d.hints.FPSScale = mpeg2FrameRate(seq.RateCode)
		d.hints.Width = seq.Width
		d.hints.Height = seq.Height
		d.hints.Aspect = seq.Aspect
		d.metrics.incSequenceChange("mpeg2")

	case *h264Tracker:
		if !t.probe(data, dts, pts) {
			return
		}
		seq := t.snapshot()
		d.log.WithField("aspect", seq.Aspect).Debug("detected h264 aspect ratio")
		d.hints.Width = seq.Width
		d.hints.Height = seq.Height
		d.hints.Aspect = seq.Aspect
		d.metrics.incSequenceChange("h264")
	}
}

// GetPicture copies the latest decoded picture into out and attaches a
// retained handle, which the caller must release exactly once. It returns
// false when no session exists.
func (d *Decoder) GetPicture(out *DecodedPicture) bool {
	if d.session == nil {
		return false
	}

	d.session.GetPicture(&d.template)
	*out = d.template

	h := newPictureHandle(d, d.session, d.session.OMXPts(), d.session.Duration(), d.session.BufferIndex())
	if !d.inflight.add(h) {
		out.Handle = nil
		return false
	}
	d.metrics.addInflight(1)
	out.Handle = h.Retain()

	if d.tracker != nil {
		if seq := d.tracker.snapshot(); out.PTS >= seq.EffectivePTS {
			d.aspect = seq.Aspect
		}
	}

	out.DisplayWidth = out.Width
	out.DisplayHeight = out.Height
	if d.aspect > 1.0 && !d.hints.ForcedAspect {
		out.DisplayWidth, out.DisplayHeight = displaySize(out.Width, out.Height, d.aspect)
	}

	d.metrics.incPictures()
	return true
}

// ClearPicture releases the handle attached by GetPicture.
func (d *Decoder) ClearPicture(pic *DecodedPicture) {
	if pic == nil || pic.Handle == nil {
		return
	}
	pic.Handle.Release()
	pic.Handle = nil
}

// Reset flushes the session for a seek and rearms keyframe gating.
func (d *Decoder) Reset() {
	if d.session == nil {
		return
	}
	d.session.Reset()
	if d.tracker != nil {
		d.tracker.reset()
	}
	d.hasKeyframe = false
	if d.converter != nil && d.hints.Codec == CodecH264 {
		d.converter.ResetKeyframe()
	}
}

// SetDropState marks subsequent pictures as droppable. It does not touch the
// hardware.
func (d *Decoder) SetDropState(drop bool) {
	if drop == d.drop {
		return
	}
	d.drop = drop
	if drop {
		d.template.Flags |= FlagDropped
	} else {
		d.template.Flags &^= FlagDropped
	}
}

// SetCodecControl forwards CodecCtrl flags to the session.
func (d *Decoder) SetCodecControl(flags int) {
	if d.session != nil {
		d.session.SetDrain(flags&CodecCtrlDrain != 0)
	}
}

// SetSpeed sets trick-play speed (PlaySpeedNormal is 1x).
func (d *Decoder) SetSpeed(speed int) {
	if d.session != nil {
		d.session.SetSpeed(speed)
	}
}

// Dispose tears the decoder down. See Close.
func (d *Decoder) Dispose() {
	if err := d.Close(); err != nil {
		d.log.WithError(err).Warn("dispose")
	}
}

// Close invalidates every outstanding PictureHandle, closes the hardware
// session and drops per-stream state. Handles already given to a renderer
// stay safe to Retain and Release but their Session returns nil. Close is
// idempotent.
func (d *Decoder) Close() error {
	if d.State() == StateDisposed {
		return nil
	}

	handles := d.inflight.close()
	for _, h := range handles {
		h.invalidate()
	}
	d.metrics.addInflight(-len(handles))
	d.metrics.addInvalidated(len(handles))

	var result *multierror.Error
	if d.session != nil {
		if err := d.session.CloseDecoder(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close decoder: %w", err))
		}
		if c, ok := d.session.(io.Closer); ok {
			if err := c.Close(); err != nil {
				result = multierror.Append(result, fmt.Errorf("destroy session: %w", err))
			}
		}
		d.session = nil
	}

	d.template.Flags = 0
	d.tracker = nil
	d.converter = nil
	d.parser = nil
	d.state.Store(int32(StateDisposed))

	if len(handles) > 0 {
		d.log.WithField("handles", len(handles)).Debug("invalidated inflight handles")
	}
	return result.ErrorOrNil()
}

// removeInfo is called by a handle whose count reached zero.
func (d *Decoder) removeInfo(h *PictureHandle) {
	if d.inflight.remove(h) {
		d.metrics.addInflight(-1)
	}
}
