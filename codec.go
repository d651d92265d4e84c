package amcodec

// CodecID identifies the compressed video format of a stream.
type CodecID int

const (
	CodecUnknown CodecID = iota
	CodecMJPEG
	CodecMPEG1
	CodecMPEG2
	CodecMPEG2XvMC
	CodecH264
	CodecMPEG4
	CodecMSMPEG4V2
	CodecMSMPEG4V3
	CodecH263
	CodecH263P
	CodecH263I
	CodecRV10
	CodecRV20
	CodecRV30
	CodecRV40
	CodecVC1
	CodecWMV3
	CodecAVS
	CodecCAVS
	CodecVP9
	CodecHEVC
)

func (c CodecID) String() string {
	switch c {
	case CodecMJPEG:
		return "MJPEG"
	case CodecMPEG1:
		return "MPEG1"
	case CodecMPEG2:
		return "MPEG2"
	case CodecMPEG2XvMC:
		return "MPEG2-XvMC"
	case CodecH264:
		return "H264"
	case CodecMPEG4:
		return "MPEG4"
	case CodecMSMPEG4V2:
		return "MSMPEG4V2"
	case CodecMSMPEG4V3:
		return "MSMPEG4V3"
	case CodecH263:
		return "H263"
	case CodecH263P:
		return "H263P"
	case CodecH263I:
		return "H263I"
	case CodecRV10:
		return "RV10"
	case CodecRV20:
		return "RV20"
	case CodecRV30:
		return "RV30"
	case CodecRV40:
		return "RV40"
	case CodecVC1:
		return "VC1"
	case CodecWMV3:
		return "WMV3"
	case CodecAVS:
		return "AVS"
	case CodecCAVS:
		return "CAVS"
	case CodecVP9:
		return "VP9"
	case CodecHEVC:
		return "HEVC"
	default:
		return "Unknown"
	}
}

// IsMPEG2 reports whether the codec decodes through the MPEG-1/2 path.
func (c CodecID) IsMPEG2() bool {
	return c == CodecMPEG1 || c == CodecMPEG2 || c == CodecMPEG2XvMC
}

// Profile values carried in StreamHints.Profile. They follow the numbering
// used by libavcodec so demuxer output can be passed through untouched.
const (
	ProfileUnknown = -99

	ProfileH264Constrained = 1 << 9
	ProfileH264Intra       = 1 << 11

	ProfileH264Baseline            = 66
	ProfileH264Main                = 77
	ProfileH264Extended            = 88
	ProfileH264High                = 100
	ProfileH264High10              = 110
	ProfileH264High10Intra         = 110 | ProfileH264Intra
	ProfileH264High422             = 122
	ProfileH264High422Intra        = 122 | ProfileH264Intra
	ProfileH264High444             = 144
	ProfileH264High444Predictive   = 244
	ProfileH264High444Intra        = 244 | ProfileH264Intra
	ProfileH264CAVLC444            = 44
	ProfileH264ConstrainedBaseline = 66 | ProfileH264Constrained

	ProfileHEVCMain             = 1
	ProfileHEVCMain10           = 2
	ProfileHEVCMainStillPicture = 3
)

// h264ProfileUnsupported reports profiles the hardware decoder rejects:
// anything above 8-bit 4:2:0.
func h264ProfileUnsupported(profile int) bool {
	switch profile {
	case ProfileH264High10,
		ProfileH264High10Intra,
		ProfileH264High422,
		ProfileH264High422Intra,
		ProfileH264High444Predictive,
		ProfileH264High444Intra,
		ProfileH264CAVLC444:
		return true
	}
	return false
}

// Format tags handed to the vendor decoder and reported as decoder name.
const (
	FormatNameDefault = "amcodec"
	FormatNameMJPEG   = "am-mjpeg"
	FormatNameMPEG2   = "am-mpeg2"
	FormatNameH264    = "am-h264"
	FormatNameMPEG4   = "am-mpeg4"
	FormatNameVC1     = "am-vc1"
	FormatNameWMV3    = "am-wmv3"
	FormatNameAVS     = "am-avs"
	FormatNameVP9     = "am-vp9"
	FormatNameH265    = "am-h265"
)

// Status is the bitmask returned by Decode.
type Status int

const (
	StatusError   Status = 1 << iota // Decoder failed on this packet
	StatusBuffer                     // Packet consumed, feed more before expecting output
	StatusPicture                    // A picture is ready for GetPicture
	StatusUserData                   // User data is available
	StatusFlushed                    // Decoder was flushed
	StatusDropped                    // Picture was dropped
)

// Has returns true if all bits in s are set.
func (st Status) Has(s Status) bool { return st&s == s }

func (st Status) String() string {
	switch {
	case st == 0:
		return "none"
	case st.Has(StatusError):
		return "error"
	case st.Has(StatusPicture):
		return "picture"
	case st.Has(StatusBuffer):
		return "buffer"
	case st.Has(StatusFlushed):
		return "flushed"
	case st.Has(StatusDropped):
		return "dropped"
	default:
		return "userdata"
	}
}

// CodecCtrl flags accepted by SetCodecControl.
const (
	CodecCtrlSkipDeint = 1 << iota
	CodecCtrlNoPostProc
	CodecCtrlDrain
)

// PlaySpeedNormal is the speed value for 1x playback.
const PlaySpeedNormal = 1000

// formatFor returns the vendor format tag for a codec the hardware accepts,
// or FormatNameDefault.
func formatFor(c CodecID) string {
	switch {
	case c == CodecMJPEG:
		return FormatNameMJPEG
	case c.IsMPEG2():
		return FormatNameMPEG2
	case c == CodecH264:
		return FormatNameH264
	case c == CodecMPEG4 || c == CodecMSMPEG4V2 || c == CodecMSMPEG4V3:
		return FormatNameMPEG4
	case c == CodecVC1:
		return FormatNameVC1
	case c == CodecWMV3:
		return FormatNameWMV3
	case c == CodecAVS || c == CodecCAVS:
		return FormatNameAVS
	case c == CodecVP9:
		return FormatNameVP9
	case c == CodecHEVC:
		return FormatNameH265
	default:
		return FormatNameDefault
	}
}
