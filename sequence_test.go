package amcodec

import (
	"bytes"
	"math/bits"
	"testing"
)

// bitWriter is the inverse of bitReader, used to build test headers.
type bitWriter struct {
	buf []byte
	n   int
}

func (w *bitWriter) writeBit(b uint) {
	if w.n%8 == 0 {
		w.buf = append(w.buf, 0)
	}
	if b != 0 {
		w.buf[len(w.buf)-1] |= 1 << (7 - w.n%8)
	}
	w.n++
}

func (w *bitWriter) writeBits(v uint, width int) {
	for i := width - 1; i >= 0; i-- {
		w.writeBit((v >> i) & 1)
	}
}

func (w *bitWriter) writeUE(v uint) {
	l := bits.Len(v + 1)
	w.writeBits(0, l-1)
	w.writeBits(v+1, l)
}

func (w *bitWriter) writeSE(v int) {
	if v > 0 {
		w.writeUE(uint(2*v - 1))
	} else {
		w.writeUE(uint(-2 * v))
	}
}

// rbsp appends the stop bit and byte alignment.
func (w *bitWriter) rbsp() []byte {
	w.writeBit(1)
	for w.n%8 != 0 {
		w.writeBit(0)
	}
	return w.buf
}

func addEmulationPrevention(rbsp []byte) []byte {
	out := make([]byte, 0, len(rbsp)+8)
	zeros := 0
	for _, b := range rbsp {
		if zeros >= 2 && b <= 3 {
			out = append(out, 3)
			zeros = 0
		}
		out = append(out, b)
		if b == 0 {
			zeros++
		} else {
			zeros = 0
		}
	}
	return out
}

type testSPS struct {
	profile        uint
	widthMbs       uint
	heightMapUnits uint
	interlaced     bool
	cropBottom     uint
	sarIdc         int // -1 for no VUI
	sarW, sarH     uint
}

// buildSPS returns an SPS NAL unit (header included, no start code).
func buildSPS(p testSPS) []byte {
	var w bitWriter
	w.writeBits(p.profile, 8)
	w.writeBits(0, 8)  // constraint flags
	w.writeBits(40, 8) // level 4.0
	w.writeUE(0)       // sps id
	if p.profile == 100 {
		w.writeUE(1) // chroma_format_idc 4:2:0
		w.writeUE(0)
		w.writeUE(0)
		w.writeBit(0)
		w.writeBit(0) // no scaling matrix
	}
	w.writeUE(0) // log2_max_frame_num_minus4
	w.writeUE(0) // pic_order_cnt_type
	w.writeUE(0) // log2_max_pic_order_cnt_lsb_minus4
	w.writeUE(1) // max_num_ref_frames
	w.writeBit(0)
	w.writeUE(p.widthMbs - 1)
	w.writeUE(p.heightMapUnits - 1)
	if p.interlaced {
		w.writeBit(0)
		w.writeBit(0) // mb_adaptive_frame_field_flag
	} else {
		w.writeBit(1)
	}
	w.writeBit(1) // direct_8x8_inference_flag
	if p.cropBottom > 0 {
		w.writeBit(1)
		w.writeUE(0)
		w.writeUE(0)
		w.writeUE(0)
		w.writeUE(p.cropBottom)
	} else {
		w.writeBit(0)
	}
	if p.sarIdc < 0 {
		w.writeBit(0)
	} else {
		w.writeBit(1)
		w.writeBit(1)
		w.writeBits(uint(p.sarIdc), 8)
		if p.sarIdc == h264ExtendedSAR {
			w.writeBits(p.sarW, 16)
			w.writeBits(p.sarH, 16)
		}
		w.writeBit(0) // overscan_info_present_flag
		w.writeBit(0) // video_signal_type_present_flag
		w.writeBit(0) // chroma_loc_info_present_flag
		w.writeBit(0) // timing_info_present_flag
		w.writeBit(0)
		w.writeBit(0)
		w.writeBit(0) // pic_struct_present_flag
		w.writeBit(0) // bitstream_restriction_flag
	}
	return append([]byte{0x67}, addEmulationPrevention(w.rbsp())...)
}

func annexB(nalus ...[]byte) []byte {
	var out []byte
	for _, n := range nalus {
		out = append(out, annexBStartCode...)
		out = append(out, n...)
	}
	return out
}

var (
	sps1080p = testSPS{profile: 66, widthMbs: 120, heightMapUnits: 68, cropBottom: 4, sarIdc: -1}
	spsPAL   = testSPS{profile: 77, widthMbs: 45, heightMapUnits: 36, sarIdc: 4}
)

// =============================================================================
// H.264 SPS Tests
// =============================================================================

func TestParseH264SPS(t *testing.T) {
	tests := []struct {
		name       string
		sps        testSPS
		wantW      int
		wantH      int
		wantAspect float64
	}{
		{"1080p no VUI", sps1080p, 1920, 1080, 1920.0 / 1080.0},
		{"PAL 16:11", spsPAL, 720, 576, float64(720*16) / float64(576*11)},
		{
			"high 720p square",
			testSPS{profile: 100, widthMbs: 80, heightMapUnits: 45, sarIdc: 1},
			1280, 720, 1280.0 / 720.0,
		},
		{
			"interlaced extended SAR",
			testSPS{profile: 77, widthMbs: 45, heightMapUnits: 15, interlaced: true, sarIdc: h264ExtendedSAR, sarW: 40, sarH: 33},
			720, 480, float64(720*40) / float64(480*33),
		},
		{
			"unspecified SAR",
			testSPS{profile: 66, widthMbs: 40, heightMapUnits: 30, sarIdc: 0},
			640, 480, 640.0 / 480.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sps, err := parseH264SPS(buildSPS(tt.sps))
			if err != nil {
				t.Fatalf("parseH264SPS() error = %v", err)
			}
			if sps.Width != tt.wantW || sps.Height != tt.wantH {
				t.Errorf("size = %dx%d, want %dx%d", sps.Width, sps.Height, tt.wantW, tt.wantH)
			}
			if got := sps.Aspect(); got != tt.wantAspect {
				t.Errorf("Aspect() = %v, want %v", got, tt.wantAspect)
			}
			if sps.ProfileIDC != byte(tt.sps.profile) || sps.LevelIDC != 40 {
				t.Errorf("profile/level = %d/%d", sps.ProfileIDC, sps.LevelIDC)
			}
		})
	}
}

func TestParseH264SPS_Truncated(t *testing.T) {
	if _, err := parseH264SPS([]byte{0x67, 0x42}); err == nil {
		t.Error("parseH264SPS() on 2 bytes succeeded")
	}
	full := buildSPS(sps1080p)
	if _, err := parseH264SPS(full[:6]); err == nil {
		t.Error("parseH264SPS() on truncated SPS succeeded")
	}
}

func TestParseH264Sequence(t *testing.T) {
	var seq SequenceSnapshot
	idr := []byte{0x65, 0x88, 0x84}

	if parseH264Sequence(annexB(idr), &seq) {
		t.Error("packet without SPS reported a change")
	}
	if !parseH264Sequence(annexB(buildSPS(spsPAL), idr), &seq) {
		t.Fatal("first SPS not reported as a change")
	}
	if seq.Width != 720 || seq.Height != 576 || seq.Aspect != float64(720*16)/float64(576*11) {
		t.Errorf("snapshot = %dx%d @ %v", seq.Width, seq.Height, seq.Aspect)
	}
	if parseH264Sequence(annexB(buildSPS(spsPAL), idr), &seq) {
		t.Error("repeated SPS reported a change")
	}
	if !parseH264Sequence(annexB(buildSPS(sps1080p)), &seq) {
		t.Error("new resolution not reported")
	}
}

func TestProbeH264Sequence(t *testing.T) {
	seq, ok := ProbeH264Sequence(annexB(buildSPS(sps1080p)))
	if !ok {
		t.Fatal("ProbeH264Sequence() = false")
	}
	if seq.Width != 1920 || seq.Height != 1080 {
		t.Errorf("ProbeH264Sequence() = %dx%d, want 1920x1080", seq.Width, seq.Height)
	}
	if _, ok := ProbeH264Sequence([]byte{1, 2, 3}); ok {
		t.Error("ProbeH264Sequence(garbage) = true")
	}
}

// =============================================================================
// MPEG-2 Sequence Header Tests
// =============================================================================

func mpeg2SequenceHeader(width, height int, ratio, rate uint8) []byte {
	return []byte{
		0x00, 0x00, 0x01, mpeg2SequenceHeaderCode,
		byte(width >> 4), byte(width<<4) | byte(height>>8), byte(height),
		ratio<<4 | rate,
		0xFF, 0xFF, 0xE0, 0x18,
	}
}

func TestParseMPEG2Sequence(t *testing.T) {
	var seq SequenceSnapshot
	gop := []byte{0x00, 0x00, 0x01, 0xB8, 0x00, 0x08, 0x00, 0x00}

	data := append(append([]byte{}, gop...), mpeg2SequenceHeader(720, 576, 3, 3)...)
	if !parseMPEG2Sequence(data, &seq) {
		t.Fatal("sequence header not reported as a change")
	}
	if seq.Width != 720 || seq.Height != 576 {
		t.Errorf("size = %dx%d, want 720x576", seq.Width, seq.Height)
	}
	if seq.Aspect != 16.0/9.0 {
		t.Errorf("Aspect = %v, want 16/9", seq.Aspect)
	}
	if seq.RateCode != 3 || seq.Rate != 25 {
		t.Errorf("rate = %d/%v, want 3/25", seq.RateCode, seq.Rate)
	}

	if parseMPEG2Sequence(mpeg2SequenceHeader(720, 576, 3, 3), &seq) {
		t.Error("identical header reported a change")
	}
	if !parseMPEG2Sequence(mpeg2SequenceHeader(720, 576, 2, 3), &seq) {
		t.Error("aspect change not reported")
	}
	if seq.Aspect != 4.0/3.0 {
		t.Errorf("Aspect = %v, want 4/3", seq.Aspect)
	}
	if parseMPEG2Sequence(gop, &seq) {
		t.Error("packet without sequence header reported a change")
	}
}

func TestParseMPEG2Sequence_Truncated(t *testing.T) {
	var seq SequenceSnapshot
	hdr := mpeg2SequenceHeader(720, 576, 3, 3)
	if parseMPEG2Sequence(hdr[:6], &seq) {
		t.Error("truncated header reported a change")
	}
}

func TestMPEG2Aspect(t *testing.T) {
	tests := []struct {
		info uint8
		want float64
	}{
		{1, 1.0},
		{2, 4.0 / 3.0},
		{3, 16.0 / 9.0},
		{4, 2.21},
		{0, 4.0 / 3.0},
		{9, 4.0 / 3.0},
	}

	for _, tt := range tests {
		if got := mpeg2Aspect(tt.info); got != tt.want {
			t.Errorf("mpeg2Aspect(%d) = %v, want %v", tt.info, got, tt.want)
		}
	}
}

func TestMPEG2FrameRate(t *testing.T) {
	tests := []struct {
		code             uint8
		wantRate, wantSc int
	}{
		{1, 24000, 1001},
		{3, 25000, 1000},
		{4, 30000, 1001},
		{8, 60000, 1000},
		{0, 24000, 1001},
		{15, 24000, 1001},
	}

	for _, tt := range tests {
		rate, scale := mpeg2FrameRate(tt.code)
		if rate != tt.wantRate || scale != tt.wantSc {
			t.Errorf("mpeg2FrameRate(%d) = %d/%d, want %d/%d", tt.code, rate, scale, tt.wantRate, tt.wantSc)
		}
	}
}

func TestMPEG2Tracker(t *testing.T) {
	tr := newMPEG2Tracker(StreamHints{Width: 720, Height: 576, Aspect: 4.0 / 3.0})
	if got := tr.snapshot().Rate; got != 1.0 {
		t.Errorf("initial Rate = %v, want 1", got)
	}

	if !tr.probe(mpeg2SequenceHeader(720, 576, 3, 3), 5000, NoPTS) {
		t.Fatal("probe() = false")
	}
	if got := tr.snapshot().EffectivePTS; got != 5000 {
		t.Errorf("EffectivePTS = %v, want dts 5000", got)
	}
	if !tr.probe(mpeg2SequenceHeader(720, 576, 2, 3), 6000, 9000) {
		t.Fatal("probe() = false")
	}
	if got := tr.snapshot().EffectivePTS; got != 9000 {
		t.Errorf("EffectivePTS = %v, want pts 9000", got)
	}

	tr.reset()
	if got := tr.snapshot().EffectivePTS; got != 0 {
		t.Errorf("EffectivePTS after reset = %v, want 0", got)
	}
	if got := tr.snapshot().Aspect; got != 4.0/3.0 {
		t.Errorf("Aspect after reset = %v, want last known 4/3", got)
	}
}

func TestProbeMPEG2Sequence(t *testing.T) {
	seq, ok := ProbeMPEG2Sequence(mpeg2SequenceHeader(1920, 1080, 3, 4))
	if !ok {
		t.Fatal("ProbeMPEG2Sequence() = false")
	}
	if seq.Width != 1920 || seq.Height != 1080 || seq.RateCode != 4 {
		t.Errorf("ProbeMPEG2Sequence() = %+v", seq)
	}
}

// =============================================================================
// Bit Reader Tests
// =============================================================================

func TestBitReader_ExpGolomb(t *testing.T) {
	var w bitWriter
	ues := []uint{0, 1, 2, 7, 119, 1000}
	ses := []int{0, 1, -1, 5, -17}
	for _, v := range ues {
		w.writeUE(v)
	}
	for _, v := range ses {
		w.writeSE(v)
	}
	br := newBitReader(w.rbsp())

	for _, want := range ues {
		got, err := br.readUE()
		if err != nil || got != want {
			t.Errorf("readUE() = %d, %v; want %d", got, err, want)
		}
	}
	for _, want := range ses {
		got, err := br.readSE()
		if err != nil || got != want {
			t.Errorf("readSE() = %d, %v; want %d", got, err, want)
		}
	}
}

func TestBitReader_Short(t *testing.T) {
	br := newBitReader([]byte{0x00})
	if _, err := br.readUE(); err != errShortHeader {
		t.Errorf("readUE() error = %v, want errShortHeader", err)
	}
}

func TestRemoveEmulationPrevention(t *testing.T) {
	tests := []struct {
		in, want []byte
	}{
		{[]byte{0x00, 0x00, 0x03, 0x01}, []byte{0x00, 0x00, 0x01}},
		{[]byte{0x00, 0x00, 0x03, 0x00, 0x00, 0x03}, []byte{0x00, 0x00, 0x00, 0x00}},
		{[]byte{0x00, 0x03, 0x01}, []byte{0x00, 0x03, 0x01}},
		{[]byte{0x12, 0x34}, []byte{0x12, 0x34}},
	}

	for _, tt := range tests {
		if got := removeEmulationPrevention(tt.in); !bytes.Equal(got, tt.want) {
			t.Errorf("removeEmulationPrevention(%x) = %x, want %x", tt.in, got, tt.want)
		}
	}
}
