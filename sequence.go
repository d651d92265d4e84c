package amcodec

// SequenceSnapshot is the stream geometry carried by the most recent in-band
// sequence header. It becomes visible in decoded output once a picture with
// PTS >= EffectivePTS is retrieved.
type SequenceSnapshot struct {
	Width    int
	Height   int
	Aspect   float64
	RateCode uint8   // MPEG-2 frame_rate_code, 0 for H.264
	Rate     float64 // Frames per second, 0 when unknown

	EffectivePTS float64

	ratioInfo uint8
}

// sequenceTracker follows in-band sequence headers for one codec family.
// A Decoder holds at most one, chosen at Open.
type sequenceTracker interface {
	// probe scans an accepted packet. It returns true when a header was
	// found and the snapshot changed; the snapshot is then effective from
	// pts (or dts when pts is NoPTS).
	probe(data []byte, dts, pts float64) bool

	// snapshot returns the current snapshot.
	snapshot() *SequenceSnapshot

	// reset is called from Decoder.Reset.
	reset()
}

func effectivePTS(dts, pts float64) float64 {
	if pts == NoPTS {
		return dts
	}
	return pts
}

// mpeg2FrameRates maps frame_rate_code to fpsrate/fpsscale. Unknown codes use
// the first entry.
var mpeg2FrameRates = [...]struct{ rate, scale int }{
	1: {24000, 1001},
	2: {24000, 1000},
	3: {25000, 1000},
	4: {30000, 1001},
	5: {30000, 1000},
	6: {50000, 1000},
	7: {60000, 1001},
	8: {60000, 1000},
}

func mpeg2FrameRate(code uint8) (rate, scale int) {
	if code == 0 || int(code) >= len(mpeg2FrameRates) {
		code = 1
	}
	r := mpeg2FrameRates[code]
	return r.rate, r.scale
}

type mpeg2Tracker struct {
	seq SequenceSnapshot
}

func newMPEG2Tracker(h StreamHints) *mpeg2Tracker {
	rate := 1.0
	if fps := h.FPS(); fps > 0 {
		rate = fps
	}
	return &mpeg2Tracker{seq: SequenceSnapshot{
		Width:  h.Width,
		Height: h.Height,
		Aspect: h.Aspect,
		Rate:   rate,
	}}
}

func (t *mpeg2Tracker) probe(data []byte, dts, pts float64) bool {
	if !parseMPEG2Sequence(data, &t.seq) {
		return false
	}
	t.seq.EffectivePTS = effectivePTS(dts, pts)
	return true
}

func (t *mpeg2Tracker) snapshot() *SequenceSnapshot { return &t.seq }

// The effective pts goes back to zero so the next picture after a seek picks
// up the last known aspect.
func (t *mpeg2Tracker) reset() { t.seq.EffectivePTS = 0 }

type h264Tracker struct {
	seq SequenceSnapshot
}

func newH264Tracker(h StreamHints) *h264Tracker {
	return &h264Tracker{seq: SequenceSnapshot{
		Width:  h.Width,
		Height: h.Height,
		Aspect: h.Aspect,
	}}
}

func (t *h264Tracker) probe(data []byte, dts, pts float64) bool {
	if !parseH264Sequence(data, &t.seq) {
		return false
	}
	t.seq.EffectivePTS = effectivePTS(dts, pts)
	return true
}

func (t *h264Tracker) snapshot() *SequenceSnapshot { return &t.seq }

func (t *h264Tracker) reset() {}

// ProbeMPEG2Sequence returns the last MPEG-2 sequence header in data.
func ProbeMPEG2Sequence(data []byte) (SequenceSnapshot, bool) {
	var seq SequenceSnapshot
	ok := parseMPEG2Sequence(data, &seq)
	return seq, ok
}

// ProbeH264Sequence returns the geometry of the last SPS in Annex-B data.
func ProbeH264Sequence(data []byte) (SequenceSnapshot, bool) {
	var seq SequenceSnapshot
	ok := parseH264Sequence(data, &seq)
	return seq, ok
}
