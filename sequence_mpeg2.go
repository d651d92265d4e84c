package amcodec

const mpeg2SequenceHeaderCode = 0xB3

// parseMPEG2Sequence walks the start codes in data and folds every
// sequence_header into seq. It returns true if any field changed.
func parseMPEG2Sequence(data []byte, seq *SequenceSnapshot) bool {
	changed := false

	for i := 0; i+3 < len(data); i++ {
		if data[i] != 0 || data[i+1] != 0 || data[i+2] != 1 {
			continue
		}
		if data[i+3] != mpeg2SequenceHeaderCode {
			i += 2
			continue
		}
		hdr := data[i+4:]
		if len(hdr) < 4 {
			break
		}
		i += 3

		width := int(hdr[0])<<4 | int(hdr[1])>>4
		height := int(hdr[1]&0x0F)<<8 | int(hdr[2])
		ratioInfo := hdr[3] >> 4
		rateInfo := hdr[3] & 0x0F

		if width != seq.Width {
			seq.Width = width
			changed = true
		}
		if height != seq.Height {
			seq.Height = height
			changed = true
		}
		if ratioInfo != seq.ratioInfo {
			seq.ratioInfo = ratioInfo
			seq.Aspect = mpeg2Aspect(ratioInfo)
			changed = true
		}
		if rateInfo != seq.RateCode {
			seq.RateCode = rateInfo
			rate, scale := mpeg2FrameRate(rateInfo)
			seq.Rate = float64(rate) / float64(scale)
			changed = true
		}
	}

	return changed
}

// mpeg2Aspect maps aspect_ratio_information to a display aspect ratio.
// Reserved values are treated as 4:3.
func mpeg2Aspect(info uint8) float64 {
	switch info {
	case 0x01:
		return 1.0
	case 0x03:
		return 16.0 / 9.0
	case 0x04:
		return 2.21
	default:
		return 4.0 / 3.0
	}
}
