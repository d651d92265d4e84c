package amcodec

// h264SampleAspect is ITU-T H.264 Table E-1, indexed by aspect_ratio_idc.
var h264SampleAspect = [...][2]int{
	{0, 0}, {1, 1}, {12, 11}, {10, 11}, {16, 11}, {40, 33}, {24, 11}, {20, 11},
	{32, 11}, {80, 33}, {18, 11}, {15, 11}, {64, 33}, {160, 99}, {4, 3}, {3, 2},
	{2, 1},
}

const h264ExtendedSAR = 255

// h264SPS holds the SPS fields needed to derive display geometry.
type h264SPS struct {
	Width      int
	Height     int
	ProfileIDC byte
	LevelIDC   byte
	SARWidth   int
	SARHeight  int
}

// Aspect returns the display aspect ratio, assuming square pixels when the
// SPS carries no sample aspect ratio.
func (s h264SPS) Aspect() float64 {
	if s.Height == 0 {
		return 0
	}
	if s.SARWidth <= 0 || s.SARHeight <= 0 {
		return float64(s.Width) / float64(s.Height)
	}
	return float64(s.Width*s.SARWidth) / float64(s.Height*s.SARHeight)
}

// parseH264Sequence finds SPS NAL units in Annex-B data and folds them into
// seq. It returns true if width, height or aspect changed.
func parseH264Sequence(data []byte, seq *SequenceSnapshot) bool {
	changed := false
	for _, nalu := range parseAnnexBNALUnits(data) {
		if h264NALType(nalu) != nalTypeSPS {
			continue
		}
		sps, err := parseH264SPS(nalu)
		if err != nil {
			continue
		}
		aspect := sps.Aspect()
		if sps.Width != seq.Width || sps.Height != seq.Height || aspect != seq.Aspect {
			seq.Width = sps.Width
			seq.Height = sps.Height
			seq.Aspect = aspect
			changed = true
		}
	}
	return changed
}

// parseH264SPS parses an SPS NAL unit, header byte included, start code
// excluded.
func parseH264SPS(nalu []byte) (h264SPS, error) {
	if len(nalu) < 4 {
		return h264SPS{}, errShortHeader
	}

	br := newBitReader(removeEmulationPrevention(nalu[1:]))

	profileIdc, err := br.readBits(8)
	if err != nil {
		return h264SPS{}, err
	}
	if _, err := br.readBits(8); err != nil { // constraint flags
		return h264SPS{}, err
	}
	levelIdc, err := br.readBits(8)
	if err != nil {
		return h264SPS{}, err
	}
	if _, err := br.readUE(); err != nil { // seq_parameter_set_id
		return h264SPS{}, err
	}

	chromaFormatIdc := uint(1)
	separateColourPlane := false

	switch profileIdc {
	case 100, 110, 122, 244, 44, 83, 86, 118, 128, 138, 139, 134:
		chromaFormatIdc, err = br.readUE()
		if err != nil {
			return h264SPS{}, err
		}
		if chromaFormatIdc == 3 {
			if separateColourPlane, err = br.readFlag(); err != nil {
				return h264SPS{}, err
			}
		}
		if _, err := br.readUE(); err != nil { // bit_depth_luma_minus8
			return h264SPS{}, err
		}
		if _, err := br.readUE(); err != nil { // bit_depth_chroma_minus8
			return h264SPS{}, err
		}
		if _, err := br.readBits(1); err != nil { // qpprime_y_zero_transform_bypass_flag
			return h264SPS{}, err
		}
		scalingMatrix, err := br.readFlag()
		if err != nil {
			return h264SPS{}, err
		}
		if scalingMatrix {
			limit := 8
			if chromaFormatIdc == 3 {
				limit = 12
			}
			for i := 0; i < limit; i++ {
				present, err := br.readFlag()
				if err != nil {
					return h264SPS{}, err
				}
				if !present {
					continue
				}
				size := 16
				if i >= 6 {
					size = 64
				}
				if err := br.skipScalingList(size); err != nil {
					return h264SPS{}, err
				}
			}
		}
	}

	if _, err := br.readUE(); err != nil { // log2_max_frame_num_minus4
		return h264SPS{}, err
	}
	pocType, err := br.readUE()
	if err != nil {
		return h264SPS{}, err
	}
	switch pocType {
	case 0:
		if _, err := br.readUE(); err != nil {
			return h264SPS{}, err
		}
	case 1:
		if _, err := br.readBits(1); err != nil {
			return h264SPS{}, err
		}
		if _, err := br.readSE(); err != nil {
			return h264SPS{}, err
		}
		if _, err := br.readSE(); err != nil {
			return h264SPS{}, err
		}
		cycle, err := br.readUE()
		if err != nil {
			return h264SPS{}, err
		}
		for i := uint(0); i < cycle; i++ {
			if _, err := br.readSE(); err != nil {
				return h264SPS{}, err
			}
		}
	}

	if _, err := br.readUE(); err != nil { // max_num_ref_frames
		return h264SPS{}, err
	}
	if _, err := br.readBits(1); err != nil { // gaps_in_frame_num_value_allowed_flag
		return h264SPS{}, err
	}

	widthMbs, err := br.readUE()
	if err != nil {
		return h264SPS{}, err
	}
	heightMapUnits, err := br.readUE()
	if err != nil {
		return h264SPS{}, err
	}
	frameMbsOnly, err := br.readBits(1)
	if err != nil {
		return h264SPS{}, err
	}
	if frameMbsOnly == 0 {
		if _, err := br.readBits(1); err != nil { // mb_adaptive_frame_field_flag
			return h264SPS{}, err
		}
	}
	if _, err := br.readBits(1); err != nil { // direct_8x8_inference_flag
		return h264SPS{}, err
	}

	var cropLeft, cropRight, cropTop, cropBottom uint
	cropping, err := br.readFlag()
	if err != nil {
		return h264SPS{}, err
	}
	if cropping {
		for _, v := range []*uint{&cropLeft, &cropRight, &cropTop, &cropBottom} {
			if *v, err = br.readUE(); err != nil {
				return h264SPS{}, err
			}
		}
	}

	chromaArrayType := chromaFormatIdc
	if separateColourPlane {
		chromaArrayType = 0
	}
	subWidthC, subHeightC := uint(2), uint(2)
	switch chromaArrayType {
	case 0, 3:
		subWidthC, subHeightC = 1, 1
	case 2:
		subWidthC, subHeightC = 2, 1
	}

	cropUnitX := subWidthC
	cropUnitY := subHeightC * (2 - frameMbsOnly)

	sps := h264SPS{
		Width:      int((widthMbs+1)*16 - cropUnitX*(cropLeft+cropRight)),
		Height:     int((heightMapUnits+1)*16*(2-frameMbsOnly) - cropUnitY*(cropTop+cropBottom)),
		ProfileIDC: byte(profileIdc),
		LevelIDC:   byte(levelIdc),
	}

	vui, err := br.readFlag()
	if err != nil || !vui {
		return sps, nil
	}
	arPresent, err := br.readFlag()
	if err != nil || !arPresent {
		return sps, nil
	}
	idc, err := br.readBits(8)
	if err != nil {
		return sps, nil
	}
	switch {
	case idc == h264ExtendedSAR:
		w, err := br.readBits(16)
		if err != nil {
			return sps, nil
		}
		h, err := br.readBits(16)
		if err != nil {
			return sps, nil
		}
		sps.SARWidth, sps.SARHeight = int(w), int(h)
	case int(idc) < len(h264SampleAspect):
		sps.SARWidth, sps.SARHeight = h264SampleAspect[idc][0], h264SampleAspect[idc][1]
	}

	return sps, nil
}
