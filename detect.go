package amcodec

// H.264 NAL unit types (ITU-T H.264 Table 7-1).
const (
	nalTypeSlice = 1
	nalTypeIDR   = 5
	nalTypeSPS   = 7
	nalTypePPS   = 8
)

// HEVC NAL unit types (ITU-T H.265 Table 7-1).
const (
	hevcNALBLAWLP  = 16
	hevcNALRSVIRAP = 23
	hevcNALVPS     = 32
	hevcNALSPS     = 33
	hevcNALPPS     = 34
)

// isAnnexBStartCode checks for an Annex-B start code at the head of data:
// 0x00000001 or 0x000001.
func isAnnexBStartCode(data []byte) bool {
	if len(data) >= 4 && data[0] == 0 && data[1] == 0 && data[2] == 0 && data[3] == 1 {
		return true
	}
	return len(data) >= 3 && data[0] == 0 && data[1] == 0 && data[2] == 1
}

// isAVCCFormat checks whether data looks like 4-byte length-prefixed NAL units.
func isAVCCFormat(data []byte) bool {
	if len(data) < 8 {
		return false
	}
	length := int(data[0])<<24 | int(data[1])<<16 | int(data[2])<<8 | int(data[3])
	return length > 0 && length <= len(data)-4 && length < 10*1024*1024
}

// parseAnnexBNALUnits splits Annex-B data into NAL units without start codes.
func parseAnnexBNALUnits(data []byte) [][]byte {
	var nalUnits [][]byte
	start := -1

	for i := 0; i < len(data); i++ {
		if i+3 < len(data) && data[i] == 0 && data[i+1] == 0 && data[i+2] == 0 && data[i+3] == 1 {
			if start >= 0 && i > start {
				nalUnits = append(nalUnits, data[start:i])
			}
			start = i + 4
			i += 3
		} else if i+2 < len(data) && data[i] == 0 && data[i+1] == 0 && data[i+2] == 1 {
			if start >= 0 && i > start {
				nalUnits = append(nalUnits, data[start:i])
			}
			start = i + 3
			i += 2
		}
	}

	if start >= 0 && start < len(data) {
		nalUnits = append(nalUnits, data[start:])
	}

	return nalUnits
}

func h264NALType(nalu []byte) byte {
	if len(nalu) == 0 {
		return 0
	}
	return nalu[0] & 0x1F
}

func hevcNALType(nalu []byte) byte {
	if len(nalu) == 0 {
		return 0
	}
	return (nalu[0] >> 1) & 0x3F
}

func isHEVCKeyframe(nalType byte) bool {
	return nalType >= hevcNALBLAWLP && nalType <= hevcNALRSVIRAP
}
