package amcodec

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// Capability is a bitmask of hardware decoder features that vary by chip.
type Capability uint32

const (
	CapHEVC      Capability = 1 << iota // HEVC decoding (S805 and later)
	CapHEVC4K2K                         // HEVC above 1920x1088
	CapHEVC10Bit                        // HEVC Main10
	CapVP9                              // VP9 decoding
	CapH2644K2K                         // H.264 above 1920x1088 (S802/S812)
)

// Has returns true if all specified capabilities are present.
func (c Capability) Has(want Capability) bool { return c&want == want }

func (c Capability) String() string {
	if c == 0 {
		return "none"
	}
	var names []string
	for _, e := range []struct {
		bit  Capability
		name string
	}{
		{CapHEVC, "hevc"},
		{CapHEVC4K2K, "hevc-4k2k"},
		{CapHEVC10Bit, "hevc-10bit"},
		{CapVP9, "vp9"},
		{CapH2644K2K, "h264-4k2k"},
	} {
		if c.Has(e.bit) {
			names = append(names, e.name)
		}
	}
	return strings.Join(names, ",")
}

// Capabilities answers platform questions asked during Decoder.Open.
type Capabilities interface {
	// Permitted reports whether the process can drive the video devices.
	Permitted() bool

	// Supports reports whether the chip decodes want.
	Supports(want Capability) bool
}

// StaticCapabilities is a fixed answer, for tests and for platforms where
// the caller probes the hardware some other way.
type StaticCapabilities struct {
	Allowed  bool
	Features Capability
}

func (s StaticCapabilities) Permitted() bool { return s.Allowed }

func (s StaticCapabilities) Supports(want Capability) bool { return s.Features.Has(want) }

// Paths probed under the sysfs root.
const (
	vcodecProfilePath = "sys/class/amstream/vcodec_profile"
)

// permissionPaths must all be readable and writable for hardware decode.
var permissionPaths = []string{
	"dev/amvideo",
	"dev/amstream_mpts",
	"sys/class/video/axis",
	"sys/class/video/screen_mode",
	"sys/class/video/disable_video",
	"sys/class/tsync/pts_pcrscr",
}

var (
	reHEVC4K2K  = regexp.MustCompile(`(?m)^\s*hevc:.*4k`)
	reHEVC10Bit = regexp.MustCompile(`(?m)^\s*hevc:.*10bit`)
)

// SysfsCapabilities reads decoder capabilities from the amstream sysfs
// nodes. The profile file is read once.
type SysfsCapabilities struct {
	root string

	once     sync.Once
	features Capability
	err      error
}

// NewSysfsCapabilities probes beneath root; "" means "/".
func NewSysfsCapabilities(root string) *SysfsCapabilities {
	if root == "" {
		root = "/"
	}
	return &SysfsCapabilities{root: root}
}

func (s *SysfsCapabilities) path(rel string) string {
	return filepath.Join(s.root, rel)
}

// Features returns the capabilities listed in vcodec_profile.
func (s *SysfsCapabilities) Features() (Capability, error) {
	s.once.Do(func() {
		s.features, s.err = s.readProfile()
	})
	return s.features, s.err
}

func (s *SysfsCapabilities) readProfile() (Capability, error) {
	p := s.path(vcodecProfilePath)
	data, err := os.ReadFile(p)
	if err != nil {
		return 0, errors.Wrapf(err, "read %s", p)
	}
	return parseVcodecProfile(string(data)), nil
}

func parseVcodecProfile(profile string) Capability {
	var caps Capability
	for _, line := range strings.Split(profile, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "hevc:"):
			caps |= CapHEVC
		case strings.HasPrefix(line, "vp9:"):
			caps |= CapVP9
		case strings.HasPrefix(line, "h264_4k2k:"):
			caps |= CapH2644K2K
		}
	}
	if reHEVC4K2K.MatchString(profile) {
		caps |= CapHEVC4K2K
	}
	if reHEVC10Bit.MatchString(profile) {
		caps |= CapHEVC10Bit
	}
	return caps
}

// Supports reports false when the profile cannot be read.
func (s *SysfsCapabilities) Supports(want Capability) bool {
	f, err := s.Features()
	if err != nil {
		return false
	}
	return f.Has(want)
}

// CheckPermissions returns the first device node the process cannot open
// for reading and writing.
func (s *SysfsCapabilities) CheckPermissions() error {
	for _, rel := range permissionPaths {
		p := s.path(rel)
		if err := accessRW(p); err != nil {
			return errors.Wrapf(err, "access %s", p)
		}
	}
	return nil
}

// Permitted reports whether every device node is accessible.
func (s *SysfsCapabilities) Permitted() bool {
	return s.CheckPermissions() == nil
}
