//go:build darwin || linux

// Amlogic hardware decode via libmedia_amcodec using purego.
//
// libmedia_amcodec is a thin wrapper around the vendor libamcodec with a
// primitive-only API, loaded at runtime so the package builds without cgo.
//
// Library locations checked (in order):
//   - Settings.LibraryPath, when set
//   - MEDIA_AMCODEC_LIB_PATH environment variable
//   - MEDIA_SDK_LIB_PATH environment variable
//   - build/ffi directory (development)
//   - System library paths

package amcodec

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
)

var (
	mediaAMCodecOnce    sync.Once
	mediaAMCodecHandle  uintptr
	mediaAMCodecInitErr error
)

// libmedia_amcodec function pointers
var (
	mediaAMCodecCreate      func() uint64
	mediaAMCodecOpen        func(h uint64, format uintptr, width, height, fpsRate, fpsScale int32, extra uintptr, extraLen, ptsInvalid, profile int32) int32
	mediaAMCodecDecode      func(h uint64, data uintptr, dataLen int32, dts, pts float64) int32
	mediaAMCodecGetPicture  func(h uint64, out uintptr) int32
	mediaAMCodecReset       func(h uint64)
	mediaAMCodecSetSpeed    func(h uint64, speed int32)
	mediaAMCodecSetDrain    func(h uint64, drain int32)
	mediaAMCodecOMXPts      func(h uint64) int32
	mediaAMCodecDuration    func(h uint64) int32
	mediaAMCodecBufferIndex func(h uint64) uint32
	mediaAMCodecClose       func(h uint64) int32
	mediaAMCodecDestroy     func(h uint64)

	mediaAMCodecGetError  func() uintptr
	mediaAMCodecAvailable func() int32
)

// mediaAMCodecPicture matches media_amcodec_picture_t in C.
// This struct must be heap-allocated for purego to work correctly on arm64
type mediaAMCodecPicture struct {
	DTS      float64
	PTS      float64
	Width    int32
	Height   int32
	Result   int32 // 1=picture, 0=none, <0=error
	Reserved int32
}

// Constants from media_amcodec.h
const (
	mediaAMCodecOK    = 0
	mediaAMCodecError = -1
)

// loadMediaAMCodec loads the libmedia_amcodec shared library. The first
// explicit path wins for the life of the process.
func loadMediaAMCodec(explicit string) error {
	mediaAMCodecOnce.Do(func() {
		mediaAMCodecInitErr = loadMediaAMCodecLib(explicit)
	})
	return mediaAMCodecInitErr
}

func loadMediaAMCodecLib(explicit string) error {
	paths := getMediaAMCodecLibPaths(explicit)

	var lastErr error
	for _, path := range paths {
		handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err != nil {
			lastErr = err
			continue
		}
		mediaAMCodecHandle = handle
		loadMediaAMCodecSymbols()
		return nil
	}

	if lastErr != nil {
		return fmt.Errorf("%w: %w", ErrLibraryNotFound, lastErr)
	}
	return ErrLibraryNotFound
}

func getMediaAMCodecLibPaths(explicit string) []string {
	var paths []string

	libName := "libmedia_amcodec.so"
	if runtime.GOOS == "darwin" {
		libName = "libmedia_amcodec.dylib"
	}

	if explicit != "" {
		paths = append(paths, explicit)
	}
	if envPath := os.Getenv("MEDIA_AMCODEC_LIB_PATH"); envPath != "" {
		paths = append(paths, envPath)
	}
	if envPath := os.Getenv("MEDIA_SDK_LIB_PATH"); envPath != "" {
		paths = append(paths, filepath.Join(envPath, libName))
	}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, libName),
			filepath.Join(exeDir, "..", "lib", libName),
		)
	}

	if wd, err := os.Getwd(); err == nil {
		for _, up := range []string{".", "..", filepath.Join("..", "..")} {
			paths = append(paths,
				filepath.Join(wd, up, "build", libName),
				filepath.Join(wd, up, "build", "ffi", libName),
			)
		}
	}

	if root := findModuleRoot(); root != "" {
		paths = append(paths,
			filepath.Join(root, "build", libName),
			filepath.Join(root, "build", "ffi", libName),
		)
	}

	switch runtime.GOOS {
	case "darwin":
		paths = append(paths,
			libName,
			"/usr/local/lib/"+libName,
			"/opt/homebrew/lib/"+libName,
		)
	case "linux":
		paths = append(paths,
			libName,
			"/usr/local/lib/"+libName,
			"/usr/lib/"+libName,
			"/system/lib/"+libName,
		)
	}

	return paths
}

func loadMediaAMCodecSymbols() {
	purego.RegisterLibFunc(&mediaAMCodecCreate, mediaAMCodecHandle, "media_amcodec_create")
	purego.RegisterLibFunc(&mediaAMCodecOpen, mediaAMCodecHandle, "media_amcodec_open")
	purego.RegisterLibFunc(&mediaAMCodecDecode, mediaAMCodecHandle, "media_amcodec_decode")
	purego.RegisterLibFunc(&mediaAMCodecGetPicture, mediaAMCodecHandle, "media_amcodec_get_picture")
	purego.RegisterLibFunc(&mediaAMCodecReset, mediaAMCodecHandle, "media_amcodec_reset")
	purego.RegisterLibFunc(&mediaAMCodecSetSpeed, mediaAMCodecHandle, "media_amcodec_set_speed")
	purego.RegisterLibFunc(&mediaAMCodecSetDrain, mediaAMCodecHandle, "media_amcodec_set_drain")
	purego.RegisterLibFunc(&mediaAMCodecOMXPts, mediaAMCodecHandle, "media_amcodec_get_omx_pts")
	purego.RegisterLibFunc(&mediaAMCodecDuration, mediaAMCodecHandle, "media_amcodec_get_duration")
	purego.RegisterLibFunc(&mediaAMCodecBufferIndex, mediaAMCodecHandle, "media_amcodec_get_buffer_index")
	purego.RegisterLibFunc(&mediaAMCodecClose, mediaAMCodecHandle, "media_amcodec_close")
	purego.RegisterLibFunc(&mediaAMCodecDestroy, mediaAMCodecHandle, "media_amcodec_destroy")

	purego.RegisterLibFunc(&mediaAMCodecGetError, mediaAMCodecHandle, "media_amcodec_get_error")
	purego.RegisterLibFunc(&mediaAMCodecAvailable, mediaAMCodecHandle, "media_amcodec_available")
}

func getAMCodecError() string {
	ptr := mediaAMCodecGetError()
	if ptr == 0 {
		return "unknown error"
	}
	return goStringFromPtr(ptr)
}

// IsHardwareAvailable reports whether libmedia_amcodec loads and finds the
// amstream driver.
func IsHardwareAvailable() bool {
	if err := loadMediaAMCodec(""); err != nil {
		return false
	}
	return mediaAMCodecAvailable() != 0
}

// HardwareSession implements Session on libmedia_amcodec.
type HardwareSession struct {
	mu     sync.Mutex
	handle uint64
	opened bool

	// Persistent output struct for purego on arm64
	picture *mediaAMCodecPicture
}

// NewHardwareSession loads the library (libPath may be empty) and creates
// an unopened session.
func NewHardwareSession(libPath string) (*HardwareSession, error) {
	if err := loadMediaAMCodec(libPath); err != nil {
		return nil, err
	}
	if mediaAMCodecAvailable() == 0 {
		return nil, ErrHardwareMissing
	}
	handle := mediaAMCodecCreate()
	if handle == 0 {
		return nil, fmt.Errorf("media_amcodec_create: %s", getAMCodecError())
	}
	return &HardwareSession{
		handle:  handle,
		picture: &mediaAMCodecPicture{},
	}, nil
}

// OpenDecoder implements Session.
func (s *HardwareSession) OpenDecoder(hints StreamHints) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle == 0 {
		return ErrSessionNotOpened
	}

	format := append([]byte(formatFor(hints.Codec)), 0)
	var extra uintptr
	if len(hints.ExtraData) > 0 {
		extra = uintptr(unsafe.Pointer(&hints.ExtraData[0]))
	}
	var ptsInvalid int32
	if hints.PTSInvalid {
		ptsInvalid = 1
	}

	ret := mediaAMCodecOpen(s.handle,
		uintptr(unsafe.Pointer(&format[0])),
		int32(hints.Width), int32(hints.Height),
		int32(hints.FPSRate), int32(hints.FPSScale),
		extra, int32(len(hints.ExtraData)),
		ptsInvalid, int32(hints.Profile),
	)
	runtime.KeepAlive(format)
	runtime.KeepAlive(hints.ExtraData)

	if ret != mediaAMCodecOK {
		return fmt.Errorf("media_amcodec_open: %s", getAMCodecError())
	}
	s.opened = true
	return nil
}

// CloseDecoder implements Session.
func (s *HardwareSession) CloseDecoder() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle == 0 || !s.opened {
		return nil
	}
	s.opened = false
	if mediaAMCodecClose(s.handle) != mediaAMCodecOK {
		return fmt.Errorf("media_amcodec_close: %s", getAMCodecError())
	}
	return nil
}

// Decode implements Session.
func (s *HardwareSession) Decode(data []byte, dts, pts float64) Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle == 0 || !s.opened {
		return StatusError
	}

	var ptr uintptr
	if len(data) > 0 {
		ptr = uintptr(unsafe.Pointer(&data[0]))
	}
	ret := mediaAMCodecDecode(s.handle, ptr, int32(len(data)), dts, pts)
	runtime.KeepAlive(data)

	if ret < 0 {
		return StatusError
	}
	return Status(ret)
}

// GetPicture implements Session.
func (s *HardwareSession) GetPicture(pic *DecodedPicture) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle == 0 || !s.opened {
		return false
	}

	*s.picture = mediaAMCodecPicture{}
	mediaAMCodecGetPicture(s.handle, uintptr(unsafe.Pointer(s.picture)))
	if s.picture.Result <= 0 {
		return false
	}

	pic.DTS = s.picture.DTS
	pic.PTS = s.picture.PTS
	if s.picture.Width > 0 && s.picture.Height > 0 {
		pic.Width = int(s.picture.Width)
		pic.Height = int(s.picture.Height)
	}
	return true
}

// Reset implements Session.
func (s *HardwareSession) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle != 0 {
		mediaAMCodecReset(s.handle)
	}
}

// SetSpeed implements Session.
func (s *HardwareSession) SetSpeed(speed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle != 0 {
		mediaAMCodecSetSpeed(s.handle, int32(speed))
	}
}

// SetDrain implements Session.
func (s *HardwareSession) SetDrain(drain bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle == 0 {
		return
	}
	var v int32
	if drain {
		v = 1
	}
	mediaAMCodecSetDrain(s.handle, v)
}

// OMXPts implements Session.
func (s *HardwareSession) OMXPts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle == 0 {
		return 0
	}
	return int(mediaAMCodecOMXPts(s.handle))
}

// Duration implements Session.
func (s *HardwareSession) Duration() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle == 0 {
		return 0
	}
	return int(mediaAMCodecDuration(s.handle))
}

// BufferIndex implements Session.
func (s *HardwareSession) BufferIndex() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle == 0 {
		return 0
	}
	return mediaAMCodecBufferIndex(s.handle)
}

// Close destroys the session. CloseDecoder should be called first.
func (s *HardwareSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle != 0 {
		mediaAMCodecDestroy(s.handle)
		s.handle = 0
	}
	return nil
}
