//go:build darwin || linux

package amcodec

import (
	"bytes"
	"os"
	"path/filepath"
	"unsafe"
)

// maxNativeString caps strings read from libmedia_amcodec; its error buffer
// is 256 bytes.
const maxNativeString = 256

// goStringFromPtr copies a NUL-terminated string owned by the native
// library. Strings without a terminator inside maxNativeString are cut.
func goStringFromPtr(ptr uintptr) string {
	if ptr == 0 {
		return ""
	}
	buf := make([]byte, 0, maxNativeString)
	for i := 0; i < maxNativeString; i++ {
		b := *(*byte)(unsafe.Add(unsafe.Pointer(ptr), i))
		if b == 0 {
			break
		}
		buf = append(buf, b)
	}
	return string(bytes.TrimSpace(buf))
}

// findModuleRoot returns the nearest directory at or above the working
// directory holding a go.mod, or "" outside a module. Development builds of
// the shim land under <root>/build.
func findModuleRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if fi, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil && !fi.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
