//go:build !unix

package amcodec

func accessRW(string) error {
	return ErrHardwareMissing
}
