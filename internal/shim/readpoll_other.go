//go:build !unix

package shim

import "errors"

// Read requires poll(2); on platforms without it the GPS descriptor path
// is unavailable.
func (e *Env) Read(fd int, buf []byte) (int, error) {
	return 0, errors.ErrUnsupported
}
