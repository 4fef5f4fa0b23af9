//go:build !unix

package cfgdir

import "os"

func access(path string, mode uint32) error {
	_, err := os.Stat(path)
	return err
}
