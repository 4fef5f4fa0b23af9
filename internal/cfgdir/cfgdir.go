// Package cfgdir resolves the packet forwarder's configuration file paths
// against a host-chosen directory and watches that directory for changes.
// The forwarder opens its configuration by bare name (global_conf.json,
// local_conf.json); the shim routes those opens through a Dir so the host
// can point them anywhere.
package cfgdir

import (
	"os"
	"sync"
)

// Dir prefixes configuration paths with a root directory. The zero value
// resolves against the current directory.
type Dir struct {
	mu     sync.RWMutex
	root   string
	prefix string
}

// SetRoot sets the directory prepended to every resolved path. Empty means
// the current directory.
func (d *Dir) SetRoot(dir string) {
	d.mu.Lock()
	d.root = dir
	if dir == "" {
		d.prefix = ""
	} else {
		d.prefix = dir + "/"
	}
	d.mu.Unlock()
}

// Root returns the configured directory.
func (d *Dir) Root() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.root
}

// Resolve returns the path the forwarder's name maps to.
func (d *Dir) Resolve(name string) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.prefix + name
}

// Open opens a configuration file by forwarder name.
func (d *Dir) Open(name string) (*os.File, error) {
	return os.Open(d.Resolve(name))
}

// Access checks a configuration file by forwarder name. mode follows the
// access(2) convention (F_OK and friends).
func (d *Dir) Access(name string, mode uint32) error {
	return access(d.Resolve(name), mode)
}
