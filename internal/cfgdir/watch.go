package cfgdir

import (
	"github.com/fsnotify/fsnotify"
)

// WatchOp is a bitmask of filesystem operations observed on a watched path.
type WatchOp uint32

const (
	OpCreate WatchOp = 1 << iota
	OpWrite
	OpRemove
	OpRename
	OpChmod
)

// Event reports a change to a file under the watched configuration
// directory.
type Event struct {
	Path string
	Op   WatchOp
}

// Watcher delivers configuration change events using OS-native file
// notifications.
type Watcher struct {
	w   *fsnotify.Watcher
	evC chan Event
	erC chan error
}

// NewWatcher creates a watcher on dir. Empty dir watches the current
// directory.
func NewWatcher(dir string) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if dir == "" {
		dir = "."
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, err
	}
	cw := &Watcher{w: w, evC: make(chan Event, 128), erC: make(chan error, 1)}
	go cw.loop()
	return cw, nil
}

func (cw *Watcher) loop() {
	defer close(cw.evC)
	for {
		select {
		case ev, ok := <-cw.w.Events:
			if !ok {
				return
			}
			var op WatchOp
			if ev.Op&fsnotify.Create != 0 {
				op |= OpCreate
			}
			if ev.Op&fsnotify.Write != 0 {
				op |= OpWrite
			}
			if ev.Op&fsnotify.Remove != 0 {
				op |= OpRemove
			}
			if ev.Op&fsnotify.Rename != 0 {
				op |= OpRename
			}
			if ev.Op&fsnotify.Chmod != 0 {
				op |= OpChmod
			}
			select {
			case cw.evC <- Event{Path: ev.Name, Op: op}:
			default:
				// Drop rather than stall the notification thread.
			}
		case err, ok := <-cw.w.Errors:
			if !ok {
				return
			}
			select {
			case cw.erC <- err:
			default:
			}
		}
	}
}

// Events returns the change event channel. It is closed when the watcher
// shuts down.
func (cw *Watcher) Events() <-chan Event { return cw.evC }

// Errors returns the watcher error channel.
func (cw *Watcher) Errors() <-chan error { return cw.erC }

// Close stops the watcher.
func (cw *Watcher) Close() error { return cw.w.Close() }
