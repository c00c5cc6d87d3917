// Package watch notifies the daemon when a target image manifest changes
// on disk, so the next debug session boots the fresh image.
package watch

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher reports rewrites of one manifest file. Editors replace files in
// different ways (in-place write, rename-over, delete and recreate), so
// the watcher observes the parent directory and filters for the target
// name instead of pinning the inode.
type Watcher struct {
	w       *fsnotify.Watcher
	path    string
	changed chan string
	errs    chan error
}

// New starts watching the manifest at path.
func New(path string) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, err
	}
	w := &Watcher{
		w:       fw,
		path:    abs,
		changed: make(chan string, 16),
		errs:    make(chan error, 1),
	}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	for {
		select {
		case ev, ok := <-w.w.Events:
			if !ok {
				return
			}
			if ev.Name != w.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			select {
			case w.changed <- ev.Name:
			default:
			}
		case err, ok := <-w.w.Errors:
			if !ok {
				return
			}
			select {
			case w.errs <- err:
			default:
			}
		}
	}
}

// Changed delivers the manifest path each time it is rewritten.
func (w *Watcher) Changed() <-chan string { return w.changed }

// Errors delivers watcher failures.
func (w *Watcher) Errors() <-chan error { return w.errs }

// Close stops the watcher and its channels.
func (w *Watcher) Close() error { return w.w.Close() }
