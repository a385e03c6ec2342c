package watcher

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// startNotify watches the root and every directory below it. fsnotify is not
// recursive, so directories created later are added from Run.
func (w *Watcher) startNotify() (*fsnotify.Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	err = filepath.WalkDir(w.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fw.Add(p)
		}
		return nil
	})
	if err != nil {
		fw.Close()
		return nil, err
	}
	return fw, nil
}

func (w *Watcher) addDir(name string) {
	if w.fw == nil {
		return
	}
	info, err := os.Stat(name)
	if err != nil || !info.IsDir() {
		return
	}
	if err := w.fw.Add(name); err != nil {
		w.log.Warn("watcher_fsnotify_add_error", "dir", name, "error", err.Error())
	}
}
