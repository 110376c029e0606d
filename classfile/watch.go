package classfile

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher invalidates parsed class files when they change on disk.
// Only directory entries are watched; archives are read on every miss anyway.
type Watcher struct {
	path *Path
	fs   *fsnotify.Watcher
}

// NewWatcher registers every directory under the classpath's directory entries.
// Changes made after NewWatcher returns are observed by Run.
func (p *Path) NewWatcher() (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{path: p, fs: fw}
	for _, entry := range p.entries {
		info, err := os.Stat(entry)
		if err != nil || !info.IsDir() {
			continue
		}
		if err := w.addTree(entry); err != nil {
			_ = fw.Close()
			return nil, err
		}
	}
	return w, nil
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.fs.Add(path)
		}
		return nil
	})
}

// Run processes filesystem events until ctx is done or the watcher fails.
// changed is called with the internal name of every invalidated class.
func (w *Watcher) Run(ctx context.Context, changed func(name string)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					_ = w.addTree(ev.Name)
					continue
				}
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) &&
				!ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
				continue
			}
			name, ok := w.path.classNameFor(ev.Name)
			if !ok {
				continue
			}
			w.path.Invalidate(name)
			if changed != nil {
				changed(name)
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.fs.Close()
}
