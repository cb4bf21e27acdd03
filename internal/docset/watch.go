package docset

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Op describes a file set change.
type Op int

const (
	OpUpsert Op = iota
	OpRemove
)

// Watcher delivers matcher-filtered change notifications for files under a
// project root. Directories created while watching are registered as they
// appear.
type Watcher struct {
	fs   *fsnotify.Watcher
	root string
	m    *Matcher
}

// NewWatcher registers root and every non-skipped subdirectory.
func NewWatcher(root string, m *Matcher) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{fs: fw, root: root, m: m}
	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		name := d.Name()
		if path != root {
			if _, skip := skipDirs[name]; skip || strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
		}
		return fw.Add(path)
	})
	if err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

// Run blocks delivering notifications until ctx is done or the underlying
// watcher closes. notify receives root-relative slash paths.
func (w *Watcher) Run(ctx context.Context, notify func(Op, string)) error {
	defer w.fs.Close()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			return err
		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if ev.Op.Has(fsnotify.Create) {
				if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
					_ = w.fs.Add(ev.Name)
					continue
				}
			}
			rel, err := filepath.Rel(w.root, ev.Name)
			if err != nil {
				continue
			}
			rel = filepath.ToSlash(rel)
			if !w.m.Matches(rel) {
				continue
			}
			switch {
			case ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename):
				notify(OpRemove, rel)
			case ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Write):
				notify(OpUpsert, rel)
			}
		}
	}
}
