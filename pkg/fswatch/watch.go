/*
Package fswatch turns the OS's asynchronous filesystem notifications into a
single ordered sequence of root-relative paths.

fsnotify delivers events from threads outside our control, in whatever
order the OS reports them. The Watcher funnels them through an unbounded
FIFO queue so that a single consumer can pull changes one at a time with
Next, in arrival order, with no deduplication of rapid repeated edits.
*/
package fswatch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	goSync "sync"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/mirror/pkg/errors"
)

var fs = afero.NewOsFs()

// ErrStopped is returned by Next after Close, once every path that was
// already queued has been delivered.
var ErrStopped = errors.New("watcher stopped")

// OutsideRootError means the OS reported a change at a path that isn't
// under the watched root. The watch can no longer be trusted to be
// complete, so this ends the session rather than being dropped.
type OutsideRootError struct {
	Path string
}

func (err OutsideRootError) Error() string {
	return fmt.Sprintf("watched path %q is outside the root", err.Path)
}

// Watcher watches a directory tree for changes.
type Watcher struct {
	root    string
	watcher *fsnotify.Watcher

	mu     goSync.Mutex
	cond   *goSync.Cond
	queue  []string
	err    error
	closed bool
}

// Watch starts watching the tree rooted at root. The returned Watcher
// yields the root-relative path of every subsequent change through Next
// until Close is called.
func Watch(root string) (*Watcher, error) {
	canonical, err := canonicalize(root)
	if err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.WithContext(err, "create watcher")
	}

	w := newWatcher(canonical)
	w.watcher = watcher
	if err := w.addRecursive(canonical); err != nil {
		// Close the watcher so that we release the file handlers for the
		// previously added paths.
		if err := watcher.Close(); err != nil {
			log.WithError(err).Warn("Failed to close file watcher")
		}
		return nil, errors.WithContext(err, fmt.Sprintf("watch %q", canonical))
	}

	go w.run()
	return w, nil
}

func newWatcher(root string) *Watcher {
	w := &Watcher{root: root}
	w.cond = goSync.NewCond(&w.mu)
	return w
}

// Root returns the canonical absolute path of the watched root. All paths
// yielded by Next are relative to it.
func (w *Watcher) Root() string {
	return w.root
}

// Next blocks until a change is available and returns its root-relative
// path. Paths come out in the order the OS reported them. After Close,
// queued paths are still delivered before Next returns ErrStopped. A
// fatal watch error ends the sequence immediately.
func (w *Watcher) Next() (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for {
		if w.err != nil {
			return "", w.err
		}
		if len(w.queue) > 0 {
			path := w.queue[0]
			w.queue = w.queue[1:]
			return path, nil
		}
		if w.closed {
			return "", ErrStopped
		}
		w.cond.Wait()
	}
}

// Close stops the underlying watch. Paths already queued remain available
// through Next.
func (w *Watcher) Close() error {
	w.stop(nil)
	return nil
}

func (w *Watcher) run() {
	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				w.stop(nil)
				return
			}
			w.handle(ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				w.stop(nil)
				return
			}
			w.stop(errors.WithContext(err, "watch"))
			return
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	rel, ok := relativize(w.root, ev.Name)
	if !ok {
		w.stop(OutsideRootError{Path: ev.Name})
		return
	}
	if rel == "" {
		// Events on the root itself aren't part of the mirrored tree.
		return
	}

	if ev.Op&fsnotify.Create != 0 {
		// fsnotify watches aren't recursive, so a freshly created
		// directory needs its own watch before changes inside it go
		// unseen.
		if fi, err := fs.Stat(ev.Name); err == nil && fi.IsDir() {
			if err := w.addRecursive(ev.Name); err != nil {
				log.WithError(err).WithField("path", ev.Name).Warn(
					"Failed to watch new directory")
			}
		}
	}

	w.push(rel)
}

func (w *Watcher) push(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	w.queue = append(w.queue, path)
	w.cond.Signal()
}

func (w *Watcher) stop(err error) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.err = err
	w.cond.Broadcast()
	w.mu.Unlock()

	if w.watcher != nil {
		if err := w.watcher.Close(); err != nil {
			log.WithError(err).Warn("Failed to close file watcher")
		}
	}
}

// addRecursive walks the tree rooted at dir and adds a watch for every
// directory in it.
func (w *Watcher) addRecursive(dir string) error {
	return afero.Walk(fs, dir, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !fi.IsDir() {
			return nil
		}
		return w.watcher.Add(path)
	})
}

// relativize strips the root prefix from an absolute path reported by the
// watch. It returns "" for the root itself, and ok == false for a path
// outside the root.
func relativize(root, path string) (string, bool) {
	rel, err := filepath.Rel(root, filepath.Clean(path))
	if err != nil {
		return "", false
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	if rel == "." {
		return "", true
	}
	return rel, true
}

func canonicalize(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", errors.WithContext(err, "absolute path")
	}

	// Resolve symlinks so that the reported event paths, which the OS
	// gives us in resolved form, share a prefix with the root.
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.FileNotFound{Path: abs}
		}
		return "", errors.WithContext(err, "resolve root")
	}

	fi, err := fs.Stat(resolved)
	if err != nil {
		return "", errors.WithContext(err, "stat root")
	}
	if !fi.IsDir() {
		return "", errors.New(fmt.Sprintf("%q is not a directory", resolved))
	}
	return resolved, nil
}
