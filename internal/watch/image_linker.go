// Package watch keeps linked image elements in sync with files on disk.
package watch

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"slides/internal/domain"
	"slides/internal/export"
)

// DefaultDebounce is how long a file must be quiet before it is re-read.
const DefaultDebounce = 200 * time.Millisecond

// Link ties an image element to a file.
type Link struct {
	SlideID   int              `json:"slideId"`
	ElementID domain.ElementID `json:"elementId"`
	Path      string           `json:"path"`
}

// ImageChangedHandler receives the re-embedded file for a link.
type ImageChangedHandler func(link Link, dataURL string)

// ImageLinker watches linked image files and re-embeds them when they are
// written.
type ImageLinker struct {
	watcher  *fsnotify.Watcher
	onChange ImageChangedHandler
	logger   *zap.Logger
	debounce time.Duration

	mu    sync.RWMutex
	links map[domain.ElementID]Link
	dirs  map[string]int // watched dir -> number of links in it

	done chan struct{}
}

type Option func(*ImageLinker)

func WithDebounce(d time.Duration) Option {
	return func(l *ImageLinker) { l.debounce = d }
}

// NewImageLinker starts the watch loop. Close stops it.
func NewImageLinker(onChange ImageChangedHandler, logger *zap.Logger, opts ...Option) (*ImageLinker, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	l := &ImageLinker{
		watcher:  watcher,
		onChange: onChange,
		logger:   logger,
		debounce: DefaultDebounce,
		links:    make(map[domain.ElementID]Link),
		dirs:     make(map[string]int),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}

	go l.watchLoop()
	return l, nil
}

// Link starts watching path for the element. An element has at most one
// link; linking again replaces the previous path.
func (l *ImageLinker) Link(slideID int, elementID domain.ElementID, path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(absPath)

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.dirs[dir] == 0 {
		// fsnotify watches directories; editors often save by rename.
		if err := l.watcher.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	if old, ok := l.links[elementID]; ok {
		l.releaseLocked(old)
	}
	l.links[elementID] = Link{SlideID: slideID, ElementID: elementID, Path: absPath}
	l.dirs[dir]++
	return nil
}

// Unlink stops watching the element's file. Unknown ids are ignored.
func (l *ImageLinker) Unlink(elementID domain.ElementID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if old, ok := l.links[elementID]; ok {
		delete(l.links, elementID)
		l.releaseLocked(old)
	}
}

// Sync makes the links match the slides: every image element with a
// Source is watched and every other link is dropped. It returns the
// number of links that could not be started.
func (l *ImageLinker) Sync(slides []domain.Slide) (failed int) {
	want := make(map[domain.ElementID]Link)
	for _, sl := range slides {
		for _, el := range sl.Elements {
			if el.Kind != domain.KindImage || el.Source == "" {
				continue
			}
			absPath, err := filepath.Abs(el.Source)
			if err != nil {
				absPath = el.Source
			}
			want[el.ID] = Link{SlideID: sl.ID, ElementID: el.ID, Path: absPath}
		}
	}

	l.mu.Lock()
	var stale []domain.ElementID
	for id, link := range l.links {
		if w, ok := want[id]; !ok || w != link {
			stale = append(stale, id)
		}
	}
	for _, id := range stale {
		l.releaseLocked(l.links[id])
		delete(l.links, id)
	}
	var missing []Link
	for id, w := range want {
		if _, ok := l.links[id]; !ok {
			missing = append(missing, w)
		}
	}
	l.mu.Unlock()

	for _, link := range missing {
		if err := l.Link(link.SlideID, link.ElementID, link.Path); err != nil {
			l.logger.Debug("image linker: link failed", zap.String("path", link.Path), zap.Error(err))
			failed++
		}
	}
	return failed
}

// Links returns the active links.
func (l *ImageLinker) Links() []Link {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Link, 0, len(l.links))
	for _, link := range l.links {
		out = append(out, link)
	}
	return out
}

// Close stops the watcher and waits for the loop to exit.
func (l *ImageLinker) Close() error {
	err := l.watcher.Close()
	<-l.done
	return err
}

func (l *ImageLinker) releaseLocked(link Link) {
	dir := filepath.Dir(link.Path)
	l.dirs[dir]--
	if l.dirs[dir] <= 0 {
		delete(l.dirs, dir)
		_ = l.watcher.Remove(dir)
	}
}

func (l *ImageLinker) linksFor(path string) []Link {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []Link
	for _, link := range l.links {
		if link.Path == path {
			out = append(out, link)
		}
	}
	return out
}

func (l *ImageLinker) watchLoop() {
	defer close(l.done)

	pending := map[string]struct{}{}
	flush := time.NewTimer(time.Hour)
	flush.Stop()
	defer flush.Stop()

	for {
		select {
		case event, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			absPath, _ := filepath.Abs(event.Name)
			if len(l.linksFor(absPath)) == 0 {
				continue
			}
			pending[absPath] = struct{}{}
			flush.Reset(l.debounce)

		case <-flush.C:
			for path := range pending {
				l.reembed(path)
			}
			pending = map[string]struct{}{}

		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			l.logger.Warn("image linker: watcher error", zap.Error(err))
		}
	}
}

func (l *ImageLinker) reembed(path string) {
	links := l.linksFor(path)
	if len(links) == 0 {
		return
	}
	dataURL, err := export.FileDataURL(path)
	if err != nil {
		l.logger.Warn("image linker: re-embed failed", zap.String("path", path), zap.Error(err))
		return
	}
	for _, link := range links {
		l.logger.Debug("image linker: file changed",
			zap.String("path", path), zap.Int64("element", int64(link.ElementID)))
		if l.onChange != nil {
			l.onChange(link, dataURL)
		}
	}
}
