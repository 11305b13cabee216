package intake

import (
	"context"
	"fmt"
	"os"
	"time"

	"ffcompress/ffmpeg"

	"github.com/fsnotify/fsnotify"
	"github.com/hashicorp/go-hclog"
)

// SubmitFunc queues one file.
type SubmitFunc func(path string) error

// Watcher submits media files that appear in a directory. A file is only
// submitted once it has seen no writes for the settle interval, so copies
// still in progress are not picked up half written.
type Watcher struct {
	dir     string
	settle  time.Duration
	submit  SubmitFunc
	log     hclog.Logger
	watcher *fsnotify.Watcher
}

func NewWatcher(dir string, settle time.Duration, submit SubmitFunc, log hclog.Logger) (*Watcher, error) {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	if settle <= 0 {
		settle = 2 * time.Second
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	return &Watcher{dir: dir, settle: settle, submit: submit, log: log.Named("watch"), watcher: fw}, nil
}

// Run processes filesystem events until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()
	w.log.Info("watching for new videos", "dir", w.dir, "settle", w.settle)

	pending := map[string]time.Time{}
	tick := w.settle / 4
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			switch {
			case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
				delete(pending, ev.Name)
			case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
				if IsMedia(ev.Name) && !ffmpeg.IsDerived(ev.Name) {
					pending[ev.Name] = time.Now()
				}
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watcher error", "error", err)

		case now := <-ticker.C:
			for path, last := range pending {
				if now.Sub(last) < w.settle {
					continue
				}
				delete(pending, path)
				info, err := os.Stat(path)
				if err != nil || !info.Mode().IsRegular() {
					continue
				}
				if err := w.submit(path); err != nil {
					w.log.Error("could not queue file", "path", path, "error", err)
					continue
				}
				w.log.Info("queued new file", "path", path)
			}
		}
	}
}
