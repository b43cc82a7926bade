package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 500 * time.Millisecond

// Watcher reloads the model when artifacts in a DirSource change.
// A reload that fails validation is logged and the previous model keeps serving.
type Watcher struct {
	src      DirSource
	holder   *Holder
	fs       *fsnotify.Watcher
	debounce time.Duration
}

// NewWatcher starts watching src.Dir. Call Run to process events.
func NewWatcher(src DirSource, holder *Holder, debounce time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("init fsnotify: %w", err)
	}
	if err := fsw.Add(src.Dir); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", src.Dir, err)
	}
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	return &Watcher{src: src, holder: holder, fs: fsw, debounce: debounce}, nil
}

// Run blocks until ctx is done, reloading after a quiet period following
// each burst of artifact writes.
func (w *Watcher) Run(ctx context.Context) {
	defer w.fs.Close()

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !isArtifact(ev.Name) || ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(w.debounce)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			slog.Warn("model watcher error", "dir", w.src.Dir, "err", err)
		case <-timer.C:
			w.reload(ctx)
		}
	}
}

func (w *Watcher) reload(ctx context.Context) {
	m, err := Load(ctx, w.src)
	if err != nil {
		slog.Error("model reload failed, keeping previous model", "source", w.src.String(), "err", err)
		return
	}
	w.holder.Swap(m)
	slog.Info("model reloaded", "source", w.src.String(), "vocab_size", m.VocabularySize(), "classes", len(m.labels))
}

func isArtifact(name string) bool {
	base := filepath.Base(name)
	for _, a := range Artifacts {
		if base == a {
			return true
		}
	}
	return false
}
