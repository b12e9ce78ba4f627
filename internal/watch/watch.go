// Package watch monitors a project's package descriptor and invokes a
// callback when it changes, for dev-mode re-resolution.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/pearstate/internal/logfields"
	"git.home.luguber.info/inful/pearstate/internal/pkgjson"
)

// Watcher monitors package descriptor changes in a project directory.
type Watcher struct {
	dir          string
	watcher      *fsnotify.Watcher
	onChange     func(ctx context.Context)
	changeChan   chan struct{}
	debounceTime time.Duration
}

// New creates a Watcher for the descriptor in dir, calling onChange after
// each (debounced) modification.
func New(dir string, onChange func(ctx context.Context)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		fsw.Close()
		return nil, fmt.Errorf("resolve project directory: %w", err)
	}

	return &Watcher{
		dir:          absDir,
		watcher:      fsw,
		onChange:     onChange,
		changeChan:   make(chan struct{}, 1),
		debounceTime: 500 * time.Millisecond,
	}, nil
}

// Run watches until ctx is cancelled. The directory is watched rather than
// the file itself so editors that replace the file atomically still trigger.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watch project directory %s: %w", w.dir, err)
	}
	slog.Info("Watching package descriptor", logfields.Dir(w.dir))

	go w.changeLoop(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != pkgjson.DescriptorFile {
				continue
			}
			switch {
			case event.Op&fsnotify.Write == fsnotify.Write,
				event.Op&fsnotify.Create == fsnotify.Create,
				event.Op&fsnotify.Rename == fsnotify.Rename:
				slog.Debug("Descriptor change detected",
					logfields.Path(event.Name), logfields.Event(event.Op.String()))
				w.trigger()
			case event.Op&fsnotify.Remove == fsnotify.Remove:
				slog.Warn("Package descriptor removed", logfields.Path(event.Name))
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("Descriptor watcher error", logfields.Error(err))
		}
	}
}

func (w *Watcher) changeLoop(ctx context.Context) {
	var timer *time.Timer
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case <-w.changeChan:
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounceTime, func() {
				w.onChange(ctx)
			})
		}
	}
}

func (w *Watcher) trigger() {
	select {
	case w.changeChan <- struct{}{}:
	default:
		// Change already pending
	}
}
