package watch

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/stitchworks/stitch/pkg/async"
	"github.com/stitchworks/stitch/pkg/descriptor"
	"github.com/stitchworks/stitch/pkg/patcher"
)

// Kind classifies a debounced filesystem trigger.
type Kind string

const (
	// KindPlugin means at least one patcher plugin file changed in the
	// debounce window; the daemon rescans before repatching.
	KindPlugin Kind = "plugin"
	// KindModule means only target module files changed; the daemon
	// repatches with the existing routing table.
	KindModule Kind = "module"
)

// Watcher watches the plugin and module directories and coalesces bursts of
// filesystem events (a build dropping several files, an rsync of modules)
// into single triggers.
type Watcher struct {
	dirs     []string
	debounce time.Duration
	log      *logrus.Logger

	events chan Kind

	mu            sync.Mutex
	fw            *fsnotify.Watcher
	timer         *time.Timer
	pendingPlugin bool
}

// NewWatcher creates a watcher over the given directories. Duplicate
// directories (plugin dir == module dir) are watched once.
func NewWatcher(dirs []string, debounce time.Duration, log *logrus.Logger) *Watcher {
	if log == nil {
		log = logrus.New()
	}
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	return &Watcher{
		dirs:     dedupe(dirs),
		debounce: debounce,
		log:      log,
		events:   make(chan Kind, 1),
	}
}

// Events returns the trigger channel. One value is delivered per debounce
// window; a window containing any plugin-file change delivers KindPlugin.
func (w *Watcher) Events() <-chan Kind {
	return w.events
}

// Start begins watching. It may be called once; Stop releases the watcher.
func (w *Watcher) Start(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	for _, dir := range w.dirs {
		if err := fw.Add(dir); err != nil {
			fw.Close()
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	w.mu.Lock()
	w.fw = fw
	w.mu.Unlock()

	w.log.Infof("Watching %s for changes", strings.Join(w.dirs, ", "))

	go w.loop(ctx, fw)
	return nil
}

// Stop stops the watcher and any pending debounce timer. Safe to call more
// than once.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	if w.fw == nil {
		return nil
	}
	err := w.fw.Close()
	w.fw = nil
	return err
}

func (w *Watcher) loop(ctx context.Context, fw *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			w.handleEvent(ctx, event)

		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.log.WithError(err).Warn("Watcher error")
		}
	}
}

// handleEvent classifies an event and restarts the debounce window.
func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	// Chmod-only events carry no content change, and debug dumps are the
	// engine's own output; reacting to either would spin the pipeline.
	if event.Op == fsnotify.Chmod || descriptor.IsPatchedPath(event.Name) {
		return
	}

	kind := classify(event.Name)
	w.log.WithFields(logrus.Fields{
		"path": event.Name,
		"op":   event.Op.String(),
		"kind": string(kind),
	}).Debug("Filesystem event")

	w.mu.Lock()
	if kind == KindPlugin {
		w.pendingPlugin = true
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		async.SafeGoNoError(ctx, w.log, 0, "watch trigger", w.flush)
	})
	w.mu.Unlock()
}

// flush delivers one coalesced trigger. The plugin flag stays pending until a
// KindPlugin trigger has actually been delivered, so a busy consumer never
// loses a rescan.
func (w *Watcher) flush(ctx context.Context) {
	w.mu.Lock()
	kind := KindModule
	if w.pendingPlugin {
		kind = KindPlugin
	}
	w.mu.Unlock()

	select {
	case w.events <- kind:
		if kind == KindPlugin {
			w.mu.Lock()
			w.pendingPlugin = false
			w.mu.Unlock()
		}
	case <-ctx.Done():
	}
}

// classify maps a changed path to a trigger kind by the plugin naming
// convention.
func classify(name string) Kind {
	switch {
	case strings.HasSuffix(name, patcher.ObjectSuffix),
		strings.HasSuffix(name, patcher.ArchiveSuffix),
		strings.HasSuffix(name, patcher.ManifestSuffix):
		return KindPlugin
	}
	return KindModule
}

func dedupe(dirs []string) []string {
	seen := make(map[string]struct{}, len(dirs))
	out := make([]string, 0, len(dirs))
	for _, dir := range dirs {
		if _, ok := seen[dir]; ok {
			continue
		}
		seen[dir] = struct{}{}
		out = append(out, dir)
	}
	return out
}
