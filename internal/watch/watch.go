// Package watch serves live workspace status over a WebSocket, so an
// editor or dashboard can reflect staged/modified/untracked state without
// polling `pando status` itself. Grounded on the corpus's
// fsnotify-debounced watch loop (internal/gitcore's sibling server
// package, watcher.go: startWatcher/watchLoop/statusPollLoop), narrowed
// from a multi-repo HTTP+WebSocket server to a single workspace's status
// feed (SPEC_FULL.md §10.9).
package watch

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/pandonetwork/pando/internal/core"
)

const (
	debounceTime       = 100 * time.Millisecond
	statusPollInterval = 2 * time.Second
)

// Watcher recomputes and broadcasts a workspace's derived status
// whenever the working directory changes.
type Watcher struct {
	ws     *core.Workspace
	hub    *hub
	logger *slog.Logger
}

// New returns a Watcher over ws.
func New(ws *core.Workspace, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{ws: ws, hub: newHub(), logger: logger}
}

// Handler serves WebSocket upgrades at the path it's mounted on.
func (w *Watcher) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(rw, r, nil)
		if err != nil {
			w.logger.Error("watch: upgrade failed", "err", err)
			return
		}
		initial, err := w.statusJSON()
		if err != nil {
			w.logger.Error("watch: initial status failed", "err", err)
		}
		serveClient(w.hub, conn, initial)
	}
}

func (w *Watcher) statusJSON() ([]byte, error) {
	sets, err := w.ws.Status()
	if err != nil {
		return nil, err
	}
	return json.Marshal(sets)
}

func (w *Watcher) broadcastStatus() {
	data, err := w.statusJSON()
	if err != nil {
		w.logger.Error("watch: recompute status failed", "err", err)
		return
	}
	w.hub.broadcast(data)
}

// Run watches the workspace root for filesystem changes and broadcasts
// updated status until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	addRecursive(fsw, w.ws.Layout.Root, w.logger)

	go w.pollLoop(ctx)
	w.watchLoop(ctx, fsw)
	return nil
}

// addRecursive adds watches on root and every subdirectory, skipping the
// object store (large, irrelevant to working-tree status).
func addRecursive(fsw *fsnotify.Watcher, root string, logger *slog.Logger) {
	_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil //nolint:nilerr // skip unreadable entries
		}
		if !info.IsDir() {
			return nil
		}
		if strings.Contains(filepath.ToSlash(path), "/.pando/ipfs") {
			return filepath.SkipDir
		}
		if addErr := fsw.Add(path); addErr != nil {
			logger.Warn("watch: failed to watch directory", "dir", path, "err", addErr)
		}
		return nil
	})
}

func (w *Watcher) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(statusPollInterval)
	defer ticker.Stop()

	var last []byte
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cur, err := w.statusJSON()
			if err != nil {
				continue
			}
			if string(cur) == string(last) {
				continue
			}
			last = cur
			w.hub.broadcast(cur)
		}
	}
}

func (w *Watcher) watchLoop(ctx context.Context, fsw *fsnotify.Watcher) {
	var debounceTimer *time.Timer

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if shouldIgnoreEvent(event) {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if addErr := fsw.Add(event.Name); addErr != nil {
						w.logger.Warn("watch: failed to watch new directory", "dir", event.Name, "err", addErr)
					}
				}
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(debounceTime, func() {
				if ctx.Err() != nil {
					return
				}
				w.broadcastStatus()
			})

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("watch: fsnotify error", "err", err)
		}
	}
}

func shouldIgnoreEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return true
	}
	path := filepath.ToSlash(event.Name)
	if strings.Contains(path, "/.pando/ipfs") {
		return true
	}
	if strings.HasSuffix(path, ".tmp") || strings.Contains(filepath.Base(path), ".tmp-") {
		return true
	}
	return false
}
