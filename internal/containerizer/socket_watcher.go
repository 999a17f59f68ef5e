package containerizer

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"discover/pkg/logging"
)

const socketWatcherSubsystem = "SocketWatcher"

const (
	// DefaultSocketPollInterval is the fallback polling interval when fsnotify is not available.
	DefaultSocketPollInterval = 2 * time.Second

	// DefaultSocketDebounce is the time to wait after the last socket change
	// before notifying, so a daemon restart triggers one reconnect.
	DefaultSocketDebounce = 200 * time.Millisecond
)

// SocketWatcherConfig holds configuration for the socket watcher.
type SocketWatcherConfig struct {
	// SocketPath is the runtime's unix socket, e.g. /var/run/docker.sock.
	SocketPath string

	// PollInterval is the fallback polling interval when fsnotify is not available.
	PollInterval time.Duration

	// Debounce delays OnAppear after the last change.
	Debounce time.Duration

	// OnAppear is called when the socket is (re)created.
	OnAppear func()
}

// SocketWatcher notices the runtime socket being (re)created, which happens
// when the daemon restarts, so the connection can be retried right away
// instead of after the current backoff.
// It uses fsnotify on the socket's directory with a fallback to polling.
type SocketWatcher struct {
	mu sync.Mutex

	config SocketWatcherConfig

	// fsWatcher is the fsnotify watcher (may be nil if fsnotify is unavailable)
	fsWatcher *fsnotify.Watcher

	stopCh  chan struct{}
	running bool

	// lastSeen is the socket's identity for fallback polling
	lastSeen os.FileInfo

	debounceTimer *time.Timer
	debounceMu    sync.Mutex
}

// NewSocketWatcher creates a new socket watcher.
func NewSocketWatcher(config SocketWatcherConfig) *SocketWatcher {
	if config.PollInterval == 0 {
		config.PollInterval = DefaultSocketPollInterval
	}
	if config.Debounce == 0 {
		config.Debounce = DefaultSocketDebounce
	}
	return &SocketWatcher{config: config}
}

// Run watches until ctx is cancelled.
func (w *SocketWatcher) Run(ctx context.Context) error {
	if err := w.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	return w.Stop()
}

// Start begins watching the socket.
func (w *SocketWatcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	w.stopCh = make(chan struct{})
	w.running = true

	dir := filepath.Dir(w.config.SocketPath)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logging.Warn(socketWatcherSubsystem, "fsnotify not available, falling back to polling: %v", err)
		go w.pollForChanges(w.stopCh)
		return nil
	}

	if err := watcher.Add(dir); err != nil {
		logging.Warn(socketWatcherSubsystem, "Failed to watch directory %s, falling back to polling: %v", dir, err)
		watcher.Close()
		go w.pollForChanges(w.stopCh)
		return nil
	}
	w.fsWatcher = watcher

	// Capture channels before releasing lock to avoid race conditions
	go w.processEvents(w.stopCh, watcher.Events, watcher.Errors)

	logging.Debug(socketWatcherSubsystem, "Watching %s for runtime restarts", w.config.SocketPath)
	return nil
}

func (w *SocketWatcher) processEvents(stopCh <-chan struct{}, eventsCh <-chan fsnotify.Event, errorsCh <-chan error) {
	for {
		select {
		case <-stopCh:
			return

		case event, ok := <-eventsCh:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.config.SocketPath) {
				continue
			}
			if event.Op&fsnotify.Create == 0 {
				continue
			}
			logging.Debug(socketWatcherSubsystem, "Runtime socket created: %s", event.Name)
			w.triggerDebounced()

		case err, ok := <-errorsCh:
			if !ok {
				return
			}
			logging.Error(socketWatcherSubsystem, err, "fsnotify error")
		}
	}
}

func (w *SocketWatcher) triggerDebounced() {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}

	w.debounceTimer = time.AfterFunc(w.config.Debounce, func() {
		w.mu.Lock()
		running := w.running
		callback := w.config.OnAppear
		w.mu.Unlock()

		if running && callback != nil {
			callback()
		}
	})
}

// pollForChanges implements fallback polling when fsnotify is not available.
func (w *SocketWatcher) pollForChanges(stopCh <-chan struct{}) {
	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	w.lastSeen, _ = os.Stat(w.config.SocketPath)

	for {
		select {
		case <-stopCh:
			return

		case <-ticker.C:
			if w.checkForChanges() {
				logging.Debug(socketWatcherSubsystem, "Runtime socket change detected via polling")
				w.triggerDebounced()
			}
		}
	}
}

// checkForChanges reports a socket that appeared or was replaced since the
// last poll.
func (w *SocketWatcher) checkForChanges() bool {
	info, err := os.Stat(w.config.SocketPath)
	if err != nil {
		w.lastSeen = nil
		return false
	}
	previous := w.lastSeen
	w.lastSeen = info
	return previous == nil || !os.SameFile(previous, info)
}

// Stop gracefully stops the watcher.
func (w *SocketWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil
	}

	w.running = false
	close(w.stopCh)

	w.debounceMu.Lock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
		w.debounceTimer = nil
	}
	w.debounceMu.Unlock()

	if w.fsWatcher != nil {
		if err := w.fsWatcher.Close(); err != nil {
			logging.Warn(socketWatcherSubsystem, "Error closing fsnotify watcher: %v", err)
		}
		w.fsWatcher = nil
	}
	return nil
}

// IsRunning returns whether the watcher is currently active.
func (w *SocketWatcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}
