package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/giantswarm/toolgate/internal/oauth"
	"github.com/giantswarm/toolgate/pkg/logging"
)

// DefaultDebounceInterval is the time to wait after the last change before
// secrets are re-read.
const DefaultDebounceInterval = 500 * time.Millisecond

// SecretUpdater receives rotated client secrets.
type SecretUpdater interface {
	UpdateClientSecret(provider string, secret oauth.RedactedToken) error
}

// SecretWatcher re-reads clientSecretFile entries when they change on disk
// and hands the new values to a SecretUpdater.
//
// Directories are watched rather than files so that atomic replacements,
// such as mounted Kubernetes secrets swapping their ..data symlink, are seen.
type SecretWatcher struct {
	mu sync.Mutex

	updater  SecretUpdater
	debounce time.Duration

	// files maps each watched secret file to the providers reading it.
	files map[string][]string
	// last holds the value most recently delivered per file.
	last map[string]string

	fsWatcher     *fsnotify.Watcher
	stopCh        chan struct{}
	running       bool
	debounceTimer *time.Timer
}

// NewSecretWatcher watches the secret files of providers. Providers with an
// inline secret are ignored.
func NewSecretWatcher(providers []ProviderConfig, updater SecretUpdater) *SecretWatcher {
	w := &SecretWatcher{
		updater:  updater,
		debounce: DefaultDebounceInterval,
		files:    make(map[string][]string),
		last:     make(map[string]string),
	}
	for _, p := range providers {
		if p.ClientSecretFile == "" {
			continue
		}
		path := filepath.Clean(p.ClientSecretFile)
		w.files[path] = append(w.files[path], p.Name)
		w.last[path] = p.Secret.Value()
	}
	return w
}

// Files returns the number of watched secret files.
func (w *SecretWatcher) Files() int {
	return len(w.files)
}

// Start begins watching. It is a no-op when no provider uses a secret file.
func (w *SecretWatcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running || len(w.files) == 0 {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	dirs := map[string]bool{}
	for path := range w.files {
		dirs[filepath.Dir(path)] = true
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return err
		}
	}

	w.fsWatcher = watcher
	w.stopCh = make(chan struct{})
	w.running = true

	go w.processEvents(watcher.Events, watcher.Errors, w.stopCh)

	logging.Info("SecretWatcher", "Watching %d client secret files", len(w.files))
	return nil
}

func (w *SecretWatcher) processEvents(eventsCh <-chan fsnotify.Event, errorsCh <-chan error, stopCh <-chan struct{}) {
	for {
		select {
		case <-stopCh:
			return

		case event, ok := <-eventsCh:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			logging.Debug("SecretWatcher", "Change in %s", event.Name)
			w.reloadDebounced()

		case err, ok := <-errorsCh:
			if !ok {
				return
			}
			logging.Error("SecretWatcher", err, "fsnotify error")
		}
	}
}

func (w *SecretWatcher) reloadDebounced() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debounce, w.Reload)
}

// Reload re-reads every secret file and delivers the ones that changed. A
// file that cannot be read keeps the previous secret in place.
func (w *SecretWatcher) Reload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	for path, providers := range w.files {
		secret, err := ReadSecretFile(path)
		if err != nil {
			logging.Warn("SecretWatcher", "Keeping previous secret, %v", err)
			continue
		}
		if secret.IsEmpty() || secret.Value() == w.last[path] {
			continue
		}
		w.last[path] = secret.Value()

		for _, name := range providers {
			if err := w.updater.UpdateClientSecret(name, secret); err != nil {
				logging.Error("SecretWatcher", err, "Failed to rotate secret of provider %s", name)
				continue
			}
			logging.Info("SecretWatcher", "Rotated client secret of provider %s", name)
		}
	}
}

// Stop ends watching. It is safe to call more than once.
func (w *SecretWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil
	}
	w.running = false
	close(w.stopCh)

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
		w.debounceTimer = nil
	}

	err := w.fsWatcher.Close()
	w.fsWatcher = nil
	return err
}
