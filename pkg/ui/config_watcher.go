package ui

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime/debug"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/vanderheijden86/philoview/pkg/config"
)

// WatcherState represents the current state of the config watcher.
type WatcherState int

const (
	// WatcherIdle means the watcher is waiting for file changes.
	WatcherIdle WatcherState = iota
	// WatcherReloading means the file is being loaded and validated.
	WatcherReloading
	// WatcherStopped means the watcher has been stopped.
	WatcherStopped
)

func (s WatcherState) String() string {
	switch s {
	case WatcherIdle:
		return "idle"
	case WatcherReloading:
		return "reloading"
	case WatcherStopped:
		return "stopped"
	}
	return fmt.Sprintf("WatcherState(%d)", int(s))
}

// ReloadError is a failed reload. Failures counts consecutive failed
// reloads, including this one.
type ReloadError struct {
	Phase    string // "load" or "validate"
	Cause    error
	At       time.Time
	Failures int
}

func (e ReloadError) Error() string {
	return fmt.Sprintf("config %s: %v (%d in a row)", e.Phase, e.Cause, e.Failures)
}

func (e ReloadError) Unwrap() error {
	return e.Cause
}

// ConfigReloadedMsg carries a freshly loaded and validated config.
type ConfigReloadedMsg struct {
	Config *config.Config
}

// ConfigErrorMsg reports a reload that failed; the running config stays.
type ConfigErrorMsg struct {
	Err *ReloadError
}

// WatcherConfig configures a ConfigWatcher.
type WatcherConfig struct {
	Path          string
	DebounceDelay time.Duration
	// Load defaults to config.Load.
	Load func(path string) (*config.Config, error)
	// Send delivers reload results, normally (*tea.Program).Send.
	Send   func(tea.Msg)
	Logger *zap.SugaredLogger
}

// ConfigWatcher reloads the config file when it changes on disk. Editors
// often replace files by rename, so the parent directory is watched and
// events are filtered by name.
type ConfigWatcher struct {
	path          string
	debounceDelay time.Duration
	load          func(string) (*config.Config, error)
	send          func(tea.Msg)
	log           *zap.SugaredLogger

	mu        sync.RWMutex
	state     WatcherState
	dirty     bool
	started   bool
	lastError *ReloadError
	failures  int

	fsw    *fsnotify.Watcher
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewConfigWatcher creates a watcher. It does not touch the filesystem
// until Start.
func NewConfigWatcher(cfg WatcherConfig) *ConfigWatcher {
	if cfg.DebounceDelay == 0 {
		cfg.DebounceDelay = 200 * time.Millisecond
	}
	if cfg.Load == nil {
		cfg.Load = config.Load
	}
	if cfg.Send == nil {
		cfg.Send = func(tea.Msg) {}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop().Sugar()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &ConfigWatcher{
		path:          filepath.Clean(cfg.Path),
		debounceDelay: cfg.DebounceDelay,
		load:          cfg.Load,
		send:          cfg.Send,
		log:           cfg.Logger,
		state:         WatcherIdle,
		ctx:           ctx,
		cancel:        cancel,
		done:          make(chan struct{}),
	}
}

// Start begins watching. Start is idempotent.
func (w *ConfigWatcher) Start() error {
	w.mu.Lock()
	if w.started || w.state == WatcherStopped {
		w.mu.Unlock()
		return nil
	}
	w.started = true
	w.mu.Unlock()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		close(w.done)
		return fmt.Errorf("config watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		fsw.Close()
		close(w.done)
		return fmt.Errorf("config watcher: watch %s: %w", filepath.Dir(w.path), err)
	}
	w.fsw = fsw
	go w.loop()
	return nil
}

// Stop halts the watcher. Stop is idempotent.
func (w *ConfigWatcher) Stop() {
	w.mu.Lock()
	if w.state == WatcherStopped {
		w.mu.Unlock()
		return
	}
	w.state = WatcherStopped
	wasStarted := w.started
	w.mu.Unlock()

	w.cancel()
	if wasStarted {
		select {
		case <-w.done:
		case <-time.After(2 * time.Second):
		}
	}
}

// State returns the current watcher state.
func (w *ConfigWatcher) State() WatcherState {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

// LastError returns the most recent error (nil if the last reload succeeded).
func (w *ConfigWatcher) LastError() *ReloadError {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastError
}

func (w *ConfigWatcher) loop() {
	defer close(w.done)
	defer w.fsw.Close()

	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-w.ctx.Done():
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounceDelay)
			} else {
				timer.Reset(w.debounceDelay)
			}
			timerC = timer.C

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warnw("config watcher error", "error", err)

		case <-timerC:
			timerC = nil
			w.Reload()
		}
	}
}

// Reload loads the file now and reports the result. A reload that comes
// in while another one runs marks the watcher dirty and reruns after it.
func (w *ConfigWatcher) Reload() {
	w.mu.Lock()
	if w.state != WatcherIdle {
		if w.state == WatcherReloading {
			w.dirty = true
		}
		w.mu.Unlock()
		return
	}
	w.state = WatcherReloading
	w.dirty = false
	w.mu.Unlock()

	var cfg *config.Config
	werr := w.guard("load", func() error {
		var err error
		cfg, err = w.load(w.path)
		return err
	})
	if werr == nil {
		werr = w.guard("validate", cfg.Validate)
	}
	w.noteResult(werr)

	w.mu.Lock()
	if w.state == WatcherStopped {
		w.mu.Unlock()
		return
	}
	wasDirty := w.dirty
	w.state = WatcherIdle
	w.mu.Unlock()

	if werr != nil {
		w.log.Warnw("config reload failed", "path", w.path, "phase", werr.Phase, "error", werr.Cause)
		w.send(ConfigErrorMsg{Err: werr})
	} else {
		w.log.Infow("config reloaded", "path", w.path)
		w.send(ConfigReloadedMsg{Config: cfg})
	}

	if wasDirty {
		w.Reload()
	}
}

// guard runs fn, turning both errors and panics into a ReloadError. A
// broken config must not take the UI down with it.
func (w *ConfigWatcher) guard(phase string, fn func() error) (rerr *ReloadError) {
	defer func() {
		if r := recover(); r != nil {
			rerr = &ReloadError{
				Phase: phase,
				Cause: fmt.Errorf("panic: %v\n%s", r, debug.Stack()),
				At:    time.Now(),
			}
		}
	}()
	if err := fn(); err != nil {
		return &ReloadError{Phase: phase, Cause: err, At: time.Now()}
	}
	return nil
}

func (w *ConfigWatcher) noteResult(rerr *ReloadError) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastError = rerr
	if rerr == nil {
		w.failures = 0
		return
	}
	w.failures++
	rerr.Failures = w.failures
}
