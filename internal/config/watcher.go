package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// debounce windows before re-applying a detected .env change; 0 in
// tests so reload assertions don't have to sleep.
var debounceEnvWrite = 150 * time.Millisecond

// ConfigWatcher watches the .env file Load resolved and re-applies
// environment overrides onto a live *Config when it changes.
type ConfigWatcher struct {
	cfg         *Config
	envPath     string
	watcher     *fsnotify.Watcher
	lastEnvHash string
	done        chan struct{}
}

// NewConfigWatcher resolves the same .env path Load would use and
// starts watching its parent directory (fsnotify watches directories,
// not bare files, so edits that replace-then-rename the file are still
// observed).
func NewConfigWatcher(cfg *Config) (*ConfigWatcher, error) {
	dataPath := os.Getenv("AXENGINE_DATA_DIR")
	if dataPath == "" {
		dataPath = defaultDataDir
	}
	envPath := filepath.Join(dataPath, ".env")

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filepath.Dir(envPath)); err != nil {
		_ = w.Close()
		return nil, err
	}

	cw := &ConfigWatcher{
		cfg:         cfg,
		envPath:     envPath,
		watcher:     w,
		lastEnvHash: hashEnvFile(envPath),
		done:        make(chan struct{}),
	}
	go cw.handleEvents(w.Events, w.Errors)
	return cw, nil
}

func (cw *ConfigWatcher) handleEvents(events <-chan fsnotify.Event, errs <-chan error) {
	for {
		select {
		case <-cw.done:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Name != cw.envPath {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if debounceEnvWrite > 0 {
				time.Sleep(debounceEnvWrite)
			}
			cw.reload()
		case err, ok := <-errs:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("config: watcher error")
		}
	}
}

func (cw *ConfigWatcher) reload() {
	hash := hashEnvFile(cw.envPath)
	if hash == cw.lastEnvHash {
		return
	}
	cw.lastEnvHash = hash

	reloaded, err := Load()
	if err != nil {
		log.Error().Err(err).Msg("config: reload failed")
		return
	}

	Mu.Lock()
	defer Mu.Unlock()
	*cw.cfg = *reloaded
	log.Info().Str("path", cw.envPath).Msg("config: reloaded from .env change")
}

// Stop terminates the watcher goroutine and releases the fsnotify handle.
func (cw *ConfigWatcher) Stop() {
	close(cw.done)
	_ = cw.watcher.Close()
}
