package config

import (
	"context"
	"hash/fnv"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	logx "dingtask/pkg/logx"
)

// Watch re-runs Load whenever the config file (or its local override)
// changes and hands the validated result to onChange. Used only in daemon
// mode; a run-once process reads config exactly once.
//
// Events are debounced because editors typically emit several writes (and
// often a rename) per save, and a reload with unchanged content is
// suppressed by hashing the raw file bytes. A config that fails to load or
// validate is logged and ignored; the daemon keeps its last good config.
func Watch(ctx context.Context, path string, log logx.Logger, onChange func(*Config)) error {
	dir := filepath.Dir(path)
	names := map[string]bool{
		filepath.Base(path): true,
	}
	if lp := localOverridePath(path); lp != "" {
		names[filepath.Base(lp)] = true
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return err
	}

	var (
		timerMu  sync.Mutex
		timer    *time.Timer
		reloadMu sync.Mutex
		lastHash uint64 = hashFiles(path)
	)

	reload := func() {
		reloadMu.Lock()
		defer reloadMu.Unlock()

		h := hashFiles(path)
		if h != 0 && h == lastHash {
			log.Debug("config unchanged; skipping reload", logx.String("path", path))
			return
		}

		cfg, err := Load(path)
		if err != nil {
			log.Warn("config reload rejected", logx.String("path", path), logx.Err(err))
			return
		}
		lastHash = h
		log.Info("config reloaded", logx.String("path", path))
		onChange(cfg)
	}

	// debounce to avoid partial writes
	schedule := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(250*time.Millisecond, reload)
	}

	for {
		select {
		case <-ctx.Done():
			timerMu.Lock()
			if timer != nil {
				timer.Stop()
			}
			timerMu.Unlock()
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !names[filepath.Base(ev.Name)] {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			log.Debug("config change detected", logx.String("file", ev.Name))
			schedule()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("config watch error", logx.Err(err))
		}
	}
}

// hashFiles hashes the config file plus its local override so an override
// edit also triggers a reload.
func hashFiles(path string) uint64 {
	h := fnv.New64a()
	for _, p := range []string{path, localOverridePath(path)} {
		if p == "" {
			continue
		}
		b, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		_, _ = h.Write(b)
		_, _ = h.Write([]byte{0})
	}
	return h.Sum64()
}
