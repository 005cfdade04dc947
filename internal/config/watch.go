package config

import (
	"context"
	"encoding/json"
	"os"
	"sync/atomic"
	"time"

	"github.com/yanun0323/logs"
)

const watchPollInterval = 2 * time.Second

// Watcher hot-reloads RiskFile from disk on mtime change, polling mtime
// rather than using an fsnotify-style watch so a missing or momentarily
// unreadable file never blocks startup. Reads of Current are lock-free.
type Watcher struct {
	path    string
	current atomic.Value // RiskFile
	modTime time.Time
}

// NewWatcher loads path once synchronously (or falls back to
// DefaultRiskFile if path is empty) and returns a Watcher ready for
// Run to be started in a background goroutine.
func NewWatcher(path string) (*Watcher, error) {
	w := &Watcher{path: path}
	if path == "" {
		w.current.Store(DefaultRiskFile())
		return w, nil
	}
	rf, modTime, err := readRiskFile(path)
	if err != nil {
		return nil, err
	}
	w.current.Store(rf)
	w.modTime = modTime
	return w, nil
}

// Current returns the most recently loaded RiskFile.
func (w *Watcher) Current() RiskFile {
	return w.current.Load().(RiskFile)
}

// Run polls path's mtime until ctx is done, reloading Current whenever
// the file changes. A malformed reload is logged and skipped — it
// never clobbers the last good configuration.
func (w *Watcher) Run(ctx context.Context) {
	if w.path == "" {
		return
	}
	ticker := time.NewTicker(watchPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			info, err := os.Stat(w.path)
			if err != nil {
				logs.Errorf("config: stat risk file, err: %+v", err)
				continue
			}
			if !info.ModTime().After(w.modTime) {
				continue
			}
			rf, modTime, err := readRiskFile(w.path)
			if err != nil {
				logs.Errorf("config: reload risk file, err: %+v", err)
				continue
			}
			w.current.Store(rf)
			w.modTime = modTime
			logs.Infof("config: reloaded risk file %s", w.path)
		}
	}
}

func readRiskFile(path string) (RiskFile, time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return RiskFile{}, time.Time{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return RiskFile{}, time.Time{}, err
	}
	var rf RiskFile
	if err := json.Unmarshal(data, &rf); err != nil {
		return RiskFile{}, time.Time{}, err
	}
	return rf, info.ModTime(), nil
}
