package main

import (
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce collapses editor save bursts into one notification.
const watchDebounce = 500 * time.Millisecond

// watchScript watches the agent script for on-disk changes and calls notify
// for each change burst. The returned func stops the watcher. Watching the
// parent directory survives editors that replace the file on save.
func watchScript(script string, notify func()) (stop func(), err error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(script)); err != nil {
		_ = watcher.Close()
		return nil, err
	}

	target := filepath.Base(script)
	done := make(chan struct{})

	go func() {
		var timer *time.Timer
		var fired <-chan time.Time
		for {
			select {
			case <-done:
				if timer != nil {
					timer.Stop()
				}
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(ev.Name) != target {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
					continue
				}
				if timer == nil {
					timer = time.NewTimer(watchDebounce)
					fired = timer.C
				} else {
					timer.Reset(watchDebounce)
				}
			case <-fired:
				timer = nil
				fired = nil
				notify()
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	return func() {
		close(done)
		_ = watcher.Close()
	}, nil
}
