package config

import (
	"fmt"

	"github.com/fsnotify/fsnotify"
)

// Watch loads path once, calls onChange with the result, and then watches
// the file for writes, reloading and calling onChange again on every
// change. It mirrors nexus's hot-reload shape: config edits land
// without a process restart.
//
// The returned stop function closes the underlying watcher and must be
// called to release the file descriptor. Reload errors are delivered to
// onErr rather than propagated, since a bad edit mid-session should not
// take down a running compiler; the last good CompilerConfig stays active
// until a valid edit lands.
func Watch(path string, onChange func(*CompilerConfig), onErr func(error)) (stop func() error, err error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	onChange(cfg)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create config watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch config file: %w", err)
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				reloaded, reloadErr := Load(path)
				if reloadErr != nil {
					if onErr != nil {
						onErr(reloadErr)
					}
					continue
				}
				onChange(reloaded)
			case watchErr, ok := <-watcher.Errors:
				if !ok {
					return
				}
				if onErr != nil {
					onErr(watchErr)
				}
			case <-done:
				return
			}
		}
	}()

	return func() error {
		close(done)
		return watcher.Close()
	}, nil
}
