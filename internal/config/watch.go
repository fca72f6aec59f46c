package config

import (
	"errors"

	"github.com/knadh/koanf/providers/file"
)

// Watcher reloads the configuration whenever one of its files changes.
type Watcher struct {
	providers []*file.File
}

// WatchPaths watches paths and calls onChange with the configuration
// reloaded from all of them in order, or with the load error. onChange runs
// on the watcher's goroutine.
func WatchPaths(paths []string, onChange func(*Config, error)) (*Watcher, error) {
	if len(paths) == 0 {
		return nil, ErrNoConfigFile
	}
	w := &Watcher{}
	for _, path := range paths {
		p := file.Provider(path)
		err := p.Watch(func(_ any, err error) {
			if err != nil {
				onChange(nil, err)
				return
			}
			onChange(LoadFrom(paths))
		})
		if err != nil {
			_ = w.Close()
			return nil, err
		}
		w.providers = append(w.providers, p)
	}
	return w, nil
}

// Close stops watching.
func (w *Watcher) Close() error {
	var errs []error
	for _, p := range w.providers {
		if err := p.Unwatch(); err != nil {
			errs = append(errs, err)
		}
	}
	w.providers = nil
	return errors.Join(errs...)
}
