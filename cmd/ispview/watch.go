// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// settle is how long the watcher waits for a burst of editor writes to
// end before rebuilding.
const settle = 150 * time.Millisecond

// change classifies a file system event.
type change struct {
	shaders bool
	params  bool
}

func (c change) any() bool { return c.shaders || c.params }

// classify reports what an event touches. Editors often replace files,
// so create and rename count as writes.
func (a *app) classify(ev fsnotify.Event) change {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
		return change{}
	}
	var c change
	if a.cfg.shaders != "" && filepath.Dir(ev.Name) == filepath.Clean(a.cfg.shaders) &&
		strings.EqualFold(filepath.Ext(ev.Name), ".wgsl") {
		c.shaders = true
	}
	if a.cfg.params != "" && filepath.Clean(ev.Name) == filepath.Clean(a.cfg.params) {
		c.params = true
	}
	return c
}

// watch rebuilds the pipeline on shader or parameter edits until ctx is
// done.
func (a *app) watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("ispview: watcher: %w", err)
	}
	defer func() {
		_ = w.Close()
	}()

	if a.cfg.shaders != "" {
		if err := w.Add(a.cfg.shaders); err != nil {
			return fmt.Errorf("ispview: watch %s: %w", a.cfg.shaders, err)
		}
	}
	if a.cfg.params != "" {
		// Watch the directory so replaced files keep being seen.
		if err := w.Add(filepath.Dir(a.cfg.params)); err != nil {
			return fmt.Errorf("ispview: watch %s: %w", a.cfg.params, err)
		}
	}
	if len(w.WatchList()) == 0 {
		a.log.Warn("nothing to watch: pass -shaders or -params")
		return nil
	}
	a.log.Info("watching for changes", "paths", w.WatchList())

	var (
		pending change
		timer   = time.NewTimer(settle)
	)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			a.log.Info("watch stopped")
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			c := a.classify(ev)
			if !c.any() {
				continue
			}
			a.log.Debug("change detected", "file", ev.Name, "op", ev.Op.String())
			pending.shaders = pending.shaders || c.shaders
			pending.params = pending.params || c.params
			timer.Reset(settle)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			a.log.Warn("watcher error", "err", err)

		case <-timer.C:
			a.reload(pending.shaders, pending.params)
			pending = change{}
		}
	}
}
