/*
DESCRIPTION
  params.go provides loading, saving and watching of the motion parameter
  file, so that parameters can be changed while vmd is running.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/ausocean/utils/logging"
	"github.com/ausocean/vmd/motion"
)

// loadParams reads motion parameters from the file at path.
func loadParams(path string) (motion.Params, error) {
	f, err := os.Open(path)
	if err != nil {
		return motion.Params{}, err
	}
	defer f.Close()
	return motion.ReadParams(f)
}

// saveParams writes p to the file at path, replacing it atomically.
func saveParams(path string, p motion.Params) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".params-*")
	if err != nil {
		return err
	}
	err = motion.WriteParams(tmp, p)
	if err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	err = tmp.Close()
	if err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// paramsWatcher applies the motion parameters in a file each time the file
// changes.
type paramsWatcher struct {
	path    string
	log     logging.Logger
	watcher *fsnotify.Watcher
	apply   func(motion.Params) error
}

// newParamsWatcher returns a paramsWatcher for the file at path. The file's
// directory is watched so that files replaced by rename are seen.
func newParamsWatcher(path string, l logging.Logger, apply func(motion.Params) error) (*paramsWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("could not create watcher: %w", err)
	}
	path = filepath.Clean(path)
	err = w.Add(filepath.Dir(path))
	if err != nil {
		w.Close()
		return nil, fmt.Errorf("could not watch params directory: %w", err)
	}
	return &paramsWatcher{path: path, log: l, watcher: w, apply: apply}, nil
}

// run handles file events until the watcher is closed.
func (pw *paramsWatcher) run() {
	for {
		select {
		case e, ok := <-pw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(e.Name) != pw.path || !(e.Has(fsnotify.Write) || e.Has(fsnotify.Create)) {
				continue
			}
			pw.log.Debug("params file changed", "op", e.Op.String())
			pw.reload()
		case err, ok := <-pw.watcher.Errors:
			if !ok {
				return
			}
			pw.log.Warning("params watcher error", "error", err.Error())
		}
	}
}

// reload reads and applies the params file.
func (pw *paramsWatcher) reload() {
	p, err := loadParams(pw.path)
	if err != nil {
		pw.log.Warning("could not read params file", "path", pw.path, "error", err.Error())
		return
	}
	err = pw.apply(p)
	if err != nil {
		pw.log.Warning("could not apply params", "path", pw.path, "error", err.Error())
		return
	}
	pw.log.Info("params reloaded", "path", pw.path)
}

// close stops watching, causing run to return.
func (pw *paramsWatcher) close() error { return pw.watcher.Close() }
