/*
DESCRIPTION
  file.go provides an implementation of the AVDevice interface for MJPEG files.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package file provides an implementation of AVDevice for files.
package file

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/ausocean/utils/logging"
	"github.com/ausocean/vmd/config"
	"github.com/ausocean/vmd/device"
)

// Errors returned by Set and Start.
var (
	ErrNoPath = errors.New("no input path")
	ErrNotSet = errors.New("AVFile has not been set with config")
)

// AVFile is an implementation of the AVDevice interface for a file containing
// video data.
type AVFile struct {
	f         *os.File
	path      string
	loop      bool
	isRunning bool
	log       logging.Logger
	set       bool
	loops     int
	mu        sync.Mutex
}

// New returns a new AVFile.
func New(l logging.Logger) *AVFile { return &AVFile{log: l} }

// NewWith returns a new AVFile with required params provided i.e. the Set
// method does not need to be called.
func NewWith(l logging.Logger, path string, loop bool) *AVFile {
	return &AVFile{log: l, path: path, loop: loop, set: true}
}

// Name returns the name of the device.
func (m *AVFile) Name() string {
	return "File"
}

// Set uses the InputPath and Loop fields of c.
func (m *AVFile) Set(c config.Config) error {
	var errs device.MultiError
	if c.InputPath == "" {
		errs = append(errs, ErrNoPath)
	}
	if errs != nil {
		return errs
	}
	m.mu.Lock()
	m.path = c.InputPath
	m.loop = c.Loop
	m.set = true
	m.mu.Unlock()
	return nil
}

// Start will open the file at the location of the InputPath field of the
// config struct.
func (m *AVFile) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.set {
		return ErrNotSet
	}
	f, err := os.Open(m.path)
	if err != nil {
		return fmt.Errorf("could not open media file: %w", err)
	}
	m.f = f
	m.loops = 0
	m.isRunning = true
	return nil
}

// Stop will close the file such that any further reads will fail.
func (m *AVFile) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.f == nil {
		return nil
	}
	err := m.f.Close()
	if err != nil {
		return err
	}
	m.f = nil
	m.isRunning = false
	return nil
}

// Read implements io.Reader. If Start has not been called, or Start has been
// called and Stop has since been called, an error is returned. If the device
// loops, reaching the end of the file causes reading to continue from the
// start.
func (m *AVFile) Read(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.f == nil {
		return 0, fmt.Errorf("AV file is closed: %w", device.ErrNotStarted)
	}

	n, err := m.f.Read(p)
	if err != io.EOF || !m.loop || n != 0 {
		return n, err
	}

	m.loops++
	m.log.Info("looping input file", "loops", m.loops)
	_, err = m.f.Seek(0, io.SeekStart)
	if err != nil {
		return 0, fmt.Errorf("could not seek to start of file for input loop: %w", err)
	}
	n, err = m.f.Read(p)
	if err != nil {
		return n, fmt.Errorf("could not read after start seek: %w", err)
	}
	return n, nil
}

// Loops returns the number of times the file has been restarted since Start.
func (m *AVFile) Loops() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loops
}

// IsRunning is used to determine if the AVFile device is running.
func (m *AVFile) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.f != nil && m.isRunning
}
