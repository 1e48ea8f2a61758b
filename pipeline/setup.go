/*
DESCRIPTION
  setup.go provides functionality for set up of the processing pipeline.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>
  Alan Noble <alan@ausocean.org>
  Dan Kortschak <dan@ausocean.org>
  Scott Barnard <scott@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package pipeline

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ausocean/utils/ioext"
	"github.com/ausocean/utils/pool"
	"github.com/ausocean/vmd/codec/jpeg"
	"github.com/ausocean/vmd/config"
	"github.com/ausocean/vmd/device"
	"github.com/ausocean/vmd/device/file"
	"github.com/ausocean/vmd/event"
	"github.com/ausocean/vmd/filter"
	"github.com/ausocean/vmd/motion"
)

// Snapshot sender settings.
const (
	snapshotInterval    = time.Second
	snapshotPoolMaxSize = 5 << 20 // 5MiB.
)

// handleErrors logs errors from the pipeline's routines.
func (p *Pipeline) handleErrors() {
	for {
		err := <-p.err
		if err != nil {
			p.cfg.Logger.Error("async error", "error", err.Error())
		}
	}
}

// reset swaps the current config of a Pipeline with the passed
// configuration; checking validity and returning errors if not valid. It then
// sets up the data pipeline accordingly to this configuration.
func (p *Pipeline) reset(c config.Config) error {
	p.cfg.Logger.Debug("setting config")
	err := p.setConfig(c)
	if err != nil {
		return fmt.Errorf("could not set config: %w", err)
	}
	p.cfg.Logger.Info("config set")

	p.cfg.Logger.Debug("setting up pipeline")
	err = p.setupPipeline(ioext.MultiWriteCloser)
	if err != nil {
		return fmt.Errorf("could not set up pipeline: %w", err)
	}
	p.cfg.Logger.Info("finished setting pipeline")
	return nil
}

// setConfig takes a config, checks its validity and then replaces the current
// config.
func (p *Pipeline) setConfig(c config.Config) error {
	p.cfg.Logger = c.Logger
	p.cfg.Logger.Debug("validating config")
	err := c.Validate()
	if err != nil {
		return errors.New("Config struct is bad: " + err.Error())
	}
	p.cfg.Logger.Info("config validated")
	p.cfg = c
	p.cfg.Logger.SetLevel(p.cfg.LogLevel)
	return nil
}

// setupPipeline constructs the data pipeline. Inputs, filters, senders and
// event recording are created and linked based on the current config.
//
// multiWriter will be used to create an ioext.multiWriteCloser so that
// filters can write to multiple senders.
func (p *Pipeline) setupPipeline(multiWriter func(...io.WriteCloser) io.WriteCloser) error {
	var senders []io.WriteCloser
	for _, out := range p.cfg.Outputs {
		switch out {
		case config.OutputFile:
			p.cfg.Logger.Debug("using File output")
			senders = append(senders, newFileSender(p.cfg.Logger, p.cfg.OutputPath, false, p.cfg.MaxFileSize))
		case config.OutputFiles:
			p.cfg.Logger.Debug("using Files output")
			senders = append(senders, newFileSender(p.cfg.Logger, p.cfg.OutputPath, true, p.cfg.MaxFileSize))
		default:
			return fmt.Errorf("unrecognised output type: %v", out)
		}
	}
	p.senders = multiWriter(senders...)

	var observers []filter.Observer
	err := p.setupEvents()
	if err != nil {
		return err
	}
	threshold := int(p.cfg.MotionPixels)
	observers = append(observers, func(active int, _ *motion.Frame) {
		p.tracker.Observe(active, time.Now())
	})

	if p.cfg.SnapshotPath != "" {
		p.cfg.Logger.Debug("using snapshot output", "path", p.cfg.SnapshotPath)

		// Calculate no. of pool buffer elements based on starting element size
		// and config directed max pool buffer size, then create buffer.
		nElements := p.cfg.PoolCapacity / p.cfg.PoolStartElementSize
		writeTimeout := time.Duration(p.cfg.PoolWriteTimeout) * time.Second
		pb := pool.NewBuffer(int(nElements), int(p.cfg.PoolStartElementSize), writeTimeout)
		p.snapshots, err = newSnapshotSender(p.cfg.SnapshotPath, p.cfg.Logger, pb, int(p.cfg.PoolCapacity), writeTimeout, snapshotInterval, threshold)
		if err != nil {
			return fmt.Errorf("could not create snapshot sender: %w", err)
		}
		observers = append(observers, p.snapshots.observe)
	}

	err = p.setupFilters(observers)
	if err != nil {
		return err
	}

	switch p.cfg.Input {
	case config.InputFile:
		p.cfg.Logger.Debug("using file input")
		p.input = file.New(p.cfg.Logger)
	case config.InputManual:
		p.cfg.Logger.Debug("using manual input")
		p.input = device.NewManualInput()
	default:
		return fmt.Errorf("unrecognised input type: %v", p.cfg.Input)
	}
	p.lexTo = jpeg.Lex

	p.cfg.Logger.Debug("configuring input device")
	err = p.input.Set(p.cfg)
	if err != nil {
		return fmt.Errorf("could not configure input device: %w", err)
	}
	p.cfg.Logger.Info("input device configured")
	return nil
}

// setupEvents creates the event tracker, recording to an event store if an
// event database is configured.
func (p *Pipeline) setupEvents() error {
	var sink event.Sink
	p.store = nil
	if p.cfg.EventDB != "" {
		p.cfg.Logger.Debug("opening event store", "path", p.cfg.EventDB)
		s, err := event.Open(p.cfg.EventDB)
		if err != nil {
			return fmt.Errorf("could not open event store: %w", err)
		}
		p.store = s
		sink = s
	}
	p.tracker = event.NewTracker(int(p.cfg.MotionPixels), p.cfg.EventHold, sink, p.cfg.Logger)
	return nil
}

// setupFilters creates the filter chain ending in the senders. Each motion
// mask filter reports to observers.
func (p *Pipeline) setupFilters(observers []filter.Observer) error {
	newMask := func(dst io.WriteCloser) (*filter.Mask, error) {
		m, err := filter.NewMask(dst, p.cfg)
		if err != nil {
			return nil, fmt.Errorf("could not create mask filter: %w", err)
		}
		for _, o := range observers {
			m.Observe(o)
		}
		p.masks = append(p.masks, m)
		return m, nil
	}

	l := len(p.cfg.Filters)
	p.filters = []filter.Filter{filter.NewNoOp(p.senders)}
	if l == 0 {
		return nil
	}

	p.cfg.Logger.Debug("setting up filters", "filters", p.cfg.Filters)
	p.filters = make([]filter.Filter, l)
	dst := p.senders
	for i := l - 1; i >= 0; i-- {
		switch p.cfg.Filters[i] {
		case config.FilterNoOp:
			p.cfg.Logger.Debug("using NoOp filter")
			p.filters[i] = filter.NewNoOp(dst)
		case config.FilterMask:
			p.cfg.Logger.Debug("using Mask filter")
			m, err := newMask(dst)
			if err != nil {
				return err
			}
			p.filters[i] = m
		case config.FilterVariableFPS:
			p.cfg.Logger.Debug("using Variable FPS Mask filter")
			m, err := newMask(dst)
			if err != nil {
				return err
			}
			p.filters[i] = filter.NewVariableFPS(dst, p.cfg.FrameRate, p.cfg.MinFPS, m)
		default:
			return fmt.Errorf("unknown filter: %v", p.cfg.Filters[i])
		}
		dst = p.filters[i]
	}
	p.cfg.Logger.Info("filters set up")
	return nil
}

// processFrom is run as a routine to read from an input data source, lex and
// then send individual frames to the filters.
func (p *Pipeline) processFrom(delay time.Duration) {
	defer p.wg.Done()
	defer close(p.done)

	// Lex data from input device until finished or an error is encountered.
	// For a looping or manual source we remain in this call until
	// input.Stop() is called.
	p.cfg.Logger.Debug("lexing")
	err := p.lexTo(p.filters[0], p.input, delay)
	select {
	case <-p.stop:
		p.cfg.Logger.Info("stopped reading input")
		return
	default:
	}

	switch err {
	case nil, io.EOF:
		p.cfg.Logger.Info("end of file")
	case io.ErrUnexpectedEOF:
		p.cfg.Logger.Info("unexpected EOF from input")
	default:
		p.err <- err
	}
	p.cfg.Logger.Info("finished reading input")

	p.tracker.Close()
}

// sampleFPS records the benchmark frame rate of m every interval until the
// pipeline is stopped.
func (p *Pipeline) sampleFPS(m *filter.Mask, interval time.Duration) {
	defer p.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			fps := m.FPS()
			if fps == 0 {
				continue
			}
			p.stats.add(float64(fps))
			p.cfg.Logger.Debug("mask filter rate", "fps", fps)
		}
	}
}
