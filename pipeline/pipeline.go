/*
NAME
  pipeline.go

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

// Package pipeline provides an API for reading MJPEG video, detecting motion
// in it, and writing frames with motion, mask snapshots and motion events.
package pipeline

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ausocean/vmd/config"
	"github.com/ausocean/vmd/device"
	"github.com/ausocean/vmd/event"
	"github.com/ausocean/vmd/filter"
	"github.com/ausocean/vmd/motion"
)

// Pipeline provides methods to control a motion detection session; providing
// methods to start, stop and change the state of an instance using the Config
// struct.
type Pipeline struct {
	// cfg holds the Pipeline configuration.
	cfg config.Config

	// mu guards running, masks and cfg against SetParams, which may be
	// called from other routines.
	mu sync.Mutex

	// input will capture video from which we can read data.
	input device.AVDevice

	// lexTo splits the input stream into JPEG frames.
	lexTo func(dest io.Writer, src io.Reader, delay time.Duration) error

	// filters will hold the filters that will be written to from the lexer.
	filters []filter.Filter

	// masks holds the motion mask filters within filters.
	masks []*filter.Mask

	// senders will hold the multiWriteCloser that writes to senders from the
	// filters.
	senders io.WriteCloser

	// snapshots writes motion mask images, if configured.
	snapshots *snapshotSender

	// tracker groups motion frames into events, which are recorded to store
	// if configured.
	tracker *event.Tracker
	store   *event.Store

	// stats holds benchmark frame rate samples.
	stats fpsStats

	// running is used to keep track of the running state between methods.
	running bool

	// wg will be used to wait for any processing routines to finish.
	wg sync.WaitGroup

	// err will channel errors from routines to the handle errors routine.
	err chan error

	// stop is used to signal stopping to routines.
	stop chan struct{}

	// done is closed when input processing finishes.
	done chan struct{}
}

// New returns a pointer to a new Pipeline with the desired configuration,
// and/or an error if construction of the new instance was not successful.
func New(c config.Config) (*Pipeline, error) {
	if c.Logger == nil {
		return nil, errors.New("config must have a logger")
	}
	p := Pipeline{err: make(chan error)}
	err := p.setConfig(c)
	if err != nil {
		return nil, fmt.Errorf("could not set config, failed with error: %w", err)
	}
	go p.handleErrors()
	return &p, nil
}

// Config returns a copy of the pipeline's current config.
func (p *Pipeline) Config() config.Config {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg
}

// Write writes MJPEG data to a pipeline using manual input.
func (p *Pipeline) Write(b []byte) (int, error) {
	mi, ok := p.input.(*device.ManualInput)
	if !ok {
		return 0, errors.New("cannot write to anything but ManualInput")
	}
	return mi.Write(b)
}

// Start invokes a Pipeline to start processing video from the configured
// input and writing to the configured outputs.
func (p *Pipeline) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		p.cfg.Logger.Warning("start called, but pipeline already running")
		return nil
	}

	p.stop = make(chan struct{})

	p.cfg.Logger.Debug("resetting pipeline")
	err := p.reset(p.cfg)
	if err != nil {
		p.closeOutputs()
		return err
	}
	p.cfg.Logger.Info("pipeline reset")

	// Calculate delay between frames if the FileFPS != 0. Otherwise use no delay.
	d := time.Duration(0)
	if p.cfg.FileFPS != 0 {
		d = time.Duration(1000/p.cfg.FileFPS) * time.Millisecond
	}

	p.cfg.Logger.Debug("starting input")
	err = p.input.Start()
	if err != nil {
		p.closeOutputs()
		return fmt.Errorf("could not start input device: %w", err)
	}
	p.cfg.Logger.Info("input started")

	p.cfg.Logger.Debug("starting input processing routine")
	p.done = make(chan struct{})
	p.wg.Add(1)
	go p.processFrom(d)

	if p.cfg.Benchmark && len(p.masks) != 0 {
		p.wg.Add(1)
		go p.sampleFPS(p.masks[0], time.Second)
	}

	p.running = true
	return nil
}

// Stop closes down the pipeline. This closes the input, filters, senders and
// event store.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		p.cfg.Logger.Warning("stop called but pipeline isn't running")
		return
	}

	close(p.stop)

	p.cfg.Logger.Debug("stopping input")
	err := p.input.Stop()
	if err != nil {
		p.cfg.Logger.Error("could not stop input", "error", err.Error())
	} else {
		p.cfg.Logger.Info("input stopped")
	}

	p.cfg.Logger.Debug("waiting for routines to finish")
	p.wg.Wait()
	p.cfg.Logger.Info("routines finished")

	p.closeOutputs()

	if p.cfg.Benchmark {
		s := p.stats.summary()
		p.cfg.Logger.Info("benchmark", "samples", s.Samples, "mean", s.Mean, "stddev", s.StdDev, "median", s.Median, "min", s.Min, "max", s.Max)
	}

	p.running = false
}

// closeOutputs closes the filters, senders and event recording set up by
// reset.
func (p *Pipeline) closeOutputs() {
	for _, f := range p.filters {
		err := f.Close()
		if err != nil {
			p.cfg.Logger.Error("failed to close filter", "error", err.Error())
		}
	}
	p.filters, p.masks = nil, nil

	if p.senders != nil {
		err := p.senders.Close()
		if err != nil {
			p.cfg.Logger.Error("failed to close senders", "error", err.Error())
		} else {
			p.cfg.Logger.Info("senders closed")
		}
		p.senders = nil
	}

	if p.snapshots != nil {
		p.snapshots.Close()
		p.snapshots = nil
	}

	if p.tracker != nil {
		p.tracker.Close()
	}

	if p.store != nil {
		err := p.store.Close()
		if err != nil {
			p.cfg.Logger.Error("failed to close event store", "error", err.Error())
		}
		p.store = nil
	}
}

// Running returns true if the pipeline has been started and not stopped.
func (p *Pipeline) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Done returns a channel that is closed when the current run has finished
// reading its input, either because the input ended or Stop was called. It
// returns nil if the pipeline has never been started.
func (p *Pipeline) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

// Update takes a map of variables and their values and edits the current config
// if the variables are recognised as valid parameters. A running pipeline is
// stopped, and must be started again for changes to take effect.
func (p *Pipeline) Update(vars map[string]string) error {
	if p.Running() {
		p.cfg.Logger.Debug("pipeline running; stopping for re-config")
		p.Stop()
		p.cfg.Logger.Info("pipeline was running; stopped for re-config")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.cfg.Logger.Debug("checking vars", "vars", vars)
	p.cfg.Update(vars)
	p.cfg.Logger.Info("finished reconfig")
	p.cfg.Logger.Debug("config changed", "config", p.cfg)
	return nil
}

// SetParams changes the motion parameters of a pipeline without stopping it.
// If params is invalid an error is returned and nothing is changed.
func (p *Pipeline) SetParams(params motion.Params) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	// Check params before changing any filter.
	err := motion.New(motion.DownscaleRatio, motion.DownscaleRatio, float64(p.cfg.FrameRate), false).Load(params)
	if err != nil {
		return err
	}
	for _, m := range p.masks {
		err = m.SetParams(params)
		if err != nil {
			return err
		}
	}

	p.cfg.MotionSensitivity = uint(*params.Sensitivity)
	p.cfg.MotionSettleTime = *params.SettleTime
	l := *params.Erosion
	p.cfg.MotionErosion = &l
	p.cfg.Logger.Info("motion parameters changed", motion.KeySensitivity, *params.Sensitivity, motion.KeySettleTime, *params.SettleTime, motion.KeyErosion, *params.Erosion)
	return nil
}

// Params returns the motion parameters in use.
func (p *Pipeline) Params() motion.Params {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.masks) != 0 {
		return p.masks[0].Params()
	}
	return p.cfg.Params()
}

// Event returns a copy of the ongoing motion event, or nil if there is none.
func (p *Pipeline) Event() *event.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.tracker == nil {
		return nil
	}
	return p.tracker.Current()
}

// Stats returns a summary of the benchmark frame rate samples taken so far.
func (p *Pipeline) Stats() Stats {
	return p.stats.summary()
}
