/*
DESCRIPTION
  A filter that detects motion and discards frames without motion. Each
  JPEG frame is decoded and passed through a motion extractor, and frames
  whose motion mask has enough active pixels are kept.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package filter

import (
	"bytes"
	"errors"
	"fmt"
	"image/jpeg"
	"io"
	"sync"

	"github.com/ausocean/vmd/config"
	"github.com/ausocean/vmd/motion"
)

// ErrGeometry is returned by Mask.Write when a frame does not have the
// dimensions of the stream.
var ErrGeometry = errors.New("frame geometry does not match stream")

// Observer is called with the number of active mask pixels and the mask for
// each frame seen by a Mask filter. mask is only valid for the duration of
// the call, and the observer must not call back into the Mask.
type Observer func(active int, mask *motion.Frame)

// Mask is a filter that performs motion detection using a motion.Extractor.
// Frames with at least MotionPixels active mask pixels, and up to
// MotionPadding frames either side of them, are written to the destination.
type Mask struct {
	debugging debugWindows
	dst       io.WriteCloser // Destination to which motion containing frames go.

	mu        sync.Mutex
	ext       *motion.Extractor
	params    motion.Params // Applied to ext once it is created.
	w, h      int           // Source geometry, zero until known.
	fps       float64
	benchmark bool
	observers []Observer

	frame   motion.Frame
	pix     int  // Active pixels needed for motion.
	padding uint     // Frames to keep before and after motion.
	send    uint     // Frames left to send.
	pre     [][]byte // Copies of the latest frames without motion, oldest first.
}

// NewMask returns a pointer to a new Mask filter struct. If c gives the frame
// Width and Height, frames of other sizes are rejected, otherwise the first
// frame written sets the stream geometry.
func NewMask(dst io.WriteCloser, c config.Config) (*Mask, error) {
	if c.FrameRate == 0 {
		return nil, errors.New("frame rate must be set for mask filter")
	}
	m := &Mask{
		debugging: newWindows("MASK"),
		dst:       dst,
		params:    c.Params(),
		w:         int(c.Width),
		h:         int(c.Height),
		fps:       float64(c.FrameRate),
		benchmark: c.Benchmark,
		pix:       int(c.MotionPixels),
		padding:   c.MotionPadding,
	}

	// Check the parameters now rather than on the first frame.
	err := motion.New(motion.DownscaleRatio, motion.DownscaleRatio, m.fps, false).Load(m.params)
	if err != nil {
		return nil, fmt.Errorf("invalid motion parameters: %w", err)
	}

	if m.w != 0 && m.h != 0 {
		m.init()
	}
	return m, nil
}

// init creates the extractor for the current geometry. m.mu must be held
// or m not yet shared.
func (m *Mask) init() {
	m.ext = motion.New(m.w, m.h, m.fps, m.benchmark)
	m.ext.Load(m.params) // Checked by NewMask and SetParams.
}

// Observe adds o to the functions called for each frame.
func (m *Mask) Observe(o Observer) {
	m.mu.Lock()
	m.observers = append(m.observers, o)
	m.mu.Unlock()
}

// SetParams updates the motion parameters. If p is invalid an error is
// returned and the parameters are unchanged.
func (m *Mask) SetParams(p motion.Params) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ext == nil {
		err := motion.New(motion.DownscaleRatio, motion.DownscaleRatio, m.fps, false).Load(p)
		if err != nil {
			return err
		}
	} else {
		err := m.ext.Load(p)
		if err != nil {
			return err
		}
	}
	m.params = p
	return nil
}

// Params returns the motion parameters in use.
func (m *Mask) Params() motion.Params {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ext == nil {
		return m.params
	}
	var p motion.Params
	m.ext.Save(&p)
	return p
}

// FPS returns the rate at which frames are being processed by the extractor
// when benchmarking is enabled.
func (m *Mask) FPS() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ext == nil {
		return 0
	}
	return m.ext.FPS()
}

// Implements io.Closer.
// Close frees resources used by the debug windows.
func (m *Mask) Close() error {
	return m.debugging.close()
}

// Implements io.Writer.
// Write applies the motion filter to the video stream. Only frames with motion
// are written to the destination, frames without are discarded.
func (m *Mask) Write(f []byte) (int, error) {
	img, err := jpeg.Decode(bytes.NewReader(f))
	if err != nil {
		return 0, fmt.Errorf("image can't be decoded: %w", err)
	}

	m.mu.Lock()
	b := img.Bounds()
	if m.ext == nil {
		m.w, m.h = b.Dx(), b.Dy()
		m.init()
	}
	if b.Dx() != m.w || b.Dy() != m.h {
		m.mu.Unlock()
		return 0, fmt.Errorf("%w: got %dx%d, want %dx%d", ErrGeometry, b.Dx(), b.Dy(), m.w, m.h)
	}

	motion.FromImage(img, &m.frame)
	mask := m.ext.Mask(&m.frame)
	active := mask.Active()

	// The mask is owned by the extractor, so observers run under the lock.
	for _, o := range m.observers {
		o(active, mask)
	}
	moving := active >= m.pix
	m.debugging.show(img, mask, moving, fmt.Sprintf("Motion: %d", active), fmt.Sprintf("Pix: %d", m.pix))
	m.mu.Unlock()

	switch {
	case moving:
		m.send = m.padding
		err = m.flush()
		if err != nil {
			return 0, err
		}
		return m.dst.Write(f)
	case m.send > 0:
		m.send--
		return m.dst.Write(f)
	default:
		m.hold(f)
		return len(f), nil
	}
}

// hold keeps a copy of f to be written if motion follows within padding
// frames, dropping the oldest held frame when full.
func (m *Mask) hold(f []byte) {
	if m.padding == 0 {
		return
	}
	var b []byte
	if uint(len(m.pre)) == m.padding {
		b = m.pre[0]
		copy(m.pre, m.pre[1:])
		m.pre = m.pre[:len(m.pre)-1]
	}
	m.pre = append(m.pre, append(b[:0], f...))
}

// flush writes the held frames to the destination.
func (m *Mask) flush() error {
	defer func() { m.pre = m.pre[:0] }()
	for _, b := range m.pre {
		_, err := m.dst.Write(b)
		if err != nil {
			return err
		}
	}
	return nil
}
