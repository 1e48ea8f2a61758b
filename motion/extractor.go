/*
DESCRIPTION
  extractor.go provides Extractor, which generates a per-frame motion mask
  from a video stream using an adaptive two tier background model. Each
  pixel of a downscaled frame is tracked by a short term "current" image
  and promoted into a long term reference image once it has been stable for
  longer than it has been before (up to a cap). Pixels where the reference
  and current images differ are flagged as moving, and the resulting mask
  is cleaned up by a neighbour counting erosion followed by dilation.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package motion provides a motion mask extractor for 3 channel video frames.
package motion

import (
	"math"
	"time"
)

// Default parameter values.
const (
	defaultSensitivity = 26
	defaultSettleTime  = 1 // Seconds.
	defaultErosion     = 5
)

// Extractor computes motion masks from successive frames of a single stream.
// It owns all of its buffers and is not safe for concurrent use; one
// Extractor should be used per stream and Mask called serially.
type Extractor struct {
	fps       float64
	thresh    int    // Per channel difference considered significant.
	stableCap uint32 // Maximum stability record, in frames.
	erosion   int    // Active neighbours needed to survive erosion.

	w, h int // Downscaled dimensions.

	down    *Frame   // Downscaled input.
	acc     []uint16 // Downscale accumulators.
	current *Frame   // Tracked image.
	ref     *Frame   // Reference (background) image.
	times   []uint32 // Per pixel stability timers.
	records []uint32 // Per pixel stability records.
	mask    *Frame
	eroded  *Frame
	offs    [8]offset

	first bool

	benchmark bool
	meter     meter
}

// New returns an Extractor for frames of srcWidth x srcHeight pixels arriving
// at fps frames per second. All buffers are allocated here and reused for
// every frame. If benchmark is true, the rate at which Mask is called is
// measured and reported by FPS.
func New(srcWidth, srcHeight int, fps float64, benchmark bool) *Extractor {
	w, h := srcWidth/DownscaleRatio, srcHeight/DownscaleRatio
	e := &Extractor{
		fps:       fps,
		thresh:    defaultSensitivity,
		stableCap: settleFrames(defaultSettleTime, fps),
		erosion:   defaultErosion,
		w:         w,
		h:         h,
		down:      NewFrame(w, h),
		acc:       make([]uint16, w*h*Channels),
		current:   NewFrame(w, h),
		ref:       NewFrame(w, h),
		times:     make([]uint32, w*h),
		records:   make([]uint32, w*h),
		mask:      NewFrame(w, h),
		eroded:    NewFrame(w, h),
		offs:      neighbourOffsets(w),
		benchmark: benchmark,
		meter:     meter{now: time.Now},
	}
	e.Reset()
	return e
}

// Width returns the width of the masks produced by e.
func (e *Extractor) Width() int { return e.w }

// Height returns the height of the masks produced by e.
func (e *Extractor) Height() int { return e.h }

// FPS returns the most recent frames per second measurement. It is always
// zero unless e was created with benchmarking enabled.
func (e *Extractor) FPS() int { return e.meter.fps }

// Reset clears all stability timers and records. The next frame passed to
// Mask will replace the current and reference images and produce an empty
// mask.
func (e *Extractor) Reset() {
	for i := range e.times {
		e.times[i] = 0
		e.records[i] = 0
	}
	e.first = true
}

// Mask updates the background model with f and returns the motion mask. The
// returned Frame is owned by e and is only valid until the next call to Mask;
// it must not be modified or retained. f must have the source dimensions
// given to New.
func (e *Extractor) Mask(f *Frame) *Frame {
	if e.benchmark {
		e.meter.tick()
	}

	downscale(f, e.down, e.acc)

	// Use the first frame as the background so that we do not see a frame
	// wide difference against an empty reference image.
	if e.first {
		copy(e.current.Pix, e.down.Pix)
		copy(e.ref.Pix, e.down.Pix)
		for i := 0; i < len(e.mask.Pix); i += Channels {
			e.mask.Pix[i] = off
		}
		e.first = false
		return e.mask
	}

	e.track()
	e.promote()

	if e.erosion > 0 {
		e.erode()
		e.dilate()
	}
	return e.mask
}

// track updates the current image and stability timers from the downscaled
// frame. Pixels that change significantly snap to the new value and restart
// their timer; others are nudged one step towards the new value.
func (e *Extractor) track() {
	cur, in := e.current.Pix, e.down.Pix
	for p, i := 0, 0; i < len(cur); p, i = p+1, i+Channels {
		c, s := cur[i:i+Channels:i+Channels], in[i:i+Channels:i+Channels]
		if e.different(s, c) {
			e.times[p] = 0
			copy(c, s)
			continue
		}
		if e.times[p] < math.MaxUint32 {
			e.times[p]++
		}
		for b := range c {
			c[b] = byte(int(c[b]) + sign(int(s[b])-int(c[b])))
		}
	}
}

// promote copies current pixels that have set a new stability record into
// the reference image, then marks pixels where the reference and current
// images differ.
func (e *Extractor) promote() {
	cur, ref, mask := e.current.Pix, e.ref.Pix, e.mask.Pix
	for p, i := 0, 0; i < len(cur); p, i = p+1, i+Channels {
		c, r := cur[i:i+Channels:i+Channels], ref[i:i+Channels:i+Channels]
		if e.times[p] > e.records[p] {
			copy(r, c)
			e.records[p] = min(e.times[p], e.stableCap)
		}
		if e.different(r, c) {
			mask[i] = on
		} else {
			mask[i] = off
		}
	}
}

// different returns true if any channel of a and b differs by more than the
// sensitivity threshold.
func (e *Extractor) different(a, b []byte) bool {
	for c := 0; c < Channels; c++ {
		d := int(a[c]) - int(b[c])
		if d > e.thresh || -d > e.thresh {
			return true
		}
	}
	return false
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

// meter counts frames and publishes the count once per wall clock second.
type meter struct {
	now    func() time.Time
	mark   time.Time
	frames int
	fps    int
}

func (m *meter) tick() {
	t := m.now()
	if m.mark.IsZero() {
		m.mark = t
	}
	if t.Sub(m.mark) > time.Second {
		m.fps = m.frames
		m.frames = 0
		m.mark = t
	}
	m.frames++
}
