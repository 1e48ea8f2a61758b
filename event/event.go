/*
DESCRIPTION
  event.go provides Tracker, which turns per-frame motion mask activity into
  motion events with a start and end, and passes them to a Sink.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package event provides tracking and storage of motion events.
package event

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ausocean/utils/logging"
)

// Event is a period of motion.
type Event struct {
	ID     string    // UUID assigned when the event starts.
	Start  time.Time // Time of the first frame with motion.
	End    time.Time // Time of the last frame with motion, zero while ongoing.
	Frames int       // Frames with motion.
	Peak   int       // Largest active mask pixel count seen.
}

// Ongoing returns true if e has not ended.
func (e *Event) Ongoing() bool { return e.End.IsZero() }

// Duration returns the length of a finished event.
func (e *Event) Duration() time.Duration {
	if e.Ongoing() {
		return 0
	}
	return e.End.Sub(e.Start)
}

// Sink receives events from a Tracker. Insert is called when an event
// starts and Update when it ends.
type Sink interface {
	Insert(e *Event) error
	Update(e *Event) error
}

// Tracker groups frames with motion into events. An event starts on the
// first frame with at least threshold active pixels and ends once hold
// consecutive frames have had fewer.
type Tracker struct {
	log       logging.Logger
	sink      Sink
	threshold int
	hold      uint

	mu    sync.Mutex
	cur   *Event
	quiet uint // Consecutive frames without motion during an event.
	last  time.Time
	done  int
}

// NewTracker returns a new Tracker. sink may be nil, in which case events
// are only logged.
func NewTracker(threshold int, hold uint, sink Sink, l logging.Logger) *Tracker {
	if hold == 0 {
		hold = 1
	}
	return &Tracker{log: l, sink: sink, threshold: threshold, hold: hold}
}

// Observe updates the tracker with the active pixel count of a frame
// captured at t.
func (t *Tracker) Observe(active int, ts time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	moving := active >= t.threshold
	switch {
	case t.cur == nil && !moving:
		return
	case t.cur == nil:
		t.cur = &Event{ID: uuid.New().String(), Start: ts}
		t.quiet = 0
		t.log.Info("motion event started", "id", t.cur.ID, "active", active)
		if t.sink != nil {
			err := t.sink.Insert(t.cur)
			if err != nil {
				t.log.Error("could not record event start", "error", err.Error())
			}
		}
		fallthrough
	case moving:
		t.cur.Frames++
		if active > t.cur.Peak {
			t.cur.Peak = active
		}
		t.last = ts
		t.quiet = 0
	default:
		t.quiet++
		if t.quiet >= t.hold {
			t.end()
		}
	}
}

// Close ends any ongoing event.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cur != nil {
		t.end()
	}
}

// Current returns a copy of the ongoing event, or nil if there is none.
func (t *Tracker) Current() *Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cur == nil {
		return nil
	}
	e := *t.cur
	return &e
}

// Events returns the number of events that have ended.
func (t *Tracker) Events() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}

// end finishes the current event. t.mu must be held.
func (t *Tracker) end() {
	t.cur.End = t.last
	t.log.Info("motion event ended", "id", t.cur.ID, "frames", t.cur.Frames, "peak", t.cur.Peak, "duration", t.cur.Duration().String())
	if t.sink != nil {
		err := t.sink.Update(t.cur)
		if err != nil {
			t.log.Error("could not record event end", "error", err.Error())
		}
	}
	t.cur = nil
	t.quiet = 0
	t.done++
}
