/*
DESCRIPTION
  params.go provides validated access to the Extractor's tunable parameters
  and their serialisation to and from a Params record.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package motion

import (
	"encoding/json"
	"io"
	"math"

	"github.com/pkg/errors"
)

// Parameter limits, inclusive.
const (
	MinSensitivity = 1
	MaxSensitivity = 127
	MinSettleTime  = 1.0  // Seconds.
	MaxSettleTime  = 60.0 // Seconds.
	MinErosion     = 0
	MaxErosion     = 8
)

// Params record keys.
const (
	KeySensitivity = "sensitivity"
	KeySettleTime  = "settle time"
	KeyErosion     = "erosion level"
)

var (
	// ErrArgumentOutOfRange is returned by setters given a value outside the
	// documented range. The Extractor is left unchanged.
	ErrArgumentOutOfRange = errors.New("argument out of range")

	// ErrFormat is returned by Load and ReadParams if a parameter is missing
	// or invalid. The Extractor is left unchanged.
	ErrFormat = errors.New("motion detection settings are missing or invalid")
)

// Params is the serialised form of an Extractor's parameters. A nil field is
// a missing parameter.
type Params struct {
	Sensitivity *int     `json:"sensitivity,omitempty"`
	SettleTime  *float64 `json:"settle time,omitempty"`
	Erosion     *int     `json:"erosion level,omitempty"`
}

// Sensitivity returns the per channel difference above which a pixel is
// considered to have changed.
func (e *Extractor) Sensitivity() int { return e.thresh }

// SetSensitivity sets the per channel difference threshold and resets e.
func (e *Extractor) SetSensitivity(v int) error {
	if !validSensitivity(v) {
		return errors.Wrapf(ErrArgumentOutOfRange, "sensitivity must be between %d and %d, got %d", MinSensitivity, MaxSensitivity, v)
	}
	e.thresh = v
	e.Reset()
	return nil
}

// SettleTime returns the time in seconds a pixel must be stable for before
// it is absorbed into the background.
func (e *Extractor) SettleTime() float64 { return float64(e.stableCap) / e.fps }

// SetSettleTime sets the settle time in seconds and resets e.
func (e *Extractor) SetSettleTime(s float64) error {
	if !validSettleTime(s) {
		return errors.Wrapf(ErrArgumentOutOfRange, "settle time must be between %v and %v seconds, got %v", MinSettleTime, MaxSettleTime, s)
	}
	e.stableCap = settleFrames(s, e.fps)
	e.Reset()
	return nil
}

// Erosion returns the number of active neighbours a mask pixel needs to
// survive erosion. Zero disables noise filtering.
func (e *Extractor) Erosion() int { return e.erosion }

// SetErosion sets the erosion level and resets e.
func (e *Extractor) SetErosion(l int) error {
	if !validErosion(l) {
		return errors.Wrapf(ErrArgumentOutOfRange, "erosion level must be between %d and %d pixels, got %d", MinErosion, MaxErosion, l)
	}
	e.erosion = l
	e.Reset()
	return nil
}

// Save writes e's parameters into p.
func (e *Extractor) Save(p *Params) {
	s, t, l := e.Sensitivity(), e.SettleTime(), e.Erosion()
	p.Sensitivity, p.SettleTime, p.Erosion = &s, &t, &l
}

// Load applies all parameters in p to e. If any parameter is missing or out
// of range, an error wrapping ErrFormat is returned and e is not modified.
func (e *Extractor) Load(p Params) error {
	if p.Sensitivity == nil || p.SettleTime == nil || p.Erosion == nil {
		return errors.Wrap(ErrFormat, "parameters missing")
	}
	if !validSensitivity(*p.Sensitivity) || !validSettleTime(*p.SettleTime) || !validErosion(*p.Erosion) {
		return errors.Wrapf(ErrFormat, "parameters out of range (%s=%d, %s=%v, %s=%d)",
			KeySensitivity, *p.Sensitivity, KeySettleTime, *p.SettleTime, KeyErosion, *p.Erosion)
	}

	// These cannot fail now that the values have been checked.
	e.SetSensitivity(*p.Sensitivity)
	e.SetSettleTime(*p.SettleTime)
	e.SetErosion(*p.Erosion)
	return nil
}

// ReadParams decodes a JSON Params record from r.
func ReadParams(r io.Reader) (Params, error) {
	var p Params
	err := json.NewDecoder(r).Decode(&p)
	if err != nil {
		return Params{}, errors.Wrapf(ErrFormat, "could not decode parameters: %v", err)
	}
	return p, nil
}

// WriteParams encodes p as JSON to w.
func WriteParams(w io.Writer, p Params) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(p)
}

// settleFrames converts a settle time in seconds to a whole number of frames,
// rounding up. The small tolerance keeps a settle time reported by
// SettleTime mapping back to the same number of frames.
func settleFrames(s, fps float64) uint32 {
	return uint32(math.Ceil(s*fps - 1e-9))
}

func validSensitivity(v int) bool { return v >= MinSensitivity && v <= MaxSensitivity }

func validSettleTime(s float64) bool { return s >= MinSettleTime && s <= MaxSettleTime }

func validErosion(l int) bool { return l >= MinErosion && l <= MaxErosion }
