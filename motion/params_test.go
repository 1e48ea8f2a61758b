/*
DESCRIPTION
  params_test.go provides testing for Extractor parameter validation and
  serialisation.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package motion

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
)

func intp(v int) *int           { return &v }
func floatp(v float64) *float64 { return &v }

func TestDefaults(t *testing.T) {
	e := New(64, 64, 25, false)
	if e.Sensitivity() != defaultSensitivity {
		t.Errorf("unexpected default sensitivity: %d", e.Sensitivity())
	}
	if e.SettleTime() != defaultSettleTime {
		t.Errorf("unexpected default settle time: %v", e.SettleTime())
	}
	if e.Erosion() != defaultErosion {
		t.Errorf("unexpected default erosion: %d", e.Erosion())
	}
}

func TestSetterBounds(t *testing.T) {
	tests := []struct {
		name string
		set  func(e *Extractor) error
		ok   bool
	}{
		{"sensitivity 0", func(e *Extractor) error { return e.SetSensitivity(0) }, false},
		{"sensitivity 1", func(e *Extractor) error { return e.SetSensitivity(1) }, true},
		{"sensitivity 127", func(e *Extractor) error { return e.SetSensitivity(127) }, true},
		{"sensitivity 128", func(e *Extractor) error { return e.SetSensitivity(128) }, false},
		{"settle 0.9", func(e *Extractor) error { return e.SetSettleTime(0.9) }, false},
		{"settle 1", func(e *Extractor) error { return e.SetSettleTime(1) }, true},
		{"settle 60", func(e *Extractor) error { return e.SetSettleTime(60) }, true},
		{"settle 60.1", func(e *Extractor) error { return e.SetSettleTime(60.1) }, false},
		{"erosion -1", func(e *Extractor) error { return e.SetErosion(-1) }, false},
		{"erosion 0", func(e *Extractor) error { return e.SetErosion(0) }, true},
		{"erosion 8", func(e *Extractor) error { return e.SetErosion(8) }, true},
		{"erosion 9", func(e *Extractor) error { return e.SetErosion(9) }, false},
	}

	for _, test := range tests {
		e := New(16, 16, 30, false)
		var before Params
		e.Save(&before)

		err := test.set(e)
		if test.ok {
			if err != nil {
				t.Errorf("%s: did not expect error: %v", test.name, err)
			}
			continue
		}
		if !errors.Is(err, ErrArgumentOutOfRange) {
			t.Errorf("%s: expected ErrArgumentOutOfRange, got: %v", test.name, err)
		}
		var after Params
		e.Save(&after)
		if !cmp.Equal(before, after) {
			t.Errorf("%s: parameters changed by failed set.\n%s", test.name, cmp.Diff(before, after))
		}
	}
}

func TestSettleTimeFrames(t *testing.T) {
	tests := []struct {
		fps    float64
		settle float64
		want   uint32
	}{
		{fps: 30, settle: 1, want: 30},
		{fps: 30, settle: 2.5, want: 75},
		{fps: 25, settle: 1.01, want: 26},
		{fps: 29.97, settle: 1, want: 30},
		{fps: 7.5, settle: 60, want: 450},
	}

	for i, test := range tests {
		e := New(4, 4, test.fps, false)
		if err := e.SetSettleTime(test.settle); err != nil {
			t.Fatalf("did not expect error for test %d: %v", i, err)
		}
		if e.stableCap != test.want {
			t.Errorf("unexpected stable cap for test %d: got %d, want %d", i, e.stableCap, test.want)
		}
	}
}

func TestSetterResets(t *testing.T) {
	const w, h = 16, 16
	e := New(w, h, 30, false)
	f := uniform(w, h, 10, 10, 10)
	e.Mask(f)
	e.Mask(f)
	if e.first || e.times[0] == 0 {
		t.Fatal("expected extractor to have processed frames")
	}
	if err := e.SetSensitivity(40); err != nil {
		t.Fatalf("did not expect error: %v", err)
	}
	if !e.first || e.times[0] != 0 || e.records[0] != 0 {
		t.Error("expected setter to reset extractor")
	}
}

func TestSaveLoad(t *testing.T) {
	for _, fps := range []float64{25, 29.97, 30, 12.5} {
		src := New(32, 32, fps, false)
		if err := src.SetSensitivity(42); err != nil {
			t.Fatalf("did not expect error: %v", err)
		}
		if err := src.SetSettleTime(7.3); err != nil {
			t.Fatalf("did not expect error: %v", err)
		}
		if err := src.SetErosion(2); err != nil {
			t.Fatalf("did not expect error: %v", err)
		}

		var p Params
		src.Save(&p)

		// Through JSON as well as directly.
		var buf bytes.Buffer
		if err := WriteParams(&buf, p); err != nil {
			t.Fatalf("could not write params: %v", err)
		}
		decoded, err := ReadParams(&buf)
		if err != nil {
			t.Fatalf("could not read params: %v", err)
		}

		for _, in := range []Params{p, decoded} {
			dst := New(32, 32, fps, false)
			if err := dst.Load(in); err != nil {
				t.Fatalf("did not expect error from load: %v", err)
			}
			if dst.Sensitivity() != src.Sensitivity() || dst.SettleTime() != src.SettleTime() || dst.Erosion() != src.Erosion() {
				t.Errorf("fps %v: parameters did not round trip: got (%d, %v, %d), want (%d, %v, %d)", fps,
					dst.Sensitivity(), dst.SettleTime(), dst.Erosion(),
					src.Sensitivity(), src.SettleTime(), src.Erosion())
			}
		}
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		p    Params
	}{
		{"empty", Params{}},
		{"missing sensitivity", Params{SettleTime: floatp(2), Erosion: intp(3)}},
		{"missing settle time", Params{Sensitivity: intp(20), Erosion: intp(3)}},
		{"missing erosion", Params{Sensitivity: intp(20), SettleTime: floatp(2)}},
		{"bad sensitivity", Params{Sensitivity: intp(200), SettleTime: floatp(2), Erosion: intp(3)}},
		{"bad settle time", Params{Sensitivity: intp(20), SettleTime: floatp(0.5), Erosion: intp(3)}},
		{"bad erosion", Params{Sensitivity: intp(20), SettleTime: floatp(2), Erosion: intp(9)}},
	}

	for _, test := range tests {
		e := New(16, 16, 30, false)
		f := uniform(16, 16, 1, 1, 1)
		e.Mask(f)
		e.Mask(f)
		var before Params
		e.Save(&before)

		err := e.Load(test.p)
		if !errors.Is(err, ErrFormat) {
			t.Errorf("%s: expected ErrFormat, got: %v", test.name, err)
		}
		var after Params
		e.Save(&after)
		if !cmp.Equal(before, after) {
			t.Errorf("%s: parameters changed by failed load.\n%s", test.name, cmp.Diff(before, after))
		}
		if e.first {
			t.Errorf("%s: failed load reset the extractor", test.name)
		}
	}
}

func TestReadParams(t *testing.T) {
	p, err := ReadParams(strings.NewReader(`{"sensitivity": 30, "settle time": 2.5, "erosion level": 4}`))
	if err != nil {
		t.Fatalf("did not expect error: %v", err)
	}
	want := Params{Sensitivity: intp(30), SettleTime: floatp(2.5), Erosion: intp(4)}
	if !cmp.Equal(p, want) {
		t.Errorf("unexpected params.\n%s", cmp.Diff(want, p))
	}

	for _, bad := range []string{`{`, `{"sensitivity": "high"}`, `{"sensitivity": 2.5}`} {
		_, err := ReadParams(strings.NewReader(bad))
		if !errors.Is(err, ErrFormat) {
			t.Errorf("expected ErrFormat for %q, got: %v", bad, err)
		}
	}
}
