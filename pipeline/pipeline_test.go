/*
DESCRIPTION
  pipeline_test.go provides testing of the pipeline with file and manual
  inputs.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>
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
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ausocean/utils/logging"
	"github.com/google/go-cmp/cmp"

	"github.com/ausocean/vmd/config"
	"github.com/ausocean/vmd/event"
	"github.com/ausocean/vmd/motion"
)

const waitTime = 5 * time.Second

// testFrame returns a JPEG encoded w by h black frame with a white rectangle
// covering rect. Rectangles aligned to 16 pixels encode without loss.
func testFrame(t *testing.T, w, h int, rect image.Rectangle) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
	draw.Draw(img, rect, image.NewUniform(color.White), image.Point{}, draw.Src)
	var buf bytes.Buffer
	err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 100})
	if err != nil {
		t.Fatalf("could not encode test frame: %v", err)
	}
	return buf.Bytes()
}

// testStream returns frames where only the fifth has motion.
func testStream(t *testing.T) (frames [][]byte, still, moving []byte) {
	still = testFrame(t, 64, 64, image.Rectangle{})
	moving = testFrame(t, 64, 64, image.Rect(16, 16, 48, 48))
	frames = [][]byte{still, still, still, still, moving, still, still, still, still}
	return frames, still, moving
}

// waitFor polls cond until it is true or waitTime passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(waitTime)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func glob(t *testing.T, pattern string) []string {
	t.Helper()
	m, err := filepath.Glob(pattern)
	if err != nil {
		t.Fatalf("bad glob pattern: %v", err)
	}
	return m
}

func intp(v int) *int             { return &v }
func floatp(v float64) *float64 { return &v }

func TestNew(t *testing.T) {
	_, err := New(config.Config{})
	if err == nil {
		t.Error("expected error for config without logger")
	}

	p, err := New(config.Config{Logger: (*logging.TestLogger)(t)})
	if err != nil {
		t.Fatalf("did not expect error from New(): %v", err)
	}
	if p.Running() {
		t.Error("new pipeline should not be running")
	}
	if p.Done() != nil {
		t.Error("expected nil done channel before start")
	}
}

func TestDefaultParams(t *testing.T) {
	p, err := New(config.Config{Logger: (*logging.TestLogger)(t)})
	if err != nil {
		t.Fatalf("did not expect error from New(): %v", err)
	}
	err = p.Update(map[string]string{})
	if err != nil {
		t.Fatalf("did not expect error from Update(): %v", err)
	}

	want := motion.Params{Sensitivity: intp(26), SettleTime: floatp(1), Erosion: intp(5)}
	if got := p.Params(); !cmp.Equal(got, want) {
		t.Errorf("unexpected default params\ngot: %v\nwant: %v", got, want)
	}

	// An explicit zero disables noise filtering.
	err = p.Update(map[string]string{
		config.KeyInput:         "manual",
		config.KeyOutputPath:    t.TempDir() + "/",
		config.KeyMotionErosion: "0",
	})
	if err != nil {
		t.Fatalf("did not expect error from Update(): %v", err)
	}
	err = p.Start()
	if err != nil {
		t.Fatalf("did not expect error from Start(): %v", err)
	}
	defer p.Stop()
	if got := p.Params(); *got.Erosion != 0 {
		t.Errorf("unexpected erosion, want: 0, got: %d", *got.Erosion)
	}
}

func TestFileInput(t *testing.T) {
	frames, still, moving := testStream(t)

	dir := t.TempDir()
	in := filepath.Join(dir, "in.mjpeg")
	err := os.WriteFile(in, bytes.Join(frames, nil), 0o644)
	if err != nil {
		t.Fatalf("could not write input file: %v", err)
	}
	outDir := filepath.Join(dir, "out")
	err = os.Mkdir(outDir, 0o755)
	if err != nil {
		t.Fatalf("could not create output directory: %v", err)
	}
	snapDir := filepath.Join(dir, "snapshots")
	db := filepath.Join(dir, "events.db")

	p, err := New(config.Config{Logger: (*logging.TestLogger)(t)})
	if err != nil {
		t.Fatalf("did not expect error from New(): %v", err)
	}
	err = p.Update(map[string]string{
		config.KeyInput:         "file",
		config.KeyInputPath:     in,
		config.KeyOutputs:       "Files",
		config.KeyOutputPath:    outDir + "/",
		config.KeyFilters:       "Mask",
		config.KeyFrameRate:     "10",
		config.KeyMotionErosion: "5",
		config.KeyMotionPadding: "2",
		config.KeyMotionPixels:  "20",
		config.KeySnapshotPath:  snapDir,
		config.KeyEventDB:       db,
		config.KeyPoolCapacity:  "100000",
		config.KeyLogging:       "Debug",
	})
	if err != nil {
		t.Fatalf("did not expect error from Update(): %v", err)
	}

	err = p.Start()
	if err != nil {
		t.Fatalf("did not expect error from Start(): %v", err)
	}

	select {
	case <-p.Done():
	case <-time.After(waitTime):
		t.Fatal("timed out waiting for input to be processed")
	}
	waitFor(t, "snapshot", func() bool { return len(glob(t, filepath.Join(snapDir, "*.png"))) != 0 })
	p.Stop()

	// The motion frame and two frames of padding either side.
	files := glob(t, filepath.Join(outDir, "*.jpg"))
	want := [][]byte{still, still, moving, still, still}
	if len(files) != len(want) {
		t.Fatalf("unexpected number of output files: got %d, want %d", len(files), len(want))
	}
	for i, f := range files {
		got, err := os.ReadFile(f)
		if err != nil {
			t.Fatalf("could not read output file: %v", err)
		}
		if !bytes.Equal(got, want[i]) {
			t.Errorf("unexpected frame in output file %d", i)
		}
	}

	snaps := glob(t, filepath.Join(snapDir, "*.png"))
	if len(snaps) != 1 {
		t.Errorf("unexpected number of snapshots: %d", len(snaps))
	}
	f, err := os.Open(snaps[0])
	if err != nil {
		t.Fatalf("could not open snapshot: %v", err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		t.Fatalf("could not decode snapshot: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 32 || b.Dy() != 32 {
		t.Errorf("unexpected snapshot size: %v", b)
	}

	s, err := event.Open(db)
	if err != nil {
		t.Fatalf("could not open event store: %v", err)
	}
	defer s.Close()
	events, err := s.List(time.Time{}, 0)
	if err != nil {
		t.Fatalf("could not list events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("unexpected number of events: %d", len(events))
	}
	if e := events[0]; e.Ongoing() || e.Frames != 1 || e.Peak != 18*18-4 {
		t.Errorf("unexpected event: %+v", e)
	}
}

func TestManualInput(t *testing.T) {
	frames, still, moving := testStream(t)
	outDir := t.TempDir()

	c := config.Config{
		Logger:        (*logging.TestLogger)(t),
		Input:         config.InputManual,
		Outputs:       []uint8{config.OutputFile},
		OutputPath:    outDir + "/",
		Filters:       []uint{config.FilterMask},
		FrameRate:     10,
		MotionErosion: intp(5),
		MotionPadding: 1,
		MotionPixels:  20,
	}
	p, err := New(c)
	if err != nil {
		t.Fatalf("did not expect error from New(): %v", err)
	}

	_, err = p.Write(frames[0])
	if err == nil {
		t.Error("expected error writing before start")
	}

	err = p.Start()
	if err != nil {
		t.Fatalf("did not expect error from Start(): %v", err)
	}
	if !p.Running() {
		t.Error("pipeline should be running")
	}
	for i, f := range frames {
		_, err := p.Write(f)
		if err != nil {
			t.Fatalf("could not write frame %d: %v", i, err)
		}
	}
	p.Stop()
	if p.Running() {
		t.Error("pipeline should not be running")
	}

	files := glob(t, filepath.Join(outDir, "*.mjpeg"))
	if len(files) != 1 {
		t.Fatalf("unexpected number of output files: %d", len(files))
	}
	got, err := os.ReadFile(files[0])
	if err != nil {
		t.Fatalf("could not read output file: %v", err)
	}
	want := bytes.Join([][]byte{still, moving, still}, nil)
	if !bytes.Equal(got, want) {
		t.Errorf("unexpected output: got %d bytes, want %d", len(got), len(want))
	}
}

func TestStartBadInput(t *testing.T) {
	p, err := New(config.Config{Logger: (*logging.TestLogger)(t)})
	if err != nil {
		t.Fatalf("did not expect error from New(): %v", err)
	}
	err = p.Update(map[string]string{
		config.KeyInput:      "file",
		config.KeyInputPath:  filepath.Join(t.TempDir(), "missing.mjpeg"),
		config.KeyOutputPath: t.TempDir() + "/",
	})
	if err != nil {
		t.Fatalf("did not expect error from Update(): %v", err)
	}
	err = p.Start()
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not exist error, got: %v", err)
	}
	if p.Running() {
		t.Error("pipeline should not be running after failed start")
	}
}

func TestSetParams(t *testing.T) {

	c := config.Config{
		Logger:     (*logging.TestLogger)(t),
		Input:      config.InputManual,
		OutputPath: t.TempDir() + "/",
	}
	p, err := New(c)
	if err != nil {
		t.Fatalf("did not expect error from New(): %v", err)
	}

	good := motion.Params{Sensitivity: intp(50), SettleTime: floatp(4), Erosion: intp(2)}
	bad := motion.Params{Sensitivity: intp(50), SettleTime: floatp(100), Erosion: intp(2)}

	check := func(state string, sensitivity int) {
		good.Sensitivity = intp(sensitivity)
		err := p.SetParams(good)
		if err != nil {
			t.Fatalf("unexpected error setting params while %s: %v", state, err)
		}
		err = p.SetParams(bad)
		if !errors.Is(err, motion.ErrFormat) {
			t.Errorf("expected ErrFormat while %s, got: %v", state, err)
		}
		if got := p.Params(); !cmp.Equal(got, good) {
			t.Errorf("unexpected params while %s\ngot: %v\nwant: %v", state, got, good)
		}
		cfg := p.Config()
		if cfg.MotionSensitivity != uint(sensitivity) || cfg.MotionSettleTime != 4 || *cfg.MotionErosion != 2 {
			t.Errorf("config not updated while %s: %+v", state, cfg)
		}
	}

	check("stopped", 50)
	err = p.Start()
	if err != nil {
		t.Fatalf("did not expect error from Start(): %v", err)
	}
	check("running", 60)
	p.Stop()

	// Parameters survive a restart.
	err = p.Start()
	if err != nil {
		t.Fatalf("did not expect error from Start(): %v", err)
	}
	if got := p.Params(); !cmp.Equal(got, good) {
		t.Errorf("unexpected params after restart\ngot: %v\nwant: %v", got, good)
	}
	p.Stop()
}

func TestUpdate(t *testing.T) {
	p, err := New(config.Config{Logger: (*logging.TestLogger)(t)})
	if err != nil {
		t.Fatalf("did not expect error from New(): %v", err)
	}
	err = p.Update(map[string]string{config.KeyMotionPixels: "99", config.KeyMotionSettleTime: "2.5"})
	if err != nil {
		t.Fatalf("did not expect error from Update(): %v", err)
	}
	c := p.Config()
	if c.MotionPixels != 99 || c.MotionSettleTime != 2.5 {
		t.Errorf("config not updated: %+v", c)
	}
}
