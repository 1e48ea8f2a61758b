/*
DESCRIPTION
  senders_test.go contains tests to validate the functionality of the
  senders in senders.go.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package pipeline

import (
	"image"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ausocean/utils/logging"
	"github.com/ausocean/utils/pool"
	"github.com/google/go-cmp/cmp"

	"github.com/ausocean/vmd/motion"
)

func TestFileSender(t *testing.T) {
	frames := [][]byte{
		{0xff, 0xd8, 1, 0xff, 0xd9},
		{0xff, 0xd8, 2, 2, 0xff, 0xd9},
		{0xff, 0xd8, 3, 3, 3, 0xff, 0xd9},
	}

	tests := []struct {
		name      string
		multi     bool
		maxSize   uint
		pattern   string
		wantFiles int
	}{
		{name: "single", pattern: "*.mjpeg", wantFiles: 1},
		{name: "multi", multi: true, pattern: "*.jpg", wantFiles: 3},
		{name: "max size", maxSize: 12, pattern: "*.mjpeg", wantFiles: 2},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			dir := t.TempDir()
			s := newFileSender((*logging.TestLogger)(t), dir+"/", test.multi, test.maxSize)
			var total int
			for _, f := range frames {
				n, err := s.Write(f)
				if err != nil {
					t.Fatalf("unexpected write error: %v", err)
				}
				total += n
			}
			err := s.Close()
			if err != nil {
				t.Fatalf("unexpected close error: %v", err)
			}

			files := glob(t, filepath.Join(dir, test.pattern))
			if len(files) != test.wantFiles {
				t.Fatalf("unexpected file count: got %d, want %d", len(files), test.wantFiles)
			}
			var size int
			for _, f := range files {
				fi, err := os.Stat(f)
				if err != nil {
					t.Fatalf("could not stat file: %v", err)
				}
				size += int(fi.Size())
			}
			if size != total {
				t.Errorf("unexpected total size: got %d, want %d", size, total)
			}
		})
	}
}

func TestSnapshotSender(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "snaps")
	rb := pool.NewBuffer(10, 4096, time.Second)
	s, err := newSnapshotSender(dir, (*logging.TestLogger)(t), rb, 10*4096, time.Second, time.Hour, 5)
	if err != nil {
		t.Fatalf("could not create snapshot sender: %v", err)
	}

	mask := motion.NewFrame(8, 8)
	for y := 2; y < 6; y++ {
		for x := 2; x < 6; x++ {
			mask.Pix[mask.PixOffset(x, y)] = 255
		}
	}

	s.observe(4, mask)  // Too few active pixels.
	s.observe(16, mask) // Snapshot.
	s.observe(16, mask) // Within the interval.

	waitFor(t, "snapshot", func() bool { return len(glob(t, filepath.Join(dir, "*.png"))) != 0 })
	s.Close()

	files := glob(t, filepath.Join(dir, "*.png"))
	if len(files) != 1 {
		t.Fatalf("unexpected snapshot count: %d", len(files))
	}
	f, err := os.Open(files[0])
	if err != nil {
		t.Fatalf("could not open snapshot: %v", err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("could not decode snapshot: %v", err)
	}
	g, ok := img.(*image.Gray)
	if !ok {
		t.Fatalf("unexpected snapshot image type: %T", img)
	}
	if g.GrayAt(3, 3).Y != 255 || g.GrayAt(0, 0).Y != 0 {
		t.Errorf("unexpected snapshot content")
	}
}

func TestStats(t *testing.T) {
	var s fpsStats
	if got := s.summary(); !cmp.Equal(got, Stats{}) {
		t.Errorf("unexpected empty summary: %+v", got)
	}

	s.add(30)
	if got, want := s.summary(), (Stats{Samples: 1, Mean: 30, Median: 30, Min: 30, Max: 30}); !cmp.Equal(got, want) {
		t.Errorf("unexpected single sample summary\ngot: %+v\nwant: %+v", got, want)
	}

	for _, v := range []float64{20, 25, 35, 40} {
		s.add(v)
	}
	got := s.summary()
	want := Stats{Samples: 5, Mean: 30, StdDev: math.Sqrt(62.5), Median: 30, Min: 20, Max: 40}
	if !cmp.Equal(got, want, cmp.Comparer(func(a, b float64) bool { return math.Abs(a-b) < 1e-9 })) {
		t.Errorf("unexpected summary\ngot: %+v\nwant: %+v", got, want)
	}
}
