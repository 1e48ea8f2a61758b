//go:build debug && withcv
// +build debug,withcv

/*
DESCRIPTION
  Displays debug information for the motion filters.

AUTHORS
  Scott Barnard <scott@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package filter

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/ausocean/vmd/motion"
)

// debugWindows is used for displaying debug information for the motion filters.
type debugWindows struct {
	windows []*gocv.Window
	gray    *image.Gray
}

// close frees resources used by gocv.
func (d *debugWindows) close() error {
	for _, window := range d.windows {
		err := window.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

// newWindows creates debugging windows for the motion filter.
func newWindows(name string) debugWindows {
	return debugWindows{
		windows: []*gocv.Window{
			gocv.NewWindow(name + ": Video"),
			gocv.NewWindow(name + ": Motion Mask"),
		},
	}
}

// show displays the frame with the bounding boxes of moving regions drawn
// on it, and the motion mask.
func (d *debugWindows) show(img image.Image, mask *motion.Frame, moving bool, text ...string) {
	var drkRed = color.RGBA{191, 0, 0, 0}
	var lhtRed = color.RGBA{191, 31, 31, 0}

	im, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return
	}
	defer im.Close()

	d.gray = mask.Gray(d.gray)
	imM, err := gocv.ImageGrayToMatGray(d.gray)
	if err != nil {
		return
	}
	defer imM.Close()

	// Draw bounding boxes of moving regions, scaled back up to the source.
	contours := gocv.FindContours(imM, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()
	for i := 0; i < contours.Size(); i++ {
		r := gocv.BoundingRect(contours.At(i))
		r = image.Rectangle{Min: r.Min.Mul(motion.DownscaleRatio), Max: r.Max.Mul(motion.DownscaleRatio)}
		gocv.Rectangle(&im, r, lhtRed, 1)
	}

	// Draw debugging text.
	if moving {
		text = append(text, "Motion Detected")
	}
	for i, str := range text {
		gocv.PutText(&im, str, image.Pt(32, 32*(i+1)), gocv.FontHersheyPlain, 2.0, drkRed, 2)
	}

	// Display windows.
	d.windows[0].IMShow(im)
	d.windows[1].IMShow(imM)
	d.windows[0].WaitKey(1)
}
