/*
DESCRIPTION
  morph.go provides the noise suppression applied to raw motion masks: an
  erosion that keeps only "on" pixels with enough "on" neighbours, followed
  by a dilation that turns on any pixel with at least one "on" neighbour.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package motion

// offset locates a neighbouring pixel both by coordinate delta and by byte
// delta within a frame's Pix.
type offset struct {
	dx, dy int
	p      int
}

// neighbourOffsets returns the offsets of the 8 neighbours of a pixel in a
// frame w pixels wide.
func neighbourOffsets(w int) [8]offset {
	const px = Channels
	row := w * Channels
	return [8]offset{
		{-1, 0, -px},
		{1, 0, px},
		{-1, -1, -row - px},
		{0, -1, -row},
		{1, -1, -row + px},
		{-1, 1, row - px},
		{0, 1, row},
		{1, 1, row + px},
	}
}

// activeNeighbours counts the "on" neighbours of the pixel at (x, y), which
// starts at index i of pix. Neighbours outside the frame are not counted.
// Counting stops once limit is reached.
func (e *Extractor) activeNeighbours(pix []byte, i, x, y, limit int) int {
	var n int
	for _, o := range e.offs {
		nx, ny := x+o.dx, y+o.dy
		if nx < 0 || ny < 0 || nx >= e.w || ny >= e.h || pix[i+o.p] == off {
			continue
		}
		n++
		if n == limit {
			break
		}
	}
	return n
}

// erode turns off every mask pixel with fewer than e.erosion active
// neighbours.
func (e *Extractor) erode() {
	src, dst := e.mask.Pix, e.eroded.Pix
	i := 0
	for y := 0; y < e.h; y++ {
		for x := 0; x < e.w; x++ {
			dst[i] = off
			if src[i] != off && e.activeNeighbours(src, i, x, y, e.erosion) >= e.erosion {
				dst[i] = src[i]
			}
			dst[i+1], dst[i+2] = src[i+1], src[i+2]
			i += Channels
		}
	}
	e.mask, e.eroded = e.eroded, e.mask
}

// dilate turns on every mask pixel that is on or has an active neighbour.
func (e *Extractor) dilate() {
	src, dst := e.mask.Pix, e.eroded.Pix
	i := 0
	for y := 0; y < e.h; y++ {
		for x := 0; x < e.w; x++ {
			switch {
			case src[i] != off:
				dst[i] = src[i]
			case e.activeNeighbours(src, i, x, y, 1) > 0:
				dst[i] = on
			default:
				dst[i] = off
			}
			dst[i+1], dst[i+2] = src[i+1], src[i+2]
			i += Channels
		}
	}
	e.mask, e.eroded = e.eroded, e.mask
}
