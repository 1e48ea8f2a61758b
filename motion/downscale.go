/*
DESCRIPTION
  downscale.go reduces a source frame by block averaging.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package motion

// downscale averages each DownscaleRatio x DownscaleRatio block of src into a
// single pixel of dst. Sums are kept in acc, which must hold one element per
// byte of dst. Any trailing rows or columns of src that do not fill a whole
// block are dropped. src is assumed to be at least
// dst.Width*DownscaleRatio by dst.Height*DownscaleRatio pixels.
func downscale(src, dst *Frame, acc []uint16) {
	for i := range acc {
		acc[i] = 0
	}

	srcStride, dstStride := src.Stride(), dst.Stride()
	for y := 0; y < dst.Height*DownscaleRatio; y++ {
		row := src.Pix[y*srcStride : y*srcStride+dst.Width*DownscaleRatio*Channels]
		a := acc[(y/DownscaleRatio)*dstStride : (y/DownscaleRatio+1)*dstStride]
		for i, j := 0, 0; j < len(a); j += Channels {
			for p := 0; p < DownscaleRatio; p++ {
				for c := 0; c < Channels; c++ {
					a[j+c] += uint16(row[i+c])
				}
				i += Channels
			}
		}
	}

	for i, v := range acc {
		dst.Pix[i] = byte(v / downscaleArea)
	}
}
