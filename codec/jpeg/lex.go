/*
NAME
  lex.go

DESCRIPTION
  lex.go provides a lexer to extract separate JPEG images from a JPEG stream.
  This could either be a series of discrete JPEG images, or an MJPEG stream.

AUTHOR
  Dan Kortschak <dan@ausocean.org>
  Saxon Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package jpeg provides lexing of MJPEG streams into discrete JPEG images.
package jpeg

import (
	"bufio"
	"io"
	"time"

	"github.com/pkg/errors"
)

// JPEG markers.
const (
	marker = 0xff
	soi    = 0xd8 // Start of image.
	eoi    = 0xd9 // End of image.
)

// ErrNotJPEG is returned when a frame does not begin with a start of image
// marker.
var ErrNotJPEG = errors.New("not JPEG frame start")

var noDelay = make(chan time.Time)

func init() {
	close(noDelay)
}

// Lex parses JPEG frames read from src into separate writes to dst with
// successive writes being performed not earlier than the specified delay.
// Nested images, such as embedded thumbnails, are kept within the enclosing
// frame. Lex returns io.EOF if src ends on a frame boundary and
// io.ErrUnexpectedEOF if it ends within a frame.
func Lex(dst io.Writer, src io.Reader, delay time.Duration) error {
	var tick <-chan time.Time
	if delay == 0 {
		tick = noDelay
	} else {
		ticker := time.NewTicker(delay)
		defer ticker.Stop()
		tick = ticker.C
	}

	r := bufio.NewReader(src)
	for {
		buf := make([]byte, 2, 4<<10)
		n, err := io.ReadFull(r, buf)
		switch {
		case n == 0 && err == io.EOF:
			return io.EOF
		case err != nil:
			// io.ReadFull reports a partial marker as io.ErrUnexpectedEOF.
			return err
		}
		if buf[0] != marker || buf[1] != soi {
			return errors.Wrapf(ErrNotJPEG, "got %#x", buf)
		}

		depth := 1
		var last byte
		for depth > 0 {
			b, err := r.ReadByte()
			if err == io.EOF {
				return io.ErrUnexpectedEOF
			}
			if err != nil {
				return err
			}
			buf = append(buf, b)

			if last == marker {
				switch b {
				case soi:
					depth++
				case eoi:
					depth--
				}
			}
			last = b
		}

		<-tick
		_, err = dst.Write(buf)
		if err != nil {
			return err
		}
	}
}
