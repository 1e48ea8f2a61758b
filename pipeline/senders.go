/*
NAME
  senders.go

DESCRIPTION
  senders.go contains the senders that frames with motion and motion mask
  snapshots are written to.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>
  Alan Noble <alan@ausocean.org>

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
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/ausocean/utils/logging"
	"github.com/ausocean/utils/pool"
	"github.com/ausocean/vmd/motion"
)

// Sender constants.
const (
	snapshotPoolReadTimeout  = 1 * time.Second
	snapshotPoolDrainTimeout = 10 * time.Millisecond
	diskSpaceBuffer         = 50000000 // 50MB.
	timeFormat              = "2006-01-02_15-04-05"
)

// fileSender implements io.WriteCloser for a local file destination. JPEG
// frames are either appended to a single MJPEG file, or each written to
// their own file.
type fileSender struct {
	file        *os.File
	multiFile   bool
	maxFileSize uint // maxFileSize is in bytes. A size of 0 means there is no size limit.
	path        string
	count       int
	log         logging.Logger
}

// newFileSender returns a new fileSender. Setting multi true will write a new
// file for each write to this sender.
func newFileSender(l logging.Logger, path string, multiFile bool, maxFileSize uint) *fileSender {
	return &fileSender{
		path:        path,
		log:         l,
		multiFile:   multiFile,
		maxFileSize: maxFileSize,
	}
}

// Write implements io.Writer.
func (s *fileSender) Write(d []byte) (int, error) {
	// path is a file name prefix, which may be a directory.
	err := checkDiskSpace(s.log, filepath.Dir(s.path+"x"))
	if err != nil {
		return 0, err
	}

	// If the write will exceed the max file size, close the file so that a new one can be created.
	if s.maxFileSize != 0 && s.file != nil {
		fileInfo, err := s.file.Stat()
		if err != nil {
			return 0, fmt.Errorf("could not read files stats: %w", err)
		}
		size := uint(fileInfo.Size())
		s.log.Debug("checked file size", "bytes", size)
		if size+uint(len(d)) > s.maxFileSize {
			s.log.Debug("new write would exceed max file size, closing existing file", "maxFileSize", s.maxFileSize)
			s.file.Close()
			s.file = nil
		}
	}

	if s.file == nil {
		ext := ".mjpeg"
		if s.multiFile {
			ext = ".jpg"
		}
		fileName := fmt.Sprintf("%s%s_%06d%s", s.path, time.Now().Format(timeFormat), s.count, ext)
		s.count++
		s.log.Debug("creating new output file", "multiFile", s.multiFile, "fileName", fileName)
		f, err := os.Create(fileName)
		if err != nil {
			return 0, fmt.Errorf("could not create file to write media to: %w", err)
		}
		s.file = f
	}

	s.log.Debug("writing to output file", "bytes", len(d))
	n, err := s.file.Write(d)
	if err != nil {
		return n, err
	}

	if s.multiFile {
		s.file.Close()
		s.file = nil
	}

	return n, nil
}

// Close implements io.Closer.
func (s *fileSender) Close() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// checkDiskSpace returns an error if the file system holding dir has less
// than diskSpaceBuffer bytes available.
func checkDiskSpace(l logging.Logger, dir string) error {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(dir, &stat); err != nil {
		return fmt.Errorf("could not read system disk space, abandoning write: %w", err)
	}
	availableSpace := stat.Bavail * uint64(stat.Bsize)
	l.Debug("available disk space in bytes", "availableSpace", availableSpace)
	if availableSpace < diskSpaceBuffer {
		return fmt.Errorf("reached limit of disk space with a buffer of %v bytes, abandoning write", diskSpaceBuffer)
	}
	return nil
}

// snapshotSender writes PNG images of motion masks to a directory. Masks
// are encoded as they are observed and passed through a pool buffer to an
// output routine that writes the files, so that slow disks do not hold up
// the pipeline.
type snapshotSender struct {
	dir      string
	log      logging.Logger
	interval time.Duration // Minimum time between snapshots.
	thresh   int           // Active pixels needed for a snapshot.
	capacity int           // Pool buffer capacity in bytes.
	timeout  time.Duration // Pool buffer write timeout.

	last time.Time
	gray *image.Gray
	buf  bytes.Buffer
	enc  png.Encoder

	mu   sync.Mutex // Guards pool.
	pool *pool.Buffer

	n    int // Snapshots written.
	done chan struct{}
	wg   sync.WaitGroup
}

// newSnapshotSender returns a new snapshotSender writing to dir, creating dir
// if needed.
func newSnapshotSender(dir string, l logging.Logger, rb *pool.Buffer, capacity int, timeout, interval time.Duration, thresh int) (*snapshotSender, error) {
	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return nil, fmt.Errorf("could not create snapshot directory: %w", err)
	}
	s := &snapshotSender{
		dir:      dir,
		log:      l,
		interval: interval,
		thresh:   thresh,
		capacity: capacity,
		timeout:  timeout,
		pool:     rb,
		enc:      png.Encoder{CompressionLevel: png.BestSpeed},
		done:     make(chan struct{}),
	}
	pool.MaxAlloc(snapshotPoolMaxSize)
	s.wg.Add(1)
	go s.output()
	return s, nil
}

// observe is a filter.Observer that queues a snapshot of mask when it has
// motion and no snapshot has been taken within the interval.
func (s *snapshotSender) observe(active int, mask *motion.Frame) {
	if active < s.thresh {
		return
	}
	now := time.Now()
	if now.Sub(s.last) < s.interval {
		return
	}
	s.last = now

	s.gray = mask.Gray(s.gray)
	s.buf.Reset()
	err := s.enc.Encode(&s.buf, s.gray)
	if err != nil {
		s.log.Error("could not encode snapshot", "error", err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.pool.Write(s.buf.Bytes())
	if err == nil {
		s.pool.Flush()
		return
	}
	s.log.Warning("pool buffer write error", "error", err.Error(), "n", n, "writeSize", s.buf.Len())
	if err == pool.ErrTooLong {
		size := s.buf.Len() * 2
		s.pool = pool.NewBuffer(s.capacity/size, size, s.timeout)
		s.log.Info("adjusted snapshot pool buffer element size", "new size", size, "num elements", s.capacity/size)
	}
}

// output starts the snapshotSender's file writing routine.
func (s *snapshotSender) output() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			s.drain()
			s.log.Info("terminating snapshot output routine")
			return
		default:
		}

		s.mu.Lock()
		rb := s.pool
		s.mu.Unlock()

		chunk, err := rb.Next(snapshotPoolReadTimeout)
		switch err {
		case nil:
		case io.EOF:
			continue
		case pool.ErrTimeout:
			s.log.Debug("snapshotSender: pool buffer read timeout")
			continue
		default:
			s.log.Error("unexpected error", "error", err.Error())
			continue
		}
		s.writeChunk(chunk)
	}
}

// drain writes any snapshots still queued in the pool buffer.
func (s *snapshotSender) drain() {
	s.mu.Lock()
	rb := s.pool
	s.mu.Unlock()
	for {
		chunk, err := rb.Next(snapshotPoolDrainTimeout)
		if err != nil {
			return
		}
		s.writeChunk(chunk)
	}
}

func (s *snapshotSender) writeChunk(chunk *pool.Chunk) {
	err := s.write(chunk.Bytes())
	if err != nil {
		s.log.Error("could not write snapshot", "error", err.Error())
	}
	chunk.Close()
}

func (s *snapshotSender) write(b []byte) error {
	err := checkDiskSpace(s.log, s.dir)
	if err != nil {
		return err
	}
	name := filepath.Join(s.dir, fmt.Sprintf("mask_%s_%06d.png", time.Now().Format(timeFormat), s.n))
	s.n++
	err = os.WriteFile(name, b, 0o644)
	if err != nil {
		return err
	}
	s.log.Debug("wrote snapshot", "file", name, "bytes", len(b))
	return nil
}

// Close implements io.Closer.
func (s *snapshotSender) Close() error {
	s.log.Debug("closing snapshot output routine")
	close(s.done)
	s.wg.Wait()
	s.log.Info("snapshot output routine closed")
	return nil
}
