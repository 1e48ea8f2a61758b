/*
NAME
  config.go

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>
  Trek Hopton <trek@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package config contains the configuration settings for a motion detection
// pipeline.
package config

import (
	"github.com/ausocean/utils/logging"
)

// Enums to define inputs and outputs.
const (
	// Indicates no option has been set.
	NothingDefined = iota

	// Inputs.
	InputFile
	InputManual

	// Outputs.
	OutputFile
	OutputFiles
)

// The different media filters.
const (
	FilterNoOp = iota
	FilterMask
	FilterVariableFPS
)

// Config provides parameters relevant to a pipeline instance. A new config
// must be passed to the constructor. Default values for these fields are
// defined as consts in variables.go.
type Config struct {
	// Benchmark enables measurement of the rate at which frames pass through
	// the motion extractor.
	Benchmark bool

	// EventDB is the path of the SQLite database that motion events are
	// recorded to. If empty, events are only logged.
	EventDB string

	// EventHold is the number of consecutive frames without motion needed
	// to end a motion event.
	EventHold uint

	FileFPS uint   // Defines the rate at which frames from a file source are processed.
	Filters []uint // Defines the methods of filtering to be used in between lexing and output.

	// FrameRate defines the input frame rate. This is used to convert the
	// motion settle time into a number of frames.
	FrameRate uint

	// Height and Width define the expected input frame dimensions. If zero,
	// the dimensions of the first frame are used.
	Height uint
	Width  uint

	// Input defines the input data source.
	//
	// Valid values are defined by enums:
	// InputFile:
	//		Read an MJPEG stream from a file.
	// 		Location must be specified in InputPath field.
	// InputManual:
	//		MJPEG data is written to the pipeline directly.
	Input uint8

	// InputPath defines the input file location for File Input. This must be
	// defined if File input is to be used.
	InputPath string

	// Logger holds an implementation of the Logger interface.
	// This must be set for the pipeline to work correctly.
	Logger logging.Logger

	// LogLevel is the logging verbosity level.
	// Valid values are defined by enums from the logger package: logging.Debug,
	// logging.Info, logging.Warning logging.Error, logging.Fatal.
	LogLevel int8

	Loop        bool // If true will restart reading of input after an io.EOF.
	MaxFileSize uint // Maximum size in bytes that a file will be written when File output is to be used. A value of 0 means unlimited.
	MinFPS      uint // The reduced framerate of the video when there is no motion.

	// MotionErosion is the number of active neighbours a mask pixel needs to
	// survive noise filtering. Zero disables noise filtering and nil selects
	// the default.
	MotionErosion *int

	MotionPadding     uint    // Number of frames to keep before and after motion detected.
	MotionPixels      uint    // Number of active mask pixels needed for a frame to be considered as moving.
	MotionSensitivity uint    // Per channel difference considered a change.
	MotionSettleTime  float64 // Seconds a pixel must be stable before it becomes background.

	// OutputPath defines the output destination for File output. This must be
	// defined if File output is to be used.
	OutputPath string

	// Outputs define the outputs we wish to output data too.
	//
	// Valid outputs are defined by enums:
	// OutputFile:
	// 		Frames with motion are appended to a file at OutputPath.
	// OutputFiles:
	//		Each frame with motion is written to its own file under OutputPath.
	Outputs []uint8

	PoolCapacity         uint // The number of bytes the pool buffer will occupy.
	PoolStartElementSize uint // The starting element size of the pool buffer from which element size will increase to accomodate frames.
	PoolWriteTimeout     uint // The pool buffer write timeout in seconds.

	// SnapshotPath is the directory that motion mask snapshots are written to
	// as PNG images. If empty, no snapshots are written.
	SnapshotPath string

	Suppress bool // Holds logger suppression state.
}

// Validate checks for any errors in the config fields and defaults settings
// if particular parameters have not been defined.
func (c *Config) Validate() error {
	for _, v := range Variables {
		if v.Validate != nil {
			v.Validate(c)
		}
	}
	return nil
}

// Update takes a map of configuration variable names and their corresponding
// values, parses the string values and converting into correct type, and then
// sets the config struct fields as appropriate.
func (c *Config) Update(vars map[string]string) {
	for _, value := range Variables {
		if v, ok := vars[value.Name]; ok && value.Update != nil {
			value.Update(c, v)
		}
	}
}

func (c *Config) LogInvalidField(name string, def interface{}) {
	c.Logger.Info(name+" bad or unset, defaulting", name, def)
}
