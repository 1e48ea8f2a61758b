/*
DESCRIPTION
  variables.go contains a list of structs that provide a variable Name, type in
  a string format, a function for updating the variable in the Config struct
  from a string, and finally, a validation function to check the validity of the
  corresponding field value in the Config.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ausocean/utils/logging"
	"github.com/ausocean/vmd/motion"
)

// Config map Keys.
const (
	KeyBenchmark            = "Benchmark"
	KeyEventDB              = "EventDB"
	KeyEventHold            = "EventHold"
	KeyFileFPS              = "FileFPS"
	KeyFilters              = "Filters"
	KeyFrameRate            = "FrameRate"
	KeyHeight               = "Height"
	KeyInput                = "Input"
	KeyInputPath            = "InputPath"
	KeyLogging              = "logging"
	KeyLoop                 = "Loop"
	KeyMaxFileSize          = "MaxFileSize"
	KeyMinFPS               = "MinFPS"
	KeyMotionErosion        = "MotionErosion"
	KeyMotionPadding        = "MotionPadding"
	KeyMotionPixels         = "MotionPixels"
	KeyMotionSensitivity    = "MotionSensitivity"
	KeyMotionSettleTime     = "MotionSettleTime"
	KeyOutput               = "Output"
	KeyOutputPath           = "OutputPath"
	KeyOutputs              = "Outputs"
	KeyPoolCapacity         = "PoolCapacity"
	KeyPoolStartElementSize = "PoolStartElementSize"
	KeyPoolWriteTimeout     = "PoolWriteTimeout"
	KeySnapshotPath         = "SnapshotPath"
	KeySuppress             = "Suppress"
	KeyWidth                = "Width"
)

// Config map parameter types.
const (
	typeString = "string"
	typeInt    = "int"
	typeUint   = "uint"
	typeBool   = "bool"
	typeFloat  = "float"
)

// Default variable values.
const (
	// General defaults.
	defaultInput     = InputFile
	defaultOutput    = OutputFile
	defaultVerbosity = logging.Error
	defaultFrameRate = 25
	defaultFileFPS   = 0
	defaultFilter    = FilterMask

	// Ring buffer defaults.
	defaultPoolCapacity         = 50000000 // => 50MB
	defaultPoolStartElementSize = 1000     // bytes
	defaultPoolWriteTimeout     = 5        // Seconds.

	// Motion filter parameter defaults.
	defaultMinFPS            = 1
	defaultEventHold         = 25 // Frames.
	defaultMotionErosion     = 5
	defaultMotionPadding     = 10 // Frames.
	defaultMotionPixels      = 20
	defaultMotionSensitivity = 26
	defaultMotionSettleTime  = 1.0 // Seconds.
)

// Variables describes the variables that can be used for pipeline control.
// These structs provide the name and type of variable, a function for updating
// this variable in a Config, and a function for validating the value of the variable.
var Variables = []struct {
	Name     string
	Type     string
	Update   func(*Config, string)
	Validate func(*Config)
}{
	{
		Name:   KeyBenchmark,
		Type:   typeBool,
		Update: func(c *Config, v string) { c.Benchmark = parseBool(KeyBenchmark, v, c) },
	},
	{
		Name:   KeyEventDB,
		Type:   typeString,
		Update: func(c *Config, v string) { c.EventDB = v },
	},
	{
		Name:     KeyEventHold,
		Type:     typeUint,
		Update:   func(c *Config, v string) { c.EventHold = parseUint(KeyEventHold, v, c) },
		Validate: func(c *Config) { c.EventHold = lessThanOrEqual(KeyEventHold, c.EventHold, 0, c, defaultEventHold) },
	},
	{
		Name:   KeyFileFPS,
		Type:   typeUint,
		Update: func(c *Config, v string) { c.FileFPS = parseUint(KeyFileFPS, v, c) },
		Validate: func(c *Config) {
			if c.FileFPS > 0 && c.Input != InputFile {
				c.LogInvalidField(KeyFileFPS, defaultFileFPS)
				c.FileFPS = defaultFileFPS
			}
		},
	},
	{
		Name: KeyFilters,
		Type: "enums:NoOp,Mask,VariableFPS",
		Update: func(c *Config, v string) {
			filters := strings.Split(v, ",")
			m := map[string]uint{"NoOp": FilterNoOp, "Mask": FilterMask, "VariableFPS": FilterVariableFPS}
			c.Filters = make([]uint, 0, len(filters))
			for _, filter := range filters {
				f, ok := m[strings.TrimSpace(filter)]
				if !ok {
					c.Logger.Warning("invalid Filters param", "value", filter)
					continue
				}
				c.Filters = append(c.Filters, f)
			}
		},
		Validate: func(c *Config) {
			if len(c.Filters) == 0 {
				c.LogInvalidField(KeyFilters, defaultFilter)
				c.Filters = []uint{defaultFilter}
			}
		},
	},
	{
		Name:   KeyFrameRate,
		Type:   typeUint,
		Update: func(c *Config, v string) { c.FrameRate = parseUint(KeyFrameRate, v, c) },
		Validate: func(c *Config) {
			if c.FrameRate <= 0 || c.FrameRate > 60 {
				c.LogInvalidField(KeyFrameRate, defaultFrameRate)
				c.FrameRate = defaultFrameRate
			}
		},
	},
	{
		Name:   KeyHeight,
		Type:   typeUint,
		Update: func(c *Config, v string) { c.Height = parseUint(KeyHeight, v, c) },
	},
	{
		Name: KeyInput,
		Type: "enum:file,manual",
		Update: func(c *Config, v string) {
			c.Input = parseEnum(
				KeyInput,
				v,
				map[string]uint8{
					"file":   InputFile,
					"manual": InputManual,
				},
				c,
			)
		},
		Validate: func(c *Config) {
			switch c.Input {
			case InputFile, InputManual:
			default:
				c.LogInvalidField(KeyInput, defaultInput)
				c.Input = defaultInput
			}
		},
	},
	{
		Name:   KeyInputPath,
		Type:   typeString,
		Update: func(c *Config, v string) { c.InputPath = v },
	},
	{
		Name: KeyLogging,
		Type: "enum:Debug,Info,Warning,Error,Fatal",
		Update: func(c *Config, v string) {
			switch v {
			case "Debug":
				c.LogLevel = logging.Debug
			case "Info":
				c.LogLevel = logging.Info
			case "Warning":
				c.LogLevel = logging.Warning
			case "Error":
				c.LogLevel = logging.Error
			case "Fatal":
				c.LogLevel = logging.Fatal
			default:
				c.Logger.Warning("invalid Logging param", "value", v)
			}
		},
		Validate: func(c *Config) {
			switch c.LogLevel {
			case logging.Debug, logging.Info, logging.Warning, logging.Error, logging.Fatal:
			default:
				c.LogInvalidField("LogLevel", defaultVerbosity)
				c.LogLevel = defaultVerbosity
			}
		},
	},
	{
		Name:   KeyLoop,
		Type:   typeBool,
		Update: func(c *Config, v string) { c.Loop = parseBool(KeyLoop, v, c) },
	},
	{
		Name:   KeyMaxFileSize,
		Type:   typeUint,
		Update: func(c *Config, v string) { c.MaxFileSize = parseUint(KeyMaxFileSize, v, c) },
	},
	{
		Name:     KeyMinFPS,
		Type:     typeUint,
		Update:   func(c *Config, v string) { c.MinFPS = parseUint(KeyMinFPS, v, c) },
		Validate: func(c *Config) { c.MinFPS = lessThanOrEqual(KeyMinFPS, c.MinFPS, 0, c, defaultMinFPS) },
	},
	{
		Name:   KeyMotionErosion,
		Type:   typeInt,
		Update: func(c *Config, v string) { c.MotionErosion = parseOptionalInt(KeyMotionErosion, v, c) },
		Validate: func(c *Config) {
			// Zero is meaningful (no noise filtering) so only unset and out of
			// range values are defaulted.
			l := c.MotionErosion
			if l == nil || *l < motion.MinErosion || *l > motion.MaxErosion {
				c.LogInvalidField(KeyMotionErosion, defaultMotionErosion)
				def := defaultMotionErosion
				c.MotionErosion = &def
			}
		},
	},
	{
		Name:     KeyMotionPadding,
		Type:     typeUint,
		Update:   func(c *Config, v string) { c.MotionPadding = parseUint(KeyMotionPadding, v, c) },
		Validate: func(c *Config) { c.MotionPadding = lessThanOrEqual(KeyMotionPadding, c.MotionPadding, 0, c, defaultMotionPadding) },
	},
	{
		Name:     KeyMotionPixels,
		Type:     typeUint,
		Update:   func(c *Config, v string) { c.MotionPixels = parseUint(KeyMotionPixels, v, c) },
		Validate: func(c *Config) { c.MotionPixels = lessThanOrEqual(KeyMotionPixels, c.MotionPixels, 0, c, defaultMotionPixels) },
	},
	{
		Name:   KeyMotionSensitivity,
		Type:   typeUint,
		Update: func(c *Config, v string) { c.MotionSensitivity = parseUint(KeyMotionSensitivity, v, c) },
		Validate: func(c *Config) {
			if c.MotionSensitivity < motion.MinSensitivity || c.MotionSensitivity > motion.MaxSensitivity {
				c.LogInvalidField(KeyMotionSensitivity, defaultMotionSensitivity)
				c.MotionSensitivity = defaultMotionSensitivity
			}
		},
	},
	{
		Name:   KeyMotionSettleTime,
		Type:   typeFloat,
		Update: func(c *Config, v string) { c.MotionSettleTime = parseFloat(KeyMotionSettleTime, v, c) },
		Validate: func(c *Config) {
			if !(c.MotionSettleTime >= motion.MinSettleTime && c.MotionSettleTime <= motion.MaxSettleTime) {
				c.LogInvalidField(KeyMotionSettleTime, defaultMotionSettleTime)
				c.MotionSettleTime = defaultMotionSettleTime
			}
		},
	},
	{
		Name: KeyOutput,
		Type: "enum:File,Files",
		Update: func(c *Config, v string) {
			c.Outputs = make([]uint8, 1)
			switch strings.ToLower(v) {
			case "file":
				c.Outputs[0] = OutputFile
			case "files":
				c.Outputs[0] = OutputFiles
			default:
				c.Logger.Warning("invalid output param", "value", v)
			}
		},
	},
	{
		Name:   KeyOutputPath,
		Type:   typeString,
		Update: func(c *Config, v string) { c.OutputPath = v },
	},
	{
		Name: KeyOutputs,
		Type: "enums:File,Files",
		Update: func(c *Config, v string) {
			outputs := strings.Split(v, ",")
			c.Outputs = make([]uint8, 0, len(outputs))
			for _, output := range outputs {
				switch strings.ToLower(strings.TrimSpace(output)) {
				case "file":
					c.Outputs = append(c.Outputs, OutputFile)
				case "files":
					c.Outputs = append(c.Outputs, OutputFiles)
				default:
					c.Logger.Warning("invalid outputs param", "value", v)
				}
			}
		},
		Validate: func(c *Config) {
			if len(c.Outputs) == 0 {
				c.LogInvalidField(KeyOutputs, defaultOutput)
				c.Outputs = []uint8{defaultOutput}
			}
		},
	},
	{
		Name:     KeyPoolCapacity,
		Type:     typeUint,
		Update:   func(c *Config, v string) { c.PoolCapacity = parseUint(KeyPoolCapacity, v, c) },
		Validate: func(c *Config) { c.PoolCapacity = lessThanOrEqual(KeyPoolCapacity, c.PoolCapacity, 0, c, defaultPoolCapacity) },
	},
	{
		Name:   KeyPoolStartElementSize,
		Type:   typeUint,
		Update: func(c *Config, v string) { c.PoolStartElementSize = parseUint(KeyPoolStartElementSize, v, c) },
		Validate: func(c *Config) {
			c.PoolStartElementSize = lessThanOrEqual(KeyPoolStartElementSize, c.PoolStartElementSize, 0, c, defaultPoolStartElementSize)
		},
	},
	{
		Name:   KeyPoolWriteTimeout,
		Type:   typeUint,
		Update: func(c *Config, v string) { c.PoolWriteTimeout = parseUint(KeyPoolWriteTimeout, v, c) },
		Validate: func(c *Config) {
			c.PoolWriteTimeout = lessThanOrEqual(KeyPoolWriteTimeout, c.PoolWriteTimeout, 0, c, defaultPoolWriteTimeout)
		},
	},
	{
		Name:   KeySnapshotPath,
		Type:   typeString,
		Update: func(c *Config, v string) { c.SnapshotPath = v },
	},
	{
		Name:   KeySuppress,
		Type:   typeBool,
		Update: func(c *Config, v string) { c.Suppress = parseBool(KeySuppress, v, c) },
	},
	{
		Name:   KeyWidth,
		Type:   typeUint,
		Update: func(c *Config, v string) { c.Width = parseUint(KeyWidth, v, c) },
	},
}

func parseUint(n, v string, c *Config) uint {
	_v, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		c.Logger.Warning(fmt.Sprintf("expected unsigned int for param %s", n), "value", v)
	}
	return uint(_v)
}

// parseOptionalInt returns nil if v is not an integer, so that the field is
// defaulted by Validate.
func parseOptionalInt(n, v string, c *Config) *int {
	_v, err := strconv.Atoi(v)
	if err != nil {
		c.Logger.Warning(fmt.Sprintf("expected integer for param %s", n), "value", v)
		return nil
	}
	return &_v
}

func parseFloat(n, v string, c *Config) float64 {
	_v, err := strconv.ParseFloat(v, 64)
	if err != nil {
		c.Logger.Warning(fmt.Sprintf("expected float for param %s", n), "value", v)
	}
	return _v
}

func parseBool(n, v string, c *Config) (b bool) {
	switch strings.ToLower(v) {
	case "true":
		b = true
	case "false":
		b = false
	default:
		c.Logger.Warning(fmt.Sprintf("expect bool for param %s", n), "value", v)
	}
	return
}

func parseEnum(n, v string, enums map[string]uint8, c *Config) uint8 {
	_v, ok := enums[strings.ToLower(v)]
	if !ok {
		c.Logger.Warning(fmt.Sprintf("invalid value for %s param", n), "value", v)
	}
	return _v
}

func lessThanOrEqual(n string, v, cmp uint, c *Config, def uint) uint {
	if v <= cmp {
		c.LogInvalidField(n, def)
		return def
	}
	return v
}

// Params returns the motion parameters held by c as a motion.Params record.
func (c *Config) Params() motion.Params {
	s, t := int(c.MotionSensitivity), c.MotionSettleTime
	var e *int
	if c.MotionErosion != nil {
		l := *c.MotionErosion
		e = &l
	}
	return motion.Params{Sensitivity: &s, SettleTime: &t, Erosion: e}
}
