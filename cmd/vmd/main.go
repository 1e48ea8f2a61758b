/*
DESCRIPTION
  vmd is a daemon that reads MJPEG video, detects motion in it and records
  the frames, mask snapshots and motion events that result.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>
  Alan Noble <alan@ausocean.org>
  Dan Kortschak <dan@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Command vmd is a motion detection daemon.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/daemon"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ausocean/utils/logging"
	"github.com/ausocean/vmd/config"
	"github.com/ausocean/vmd/pipeline"
)

// Current software version.
const version = "v0.1.0"

// Logging configuration.
const (
	logPath      = "/var/log/vmd/vmd.log"
	logMaxSize   = 500 // MB
	logMaxBackup = 10
	logMaxAge    = 28 // days
	logVerbosity = logging.Info
	logSuppress  = true
)

func main() {
	showVersion := flag.Bool("version", false, "Show version and exit")
	configPtr := flag.String("config", "", "Path to JSON file of configuration variables")
	paramsPtr := flag.String("params", "", "Path to JSON file of motion parameters")
	logPtr := flag.String("log", logPath, "Path to log file")
	flag.Parse()

	if *showVersion {
		fmt.Printf("version: %s\n", version)
		os.Exit(0)
	}

	fileLog := &lumberjack.Logger{
		Filename:   *logPtr,
		MaxSize:    logMaxSize,
		MaxBackups: logMaxBackup,
		MaxAge:     logMaxAge,
	}
	log := logging.New(logVerbosity, io.MultiWriter(fileLog, os.Stderr), logSuppress)
	log.Info("starting vmd", "version", version)

	vars, err := readVars(*configPtr)
	if err != nil {
		log.Fatal("could not read config", "error", err.Error())
	}

	p, err := pipeline.New(config.Config{Logger: log})
	if err != nil {
		log.Fatal("could not create pipeline", "error", err.Error())
	}
	err = p.Update(vars)
	if err != nil {
		log.Fatal("could not update pipeline config", "error", err.Error())
	}

	var pw *paramsWatcher
	if *paramsPtr != "" {
		pw, err = setupParams(*paramsPtr, p, log)
		if err != nil {
			log.Fatal("could not set up params", "error", err.Error())
		}
		go pw.run()
	}

	err = p.Start()
	if err != nil {
		log.Fatal("could not start pipeline", "error", err.Error())
	}
	notify(log, daemon.SdNotifyReady)

	run(p, log)

	notify(log, daemon.SdNotifyStopping)
	if pw != nil {
		pw.close()
	}
	p.Stop()
	log.Info("vmd stopped")
}

// run blocks until vmd is signalled or the pipeline input is exhausted,
// sending watchdog notifications if systemd asks for them.
func run(p *pipeline.Pipeline, log logging.Logger) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sig)

	var watchdog <-chan time.Time
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		log.Warning("could not check watchdog", "error", err.Error())
	}
	if interval > 0 {
		t := time.NewTicker(interval / 2)
		defer t.Stop()
		watchdog = t.C
	}

	for {
		select {
		case s := <-sig:
			log.Info("received signal", "signal", s.String())
			return
		case <-p.Done():
			log.Info("input finished")
			return
		case <-watchdog:
			notify(log, daemon.SdNotifyWatchdog)
		}
	}
}

// setupParams applies the params file at path to p, creating the file from
// the current parameters if it does not exist, and returns a watcher for it.
func setupParams(path string, p *pipeline.Pipeline, log logging.Logger) (*paramsWatcher, error) {
	params, err := loadParams(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.Info("params file not found, writing current params", "path", path)
		err = saveParams(path, p.Params())
		if err != nil {
			return nil, fmt.Errorf("could not write params file: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("could not read params file: %w", err)
	default:
		err = p.SetParams(params)
		if err != nil {
			return nil, fmt.Errorf("could not apply params: %w", err)
		}
	}
	return newParamsWatcher(path, log, p.SetParams)
}

// readVars reads a JSON object of configuration variables from the file at
// path. An empty path gives no variables.
func readVars(path string) (map[string]string, error) {
	vars := make(map[string]string)
	if path == "" {
		return vars, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	err = json.Unmarshal(b, &vars)
	if err != nil {
		return nil, fmt.Errorf("could not unmarshal config: %w", err)
	}
	return vars, nil
}

// notify sends state to systemd. It is a no-op when vmd is not run by
// systemd.
func notify(log logging.Logger, state string) {
	ok, err := daemon.SdNotify(false, state)
	if err != nil {
		log.Warning("could not notify systemd", "state", state, "error", err.Error())
		return
	}
	if ok {
		log.Debug("notified systemd", "state", state)
	}
}
