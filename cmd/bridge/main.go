// Command bridge runs the bridge reactor, splicing a serial device
// (or loopback, if --device is empty) to the messaging fabric.
package main

import (
	"fmt"
	"os"

	"github.com/hamcore/kissbridge/internal/bridge"
	"github.com/hamcore/kissbridge/internal/config"
	"github.com/hamcore/kissbridge/internal/rlog"
	"github.com/hamcore/kissbridge/internal/signalbus"
)

func main() {
	cfg, err := config.ParseBridge(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := rlog.New("bridge", cfg.Verbose)
	logger.Info("starting", "device", cfg.Device, "variant", cfg.Variant, "baud", cfg.Baud)

	signals, err := signalbus.NewDispatcher()
	if err != nil {
		logger.Error("failed to start signal fanout", "err", err)
		os.Exit(1)
	}
	go signals.Run()
	defer signals.Stop()

	b, err := bridge.New(cfg.Config, logger)
	if err != nil {
		logger.Error("failed to start", "err", err)
		os.Exit(1)
	}
	defer b.Close()

	graceful, err := b.Run()
	if err != nil {
		logger.Error("exiting on error", "err", err)
		os.Exit(1)
	}
	if !graceful {
		logger.Warn("terminated immediately")
	}
	os.Exit(0)
}
