// Command chat is an interactive stdin-driven exerciser of the
// envelope protocol: lines typed on stdin become chat messages,
// incoming messages print with their sender's session prefix.
package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/strftime"

	"github.com/hamcore/kissbridge/internal/chat"
	"github.com/hamcore/kissbridge/internal/config"
	"github.com/hamcore/kissbridge/internal/envelope"
	"github.com/hamcore/kissbridge/internal/msgbus"
	"github.com/hamcore/kissbridge/internal/rlog"
	"github.com/hamcore/kissbridge/internal/signalbus"
)

// timestampWriter prefixes every write with a strftime-formatted
// timestamp when format is non-empty.
type timestampWriter struct {
	out    io.Writer
	format string
}

func (w *timestampWriter) Write(p []byte) (int, error) {
	if w.format != "" {
		stamp, err := strftime.Format(w.format, time.Now())
		if err != nil {
			return 0, err
		}
		if _, err := io.WriteString(w.out, stamp+" "); err != nil {
			return 0, err
		}
	}
	return w.out.Write(p)
}

func main() {
	cfg, err := config.ParseChat(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := rlog.New("chat", cfg.Verbose)

	username := cfg.Username
	if username == "" {
		username = uuid.NewString()
	}

	sub, err := msgbus.DialSub(cfg.ServerURL)
	if err != nil {
		logger.Error("failed to connect", "url", cfg.ServerURL, "err", err)
		os.Exit(1)
	}
	pub, err := msgbus.DialPub(cfg.ClientURL)
	if err != nil {
		logger.Error("failed to connect", "url", cfg.ClientURL, "err", err)
		os.Exit(1)
	}
	defer sub.Close()
	defer pub.Close()

	sock, err := envelope.NewSocket(cfg.Host, envelope.DelimDot, pub, sub)
	if err != nil {
		logger.Error("failed to build envelope socket", "err", err)
		os.Exit(1)
	}

	if cfg.TimestampFormat != "" {
		if _, err := strftime.Format(cfg.TimestampFormat, time.Now()); err != nil {
			logger.Error("invalid timestamp format", "err", err)
			os.Exit(1)
		}
	}
	out := &timestampWriter{out: os.Stdout, format: cfg.TimestampFormat}

	signals, err := signalbus.NewDispatcher()
	if err != nil {
		logger.Error("failed to start signal fanout", "err", err)
		os.Exit(1)
	}
	go signals.Run()
	defer signals.Stop()

	r, err := chat.New(sock, cfg.Target, username, os.Stdin, out, logger)
	if err != nil {
		logger.Error("failed to start", "err", err)
		os.Exit(1)
	}

	graceful, err := r.Run()
	if err != nil {
		logger.Error("exiting on error", "err", err)
		os.Exit(1)
	}
	if !graceful {
		logger.Warn("terminated immediately")
	}
	os.Exit(0)
}
