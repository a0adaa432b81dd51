// Command echo-server answers every command="echo" envelope it
// receives with the same payload, addressed back to the sender,
// exercising the bridge's multi-part passthrough end to end.
package main

import (
	"fmt"
	"os"

	"github.com/hamcore/kissbridge/internal/config"
	"github.com/hamcore/kissbridge/internal/envelope"
	"github.com/hamcore/kissbridge/internal/msgbus"
	"github.com/hamcore/kissbridge/internal/rlog"
)

const commandEcho = "echo"

func main() {
	cfg, err := config.ParseEcho("echo-server", "echo", "", os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := rlog.New("echo-server", cfg.Verbose)

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

	logger.Info("serving", "host", cfg.Host)
	for {
		env, data, ok, err := sock.Recv()
		if err != nil {
			logger.Error("recv failed", "err", err)
			os.Exit(1)
		}
		if !ok || env.Command != commandEcho {
			continue
		}
		reply := envelope.Envelope{Session: env.Session, Command: commandEcho}
		if err := sock.Send(env.Remote, reply, data); err != nil {
			logger.Error("send failed", "err", err)
		}
	}
}
