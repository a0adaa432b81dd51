// Command echo-client sends one command="echo" envelope per input
// line to the echo server and prints the reply, confirming that
// payloads survive the bridge round-trip unchanged.
package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/hamcore/kissbridge/internal/config"
	"github.com/hamcore/kissbridge/internal/envelope"
	"github.com/hamcore/kissbridge/internal/msgbus"
	"github.com/hamcore/kissbridge/internal/rlog"
)

const commandEcho = "echo"

func main() {
	cfg, err := config.ParseEcho("echo-client", "echo-client", "echo", os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := rlog.New("echo-client", cfg.Verbose)

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

	replies := make(chan struct{})
	go func() {
		for {
			env, data, ok, err := sock.Recv()
			if err != nil {
				logger.Error("recv failed", "err", err)
				return
			}
			if !ok || env.Command != commandEcho {
				continue
			}
			fmt.Printf("echo: %s\n", string(data))
			replies <- struct{}{}
		}
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		env := envelope.Envelope{Session: "echo-client", Command: commandEcho}
		if err := sock.Send(cfg.Target, env, []byte(line)); err != nil {
			logger.Error("send failed", "err", err)
			continue
		}
		<-replies
	}
}
