// Package config parses the CLI surface shared by every cmd/* binary
// with github.com/spf13/pflag: StringP/IntP/BoolP flags with a short
// form, a custom pflag.Usage, explicit os.Exit(0) on --help, and a
// ConfigError returned to the caller on a parse error.
package config

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/hamcore/kissbridge/internal/bridge"
	"github.com/hamcore/kissbridge/internal/bridgeerr"
	"github.com/hamcore/kissbridge/internal/serialport"
)

// Variant selects which of the three equivalent messaging-fabric
// shapes a bridge instance runs as.
type Variant string

const (
	VariantA Variant = "a" // PUB/SUB, MORE only
	VariantB Variant = "b" // ROUTER/DEALER-equivalent, MORE+REPLY
	VariantC Variant = "c" // PUB/SUB + four-label envelope
)

func parseVariant(s string) (Variant, error) {
	switch Variant(s) {
	case VariantA, VariantB, VariantC:
		return Variant(s), nil
	default:
		return "", bridgeerr.Config("config: unknown --variant %q, want a, b or c", s)
	}
}

// Bridge is the parsed configuration for cmd/bridge.
type Bridge struct {
	bridge.Config
	Variant Variant
}

// ParseBridge parses args (typically os.Args[1:]) into a Bridge
// configuration, exiting the process on --help and returning a
// ConfigError on a parse error.
func ParseBridge(args []string) (Bridge, error) {
	fs := pflag.NewFlagSet("bridge", pflag.ContinueOnError)

	device := fs.StringP("device", "d", "", "Serial device path. Empty runs in loopback mode.")
	baud := fs.IntP("baud", "b", 9600, "Serial baud rate.")
	rxURL := fs.String("rx_url", "ipc:///tmp/kissbridge_client_rx", "Client-facing PUB bind address (every variant).")
	txURL := fs.String("tx_url", "ipc:///tmp/kissbridge_client_tx", "Client-facing SUB bind address (every variant).")
	serverURL := fs.String("server_url", "", "Server-facing PUB bind address (variant B). Empty collapses to variant A.")
	serverTxURL := fs.String("server_tx_url", "", "Server-facing SUB bind address (variant B).")
	maxPacketSize := fs.Int("max_packet_size", 0x10000, "Maximum framed packet size in bytes.")
	maxQueueDepth := fs.Int("max-queue-depth", 4096, "Maximum queued outbound packets per socket before drop-oldest.")
	maxQueueBytes := fs.Int("max-queue-bytes", 1<<20, "Maximum buffered serial TX bytes before drop-oldest.")
	variant := fs.String("variant", string(VariantB), "Messaging variant: a, b or c.")
	verbose := fs.BoolP("verbose", "v", false, "Enable debug-level logging.")
	help := fs.BoolP("help", "h", false, "Display help text.")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: bridge [options]\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return Bridge{}, bridgeerr.Config("config: %v", err)
	}
	if *help {
		fs.Usage()
		os.Exit(0)
	}
	if fs.NArg() != 0 {
		fs.Usage()
		return Bridge{}, bridgeerr.Config("config: unexpected extra arguments %v", fs.Args())
	}

	v, err := parseVariant(*variant)
	if err != nil {
		return Bridge{}, err
	}

	if *device != "" && *baud != 0 && !serialport.ValidBauds[*baud] {
		return Bridge{}, bridgeerr.Config("config: unsupported baud rate %d", *baud)
	}

	cfg := Bridge{
		Config: bridge.Config{
			Device:        *device,
			Baud:          *baud,
			ClientRxURL:   *rxURL,
			ClientTxURL:   *txURL,
			ServerRxURL:   *serverURL,
			ServerTxURL:   *serverTxURL,
			MaxPacketSize: *maxPacketSize,
			MaxQueueDepth: *maxQueueDepth,
			MaxQueueBytes: *maxQueueBytes,
			Verbose:       *verbose,
		},
		Variant: v,
	}
	if v == VariantA || v == VariantC {
		cfg.ServerRxURL = ""
		cfg.ServerTxURL = ""
	}
	return cfg, nil
}

// Chat is the parsed configuration for cmd/chat.
type Chat struct {
	Host            string
	Target          string
	ServerURL       string
	ClientURL       string
	Username        string
	TimestampFormat string
	Verbose         bool
}

// ParseChat parses args into a Chat configuration: host/server_url/
// client_url/username/verbose.
func ParseChat(args []string) (Chat, error) {
	fs := pflag.NewFlagSet("chat", pflag.ContinueOnError)

	host := fs.String("host", "chat", "This endpoint's host identifier for envelope filtering.")
	target := fs.String("target", "chat", "Remote endpoint's host identifier.")
	serverURL := fs.String("server_url", "ipc:///tmp/kissbridge_client_rx", "Bridge PUB address to subscribe to.")
	clientURL := fs.String("client_url", "ipc:///tmp/kissbridge_client_tx", "Bridge SUB address to publish to.")
	username := fs.String("username", "", "Chat session identifier. A random one is generated if empty.")
	timestampFormat := fs.StringP("timestamp-format", "T", "", "strftime-style format string prefixed to each printed line.")
	verbose := fs.BoolP("verbose", "v", false, "Enable debug-level logging.")
	help := fs.BoolP("help", "h", false, "Display help text.")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: chat [options]\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return Chat{}, bridgeerr.Config("config: %v", err)
	}
	if *help {
		fs.Usage()
		os.Exit(0)
	}
	if fs.NArg() != 0 {
		fs.Usage()
		return Chat{}, bridgeerr.Config("config: unexpected extra arguments %v", fs.Args())
	}

	return Chat{
		Host:            *host,
		Target:          *target,
		ServerURL:       *serverURL,
		ClientURL:       *clientURL,
		Username:        *username,
		TimestampFormat: *timestampFormat,
		Verbose:         *verbose,
	}, nil
}

// Echo is the parsed configuration shared by cmd/echo-server and
// cmd/echo-client.
type Echo struct {
	Host      string
	Target    string
	ServerURL string // bridge-bound PUB address this side subscribes to
	ClientURL string // bridge-bound SUB address this side publishes to
	Verbose   bool
}

// ParseEcho parses args into an Echo configuration. defaultHost names
// this side ("echo" for the server, "echo-client" for the client) and
// defaultTarget names the peer it addresses.
func ParseEcho(name, defaultHost, defaultTarget string, args []string) (Echo, error) {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)

	host := fs.String("host", defaultHost, "This endpoint's host identifier for envelope filtering.")
	target := fs.String("target", defaultTarget, "Remote endpoint's host identifier.")
	serverURL := fs.String("server_url", "ipc:///tmp/kissbridge_client_rx", "Bridge PUB address to subscribe to.")
	clientURL := fs.String("client_url", "ipc:///tmp/kissbridge_client_tx", "Bridge SUB address to publish to.")
	verbose := fs.BoolP("verbose", "v", false, "Enable debug-level logging.")
	help := fs.BoolP("help", "h", false, "Display help text.")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", name)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return Echo{}, bridgeerr.Config("config: %v", err)
	}
	if *help {
		fs.Usage()
		os.Exit(0)
	}
	if fs.NArg() != 0 {
		fs.Usage()
		return Echo{}, bridgeerr.Config("config: unexpected extra arguments %v", fs.Args())
	}

	return Echo{Host: *host, Target: *target, ServerURL: *serverURL, ClientURL: *clientURL, Verbose: *verbose}, nil
}
