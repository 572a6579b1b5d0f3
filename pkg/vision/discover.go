package vision

import (
	"context"
	"log/slog"
	"net"
	"strconv"

	"github.com/teslashibe/go-tagvision/pkg/camlink"
)

// DefaultBasePort is the port of the first coprocessor; the rest follow consecutively.
const DefaultBasePort = 50000

// maxDiscovered caps probing when no rotations are given.
const maxDiscovered = 8

// Discover connects to coprocessors at host:basePort, host:basePort+1, ...
// until the first one fails to connect. Camera i gets rotations[i] (degrees);
// when rotations is non-empty at most len(rotations) cameras are probed.
// Progress is logged through the logger set in opts.
func Discover(ctx context.Context, host string, basePort int, rotations []float64, opts ...camlink.Option) []*camlink.Link {
	linkCfg := camlink.DefaultConfig()
	linkCfg.Apply(opts...)
	logger := linkCfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "vision")

	limit := maxDiscovered
	if len(rotations) > 0 {
		limit = len(rotations)
	}

	var links []*camlink.Link
	for i := 0; i < limit; i++ {
		var rotation float64
		if i < len(rotations) {
			rotation = rotations[i]
		}
		addr := net.JoinHostPort(host, strconv.Itoa(basePort+i))

		linkOpts := append(append([]camlink.Option{}, opts...), camlink.WithRotation(rotation))
		link, err := camlink.New(addr, linkOpts...)
		if err != nil {
			logger.Warn("discover: invalid camera address", "addr", addr, "error", err)
			break
		}
		if err := link.Connect(ctx); err != nil {
			logger.Debug("discover: no coprocessor", "addr", addr, "error", err)
			break
		}
		links = append(links, link)
	}

	logger.Info("discovered cameras", "host", host, "count", len(links))
	return links
}

// Providers adapts a slice of links for NewController.
func Providers(links []*camlink.Link) []Provider {
	out := make([]Provider, len(links))
	for i, l := range links {
		out[i] = l
	}
	return out
}
