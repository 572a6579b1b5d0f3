// coprocessor-sim: serves simulated vision coprocessors on consecutive ports
// so visiond can run on a bench without camera hardware.
package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/teslashibe/go-tagvision/internal/log"
	"github.com/teslashibe/go-tagvision/pkg/coprocessor"
	"github.com/teslashibe/go-tagvision/pkg/protocol"
)

func main() {
	host := flag.String("host", "127.0.0.1", "Listen host")
	basePort := flag.Int("port", 50000, "Port of the first camera")
	cameras := flag.Int("cameras", 1, "Number of simulated cameras")
	withPiece := flag.Bool("piece", true, "Report a game piece on the first camera")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	level := "info"
	if *debug {
		level = "debug"
	}
	log.Init(level, "text")
	logger := log.L()

	servers := make([]*coprocessor.Server, 0, *cameras)
	for i := 0; i < *cameras; i++ {
		srv := coprocessor.New(
			coprocessor.WithLogger(logger),
			coprocessor.WithInfo(coprocessor.DefaultInfo(fmt.Sprintf("sim-%d", i))),
		)
		srv.SetTags(sampleTags(i)...)
		if i == 0 && *withPiece {
			srv.SetPiece(protocol.PieceObservation{Distance: 1.2, Angle: 0.7, Center: [2]float64{640, 400}})
		}

		addr := net.JoinHostPort(*host, strconv.Itoa(*basePort+i))
		if err := srv.Listen(addr); err != nil {
			logger.Error("failed to start camera", "addr", addr, "error", err)
			os.Exit(1)
		}
		servers = append(servers, srv)
	}
	logger.Info("coprocessor simulator running", "cameras", len(servers), "first_port", *basePort)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	for _, srv := range servers {
		if err := srv.Shutdown(); err != nil {
			logger.Warn("shutdown", "addr", srv.Addr(), "error", err)
		}
	}
}

// sampleTags places two tags in front of camera i.
func sampleTags(i int) []protocol.TagObservation {
	base := float64(i)
	return []protocol.TagObservation{
		{
			TagID:           "13",
			Position:        [3]float64{0.4, 0.1, 2.0 + base},
			Orientation:     [3]float64{0, 12, 0},
			Distance:        2.05 + base,
			HorizontalAngle: 11,
			VerticalAngle:   -2,
		},
		{
			TagID:           "14",
			Position:        [3]float64{-1.1, 0.1, 3.2 + base},
			Orientation:     [3]float64{0, -20, 0},
			Distance:        3.38 + base,
			HorizontalAngle: -19,
			VerticalAngle:   -1,
		},
	}
}
