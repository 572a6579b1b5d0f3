// visiond: runs the vision controller against the coprocessor cameras.
// Every tick it estimates the field heading, computes the drive command for
// the selected mode and publishes status to the optional dashboard.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/teslashibe/go-tagvision/internal/config"
	"github.com/teslashibe/go-tagvision/internal/log"
	"github.com/teslashibe/go-tagvision/pkg/camlink"
	"github.com/teslashibe/go-tagvision/pkg/control"
	"github.com/teslashibe/go-tagvision/pkg/vision"
	"github.com/teslashibe/go-tagvision/pkg/web"
)

var version = "0.3.0"

func main() {
	configPath := flag.String("config", "", "YAML config file (overrides VISION_CONFIG env var)")
	host := flag.String("host", "", "Coprocessor host (overrides config and VISION_HOST)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	dashboard := flag.String("dashboard", "", "Serve the dashboard on this address (e.g. :8090)")
	mode := flag.String("mode", "heading", "Drive mode: heading, lock, tag, piece")
	camera := flag.Int("camera", 0, "Camera index for lock/tag/piece modes")
	tags := flag.String("tags", "", "Comma-separated tag ids for lock/tag modes")
	side := flag.String("side", "back", "Robot side for tag mode: front, left, back, right")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *host != "" {
		cfg.Host = *host
	}
	if *debug {
		cfg.Log.Level = "debug"
	}
	if *dashboard != "" {
		cfg.Dashboard.Enabled = true
		cfg.Dashboard.Addr = *dashboard
	}

	driveSide, err := control.ParseSide(*side)
	if err != nil {
		fmt.Fprintf(os.Stderr, "flag -side: %v\n", err)
		os.Exit(2)
	}
	run := tickFunc(*mode, *camera, splitIDs(*tags), driveSide)
	if run == nil {
		fmt.Fprintf(os.Stderr, "flag -mode: unknown mode %q\n", *mode)
		os.Exit(2)
	}

	log.Init(cfg.Log.Level, cfg.Log.Format)
	logger := log.L()
	logger.Info("visiond starting", "version", version, "host", cfg.Host, "base_port", cfg.BasePort, "mode", *mode)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	links := connectCameras(ctx, cfg, logger)
	ctrl, err := vision.NewController(vision.Providers(links), cfg.TagPoses, cfg.VisionOptions(logger)...)
	if err != nil {
		logger.Error("failed to create controller", "error", err)
		os.Exit(1)
	}
	if ctrl.Cameras() == 0 {
		logger.Warn("no cameras connected; commands will be empty until restart")
	}

	var dash *web.Server
	if cfg.Dashboard.Enabled {
		dash = web.NewServer(ctrl, logger)
		if err := dash.Listen(cfg.Dashboard.Addr); err != nil {
			logger.Error("dashboard failed", "error", err)
			os.Exit(1)
		}
	}

	ticker := time.NewTicker(cfg.TickInterval)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
			heading := ctrl.DefaultHeading(ctx)
			if vision.HasHeading(heading) {
				logger.Debug("heading", "degrees", heading)
			}
			if speeds, ok := run(ctx, ctrl); ok {
				logger.Debug("command", "mode", *mode, "speeds", speeds.String())
			}
			if dash != nil {
				dash.Publish()
			}
		}
	}

	logger.Info("shutting down")
	if dash != nil {
		if err := dash.Shutdown(); err != nil {
			logger.Warn("dashboard shutdown", "error", err)
		}
	}
	if err := ctrl.Close(); err != nil {
		logger.Warn("camera disconnect", "error", err)
	}
	for _, l := range links {
		l.Disconnect()
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	return config.FromEnv()
}

// connectCameras uses the listed cameras, or discovers them when none are listed.
func connectCameras(ctx context.Context, cfg *config.Config, logger *slog.Logger) []*camlink.Link {
	opts := cfg.LinkOptions(logger)
	if len(cfg.Cameras) == 0 {
		return vision.Discover(ctx, cfg.Host, cfg.BasePort, cfg.Rotations, opts...)
	}

	links := make([]*camlink.Link, 0, len(cfg.Cameras))
	for _, cam := range cfg.Cameras {
		link, err := camlink.New(cam.Addr, append(opts, camlink.WithRotation(cam.Rotation))...)
		if err != nil {
			logger.Warn("skipping camera", "addr", cam.Addr, "error", err)
			continue
		}
		if err := link.Connect(ctx); err != nil {
			logger.Warn("camera unreachable", "addr", cam.Addr, "error", err)
		}
		links = append(links, link)
	}
	return links
}

type tick func(context.Context, *vision.Controller) (control.ChassisSpeeds, bool)

func tickFunc(mode string, camera int, ids []string, side control.Side) tick {
	switch mode {
	case "heading":
		return func(context.Context, *vision.Controller) (control.ChassisSpeeds, bool) {
			return control.ChassisSpeeds{}, false
		}
	case "lock":
		var id string
		if len(ids) > 0 {
			id = ids[0]
		}
		return func(ctx context.Context, c *vision.Controller) (control.ChassisSpeeds, bool) {
			return c.LockOnTag(ctx, camera, id)
		}
	case "tag":
		drive := vision.TagDrive{Camera: camera, TagIDs: ids, Side: side}
		return func(ctx context.Context, c *vision.Controller) (control.ChassisSpeeds, bool) {
			return c.DriveToTag(ctx, drive)
		}
	case "piece":
		return func(ctx context.Context, c *vision.Controller) (control.ChassisSpeeds, bool) {
			return c.DriveToPiece(ctx, camera, 0, 0, 0)
		}
	}
	return nil
}

func splitIDs(s string) []string {
	var ids []string
	for _, id := range strings.Split(s, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
