// Command modelrunner dispatches ImageRequests to the region/image
// processing pipeline. It generalizes the tile-service's main.go
// command-dispatch shape (flag parsing + if/else on args[0], slog setup,
// signal.Notify shutdown) into two commands: a long-running serve loop
// that polls a job queue, and a process-one command for running a
// single ImageRequest JSON file locally.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mumuon/modelrunner/internal/modelrunner/api"
	"github.com/mumuon/modelrunner/internal/modelrunner/config"
	"github.com/mumuon/modelrunner/internal/modelrunner/database"
	"github.com/mumuon/modelrunner/internal/modelrunner/imageproc"
	"github.com/mumuon/modelrunner/internal/modelrunner/imagery"
	"github.com/mumuon/modelrunner/internal/modelrunner/inference"
	"github.com/mumuon/modelrunner/internal/modelrunner/jobqueue"
	"github.com/mumuon/modelrunner/internal/modelrunner/logging"
	"github.com/mumuon/modelrunner/internal/modelrunner/region"
	"github.com/mumuon/modelrunner/internal/modelrunner/sink"
	"github.com/mumuon/modelrunner/internal/modelrunner/status"
	"github.com/mumuon/modelrunner/internal/modelrunner/tileworker"
)

func main() {
	configPath := flag.String("config", ".env", "Path to config file")
	debug := flag.Bool("debug", false, "Enable debug logging")
	help := flag.Bool("help", false, "Show help message")
	flag.Parse()

	args := flag.Args()
	if *help || len(args) == 0 {
		showHelp()
		os.Exit(0)
	}

	logger := logging.New(*debug)
	slog.SetDefault(logger)

	switch args[0] {
	case "serve":
		cmdServe(args[1:], *configPath, logger)
	case "process-one":
		cmdProcessOne(args[1:], *configPath, logger)
	default:
		slog.Error("unknown command", "command", args[0])
		showHelp()
		os.Exit(1)
	}
}

// buildProcessor wires every component config.Config names into a single
// imageproc.Processor: database-backed job tracking (optional, the way
// the tile-service's serve command treats its own database connection as
// optional), the configured detector, an in-memory tile decode boundary
// (a real raster driver is an external collaborator), and the sinks a
// deployment has configured.
func buildProcessor(cfg *config.Config, logger *slog.Logger) (*imageproc.Processor, func(), error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var jobTable *database.JobTable
	var regionTable *database.RegionTable
	if cfg.Database.Password != "" {
		store, err := database.Open(cfg.Database)
		if err != nil {
			logger.Warn("failed to connect to database, continuing without job tracking", "error", err)
		} else {
			closers = append(closers, store.Close)
			jobTable = database.NewJobTable(store)
			regionTable = database.NewRegionTable(store)
		}
	}

	detector, err := (&inference.FeatureDetectorFactory{
		Endpoint:      cfg.Detector.Endpoint,
		EndpointMode:  cfg.Detector.Mode,
		HTTPClient:    &http.Client{Timeout: 30 * time.Second},
		ExecutionRole: cfg.Detector.ExecutionRole,
		Logger:        logger,
	}).Build()
	if err != nil {
		closeAll()
		return nil, nil, fmt.Errorf("failed to build detector: %w", err)
	}

	var sinks []sink.Sink
	ctx := context.Background()
	if cfg.S3.Bucket != "" {
		s3Sink, err := sink.NewS3Sink(ctx, cfg.S3, logger)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("failed to build S3 sink: %w", err)
		}
		sinks = append(sinks, s3Sink)
	}

	var publisher status.Publisher
	if cfg.Service.StatusWebhookURL != "" {
		publisher = status.NewHTTPPublisher(map[string]string{cfg.Service.StatusTopic: cfg.Service.StatusWebhookURL}, nil)
	}
	var imageMonitor *status.ImageStatusMonitor
	if publisher != nil {
		imageMonitor = status.NewImageStatusMonitor(publisher, cfg.Service.StatusTopic)
	}

	factory := &imagery.FakeTileFactory{}
	pool := tileworker.NewPool(tileworker.DefaultWorkers(), logger)

	regionRunner := &region.Processor{
		Factory:     factory,
		Detector:    detector,
		RegionTable: regionTable,
		Pool:        pool,
	}

	processor := &imageproc.Processor{
		Factory:       factory,
		RegionRunner:  regionRunner,
		JobTable:      jobTable,
		ImageMonitor:  imageMonitor,
		RegionSize:    cfg.Service.RegionSize,
		MaxConcurrent: cfg.Service.MaxConcurrentRegions,
		Sinks:         sinks,
	}
	return processor, closeAll, nil
}

// cmdServe polls a FileQueue on an interval and dispatches each claimed
// ImageRequest to a Processor, shutting down cleanly on SIGINT/SIGTERM.
func cmdServe(args []string, configPath string, logger *slog.Logger) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	fs.Parse(args)

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	queue, err := jobqueue.NewFileQueue(cfg.Queue.Dir)
	if err != nil {
		logger.Error("failed to initialize job queue", "error", err)
		os.Exit(1)
	}

	processor, closeAll, err := buildProcessor(cfg, logger)
	if err != nil {
		logger.Error("failed to build processor", "error", err)
		os.Exit(1)
	}
	defer closeAll()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("received shutdown signal, draining queue poll loop", "signal", sig)
		cancel()
	}()

	logger.Info("starting model runner", "queue_dir", cfg.Queue.Dir, "poll_interval", cfg.Service.PollInterval)

	ticker := time.NewTicker(cfg.Service.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("model runner stopped")
			return
		case <-ticker.C:
			req, err := queue.Receive(ctx)
			if err != nil {
				logger.Warn("failed to receive from job queue", "error", err)
				continue
			}
			if req == nil {
				continue
			}
			if err := processor.Process(ctx, req); err != nil {
				logger.Error("image processing failed", "image_id", req.ImageID, "error", err)
			}
		}
	}
}

// cmdProcessOne runs a single ImageRequest JSON file through the
// pipeline once, for local testing without a running queue.
func cmdProcessOne(args []string, configPath string, logger *slog.Logger) {
	fs := flag.NewFlagSet("process-one", flag.ExitOnError)
	fs.Parse(args)

	if fs.NArg() != 1 {
		logger.Error("process-one requires exactly one ImageRequest JSON file argument")
		os.Exit(1)
	}

	raw, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		logger.Error("failed to read image request file", "error", err)
		os.Exit(1)
	}
	var req api.ImageRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		logger.Error("failed to parse image request", "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	processor, closeAll, err := buildProcessor(cfg, logger)
	if err != nil {
		logger.Error("failed to build processor", "error", err)
		os.Exit(1)
	}
	defer closeAll()

	if err := processor.Process(context.Background(), &req); err != nil {
		logger.Error("image processing failed", "image_id", req.ImageID, "error", err)
		os.Exit(1)
	}
	logger.Info("image processed", "image_id", req.ImageID)
}

func showHelp() {
	fmt.Println(`modelrunner - distributed tile-level image processing

Usage:
  modelrunner [flags] <command> [args]

Commands:
  serve                  Poll the configured job queue and process images continuously
  process-one <file>     Process a single ImageRequest JSON file and exit

Flags:
  -config string   Path to .env config file (default ".env")
  -debug           Enable debug logging
  -help            Show this help message`)
}
