package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/zsiec/hwdec/internal/codec"
	"github.com/zsiec/hwdec/internal/config"
	"github.com/zsiec/hwdec/internal/decode"
	"github.com/zsiec/hwdec/internal/device"
	apperrors "github.com/zsiec/hwdec/internal/errors"
	"github.com/zsiec/hwdec/internal/logger"
	"github.com/zsiec/hwdec/internal/pump"
	"github.com/zsiec/hwdec/internal/sink"
	"github.com/zsiec/hwdec/internal/stream"
	"github.com/zsiec/hwdec/pkg/version"
)

func main() {
	var (
		configPath  string
		inputPath   string
		showVersion bool
	)

	flag.StringVar(&configPath, "config", "configs/default.yaml", "Path to configuration file")
	flag.StringVar(&inputPath, "input", "", "Input bitstream path (overrides config)")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.Parse()

	if showVersion {
		fmt.Println(version.GetInfo().String())
		os.Exit(0)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if inputPath != "" {
		cfg.Input.Path = inputPath
	}

	lg, err := logger.New(&cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	log := logger.NewLogrusAdapter(logrus.NewEntry(lg))

	log.WithField("version", version.GetInfo().Short()).Info("Starting hwdec")
	log.WithField("config_path", configPath).Debug("Configuration loaded")

	if cfg.Metrics.Enabled {
		go startMetricsServer(cfg.Metrics, log)
	}

	os.Exit(run(cfg, log))
}

// run performs the staged setup and drives the decode to completion. Every
// setup stage fails with its own exit code.
func run(cfg *config.Config, log logger.Logger) int {
	forcedCodec := codec.ParseType(cfg.Input.Codec)

	deviceOpts, err := deviceOptions(&cfg.Device, forcedCodec)
	if err != nil {
		return fail(log, err, "Device selection failed", apperrors.ExitDeviceSelect)
	}

	devCtx, err := device.Negotiate(device.NewSoftwareEnumerator(), deviceOpts, log)
	if err != nil {
		return fail(log, err, "Device negotiation failed", apperrors.ExitDeviceInit)
	}

	src, err := stream.Open(cfg.Input.Path, stream.Options{
		ForcedCodec:    forcedCodec,
		EnableDemuxing: cfg.Input.EnableDemuxing,
		Width:          cfg.Input.Width,
		Height:         cfg.Input.Height,
		BitDepth:       cfg.Input.BitDepth,
	})
	if err != nil {
		return fail(log, err, "Failed to open input stream", apperrors.ExitStreamOpen)
	}
	defer src.Close()

	out, err := sink.Create(cfg.Output.Path, cfg.Output.Y4M, cfg.Output.CRCPerFrame,
		cfg.Output.CRCPath, cfg.Output.CRCSeed, log)
	if err != nil {
		return fail(log, err, "Failed to create frame sink", apperrors.ExitSinkCreate)
	}
	defer out.Close()

	engine := decode.NewSoftwareEngineWithDepth(cfg.Decoder.QueueSize)
	session, err := decode.NewSession(decode.Config{BitDepthHint: cfg.Input.BitDepth},
		src, engine, out, devCtx.DecodeQueues, log)
	if err != nil {
		return fail(log, err, "Failed to construct decoder", apperrors.ExitDecoderCreate)
	}
	defer session.Close()

	// One-shot startup diagnostic, matching the negotiated capabilities
	profile := session.Profile()
	fmt.Println(profile.Describe())

	ctx, cancel := signalContext(log)
	defer cancel()

	start := time.Now()
	p := pump.New(session, pump.Options{
		MaxFrames: int64(cfg.Decoder.MaxFrames),
		FrameRate: cfg.Decoder.FrameRateLimit,
	}, log)

	steps, err := p.Run(ctx)
	if err != nil && err != context.Canceled {
		return fail(log, err, "Decode run failed", apperrors.ExitDecoderCreate)
	}

	elapsed := time.Since(start)
	frames := session.FramesEmitted()
	log.WithFields(map[string]interface{}{
		"frames":     frames,
		"steps":      steps,
		"elapsed_ms": elapsed.Milliseconds(),
		"fps":        float64(frames) / elapsed.Seconds(),
	}).Info("Decode run complete")
	fmt.Printf("Decoded %d frames\n", frames)

	return apperrors.ExitOK
}

func deviceOptions(cfg *config.DeviceConfig, forcedCodec codec.Type) (device.Options, error) {
	opts := device.Options{
		DeviceIndex:     cfg.Index,
		QueueID:         cfg.QueueID,
		HWLoadBalancing: cfg.HWLoadBalancing,
		RequireCompute:  cfg.SelectWithComputeQueue || cfg.EnablePostFilter,
		Codec:           forcedCodec,
	}
	if cfg.UUID != "" {
		id, err := uuid.Parse(cfg.UUID)
		if err != nil {
			return device.Options{}, apperrors.Wrap(err, apperrors.ErrorTypeDeviceInit,
				fmt.Sprintf("invalid device uuid %q", cfg.UUID), apperrors.ExitDeviceSelect)
		}
		opts.UUID = id
	}
	return opts, nil
}

// fail logs the stage failure, prints a one-line diagnostic and resolves the
// exit code from the error when it carries one
func fail(log logger.Logger, err error, stage string, fallbackCode int) int {
	log.WithError(err).Error(stage)
	fmt.Fprintf(os.Stderr, "%s: %v\n", stage, err)

	if appErr, ok := apperrors.GetAppError(err); ok && appErr.ExitCode != apperrors.ExitOK {
		return appErr.ExitCode
	}
	return fallbackCode
}

// signalContext cancels on SIGINT/SIGTERM so a partial output file still gets
// flushed and closed
func signalContext(log logger.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.WithField("signal", sig.String()).Info("Received shutdown signal")
		cancel()
	}()

	return ctx, cancel
}

// startMetricsServer exposes the Prometheus registry
func startMetricsServer(cfg config.MetricsConfig, log logger.Logger) {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.Handler())

	addr := fmt.Sprintf(":%d", cfg.Port)
	log.WithField("addr", addr).Info("Starting metrics server")

	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Error("Metrics server failed")
	}
}
