// Command footswitch watches foot pedals and push buttons and publishes their
// single, double and long presses to MQTT.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/sweeney/footswitch/internal/config"
	"github.com/sweeney/footswitch/internal/gesture"
	"github.com/sweeney/footswitch/internal/gpio"
	"github.com/sweeney/footswitch/internal/input"
	"github.com/sweeney/footswitch/internal/logging"
	"github.com/sweeney/footswitch/internal/mqtt"
	"github.com/sweeney/footswitch/internal/status"
	"github.com/sweeney/footswitch/internal/timer"
	"github.com/sweeney/footswitch/internal/web"
)

// statusInterval paces heartbeat checks and tracker refreshes.
const statusInterval = time.Second

// gestureQueue buffers gestures between the classifiers and runLoop.
const gestureQueue = 64

func main() {
	opts, override, err := parseArgs(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(2)
	}

	cfg, err := config.Load(opts.configPath, opts.envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
	override(&cfg)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, opts.printState, logger); err != nil {
		logger.Errorw("fatal", "error", err)
		logger.Sync()
		os.Exit(1)
	}
}

type options struct {
	configPath string
	envFile    string
	printState bool
}

// parseArgs parses the command line. The returned function applies the flags
// that were set explicitly on top of a loaded configuration.
func parseArgs(args []string) (options, func(*config.Config), error) {
	fs := flag.NewFlagSet("footswitch", flag.ContinueOnError)

	var opts options
	fs.StringVar(&opts.configPath, "config", "/etc/footswitch/footswitch.yaml", "YAML configuration file")
	fs.StringVar(&opts.envFile, "env", ".env", "dotenv file with FOOTSWITCH_* overrides (ignored if missing)")
	fs.BoolVar(&opts.printState, "print-state", false, "Print current button levels and exit")
	broker := fs.String("broker", "", "MQTT broker address (overrides config)")
	httpAddr := fs.String("http", "", "HTTP status address (overrides config, empty to disable)")
	heartbeat := fs.Duration("heartbeat", 0, "Heartbeat interval (overrides config, 0 to disable)")
	logLevel := fs.String("log-level", "", "Log level: debug, info, warn, error (overrides config)")

	if err := fs.Parse(args); err != nil {
		return options{}, nil, err
	}
	if fs.NArg() > 0 {
		return options{}, nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	override := func(cfg *config.Config) {
		fs.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "broker":
				cfg.Broker = *broker
			case "http":
				cfg.HTTPAddr = *httpAddr
			case "heartbeat":
				cfg.Heartbeat = *heartbeat
			case "log-level":
				cfg.Logging.Level = *logLevel
			}
		})
	}
	return opts, override, nil
}

func run(cfg config.Config, printState bool, logger *zap.SugaredLogger) error {
	sources := make([]input.Source, 0, len(cfg.Buttons))
	defer func() {
		for _, src := range sources {
			src.Close()
		}
	}()
	for _, b := range cfg.Buttons {
		src, err := openSource(b, logger)
		if err != nil {
			return fmt.Errorf("button %q: %w", b.Name, err)
		}
		sources = append(sources, src)
	}

	if printState {
		printLevels(os.Stdout, sources)
		return nil
	}

	svc := timer.NewService(timer.WallClock{})
	defer svc.Close()

	publisher, err := mqtt.NewRealPublisher(mqtt.Options{
		Broker:     cfg.Broker,
		ClientID:   cfg.ClientID,
		BufferSize: cfg.BufferSize,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	start := time.Now()
	sc := statusConfig(cfg)
	tracker := status.NewTracker(start, sc)
	tracker.SetMQTTConnected(publisher.IsConnected())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := web.NewHub(logger, web.HubConfig{})
	go hub.Run(ctx)

	if cfg.HTTPAddr != "" {
		srv := web.New(cfg.HTTPAddr, tracker, hub, logger)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Errorw("http server error", "error", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		logger.Infow("http status server listening", "addr", cfg.HTTPAddr)
	}

	gestures := make(chan gesture.Event, gestureQueue)
	inputsDone := make(chan struct{})
	classifiers := make([]*gesture.Classifier, len(sources))
	for i, src := range sources {
		b := cfg.Buttons[i]
		classifiers[i] = newClassifier(src, b, svc, gestures, logger)
	}
	defer func() {
		for _, c := range classifiers {
			c.Close()
		}
	}()
	go pumpAll(sources, classifiers, inputsDone, logger)

	publishStartup(publisher, tracker, logger)
	logger.Infow("started",
		"buttons", len(sources),
		"broker", cfg.Broker,
		"heartbeat", cfg.Heartbeat,
	)

	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	names := make([]string, len(cfg.Buttons))
	for i, b := range cfg.Buttons {
		names[i] = b.Name
	}

	// The longest window any button can still have armed.
	var settle time.Duration
	for _, b := range sc.Buttons {
		settle = max(settle, b.LongPress, b.DoublePress)
	}

	return runLoop(loopDeps{
		publisher:  publisher,
		mqttStatus: publisher,
		tracker:    tracker,
		hub:        hub,
		tally:      gesture.NewTally(start, names...),
		heartbeat:  cfg.Heartbeat,
		now:        time.Now,
		logger:     logger,
		settle:     settle,
	}, gestures, inputsDone, ticker.C, sigCh)
}

func statusConfig(cfg config.Config) status.Config {
	sc := status.Config{
		Broker:    cfg.Broker,
		HTTPAddr:  cfg.HTTPAddr,
		Heartbeat: cfg.Heartbeat,
		Buttons:   make([]status.ButtonConfig, len(cfg.Buttons)),
	}
	for i, b := range cfg.Buttons {
		gc := gestureConfig(b)
		sc.Buttons[i] = status.ButtonConfig{
			Name:        b.Name,
			Source:      b.Source,
			Momentary:   gc.Momentary,
			LongPress:   gc.LongPressDelay,
			DoublePress: gc.DoublePressDelay,
		}
	}
	return sc
}

func publishStartup(publisher mqtt.Publisher, tracker *status.Tracker, logger *zap.SugaredLogger) {
	snap := tracker.Snapshot()
	event := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      mqtt.EventStartup,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, mqtt.EventStartup, ""),
	}
	if err := publisher.PublishSystem(event); err != nil {
		logger.Warnw("failed to publish startup event", "error", err)
		return
	}
	logger.Infow("published startup event")
}

func printLevels(w io.Writer, sources []input.Source) {
	for _, src := range sources {
		lr, ok := src.(gpio.LevelReader)
		if !ok {
			fmt.Fprintf(w, "%s: n/a\n", src.Name())
			continue
		}
		down, err := lr.Value()
		switch {
		case err != nil:
			fmt.Fprintf(w, "%s: error: %v\n", src.Name(), err)
		case down:
			fmt.Fprintf(w, "%s: DOWN\n", src.Name())
		default:
			fmt.Fprintf(w, "%s: UP\n", src.Name())
		}
	}
}

func signalName(s os.Signal) string {
	if sig, ok := s.(syscall.Signal); ok {
		if name := unix.SignalName(sig); name != "" {
			return name
		}
	}
	return "UNKNOWN"
}
