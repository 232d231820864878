package main

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/Reader779/Microgrid/src/config"
	"github.com/Reader779/Microgrid/src/control"
	"github.com/Reader779/Microgrid/src/grid"
	"github.com/Reader779/Microgrid/src/logger"
	"github.com/Reader779/Microgrid/src/metrics"
	"github.com/Reader779/Microgrid/src/simulator"
)

// SafeGo launches a goroutine with panic recovery and retry logic.
// On panic, retries with exponential backoff (max 10 retries).
// Retry count resets if worker ran for 2+ minutes before failing.
// After exhausting retries, cancels context to trigger shutdown.
func SafeGo(
	ctx context.Context,
	cancel context.CancelFunc,
	name string,
	fn func(ctx context.Context),
) {
	const maxRetries = 10
	const maxDelay = 10 * time.Minute
	const resetAfter = 2 * time.Minute

	go func() {
		retries := 0
		delay := time.Second

		for {
			startTime := time.Now()
			var panicValue any

			func() {
				defer func() {
					panicValue = recover()
				}()
				fn(ctx)
			}()

			// Normal return covers both context cancellation and unexpected completion
			if panicValue == nil {
				return
			}

			if time.Since(startTime) >= resetAfter {
				retries = 0
				delay = time.Second
			}

			retries++
			log.Error().
				Str("worker", name).
				Int("attempt", retries).
				Int("max", maxRetries).
				Interface("panic", panicValue).
				Msg("Worker panicked")

			if retries >= maxRetries {
				log.Error().Str("worker", name).Msg("Worker failed too often, shutting down")
				cancel()
				return
			}

			log.Warn().Str("worker", name).Dur("delay", delay).Msg("Worker will retry")
			select {
			case <-time.After(delay):
				delay = min(delay*2, maxDelay)
			case <-ctx.Done():
				return
			}
		}
	}()
}

func main() {
	logger.Init("info", os.Stderr, logger.IsService())

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// The console owns the terminal, so logs go through its writer
	var logOut io.Writer = os.Stderr
	if cfg.Console {
		logOut = rlWriter
	}
	logger.Init(cfg.LogLevel, logOut, logger.IsService())

	log.Info().Str("broker", cfg.BrokerURL()).Bool("dry_run", cfg.DryRun).Msg("Starting gridwatch...")

	ctx, cancel := context.WithCancel(context.Background())

	conn := MQTTConnConfig{
		BrokerURL: cfg.BrokerURL(),
		Username:  cfg.Username,
		Password:  cfg.Password,
		ClientID:  cfg.ClientID,
	}

	// Channels between workers
	readingChan := make(chan grid.Reading, 10)
	actionChan := make(chan OperatorAction, 10)
	snapshotChan := make(chan Snapshot, 10)
	mqttOutgoingChan := make(chan MQTTMessage, 100) // Larger buffer for queuing
	mqttClientChan := make(chan publisher, 1)       // Buffered to prevent blocking onConnect

	sender := NewMQTTSender(mqttOutgoingChan, cfg.CommandPrefix)

	SafeGo(ctx, cancel, "mqtt-sender-worker", func(ctx context.Context) {
		mqttSenderWorker(ctx, mqttOutgoingChan, mqttClientChan, sender, cfg.DryRun)
	})

	sched := control.NewLoopScheduler()
	coord := NewCoordinator(CoordinatorConfig{
		Commander: sender,
		Scheduler: sched,
		Debounce:  cfg.Debounce,
		Emit:      snapshotEmitter(snapshotChan),
	})

	// Renderers
	publisherChan := make(chan Snapshot, 10)
	downstreamChans := []chan<- Snapshot{publisherChan}

	publisherCfg := PublisherConfig{SnapshotTopic: cfg.SnapshotTopic, Discovery: cfg.Discovery}
	SafeGo(ctx, cancel, "publisher-worker", func(ctx context.Context) {
		publisherWorker(ctx, publisherChan, publisherCfg, sender)
	})

	if cfg.Console {
		consoleChan := make(chan Snapshot, 10)
		downstreamChans = append(downstreamChans, consoleChan)
		SafeGo(ctx, cancel, "console-worker", func(ctx context.Context) {
			consoleWorker(ctx, cancel, consoleChan, actionChan)
		})
	}

	SafeGo(ctx, cancel, "broadcast-worker", func(ctx context.Context) {
		broadcastWorker(ctx, snapshotChan, downstreamChans)
	})

	SafeGo(ctx, cancel, "coordinator", func(ctx context.Context) {
		coordinatorWorker(ctx, coord, sched, readingChan, actionChan, cfg.Refresh)
	})

	if cfg.MetricsAddr != "" {
		SafeGo(ctx, cancel, "metrics-server", func(ctx context.Context) {
			if err := metrics.Serve(ctx, cfg.MetricsAddr); err != nil {
				log.Error().Err(err).Msg("Metrics server failed")
			}
		})
	}

	if cfg.Simulate {
		sim := simulator.New(nil, nil)
		SafeGo(ctx, cancel, "simulator", func(ctx context.Context) {
			simulatorWorker(ctx, conn, cfg.TelemetryTopic, cfg.CommandPrefix, sim)
		})
	}

	SafeGo(ctx, cancel, "mqtt-worker", func(ctx context.Context) {
		mqttWorker(ctx, conn, cfg.TelemetryTopic, readingChan, mqttClientChan)
	})

	// Wait for interrupt signal or context cancellation (from panic)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Info().Msg("Shutting down...")
	case <-ctx.Done():
		log.Warn().Msg("Shutting down due to error...")
	}
	cancel()
}
