package main

import (
	"context"
	"strconv"
	"time"

	cli "github.com/urfave/cli/v3"

	"github.com/praxishq/flowengine/pkg/clock"
	"github.com/praxishq/flowengine/pkg/cmd"
	"github.com/praxishq/flowengine/pkg/dispatcher"
	"github.com/praxishq/flowengine/pkg/engine"
	"github.com/praxishq/flowengine/pkg/log"
	"github.com/praxishq/flowengine/pkg/otelhelper"
	"github.com/praxishq/flowengine/pkg/scheduler"
	"github.com/praxishq/flowengine/pkg/sources/queue"
	"github.com/praxishq/flowengine/pkg/web"
	"github.com/praxishq/flowengine/pkg/workflow"
)

const (
	defaultPort          = 9190
	defaultSweepSchedule = "* * * * *"
	defaultRecoverAfter  = 5 * time.Minute
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the engine: HTTP API, resume sweep, and event sources",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Database connection URL (postgres://... or memory://)",
				Value:   "memory://",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (kafka, gochannel)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "kafka-brokers",
				Usage:   "Comma-separated Kafka broker list",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.StringFlag{
				Name:    "redis-addr",
				Usage:   "Redis address for the domain-event queue source (disabled when empty)",
				Sources: cli.EnvVars("REDIS_ADDR"),
			},
			&cli.StringFlag{
				Name:    "redis-queue",
				Usage:   "Redis queue name for domain events",
				Value:   "flowengine:domain-events",
				Sources: cli.EnvVars("REDIS_QUEUE"),
			},
			&cli.StringFlag{
				Name:    "sweep-schedule",
				Usage:   "Cron schedule for the resume sweep",
				Value:   defaultSweepSchedule,
				Sources: cli.EnvVars("SWEEP_SCHEDULE"),
			},
			&cli.DurationFlag{
				Name:    "recover-after",
				Usage:   "Recover executions left running longer than this on startup",
				Value:   defaultRecoverAfter,
				Sources: cli.EnvVars("RECOVER_AFTER"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Enable OpenTelemetry tracing",
				Sources: cli.EnvVars("TRACING_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: serve,
	}
}

func serve(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"))
	logger := log.WithModule("serve")

	logger.InfoContext(ctx, "initializing flowengine")

	store, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return err
	}

	defer func() {
		if err := store.Close(ctx); err != nil {
			logger.ErrorContext(ctx, "failed to close persistence", "error", err)
		}
	}()

	eventBus, err := cmd.NewEventBus(command.String("event-bus"), command.String("kafka-brokers"), logger)
	if err != nil {
		return err
	}

	defer func() {
		if err := eventBus.Close(); err != nil {
			logger.ErrorContext(ctx, "failed to close event bus", "error", err)
		}
	}()

	clk := clock.Real{}
	caps := cmd.NewCapabilities(logger)

	engineOpts := []engine.Option{}

	if command.Bool("tracing") {
		tracer, err := otelhelper.NewTracer(ctx, "flowengine")
		if err != nil {
			return err
		}

		engineOpts = append(engineOpts, engine.WithTracer(tracer))
	}

	eng := engine.New(store, caps, eventBus, clk, logger, engineOpts...)
	disp := dispatcher.New(store, eng, eventBus, clk, logger)
	sched := scheduler.New(store, eng, clk, logger)

	recovered, err := sched.Recover(ctx, command.Duration("recover-after"))
	if err != nil {
		logger.ErrorContext(ctx, "startup recovery pass failed", "error", err)
	} else if recovered > 0 {
		logger.InfoContext(ctx, "recovered stuck executions", "count", recovered)
	}

	if err := sched.Start(ctx, command.String("sweep-schedule")); err != nil {
		return err
	}
	defer sched.Stop()

	if addr := command.String("redis-addr"); addr != "" {
		source := queue.NewSource(queue.Config{
			Addr:  addr,
			Queue: command.String("redis-queue"),
		}, disp, logger)

		if err := source.Start(ctx); err != nil {
			return err
		}

		defer func() {
			if err := source.Stop(ctx); err != nil {
				logger.ErrorContext(ctx, "failed to stop queue source", "error", err)
			}
		}()
	}

	defValidator, err := workflow.NewValidator()
	if err != nil {
		return err
	}

	handlers := web.NewAPIHandlers(store, disp, eng, sched, eventBus, defValidator, clk, logger)
	app := web.NewApp(handlers)

	logger.InfoContext(ctx, "starting API server", "port", command.Int("port"))

	return app.Listen(":" + strconv.Itoa(command.Int("port")))
}
