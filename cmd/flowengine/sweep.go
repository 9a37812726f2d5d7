package main

import (
	"context"
	"encoding/json"
	"fmt"

	cli "github.com/urfave/cli/v3"

	"github.com/praxishq/flowengine/pkg/clock"
	"github.com/praxishq/flowengine/pkg/cmd"
	"github.com/praxishq/flowengine/pkg/engine"
	"github.com/praxishq/flowengine/pkg/log"
	"github.com/praxishq/flowengine/pkg/scheduler"
)

func sweepCommand() *cli.Command {
	return &cli.Command{
		Name:  "sweep",
		Usage: "Run one resume sweep and exit, for cron-driven deployments",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.IntFlag{
				Name:    "batch-size",
				Usage:   "Maximum executions to resume in this sweep",
				Value:   scheduler.DefaultBatchSize,
				Sources: cli.EnvVars("SWEEP_BATCH_SIZE"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))
			logger := log.WithModule("sweep")

			store, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := store.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "failed to close persistence", "error", err)
				}
			}()

			clk := clock.Real{}
			caps := cmd.NewCapabilities(logger)
			eng := engine.New(store, caps, nil, clk, logger)
			sched := scheduler.New(store, eng, clk, logger)

			result, err := sched.Sweep(ctx, command.Int("batch-size"))
			if err != nil {
				return err
			}

			out, err := json.Marshal(result)
			if err != nil {
				return err
			}

			fmt.Println(string(out))

			return nil
		},
	}
}
