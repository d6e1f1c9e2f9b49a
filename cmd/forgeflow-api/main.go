package main

import (
	"context"
	"os"

	"github.com/mindweld/forgeflow/pkg/cmd"
	"github.com/mindweld/forgeflow/pkg/log"
	"github.com/mindweld/forgeflow/pkg/memory"
	"github.com/mindweld/forgeflow/pkg/orchestrator"
	"github.com/mindweld/forgeflow/pkg/otelhelper"
	cli "github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/trace"
)

const defaultPort = 9091

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "forgeflow-api",
		Usage:                 "Submit and manage pipeline executions",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "anthropic-api-key",
				Usage:    "API key for the Anthropic completion provider",
				Required: true,
				Sources:  cli.EnvVars("ANTHROPIC_API_KEY"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis connection URL for the memory store (empty disables persistence)",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Enable OTLP trace export",
				Sources: cli.EnvVars("TRACING_ENABLED"),
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

			logger.InfoContext(ctx, "Initializing Forgeflow API")

			client := cmd.NewAIClient(command.String("anthropic-api-key"))

			var ingestor memory.Ingestor = memory.Discard{}

			if redisURL := command.String("redis-url"); redisURL != "" {
				store, err := cmd.NewMemoryStore(redisURL, logger)
				if err != nil {
					return err
				}

				defer func() {
					if err := store.Close(); err != nil {
						logger.ErrorContext(ctx, "Failed to close memory store", "error", err)
					}
				}()

				ingestor = store
			}

			registry := cmd.NewRegistry(logger, client, ingestor)

			eventBus := cmd.NewEventBus(command.String("event-bus"), logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			var tracer trace.Tracer

			if command.Bool("tracing") {
				var err error

				tracer, err = otelhelper.NewTracer(ctx, "forgeflow-api")
				if err != nil {
					return err
				}
			}

			orc, err := orchestrator.NewOrchestrator(logger, registry, eventBus, tracer)
			if err != nil {
				return err
			}

			api := NewAPI(logger, orc, registry)

			if err := api.Start(command.Int("port")); err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
