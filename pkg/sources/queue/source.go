// Package queue consumes domain events from a Redis queue and feeds them to
// the trigger dispatcher. The producing side is the data platform's mutation
// path, which pushes one JSON-encoded event per record change.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	redis "github.com/redis/go-redis/v9"

	"github.com/praxishq/flowengine/pkg/dispatcher"
	"github.com/praxishq/flowengine/pkg/models"
)

type Config struct {
	Addr     string
	Password string
	DB       int
	Queue    string
}

// ParseConnection builds a Config from a string map (addr, password, db,
// queue), applying defaults for anything absent.
func ParseConnection(connection map[string]string) (Config, error) {
	config := Config{
		Addr:  connection["addr"],
		Queue: connection["queue"],
	}

	if config.Addr == "" {
		config.Addr = "localhost:6379"
	}

	if config.Queue == "" {
		config.Queue = "flowengine:domain-events"
	}

	config.Password = connection["password"]

	if dbStr := connection["db"]; dbStr != "" {
		db, err := strconv.Atoi(dbStr)
		if err != nil {
			return Config{}, fmt.Errorf("invalid db value %q: %w", dbStr, err)
		}

		config.DB = db
	}

	return config, nil
}

type Source struct {
	config     Config
	client     redis.UniversalClient
	dispatcher *dispatcher.Dispatcher
	validate   *validator.Validate
	logger     *slog.Logger
	stopCh     chan struct{}
	wg         sync.WaitGroup
}

func NewSource(config Config, disp *dispatcher.Dispatcher, logger *slog.Logger) *Source {
	return &Source{
		config:     config,
		dispatcher: disp,
		validate:   validator.New(),
		stopCh:     make(chan struct{}),
		logger: logger.With(
			"module", "queue_source",
			"queue", config.Queue,
		),
	}
}

// Start connects to Redis and begins consuming in the background.
func (s *Source) Start(ctx context.Context) error {
	s.client = redis.NewClient(&redis.Options{
		Addr:     s.config.Addr,
		Password: s.config.Password,
		DB:       s.config.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	s.logger.InfoContext(ctx, "connected to Redis", "addr", s.config.Addr, "db", s.config.DB)

	s.wg.Add(1)

	go s.consume(ctx)

	return nil
}

func (s *Source) consume(ctx context.Context) {
	defer s.wg.Done()

	s.logger.InfoContext(ctx, "queue consumer started")

	for {
		select {
		case <-s.stopCh:
			s.logger.InfoContext(ctx, "queue consumer stopped")

			return
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "context cancelled, stopping queue consumer")

			return
		default:
			if err := s.processMessage(ctx); err != nil {
				s.logger.ErrorContext(ctx, "error processing queue message", "error", err)
				time.Sleep(1 * time.Second)
			}
		}
	}
}

func (s *Source) processMessage(ctx context.Context) error {
	result, err := s.client.BLPop(ctx, 1*time.Second, s.config.Queue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}

		return fmt.Errorf("failed to pop message from queue: %w", err)
	}

	if len(result) < 2 {
		return nil
	}

	var event models.DomainEvent
	if err := json.Unmarshal([]byte(result[1]), &event); err != nil {
		return fmt.Errorf("malformed domain event: %w", err)
	}

	if err := s.validate.Struct(&event); err != nil {
		return fmt.Errorf("invalid domain event: %w", err)
	}

	created := s.dispatcher.OnDomainEvent(ctx, event)
	if len(created) > 0 {
		s.logger.InfoContext(ctx, "domain event triggered executions",
			"object_type", event.ObjectType, "record_id", event.RecordID, "executions", len(created))
	}

	return nil
}

// Stop drains the consumer and closes the Redis connection.
func (s *Source) Stop(ctx context.Context) error {
	close(s.stopCh)
	s.wg.Wait()

	if s.client != nil {
		if err := s.client.Close(); err != nil {
			s.logger.ErrorContext(ctx, "error closing Redis client", "error", err)
		}
	}

	return nil
}
