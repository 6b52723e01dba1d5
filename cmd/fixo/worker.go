package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/suPer8Hu/fixo/internal/generation"
	"github.com/suPer8Hu/fixo/internal/store/rabbitmq"
	"github.com/suPer8Hu/fixo/internal/store/redisstore"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	maxJobRetries = 3
	retryDelay    = 10 * time.Second
)

func workerCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Consume queued video jobs and supervise them",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker(*configPath)
		},
	}
}

func runWorker(configPath string) error {
	cfg, log, err := setup(configPath)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	svc, gdb, err := openRepair(cfg, log)
	if err != nil {
		return err
	}
	defer closeDB(gdb)

	jobs := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.GenerationJobTTL)
	defer jobs.Close()

	runner, err := newRunner(cfg, log, prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}
	proc := &generation.Processor{Runner: runner, Jobs: jobs, Messages: svc, Log: log}

	// strict concurrency control
	concurrency := cfg.WorkerConcurrency
	consumer, err := rabbitmq.NewConsumer(cfg.RabbitURL, cfg.RabbitQueue, concurrency)
	if err != nil {
		return fmt.Errorf("rabbit: %w", err)
	}
	defer consumer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	msgs, err := consumer.Deliveries(ctx)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}
	closed := consumer.Closed()

	log.Info("worker started", zap.String("queue", cfg.RabbitQueue), zap.Int("concurrency", concurrency))

	deliveries := make(chan amqp.Delivery, concurrency*2)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < concurrency; i++ {
		workerID := i
		g.Go(func() error {
			for d := range deliveries {
				handleDelivery(gctx, log.With(zap.Int("worker", workerID)), consumer, proc, d)
			}
			return nil
		})
	}

	// dispatcher
	g.Go(func() error {
		defer close(deliveries)
		for {
			select {
			case <-gctx.Done():
				log.Info("worker shutting down")
				return nil
			case amqpErr := <-closed:
				return fmt.Errorf("rabbit connection closed: %v", amqpErr)
			case d, ok := <-msgs:
				if !ok {
					return errors.New("delivery channel closed")
				}
				deliveries <- d
			}
		}
	})

	return g.Wait()
}

func handleDelivery(ctx context.Context, log *zap.Logger, consumer *rabbitmq.Consumer, proc *generation.Processor, d amqp.Delivery) {
	m, err := rabbitmq.DecodeJob(d.Body)
	if err != nil {
		log.Warn("bad message", zap.Error(err))
		_ = d.Nack(false, false)
		return
	}

	start := time.Now()
	err = proc.Process(ctx, m.JobID)
	cost := time.Since(start)
	if err == nil {
		if err := d.Ack(false); err != nil {
			log.Warn("ack failed", zap.String("job_id", m.JobID), zap.Error(err))
		}
		return
	}

	log.Error("job failed", zap.String("job_id", m.JobID), zap.Duration("cost", cost), zap.Error(err))
	if ctx.Err() != nil {
		// shutting down; let the broker redeliver
		_ = d.Nack(false, true)
		return
	}
	if m.Retries < maxJobRetries {
		if rerr := consumer.Retry(ctx, d, m, retryDelay); rerr == nil {
			return
		}
	}
	_ = d.Nack(false, false)
}
