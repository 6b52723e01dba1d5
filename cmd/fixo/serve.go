package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/suPer8Hu/fixo/internal/httpapi"
	"github.com/suPer8Hu/fixo/internal/httpapi/handlers"
	"github.com/suPer8Hu/fixo/internal/store/rabbitmq"
	"github.com/suPer8Hu/fixo/internal/store/redisstore"
	"go.uber.org/zap"
)

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(*configPath)
		},
	}
}

func runServe(configPath string) error {
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

	pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	if err := jobs.Ping(pingCtx); err != nil {
		log.Warn("redis not reachable, video jobs will fail", zap.Error(err))
	}
	cancel()

	pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
	if err != nil {
		return err
	}
	defer pub.Close()

	gin.SetMode(gin.ReleaseMode)
	h := handlers.NewHandler(svc, jobs, pub, newRegistry(cfg).Names(), log)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(h, cfg.JWTSecret, nil, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("http server shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	return srv.Shutdown(shutdownCtx)
}
