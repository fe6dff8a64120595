package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"FaceGrouping/internal/config"
	"FaceGrouping/internal/launcher"
	"FaceGrouping/pkg/log"
	"FaceGrouping/pkg/redis"
	websocketPkg "FaceGrouping/pkg/websocket"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn(log.Fields{"error": err.Error()}, "Failed to load .env file")
	}

	logger := log.NewLogger()

	env, err := config.LoadEnv()
	if err != nil {
		logger.Fatal(err)
	}

	logHub := websocketPkg.NewHub(0)
	metrics := launcher.NewPrometheusMetricsCollector("facegroupd")
	redisServer := redis.New(redis.Options{
		Address:  env.RedisAddress,
		Password: env.RedisPassword,
		DB:       env.RedisDB,
	}, logger)

	workers := launcher.New(
		env.LauncherConfig(),
		launcher.WithLogger(logger),
		launcher.WithMetricsCollector(metrics),
		launcher.WithOutputSink(logHub),
	)
	if err := workers.Start(); err != nil {
		logger.Fatalf("Error starting workers: %v", err)
	}

	server, err := config.NewServer(
		config.WithFiber(config.NewFiber(logger)),
		config.WithLogger(logger),
		config.WithEnv(env),
		config.WithValidator(config.NewValidator()),
		config.WithDatabase(),
		config.WithRedisServer(redisServer),
		config.WithS3Client(),
		config.WithLauncher(workers),
		config.WithLogHub(logHub),
		config.WithMetricsRegistry(metrics.Registry()),
		config.WithMiddleware(),
		config.WithUtils(),
	)
	if err != nil {
		_ = workers.Stop(context.Background())
		logger.Fatal(err)
	}

	server.RegisterHandler()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		readyCtx, cancel := context.WithTimeout(ctx, env.WorkerReady)
		defer cancel()
		if err := workers.WaitReady(readyCtx); err != nil {
			logger.Warnf("Workers not ready after %s: %v", env.WorkerReady, err)
			return
		}
		logger.Info("Workers ready")
	}()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Run()
	}()

	logger.Info("Server started successfully")

	select {
	case <-ctx.Done():
		logger.Info("Shutting down server...")
	case err := <-serverErr:
		if err != nil {
			logger.Errorf("Error running server: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), env.WorkerGrace)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Error shutting down server: %v", err)
	}

	stopCtx, cancelStop := context.WithTimeout(context.Background(), env.WorkerGrace+5*time.Second)
	defer cancelStop()
	if err := workers.Stop(stopCtx); err != nil {
		logger.Errorf("Error stopping workers: %v", err)
	}

	logger.Info("Server stopped")
}
