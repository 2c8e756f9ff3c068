package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/septivank/campus-water-monitor/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const lifecycleTimeout = 30 * time.Second

func main() {
	loadDotEnv()

	app := fx.New(
		fx.Provide(
			config.Load,
			newLogger,
			ProvideDBPool,
			ProvideRepository,
			ProvideAnomalyDetector,
			ProvideValidator,
			ProvideMQConnection,
			ProvideEventPublisher,
			ProvideIngestService,
			ProvideUsageService,
			ProvideSensorService,
			ProvideRouter,
		),
		fx.Invoke(startHTTPServer, startIngestConsumer),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Create a temporary logger for startup error messages
	tempLogger, _ := newLogger(&config.Config{ServiceName: "campus-water-monitor"})
	tempLogger.Info("starting application...", zap.Duration("timeout", lifecycleTimeout))

	startCtx, startCancel := context.WithTimeout(context.Background(), lifecycleTimeout)
	defer startCancel()

	if err := app.Start(startCtx); err != nil {
		if startCtx.Err() == context.DeadlineExceeded {
			tempLogger.Error("APPLICATION START TIMEOUT: Failed to start within 30 seconds. This usually means PostgreSQL or RabbitMQ is not accessible. Check the error messages above for specific connection failures.")
		}
		panic(err)
	}

	<-ctx.Done()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), lifecycleTimeout)
	defer stopCancel()
	if err := app.Stop(stopCtx); err != nil {
		fmt.Println("error stopping app:", err)
	}
}

// loadDotEnv loads the first .env found in the working directory or up to two
// levels above it. Without one the process environment is used as is.
func loadDotEnv() {
	envPaths := []string{".env", "../../.env"}
	if workDir, err := os.Getwd(); err == nil {
		parentDir := filepath.Dir(workDir)
		envPaths = append(envPaths,
			filepath.Join(parentDir, ".env"),
			filepath.Join(filepath.Dir(parentDir), ".env"),
		)
	}

	for _, envPath := range envPaths {
		if _, err := os.Stat(envPath); err != nil {
			continue
		}
		if err := godotenv.Load(envPath); err == nil {
			absPath, _ := filepath.Abs(envPath)
			fmt.Printf("Loaded environment from: %s\n", absPath)
			return
		}
	}

	fmt.Println("No .env file found, using system environment variables")
}
