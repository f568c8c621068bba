// Command sweeper cancels online orders whose payment never arrived. It runs
// as a scheduled lambda, or once when RUN_LOCAL is set.
package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-storefront-fulfillment/internal/app"
	"github.com/imrishuroy/go-storefront-fulfillment/internal/config"
	"github.com/imrishuroy/go-storefront-fulfillment/internal/fulfillment"
	"github.com/imrishuroy/go-storefront-fulfillment/internal/logging"
)

func sweepHandler(expirer *fulfillment.Expirer, logger *zap.Logger) func(context.Context, events.CloudWatchEvent) (fulfillment.SweepResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, ev events.CloudWatchEvent) (fulfillment.SweepResult, error) {
		now := ev.Time
		if now.IsZero() {
			now = time.Now()
		}
		res, err := expirer.Sweep(ctx, now.UTC())
		if err != nil {
			logger.Error("pending payment sweep failed", zap.Error(err))
			return res, err
		}
		logger.Info("pending payment sweep finished",
			zap.Int("examined", res.Examined),
			zap.Int64s("expired", res.Expired),
			zap.Int64s("failed", res.Failed))
		return res, nil
	}
}

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.New(logging.Options{Level: cfg.App.LogLevel, Component: "sweeper", FilePath: cfg.App.LogFile})
	defer func() { _ = logger.Sync() }()

	a, err := app.New(context.Background(), &cfg, logger)
	if err != nil {
		logger.Fatal("failed to init application", zap.Error(err))
	}
	defer a.Close()

	handler := sweepHandler(a.Expirer, logger)
	if cfg.App.RunLocal {
		if _, err := handler(context.Background(), events.CloudWatchEvent{}); err != nil {
			logger.Fatal("local sweep failed", zap.Error(err))
		}
		return
	}
	lambda.Start(handler)
}
