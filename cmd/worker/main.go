package main

import (
	"context"
	"log"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-storefront-fulfillment/internal/app"
	"github.com/imrishuroy/go-storefront-fulfillment/internal/config"
	"github.com/imrishuroy/go-storefront-fulfillment/internal/logging"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.New(logging.Options{Level: cfg.App.LogLevel, Component: "worker", FilePath: cfg.App.LogFile})
	defer func() { _ = logger.Sync() }()

	a, err := app.New(context.Background(), &cfg, logger)
	if err != nil {
		logger.Fatal("failed to init application", zap.Error(err))
	}
	defer a.Close()

	p := NewProcessor(a.Reconciler, logger)

	// If RUN_LOCAL=true, process a single simulated SQS event and exit.
	if cfg.App.RunLocal {
		body := os.Getenv("LOCAL_SQS_BODY")
		if body == "" {
			body = `{"order_id":1,"transaction_id":"local-tx-1","outcome":"SUCCESS"}`
		}
		resp, err := p.Handle(context.Background(), events.SQSEvent{
			Records: []events.SQSMessage{{MessageId: "local-1", Body: body}},
		})
		if err != nil || len(resp.BatchItemFailures) > 0 {
			logger.Fatal("local handler failed", zap.Error(err), zap.Int("failures", len(resp.BatchItemFailures)))
		}
		return
	}

	lambda.Start(p.Handle)
}
