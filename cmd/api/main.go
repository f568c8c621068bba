package main

import (
	"context"
	"log"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-storefront-fulfillment/internal/app"
	"github.com/imrishuroy/go-storefront-fulfillment/internal/config"
	"github.com/imrishuroy/go-storefront-fulfillment/internal/handlers"
	"github.com/imrishuroy/go-storefront-fulfillment/internal/logging"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.New(logging.Options{Level: cfg.App.LogLevel, Component: "api", FilePath: cfg.App.LogFile})
	defer func() { _ = logger.Sync() }()

	a, err := app.New(context.Background(), &cfg, logger)
	if err != nil {
		logger.Fatal("failed to init application", zap.Error(err))
	}
	defer a.Close()

	gin.SetMode(gin.ReleaseMode)
	r := handlers.NewRouter(a.HandlerDeps())

	// if RUN_LOCAL is true, run local HTTP server for development.
	if cfg.App.RunLocal {
		logger.Info("running local server", zap.String("addr", cfg.App.HTTPAddr))
		if err := r.Run(cfg.App.HTTPAddr); err != nil {
			logger.Fatal("failed to run local server", zap.Error(err))
		}
		return
	}

	adapter := ginadapter.New(r)
	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}
