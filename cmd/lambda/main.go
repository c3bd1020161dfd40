package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-xray-sdk-go/xray"

	adapterlogger "citizen-portal/internal/adapters/logger"
	"citizen-portal/internal/infrastructure"
	"citizen-portal/internal/platform/app"
	platformlambda "citizen-portal/internal/platform/lambda"
)

func main() {
	ctx := context.Background()

	cfg, err := infrastructure.Load()
	if err != nil {
		adapterlogger.New().Error(ctx, "configuration error", "error", err)
		os.Exit(1)
	}
	xray.Configure(xray.Config{LogLevel: "error"})

	portal, err := app.New(ctx, cfg)
	if err != nil {
		adapterlogger.New().Error(ctx, "failed to initialize portal", "error", err)
		os.Exit(1)
	}
	handler, err := platformlambda.NewHandler(portal.Echo, cfg.LambdaPayload)
	if err != nil {
		adapterlogger.New().Error(ctx, "failed to initialize lambda handler", "error", err)
		os.Exit(1)
	}
	lambda.Start(handler)
}
