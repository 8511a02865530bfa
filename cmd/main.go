package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"studio-relay/internal/app"
	"studio-relay/internal/config"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}

	a, err := app.Build(ctx, cfg)
	if err != nil {
		slog.Error("failed to build service", "err", err)
		os.Exit(1)
	}

	lambda.Start(a.Handler.Handle)
}
