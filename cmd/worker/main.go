package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/imrishuroy/go-storefront-orders/internal/app"
	"github.com/imrishuroy/go-storefront-orders/internal/config"
	"github.com/imrishuroy/go-storefront-orders/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.L.Error("load config", "error", err)
		os.Exit(1)
	}
	log := logging.Init(cfg.AppEnv)

	ctx := context.Background()
	a, err := app.New(ctx, cfg, app.CloudWatch(cfg.CloudWatchNamespace))
	if err != nil {
		log.Error("failed to init app", "error", err)
		os.Exit(1)
	}
	defer func() { _ = a.Close(context.Background()) }()

	p := NewProcessor(a.Checkout)

	// If RUN_LOCAL=true, simulate a single SQS event for local testing.
	if cfg.RunLocal {
		body := os.Getenv("LOCAL_SQS_BODY")
		if body == "" {
			log.Error("LOCAL_SQS_BODY must hold a reconcile message when RUN_LOCAL=true")
			os.Exit(1)
		}
		event := events.SQSEvent{Records: []events.SQSMessage{{MessageId: "local", Body: body}}}
		if err := p.Handle(ctx, event); err != nil {
			log.Error("local handler error", "error", err)
			os.Exit(1)
		}
		return
	}

	lambda.Start(p.Handle)
}
