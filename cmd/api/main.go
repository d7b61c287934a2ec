package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-storefront-orders/internal/app"
	"github.com/imrishuroy/go-storefront-orders/internal/config"
	"github.com/imrishuroy/go-storefront-orders/internal/handlers"
	"github.com/imrishuroy/go-storefront-orders/internal/logging"
	"github.com/imrishuroy/go-storefront-orders/internal/metrics"
)

func setupRouter(a *app.App, prom *metrics.Prometheus) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), logging.Middleware(), prom.Middleware())

	// health
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(prom.Handler()))

	cfg := handlers.HandlerConfig{
		Checkout:  a.Checkout,
		Workflow:  a.Workflow,
		Orders:    a.Stores.Orders,
		Analytics: a.Analytics,
		Settings:  a.Settings,
		Tokens:    a.Tokens,
	}
	handlers.RegisterOrdersRoutes(r, cfg)
	handlers.RegisterSettingsRoutes(r, cfg)

	return r
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.L.Error("load config", "error", err)
		os.Exit(1)
	}
	log := logging.Init(cfg.AppEnv)
	if cfg.AppEnv != "local" {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.JWTSecret == "" {
		log.Error("JWT_SECRET must be set")
		os.Exit(1)
	}

	ctx := context.Background()
	prom := metrics.NewPrometheus()
	a, err := app.New(ctx, cfg, app.Static(prom))
	if err != nil {
		log.Error("failed to init app", "error", err)
		os.Exit(1)
	}
	defer func() { _ = a.Close(context.Background()) }()

	r := setupRouter(a, prom)

	// if environment variable RUN_LOCAL is set to "true", run local HTTP server for development.
	if cfg.RunLocal {
		if err := serveLocal(r, cfg); err != nil {
			log.Error("local server failed", "error", err)
			os.Exit(1)
		}
		return
	}

	// lambda adapter
	adapter := ginadapter.New(r)

	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}

// serveLocal runs the router until SIGINT/SIGTERM, then drains in-flight
// requests for up to the configured grace period.
func serveLocal(r *gin.Engine, cfg config.Config) error {
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}

	errCh := make(chan error, 1)
	go func() {
		logging.L.Info("running local server", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logging.L.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer cancel()
	return srv.Shutdown(ctx)
}
