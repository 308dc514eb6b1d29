package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	authgate "github.com/goliatone/go-auth-gate"
	"github.com/goliatone/go-auth-gate/app"
	"github.com/goliatone/go-auth-gate/config"
	"github.com/goliatone/go-auth-gate/logging"
	"github.com/goliatone/go-auth-gate/rpc"
	"github.com/goliatone/go-router"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "authgate-server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logs, err := logging.New(logging.Config{
		Name:   "authgate",
		Format: cfg.LogFormat,
		Level:  cfg.LogLevel,
	})
	if err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	defer logs.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logs)
	if err != nil {
		return err
	}
	defer a.Close()

	return Serve(ctx, a)
}

// Serve runs the HTTP and gRPC servers until ctx is done.
func Serve(ctx context.Context, a *app.App) error {
	cfg := a.Config()

	handler := authgate.NewSendVerificationHandler(a.Issuer()).
		WithLogger(a.GetLogger("send-verification")).
		WithTimeout(cfg.OperationTimeout)

	fiberApp := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	authgate.NewSendVerificationEndpoint(handler, cfg.CORSAllowOrigin).
		WithLogger(a.GetLogger("http")).
		Register(fiberApp, "/send-verification")

	srv := router.NewFiberAdapter(func(_ *fiber.App) *fiber.App {
		return fiberApp
	})

	if a.Local() != nil {
		links := authgate.NewLinkController(a.Local(),
			authgate.WithLinkControllerLogger(a.GetLogger("links")),
			authgate.WithLinkControllerActivitySink(a.Activity()),
			authgate.WithPasswordResetter(a.Local()),
			authgate.WithFallbackURL(cfg.ContinueURL),
		)
		authgate.RegisterLinkRoutes(srv.Router(), links)

		protected := authgate.ProtectedRoute(a.Local(), authgate.GateConfig{
			DevBypass:   cfg.AllowUnverifiedLogin,
			Environment: cfg.Environment,
			Logger:      a.GetLogger("gate"),
		})
		srv.Router().Get("/me", authgate.CurrentAccount(""), protected).SetName("me.get")
	} else {
		srv.Router().Get("/healthz", func(ctx router.Context) error {
			return ctx.JSON(router.StatusOK, map[string]string{"status": "ok"})
		})
	}

	grpcLogger := a.GetLogger("grpc")
	grpcServer := rpc.NewServer(cfg.GRPCAddr, rpc.NewService(handler, grpcLogger), grpcLogger)

	httpLogger := a.GetLogger("http")
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		httpLogger.Info("starting HTTP server", "address", cfg.HTTPAddr)
		return srv.Serve(cfg.HTTPAddr)
	})

	g.Go(func() error {
		return grpcServer.Run(ctx)
	})

	g.Go(func() error {
		<-ctx.Done()
		httpLogger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
