package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/mrshanahan/notes-service/internal/cache"
	"github.com/mrshanahan/notes-service/internal/config"
	"github.com/mrshanahan/notes-service/internal/events"
	notesvc "github.com/mrshanahan/notes-service/internal/notes"
	"github.com/mrshanahan/notes-service/internal/repository"
	"github.com/mrshanahan/notes-service/internal/rest"
	"github.com/mrshanahan/notes-service/internal/rpc"
	"github.com/mrshanahan/notes-service/pkg/auth"
	notesdb "github.com/mrshanahan/notes-service/pkg/notes-db"
	notesmongo "github.com/mrshanahan/notes-service/pkg/notes-mongo"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the notes API over HTTP and gRPC",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.ValidateServe(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// closers releases process resources in reverse order of acquisition.
type closers []io.Closer

func (cs closers) Close() error {
	var result *multierror.Error
	for i := len(cs) - 1; i >= 0; i-- {
		if err := cs[i].Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func serve(ctx context.Context) (err error) {
	var resources closers
	defer func() {
		if closeErr := resources.Close(); closeErr != nil {
			logger.Error("failed to release resources", "err", closeErr)
			err = multierror.Append(err, closeErr).ErrorOrNil()
		}
	}()

	store, storeCloser, err := openStore(ctx)
	if err != nil {
		logger.Error("failed to initialize store", "driver", cfg.Store.Driver, "err", err)
		return err
	}
	resources = append(resources, storeCloser)

	c, err := cache.New(ctx, cfg.CacheConfig())
	if err != nil {
		logger.Error("failed to initialize cache", "driver", cfg.Cache.Driver, "err", err)
		return err
	}
	resources = append(resources, c)

	publisher, err := openPublisher(ctx)
	if err != nil {
		logger.Error("failed to initialize event publisher", "driver", cfg.Events.Driver, "err", err)
		return err
	}
	if closer, ok := publisher.(io.Closer); ok {
		resources = append(resources, closer)
	}

	svc, err := notesvc.NewService(notesvc.Deps{
		Store:     store,
		Cache:     c,
		Publisher: publisher,
		Logger:    logger,
	}, cfg.NotesSettings())
	if err != nil {
		return err
	}

	verifier, login, err := buildAuth(ctx, c)
	if err != nil {
		logger.Error("failed to initialize authentication", "err", err)
		return err
	}

	app := rest.NewApp(rest.Options{
		Service:     svc,
		Verifier:    verifier,
		Logger:      logger,
		Login:       login,
		CORSOrigins: cfg.HTTP.CORSOrigins,
		AccessLog:   os.Stdout,
	})

	serveErrs := make(chan error, 2)
	go func() {
		logger.Info("listening for requests", "port", cfg.HTTP.Port)
		if err := app.Listen(fmt.Sprintf(":%d", cfg.HTTP.Port)); err != nil {
			serveErrs <- fmt.Errorf("HTTP server failed: %w", err)
		}
	}()

	var grpcServer *grpc.Server
	if cfg.GRPC.Port != 0 {
		lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPC.Port))
		if err != nil {
			logger.Error("failed to listen for gRPC", "port", cfg.GRPC.Port, "err", err)
			app.Shutdown()
			return err
		}
		grpcServer = rpc.NewGRPCServer(verifier, logger, svc)
		go func() {
			logger.Info("listening for gRPC calls", "port", cfg.GRPC.Port)
			if err := grpcServer.Serve(lis); err != nil {
				serveErrs <- fmt.Errorf("gRPC server failed: %w", err)
			}
		}()
	} else {
		logger.Info("gRPC listener disabled")
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err = <-serveErrs:
		logger.Error("server stopped unexpectedly", "err", err)
	}

	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
	if shutdownErr := app.ShutdownWithTimeout(shutdownTimeout); shutdownErr != nil {
		err = multierror.Append(err, shutdownErr).ErrorOrNil()
	}
	return err
}

func openStore(ctx context.Context) (repository.Store, io.Closer, error) {
	switch cfg.Store.Driver {
	case config.StoreMongo:
		store, err := notesmongo.Connect(ctx, cfg.Store.MongoURI, cfg.Store.MongoDatabase)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("connected to document store", "driver", cfg.Store.Driver, "database", cfg.Store.MongoDatabase)
		return store, store, nil
	default:
		if err := os.MkdirAll(cfg.Store.SQLiteDir, 0777); err != nil {
			return nil, nil, fmt.Errorf("failed to create notes directory %s: %w", cfg.Store.SQLiteDir, err)
		}
		dbPath := cfg.Store.SQLitePath()
		if _, err := os.Stat(dbPath); errors.Is(err, os.ErrNotExist) {
			logger.Info("DB does not exist; it will be created during initialization", "path", dbPath)
		}
		store, err := notesdb.Open(dbPath)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	}
}

func openPublisher(ctx context.Context) (events.Publisher, error) {
	if cfg.Events.Driver == config.EventsLog {
		logger.Warn("events are written to the log only; no broker is configured")
		return events.NewLogPublisher(logger), nil
	}
	publisher, err := events.DialPublisher(ctx, cfg.RabbitConfig(), logger)
	if err != nil {
		return nil, err
	}
	return publisher, nil
}

// buildAuth returns the token verifier and, when an OIDC provider is
// configured, the browser login flow.
func buildAuth(ctx context.Context, nonces cache.Cache) (auth.Verifier, *rest.LoginHandlers, error) {
	if cfg.Auth.ProviderURL == "" {
		verifier, err := auth.NewSecretVerifier(cfg.Auth.JWTSecret)
		if err != nil {
			return nil, nil, err
		}
		return verifier, nil, nil
	}

	authConfig, provider, err := auth.BuildAuthConfig(ctx,
		cfg.Auth.ClientID,
		cfg.Auth.ClientSecret,
		cfg.Auth.ProviderURL,
		cfg.Auth.RedirectURL)
	if err != nil {
		return nil, nil, err
	}
	verifier, err := auth.NewKeySetVerifier(ctx, provider, cfg.Auth.ProviderURL)
	if err != nil {
		return nil, nil, err
	}
	return verifier, rest.NewLoginHandlers(&authConfig.LoginConfig, verifier, nonces, cfg.HTTP.CORSOrigins, logger), nil
}
