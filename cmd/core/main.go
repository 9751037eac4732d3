// Command core is the entrypoint binary: serve runs the HTTP API and
// WebSocket gateway, worker runs the projection consumer, migrate applies
// the embedded schema. Grounded on the teacher's cmd/app main.go +
// spf13/cobra subcommand layout picked up from the wider example pack.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aeroframe-io/core/internal/authcache"
	"github.com/aeroframe-io/core/internal/authn"
	"github.com/aeroframe-io/core/internal/command"
	"github.com/aeroframe-io/core/internal/config"
	"github.com/aeroframe-io/core/internal/eventbus"
	"github.com/aeroframe-io/core/internal/eventstore"
	"github.com/aeroframe-io/core/internal/httpapi"
	"github.com/aeroframe-io/core/internal/mlog"
	"github.com/aeroframe-io/core/internal/notifybus"
	"github.com/aeroframe-io/core/internal/platform"
	"github.com/aeroframe-io/core/internal/projection"
	"github.com/aeroframe-io/core/internal/query"
	"github.com/aeroframe-io/core/internal/querycache"
	"github.com/aeroframe-io/core/internal/readmodel"
	"github.com/aeroframe-io/core/internal/realtime"
)

// Exit codes per spec.md §6: 0 normal, 1 configuration error, 2 migration
// failure.
const (
	exitOK              = 0
	exitConfigError     = 1
	exitMigrationFailed = 2
)

func main() {
	root := &cobra.Command{
		Use:   "core",
		Short: "event-sourced CQRS runtime for the multi-tenant management platform",
	}

	root.AddCommand(serveCmd(), migrateCmd(), workerCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitConfigError)
	}
}

func loadConfigOrExit(logger mlog.Logger) *config.Config {
	cfg, err := config.Load(os.Getenv("CORE_CONFIG_FILE"))
	if err != nil {
		logger.Fatalf("config: %v", err)
		os.Exit(exitConfigError)
	}

	if err := cfg.RequireCore(); err != nil {
		logger.Fatalf("config: %v", err)
		os.Exit(exitConfigError)
	}

	return cfg
}

func newLogger(level string) mlog.Logger {
	logger, err := mlog.NewZapLogger(level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mlog: falling back to no-op logger: %v\n", err)
		return &mlog.NoneLogger{}
	}

	return logger
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "apply embedded schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger("info")
			cfg := loadConfigOrExit(logger)

			if err := platform.Migrate(cfg.DatabaseURL); err != nil {
				logger.Errorf("migrate: %v", err)
				os.Exit(exitMigrationFailed)
			}

			logger.Info("migrate: schema up to date")

			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "run the HTTP API and WebSocket gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger("info")
			cfg := loadConfigOrExit(logger)

			ctx := signalContext()

			db, err := platform.OpenPostgres(cfg.DatabaseURL)
			if err != nil {
				logger.Fatalf("serve: %v", err)
				os.Exit(exitConfigError)
			}
			defer db.Close() //nolint:errcheck

			redisClient, err := platform.OpenRedis(ctx, cfg.RedisURL)
			if err != nil {
				logger.Fatalf("serve: %v", err)
				os.Exit(exitConfigError)
			}
			defer redisClient.Close() //nolint:errcheck

			amqpConn, err := platform.OpenRabbitMQ(cfg.RabbitMQURL, cfg.EventsExchange, cfg.ProjectionQueue, logger)
			if err != nil {
				logger.Fatalf("serve: %v", err)
				os.Exit(exitConfigError)
			}
			defer amqpConn.Close() //nolint:errcheck

			pepper := []byte(cfg.ApiKeyPepper)

			store := eventstore.NewPostgresStore(db)
			publisher := eventbus.NewRabbitMQPublisher(amqpConn)
			authCache := authcache.NewRedisCache(redisClient)
			qCache := querycache.NewRedisCache(redisClient)
			rm := readmodel.NewPostgresRepository(db)
			notify := notifybus.NewRedisBus(redisClient)

			cmdUseCase := command.NewUseCase(store, publisher, authCache, rm, logger, pepper, cfg.AuthCacheTTL)
			queryUseCase := query.NewUseCase(rm, qCache, logger, cfg.QueryCacheTTLList, cfg.QueryCacheTTLSelf)
			authenticator := authn.NewAuthenticator(authCache, rm, pepper, cfg.AuthCacheTTL, logger)
			gateway := realtime.NewGateway(authenticator, notify, logger)

			handlers := httpapi.NewHandlers(cmdUseCase, queryUseCase)
			app := httpapi.NewServer(handlers, authenticator, gateway, logger)

			go func() {
				<-ctx.Done()
				logger.Info("serve: shutting down")

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()

				_ = app.ShutdownWithContext(shutdownCtx)
			}()

			logger.Infof("serve: listening on %s", cfg.ServerAddress)

			if err := app.Listen(cfg.ServerAddress); err != nil {
				logger.Errorf("serve: %v", err)
				return err
			}

			return nil
		},
	}
}

func workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "run the projection worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger("info")
			cfg := loadConfigOrExit(logger)

			ctx := signalContext()
			ctx = mlog.ContextWithLogger(ctx, logger)

			if err := platform.Migrate(cfg.DatabaseURL); err != nil {
				logger.Errorf("worker: migrate: %v", err)
				os.Exit(exitMigrationFailed)
			}

			db, err := platform.OpenPostgres(cfg.DatabaseURL)
			if err != nil {
				logger.Fatalf("worker: %v", err)
				os.Exit(exitConfigError)
			}
			defer db.Close() //nolint:errcheck

			redisClient, err := platform.OpenRedis(ctx, cfg.RedisURL)
			if err != nil {
				logger.Fatalf("worker: %v", err)
				os.Exit(exitConfigError)
			}
			defer redisClient.Close() //nolint:errcheck

			amqpConn, err := platform.OpenRabbitMQ(cfg.RabbitMQURL, cfg.EventsExchange, cfg.ProjectionQueue, logger)
			if err != nil {
				logger.Fatalf("worker: %v", err)
				os.Exit(exitConfigError)
			}
			defer amqpConn.Close() //nolint:errcheck

			rm := readmodel.NewPostgresRepository(db)
			notify := notifybus.NewRedisBus(redisClient)
			w := projection.NewWorker(rm, notify, logger)

			logger.Info("worker: consuming projection queue")

			if err := eventbus.Consume(ctx, amqpConn, w.Handle); err != nil {
				logger.Errorf("worker: %v", err)
				return err
			}

			return nil
		},
	}
}

func signalContext() context.Context {
	ctx, _ := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	return ctx
}
