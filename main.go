// package main provides the entry point for the agt-tester account service,
// wiring configuration, persistence, token issuing and the HTTP API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Cognio-so/agt-tester/config"
	"github.com/Cognio-so/agt-tester/database"
	"github.com/Cognio-so/agt-tester/events/modules/accounts"
	gqlschema "github.com/Cognio-so/agt-tester/graphql"
	"github.com/Cognio-so/agt-tester/internal/api"
	"github.com/Cognio-so/agt-tester/internal/kafka"
	"github.com/Cognio-so/agt-tester/internal/keycodec"
	"github.com/Cognio-so/agt-tester/internal/logging"
	"github.com/Cognio-so/agt-tester/internal/ratelimit"
	"github.com/Cognio-so/agt-tester/internal/storage"
	"github.com/Cognio-so/agt-tester/internal/tokens"
	"github.com/Cognio-so/agt-tester/restapi"
	"github.com/Cognio-so/agt-tester/restapi/modules/auth"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}

	codec, err := keycodec.New([]byte(cfg.EncryptionKey))
	if err != nil {
		return err
	}

	issuer, err := tokens.NewIssuer(tokens.Config{
		AccessSecret:  cfg.AccessSecret,
		RefreshSecret: cfg.RefreshSecret,
		AccessTTL:     cfg.AccessTTL,
		RefreshTTL:    cfg.RefreshTTL,
		SecureCookie:  cfg.SecureCookie,
	})
	if err != nil {
		return err
	}

	opts := auth.Options{
		Store:  store,
		Codec:  codec,
		Tokens: issuer,
		Events: accounts.Noop{},
		Mailer: auth.NewSMTPMailer(auth.EmailConfig{
			SMTPHost:     cfg.SMTP.Host,
			SMTPPort:     cfg.SMTP.Port,
			SMTPUsername: cfg.SMTP.Username,
			SMTPPassword: cfg.SMTP.Password,
			FromEmail:    cfg.SMTP.FromEmail,
			FromName:     cfg.SMTP.FromName,
		}, logger),
		Logger:      logger,
		BcryptCost:  cfg.BcryptCost,
		FrontendURL: cfg.FrontendURL,
	}

	if cfg.Storage.Enabled() {
		s3, err := storage.NewS3(ctx, storage.Options{
			Endpoint:        cfg.Storage.Endpoint,
			Region:          cfg.Storage.Region,
			Bucket:          cfg.Storage.Bucket,
			AccessKeyID:     cfg.Storage.AccessKeyID,
			SecretAccessKey: cfg.Storage.SecretAccessKey,
			PublicURL:       cfg.Storage.PublicURL,
		})
		if err != nil {
			return fmt.Errorf("object storage: %w", err)
		}
		opts.Storage = s3
	} else {
		logger.Warn("Object storage not configured, profile picture uploads are disabled")
	}

	if len(cfg.KafkaBrokers) > 0 {
		producer := accounts.NewProducer(kafka.NewWriter(kafka.Options{
			Brokers:   cfg.KafkaBrokers,
			Topic:     cfg.KafkaTopic,
			APIKey:    cfg.KafkaAPIKey,
			APISecret: cfg.KafkaAPISecret,
		}, logger))
		defer producer.Close()
		opts.Events = producer
		logger.Info("Publishing account events", zap.String("topic", cfg.KafkaTopic))
	}

	svc := auth.NewService(opts)

	if cfg.BootstrapRosterFile != "" {
		roster, err := auth.LoadRoster(cfg.BootstrapRosterFile)
		if err != nil {
			return fmt.Errorf("bootstrap roster: %w", err)
		}
		if _, err := svc.ApplyRoster(ctx, roster); err != nil {
			logger.Warn("Failed to apply bootstrap roster", zap.Error(err))
		}
	}

	limiter := ratelimit.Options{Max: cfg.RateLimitMax, Expiration: cfg.RateLimitWindow}
	if cfg.RedisAddr != "" {
		client, err := ratelimit.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		rs := ratelimit.NewRedisStorage(client, "ratelimit:")
		defer rs.Close()
		limiter.Storage = rs
	}

	deps := restapi.Deps{
		Service: svc,
		Limiter: ratelimit.New(limiter),
	}
	if cfg.Google.Enabled() {
		deps.Google = auth.NewGoogleProvider(auth.GoogleOptions{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			CallbackURL:  cfg.Google.CallbackURL,
		})
	}

	deps.Schema, err = gqlschema.CreateSchema(store)
	if err != nil {
		return fmt.Errorf("create GraphQL schema: %w", err)
	}

	app := api.NewFiberApp(api.Options{
		CORSOrigins: cfg.CORSOrigins,
		Logger:      logger,
		RequestLog:  true,
	}, deps)

	errc := make(chan error, 1)
	go func() {
		logger.Info("Starting server", zap.String("port", cfg.Port))
		errc <- app.Listen(":" + cfg.Port)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	return app.ShutdownWithTimeout(10 * time.Second)
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (database.Store, error) {
	if strings.EqualFold(cfg.DBDriver, config.DriverMemory) {
		logger.Warn("Using in-memory store, data is lost on restart")
		return database.NewMemoryStore(), nil
	}

	db, err := database.InitializeDatabase(ctx, database.Options{
		URL:      cfg.ArangoEndpoint(),
		User:     cfg.ArangoUser,
		Password: cfg.ArangoPass,
		Name:     cfg.ArangoDBName,
	}, logger)
	if err != nil {
		return nil, err
	}
	return database.NewArangoStore(db), nil
}
