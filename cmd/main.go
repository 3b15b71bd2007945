package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"nailart/internal/auth"
	"nailart/internal/events"
	"nailart/internal/gallery"
	"nailart/internal/generator"
	"nailart/internal/imageinput"
	"nailart/internal/logger"
	"nailart/internal/models"
	"nailart/internal/objectstore"
	"nailart/internal/server"
	"nailart/internal/storage"
)

const shutdownTimeout = 10 * time.Second

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "thumbnail-studio",
		Short:         "AI YouTube thumbnail generation service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the yaml config file")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the cleanup consumer",
		RunE:  runServe,
	})
	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE:  runMigrate,
	})

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*models.Config, *zap.Logger, error) {
	cfg, err := models.LoadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync()

	if cfg.DatabaseURL == "" {
		return fmt.Errorf("database url is required (DATABASE_URL)")
	}
	return storage.Migrate(cfg.DatabaseURL)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := storage.Migrate(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	db, err := storage.NewStorage(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to init storage: %w", err)
	}
	defer db.Close()

	store, closeStore, err := newObjectStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to init object store: %w", err)
	}
	defer closeStore()

	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.Gemini.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return fmt.Errorf("failed to init gemini client: %w", err)
	}

	normalizerOpts := []imageinput.Option{
		imageinput.WithLogger(log),
		imageinput.WithObjectStore(cfg.Storage.PublicBaseURL, store),
	}
	if cfg.Fetch.CacheTTL > 0 {
		normalizerOpts = append(normalizerOpts, imageinput.WithCache(cache.New(cfg.Fetch.CacheTTL, 2*cfg.Fetch.CacheTTL), cfg.Fetch.CacheTTL))
	}
	fetchClient := &http.Client{Timeout: cfg.Fetch.Timeout}
	if cfg.Fetch.BlockPrivateNetworks {
		normalizerOpts = append(normalizerOpts, imageinput.WithPrivateNetworkBlock())
		fetchClient = imageinput.NewPublicClient(cfg.Fetch.Timeout)
	}
	normalizer := imageinput.NewNormalizer(fetchClient, normalizerOpts...)

	gen, err := generator.NewService(genaiClient.Models, normalizer, cfg.Gemini, log)
	if err != nil {
		return fmt.Errorf("failed to init generator: %w", err)
	}

	cleaner := events.NewCleaner(store, log)
	var publisher events.Publisher
	consumerDone := make(chan struct{})
	if len(cfg.Kafka.Brokers) > 0 {
		kp := events.NewKafkaPublisher(events.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic))
		defer kp.Close()
		publisher = kp

		consumer := events.NewConsumer(events.NewKafkaReader(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID), cleaner, log)
		go func() {
			defer close(consumerDone)
			if err := consumer.Run(ctx); err != nil {
				log.Error("cleanup consumer stopped", zap.Error(err))
			}
		}()
		log.Info("cleanup events routed through kafka", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	} else {
		publisher = events.NewInlinePublisher(cleaner)
		close(consumerDone)
	}

	gal := gallery.NewService(db, store, publisher, log)
	srv := server.NewServer(cfg, gen, gal, auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Audience), log)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Start()
	}()

	select {
	case err := <-serveErr:
		cancel()
		<-consumerDone
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := srv.Stop(shutdownCtx); err != nil {
		log.Error("http server shutdown", zap.Error(err))
	}
	<-consumerDone
	return nil
}

func newObjectStore(ctx context.Context, cfg *models.Config) (objectstore.Store, func(), error) {
	switch cfg.Storage.Backend {
	case models.StorageBackendGCS:
		g, err := objectstore.NewGCS(ctx, cfg.Storage.GCSBucket, cfg.Storage.PublicBaseURL, cfg.Storage.CredentialsFile)
		if err != nil {
			return nil, nil, err
		}
		return g, func() { _ = g.Close() }, nil
	default:
		l, err := objectstore.NewLocal(cfg.Storage.LocalPath, cfg.Storage.PublicBaseURL)
		if err != nil {
			return nil, nil, err
		}
		return l, func() {}, nil
	}
}
