package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/hearthvault/backend/internal/attachments"
	"github.com/hearthvault/backend/internal/catalog"
	"github.com/hearthvault/backend/internal/config"
	"github.com/hearthvault/backend/internal/database"
	"github.com/hearthvault/backend/internal/entries"
	"github.com/hearthvault/backend/internal/identity"
	"github.com/hearthvault/backend/internal/invites"
	"github.com/hearthvault/backend/internal/logging"
	"github.com/hearthvault/backend/internal/server"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "hearth-api",
		Short: "Hearth family vault backend service",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("app-origin", defaults.GetString("app.origin"), "Public origin used in invite links")
	cmd.PersistentFlags().String("storage-endpoint", defaults.GetString("storage.endpoint"), "S3-compatible endpoint URL")
	cmd.PersistentFlags().String("storage-bucket", defaults.GetString("storage.bucket"), "Attachment bucket name")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "app.origin", "app-origin")
	bindFlag(cmd, "storage.endpoint", "storage-endpoint")
	bindFlag(cmd, "storage.bucket", "storage-bucket")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	idProvider := identity.NewUUIDProvider()
	tokenProvider := identity.NewRandomTokenProvider()

	catalogService, err := catalog.NewService(catalog.ServiceConfig{
		Database:   db,
		Clock:      time.Now,
		IDProvider: idProvider,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	identityService, err := identity.NewService(identity.ServiceConfig{
		Database:      db,
		Clock:         time.Now,
		IDProvider:    idProvider,
		TokenProvider: tokenProvider,
		SectionSeeder: catalogService,
		SessionTTL:    appConfig.SessionTTL,
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	inviteService, err := invites.NewService(invites.ServiceConfig{
		Database:      db,
		Clock:         time.Now,
		IDProvider:    idProvider,
		TokenProvider: tokenProvider,
		Identity:      identityService,
		Origin:        appConfig.AppOrigin,
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	entryService, err := entries.NewService(entries.ServiceConfig{
		Database:   db,
		Clock:      time.Now,
		IDProvider: idProvider,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	objectStore, err := attachments.NewS3Store(ctx, attachments.S3StoreConfig{
		Endpoint:        appConfig.StorageEndpoint,
		Region:          appConfig.StorageRegion,
		Bucket:          appConfig.StorageBucket,
		AccessKeyID:     appConfig.StorageAccessKeyID,
		SecretAccessKey: appConfig.StorageSecretKey,
		URLExpiry:       appConfig.StorageURLExpiry,
	})
	if err != nil {
		return err
	}

	attachmentService, err := attachments.NewService(attachments.ServiceConfig{
		Database:   db,
		Clock:      time.Now,
		IDProvider: idProvider,
		Store:      objectStore,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Identity:      identityService,
		Invites:       inviteService,
		Catalog:       catalogService,
		Entries:       entryService,
		Attachments:   attachmentService,
		CookieName:    appConfig.SessionCookieName,
		AllowedOrigin: appConfig.AppOrigin,
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
