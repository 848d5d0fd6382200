package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MarcoPoloResearchLab/inkwell/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/inkwell/backend/internal/config"
	"github.com/MarcoPoloResearchLab/inkwell/backend/internal/database"
	"github.com/MarcoPoloResearchLab/inkwell/backend/internal/drive"
	"github.com/MarcoPoloResearchLab/inkwell/backend/internal/letters"
	"github.com/MarcoPoloResearchLab/inkwell/backend/internal/logging"
	"github.com/MarcoPoloResearchLab/inkwell/backend/internal/server"
	"github.com/MarcoPoloResearchLab/inkwell/backend/internal/users"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "inkwell-api",
		Short: "Inkwell letter editor backend service",
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
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringSlice("allowed-origins", nil, "Origins allowed to call the API with credentials")
	cmd.PersistentFlags().String("database-driver", defaults.GetString("database.driver"), "Database driver (sqlite, postgres, memory)")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("database-dsn", "", "Postgres connection string")
	cmd.PersistentFlags().String("signing-secret", "", "Session signing secret (overrides env)")
	cmd.PersistentFlags().Int("session-ttl-minutes", defaults.GetInt("session.ttl_minutes"), "Session lifetime in minutes")
	cmd.PersistentFlags().Bool("secure-cookie", defaults.GetBool("session.secure_cookie"), "Mark the session cookie Secure")
	cmd.PersistentFlags().String("google-client-id", defaults.GetString("google.client_id"), "Google OAuth client ID")
	cmd.PersistentFlags().String("google-jwks-url", defaults.GetString("google.jwks_url"), "Google JWKS URL")
	cmd.PersistentFlags().String("export-backend", defaults.GetString("export.backend"), "Export backend (mock, s3)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "cors.allowed_origins", "allowed-origins")
	bindFlag(cmd, "database.driver", "database-driver")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "database.dsn", "database-dsn")
	bindFlag(cmd, "session.signing_secret", "signing-secret")
	bindFlag(cmd, "session.ttl_minutes", "session-ttl-minutes")
	bindFlag(cmd, "session.secure_cookie", "secure-cookie")
	bindFlag(cmd, "google.client_id", "google-client-id")
	bindFlag(cmd, "google.jwks_url", "google-jwks-url")
	bindFlag(cmd, "export.backend", "export-backend")
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

	stores, err := openStores(appConfig, logger)
	if err != nil {
		return err
	}
	defer stores.close()

	userService, err := users.NewService(users.ServiceConfig{Repository: stores.users, Logger: logger})
	if err != nil {
		return err
	}
	letterService, err := letters.NewService(letters.ServiceConfig{Repository: stores.letters, Logger: logger})
	if err != nil {
		return err
	}

	uploader, err := newUploader(ctx, appConfig)
	if err != nil {
		return err
	}
	exchanger, err := newExchanger(appConfig)
	if err != nil {
		return err
	}
	driveService, err := drive.NewService(drive.ServiceConfig{
		Users:     userService,
		Letters:   letterService,
		Uploader:  uploader,
		Exchanger: exchanger,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	sessionTokens, err := auth.NewSessionTokens(auth.SessionTokenConfig{
		SigningSecret: []byte(appConfig.SessionSigningSecret),
	})
	if err != nil {
		return err
	}
	sessionManager, err := auth.NewSessionManager(auth.SessionManagerConfig{
		Store:  stores.sessions,
		Tokens: sessionTokens,
		TTL:    appConfig.SessionTTL,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	deps := server.Dependencies{
		Users:          userService,
		Letters:        letterService,
		Drive:          driveService,
		Sessions:       sessionManager,
		Cookie:         server.CookieConfig{Name: appConfig.SessionCookieName, Secure: appConfig.SessionSecureCookie},
		AllowedOrigins: appConfig.AllowedOrigins,
		Logger:         logger,
	}
	if appConfig.VerifiesGoogleTokens() {
		googleVerifier, err := auth.NewGoogleVerifier(auth.GoogleVerifierConfig{
			Audience: appConfig.GoogleClientID,
			JWKSURL:  appConfig.GoogleJWKSURL,
			Logger:   logger,
		})
		if err != nil {
			return err
		}
		deps.GoogleVerifier = googleVerifier
	}

	handler, err := server.NewHTTPHandler(deps)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              appConfig.HTTPAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("address", appConfig.HTTPAddress),
			zap.String("database_driver", appConfig.DatabaseDriver),
			zap.String("export_backend", appConfig.ExportBackend),
			zap.Bool("google_verification", appConfig.VerifiesGoogleTokens()))
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

type storage struct {
	users    users.Repository
	letters  letters.Repository
	sessions auth.SessionStore
	db       *gorm.DB
}

func (s storage) close() {
	if s.db != nil {
		_ = database.Close(s.db)
	}
}

func openStores(appConfig config.AppConfig, logger *zap.Logger) (storage, error) {
	if appConfig.DatabaseDriver == config.DatabaseDriverMemory {
		logger.Warn("using in-memory storage; data is lost on restart")
		return storage{
			users:    users.NewMemoryRepository(),
			letters:  letters.NewMemoryRepository(time.Now),
			sessions: auth.NewMemorySessionStore(),
		}, nil
	}

	db, err := database.Open(database.Config{
		Driver: appConfig.DatabaseDriver,
		Path:   appConfig.DatabasePath,
		DSN:    appConfig.DatabaseDSN,
	}, logger)
	if err != nil {
		return storage{}, err
	}
	userRepository, err := users.NewGormRepository(db)
	if err != nil {
		return storage{}, err
	}
	letterRepository, err := letters.NewGormRepository(db, time.Now)
	if err != nil {
		return storage{}, err
	}
	sessionStore, err := auth.NewGormSessionStore(db)
	if err != nil {
		return storage{}, err
	}
	return storage{users: userRepository, letters: letterRepository, sessions: sessionStore, db: db}, nil
}

func newUploader(ctx context.Context, appConfig config.AppConfig) (drive.Uploader, error) {
	if appConfig.ExportBackend != config.ExportBackendS3 {
		return drive.NewMockUploader(), nil
	}
	return drive.NewBucketUploader(ctx, drive.BucketConfig{
		Endpoint:      appConfig.S3.Endpoint,
		AccessKey:     appConfig.S3.AccessKey,
		SecretKey:     appConfig.S3.SecretKey,
		Bucket:        appConfig.S3.Bucket,
		UseSSL:        appConfig.S3.UseSSL,
		PublicBaseURL: appConfig.S3.PublicBaseURL,
	})
}

func newExchanger(appConfig config.AppConfig) (drive.CredentialExchanger, error) {
	if !appConfig.ExchangesDriveCredentials() {
		return drive.MockExchanger{}, nil
	}
	return drive.NewOAuthExchanger(drive.OAuthConfig{
		ClientID:     appConfig.GoogleClientID,
		ClientSecret: appConfig.GoogleClientSecret,
		RedirectURL:  appConfig.GoogleRedirectURL,
	})
}
