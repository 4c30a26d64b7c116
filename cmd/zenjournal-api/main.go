package main

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MarcoPoloResearchLab/zenjournal/internal/auth"
	"github.com/MarcoPoloResearchLab/zenjournal/internal/config"
	"github.com/MarcoPoloResearchLab/zenjournal/internal/database"
	"github.com/MarcoPoloResearchLab/zenjournal/internal/insights"
	"github.com/MarcoPoloResearchLab/zenjournal/internal/journal"
	"github.com/MarcoPoloResearchLab/zenjournal/internal/logging"
	"github.com/MarcoPoloResearchLab/zenjournal/internal/server"
	"github.com/MarcoPoloResearchLab/zenjournal/internal/users"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const shutdownTimeout = 10 * time.Second

var (
	cfgFile string
	envFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "zenjournal-api",
		Short: "Zen journal backend service",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)
	rootCmd.AddCommand(newRebuildStatsCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to an optional dotenv file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().Int("token-ttl-minutes", defaults.GetInt("token.ttl_minutes"), "Session token TTL in minutes")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("signing-secret", "", "Session signing secret (overrides env)")
	cmd.PersistentFlags().String("timezone", defaults.GetString("journal.timezone"), "IANA time zone that decides the journal day")
	cmd.PersistentFlags().String("openai-model", defaults.GetString("openai.model"), "Model used for daily insights")
	cmd.PersistentFlags().String("openai-base-url", "", "OpenAI-compatible API base URL")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "token.ttl_minutes", "token-ttl-minutes")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
	bindFlag(cmd, "journal.timezone", "timezone")
	bindFlag(cmd, "openai.model", "openai-model")
	bindFlag(cmd, "openai.base_url", "openai-base-url")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}

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
	defer database.Close(db) //nolint:errcheck

	events := journal.NewDispatcher()
	journalService, err := journal.NewService(journal.ServiceConfig{
		Database:   db,
		Clock:      time.Now,
		Location:   appConfig.Location,
		IDProvider: journal.NewUUIDProvider(),
		Logger:     logger,
		Events:     events,
	})
	if err != nil {
		return err
	}

	userService, err := users.NewService(users.ServiceConfig{
		Database:     db,
		Clock:        time.Now,
		Logger:       logger,
		PasswordCost: bcrypt.DefaultCost,
		OwnedModels:  journal.OwnedModels(),
	})
	if err != nil {
		return err
	}

	tokenManager, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(appConfig.SigningSecret),
		Issuer:        appConfig.TokenIssuer,
		Audience:      appConfig.TokenAudience,
		TokenTTL:      appConfig.TokenTTL,
	})
	if err != nil {
		return err
	}

	deps := server.Dependencies{
		TokenManager:   tokenManager,
		Users:          userService,
		Journal:        journalService,
		Events:         events,
		AllowedOrigins: appConfig.AllowedOrigins,
		Logger:         logger,
	}
	if appConfig.InsightsEnabled() {
		generator, err := insights.NewOpenAIGenerator(insights.OpenAIConfig{
			APIKey:  appConfig.OpenAIAPIKey,
			Model:   appConfig.OpenAIModel,
			BaseURL: appConfig.OpenAIBaseURL,
		})
		if err != nil {
			return err
		}
		insightService, err := insights.NewService(insights.ServiceConfig{
			Entries:   journalService,
			Generator: generator,
			Logger:    logger,
		})
		if err != nil {
			return err
		}
		deps.Insights = insightService
	} else {
		logger.Info("insights disabled; openai.api_key is not set")
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
			zap.String("timezone", appConfig.Location.String()))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
