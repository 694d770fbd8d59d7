package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tyemirov/shopkit/internal/demoapi"
	"go.uber.org/zap"
)

var serveHTTP = func(server *http.Server) error {
	return server.ListenAndServe()
}

func newDemoServerCommand() *cobra.Command {
	serverCmd := &cobra.Command{
		Use:   "demo-server",
		Short: "Run the demo storefront backend with seeded accounts",
		RunE:  runDemoServer,
	}

	serverCmd.Flags().String("listen_addr", ":8080", "HTTP listen address")
	serverCmd.Flags().String("jwt_signing_key", "", "HS256 signing secret for issued credentials")
	serverCmd.Flags().Duration("session_ttl", demoapi.DefaultSessionTTL, "Issued credential TTL")
	serverCmd.Flags().Bool("enable_cors", false, "Enable CORS for cross-origin storefront clients")
	serverCmd.Flags().StringSlice("cors_allowed_origins", []string{}, "Allowed origins when CORS is enabled (required if enable_cors is true)")

	_ = viper.BindPFlag("listen_addr", serverCmd.Flags().Lookup("listen_addr"))
	_ = viper.BindPFlag("jwt_signing_key", serverCmd.Flags().Lookup("jwt_signing_key"))
	_ = viper.BindPFlag("session_ttl", serverCmd.Flags().Lookup("session_ttl"))
	_ = viper.BindPFlag("enable_cors", serverCmd.Flags().Lookup("enable_cors"))
	_ = viper.BindPFlag("cors_allowed_origins", serverCmd.Flags().Lookup("cors_allowed_origins"))

	return serverCmd
}

func loadDemoServerConfig() (demoapi.ServerConfig, error) {
	jwtSigningKey := viper.GetString("jwt_signing_key")
	if jwtSigningKey == "" {
		return demoapi.ServerConfig{}, configError(configCodeMissingJWTSigningKey, "jwt_signing_key must be provided")
	}
	sessionTTL := viper.GetDuration("session_ttl")
	if sessionTTL <= 0 {
		return demoapi.ServerConfig{}, configError(configCodeInvalidSessionTTL, "session_ttl must be greater than zero")
	}
	return demoapi.ServerConfig{
		SigningKey: []byte(jwtSigningKey),
		Issuer:     credentialIssuer,
		SessionTTL: sessionTTL,
	}, nil
}

func runDemoServer(command *cobra.Command, arguments []string) error {
	logger, loggerErr := zap.NewProduction()
	if loggerErr != nil {
		return loggerErr
	}
	defer func() { _ = logger.Sync() }()

	serverConfig, configErr := loadDemoServerConfig()
	if configErr != nil {
		return configErr
	}
	serverConfig.Logger = logger

	listenAddr := viper.GetString("listen_addr")
	enableCORS := viper.GetBool("enable_cors")
	corsAllowedOrigins := viper.GetStringSlice("cors_allowed_origins")

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(zapLoggerMiddleware(logger))

	if enableCORS {
		corsMiddleware, corsErr := demoapi.ConfigureCORS(logger, corsAllowedOrigins)
		if corsErr != nil {
			return corsErr
		}
		router.Use(corsMiddleware)
	}

	accounts := demoapi.NewInMemoryAccounts()
	if seedErr := demoapi.SeedDemoAccounts(command.Context(), accounts); seedErr != nil {
		return seedErr
	}
	if mountErr := demoapi.MountStoreRoutes(router, serverConfig, accounts); mountErr != nil {
		return mountErr
	}

	server := &http.Server{
		Addr:              listenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())
	defer shutdownCancel()

	go func() {
		stopSignals := make(chan os.Signal, 1)
		signal.Notify(stopSignals, syscall.SIGINT, syscall.SIGTERM)
		<-stopSignals
		graceCtx, graceCancel := context.WithTimeout(shutdownCtx, 10*time.Second)
		defer graceCancel()
		if err := server.Shutdown(graceCtx); err != nil {
			logger.Error("server shutdown error", zap.Error(err))
		}
	}()

	logger.Info("listening", zap.String("addr", listenAddr))
	if err := serveHTTP(server); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen error: %w", err)
	}
	return nil
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(contextGin *gin.Context) {
		startTime := time.Now()
		contextGin.Next()
		duration := time.Since(startTime)
		logger.Info("http",
			zap.String("method", contextGin.Request.Method),
			zap.String("path", contextGin.Request.URL.Path),
			zap.Int("status", contextGin.Writer.Status()),
			zap.String("ip", contextGin.ClientIP()),
			zap.Duration("elapsed", duration),
		)
	}
}
