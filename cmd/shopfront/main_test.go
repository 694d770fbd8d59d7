package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"github.com/tyemirov/shopkit/internal/statekit"
	"go.uber.org/zap/zaptest"
)

func TestZapLoggerMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	logger := zaptest.NewLogger(t)

	router := gin.New()
	router.Use(zapLoggerMiddleware(logger))
	router.GET("/ping", func(contextGin *gin.Context) {
		contextGin.Status(http.StatusNoContent)
	})

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/ping", nil)
	router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", recorder.Code)
	}
}

func TestLoadClientConfigRequiresAPIBaseURL(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	viper.Set("api_base_url", "   ")
	viper.Set("check_interval", time.Minute)
	viper.Set("warn_window", 5*time.Minute)

	_, err := loadClientConfig()
	if err == nil {
		t.Fatalf("expected error when api_base_url is missing")
	}
	expectedMessage := "config.missing_api_base_url: api_base_url must be provided"
	if err.Error() != expectedMessage {
		t.Fatalf("expected error %q, got %q", expectedMessage, err.Error())
	}
}

func TestLoadClientConfigRequiresPositiveIntervals(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	viper.Set("api_base_url", "http://localhost:8080")
	viper.Set("check_interval", 0)
	viper.Set("warn_window", 5*time.Minute)

	_, err := loadClientConfig()
	if err == nil {
		t.Fatalf("expected error when check_interval is non-positive")
	}
	expectedMessage := "config.invalid_check_interval: check_interval must be greater than zero"
	if err.Error() != expectedMessage {
		t.Fatalf("expected error %q, got %q", expectedMessage, err.Error())
	}

	viper.Set("check_interval", time.Minute)
	viper.Set("warn_window", 0)
	_, warnErr := loadClientConfig()
	if warnErr == nil {
		t.Fatalf("expected error when warn_window is non-positive")
	}
	expectedMessage = "config.invalid_warn_window: warn_window must be greater than zero"
	if warnErr.Error() != expectedMessage {
		t.Fatalf("expected error %q, got %q", expectedMessage, warnErr.Error())
	}
}

func TestLoadDemoServerConfigRequiresSigningKey(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	viper.Set("session_ttl", time.Minute)

	_, err := loadDemoServerConfig()
	if err == nil {
		t.Fatalf("expected configuration error when jwt_signing_key missing")
	}
	expectedMessage := "config.missing_jwt_signing_key: jwt_signing_key must be provided"
	if err.Error() != expectedMessage {
		t.Fatalf("expected error %q, got %q", expectedMessage, err.Error())
	}
}

func TestLoadDemoServerConfigRequiresPositiveSessionTTL(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	viper.Set("jwt_signing_key", "signing-secret")
	viper.Set("session_ttl", 0)

	_, err := loadDemoServerConfig()
	if err == nil {
		t.Fatalf("expected error when session_ttl is non-positive")
	}
	expectedMessage := "config.invalid_session_ttl: session_ttl must be greater than zero"
	if err.Error() != expectedMessage {
		t.Fatalf("expected error %q, got %q", expectedMessage, err.Error())
	}
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	rootCmd := newRootCommand()
	expected := []string{"login", "logout", "whoami", "watch", "cart", "wishlist", "demo-server"}
	for _, name := range expected {
		found := false
		for _, sub := range rootCmd.Commands() {
			if sub.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("expected subcommand %q to be registered", name)
		}
	}
}

func TestClientAppRestoresGuestIdentity(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	logger := zaptest.NewLogger(t)
	app, appErr := newClientApp(context.Background(), clientConfig{
		APIBaseURL:    "http://localhost:8080",
		CheckInterval: time.Minute,
		WarnWindow:    5 * time.Minute,
	}, logger)
	if appErr != nil {
		t.Fatalf("expected app to build, got %v", appErr)
	}

	if restoreErr := app.restore(context.Background()); restoreErr != nil {
		t.Fatalf("expected restore to succeed, got %v", restoreErr)
	}
	if app.manager.Identity() != statekit.GuestIdentity {
		t.Fatalf("expected guest identity, got %q", app.manager.Identity())
	}
	if app.cart.Identity() != statekit.GuestIdentity {
		t.Fatalf("expected cart to follow guest identity, got %q", app.cart.Identity())
	}
	if app.wishlist.Identity() != statekit.GuestIdentity {
		t.Fatalf("expected wishlist to follow guest identity, got %q", app.wishlist.Identity())
	}
}
