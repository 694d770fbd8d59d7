package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tyemirov/shopkit/internal/sessionkit"
)

const credentialIssuer = "shopfront-demo"

const (
	configCodeMissingAPIBaseURL    = "config.missing_api_base_url"
	configCodeMissingJWTSigningKey = "config.missing_jwt_signing_key"
	configCodeInvalidSessionTTL    = "config.invalid_session_ttl"
	configCodeInvalidCheckInterval = "config.invalid_check_interval"
	configCodeInvalidWarnWindow    = "config.invalid_warn_window"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "shopfront",
		Short: "Storefront client with persistent carts, wishlists, and token-based sessions",
	}

	rootCmd.PersistentFlags().String("api_base_url", "http://localhost:8080", "Base URL of the storefront backend")
	rootCmd.PersistentFlags().String("state_db_url", "", "Client state database URL (postgres:// or sqlite://; leave empty for in-memory state)")
	rootCmd.PersistentFlags().Duration("check_interval", sessionkit.DefaultCheckInterval, "Credential expiry check interval")
	rootCmd.PersistentFlags().Duration("warn_window", sessionkit.DefaultWarnWindow, "Remaining-lifetime window that triggers an expiry warning")

	_ = viper.BindPFlag("api_base_url", rootCmd.PersistentFlags().Lookup("api_base_url"))
	_ = viper.BindPFlag("state_db_url", rootCmd.PersistentFlags().Lookup("state_db_url"))
	_ = viper.BindPFlag("check_interval", rootCmd.PersistentFlags().Lookup("check_interval"))
	_ = viper.BindPFlag("warn_window", rootCmd.PersistentFlags().Lookup("warn_window"))

	viper.SetEnvPrefix("APP")
	viper.AutomaticEnv()

	rootCmd.AddCommand(newLoginCommand())
	rootCmd.AddCommand(newLogoutCommand())
	rootCmd.AddCommand(newWhoAmICommand())
	rootCmd.AddCommand(newWatchCommand())
	rootCmd.AddCommand(newCartCommand())
	rootCmd.AddCommand(newWishlistCommand())
	rootCmd.AddCommand(newDemoServerCommand())

	return rootCmd
}

type clientConfig struct {
	APIBaseURL    string
	StateDBURL    string
	CheckInterval time.Duration
	WarnWindow    time.Duration
}

func configError(code, message string) error {
	return fmt.Errorf("%s: %s", code, message)
}

func loadClientConfig() (clientConfig, error) {
	apiBaseURL := strings.TrimSpace(viper.GetString("api_base_url"))
	if apiBaseURL == "" {
		return clientConfig{}, configError(configCodeMissingAPIBaseURL, "api_base_url must be provided")
	}
	checkInterval := viper.GetDuration("check_interval")
	if checkInterval <= 0 {
		return clientConfig{}, configError(configCodeInvalidCheckInterval, "check_interval must be greater than zero")
	}
	warnWindow := viper.GetDuration("warn_window")
	if warnWindow <= 0 {
		return clientConfig{}, configError(configCodeInvalidWarnWindow, "warn_window must be greater than zero")
	}
	return clientConfig{
		APIBaseURL:    apiBaseURL,
		StateDBURL:    strings.TrimSpace(viper.GetString("state_db_url")),
		CheckInterval: checkInterval,
		WarnWindow:    warnWindow,
	}, nil
}
