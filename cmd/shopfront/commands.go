package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/tyemirov/shopkit/internal/sessionkit"
	"go.uber.org/zap"
)

func newClientLogger() (*zap.Logger, error) {
	return zap.NewProduction()
}

func bootstrapApp(command *cobra.Command) (*clientApp, clientConfig, *zap.Logger, error) {
	config, configErr := loadClientConfig()
	if configErr != nil {
		return nil, clientConfig{}, nil, configErr
	}
	logger, loggerErr := newClientLogger()
	if loggerErr != nil {
		return nil, clientConfig{}, nil, loggerErr
	}
	app, appErr := newClientApp(command.Context(), config, logger)
	if appErr != nil {
		_ = logger.Sync()
		return nil, clientConfig{}, nil, appErr
	}
	return app, config, logger, nil
}

func newLoginCommand() *cobra.Command {
	var email string
	var password string

	loginCmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate against the backend and persist the session",
		RunE: func(command *cobra.Command, arguments []string) error {
			app, _, logger, bootErr := bootstrapApp(command)
			if bootErr != nil {
				return bootErr
			}
			defer func() { _ = logger.Sync() }()

			ctx := command.Context()
			if restoreErr := app.restore(ctx); restoreErr != nil {
				return restoreErr
			}

			credential, loginErr := app.api.Login(ctx, email, password)
			if loginErr != nil {
				return loginErr
			}
			if sessionErr := app.manager.Login(ctx, credential); sessionErr != nil {
				return sessionErr
			}

			profile, _ := app.manager.Profile()
			fmt.Fprintf(command.OutOrStdout(), "logged in as %s (%s)\n", profile.DisplayName, profile.Email)
			return nil
		},
	}

	loginCmd.Flags().StringVar(&email, "email", "", "Account email")
	loginCmd.Flags().StringVar(&password, "password", "", "Account password")
	_ = loginCmd.MarkFlagRequired("email")
	_ = loginCmd.MarkFlagRequired("password")

	return loginCmd
}

func newLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and return to the guest identity",
		RunE: func(command *cobra.Command, arguments []string) error {
			app, _, logger, bootErr := bootstrapApp(command)
			if bootErr != nil {
				return bootErr
			}
			defer func() { _ = logger.Sync() }()

			ctx := command.Context()
			if restoreErr := app.restore(ctx); restoreErr != nil {
				return restoreErr
			}
			if app.manager.State() != sessionkit.StateAuthenticated {
				fmt.Fprintln(command.OutOrStdout(), "not logged in")
				return nil
			}

			// Best effort: local teardown must succeed even when the
			// backend is unreachable.
			if logoutErr := app.api.Logout(ctx); logoutErr != nil {
				logger.Warn("backend logout failed",
					zap.String("code", "client.logout.backend_failed"),
					zap.Error(logoutErr))
			}
			if sessionErr := app.manager.Logout(ctx); sessionErr != nil {
				return sessionErr
			}
			fmt.Fprintln(command.OutOrStdout(), "logged out")
			return nil
		},
	}
}

func newWhoAmICommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the restored session state and profile",
		RunE: func(command *cobra.Command, arguments []string) error {
			app, _, logger, bootErr := bootstrapApp(command)
			if bootErr != nil {
				return bootErr
			}
			defer func() { _ = logger.Sync() }()

			ctx := command.Context()
			if restoreErr := app.restore(ctx); restoreErr != nil {
				return restoreErr
			}

			out := command.OutOrStdout()
			if app.manager.State() != sessionkit.StateAuthenticated {
				fmt.Fprintf(out, "guest (identity %s)\n", app.manager.Identity())
				return nil
			}
			profile, _ := app.manager.Profile()
			fmt.Fprintf(out, "%s <%s>\n", profile.DisplayName, profile.Email)
			fmt.Fprintf(out, "identity: %s\n", app.manager.Identity())
			fmt.Fprintf(out, "role: %s\n", profile.Role)
			return nil
		},
	}
}

type printingNotifier struct {
	out func(format string, arguments ...any)
}

func (notifier printingNotifier) SessionExpired() {
	notifier.out("session expired; returned to guest\n")
}

func (notifier printingNotifier) ExpiryWarning(remaining time.Duration) {
	notifier.out("session expires in %s\n", remaining.Round(time.Second))
}

func newWatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Watch the session credential and warn before it expires",
		RunE: func(command *cobra.Command, arguments []string) error {
			app, config, logger, bootErr := bootstrapApp(command)
			if bootErr != nil {
				return bootErr
			}
			defer func() { _ = logger.Sync() }()

			ctx := command.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if restoreErr := app.restore(ctx); restoreErr != nil {
				return restoreErr
			}
			if app.manager.State() != sessionkit.StateAuthenticated {
				return sessionkit.ErrNotAuthenticated
			}

			notifier := printingNotifier{out: func(format string, arguments ...any) {
				fmt.Fprintf(command.OutOrStdout(), format, arguments...)
			}}
			watcher, watcherErr := app.manager.StartExpirationWatcher(ctx, sessionkit.WatcherConfig{
				Interval:   config.CheckInterval,
				WarnWindow: config.WarnWindow,
				Notifier:   notifier,
			})
			if watcherErr != nil {
				return watcherErr
			}

			stopSignals := make(chan os.Signal, 1)
			signal.Notify(stopSignals, syscall.SIGINT, syscall.SIGTERM)
			select {
			case <-watcher.Done():
			case <-stopSignals:
				watcher.Stop()
				<-watcher.Done()
			}
			return nil
		},
	}
}
