package main

import (
	"context"
	"net/http"
	"time"

	"github.com/tyemirov/shopkit/internal/sessionkit"
	"github.com/tyemirov/shopkit/internal/statekit"
	"github.com/tyemirov/shopkit/internal/storeapi"
	"go.uber.org/zap"
)

// clientApp wires the storefront client together: the state store, the
// session manager, the collections that follow its identity, and the HTTP
// client whose transport carries the credential.
type clientApp struct {
	store    statekit.KeyValueStore
	codec    *sessionkit.TokenCodec
	guard    *sessionkit.UnauthorizedGuard
	metrics  *sessionkit.SessionMetrics
	manager  *sessionkit.Manager
	cart     *statekit.CartAggregate
	wishlist *statekit.WishlistSet
	api      *storeapi.Client
	logger   *zap.Logger
}

func newClientApp(ctx context.Context, config clientConfig, logger *zap.Logger) (*clientApp, error) {
	store, storeErr := buildStateStore(ctx, config.StateDBURL, logger)
	if storeErr != nil {
		return nil, storeErr
	}

	codec := sessionkit.NewTokenCodec()
	clock := sessionkit.NewSystemClock()
	metrics := sessionkit.NewSessionMetrics()

	guard := sessionkit.NewUnauthorizedGuard(http.DefaultTransport, store, func() {
		logger.Warn("backend rejected credential",
			zap.String("code", "client.session.unauthorized"))
	}, logger)
	interceptor := sessionkit.NewRequestAuthInterceptor(guard, store, codec, clock, logger, metrics)
	httpClient := &http.Client{Transport: interceptor, Timeout: 30 * time.Second}

	api, apiErr := storeapi.New(storeapi.Config{
		BaseURL:    config.APIBaseURL,
		HTTPClient: httpClient,
		Logger:     logger,
	})
	if apiErr != nil {
		return nil, apiErr
	}

	manager, managerErr := sessionkit.NewManager(sessionkit.ManagerConfig{
		Store:    store,
		Codec:    codec,
		Profiles: api,
		Clock:    clock,
		Logger:   logger,
		Metrics:  metrics,
	})
	if managerErr != nil {
		return nil, managerErr
	}

	cart := statekit.NewCartAggregate(store, logger)
	wishlist := statekit.NewWishlistSet(store, logger)

	manager.Subscribe(func(listenerCtx context.Context, identity statekit.Identity) {
		cart.SwitchIdentity(listenerCtx, identity)
		wishlist.SwitchIdentity(listenerCtx, identity)
		if identity != statekit.GuestIdentity {
			guard.Rearm()
		}
	})

	return &clientApp{
		store:    store,
		codec:    codec,
		guard:    guard,
		metrics:  metrics,
		manager:  manager,
		cart:     cart,
		wishlist: wishlist,
		api:      api,
		logger:   logger,
	}, nil
}

// restore replays the persisted session and loads the collections for
// whichever identity it resolves to.
func (app *clientApp) restore(ctx context.Context) error {
	return app.manager.Restore(ctx)
}

func buildStateStore(ctx context.Context, databaseURL string, logger *zap.Logger) (statekit.KeyValueStore, error) {
	if databaseURL == "" {
		logger.Info("using in-memory client state store")
		return statekit.NewMemoryKeyValueStore(), nil
	}
	persistentStore, storeErr := statekit.NewDatabaseKeyValueStore(ctx, databaseURL)
	if storeErr != nil {
		return nil, storeErr
	}
	logger.Info("using persistent client state store", zap.String("driver", persistentStore.Driver()))
	return persistentStore, nil
}
