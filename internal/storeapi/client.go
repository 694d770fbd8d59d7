// Package storeapi is the HTTP client for the storefront backend: login and
// logout, plus the profile reads and writes the session manager depends on.
package storeapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tyemirov/shopkit/internal/sessionkit"
	"go.uber.org/zap"
)

var (
	// ErrMissingBaseURL indicates the client was configured without an endpoint.
	ErrMissingBaseURL = errors.New("store_api.missing_base_url")
	// ErrLoginRejected indicates the backend rejected the login credentials.
	ErrLoginRejected = errors.New("store_api.login_rejected")
	// ErrUnexpectedStatus indicates a response status outside the contract.
	ErrUnexpectedStatus = errors.New("store_api.unexpected_status")
)

// Client talks to the collaborator REST endpoints. The supplied HTTP client
// is expected to carry the auth interceptor chain as its transport, so the
// credential travels without being threaded through call sites.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// Config configures a Client.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// New constructs a Client after validating the supplied configuration.
func New(config Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(config.BaseURL), "/")
	if baseURL == "" {
		return nil, ErrMissingBaseURL
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token   string             `json:"token"`
	Profile sessionkit.Profile `json:"profile"`
}

// Login exchanges credentials for a bearer token.
func (client *Client) Login(ctx context.Context, email string, password string) (string, error) {
	body, marshalErr := json.Marshal(loginRequest{Email: email, Password: password})
	if marshalErr != nil {
		return "", fmt.Errorf("store_api.login.encode: %w", marshalErr)
	}
	request, requestErr := http.NewRequestWithContext(ctx, http.MethodPost, client.baseURL+"/auth/login", bytes.NewReader(body))
	if requestErr != nil {
		return "", fmt.Errorf("store_api.login.request: %w", requestErr)
	}
	request.Header.Set("Content-Type", "application/json")

	response, doErr := client.httpClient.Do(request)
	if doErr != nil {
		return "", fmt.Errorf("store_api.login: %w: %w", sessionkit.ErrProfileUnavailable, doErr)
	}
	defer drainAndClose(response.Body)

	switch response.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return "", ErrLoginRejected
	default:
		return "", fmt.Errorf("store_api.login: %w: %d", ErrUnexpectedStatus, response.StatusCode)
	}

	var decoded loginResponse
	if decodeErr := json.NewDecoder(response.Body).Decode(&decoded); decodeErr != nil {
		return "", fmt.Errorf("store_api.login.decode: %w", decodeErr)
	}
	if strings.TrimSpace(decoded.Token) == "" {
		return "", fmt.Errorf("store_api.login: %w: empty token", ErrUnexpectedStatus)
	}
	return decoded.Token, nil
}

// Logout tells the backend to end the session. Best effort: the local
// session teardown does not depend on it.
func (client *Client) Logout(ctx context.Context) error {
	request, requestErr := http.NewRequestWithContext(ctx, http.MethodPost, client.baseURL+"/auth/logout", nil)
	if requestErr != nil {
		return fmt.Errorf("store_api.logout.request: %w", requestErr)
	}
	response, doErr := client.httpClient.Do(request)
	if doErr != nil {
		return fmt.Errorf("store_api.logout: %w: %w", sessionkit.ErrProfileUnavailable, doErr)
	}
	defer drainAndClose(response.Body)
	if response.StatusCode != http.StatusNoContent && response.StatusCode != http.StatusOK {
		return fmt.Errorf("store_api.logout: %w: %d", ErrUnexpectedStatus, response.StatusCode)
	}
	return nil
}

// FetchProfile reads the authenticated user's profile.
func (client *Client) FetchProfile(ctx context.Context) (sessionkit.Profile, error) {
	request, requestErr := http.NewRequestWithContext(ctx, http.MethodGet, client.baseURL+"/auth/profile", nil)
	if requestErr != nil {
		return sessionkit.Profile{}, fmt.Errorf("store_api.fetch_profile.request: %w", requestErr)
	}
	response, doErr := client.httpClient.Do(request)
	if doErr != nil {
		return sessionkit.Profile{}, fmt.Errorf("store_api.fetch_profile: %w: %w", sessionkit.ErrProfileUnavailable, doErr)
	}
	defer drainAndClose(response.Body)
	return decodeProfileResponse(response, "store_api.fetch_profile")
}

// UpdateProfile pushes profile changes and returns the updated record.
func (client *Client) UpdateProfile(ctx context.Context, profile sessionkit.Profile) (sessionkit.Profile, error) {
	body, marshalErr := json.Marshal(profile)
	if marshalErr != nil {
		return sessionkit.Profile{}, fmt.Errorf("store_api.update_profile.encode: %w", marshalErr)
	}
	request, requestErr := http.NewRequestWithContext(ctx, http.MethodPut, client.baseURL+"/auth/profile", bytes.NewReader(body))
	if requestErr != nil {
		return sessionkit.Profile{}, fmt.Errorf("store_api.update_profile.request: %w", requestErr)
	}
	request.Header.Set("Content-Type", "application/json")

	response, doErr := client.httpClient.Do(request)
	if doErr != nil {
		return sessionkit.Profile{}, fmt.Errorf("store_api.update_profile: %w: %w", sessionkit.ErrProfileUnavailable, doErr)
	}
	defer drainAndClose(response.Body)
	return decodeProfileResponse(response, "store_api.update_profile")
}

func decodeProfileResponse(response *http.Response, operation string) (sessionkit.Profile, error) {
	switch response.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return sessionkit.Profile{}, fmt.Errorf("%s: %w", operation, sessionkit.ErrProfileUnauthorized)
	default:
		return sessionkit.Profile{}, fmt.Errorf("%s: %w: %d", operation, ErrUnexpectedStatus, response.StatusCode)
	}
	var profile sessionkit.Profile
	if decodeErr := json.NewDecoder(response.Body).Decode(&profile); decodeErr != nil {
		return sessionkit.Profile{}, fmt.Errorf("%s.decode: %w", operation, decodeErr)
	}
	return profile, nil
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 1<<16))
	_ = body.Close()
}
