package demoapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/tyemirov/shopkit/pkg/tokenverifier"
	"go.uber.org/zap"
)

// DefaultSessionTTL bounds issued credentials when the config leaves it zero.
const DefaultSessionTTL = 30 * time.Minute

const claimsContextKey = "auth_claims"

// ServerConfig configures the demo backend.
type ServerConfig struct {
	SigningKey []byte
	Issuer     string
	SessionTTL time.Duration
	Clock      tokenverifier.Clock
	Logger     *zap.Logger
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type profilePayload struct {
	SubjectID   string `json:"subject_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

type updateProfileRequest struct {
	DisplayName string `json:"display_name"`
}

// MountStoreRoutes registers the auth and profile endpoints on the router.
func MountStoreRoutes(router gin.IRouter, configuration ServerConfig, accounts *InMemoryAccounts) error {
	if accounts == nil {
		return errors.New("demo_api.missing_accounts")
	}
	if configuration.SessionTTL <= 0 {
		configuration.SessionTTL = DefaultSessionTTL
	}
	if configuration.Clock == nil {
		configuration.Clock = sysClock{}
	}
	logger := configuration.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	verifier, verifierErr := tokenverifier.New(tokenverifier.Config{
		SigningKey: configuration.SigningKey,
		Issuer:     configuration.Issuer,
		Clock:      configuration.Clock,
	})
	if verifierErr != nil {
		return verifierErr
	}

	router.POST("/auth/login", func(contextGin *gin.Context) {
		var body loginRequest
		if bindErr := contextGin.ShouldBindJSON(&body); bindErr != nil {
			contextGin.AbortWithStatus(http.StatusBadRequest)
			return
		}
		account, authErr := accounts.Authenticate(contextGin, body.Email, body.Password)
		if authErr != nil {
			logger.Warn("login rejected",
				zap.String("code", "demo_api.login.rejected"),
				zap.String("email", strings.ToLower(strings.TrimSpace(body.Email))))
			contextGin.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		credential, mintErr := mintCredential(configuration, account)
		if mintErr != nil {
			logger.Error("credential mint failed",
				zap.String("code", "demo_api.login.mint_failed"),
				zap.Error(mintErr))
			contextGin.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		contextGin.JSON(http.StatusOK, gin.H{
			"token":   credential,
			"profile": profileFromAccount(account),
		})
	})

	router.POST("/auth/logout", func(contextGin *gin.Context) {
		// Tokens are stateless here; logout succeeds unconditionally so the
		// client can always finish its local teardown.
		contextGin.Status(http.StatusNoContent)
	})

	authenticated := router.Group("/auth")
	authenticated.Use(verifier.GinMiddleware(claimsContextKey))

	authenticated.GET("/profile", func(contextGin *gin.Context) {
		claims, claimsOk := claimsFromContext(contextGin)
		if !claimsOk {
			contextGin.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		account, lookupErr := accounts.GetBySubject(contextGin, claims.GetSubjectID())
		if lookupErr != nil {
			logger.Warn("profile lookup failed",
				zap.String("code", "demo_api.profile.unknown_subject"),
				zap.String("subject_id", claims.GetSubjectID()))
			contextGin.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		contextGin.JSON(http.StatusOK, profileFromAccount(account))
	})

	authenticated.PUT("/profile", func(contextGin *gin.Context) {
		claims, claimsOk := claimsFromContext(contextGin)
		if !claimsOk {
			contextGin.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		var body updateProfileRequest
		if bindErr := contextGin.ShouldBindJSON(&body); bindErr != nil {
			contextGin.AbortWithStatus(http.StatusBadRequest)
			return
		}
		account, updateErr := accounts.UpdateDisplayName(contextGin, claims.GetSubjectID(), body.DisplayName)
		if updateErr != nil {
			if errors.Is(updateErr, ErrEmptyDisplayName) {
				contextGin.AbortWithStatus(http.StatusBadRequest)
				return
			}
			contextGin.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		contextGin.JSON(http.StatusOK, profileFromAccount(account))
	})

	return nil
}

type sysClock struct{}

func (sysClock) Now() time.Time {
	return time.Now().UTC()
}

func claimsFromContext(contextGin *gin.Context) (*tokenverifier.Claims, bool) {
	claimsValue, found := contextGin.Get(claimsContextKey)
	if !found {
		return nil, false
	}
	claims, ok := claimsValue.(*tokenverifier.Claims)
	if !ok || claims == nil || claims.GetSubjectID() == "" {
		return nil, false
	}
	return claims, true
}

func profileFromAccount(account Account) profilePayload {
	return profilePayload{
		SubjectID:   account.SubjectID,
		Email:       account.Email,
		DisplayName: account.DisplayName,
		Role:        account.Role,
	}
}

func mintCredential(configuration ServerConfig, account Account) (string, error) {
	issuedAt := configuration.Clock.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenverifier.Claims{
		UserEmail:       account.Email,
		UserDisplayName: account.DisplayName,
		UserRole:        account.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    configuration.Issuer,
			Subject:   account.SubjectID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt.Add(-30 * time.Second)),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(configuration.SessionTTL)),
		},
	})
	return token.SignedString(configuration.SigningKey)
}
