// Package demoapi is a self-contained storefront backend stub for demos and
// local runs: password login, bearer-token profile endpoints, and seeded
// demo accounts. It speaks the same contract the storefront client consumes.
package demoapi

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Account is a demo user record. Passwords are stored in the clear because
// this backend exists only for local runs and tests.
type Account struct {
	SubjectID   string
	Email       string
	Password    string
	DisplayName string
	Role        string
}

// Sentinel errors exposed by the account store.
var (
	ErrAccountNotFound    = errors.New("account_store.not_found")
	ErrWrongPassword      = errors.New("account_store.wrong_password")
	ErrEmptyAccountEmail  = errors.New("account_store.empty_email")
	ErrDuplicateAccount   = errors.New("account_store.duplicate_email")
	ErrEmptyDisplayName   = errors.New("account_store.empty_display_name")
	ErrUnknownSubjectID   = errors.New("account_store.unknown_subject")
	ErrEmptyAccountSecret = errors.New("account_store.empty_password")
)

// InMemoryAccounts holds demo accounts keyed by subject id.
type InMemoryAccounts struct {
	mutex      sync.Mutex
	bySubject  map[string]Account
	subjectFor map[string]string
}

// NewInMemoryAccounts constructs an empty store.
func NewInMemoryAccounts() *InMemoryAccounts {
	return &InMemoryAccounts{
		bySubject:  make(map[string]Account),
		subjectFor: make(map[string]string),
	}
}

// Register adds an account and assigns it a fresh subject id.
func (store *InMemoryAccounts) Register(ctx context.Context, email string, password string, displayName string, role string) (Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return Account{}, ErrEmptyAccountEmail
	}
	if strings.TrimSpace(password) == "" {
		return Account{}, ErrEmptyAccountSecret
	}
	store.mutex.Lock()
	defer store.mutex.Unlock()
	if _, exists := store.subjectFor[email]; exists {
		return Account{}, ErrDuplicateAccount
	}
	account := Account{
		SubjectID:   uuid.NewString(),
		Email:       email,
		Password:    password,
		DisplayName: displayName,
		Role:        role,
	}
	store.bySubject[account.SubjectID] = account
	store.subjectFor[email] = account.SubjectID
	return account, nil
}

// Authenticate resolves an account by email and checks the password.
func (store *InMemoryAccounts) Authenticate(ctx context.Context, email string, password string) (Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	store.mutex.Lock()
	defer store.mutex.Unlock()
	subjectID, exists := store.subjectFor[email]
	if !exists {
		return Account{}, ErrAccountNotFound
	}
	account := store.bySubject[subjectID]
	if account.Password != password {
		return Account{}, ErrWrongPassword
	}
	return account, nil
}

// GetBySubject returns the account for a subject id.
func (store *InMemoryAccounts) GetBySubject(ctx context.Context, subjectID string) (Account, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	account, exists := store.bySubject[subjectID]
	if !exists {
		return Account{}, ErrUnknownSubjectID
	}
	return account, nil
}

// UpdateDisplayName changes the display name for a subject id.
func (store *InMemoryAccounts) UpdateDisplayName(ctx context.Context, subjectID string, displayName string) (Account, error) {
	if strings.TrimSpace(displayName) == "" {
		return Account{}, ErrEmptyDisplayName
	}
	store.mutex.Lock()
	defer store.mutex.Unlock()
	account, exists := store.bySubject[subjectID]
	if !exists {
		return Account{}, ErrUnknownSubjectID
	}
	account.DisplayName = displayName
	store.bySubject[subjectID] = account
	return account, nil
}

// SeedDemoAccounts registers the fixed accounts used by demo runs.
func SeedDemoAccounts(ctx context.Context, store *InMemoryAccounts) error {
	seeds := []struct {
		email       string
		password    string
		displayName string
		role        string
	}{
		{"shopper@example.com", "shopper-pass", "Demo Shopper", "customer"},
		{"admin@example.com", "admin-pass", "Demo Admin", "admin"},
	}
	for _, seed := range seeds {
		if _, registerErr := store.Register(ctx, seed.email, seed.password, seed.displayName, seed.role); registerErr != nil {
			return registerErr
		}
	}
	return nil
}
