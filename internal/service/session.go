// Package service holds the BranchLift core: the session store that owns the
// account directory and the current session, and the workspace store that
// owns each account's repositories, branches and environments.
package service

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/atinyakov/BranchLift/internal/clock"
	"github.com/atinyakov/BranchLift/internal/kv"
	"github.com/atinyakov/BranchLift/internal/models"
	"go.uber.org/zap"
)

// SessionStore registers and authenticates accounts and tracks the single
// active session of one execution context.
type SessionStore struct {
	store kv.Store
	clock clock.Clock
	log   *zap.Logger

	mu      sync.RWMutex
	current *models.Account
}

// NewSessionStore constructs a SessionStore persisting to store.
// A nil clock uses the system time and a nil logger discards output.
func NewSessionStore(store kv.Store, clk clock.Clock, log *zap.Logger) *SessionStore {
	if clk == nil {
		clk = clock.Real{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &SessionStore{store: store, clock: clk, log: log}
}

// Current returns a copy of the active account, or nil when logged out.
func (s *SessionStore) Current() *models.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil
	}
	acc := *s.current
	return &acc
}

func (s *SessionStore) directory(ctx context.Context) ([]models.Account, error) {
	var accounts []models.Account
	if _, err := kv.GetJSON(ctx, s.store, keyAccountDirectory, &accounts); err != nil {
		return nil, fmt.Errorf("load account directory: %w", err)
	}
	return accounts, nil
}

func (s *SessionStore) begin(ctx context.Context, acc models.Account) error {
	if err := kv.SetJSON(ctx, s.store, keyCurrentSession, acc); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	s.mu.Lock()
	s.current = &acc
	s.mu.Unlock()
	return nil
}

// Register creates an account, persists the directory, and starts a session
// for it. The password must match confirmPassword and satisfy CheckPassword.
func (s *SessionStore) Register(ctx context.Context, name, email, password, confirmPassword string) (*models.Account, error) {
	switch {
	case strings.TrimSpace(name) == "":
		return nil, &ValidationError{Field: "name", Reason: "name is required"}
	case strings.TrimSpace(email) == "":
		return nil, &ValidationError{Field: "email", Reason: "email is required"}
	case password != confirmPassword:
		return nil, &ValidationError{Field: "confirmPassword", Reason: "passwords do not match"}
	case !CheckPassword(password).Strong():
		return nil, &ValidationError{Field: "password", Reason: "password does not meet requirements"}
	}

	accounts, err := s.directory(ctx)
	if err != nil {
		return nil, err
	}
	for _, a := range accounts {
		if a.Email == email {
			return nil, ErrDuplicateEmail
		}
	}

	now := s.clock.Now()
	acc := models.Account{
		ID:        nextID(now, accounts, func(a models.Account) int64 { return a.ID }),
		Name:      name,
		Email:     email,
		Password:  password,
		CreatedAt: now.UTC().Format(time.RFC3339),
	}

	next := append(append([]models.Account(nil), accounts...), acc)
	if err := kv.SetJSON(ctx, s.store, keyAccountDirectory, next); err != nil {
		return nil, fmt.Errorf("persist account directory: %w", err)
	}
	if err := s.begin(ctx, acc); err != nil {
		return nil, err
	}

	s.log.Info("account registered", zap.Int64("account_id", acc.ID))
	out := acc
	return &out, nil
}

// Authenticate starts a session for the account matching email and password.
func (s *SessionStore) Authenticate(ctx context.Context, email, password string) (*models.Account, error) {
	accounts, err := s.directory(ctx)
	if err != nil {
		return nil, err
	}

	var match *models.Account
	for i := range accounts {
		a := &accounts[i]
		if a.Email == email && subtle.ConstantTimeCompare([]byte(a.Password), []byte(password)) == 1 {
			match = a
			break
		}
	}
	if match == nil {
		s.log.Info("login rejected")
		return nil, ErrInvalidCredentials
	}

	if err := s.begin(ctx, *match); err != nil {
		return nil, err
	}
	s.log.Info("account logged in", zap.Int64("account_id", match.ID))
	out := *match
	return &out, nil
}

// RestoreSession adopts a previously persisted session without re-checking
// credentials. It returns nil when no session was persisted.
func (s *SessionStore) RestoreSession(ctx context.Context) (*models.Account, error) {
	var acc models.Account
	ok, err := kv.GetJSON(ctx, s.store, keyCurrentSession, &acc)
	if err != nil {
		return nil, fmt.Errorf("restore session: %w", err)
	}
	if !ok {
		return nil, nil
	}

	s.mu.Lock()
	s.current = &acc
	s.mu.Unlock()

	s.log.Info("session restored", zap.Int64("account_id", acc.ID))
	out := acc
	return &out, nil
}

// Logout ends the active session and removes its persisted record.
// The account directory is left untouched.
func (s *SessionStore) Logout(ctx context.Context) error {
	if err := s.store.Delete(ctx, keyCurrentSession); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	s.mu.Lock()
	prev := s.current
	s.current = nil
	s.mu.Unlock()

	if prev != nil {
		s.log.Info("account logged out", zap.Int64("account_id", prev.ID))
	}
	return nil
}

// nextID derives an id from now in unix milliseconds, bumped past any id
// already in use so records created within the same millisecond stay distinct.
func nextID[T any](now time.Time, existing []T, idOf func(T) int64) int64 {
	id := now.UnixMilli()
	for _, e := range existing {
		if v := idOf(e); v >= id {
			id = v + 1
		}
	}
	return id
}
