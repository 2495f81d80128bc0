package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/atinyakov/BranchLift/internal/clock"
	"github.com/atinyakov/BranchLift/internal/kv"
	"github.com/atinyakov/BranchLift/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

func newSessionStore(t *testing.T) (*SessionStore, kv.Store, *clock.Fake) {
	t.Helper()
	store := kv.NewMemory()
	clk := clock.NewFake(epoch)
	return NewSessionStore(store, clk, nil), store, clk
}

func directoryOf(t *testing.T, store kv.Store) []models.Account {
	t.Helper()
	var accounts []models.Account
	_, err := kv.GetJSON(context.Background(), store, keyAccountDirectory, &accounts)
	require.NoError(t, err)
	return accounts
}

// failingStore fails every write after it is armed.
type failingStore struct {
	*kv.Memory
	failSet    bool
	failDelete bool
}

func (f *failingStore) Set(ctx context.Context, key string, value []byte) error {
	if f.failSet {
		return errors.New("disk full")
	}
	return f.Memory.Set(ctx, key, value)
}

func (f *failingStore) Delete(ctx context.Context, keys ...string) error {
	if f.failDelete {
		return errors.New("disk full")
	}
	return f.Memory.Delete(ctx, keys...)
}

func TestRegister_Success(t *testing.T) {
	ctx := context.Background()
	s, store, _ := newSessionStore(t)

	acc, err := s.Register(ctx, "Ana", "ana@x.com", "Abcdef1", "Abcdef1")
	require.NoError(t, err)
	assert.Equal(t, epoch.UnixMilli(), acc.ID)
	assert.Equal(t, "Ana", acc.Name)
	assert.Equal(t, "ana@x.com", acc.Email)
	assert.Equal(t, "2025-03-14T09:26:53Z", acc.CreatedAt)

	require.NotNil(t, s.Current())
	assert.Equal(t, acc.ID, s.Current().ID)
	assert.Len(t, directoryOf(t, store), 1)

	var persisted models.Account
	ok, err := kv.GetJSON(ctx, store, keyCurrentSession, &persisted)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, *acc, persisted)
}

func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name, user, email, password, confirm string
		field                                string
	}{
		{"no uppercase", "Ana", "ana@x.com", "abcdef1", "abcdef1", "password"},
		{"no digit", "Ana", "ana@x.com", "Abcdefg", "Abcdefg", "password"},
		{"too short", "Ana", "ana@x.com", "Ab1", "Ab1", "password"},
		{"mismatch", "Ana", "ana@x.com", "Abcdef1", "Abcdef2", "confirmPassword"},
		{"blank name", "  ", "ana@x.com", "Abcdef1", "Abcdef1", "name"},
		{"blank email", "Ana", "", "Abcdef1", "Abcdef1", "email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, store, _ := newSessionStore(t)

			_, err := s.Register(context.Background(), tt.user, tt.email, tt.password, tt.confirm)
			require.ErrorIs(t, err, ErrValidation)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)

			assert.Empty(t, directoryOf(t, store))
			assert.Nil(t, s.Current())
		})
	}
}

func TestRegister_MismatchCheckedBeforeStrength(t *testing.T) {
	s, _, _ := newSessionStore(t)
	_, err := s.Register(context.Background(), "Ana", "ana@x.com", "weak", "other")
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "confirmPassword", ve.Field)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	ctx := context.Background()
	s, store, clk := newSessionStore(t)

	_, err := s.Register(ctx, "Ana", "ana@x.com", "Abcdef1", "Abcdef1")
	require.NoError(t, err)
	clk.Advance(time.Second)

	_, err = s.Register(ctx, "Other Ana", "ana@x.com", "Zyxwvu9", "Zyxwvu9")
	require.ErrorIs(t, err, ErrDuplicateEmail)

	dir := directoryOf(t, store)
	require.Len(t, dir, 1)
	assert.Equal(t, "Ana", dir[0].Name)
}

func TestRegister_SameMillisecondGetsDistinctIDs(t *testing.T) {
	ctx := context.Background()
	s, store, _ := newSessionStore(t)

	a, err := s.Register(ctx, "Ana", "ana@x.com", "Abcdef1", "Abcdef1")
	require.NoError(t, err)
	b, err := s.Register(ctx, "Bia", "bia@x.com", "Abcdef1", "Abcdef1")
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.Len(t, directoryOf(t, store), 2)
	assert.Equal(t, b.ID, s.Current().ID, "latest registration owns the session")
}

func TestRegister_PersistFailureLeavesStateUnchanged(t *testing.T) {
	store := &failingStore{Memory: kv.NewMemory(), failSet: true}
	s := NewSessionStore(store, clock.NewFake(epoch), nil)

	_, err := s.Register(context.Background(), "Ana", "ana@x.com", "Abcdef1", "Abcdef1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrValidation)
	assert.Nil(t, s.Current())
	assert.Empty(t, directoryOf(t, store))
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newSessionStore(t)
	reg, err := s.Register(ctx, "Ana", "ana@x.com", "Abcdef1", "Abcdef1")
	require.NoError(t, err)
	require.NoError(t, s.Logout(ctx))

	t.Run("wrong password", func(t *testing.T) {
		_, err := s.Authenticate(ctx, "ana@x.com", "wrong")
		require.ErrorIs(t, err, ErrInvalidCredentials)
		assert.Nil(t, s.Current())
	})

	t.Run("unknown email gives same error", func(t *testing.T) {
		_, err := s.Authenticate(ctx, "nobody@x.com", "Abcdef1")
		require.ErrorIs(t, err, ErrInvalidCredentials)
		assert.Nil(t, s.Current())
	})

	t.Run("email match is exact", func(t *testing.T) {
		_, err := s.Authenticate(ctx, "ANA@x.com", "Abcdef1")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("success", func(t *testing.T) {
		acc, err := s.Authenticate(ctx, "ana@x.com", "Abcdef1")
		require.NoError(t, err)
		assert.Equal(t, *reg, *acc)
		require.NotNil(t, s.Current())
		assert.Equal(t, reg.ID, s.Current().ID)
	})
}

func TestRestoreSession(t *testing.T) {
	ctx := context.Background()
	s, store, clk := newSessionStore(t)

	acc, err := s.RestoreSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, acc)
	assert.Nil(t, s.Current())

	reg, err := s.Register(ctx, "Ana", "ana@x.com", "Abcdef1", "Abcdef1")
	require.NoError(t, err)

	// A fresh store instance over the same storage picks the session up.
	restarted := NewSessionStore(store, clk, nil)
	acc, err = restarted.RestoreSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, acc)
	assert.Equal(t, *reg, *acc)
	assert.Equal(t, reg.ID, restarted.Current().ID)
}

func TestLogout(t *testing.T) {
	ctx := context.Background()
	s, store, _ := newSessionStore(t)
	_, err := s.Register(ctx, "Ana", "ana@x.com", "Abcdef1", "Abcdef1")
	require.NoError(t, err)

	require.NoError(t, s.Logout(ctx))
	assert.Nil(t, s.Current())

	_, ok, err := store.Get(ctx, keyCurrentSession)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Len(t, directoryOf(t, store), 1, "logout keeps the directory")

	require.NoError(t, s.Logout(ctx), "logout without a session is harmless")
}

func TestLogout_StoreFailureKeepsSession(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{Memory: kv.NewMemory()}
	s := NewSessionStore(store, clock.NewFake(epoch), nil)
	_, err := s.Register(ctx, "Ana", "ana@x.com", "Abcdef1", "Abcdef1")
	require.NoError(t, err)

	store.failDelete = true
	require.Error(t, s.Logout(ctx))
	assert.NotNil(t, s.Current())
}

func TestCurrent_ReturnsCopy(t *testing.T) {
	s, _, _ := newSessionStore(t)
	_, err := s.Register(context.Background(), "Ana", "ana@x.com", "Abcdef1", "Abcdef1")
	require.NoError(t, err)

	s.Current().Name = "mutated"
	assert.Equal(t, "Ana", s.Current().Name)
}
