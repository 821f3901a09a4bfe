package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityService_RegisterAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	svc := NewIdentityService(&memUsers{}, 4)

	user, err := svc.Register(ctx, "Alice", "secret")
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "Alice", user.Username)
	assert.Equal(t, "alice", user.UsernameKey)
	assert.NotEqual(t, "secret", user.PasswordFingerprint)

	got, err := svc.Authenticate(ctx, "ALICE", "secret")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = svc.Authenticate(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Authenticate(ctx, "bob", "secret")
	assert.ErrorIs(t, err, ErrUserNotFound)

	found, err := svc.Lookup(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", found.Username)
	_, err = svc.Lookup(ctx, "missing")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestIdentityService_RegisterValidation(t *testing.T) {
	ctx := context.Background()
	svc := NewIdentityService(&memUsers{}, 4)
	_, err := svc.Register(ctx, "alice", "secret")
	require.NoError(t, err)

	cases := []struct {
		name, username, password string
		want                     error
	}{
		{"duplicate ignoring case", "Alice", "another", ErrDuplicateUsername},
		{"empty username", "", "secret", ErrInvalidCredentials},
		{"empty password", "bob", "", ErrInvalidCredentials},
		{"short password", "bob", "abc", ErrInvalidCredentials},
		{"space in username", "bob smith", "secret", ErrInvalidCredentials},
		{"space in password", "bob", "sec ret", ErrInvalidCredentials},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tc.username, tc.password)
			assert.ErrorIs(t, err, tc.want)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestFingerprint(t *testing.T) {
	assert.Equal(t, Fingerprint("secret"), Fingerprint("secret"))
	assert.NotEqual(t, Fingerprint("secret"), Fingerprint("Secret"))
	assert.Len(t, Fingerprint(""), 16)
}
