// ABOUTME: Tests for the identity service
// ABOUTME: Covers sign-up validation, sign-in, sign-out, session resume and token revocation

package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/taskboard/internal/store"
)

func newTestService(t *testing.T, allowSignup bool) (*Service, *store.MockStore) {
	t.Helper()
	users := store.NewMockStore()
	svc := NewService(users, newTestVerifier(t), Options{
		SessionDuration: time.Hour,
		TokenDuration:   30 * time.Minute,
		AllowSignup:     allowSignup,
	})
	return svc, users
}

func TestSignUp(t *testing.T) {
	svc, _ := newTestService(t, true)
	ctx := context.Background()

	user, err := svc.SignUp(ctx, "  Ada@Example.com ", "correct horse", "Ada Lovelace")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.Equal(t, "Ada Lovelace", user.DisplayName)
	assert.NotEqual(t, "correct horse", user.PasswordHash)

	_, err = svc.SignUp(ctx, "ada@example.com", "another password", "")
	assert.ErrorIs(t, err, store.ErrEmailExists)
}

func TestSignUp_Validation(t *testing.T) {
	svc, _ := newTestService(t, true)
	ctx := context.Background()

	_, err := svc.SignUp(ctx, "not-an-email", "correct horse", "")
	assert.ErrorIs(t, err, ErrInvalidEmail)

	_, err = svc.SignUp(ctx, "ada@example.com", "short", "")
	assert.ErrorIs(t, err, ErrWeakPassword)
}

func TestSignUp_Disabled(t *testing.T) {
	svc, _ := newTestService(t, false)

	_, err := svc.SignUp(context.Background(), "ada@example.com", "correct horse", "")
	assert.ErrorIs(t, err, ErrSignupDisabled)

	// the CLI path still works
	_, err = svc.CreateUser(context.Background(), "ada@example.com", "correct horse", "")
	assert.NoError(t, err)
}

func TestSignIn(t *testing.T) {
	svc, _ := newTestService(t, true)
	ctx := context.Background()

	_, err := svc.SignUp(ctx, "ada@example.com", "correct horse", "Ada")
	require.NoError(t, err)

	sess, err := svc.SignIn(ctx, "ADA@example.com", "correct horse")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, "ada@example.com", sess.User.Email)
	assert.NotEmpty(t, sess.Token)
	assert.True(t, sess.ExpiresAt.After(time.Now()))

	user, err := svc.CurrentUser(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.User.ID, user.ID)
}

func TestSignIn_InvalidCredentials(t *testing.T) {
	svc, _ := newTestService(t, true)
	ctx := context.Background()

	_, err := svc.SignUp(ctx, "ada@example.com", "correct horse", "")
	require.NoError(t, err)

	_, err = svc.SignIn(ctx, "ada@example.com", "wrong password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.SignIn(ctx, "nobody@example.com", "correct horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.SignIn(ctx, "", "correct horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestSignIn_PasskeyOnlyAccount(t *testing.T) {
	svc, users := newTestService(t, true)
	ctx := context.Background()

	require.NoError(t, users.CreateUser(ctx, &store.User{Email: "key@example.com"}))

	_, err := svc.SignIn(ctx, "key@example.com", "anything at all")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestSignOut(t *testing.T) {
	svc, _ := newTestService(t, true)
	ctx := context.Background()

	_, err := svc.SignUp(ctx, "ada@example.com", "correct horse", "")
	require.NoError(t, err)
	sess, err := svc.SignIn(ctx, "ada@example.com", "correct horse")
	require.NoError(t, err)

	require.NoError(t, svc.SignOut(ctx, sess.ID))

	_, err = svc.CurrentUser(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrNoSession)

	// signing out twice, or with no session, is harmless
	assert.NoError(t, svc.SignOut(ctx, sess.ID))
	assert.NoError(t, svc.SignOut(ctx, ""))
}

func TestAuthenticate(t *testing.T) {
	svc, _ := newTestService(t, true)
	ctx := context.Background()

	_, err := svc.SignUp(ctx, "ada@example.com", "correct horse", "")
	require.NoError(t, err)
	sess, err := svc.SignIn(ctx, "ada@example.com", "correct horse")
	require.NoError(t, err)

	got, err := svc.Authenticate(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, got.ID)
	assert.Equal(t, sess.User.ID, got.User.ID)

	require.NoError(t, svc.SignOut(ctx, sess.ID))
	_, err = svc.Authenticate(ctx, sess.Token)
	assert.ErrorIs(t, err, ErrNoSession, "tokens die with their session")
}

func TestAuthenticate_NoSigner(t *testing.T) {
	svc := NewService(store.NewMockStore(), nil, Options{AllowSignup: true})
	_, err := svc.Authenticate(context.Background(), "anything")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestResume_Expired(t *testing.T) {
	svc, _ := newTestService(t, true)
	ctx := context.Background()

	user, err := svc.SignUp(ctx, "ada@example.com", "correct horse", "")
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	sess, err := svc.StartSession(ctx, user)
	require.NoError(t, err)

	_, err = svc.Resume(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrNoSession)

	require.NoError(t, svc.PurgeExpired(ctx))
}

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "a@b.co", want: "a@b.co"},
		{in: "  MiXeD@Example.COM ", want: "mixed@example.com"},
		{in: "", wantErr: true},
		{in: "no-at-sign", wantErr: true},
		{in: "Ada <ada@example.com>", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeEmail(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidEmail)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
