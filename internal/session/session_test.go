package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leavedesk/internal/db"
	"leavedesk/internal/migrate"
	"leavedesk/internal/repo"
)

func signed(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("irrelevant"))
	require.NoError(t, err)
	return tok
}

func TestRequire(t *testing.T) {
	assert.ErrorIs(t, Require(nil), ErrNotLoggedIn)
	assert.ErrorIs(t, Require(&Static{AccessToken: "t"}), ErrNotLoggedIn)
	assert.ErrorIs(t, Require(&Static{Email: "a@corp.lk"}), ErrNotLoggedIn)
	assert.NoError(t, Require(&Static{AccessToken: "t", Email: "a@corp.lk"}))
	assert.Equal(t, "Please log in", ErrNotLoggedIn.Error())
}

func TestParseClaims(t *testing.T) {
	exp := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	tok := signed(t, jwt.MapClaims{"sub": "nimali@corp.lk", "roles": []string{"EMPLOYEE", "ADMIN"}, "exp": exp.Unix()})

	c, err := ParseClaims(tok)
	require.NoError(t, err)
	assert.Equal(t, "nimali@corp.lk", c.Email)
	assert.Equal(t, []string{"EMPLOYEE", "ADMIN"}, c.Roles)
	require.NotNil(t, c.ExpiresAt)
	assert.False(t, c.Expired(exp.Add(-time.Second)))
	assert.True(t, c.Expired(exp))

	_, err = ParseClaims("not-a-jwt")
	assert.Error(t, err)
}

func TestStoredLifecycle(t *testing.T) {
	ctx := context.Background()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))
	r := repo.Repo{DB: conn}

	s := &Stored{Repo: r}
	require.NoError(t, s.Load(ctx))
	assert.ErrorIs(t, Require(s), ErrNotLoggedIn)

	tok := signed(t, jwt.MapClaims{"sub": "kamal@corp.lk", "email": "kamal@corp.lk", "exp": time.Now().Add(time.Hour).Unix()})
	require.NoError(t, s.Save(ctx, tok, "", []string{"EMPLOYEE"}))
	assert.Equal(t, "kamal@corp.lk", s.UserEmail())
	assert.NotNil(t, s.ExpiresAt())
	assert.False(t, s.Expired(time.Now()))
	assert.True(t, s.Expired(time.Now().Add(2*time.Hour)))

	reloaded := &Stored{Repo: r}
	require.NoError(t, reloaded.Load(ctx))
	assert.Equal(t, tok, reloaded.Token())
	assert.Equal(t, []string{"EMPLOYEE"}, reloaded.Roles())
	assert.NoError(t, Require(reloaded))

	require.NoError(t, reloaded.Clear(ctx))
	assert.Empty(t, reloaded.Token())
	_, err = r.GetSession(ctx)
	assert.True(t, errors.Is(err, repo.ErrNotFound))
}
