// Package session holds the bearer token and identity of the signed-in user.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"leavedesk/internal/repo"
)

// ErrNotLoggedIn is returned when an operation needs a session and there is none.
var ErrNotLoggedIn = errors.New("Please log in")

// Session supplies credentials for backend calls.
type Session interface {
	Token() string
	UserEmail() string
	Clear(ctx context.Context) error
}

// Require fails with ErrNotLoggedIn unless s carries both a token and an email.
func Require(s Session) error {
	if s == nil || strings.TrimSpace(s.Token()) == "" || strings.TrimSpace(s.UserEmail()) == "" {
		return ErrNotLoggedIn
	}
	return nil
}

// Static is a per-request session, used by the view API.
type Static struct {
	AccessToken string
	Email       string
}

func (s *Static) Token() string     { return s.AccessToken }
func (s *Static) UserEmail() string { return s.Email }

func (s *Static) Clear(context.Context) error {
	s.AccessToken, s.Email = "", ""
	return nil
}

// Stored is the CLI session kept in the local sqlite store.
type Stored struct {
	Repo repo.Repo

	mu  sync.RWMutex
	cur repo.Session
}

// Load reads the stored session. A missing row leaves s empty.
func (s *Stored) Load(ctx context.Context) error {
	cur, err := s.Repo.GetSession(ctx)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return fmt.Errorf("load session: %w", err)
	}
	s.mu.Lock()
	s.cur = cur
	s.mu.Unlock()
	return nil
}

// Save persists a new login, taking email and expiry from the token when
// the caller leaves them empty.
func (s *Stored) Save(ctx context.Context, token, email string, roles []string) error {
	rec := repo.Session{Token: token, Email: email, Roles: roles, CreatedAt: time.Now()}
	if c, err := ParseClaims(token); err == nil {
		if rec.Email == "" {
			rec.Email = c.Email
		}
		if len(rec.Roles) == 0 {
			rec.Roles = c.Roles
		}
		rec.ExpiresAt = c.ExpiresAt
	}
	if err := s.Repo.SaveSession(ctx, rec); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	s.mu.Lock()
	s.cur = rec
	s.mu.Unlock()
	return nil
}

func (s *Stored) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur.Token
}

func (s *Stored) UserEmail() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur.Email
}

// Roles returns the roles recorded at login.
func (s *Stored) Roles() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.cur.Roles...)
}

// ExpiresAt is nil when the token carried no exp claim.
func (s *Stored) ExpiresAt() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur.ExpiresAt
}

// Expired reports whether the stored token's exp claim has passed.
func (s *Stored) Expired(now time.Time) bool {
	exp := s.ExpiresAt()
	return exp != nil && !now.Before(*exp)
}

// Clear forgets the session locally and in the store.
func (s *Stored) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.cur = repo.Session{}
	s.mu.Unlock()
	return s.Repo.DeleteSession(ctx)
}

// Claims are the token fields the client reads. The signature is never
// checked here; the backend remains the authority.
type Claims struct {
	Subject   string
	Email     string
	Roles     []string
	ExpiresAt *time.Time
}

type tokenClaims struct {
	jwt.RegisteredClaims
	Email string   `json:"email,omitempty"`
	Roles []string `json:"roles,omitempty"`
}

// ParseClaims decodes a JWT without verifying it.
func ParseClaims(token string) (Claims, error) {
	parser := jwt.NewParser()
	tc := &tokenClaims{}
	if _, _, err := parser.ParseUnverified(token, tc); err != nil {
		return Claims{}, fmt.Errorf("parse token: %w", err)
	}
	c := Claims{Subject: tc.Subject, Email: tc.Email, Roles: tc.Roles}
	if c.Email == "" && strings.Contains(tc.Subject, "@") {
		c.Email = tc.Subject
	}
	if tc.ExpiresAt != nil {
		t := tc.ExpiresAt.Time
		c.ExpiresAt = &t
	}
	return c, nil
}

// Expired reports whether the token is past its exp claim at now.
func (c Claims) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && !now.Before(*c.ExpiresAt)
}
