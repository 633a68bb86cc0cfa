package server

import (
	"context"
	"encoding/json"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"leavedesk/internal/engine"
	"leavedesk/internal/session"
)

// Principal is the caller as read from the bearer token. The token is not
// verified here; the leave backend rejects forged or expired ones.
type Principal struct {
	Token string
	Email string
	Roles []string
}

type principalKey struct{}

func withPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func principalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

func bearerToken(authz string) (string, bool) {
	parts := strings.Fields(authz)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

// authenticate reads identity from the token claims, falling back to the
// X-User-Email header for tokens that carry no email.
func authenticate(req *http.Request, now time.Time) (Principal, huma.StatusError) {
	token, ok := bearerToken(strings.TrimSpace(req.Header.Get("Authorization")))
	if !ok {
		return Principal{}, newAPIError(http.StatusUnauthorized, "unauthorized", session.ErrNotLoggedIn.Error(), nil)
	}
	p := Principal{Token: token}
	if claims, err := session.ParseClaims(token); err == nil {
		if claims.Expired(now) {
			return Principal{}, newAPIError(http.StatusUnauthorized, "session_expired", "Session expired, please log in again", nil)
		}
		p.Email, p.Roles = claims.Email, claims.Roles
	}
	if p.Email == "" {
		p.Email = strings.TrimSpace(req.Header.Get("X-User-Email"))
	}
	if p.Email == "" {
		return Principal{}, newAPIError(http.StatusUnauthorized, "unauthorized", "token does not identify a user", nil)
	}
	return p, nil
}

func newAuthMiddleware(basePath string, now func() time.Time) func(http.Handler) http.Handler {
	open := map[string]bool{
		path.Join(basePath, "health"):       true,
		path.Join(basePath, "auth/login"):   true,
		path.Join(basePath, "openapi.json"): true,
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if basePath != "" && !strings.HasPrefix(req.URL.Path, basePath) {
				next.ServeHTTP(w, req)
				return
			}
			if open[req.URL.Path] || strings.HasPrefix(req.URL.Path, path.Join(basePath, "openapi")) {
				next.ServeHTTP(w, req)
				return
			}
			p, apiErr := authenticate(req, now())
			if apiErr != nil {
				respondStatusError(w, apiErr)
				return
			}
			next.ServeHTTP(w, req.WithContext(withPrincipal(req.Context(), p)))
		})
	}
}

func respondStatusError(w http.ResponseWriter, err huma.StatusError) {
	status := http.StatusInternalServerError
	if e, ok := err.(interface{ GetStatus() int }); ok {
		status = e.GetStatus()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(err)
}

// EngineFactory builds an engine for one caller's session.
type EngineFactory func(sess session.Session) *engine.Engine

// enginePool keeps one engine per token so the busy flag and list caches
// follow the caller across requests.
type enginePool struct {
	cache   *lru.Cache[string, *engine.Engine]
	factory EngineFactory
}

func newEnginePool(size int, factory EngineFactory) (*enginePool, error) {
	if size <= 0 {
		size = 256
	}
	cache, err := lru.NewWithEvict[string, *engine.Engine](size, func(_ string, e *engine.Engine) {
		e.Close()
	})
	if err != nil {
		return nil, err
	}
	return &enginePool{cache: cache, factory: factory}, nil
}

func (p *enginePool) get(pr Principal) *engine.Engine {
	if e, ok := p.cache.Get(pr.Token); ok {
		return e
	}
	e := p.factory(&session.Static{AccessToken: pr.Token, Email: pr.Email})
	if prev, ok, _ := p.cache.PeekOrAdd(pr.Token, e); ok {
		e.Close()
		return prev
	}
	return e
}

// anonymous returns an engine without a session, for login.
func (p *enginePool) anonymous() *engine.Engine {
	return p.factory(nil)
}

func (p *enginePool) engineFor(ctx context.Context) (*engine.Engine, Principal, huma.StatusError) {
	pr, ok := principalFromContext(ctx)
	if !ok || pr.Token == "" {
		return nil, Principal{}, newAPIError(http.StatusUnauthorized, "unauthorized", session.ErrNotLoggedIn.Error(), nil)
	}
	return p.get(pr), pr, nil
}
