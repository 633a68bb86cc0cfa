// Package directory resolves employees by display name and email, mainly so
// approval chains can address officers with the right honorific.
package directory

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"leavedesk/internal/domain"
)

const (
	cacheKey   = "directory:users"
	DefaultTTL = 5 * time.Minute
)

// Source fetches the employee list from the backend.
type Source interface {
	Users(ctx context.Context) ([]domain.User, error)
}

type Directory struct {
	Source Source
	Cache  Cache
	TTL    time.Duration
	Log    zerolog.Logger

	sf      singleflight.Group
	mu      sync.RWMutex
	loaded  bool
	byName  map[string]domain.User
	byEmail map[string]domain.User
}

func New(src Source, cache Cache, ttl time.Duration, log zerolog.Logger) *Directory {
	if cache == nil {
		cache = NoCache{}
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Directory{Source: src, Cache: cache, TTL: ttl, Log: log}
}

// Load fills the directory once. Concurrent callers share one fetch.
func (d *Directory) Load(ctx context.Context) error {
	d.mu.RLock()
	done := d.loaded
	d.mu.RUnlock()
	if done {
		return nil
	}
	_, err, _ := d.sf.Do(cacheKey, func() (any, error) {
		users, err := d.fetch(ctx)
		if err != nil {
			return nil, err
		}
		d.set(users)
		return nil, nil
	})
	return err
}

// Reload drops cached state and fetches again.
func (d *Directory) Reload(ctx context.Context) error {
	if err := d.cache().Delete(ctx, cacheKey); err != nil {
		d.Log.Warn().Err(err).Msg("directory cache delete failed")
	}
	d.mu.Lock()
	d.loaded = false
	d.mu.Unlock()
	return d.Load(ctx)
}

func (d *Directory) fetch(ctx context.Context) ([]domain.User, error) {
	cache := d.cache()
	if b, ok, err := cache.Get(ctx, cacheKey); err != nil {
		d.Log.Warn().Err(err).Msg("directory cache read failed")
	} else if ok {
		var users []domain.User
		if err := json.Unmarshal(b, &users); err == nil {
			d.Log.Debug().Int("users", len(users)).Msg("directory served from cache")
			return users, nil
		}
	}
	users, err := d.Source.Users(ctx)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(users); err == nil {
		if err := cache.Set(ctx, cacheKey, b, d.TTL); err != nil {
			d.Log.Warn().Err(err).Msg("directory cache write failed")
		}
	}
	return users, nil
}

func (d *Directory) cache() Cache {
	if d.Cache == nil {
		return NoCache{}
	}
	return d.Cache
}

func (d *Directory) set(users []domain.User) {
	byName := make(map[string]domain.User, len(users))
	byEmail := make(map[string]domain.User, len(users))
	for _, u := range users {
		if n := strings.TrimSpace(u.Name); n != "" {
			byName[n] = u
		}
		if e := normEmail(u.Email); e != "" {
			byEmail[e] = u
		}
	}
	d.mu.Lock()
	d.byName, d.byEmail, d.loaded = byName, byEmail, true
	d.mu.Unlock()
}

// Profile implements chain.Directory.
func (d *Directory) Profile(name string) (domain.Profile, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.byName[strings.TrimSpace(name)]
	if !ok {
		return domain.Profile{}, false
	}
	return domain.Profile{Gender: u.Gender, MaritalStatus: u.MaritalStatus}, true
}

func (d *Directory) User(email string) (domain.User, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.byEmail[normEmail(email)]
	return u, ok
}

func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.byEmail)
}

func normEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
