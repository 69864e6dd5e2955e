package token

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/zoff-tech/go-clearing/pkg/config"
	"github.com/zoff-tech/go-clearing/pkg/resilience"
)

const defaultSafetyMargin = 30 * time.Second

// Token is an immutable OAuth2 access token. Refresh supersedes a token, it
// never mutates one.
type Token struct {
	Value     string
	Scheme    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// AuthorizationHeader renders the token as an Authorization header value.
func (t Token) AuthorizationHeader() string {
	scheme := t.Scheme
	if scheme == "" {
		scheme = "Bearer"
	}
	return scheme + " " + t.Value
}

// CacheStats reports per-key cache state for the management API.
type CacheStats struct {
	Key       string    `json:"key"`
	Cached    bool      `json:"cached"`
	IssuedAt  time.Time `json:"issued_at,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// CacheManager acquires and caches OAuth2 client-credentials tokens per
// adapter key. Concurrent callers for the same key share a single in-flight
// acquisition.
type CacheManager struct {
	mu           sync.RWMutex
	cache        map[string]Token
	group        singleflight.Group
	client       *http.Client
	endpoints    map[string]config.TokenSettings
	safetyMargin time.Duration
	clock        func() time.Time
}

// NewCacheManager creates a manager for the given per-adapter token
// endpoints. Pass a nil client to use http.DefaultClient.
func NewCacheManager(endpoints map[string]config.TokenSettings, client *http.Client) *CacheManager {
	if client == nil {
		client = http.DefaultClient
	}
	return &CacheManager{
		cache:        make(map[string]Token),
		client:       client,
		endpoints:    endpoints,
		safetyMargin: defaultSafetyMargin,
		clock:        time.Now,
	}
}

// GetToken returns a cached token while it is still comfortably inside its
// lifetime, otherwise acquires a fresh one. Only one acquisition per key is
// ever in flight.
func (m *CacheManager) GetToken(ctx context.Context, adapterKey string) (Token, error) {
	if tok, ok := m.cached(adapterKey); ok {
		return tok, nil
	}
	return m.acquire(ctx, adapterKey)
}

// RefreshToken drops any cached token for the key and re-acquires.
func (m *CacheManager) RefreshToken(ctx context.Context, adapterKey string) (Token, error) {
	m.Invalidate(adapterKey)
	return m.acquire(ctx, adapterKey)
}

// Invalidate removes the cached token for a key. Called on AUTH failures so
// the next call re-acquires instead of replaying a stale credential.
func (m *CacheManager) Invalidate(adapterKey string) {
	m.mu.Lock()
	delete(m.cache, adapterKey)
	m.mu.Unlock()
}

// Clear empties the whole cache.
func (m *CacheManager) Clear() {
	m.mu.Lock()
	m.cache = make(map[string]Token)
	m.mu.Unlock()
}

// Stats snapshots the cache for every configured adapter key.
func (m *CacheManager) Stats() []CacheStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stats := make([]CacheStats, 0, len(m.endpoints))
	for key := range m.endpoints {
		s := CacheStats{Key: key}
		if tok, ok := m.cache[key]; ok {
			s.Cached = true
			s.IssuedAt = tok.IssuedAt
			s.ExpiresAt = tok.ExpiresAt
		}
		stats = append(stats, s)
	}
	return stats
}

func (m *CacheManager) cached(adapterKey string) (Token, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tok, ok := m.cache[adapterKey]
	if !ok {
		return Token{}, false
	}
	if m.clock().After(tok.ExpiresAt.Add(-m.safetyMargin)) {
		return Token{}, false
	}
	return tok, true
}

func (m *CacheManager) acquire(ctx context.Context, adapterKey string) (Token, error) {
	result, err, _ := m.group.Do(adapterKey, func() (interface{}, error) {
		// A concurrent caller may have finished an acquisition while this
		// one was queued behind the flight.
		if tok, ok := m.cached(adapterKey); ok {
			return tok, nil
		}
		tok, err := m.fetch(ctx, adapterKey)
		if err != nil {
			return Token{}, err
		}
		m.mu.Lock()
		m.cache[adapterKey] = tok
		m.mu.Unlock()
		return tok, nil
	})
	if err != nil {
		return Token{}, resilience.NewError(resilience.KindAuth, "GetToken", "", err)
	}
	return result.(Token), nil
}

func (m *CacheManager) fetch(ctx context.Context, adapterKey string) (Token, error) {
	settings, ok := m.endpoints[adapterKey]
	if !ok {
		return Token{}, fmt.Errorf("no token endpoint configured for adapter %q", adapterKey)
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", settings.ClientID)
	form.Set("client_secret", settings.ClientSecret)
	if settings.Scope != "" {
		form.Set("scope", settings.Scope)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, settings.URL, strings.NewReader(form.Encode()))
	if err != nil {
		return Token{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.client.Do(req)
	if err != nil {
		return Token{}, fmt.Errorf("token endpoint request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Token{}, fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return Token{}, fmt.Errorf("invalid token response: %w", err)
	}
	if tr.AccessToken == "" {
		return Token{}, fmt.Errorf("token endpoint returned empty access_token")
	}

	now := m.clock()
	return Token{
		Value:     tr.AccessToken,
		Scheme:    normalizeScheme(tr.TokenType),
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Duration(tr.ExpiresIn) * time.Second),
	}, nil
}

func normalizeScheme(tokenType string) string {
	if strings.EqualFold(tokenType, "bearer") || tokenType == "" {
		return "Bearer"
	}
	return tokenType
}
