package adapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/zoff-tech/go-clearing/pkg/config"
	"github.com/zoff-tech/go-clearing/pkg/store"
	"github.com/zoff-tech/go-clearing/pkg/token"
	"github.com/zoff-tech/go-clearing/pkg/uetr"
)

// newTokenServer stubs the OAuth2 client-credentials endpoint and counts
// acquisitions.
func newTokenServer(hits *int) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*hits++
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"test-token","token_type":"Bearer","expires_in":3600}`))
	}))
}

func testAdapterSettings(baseURL, tokenURL string) config.AdapterSettings {
	return config.AdapterSettings{
		BaseURL:  baseURL,
		TenantID: "tenant-a",
		Token: config.TokenSettings{
			URL:          tokenURL,
			ClientID:     "client",
			ClientSecret: "secret",
		},
		Resilience: config.ResilienceSettings{
			MaxAttempts: 1, // single attempt keeps failure tests fast
			CallTimeout: 2 * time.Second,
		},
	}
}

func newTokens(key, tokenURL string) *token.CacheManager {
	return token.NewCacheManager(map[string]config.TokenSettings{
		key: {URL: tokenURL, ClientID: "client", ClientSecret: "secret"},
	}, nil)
}

// memoryRepository is an in-memory append-only tracking log.
type memoryRepository struct {
	mu      sync.Mutex
	records []store.TrackingRecord
}

func (m *memoryRepository) Append(ctx context.Context, record *store.TrackingRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := *record
	r.CreatedAt = time.Now().UTC()
	m.records = append(m.records, r)
	return nil
}

func (m *memoryRepository) FetchByUetr(ctx context.Context, id string) ([]store.TrackingRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.TrackingRecord
	for _, r := range m.records {
		if r.Uetr == id {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memoryRepository) UpdateStatus(ctx context.Context, id string, status store.TrackingStatus, reason, actor string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.records) - 1; i >= 0; i-- {
		if m.records[i].Uetr == id {
			transition := m.records[i]
			transition.Status = status
			transition.Reason = reason
			transition.Actor = actor
			transition.CreatedAt = time.Now().UTC()
			m.records = append(m.records, transition)
			return nil
		}
	}
	return nil
}

func (m *memoryRepository) FetchUnpublished(ctx context.Context, batchSize int) ([]store.TrackingRecord, error) {
	return nil, nil
}

func (m *memoryRepository) MarkPublished(ctx context.Context, recordID string) error {
	return nil
}

func (m *memoryRepository) statuses(id string) []store.TrackingStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.TrackingStatus
	for _, r := range m.records {
		if r.Uetr == id {
			out = append(out, r.Status)
		}
	}
	return out
}

func newUetrService() (*uetr.Service, *memoryRepository) {
	repo := &memoryRepository{}
	return uetr.NewService(repo), repo
}
