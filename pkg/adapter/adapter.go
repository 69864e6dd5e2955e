package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/zoff-tech/go-clearing/pkg/config"
	"github.com/zoff-tech/go-clearing/pkg/orchestration"
	"github.com/zoff-tech/go-clearing/pkg/resilience"
	"github.com/zoff-tech/go-clearing/pkg/token"
)

// binding is the shared plumbing under every facade: one adapter key, one
// base URL, one token source, one resilience-wrapped engine. Facades add the
// system-specific request and response shapes on top.
type binding struct {
	key      string
	baseURL  string
	tenantID string
	client   *http.Client
	tokens   *token.CacheManager
	engine   *orchestration.Engine
}

func newBinding(key string, cfg config.AdapterSettings, tokens *token.CacheManager, client *http.Client) *binding {
	if client == nil {
		client = http.DefaultClient
	}
	return &binding{
		key:      key,
		baseURL:  cfg.BaseURL,
		tenantID: cfg.TenantID,
		client:   client,
		tokens:   tokens,
		engine:   newEngine(cfg.Resilience),
	}
}

// newEngine builds the per-adapter resilience stack. Each facade owns its
// breaker registry so adapters never share failure windows.
func newEngine(cfg config.ResilienceSettings) *orchestration.Engine {
	registry := resilience.NewBreakerRegistry(resilience.BreakerSettings{
		WindowSize:            cfg.WindowSize,
		FailureRateThreshold:  cfg.FailureRateThreshold,
		WaitDuration:          cfg.WaitDuration,
		PermittedProbeCalls:   cfg.PermittedProbeCalls,
		ProbeSuccessThreshold: cfg.ProbeSuccessThreshold,
	})
	executor := resilience.NewExecutor(registry, resilience.ExecutorSettings{
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   cfg.BaseDelay,
		MaxDelay:    cfg.MaxDelay,
		CallTimeout: cfg.CallTimeout,
	})
	return orchestration.NewEngine(executor, cfg.BatchConcurrency)
}

// Breakers exposes the facade's breaker registry for the management API.
func (b *binding) Breakers() *resilience.BreakerRegistry {
	return b.engine.Executor().Breakers()
}

// postJSON performs one authenticated POST. It is the raw call the executor
// wraps, so it carries no retry logic of its own; it only translates HTTP
// status codes into the error taxonomy.
func (b *binding) postJSON(ctx context.Context, operation, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return resilience.NewError(resilience.KindValidation, operation, "", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return b.do(req, operation, out)
}

// getJSON performs one authenticated GET.
func (b *binding) getJSON(ctx context.Context, operation, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+path, nil)
	if err != nil {
		return err
	}
	return b.do(req, operation, out)
}

func (b *binding) do(req *http.Request, operation string, out any) error {
	tok, err := b.tokens.GetToken(req.Context(), b.key)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", tok.AuthorizationHeader())
	if b.tenantID != "" {
		req.Header.Set("X-Tenant-ID", b.tenantID)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := b.checkStatus(resp, operation); err != nil {
		return err
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding %s response: %w", operation, err)
		}
	}
	return nil
}

// checkStatus maps HTTP status codes into the error taxonomy. A rejected
// credential also drops the cached token so the next attempt re-acquires.
func (b *binding) checkStatus(resp *http.Response, operation string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	cause := fmt.Errorf("%s returned %d: %s", b.key, resp.StatusCode, string(body))

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		b.tokens.Invalidate(b.key)
		return resilience.NewError(resilience.KindAuth, operation, "", cause)
	case resp.StatusCode == http.StatusBadRequest:
		return resilience.NewError(resilience.KindValidation, operation, "", cause)
	case resp.StatusCode == http.StatusConflict || resp.StatusCode == http.StatusUnprocessableEntity:
		return resilience.NewError(resilience.KindUpstreamBusiness, operation, "", cause)
	case resp.StatusCode == http.StatusBadGateway ||
		resp.StatusCode == http.StatusServiceUnavailable ||
		resp.StatusCode == http.StatusGatewayTimeout:
		// Transient upstream unavailability retries like a transport failure.
		return resilience.NewError(resilience.KindNetwork, operation, "", cause)
	default:
		return resilience.NewError(resilience.KindUnknown, operation, "", cause)
	}
}
