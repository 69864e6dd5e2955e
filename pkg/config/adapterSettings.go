package config

import "time"

// AdapterSettings binds one external system (account service, BankservAfrica,
// SAMOS) to its endpoints and resilience policy.
type AdapterSettings struct {
	BaseURL    string             `mapstructure:"base_url" validate:"required,url"`
	TenantID   string             `mapstructure:"tenant_id"`
	Token      TokenSettings      `mapstructure:"token"`
	Resilience ResilienceSettings `mapstructure:"resilience"`
}

// TokenSettings configures the OAuth2 client-credentials endpoint for an
// adapter.
type TokenSettings struct {
	URL          string `mapstructure:"url" validate:"required,url"`
	ClientID     string `mapstructure:"client_id" validate:"required"`
	ClientSecret string `mapstructure:"client_secret" validate:"required"`
	Scope        string `mapstructure:"scope"`
}

// ResilienceSettings carries the breaker/retry/timeout knobs for one adapter.
// Zero values fall back to the framework defaults.
type ResilienceSettings struct {
	WindowSize            int           `mapstructure:"window_size"`
	FailureRateThreshold  float64       `mapstructure:"failure_rate_threshold"`
	WaitDuration          time.Duration `mapstructure:"wait_duration"`
	PermittedProbeCalls   int           `mapstructure:"permitted_probe_calls"`
	ProbeSuccessThreshold int           `mapstructure:"probe_success_threshold"`
	MaxAttempts           int           `mapstructure:"max_attempts"`
	BaseDelay             time.Duration `mapstructure:"base_delay"`
	MaxDelay              time.Duration `mapstructure:"max_delay"`
	CallTimeout           time.Duration `mapstructure:"call_timeout"`
	BatchConcurrency      int           `mapstructure:"batch_concurrency"`
}
