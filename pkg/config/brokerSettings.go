package config

// BrokerSettings holds configuration for connecting to a message broker.
type BrokerSettings struct {
	Type      string `mapstructure:"type"`
	URL       string `mapstructure:"url"`
	Exchange  string `mapstructure:"exchange"`
	PoolSize  int    `mapstructure:"pool_size"`
	ProjectID string `mapstructure:"projectID"` // Optional for brokers like GCP Pub/Sub
}

// DbSettings holds configuration for the UETR tracking store.
type DbSettings struct {
	Type string `mapstructure:"type"`
	DSN  string `mapstructure:"dsn"` // postgres
	URI  string `mapstructure:"uri"` // mongo connection string or spanner database path
}
