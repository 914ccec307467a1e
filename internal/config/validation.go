package config

import (
	"fmt"

	"github.com/google/uuid"
)

// validSSLModes are the sslmode values accepted by libpq/pgx.
var validSSLModes = map[string]struct{}{
	"disable":     {},
	"allow":       {},
	"prefer":      {},
	"require":     {},
	"verify-ca":   {},
	"verify-full": {},
}

// Validate checks configuration required to run the HTTP server.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderOpenAI, ProviderGoogleAI:
	default:
		return fmt.Errorf("%w: %q (must be %q or %q)", ErrInvalidProvider, c.Provider, ProviderOpenAI, ProviderGoogleAI)
	}

	if c.OwnerID == "" {
		return fmt.Errorf("%w: set KAYPHI_OWNER_ID", ErrMissingOwnerID)
	}
	if _, err := uuid.Parse(c.OwnerID); err != nil {
		return fmt.Errorf("%w: %q is not a UUID", ErrInvalidOwnerID, c.OwnerID)
	}

	if c.RetrievalTopK < 1 || c.RetrievalTopK > 20 {
		return fmt.Errorf("%w: %d (must be 1-20)", ErrInvalidTopK, c.RetrievalTopK)
	}

	if c.PostgresHost == "" {
		return ErrInvalidPostgresHost
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return ErrInvalidPostgresDBName
	}
	if _, ok := validSSLModes[c.PostgresSSLMode]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidPostgresSSLMode, c.PostgresSSLMode)
	}

	if c.DashboardToken == "" {
		return fmt.Errorf("%w: set KAYPHI_DASHBOARD_TOKEN", ErrMissingDashboardToken)
	}

	return nil
}
