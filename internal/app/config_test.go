package app

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join("testdata")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Server.LogLevel)
	require.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)

	require.Equal(t, "postgres", cfg.Database.Driver)
	require.True(t, cfg.Database.Postgres.Enabled)
	require.Equal(t, "db.example.com", cfg.Database.Postgres.Host)
	require.Equal(t, 5433, cfg.Database.Postgres.Port)

	require.Equal(t, "https://catalog.example.com/api", cfg.Catalog.BaseURL)
	require.Equal(t, 45*time.Second, cfg.Catalog.Timeout)
	require.Equal(t, uint(5), cfg.Catalog.MaxTries)

	require.Equal(t, "https://directory.example.com/api", cfg.Directory.BaseURL)
	require.Equal(t, 20*time.Second, cfg.Directory.Timeout)

	require.Equal(t, "org-federation", cfg.Federation.OrganizationID)

	require.Equal(t, "https://idp.example.com/token", cfg.OutboundAuth.TokenURL)
	require.Equal(t, "offering-service", cfg.OutboundAuth.ClientID)
	require.Equal(t, []string{"catalog:write", "directory:read"}, cfg.OutboundAuth.Scopes)

	require.True(t, cfg.Monitoring.Prometheus.Enabled)
	require.Equal(t, "/internal/metrics", cfg.Monitoring.Prometheus.Endpoint)

	require.False(t, cfg.Maintenance.Enabled)
	require.Equal(t, "@every 2m", cfg.Maintenance.RevocationSweep)
	require.Equal(t, "@every 30m", cfg.Maintenance.TokenRefreshSweep)
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 8000, cfg.Server.Port)
	require.Equal(t, "info", cfg.Server.LogLevel)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, 30*time.Second, cfg.Catalog.Timeout)
	require.Equal(t, uint(3), cfg.Catalog.MaxTries)
	require.True(t, cfg.Maintenance.Enabled)
	require.Equal(t, "@every 5m", cfg.Maintenance.RevocationSweep)
}

func TestDatabaseOpenConfigAdapter(t *testing.T) {
	cfg := DatabaseConfig{
		Driver: "postgres",
		Postgres: DBAuthConfig{
			Host:     "db.example.com",
			Port:     5432,
			Database: "offerings",
			Username: "svc",
			Password: "pw",
		},
	}

	open := cfg.DatabaseOpenConfig()
	require.Equal(t, "postgres", open.Driver)
	require.Equal(t, "db.example.com", open.Host)
	require.Equal(t, 5432, open.Port)
	require.Equal(t, "offerings", open.Name)
	require.Equal(t, "svc", open.User)
	require.Equal(t, "pw", open.Password)

	sqlite := DatabaseConfig{Driver: "sqlite", Path: "./data/test.sqlite"}.DatabaseOpenConfig()
	require.Equal(t, "./data/test.sqlite", sqlite.Path)
	require.Empty(t, sqlite.Host)
}

func TestClientConfigAdapters(t *testing.T) {
	cat := CatalogConfig{BaseURL: "https://cat.example.com", Timeout: 10 * time.Second, MaxTries: 4}.CatalogClientConfig()
	require.Equal(t, "https://cat.example.com", cat.BaseURL)
	require.Equal(t, 10*time.Second, cat.Timeout)
	require.Equal(t, uint(4), cat.MaxTries)

	dir := DirectoryConfig{BaseURL: "https://dir.example.com", Timeout: 5 * time.Second}.DirectoryClientConfig()
	require.Equal(t, "https://dir.example.com", dir.BaseURL)

	sa := OutboundAuthConfig{TokenURL: "https://idp.example.com/token", ClientID: "id", ClientSecret: "secret", Scopes: []string{"a"}}.ServiceAccountConfig()
	require.Equal(t, "https://idp.example.com/token", sa.TokenURL)
	require.Equal(t, []string{"a"}, sa.Scopes)
}
