package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openfedx/offering-service/internal/app"
)

func TestLoadApplicationConfig(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(file, []byte("server:\n  port: 7777\n"), 0o600))

	cfg, err := loadApplicationConfig(dir)
	require.NoError(t, err)
	require.Equal(t, 7777, cfg.Server.Port)

	cfg, err = loadApplicationConfig(file)
	require.NoError(t, err)
	require.Equal(t, 7777, cfg.Server.Port)

	_, err = loadApplicationConfig(filepath.Join(dir, "missing"))
	require.Error(t, err)
}

func TestValidateConfig(t *testing.T) {
	cfg := &app.Config{}
	cfg.Catalog.BaseURL = "https://catalog.example.com"
	cfg.Directory.BaseURL = "https://directory.example.com"
	cfg.Federation.OrganizationID = "org-federation"
	cfg.OutboundAuth.TokenURL = "https://idp.example.com/token"
	cfg.OutboundAuth.ClientID = "offering-service"

	require.NoError(t, validateConfig(cfg))

	broken := *cfg
	broken.Federation.OrganizationID = ""
	require.Error(t, validateConfig(&broken))

	broken = *cfg
	broken.Catalog.BaseURL = " "
	require.Error(t, validateConfig(&broken))

	require.Error(t, validateConfig(nil))
}
