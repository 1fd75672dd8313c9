package ledger_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jonanatree/payledger/ledger"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http_addr: "localhost:9999"
repo_backend: mem
identity:
  base_url: "https://id.example.com"
  api_key: "file-key"
`), 0o600))

	t.Setenv("IDENTITY_API_KEY", "env-key")

	cfg, err := ledger.LoadConfig(path)
	require.NoError(t, err)

	require.Equal(t, "localhost:9999", cfg.HTTPAddr)
	require.Equal(t, "mem", cfg.RepoBackend)
	require.Equal(t, "https://id.example.com", cfg.Identity.BaseURL)
	// env beats file
	require.Equal(t, "env-key", cfg.Identity.APIKey)
	// untouched values keep defaults
	require.Equal(t, "https://fcm.googleapis.com/fcm/send", cfg.Push.URL)
}

func TestLoadConfigNoFile(t *testing.T) {
	cfg, err := ledger.LoadConfig("")
	require.NoError(t, err)
	require.Equal(t, ledger.DefaultConfig().HTTPAddr, cfg.HTTPAddr)

	_, err = ledger.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
