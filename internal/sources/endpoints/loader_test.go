package endpoints

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "services.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoaderLoad(t *testing.T) {
	path := writeFile(t, `services:
  - name: users
    url: http://users:4001/graphql
    timeoutMs: 1500
    maxRetries: 2
  - name: orders
    url: http://orders:4002/graphql
`)

	config, err := NewLoader(path).Load()
	require.NoError(t, err)
	require.Len(t, config.Services, 2)
	assert.Equal(t, "users", config.Services[0].Name)
	assert.Equal(t, 1500, config.Services[0].TimeoutMs)
	assert.Equal(t, 2, config.Services[0].MaxRetries)
}

func TestLoaderExpandsEnv(t *testing.T) {
	t.Setenv("USERS_HOST", "users.internal")
	path := writeFile(t, `services:
  - name: users
    url: http://${USERS_HOST}:4001/graphql
`)

	config, err := NewLoader(path).Load()
	require.NoError(t, err)
	assert.Equal(t, "http://users.internal:4001/graphql", config.Services[0].URL)
}

func TestLoaderMissingFile(t *testing.T) {
	_, err := NewLoader(filepath.Join(t.TempDir(), "nope.yaml")).Load()
	assert.Error(t, err)
}

func TestLoaderInvalidYAML(t *testing.T) {
	path := writeFile(t, "services: [unclosed")
	_, err := NewLoader(path).Load()
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := writeFile(t, `services:
  - name: users
    url: http://users:4001/graphql
`)

	eps, err := Load(path)
	require.NoError(t, err)
	require.Len(t, eps, 1)
	assert.Equal(t, 3*time.Second, eps[0].Timeout)
}
