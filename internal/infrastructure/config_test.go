package infrastructure_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"citizen-portal/internal/infrastructure"
)

func readFixture(t *testing.T, relPath string) string {
	t.Helper()
	root, err := projectRoot()
	if err != nil {
		t.Fatalf("locate project root failed: %v", err)
	}
	contents, err := os.ReadFile(filepath.Join(root, relPath))
	if err != nil {
		t.Fatalf("read %s failed: %v", relPath, err)
	}
	return string(contents)
}

func projectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", os.ErrNotExist
		}
		dir = parent
	}
}

func assertContains(t *testing.T, contents, needle, file string) {
	t.Helper()
	if !strings.Contains(contents, needle) {
		t.Fatalf("%s missing %q", file, needle)
	}
}

func parseYAML(t *testing.T, relPath string) *yaml.Node {
	t.Helper()
	contents := readFixture(t, relPath)
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(contents), &doc); err != nil {
		t.Fatalf("unmarshal %s failed: %v", relPath, err)
	}
	if len(doc.Content) == 0 {
		t.Fatalf("%s has empty yaml document", relPath)
	}
	return doc.Content[0]
}

func mappingValue(t *testing.T, node *yaml.Node, key string) *yaml.Node {
	t.Helper()
	if node == nil || node.Kind != yaml.MappingNode {
		t.Fatalf("expected mapping node while reading key %q", key)
	}
	for i := 0; i < len(node.Content)-1; i += 2 {
		k := node.Content[i]
		v := node.Content[i+1]
		if k.Value == key {
			return v
		}
	}
	t.Fatalf("missing key %q", key)
	return nil
}

var configKeys = []string{
	"ENV_FILE", "CONFIG_FILE", "PORT", "STORE_BACKEND", "TABLE_NAME", "AWS_REGION", "DYNAMODB_ENDPOINT",
	"AUTH_MODE", "API_KEY", "COGNITO_USER_POOL_ID", "REDIS_URL", "STATS_CACHE_TTL", "LOG_LEVEL", "SEED_SAMPLE_DATA",
	"LAMBDA_PAYLOAD",
}

// isolateEnv unsets every config variable for the duration of the test,
// including ones an env file loads behind t.Setenv's back.
func isolateEnv(t *testing.T) {
	t.Helper()
	for _, key := range configKeys {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func fixturePath(t *testing.T, relPath string) string {
	t.Helper()
	root, err := projectRoot()
	require.NoError(t, err)
	return filepath.Join(root, relPath)
}

func TestLoad_MemoryBackendDefaults(t *testing.T) {
	isolateEnv(t)
	t.Setenv("STORE_BACKEND", "memory")

	cfg, err := infrastructure.Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, infrastructure.BackendMemory, cfg.StoreBackend)
	assert.Equal(t, "none", cfg.AuthMode)
	assert.Equal(t, 30*time.Second, cfg.StatsCacheTTL)
	assert.False(t, cfg.SeedSampleData)
	assert.Equal(t, infrastructure.PayloadHTTP, cfg.LambdaPayload)
}

func TestLoad_YAMLFileWithEnvOverrides(t *testing.T) {
	isolateEnv(t)
	t.Setenv("CONFIG_FILE", fixturePath(t, "configs/portal.example.yaml"))
	t.Setenv("PORT", "9090")
	t.Setenv("STATS_CACHE_TTL", "1m")
	t.Setenv("LAMBDA_PAYLOAD", "rest")

	cfg, err := infrastructure.Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "citizen-portal", cfg.TableName)
	assert.Equal(t, "ap-south-1", cfg.Region)
	assert.Equal(t, "cognito", cfg.AuthMode)
	assert.Equal(t, "ap-south-1_example", cfg.CognitoUserPoolID)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	assert.Equal(t, time.Minute, cfg.StatsCacheTTL)
	assert.Equal(t, infrastructure.PayloadREST, cfg.LambdaPayload)
}

func TestLoad_EnvFile(t *testing.T) {
	isolateEnv(t)
	t.Setenv("ENV_FILE", fixturePath(t, "configs/local.env"))
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := infrastructure.Load()
	require.NoError(t, err)
	assert.Equal(t, infrastructure.BackendMemory, cfg.StoreBackend)
	assert.True(t, cfg.SeedSampleData)
	assert.Equal(t, "warn", cfg.LogLevel, "process environment wins over the env file")
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"dynamodb needs a table", map[string]string{"AWS_REGION": "ap-south-1"}, "TABLE_NAME"},
		{"unknown backend", map[string]string{"STORE_BACKEND": "postgres"}, "STORE_BACKEND"},
		{"api key mode needs a key", map[string]string{"STORE_BACKEND": "memory", "AUTH_MODE": "api_key"}, "API_KEY"},
		{"cognito needs a pool", map[string]string{"STORE_BACKEND": "memory", "AUTH_MODE": "cognito", "AWS_REGION": "ap-south-1"}, "COGNITO_USER_POOL_ID"},
		{"unknown auth mode", map[string]string{"STORE_BACKEND": "memory", "AUTH_MODE": "basic"}, "AUTH_MODE"},
		{"bad ttl", map[string]string{"STORE_BACKEND": "memory", "STATS_CACHE_TTL": "soon"}, "STATS_CACHE_TTL"},
		{"unknown lambda payload", map[string]string{"STORE_BACKEND": "memory", "LAMBDA_PAYLOAD": "websocket"}, "LAMBDA_PAYLOAD"},
		{"bad seed flag", map[string]string{"STORE_BACKEND": "memory", "SEED_SAMPLE_DATA": "maybe"}, "SEED_SAMPLE_DATA"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			isolateEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := infrastructure.Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestExampleConfigCoversEveryKey(t *testing.T) {
	const relPath = "configs/portal.example.yaml"
	contents := readFixture(t, relPath)
	assertContains(t, contents, "store_backend: dynamodb", relPath)

	root := parseYAML(t, relPath)
	for _, key := range []string{
		"port", "store_backend", "table_name", "aws_region", "dynamodb_endpoint", "auth_mode",
		"cognito_user_pool_id", "redis_url", "stats_cache_ttl", "log_level", "seed_sample_data",
		"lambda_payload",
	} {
		mappingValue(t, root, key)
	}
	if got := mappingValue(t, root, "stats_cache_ttl").Value; got != "30s" {
		t.Fatalf("unexpected stats_cache_ttl: %q", got)
	}
}
