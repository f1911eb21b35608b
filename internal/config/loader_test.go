package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validConfigYAML = `
chembl:
  base_url: "http://chembl.local/api/data"
  rps: 2
  retry_max: 1
ncbi:
  api_key: "file-key"
llm:
  base_url: "http://ollama.local"
  model: "llama3"
database:
  host: "aact.local"
  port: 5433
  user: "reader"
  db_name: "aact"
redis:
  enabled: true
  addr: "redis.local:6379"
kafka:
  enabled: true
  brokers: ["k1:9092", "k2:9092"]
  topic: "rows"
server:
  port: 9090
  mode: "test"
pipeline:
  row_limit: 30
log:
  level: "debug"
  format: "console"
`

func createTempConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_FromFile_ValidConfig(t *testing.T) {
	cfg, err := Load(createTempConfigFile(t, validConfigYAML))
	require.NoError(t, err)

	assert.Equal(t, "http://chembl.local/api/data", cfg.ChEMBL.BaseURL)
	assert.Equal(t, 2.0, cfg.ChEMBL.RPS)
	assert.Equal(t, 1, cfg.ChEMBL.RetryMax)
	assert.Equal(t, "file-key", cfg.NCBI.APIKey)
	assert.Equal(t, "llama3", cfg.LLM.Model)
	assert.Equal(t, "aact.local", cfg.Database.Host)
	assert.Equal(t, 5433, cfg.Database.Port)
	assert.Equal(t, "aact", cfg.Database.DBName)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 30, cfg.Pipeline.RowLimit)
	assert.Equal(t, "console", cfg.Log.Format)

	// defaults fill the rest
	assert.Equal(t, DefaultChEMBLPageLimit, cfg.ChEMBL.PageLimit)
	assert.Equal(t, DefaultNCBIRateLimitRetry, cfg.NCBI.RateLimitRetry)
	assert.Equal(t, DefaultDBSSLMode, cfg.Database.SSLMode)
	assert.Equal(t, DefaultResultsDBName, cfg.Results.DBName)
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(createTempConfigFile(t, "chembl: ["))
	assert.Error(t, err)
}

func TestLoad_ValidationFailure(t *testing.T) {
	_, err := Load(createTempConfigFile(t, "server:\n  port: 70000\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("TRIALSCOPE_SERVER_PORT", "9999")
	t.Setenv("TRIALSCOPE_CHEMBL_RETRY_WAIT_MAX", "10s")

	cfg, err := Load(createTempConfigFile(t, validConfigYAML))
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.ChEMBL.RetryWaitMax)
}

func TestLoadFromEnv_LegacyAliases(t *testing.T) {
	t.Setenv("db_host", "legacy-host")
	t.Setenv("db_port", "6543")
	t.Setenv("db_userid", "legacy-user")
	t.Setenv("db_password", "legacy-pass")
	t.Setenv("NCBI_API_KEY", "legacy-key")
	t.Setenv("NCBI_EMAIL", "someone@example.org")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "legacy-host", cfg.Database.Host)
	assert.Equal(t, 6543, cfg.Database.Port)
	assert.Equal(t, "legacy-user", cfg.Database.User)
	assert.Equal(t, "legacy-pass", cfg.Database.Password)
	assert.Equal(t, "legacy-key", cfg.NCBI.APIKey)
	assert.Equal(t, "someone@example.org", cfg.NCBI.Email)
}

func TestLoadFromEnv_PrefixedWinsOverLegacy(t *testing.T) {
	t.Setenv("db_host", "legacy-host")
	t.Setenv("TRIALSCOPE_DATABASE_HOST", "new-host")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "new-host", cfg.Database.Host)
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, DefaultChEMBLBaseURL, cfg.ChEMBL.BaseURL)
	assert.Equal(t, DefaultLLMModel, cfg.LLM.Model)
	assert.Equal(t, DefaultDBName, cfg.Database.DBName)
	assert.Equal(t, DefaultServerPort, cfg.Server.Port)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoadAuto(t *testing.T) {
	cfg, err := LoadAuto("")
	require.NoError(t, err)
	assert.Equal(t, DefaultServerPort, cfg.Server.Port)

	cfg, err = LoadAuto(createTempConfigFile(t, validConfigYAML))
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("TRIALSCOPE_TEST_DOTENV_VALUE=from-file\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("TRIALSCOPE_TEST_DOTENV_VALUE") })

	require.NoError(t, LoadDotEnv(path, filepath.Join(dir, "absent.env")))
	assert.Equal(t, "from-file", os.Getenv("TRIALSCOPE_TEST_DOTENV_VALUE"))
}

func TestMustLoad_Panics(t *testing.T) {
	assert.Panics(t, func() { MustLoad(filepath.Join(t.TempDir(), "missing.yaml")) })
}

func TestConfigKeys_IncludesNestedLeaves(t *testing.T) {
	keys := configKeys(reflectConfigType(), "")
	assert.Contains(t, keys, "chembl.rps")
	assert.Contains(t, keys, "results.host")
	assert.Contains(t, keys, "log.output_paths")
	assert.Contains(t, keys, "chembl.timeout")
	assert.NotContains(t, keys, "chembl")
}
