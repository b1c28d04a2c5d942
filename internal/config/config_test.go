package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), *cfg)
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	path := writeFile(t, "reprolab.yaml", `
db: /var/lib/reprolab.db
cache_size: 32
log_level: debug
archive:
  driver: s3
  bucket: spectra
  prefix: exports/
`)
	t.Setenv("REPROLAB_GRPC_ADDR", "0.0.0.0:7000")
	t.Setenv("REPROLAB_CACHE_SIZE", "8")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/reprolab.db", cfg.DB)
	assert.Equal(t, "0.0.0.0:7000", cfg.GRPCAddr)
	assert.Equal(t, 8, cfg.CacheSize)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "s3", cfg.Archive.Driver)
	assert.Equal(t, "spectra", cfg.Archive.Bucket)
	assert.Equal(t, "us-east-1", cfg.Archive.Region, "default kept")
}

func TestLoad_EnvFile(t *testing.T) {
	env := writeFile(t, "test.env", "REPROLAB_DB=from-dotenv.db\nREPROLAB_ARCHIVE_DRIVER=memory\n")
	t.Setenv("REPROLAB_DB", "")
	t.Setenv("REPROLAB_ARCHIVE_DRIVER", "")
	os.Unsetenv("REPROLAB_DB")
	os.Unsetenv("REPROLAB_ARCHIVE_DRIVER")

	cfg, err := Load("", env)
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv.db", cfg.DB)
	assert.Equal(t, "memory", cfg.Archive.Driver)

	_, err = Load("", filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	t.Chdir(t.TempDir())
	cases := map[string]string{
		"bad level":       "log_level: loud\n",
		"bad driver":      "archive: {driver: ftp}\n",
		"s3 needs bucket": "archive: {driver: s3}\n",
		"unknown key":     "colour: red\n",
		"negative cache":  "cache_size: -1\n",
	}
	for name, content := range cases {
		_, err := Load(writeFile(t, "c.yaml", content))
		assert.Error(t, err, name)
	}

	t.Setenv("REPROLAB_CACHE_SIZE", "many")
	_, err := Load("")
	assert.Error(t, err)
}

func TestLoad_EmptyFile(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load(writeFile(t, "empty.yaml", ""))
	require.NoError(t, err)
	assert.Equal(t, Default().DB, cfg.DB)
}
