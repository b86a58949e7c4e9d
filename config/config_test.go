package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/grovetools/appshelf/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromBytesDefaults(t *testing.T) {
	t.Setenv("APPSHELF_HOME", t.TempDir())

	cfg, err := LoadFromBytes([]byte("tenant: shop\n"))
	require.NoError(t, err)

	assert.Equal(t, "shop", cfg.Tenant)
	assert.Equal(t, DefaultVersion, cfg.Version)
	assert.Equal(t, DefaultUsername, cfg.Admin.Username)
	assert.Equal(t, DefaultPassword, cfg.Admin.Password)
	assert.Equal(t, DriverSQLite, cfg.Store.Driver)
	assert.NotEmpty(t, cfg.Store.Path)
	assert.NotEmpty(t, cfg.Daemon.Socket)
	assert.True(t, cfg.PersistIdentity())
	assert.True(t, cfg.WatchConfig())
}

func TestLoadFromBytesEnvExpansion(t *testing.T) {
	t.Setenv("APPSHELF_TEST_TOKEN", "abc.def.ghi")

	cfg, err := LoadFromBytes([]byte(`
identity:
  token: ${APPSHELF_TEST_TOKEN}
store:
  driver: ${APPSHELF_TEST_DRIVER:-memory}
`))
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", cfg.Identity.Token)
	assert.Equal(t, DriverMemory, cfg.Store.Driver)
}

func TestLoadFromBytesInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		code errors.ErrorCode
	}{
		{
			name: "unknown driver rejected by schema",
			yaml: "store:\n  driver: postgres\n",
			code: errors.ErrCodeConfigInvalid,
		},
		{
			name: "persist must be boolean",
			yaml: "identity:\n  persist: sometimes\n",
			code: errors.ErrCodeConfigInvalid,
		},
		{
			name: "slash in username",
			yaml: "admin:\n  username: a/b\n",
			code: errors.ErrCodeConfigValidation,
		},
		{
			name: "slash in tenant",
			yaml: "tenant: a/b\n",
			code: errors.ErrCodeConfigValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromBytes([]byte(tt.yaml))
			require.Error(t, err)
			assert.Equal(t, tt.code, errors.GetCode(err))
		})
	}
}

func TestLoadTOMLWithExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "appshelf.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
tenant = "toml-tenant"

[store]
driver = "memory"

[logging]
level = "debug"
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "toml-tenant", cfg.Tenant)
	assert.Equal(t, DriverMemory, cfg.Store.Driver)

	var logCfg struct {
		Level string `yaml:"level"`
	}
	require.NoError(t, cfg.UnmarshalExtension("logging", &logCfg))
	assert.Equal(t, "debug", logCfg.Level)
}

func TestYAMLExtension(t *testing.T) {
	cfg, err := LoadFromBytes([]byte(`
store:
  driver: memory
logging:
  level: warn
  report_caller: true
`))
	require.NoError(t, err)

	var logCfg struct {
		Level        string `yaml:"level"`
		ReportCaller bool   `yaml:"report_caller"`
	}
	require.NoError(t, cfg.UnmarshalExtension("logging", &logCfg))
	assert.Equal(t, "warn", logCfg.Level)
	assert.True(t, logCfg.ReportCaller)

	// Unknown extensions leave the target untouched
	var other struct{ X string }
	require.NoError(t, cfg.UnmarshalExtension("missing", &other))
	assert.Empty(t, other.X)
}

func TestFindConfigFileWalksUp(t *testing.T) {
	t.Setenv("APPSHELF_HOME", t.TempDir())
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "appshelf.yml"), []byte("tenant: up\n"), 0644))

	path, err := FindConfigFile(nested)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "appshelf.yml"), path)

	cfg, err := LoadFrom(nested)
	require.NoError(t, err)
	assert.Equal(t, "up", cfg.Tenant)
}

func TestLoadOrDefault(t *testing.T) {
	t.Setenv("APPSHELF_HOME", t.TempDir())
	dir := t.TempDir()
	oldWd, err := os.Getwd()
	require.NoError(t, err)
	defer os.Chdir(oldWd)
	require.NoError(t, os.Chdir(dir))

	cfg, err := LoadOrDefault("")
	require.NoError(t, err)
	assert.Equal(t, DefaultTenant, cfg.Tenant)

	// An explicit path that does not exist is an error
	_, err = LoadOrDefault(filepath.Join(dir, "nope.yml"))
	assert.True(t, errors.Is(err, errors.ErrCodeConfigNotFound))
}

func TestGenerateSchema(t *testing.T) {
	data, err := GenerateSchema()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"tenant"`)
	assert.Contains(t, string(data), `"token_secret"`)
	assert.NotContains(t, string(data), "Extensions")
}
