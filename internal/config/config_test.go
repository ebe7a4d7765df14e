package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

const validConfig = `
default_profile = "work"
log_level = "debug"

[profiles.work]
base_url = "https://dav.example.com/remote.php/dav/files/alice"
username = "alice"
password = "hunter2"
root = "/projects"

[profiles.home]
base_url = "https://home.example.com/dav"
username = "al"
`

func TestLoad_Valid(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	assert.Equal(t, "work", cfg.DefaultProfile)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Len(t, cfg.Profiles, 2)
	assert.Equal(t, "/projects", cfg.Profiles["work"].Root)
}

func TestLoad_UnknownKeyIsFatal(t *testing.T) {
	_, err := Load(writeConfig(t, `
[profiles.work]
base_url = "https://dav.example.com"
username = "alice"
passwrod = "typo"
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown keys")
	assert.Contains(t, err.Error(), "passwrod")
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"no profiles", `log_level = "info"`, "at least one"},
		{"missing base_url", "[profiles.p]\nusername = \"u\"", "base_url is required"},
		{"missing username", "[profiles.p]\nbase_url = \"https://x\"", "username is required"},
		{
			"bad log level",
			"log_level = \"loud\"\n[profiles.p]\nbase_url = \"https://x\"\nusername = \"u\"",
			"invalid log_level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestResolve_ProfileSelection(t *testing.T) {
	path := writeConfig(t, validConfig)

	// Explicit name wins.
	_, p, err := Resolve(path, "home")
	require.NoError(t, err)
	assert.Equal(t, "al", p.Username)

	// Empty name falls back to default_profile.
	_, p, err = Resolve(path, "")
	require.NoError(t, err)
	assert.Equal(t, "alice", p.Username)

	// Unknown profile.
	_, _, err = Resolve(path, "nope")
	assert.ErrorIs(t, err, ErrNoProfile)
}

func TestResolve_PasswordEnvOverride(t *testing.T) {
	t.Setenv(passwordEnvVar, "from-env")

	_, p, err := Resolve(writeConfig(t, validConfig), "work")
	require.NoError(t, err)
	assert.Equal(t, "from-env", p.Password)
}
