package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Valid(t *testing.T) {
	path := writeTempConfig(t, `
mqtt:
  host: 0.0.0.0
  port: 1883
log:
  level: info
persistence:
  session:
    type: memory
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", cfg.Mqtt.Host)
	assert.Equal(t, 1883, cfg.Mqtt.Port)
	assert.Equal(t, "memory", cfg.Persistence.Session.Type)
}

func TestLoad_MissingRequiredField(t *testing.T) {
	path := writeTempConfig(t, `
mqtt:
  port: 1883
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate_RedisRequiresAddr(t *testing.T) {
	c := &Config{
		Mqtt: Mqtt{Host: "0.0.0.0", Port: 1883},
		Persistence: Persistence{
			Session: SessionPersistence{Type: "redis"},
		},
	}
	assert.Error(t, c.Validate())
}

func TestValidate_AuthRequiresCredentialsFile(t *testing.T) {
	c := &Config{
		Mqtt: Mqtt{Host: "0.0.0.0", Port: 1883},
		Auth: Auth{Enabled: true},
	}
	assert.Error(t, c.Validate())
}

func TestValidate_OK(t *testing.T) {
	c := &Config{
		Mqtt: Mqtt{Host: "0.0.0.0", Port: 1883},
	}
	assert.NoError(t, c.Validate())
}
