/*
 *    Copyright 2021 chenquan
 *
 *    Licensed under the Apache License, Version 2.0 (the "License");
 *    you may not use this file except in compliance with the License.
 *    You may obtain a copy of the License at
 *
 *        http://www.apache.org/licenses/LICENSE-2.0
 *
 *    Unless required by applicable law or agreed to in writing, software
 *    distributed under the License is distributed on an "AS IS" BASIS,
 *    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *    See the License for the specific language governing permissions and
 *    limitations under the License.
 */

package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Configuration interface {
	// Validate validates the configuration.
	// If returns error, the broker will not start.
	Validate() error
}

var validate = validator.New()

// Config is the top-level broker configuration, loaded from a single
// YAML file.
type Config struct {
	Mqtt        Mqtt        `yaml:"mqtt"`
	Auth        Auth        `yaml:"auth"`
	Log         Log         `yaml:"log"`
	Trace       Trace       `yaml:"trace"`
	Persistence Persistence `yaml:"persistence"`
}

// Load reads and validates a Config from the YAML file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	c := &Config{}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("config: unmarshal %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate %s: %w", path, err)
	}
	return c, nil
}

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Auth.Enabled && c.Auth.CredentialsFile == "" {
		return fmt.Errorf("config: auth.enabled requires auth.credentials_file")
	}
	if c.Persistence.Session.Type == "redis" && c.Persistence.Session.RedisAddr == "" {
		return fmt.Errorf("config: persistence.session.type=redis requires persistence.session.redis_addr")
	}
	return nil
}

type Mqtt struct {
	// Host is the TCP listen address, e.g. "0.0.0.0".
	Host string `yaml:"host" validate:"required"`
	// Port is the TCP listen port (1-65535). It is required; the config
	// supplies no default.
	Port int `yaml:"port" validate:"required,min=1,max=65535"`
	// MaxPacketSize is parsed from the file but not read by the broker;
	// no packet size limit is enforced.
	MaxPacketSize uint32 `yaml:"max_packet_size"`
	// AllowZeroLenClientId is parsed from the file but not read by the
	// broker; an empty client id is accepted whenever clean_session=true.
	AllowZeroLenClientId bool `yaml:"allow_zero_len_client_id"`
}

// Auth holds the authentication settings. Validate checks them, but
// cmd/beacon does not read them: the broker verifies credentials and
// authorizes topics only when the server is built with server.WithAuth,
// and otherwise accepts every client and allows every topic.
type Auth struct {
	Enabled bool `yaml:"enabled"`
	// CredentialsFile names a JSON file of username -> {password_hash, authorized_topics}.
	// It is required when Enabled is true; nothing in this module opens it.
	CredentialsFile string `yaml:"credentials_file"`
}

// Log configures the process-wide zap sink.
type Log struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	// File, when set, additionally writes rotated logs to this path.
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Trace configures the OpenTelemetry exporter, if any.
type Trace struct {
	// Exporter is one of "", "jaeger", "zipkin".
	Exporter string `yaml:"exporter" validate:"omitempty,oneof=jaeger zipkin"`
	Endpoint string `yaml:"endpoint"`
}

// Persistence configures the storage backends.
type Persistence struct {
	Session SessionPersistence `yaml:"session"`
}

// SessionPersistence selects the session.Store implementation.
type SessionPersistence struct {
	// Type is "memory" (default) or "redis".
	Type      string `yaml:"type" validate:"omitempty,oneof=memory redis"`
	RedisAddr string `yaml:"redis_addr"`
}
