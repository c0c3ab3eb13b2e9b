// Copyright 2026 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads the YAML configuration of the keyless CLI.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/GoogleCloudPlatform/keyless/keyless"
	"github.com/GoogleCloudPlatform/keyless/keyless/custody"
	"sigs.k8s.io/yaml"
)

const (
	// DefaultName is the name of the configuration file in the user's
	// configuration directory.
	DefaultName = "keyless.yaml"

	defaultPasscodeEnv = "KEYLESS_PASSCODE"
	defaultTimeout     = 30 * time.Second
)

// UserConfig identifies the wallet owner.
type UserConfig struct {
	AccountEmail      string `json:"accountEmail"`
	AccountUserID     string `json:"accountUserId"`
	CloudKeyProvider  string `json:"cloudKeyProvider"`
	CloudKeyUserID    string `json:"cloudKeyUserId"`
	CloudKeyUserEmail string `json:"cloudKeyUserEmail,omitempty"`
}

// CustodyConfig controls where device packs are kept.
type CustodyConfig struct {
	// StateDir holds the device secret and file-tier entries.
	StateDir string `json:"stateDir"`
	// TPMPath is the TPM device used by the secure tier.
	TPMPath string `json:"tpmPath"`
	// DisableTPM skips the secure tier entirely.
	DisableTPM bool `json:"disableTpm"`
	// PasscodeEnv names the environment variable holding the session passcode.
	PasscodeEnv string `json:"passcodeEnv"`
}

// DriveConfig configures cloud pack backups on Google Drive.
type DriveConfig struct {
	CredentialsFile string `json:"credentialsFile"`
	Space           string `json:"space"`
}

// AuthServerConfig configures the account service client.
type AuthServerConfig struct {
	Endpoint          string  `json:"endpoint"`
	RequestsPerSecond float64 `json:"requestsPerSecond"`
	// Timeout is a Go duration string such as "30s".
	Timeout string `json:"timeout"`
}

// Config is the keyless CLI configuration.
type Config struct {
	User       UserConfig       `json:"user"`
	Custody    CustodyConfig    `json:"custody"`
	Drive      DriveConfig      `json:"drive"`
	AuthServer AuthServerConfig `json:"authServer"`

	timeout time.Duration
}

// DefaultPath returns the configuration file path in the user's
// configuration directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get config directory location: %v", err)
	}
	return filepath.Join(dir, DefaultName), nil
}

// Load reads and validates the configuration at path. A missing file yields
// the defaults.
func Load(path string) (*Config, error) {
	yamlBytes, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		yamlBytes = nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read config file: %v", err)
	}
	return Parse(yamlBytes)
}

// Parse converts YAML configuration to a validated Config.
func Parse(yamlBytes []byte) (*Config, error) {
	cfg := &Config{}
	if len(bytes.TrimSpace(yamlBytes)) > 0 {
		jsonBytes, err := yaml.YAMLToJSON(yamlBytes)
		if err != nil {
			return nil, fmt.Errorf("failed to convert config YAML to JSON: %v", err)
		}
		dec := json.NewDecoder(bytes.NewReader(jsonBytes))
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %v", err)
		}
	}
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() error {
	if c.Custody.StateDir == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return fmt.Errorf("failed to get config directory location: %v", err)
		}
		c.Custody.StateDir = filepath.Join(dir, "keyless")
	}
	if c.Custody.TPMPath == "" {
		c.Custody.TPMPath = custody.DefaultTPMPath
	}
	if c.Custody.PasscodeEnv == "" {
		c.Custody.PasscodeEnv = defaultPasscodeEnv
	}
	c.timeout = defaultTimeout
	return nil
}

func (c *Config) validate() error {
	if c.AuthServer.RequestsPerSecond < 0 {
		return fmt.Errorf("authServer.requestsPerSecond must not be negative, got %v", c.AuthServer.RequestsPerSecond)
	}
	if c.AuthServer.Timeout != "" {
		d, err := time.ParseDuration(c.AuthServer.Timeout)
		if err != nil {
			return fmt.Errorf("invalid authServer.timeout: %v", err)
		}
		if d <= 0 {
			return fmt.Errorf("authServer.timeout must be positive, got %v", d)
		}
		c.timeout = d
	}
	return nil
}

// AuthServerTimeout returns the per-request timeout of the account service client.
func (c *Config) AuthServerTimeout() time.Duration { return c.timeout }

// UserInfo returns the wallet owner, or keyless.ErrInvalidUserInfo when a
// required field is missing.
func (c *Config) UserInfo() (keyless.UserInfo, error) {
	u := keyless.UserInfo{
		AccountEmail:      c.User.AccountEmail,
		AccountUserID:     c.User.AccountUserID,
		CloudKeyProvider:  c.User.CloudKeyProvider,
		CloudKeyUserID:    c.User.CloudKeyUserID,
		CloudKeyUserEmail: c.User.CloudKeyUserEmail,
	}
	if err := u.Validate(); err != nil {
		return keyless.UserInfo{}, err
	}
	return u, nil
}

// Passcode returns a session passcode provider reading the configured
// environment variable. An unset variable behaves as a locked session.
func (c *Config) Passcode() custody.PasscodeProvider {
	return custody.StaticPasscode(os.Getenv(c.Custody.PasscodeEnv))
}
