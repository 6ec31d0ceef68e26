package config

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/jrsteele09/go-token-service/internal/errors"
)

type Config interface {
	EnvConfig
	TokenConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
}

// TokenConfig is everything the token manager and its key ring need.
type TokenConfig interface {
	GetAlgorithm() string
	GetKeyID() string
	GetSecret() string
	GetPrivateKeyFile() string
	GetRetiredKeys() []RetiredKey
	GetAccessTokenLifetime() time.Duration
	GetLeeway() time.Duration
	GetIssuer() string
	GetAudience() string
	GetRefreshTokenLength() int
	GetRefreshTokenLifetime() time.Duration
}

// RetiredKey is a previous signing key still accepted for validation.
type RetiredKey struct {
	KeyID          string `yaml:"kid"`
	Secret         string `yaml:"secret"`
	PrivateKeyFile string `yaml:"private_key_file"`
}

const (
	DefaultKeyID                = "primary"
	DefaultAlgorithm            = "HS256"
	DefaultAccessTokenLifetime  = 15 * time.Minute
	DefaultRefreshTokenLength   = 32 // 32 bytes = 256 bits
	DefaultRefreshTokenLifetime = 7 * 24 * time.Hour
	MinRefreshTokenLength       = 16
)

var minHMACSecretLength = map[string]int{
	"HS256": 32,
	"HS384": 48,
	"HS512": 64,
}

var asymmetricAlgorithms = map[string]struct{}{
	"RS256": {}, "RS384": {}, "RS512": {},
	"ES256": {}, "ES384": {}, "ES512": {},
}

// Settings is the resolved configuration. It is populated from defaults, an
// optional YAML file and the environment, in that order.
type Settings struct {
	Port     string
	AppName  string
	Env      string
	LogLevel string

	Algorithm            string
	KeyID                string
	Secret               string
	PrivateKeyFile       string
	RetiredKeys          []RetiredKey
	AccessTokenLifetime  time.Duration
	Leeway               time.Duration
	Issuer               string
	Audience             string
	RefreshTokenLength   int
	RefreshTokenLifetime time.Duration
}

var _ Config = (*Settings)(nil)

// Defaults returns settings with every optional value filled in.
func Defaults() *Settings {
	return &Settings{
		Port:                 ":8080",
		AppName:              "Token Service",
		Env:                  "DEV",
		LogLevel:             "info",
		Algorithm:            DefaultAlgorithm,
		KeyID:                DefaultKeyID,
		AccessTokenLifetime:  DefaultAccessTokenLifetime,
		RefreshTokenLength:   DefaultRefreshTokenLength,
		RefreshTokenLifetime: DefaultRefreshTokenLifetime,
	}
}

// Load reads the optional .env file, the YAML file named by CONFIG_FILE and
// finally the process environment, then validates the result.
func Load() (*Settings, error) {
	if err := LoadDotEnv(); err != nil {
		return nil, err
	}

	s := Defaults()
	if path := GetEnv(configFileEnvVar, ""); path != "" {
		if err := s.mergeFile(path); err != nil {
			return nil, err
		}
	}
	if err := s.applyEnv(); err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate rejects configurations the token manager cannot run with.
func (s *Settings) Validate() error {
	if s.KeyID == "" {
		return invalid("key id is required")
	}
	if err := validateKey(s.Algorithm, s.KeyID, s.Secret, s.PrivateKeyFile); err != nil {
		return err
	}

	seen := map[string]struct{}{s.KeyID: {}}
	for _, rk := range s.RetiredKeys {
		if rk.KeyID == "" {
			return invalid("retired key without kid")
		}
		if _, dup := seen[rk.KeyID]; dup {
			return invalid("duplicate key id %q", rk.KeyID)
		}
		seen[rk.KeyID] = struct{}{}
		if err := validateKey(s.Algorithm, rk.KeyID, rk.Secret, rk.PrivateKeyFile); err != nil {
			return err
		}
	}

	if s.AccessTokenLifetime < time.Second {
		return invalid("access token lifetime must be at least 1s, got %s", s.AccessTokenLifetime)
	}
	if s.Leeway < 0 {
		return invalid("leeway must not be negative, got %s", s.Leeway)
	}
	if s.RefreshTokenLength < MinRefreshTokenLength {
		return invalid("refresh token length must be at least %d bytes, got %d", MinRefreshTokenLength, s.RefreshTokenLength)
	}
	if s.RefreshTokenLifetime <= 0 {
		return invalid("refresh token lifetime must be positive, got %s", s.RefreshTokenLifetime)
	}
	return nil
}

// IsHMAC reports whether the configured algorithm uses a shared secret.
func (s *Settings) IsHMAC() bool {
	_, ok := minHMACSecretLength[s.Algorithm]
	return ok
}

func validateKey(alg, kid, secret, keyFile string) error {
	if minLen, ok := minHMACSecretLength[alg]; ok {
		if len(secret) < minLen {
			return invalid("key %q: %s secret must be at least %d bytes", kid, alg, minLen)
		}
		return nil
	}
	if _, ok := asymmetricAlgorithms[alg]; ok {
		if strings.TrimSpace(keyFile) == "" {
			return invalid("key %q: %s requires a private key file", kid, alg)
		}
		return nil
	}
	return invalid("unsupported signing algorithm %q", alg)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", apperrors.ErrInvalidConfig, fmt.Sprintf(format, args...))
}

func (s *Settings) GetPort() string                        { return s.Port }
func (s *Settings) GetAppName() string                     { return s.AppName }
func (s *Settings) GetEnv() string                         { return s.Env }
func (s *Settings) GetLogLevel() string                    { return s.LogLevel }
func (s *Settings) GetAlgorithm() string                   { return s.Algorithm }
func (s *Settings) GetKeyID() string                       { return s.KeyID }
func (s *Settings) GetSecret() string                      { return s.Secret }
func (s *Settings) GetPrivateKeyFile() string              { return s.PrivateKeyFile }
func (s *Settings) GetRetiredKeys() []RetiredKey           { return s.RetiredKeys }
func (s *Settings) GetAccessTokenLifetime() time.Duration  { return s.AccessTokenLifetime }
func (s *Settings) GetLeeway() time.Duration               { return s.Leeway }
func (s *Settings) GetIssuer() string                      { return s.Issuer }
func (s *Settings) GetAudience() string                    { return s.Audience }
func (s *Settings) GetRefreshTokenLength() int             { return s.RefreshTokenLength }
func (s *Settings) GetRefreshTokenLifetime() time.Duration { return s.RefreshTokenLifetime }
