package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	configFileEnvVar = "CONFIG_FILE"
	portEnvVar       = "PORT"
	appNameVar       = "APP_NAME"
	envEnvVar        = "ENV"
	logLevelEnvVar   = "LOG_LEVEL"

	algorithmEnvVar       = "TOKEN_ALGORITHM"
	keyIDEnvVar           = "TOKEN_KEY_ID"
	secretEnvVar          = "TOKEN_SECRET"
	privateKeyFileEnvVar  = "TOKEN_PRIVATE_KEY_FILE"
	retiredSecretsEnvVar  = "TOKEN_RETIRED_SECRETS"
	accessLifetimeEnvVar  = "TOKEN_ACCESS_LIFETIME"
	leewayEnvVar          = "TOKEN_LEEWAY"
	issuerEnvVar          = "TOKEN_ISSUER"
	audienceEnvVar        = "TOKEN_AUDIENCE"
	refreshLengthEnvVar   = "TOKEN_REFRESH_LENGTH"
	refreshLifetimeEnvVar = "TOKEN_REFRESH_LIFETIME"
)

// LoadDotEnv seeds the environment from .env style files. Variables that are
// already set win, and missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return invalid("loading %s: %v", f, err)
		}
	}
	return nil
}

func (s *Settings) applyEnv() error {
	if port := GetEnv(portEnvVar, ""); port != "" {
		if port[0] != ':' {
			port = fmt.Sprintf(":%s", port)
		}
		s.Port = port
	}
	s.AppName = GetEnv(appNameVar, s.AppName)
	s.Env = GetEnv(envEnvVar, s.Env)
	s.LogLevel = GetEnv(logLevelEnvVar, s.LogLevel)

	s.Algorithm = strings.ToUpper(GetEnv(algorithmEnvVar, s.Algorithm))
	s.KeyID = GetEnv(keyIDEnvVar, s.KeyID)
	s.Secret = GetEnv(secretEnvVar, s.Secret)
	s.PrivateKeyFile = GetEnv(privateKeyFileEnvVar, s.PrivateKeyFile)
	s.Issuer = GetEnv(issuerEnvVar, s.Issuer)
	s.Audience = GetEnv(audienceEnvVar, s.Audience)

	if raw := GetEnv(retiredSecretsEnvVar, ""); raw != "" {
		retired, err := parseRetiredSecrets(raw)
		if err != nil {
			return err
		}
		s.RetiredKeys = append(s.RetiredKeys, retired...)
	}

	var err error
	if s.AccessTokenLifetime, err = envDuration(accessLifetimeEnvVar, s.AccessTokenLifetime); err != nil {
		return err
	}
	if s.Leeway, err = envDuration(leewayEnvVar, s.Leeway); err != nil {
		return err
	}
	if s.RefreshTokenLifetime, err = envDuration(refreshLifetimeEnvVar, s.RefreshTokenLifetime); err != nil {
		return err
	}
	if raw := GetEnv(refreshLengthEnvVar, ""); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return invalid("%s: %v", refreshLengthEnvVar, err)
		}
		s.RefreshTokenLength = n
	}
	return nil
}

// parseRetiredSecrets reads "kid:secret,kid:secret". Secrets must not contain commas.
func parseRetiredSecrets(raw string) ([]RetiredKey, error) {
	var keys []RetiredKey
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		kid, secret, ok := strings.Cut(entry, ":")
		if !ok || kid == "" || secret == "" {
			return nil, invalid("%s: entry %q is not kid:secret", retiredSecretsEnvVar, entry)
		}
		keys = append(keys, RetiredKey{KeyID: kid, Secret: secret})
	}
	return keys, nil
}

func envDuration(envVar string, defaultValue time.Duration) (time.Duration, error) {
	raw := GetEnv(envVar, "")
	if raw == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, invalid("%s: %v", envVar, err)
	}
	return d, nil
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
