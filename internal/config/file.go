package config

import (
	"os"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
)

// fileConfig mirrors the YAML layout. Durations are strings such as "15m".
type fileConfig struct {
	Server struct {
		Port     string `yaml:"port"`
		AppName  string `yaml:"app_name"`
		Env      string `yaml:"env"`
		LogLevel string `yaml:"log_level"`
	} `yaml:"server"`
	Token struct {
		Algorithm            string       `yaml:"algorithm"`
		KeyID                string       `yaml:"kid"`
		Secret               string       `yaml:"secret"`
		PrivateKeyFile       string       `yaml:"private_key_file"`
		RetiredKeys          []RetiredKey `yaml:"retired_keys"`
		AccessTokenLifetime  string       `yaml:"access_lifetime"`
		Leeway               string       `yaml:"leeway"`
		Issuer               string       `yaml:"issuer"`
		Audience             string       `yaml:"audience"`
		RefreshTokenLength   int          `yaml:"refresh_length"`
		RefreshTokenLifetime string       `yaml:"refresh_lifetime"`
	} `yaml:"token"`
}

// LoadFile reads a YAML config file over the defaults and validates it.
// Environment variables are not consulted.
func LoadFile(path string) (*Settings, error) {
	s := Defaults()
	if err := s.mergeFile(path); err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Settings) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return invalid("reading %s: %v", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return invalid("parsing %s: %v", path, err)
	}

	setString(&s.Port, fc.Server.Port)
	if s.Port != "" && s.Port[0] != ':' {
		s.Port = ":" + s.Port
	}
	setString(&s.AppName, fc.Server.AppName)
	setString(&s.Env, fc.Server.Env)
	setString(&s.LogLevel, fc.Server.LogLevel)

	setString(&s.Algorithm, strings.ToUpper(fc.Token.Algorithm))
	setString(&s.KeyID, fc.Token.KeyID)
	setString(&s.Secret, fc.Token.Secret)
	setString(&s.PrivateKeyFile, fc.Token.PrivateKeyFile)
	setString(&s.Issuer, fc.Token.Issuer)
	setString(&s.Audience, fc.Token.Audience)
	s.RetiredKeys = append(s.RetiredKeys, fc.Token.RetiredKeys...)
	if fc.Token.RefreshTokenLength != 0 {
		s.RefreshTokenLength = fc.Token.RefreshTokenLength
	}

	for _, d := range []struct {
		raw  string
		dest *time.Duration
	}{
		{fc.Token.AccessTokenLifetime, &s.AccessTokenLifetime},
		{fc.Token.Leeway, &s.Leeway},
		{fc.Token.RefreshTokenLifetime, &s.RefreshTokenLifetime},
	} {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return invalid("parsing %s: %v", path, err)
		}
		*d.dest = parsed
	}
	return nil
}

func setString(dest *string, value string) {
	if value != "" {
		*dest = value
	}
}
