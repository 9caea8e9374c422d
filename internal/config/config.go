// Package config loads client and server settings from YAML.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"sealed_socket/internal/errs"
	"sealed_socket/internal/model"
	// the default transport driver
	_ "sealed_socket/internal/transport/websocket"
)

const (
	DefaultTransport = "websocket"
	DefaultPolicy    = "disconnect"
	DefaultLogLevel  = "info"
)

type (
	Connection struct {
		Token   string `yaml:"token"`
		Address string `yaml:"address"`
		Driver  string `yaml:"driver"`
		Path    string `yaml:"path"`
	}

	Client struct {
		Connection  Connection              `yaml:"connection"`
		Encryption  model.EncryptionConfig  `yaml:"encryption"`
		Compression model.CompressionConfig `yaml:"compression"`
		Log         Log                     `yaml:"log"`
	}

	Transport struct {
		Driver string `yaml:"driver"`
		Path   string `yaml:"path"`
	}

	// Presence enables Redis backed presence when RedisAddr is set.
	Presence struct {
		RedisAddr string        `yaml:"redis_addr"`
		Password  string        `yaml:"password"`
		DB        int           `yaml:"db"`
		TTL       time.Duration `yaml:"ttl"`
	}

	// Audit enables the MongoDB authentication log when MongoURI is set.
	Audit struct {
		MongoURI   string `yaml:"mongo_uri"`
		Database   string `yaml:"database"`
		Collection string `yaml:"collection"`
	}

	Log struct {
		Level       string `yaml:"level"`
		Development bool   `yaml:"development"`
	}

	Server struct {
		Port int `yaml:"port"`
		// Key is the static private key. KeyFile is read when Key is empty.
		Key                    string    `yaml:"key"`
		KeyFile                string    `yaml:"key_file"`
		RefuseUnsignedID       bool      `yaml:"refuse_unsigned_id"`
		OnFailedAuthentication string    `yaml:"on_failed_authentication"`
		Transport              Transport `yaml:"transport"`
		Presence               Presence  `yaml:"presence"`
		Audit                  Audit     `yaml:"audit"`
		Log                    Log       `yaml:"log"`
		// Tokens accepted by the default verifier of cmd/server. Empty
		// accepts any token.
		Tokens []string `yaml:"tokens"`
	}
)

func LoadServer(path string) (*Server, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.KindConfig, err, "read config file")
	}
	return ParseServer(data)
}

// ParseServer decodes, defaults and validates a server configuration.
func ParseServer(data []byte) (*Server, error) {
	var cfg Server
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errs.Wrap(errs.KindConfig, err, "parse config file")
	}

	cfg.ApplyDefaults()
	if cfg.Key == "" && cfg.KeyFile != "" {
		key, err := os.ReadFile(cfg.KeyFile)
		if err != nil {
			return nil, errs.Wrap(errs.KindConfig, err, "read key_file")
		}
		cfg.Key = strings.TrimSpace(string(key))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func LoadClient(path string) (*Client, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.KindConfig, err, "read config file")
	}
	return ParseClient(data)
}

func ParseClient(data []byte) (*Client, error) {
	var cfg Client
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errs.Wrap(errs.KindConfig, err, "parse config file")
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (s *Server) ApplyDefaults() {
	if s.OnFailedAuthentication == "" {
		s.OnFailedAuthentication = DefaultPolicy
	}
	if s.Transport.Driver == "" {
		s.Transport.Driver = DefaultTransport
	}
	if s.Audit.Database == "" {
		s.Audit.Database = "sealed_socket"
	}
	if s.Audit.Collection == "" {
		s.Audit.Collection = "auth_attempts"
	}
	s.Log.applyDefaults()
}

// Addr is the listen address for Port.
func (s *Server) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

func (c *Client) ApplyDefaults() {
	if c.Connection.Driver == "" {
		c.Connection.Driver = DefaultTransport
	}
	// an omitted compression section means no compression
	if !c.Compression.Disabled && c.Compression.Driver == "" {
		c.Compression.Disabled = true
	}
	c.Log.applyDefaults()
}

func (l *Log) applyDefaults() {
	if l.Level == "" {
		l.Level = DefaultLogLevel
	}
}
