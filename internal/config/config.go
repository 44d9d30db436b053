package config

import (
	"time"

	"github.com/parleyhq/parley/logging"
)

const (
	StoreBackendMemory = "memory"
	StoreBackendRedis  = "redis"
)

// Config represents the application configuration
type Config struct {
	Server  ServerConfig   `json:"server" yaml:"server"`
	Socket  SocketConfig   `json:"socket" yaml:"socket"`
	Store   StoreConfig    `json:"store" yaml:"store"`
	Logging logging.Config `json:"logging" yaml:"logging"`
}

// ServerConfig represents the HTTP server configuration
type ServerConfig struct {
	Host         string   `json:"host" yaml:"host"`
	Port         int      `json:"port" yaml:"port"`
	ReadTimeout  Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout Duration `json:"write_timeout" yaml:"write_timeout"`
	IdleTimeout  Duration `json:"idle_timeout" yaml:"idle_timeout"`
}

// SocketConfig represents per-websocket-connection limits
type SocketConfig struct {
	ReadTimeout     Duration `json:"read_timeout" yaml:"read_timeout"`
	MaxMessageSize  int64    `json:"max_message_size" yaml:"max_message_size"`
	ReadBufferSize  int      `json:"read_buffer_size" yaml:"read_buffer_size"`
	WriteBufferSize int      `json:"write_buffer_size" yaml:"write_buffer_size"`
}

// StoreConfig selects and configures the message store backend
type StoreConfig struct {
	Backend string      `json:"backend" yaml:"backend"`
	Redis   RedisConfig `json:"redis" yaml:"redis"`
}

// RedisConfig represents the Redis connection settings
type RedisConfig struct {
	Addr      string `json:"addr" yaml:"addr"`
	Password  string `json:"password,omitempty" yaml:"password,omitempty"`
	DB        int    `json:"db" yaml:"db"`
	KeyPrefix string `json:"key_prefix" yaml:"key_prefix"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "localhost",
			Port:         3000,
			ReadTimeout:  Duration(30 * time.Second),
			WriteTimeout: Duration(30 * time.Second),
			IdleTimeout:  Duration(120 * time.Second),
		},
		Socket: SocketConfig{
			ReadTimeout:     0,
			MaxMessageSize:  512 * 1024,
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		Store: StoreConfig{
			Backend: StoreBackendMemory,
			Redis: RedisConfig{
				Addr:      "localhost:6379",
				KeyPrefix: "parley",
			},
		},
		Logging: logging.Config{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return NewConfigError("server.port", "invalid port number")
	}

	if c.Server.ReadTimeout < 0 {
		return NewConfigError("server.read_timeout", "timeout cannot be negative")
	}

	if c.Server.WriteTimeout < 0 {
		return NewConfigError("server.write_timeout", "timeout cannot be negative")
	}

	if c.Socket.MaxMessageSize <= 0 {
		return NewConfigError("socket.max_message_size", "must be positive")
	}

	switch c.Store.Backend {
	case StoreBackendMemory:
	case StoreBackendRedis:
		if c.Store.Redis.Addr == "" {
			return NewConfigError("store.redis.addr", "address is required for the redis backend")
		}
	default:
		return NewConfigError("store.backend", "must be \"memory\" or \"redis\"")
	}

	return nil
}
