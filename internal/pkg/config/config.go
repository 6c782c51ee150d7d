package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port      string `env:"PORT,      default=8080"`
	Env       string `env:"ENV,       default=development"`
	JWTSecret string `env:"JWT_SECRET"`
	LogLevel  string `env:"LOG_LEVEL, default=info"`

	Session SessionConfig
	Gateway GatewayConfig
	Probe   ProbeConfig
	Mongo   MongoConfig
	Redis   RedisConfig
}

type SessionConfig struct {
	// TokenSecret signs relay session tokens. Must match the secret the
	// account-resolution collaborators verify against.
	TokenSecret string `env:"SESSION_TOKEN_SECRET"`
	// TokenTTL bounds token lifetime; 0 issues non-expiring tokens.
	TokenTTL time.Duration `env:"SESSION_TOKEN_TTL, default=0"`
}

type GatewayConfig struct {
	// AgentSecret authenticates node agents on the sync endpoint and is sent
	// with entry-domain health probes.
	AgentSecret string `env:"AGENT_SECRET"`
	// UsageSecret authenticates callers of the usage report endpoint.
	UsageSecret string `env:"USAGE_REPORT_SECRET"`

	BackendScheme   string        `env:"BACKEND_SCHEME,       default=wss"`
	BackendPath     string        `env:"BACKEND_PATH,         default=/sp-ws"`
	DialTimeout     time.Duration `env:"BACKEND_DIAL_TIMEOUT, default=10s"`
	PortRangeStart  int           `env:"PORT_RANGE_START,     default=10000"`
	PortRangeEnd    int           `env:"PORT_RANGE_END,       default=50000"`
	AllocatorShards int           `env:"ALLOCATOR_SHARDS,     default=8"`
}

type ProbeConfig struct {
	Interval time.Duration `env:"PROBE_INTERVAL, default=60s"`
	Timeout  time.Duration `env:"PROBE_TIMEOUT,  default=10s"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=relay_gateway"`
}

type RedisConfig struct {
	Addr string `env:"REDIS_ADDR, default=localhost:6379"`
	DB   int    `env:"REDIS_DB,   default=0"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load() *Config {
	var cfg Config
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return &cfg
}
