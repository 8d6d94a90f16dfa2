package config

import (
	"bytes"
	stdErrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ActionKit-Chain/internal/audit"
	xerrors "ActionKit-Chain/internal/errors"
	"ActionKit-Chain/internal/network"
	"ActionKit-Chain/internal/providers"
	"ActionKit-Chain/internal/providers/across"
	"ActionKit-Chain/internal/providers/opensea"
	"ActionKit-Chain/internal/providers/x402"
	storagemysql "ActionKit-Chain/internal/storage/mysql"
	storageredis "ActionKit-Chain/internal/storage/redis"
	"ActionKit-Chain/pkg/logger"

	"gopkg.in/yaml.v3"
)

// Environment variables read by Load and FromEnvironment.
const (
	EnvConfigPath = "ACTIONKIT_CONFIG"
	EnvPrivateKey = "PRIVATE_KEY"
	EnvRPCURL     = "RPC_URL"
	EnvNetworkID  = "NETWORK_ID"
	EnvAPIToken   = "ACTIONKIT_API_TOKEN"
	EnvMySQLDSN   = "ACTIONKIT_MYSQL_DSN"
	EnvRedisAddr  = "ACTIONKIT_REDIS_ADDR"
)

// DefaultPath is used when ACTIONKIT_CONFIG is unset.
const DefaultPath = "configs/actionkit.yaml"

// Config is the daemon configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Logging   logger.Config   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Wallet    WalletConfig    `yaml:"wallet"`
	Providers ProvidersConfig `yaml:"providers"`
	Storage   StorageConfig   `yaml:"storage"`
	Audit     AuditConfig     `yaml:"audit"`
	Redis     RedisConfig     `yaml:"redis"`
	Alerting  AlertingConfig  `yaml:"alerting"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Address      string        `yaml:"address" validate:"required"`
	AuthToken    string        `yaml:"auth_token"`
	ReadTimeout  time.Duration `yaml:"read_timeout" validate:"gte=0"`
	WriteTimeout time.Duration `yaml:"write_timeout" validate:"gte=0"`
}

// MetricsConfig controls the standalone /metrics listener.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address" validate:"required_if=Enabled true"`
}

// WalletConfig selects the signing key and the chain.
type WalletConfig struct {
	NetworkID    string        `yaml:"network_id" validate:"required"`
	RPCURL       string        `yaml:"rpc_url"`
	PrivateKey   string        `yaml:"private_key"`
	PollInterval time.Duration `yaml:"poll_interval" validate:"gte=0"`
}

// Network resolves NetworkID, keeping unknown ids as EVM networks.
func (w WalletConfig) Network() network.Network {
	if n, ok := network.Lookup(w.NetworkID); ok {
		return n
	}
	return network.Network{NetworkID: w.NetworkID, ProtocolFamily: network.FamilyEVM}
}

// ProvidersConfig lists the providers to register, in order, and their
// settings. Provider sections are validated by the providers themselves.
type ProvidersConfig struct {
	Enabled []string       `yaml:"enabled" validate:"dive,oneof=wallet erc20 aave opensea across x402"`
	OpenSea opensea.Config `yaml:"opensea" validate:"-"`
	Across  across.Config  `yaml:"across" validate:"-"`
	X402    x402.Config    `yaml:"x402" validate:"-"`
}

// StorageConfig selects the invocation repository.
type StorageConfig struct {
	Driver  string              `yaml:"driver" validate:"oneof=memory mysql"`
	DataDir string              `yaml:"data_dir"`
	MySQL   storagemysql.Config `yaml:"mysql" validate:"-"`
}

// AuditConfig selects the queue between dispatcher and repository.
type AuditConfig struct {
	Queue          string                 `yaml:"queue" validate:"oneof=memory redis rabbitmq"`
	Workers        int                    `yaml:"workers" validate:"gte=0"`
	BufferSize     int                    `yaml:"buffer_size" validate:"gte=0"`
	PublishTimeout time.Duration          `yaml:"publish_timeout" validate:"gte=0"`
	Redis          audit.RedisQueueConfig `yaml:"redis" validate:"-"`
	RabbitMQ       audit.RabbitMQConfig   `yaml:"rabbitmq" validate:"-"`
}

// RedisConfig is the shared Redis connection. It backs the x402 service
// registry and discovery cache and the redis audit queue.
type RedisConfig struct {
	Enabled             bool `yaml:"enabled"`
	storageredis.Config `yaml:",inline" validate:"-"`
}

// AlertingConfig controls failure notifications.
type AlertingConfig struct {
	Log        bool          `yaml:"log"`
	WebhookURL string        `yaml:"webhook_url" validate:"omitempty,url"`
	Timeout    time.Duration `yaml:"timeout" validate:"gte=0"`
}

// FromEnvironment loads ACTIONKIT_CONFIG, or DefaultPath. A missing
// default file yields the defaults plus environment overrides.
func FromEnvironment() (*Config, error) {
	path := strings.TrimSpace(os.Getenv(EnvConfigPath))
	if path != "" {
		return Load(path)
	}
	if _, err := os.Stat(DefaultPath); stdErrors.Is(err, os.ErrNotExist) {
		cfg := &Config{}
		return cfg, cfg.finish(".")
	}
	return Load(DefaultPath)
}

// Load parses the YAML file at path. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, xerrors.Configuration("config path is empty")
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeConfiguration, err, "read config file")
	}
	cfg, err := Parse(content)
	if err != nil {
		return nil, err
	}
	if err := cfg.finish(filepath.Dir(path)); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML without defaults, overrides or validation.
func Parse(content []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !stdErrors.Is(err, io.EOF) {
		return nil, xerrors.Wrap(xerrors.CodeConfiguration, err, "parse config")
	}
	return &cfg, nil
}

func (c *Config) finish(baseDir string) error {
	c.applyDefaults(baseDir)
	c.applyEnv()
	return c.Validate()
}

func (c *Config) applyDefaults(baseDir string) {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 2 * time.Minute
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Metrics.Enabled && c.Metrics.Address == "" {
		c.Metrics.Address = ":9090"
	}
	if c.Wallet.NetworkID == "" {
		c.Wallet.NetworkID = network.BaseSepolia
	}
	if len(c.Providers.Enabled) == 0 {
		c.Providers.Enabled = []string{"wallet", "erc20"}
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	c.Storage.DataDir = resolve(baseDir, c.Storage.DataDir, "data")
	if c.Logging.Audit.Enabled {
		c.Logging.Audit.Path = resolve(baseDir, c.Logging.Audit.Path, filepath.Join("logs", "audit.log"))
	}
	if c.Audit.Queue == "" {
		c.Audit.Queue = "memory"
	}
	if c.Audit.Workers == 0 {
		c.Audit.Workers = 1
	}
	if c.Alerting.Timeout == 0 {
		c.Alerting.Timeout = 10 * time.Second
	}
}

// resolve makes value absolute against baseDir, using def when empty.
func resolve(baseDir, value, def string) string {
	if value == "" {
		value = def
	}
	if filepath.IsAbs(value) {
		return value
	}
	return filepath.Join(baseDir, value)
}

func (c *Config) applyEnv() {
	c.Wallet.PrivateKey = override(c.Wallet.PrivateKey, EnvPrivateKey)
	c.Wallet.RPCURL = override(c.Wallet.RPCURL, EnvRPCURL)
	c.Wallet.NetworkID = override(c.Wallet.NetworkID, EnvNetworkID)
	c.Server.AuthToken = override(c.Server.AuthToken, EnvAPIToken)
	c.Storage.MySQL.DSN = override(c.Storage.MySQL.DSN, EnvMySQLDSN)
	c.Redis.Address = override(c.Redis.Address, EnvRedisAddr)
	c.Providers.OpenSea.APIKey = providers.Env(c.Providers.OpenSea.APIKey, opensea.EnvAPIKey)
}

// override prefers a non blank environment value over the file value.
func override(value, key string) string {
	if env := strings.TrimSpace(os.Getenv(key)); env != "" {
		return env
	}
	return value
}

// Validate checks the configuration and the sections the selected
// backends need.
func (c *Config) Validate() error {
	if err := providers.Validate("actionkit", c); err != nil {
		return err
	}
	if c.Storage.Driver == "mysql" {
		if err := providers.Validate("storage.mysql", c.Storage.MySQL); err != nil {
			return err
		}
	}
	if c.Audit.Queue == "rabbitmq" {
		if err := providers.Validate("audit.rabbitmq", c.Audit.RabbitMQ); err != nil {
			return err
		}
	}
	if c.Audit.Queue == "redis" && !c.Redis.Enabled {
		return xerrors.Configuration("audit.queue redis needs redis.enabled")
	}
	if c.Redis.Enabled {
		if err := providers.Validate("redis", c.Redis.Config); err != nil {
			return err
		}
	}
	return nil
}

// ProviderEnabled reports whether name is listed in providers.enabled.
func (c *Config) ProviderEnabled(name string) bool {
	for _, n := range c.Providers.Enabled {
		if n == name {
			return true
		}
	}
	return false
}

func (c *Config) String() string {
	return fmt.Sprintf("config{server=%s network=%s providers=%v storage=%s audit=%s}",
		c.Server.Address, c.Wallet.NetworkID, c.Providers.Enabled, c.Storage.Driver, c.Audit.Queue)
}
