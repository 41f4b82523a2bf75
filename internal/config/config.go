package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Exchange struct {
		Name              string  `yaml:"name"` // "coinbase" or "paper"
		KeyName           string  `yaml:"key_name"`
		PrivateKey        string  `yaml:"private_key"`
		PrivateKeyFile    string  `yaml:"private_key_file"`
		RESTHost          string  `yaml:"rest_host"`
		WSEndpoint        string  `yaml:"ws_endpoint"`
		USDAccountID      string  `yaml:"usd_account_id"`
		UseWebsocket      bool    `yaml:"use_websocket"`
		RequestsPerSecond float64 `yaml:"requests_per_second"`
	} `yaml:"exchange"`
	Paper struct {
		USD          float64            `yaml:"usd"`
		Holdings     map[string]float64 `yaml:"holdings"`
		Prices       map[string]float64 `yaml:"prices"`
		MinOrderSize map[string]float64 `yaml:"min_order_size"`
	} `yaml:"paper"`
	Trading struct {
		PollIntervalMs   int    `yaml:"poll_interval_ms"`
		RecordEveryTicks int    `yaml:"record_every_ticks"`
		SettingsDir      string `yaml:"settings_dir"`
		BackupDir        string `yaml:"backup_dir"`
		DBPath           string `yaml:"db_path"`
	} `yaml:"trading"`
	Logging struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"logging"`
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
}

// Load reads a YAML config file and fills in defaults for unset fields.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Exchange.Name == "" {
		c.Exchange.Name = "paper"
	}
	if c.Exchange.RESTHost == "" {
		c.Exchange.RESTHost = "api.coinbase.com"
	}
	if c.Exchange.WSEndpoint == "" {
		c.Exchange.WSEndpoint = "wss://advanced-trade-ws.coinbase.com"
	}
	if c.Exchange.RequestsPerSecond <= 0 {
		c.Exchange.RequestsPerSecond = 10
	}
	if c.Trading.PollIntervalMs <= 0 {
		c.Trading.PollIntervalMs = 1000
	}
	if c.Trading.RecordEveryTicks <= 0 {
		c.Trading.RecordEveryTicks = 300
	}
	if c.Trading.SettingsDir == "" {
		c.Trading.SettingsDir = "config/settings"
	}
	if c.Trading.BackupDir == "" {
		c.Trading.BackupDir = "crypto_records_backup"
	}
	if c.Trading.DBPath == "" {
		c.Trading.DBPath = "bot.db"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
}

func (c *Config) validate() error {
	switch c.Exchange.Name {
	case "paper":
	case "coinbase":
		if c.Exchange.KeyName == "" {
			return fmt.Errorf("exchange.key_name is required for coinbase")
		}
		if c.Exchange.PrivateKey == "" && c.Exchange.PrivateKeyFile == "" {
			return fmt.Errorf("exchange.private_key or exchange.private_key_file is required for coinbase")
		}
	default:
		return fmt.Errorf("unknown exchange %q", c.Exchange.Name)
	}
	return nil
}

// PrivateKeyPEM returns the inline key or the contents of the key file.
func (c *Config) PrivateKeyPEM() (string, error) {
	if c.Exchange.PrivateKey != "" {
		return c.Exchange.PrivateKey, nil
	}
	data, err := os.ReadFile(c.Exchange.PrivateKeyFile)
	if err != nil {
		return "", fmt.Errorf("failed to read private key: %w", err)
	}
	return string(data), nil
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Trading.PollIntervalMs) * time.Millisecond
}
