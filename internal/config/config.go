package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment variable, e.g. SHOPLIST_STORE_DRIVER.
const EnvPrefix = "SHOPLIST"

const (
	DriverMemory = "memory"
	DriverMongo  = "mongo"

	LiveChangeStream = "changestream"
	LiveRedis        = "redis"
)

// Config holds all shoplist configuration.
// Fields carry no envconfig defaults. Defaults() and the YAML
// file fill them, env vars only override what they name.
type Config struct {
	DataDir  string         `yaml:"data_dir" envconfig:"SHOPLIST_DATA_DIR"`
	Store    StoreConfig    `yaml:"store"`
	Redis    RedisConfig    `yaml:"redis"`
	Identity IdentityConfig `yaml:"identity"`
	Share    ShareConfig    `yaml:"share"`
	Log      LogConfig      `yaml:"log"`
	Timeouts TimeoutsConfig `yaml:"timeouts"`
}

type StoreConfig struct {
	Driver        string `yaml:"driver" envconfig:"SHOPLIST_STORE_DRIVER"`
	MongoURI      string `yaml:"mongo_uri" envconfig:"SHOPLIST_MONGO_URI"`
	MongoDatabase string `yaml:"mongo_database" envconfig:"SHOPLIST_MONGO_DATABASE"`
	Collection    string `yaml:"collection" envconfig:"SHOPLIST_STORE_COLLECTION"`
	Live          string `yaml:"live" envconfig:"SHOPLIST_STORE_LIVE"` // changestream | redis
}

type RedisConfig struct {
	URL           string `yaml:"url" envconfig:"SHOPLIST_REDIS_URL"`
	ChannelPrefix string `yaml:"channel_prefix" envconfig:"SHOPLIST_REDIS_CHANNEL_PREFIX"`
}

// IdentityConfig tunes token sign-in. Without a secret, tokens are decoded
// but not verified.
type IdentityConfig struct {
	Secret string `yaml:"secret" envconfig:"SHOPLIST_IDENTITY_SECRET"`
	Issuer string `yaml:"issuer" envconfig:"SHOPLIST_IDENTITY_ISSUER"`
}

type ShareConfig struct {
	Origin string `yaml:"origin" envconfig:"SHOPLIST_SHARE_ORIGIN"`
	Param  string `yaml:"param" envconfig:"SHOPLIST_SHARE_PARAM"`
}

type LogConfig struct {
	Level string `yaml:"level" envconfig:"SHOPLIST_LOG_LEVEL"`
	File  string `yaml:"file" envconfig:"SHOPLIST_LOG_FILE"` // "-" for stderr
}

type TimeoutsConfig struct {
	Short time.Duration `yaml:"short" envconfig:"SHOPLIST_TIMEOUT_SHORT"`
	Batch time.Duration `yaml:"batch" envconfig:"SHOPLIST_TIMEOUT_BATCH"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		DataDir: defaultDataDir(),
		Store: StoreConfig{
			Driver:        DriverMemory,
			MongoDatabase: "shoplist",
			Collection:    "items",
			Live:          LiveChangeStream,
		},
		Redis: RedisConfig{ChannelPrefix: "shoplist"},
		Share: ShareConfig{Origin: "https://shoplist.app/", Param: "list"},
		Log:   LogConfig{Level: "info"},
		Timeouts: TimeoutsConfig{
			Short: 5 * time.Second,
			Batch: 30 * time.Second,
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".shoplist"
	}
	return filepath.Join(home, ".shoplist")
}

// Load layers defaults, the YAML file, .env and the environment.
// The YAML file is $SHOPLIST_CONFIG or <data dir>/config.yaml; a missing file is fine.
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := Defaults()
	if dir := os.Getenv(EnvPrefix + "_DATA_DIR"); dir != "" {
		cfg.DataDir = dir
	}

	path := os.Getenv(EnvPrefix + "_CONFIG")
	if path == "" {
		path = filepath.Join(cfg.DataDir, "config.yaml")
	}
	if err := loadFile(path, &cfg); err != nil {
		return nil, err
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadFile(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// Validate rejects combinations that cannot start.
func (c *Config) Validate() error {
	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	c.Store.Live = strings.ToLower(strings.TrimSpace(c.Store.Live))

	var problems []string
	switch c.Store.Driver {
	case DriverMemory:
	case DriverMongo:
		if c.Store.MongoURI == "" {
			problems = append(problems, "store.mongo_uri is required for the mongo driver")
		}
		switch c.Store.Live {
		case LiveChangeStream:
		case LiveRedis:
			if c.Redis.URL == "" {
				problems = append(problems, "redis.url is required when store.live is redis")
			}
		default:
			problems = append(problems, fmt.Sprintf("unknown store.live %q", c.Store.Live))
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown store.driver %q", c.Store.Driver))
	}
	if c.DataDir == "" {
		problems = append(problems, "data_dir is required")
	}
	if strings.TrimSpace(c.Share.Param) == "" {
		problems = append(problems, "share.param is required")
	}
	if c.Timeouts.Short <= 0 || c.Timeouts.Batch <= 0 {
		problems = append(problems, "timeouts must be positive")
	}
	if len(problems) > 0 {
		return errors.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// LogPath resolves the log destination; "-" means stderr.
func (c *Config) LogPath() string {
	switch c.Log.File {
	case "-":
		return "-"
	case "":
		return filepath.Join(c.DataDir, "shoplist.log")
	default:
		return c.Log.File
	}
}
