package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Admin    AdminConfig    `mapstructure:"admin"`
	Redis    RedisConfig    `mapstructure:"redis"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	Leader   LeaderConfig   `mapstructure:"leader"`
	Instance InstanceConfig `mapstructure:"instance"`
	Bidding  BiddingConfig  `mapstructure:"bidding"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

type AdminConfig struct {
	Port int `mapstructure:"port"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MySQLConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type LeaderConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type InstanceConfig struct {
	ID string `mapstructure:"id"`
}

type BiddingConfig struct {
	// ExtensionWindow drives sniper protection: a bid accepted within this
	// window before a lot's end time pushes the end time to
	// acceptance + window.
	ExtensionWindow time.Duration `mapstructure:"extension_window"`
	// ClosingThreshold is when a lot's status flips from open to closing.
	ClosingThreshold time.Duration `mapstructure:"closing_threshold"`
	// MaxExtensions caps sniper extensions per lot; 0 means unbounded.
	MaxExtensions int `mapstructure:"max_extensions"`
	// CommitTimeout bounds how long a bid waits for a lot's commit section.
	CommitTimeout time.Duration `mapstructure:"commit_timeout"`
	// SubscriberQueueSize bounds each connection's outbound event queue.
	SubscriberQueueSize int `mapstructure:"subscriber_queue_size"`
	// LotDuration and LotStagger give each new lot a default end time of
	// auction start + duration + sequence * stagger.
	LotDuration time.Duration `mapstructure:"lot_duration"`
	LotStagger  time.Duration `mapstructure:"lot_stagger"`
}

func Load() (*Config, error) {
	// Set default values
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("admin.port", 8081)
	viper.SetDefault("redis.address", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("mysql.dsn", "auction_user:auction_pass@tcp(localhost:3306)/auction_db?parseTime=true")
	viper.SetDefault("mysql.max_open_conns", 25)
	viper.SetDefault("mysql.max_idle_conns", 10)
	viper.SetDefault("mysql.conn_max_lifetime", 5*time.Minute)
	viper.SetDefault("leader.ttl", 30*time.Second)
	viper.SetDefault("instance.id", "bidding-engine-1")
	viper.SetDefault("bidding.extension_window", 30*time.Second)
	viper.SetDefault("bidding.closing_threshold", 60*time.Second)
	viper.SetDefault("bidding.max_extensions", 0)
	viper.SetDefault("bidding.commit_timeout", 2*time.Second)
	viper.SetDefault("bidding.subscriber_queue_size", 64)
	viper.SetDefault("bidding.lot_duration", 10*time.Minute)
	viper.SetDefault("bidding.lot_stagger", 2*time.Minute)

	// Configuration file settings
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/auction-core/")

	// Environment variable support
	viper.AutomaticEnv()

	// Environment variable mappings
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.host", "SERVER_HOST")
	viper.BindEnv("admin.port", "ADMIN_PORT")
	viper.BindEnv("redis.address", "REDIS_ADDRESS")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")
	viper.BindEnv("mysql.dsn", "MYSQL_DSN")
	viper.BindEnv("mysql.max_open_conns", "MYSQL_MAX_OPEN_CONNS")
	viper.BindEnv("mysql.max_idle_conns", "MYSQL_MAX_IDLE_CONNS")
	viper.BindEnv("mysql.conn_max_lifetime", "MYSQL_CONN_MAX_LIFETIME")
	viper.BindEnv("leader.ttl", "LEADER_TTL")
	viper.BindEnv("instance.id", "INSTANCE_ID")
	viper.BindEnv("bidding.extension_window", "BIDDING_EXTENSION_WINDOW")
	viper.BindEnv("bidding.closing_threshold", "BIDDING_CLOSING_THRESHOLD")
	viper.BindEnv("bidding.max_extensions", "BIDDING_MAX_EXTENSIONS")
	viper.BindEnv("bidding.commit_timeout", "BIDDING_COMMIT_TIMEOUT")
	viper.BindEnv("bidding.subscriber_queue_size", "BIDDING_SUBSCRIBER_QUEUE_SIZE")
	viper.BindEnv("bidding.lot_duration", "BIDDING_LOT_DURATION")
	viper.BindEnv("bidding.lot_stagger", "BIDDING_LOT_STAGGER")

	// Read configuration file (optional - will use defaults/env vars if not found)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		// Config file not found, continue with defaults and environment variables
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// GetConfigString returns a formatted string representation of the config
func (c *Config) GetConfigString() string {
	return fmt.Sprintf(
		"Server: %s:%d, Admin: %d, Redis: %s, MySQL: %s, Instance: %s",
		c.Server.Host,
		c.Server.Port,
		c.Admin.Port,
		c.Redis.Address,
		c.MySQL.DSN,
		c.Instance.ID,
	)
}
