package config

import (
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	Env       string `mapstructure:"env"`
	Port      int    `mapstructure:"port"`
	JWTSecret string `mapstructure:"jwt_secret"`
	UDXSecret string `mapstructure:"udx_secret"`
}

type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type KafkaConfig struct {
	Brokers         []string `mapstructure:"brokers"`
	TopicOrgMessage string   `mapstructure:"topic_org_message"`
}

type RateLimitConfig struct {
	Requests      int `mapstructure:"requests"`
	WindowSeconds int `mapstructure:"window_seconds"`
}

type WSConfig struct {
	PingIntervalSeconds  int   `mapstructure:"ping_interval_seconds"`
	WriteDeadlineSeconds int   `mapstructure:"write_deadline_seconds"`
	MaxMessageSizeBytes  int64 `mapstructure:"max_message_size_bytes"`
	PollWaitSeconds      int   `mapstructure:"poll_wait_seconds"`
	PollSessionTTLSecs   int   `mapstructure:"poll_session_ttl_seconds"`
}

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Mongo     MongoConfig     `mapstructure:"mongo"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	WS        WSConfig        `mapstructure:"ws"`

	// derived
	PingInterval   time.Duration
	WriteDeadline  time.Duration
	PollWait       time.Duration
	PollSessionTTL time.Duration
	RateWindow     time.Duration
}

func (c *Config) Development() bool { return c.App.Env != "production" }

func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}
	applyDefaults(&c)
	return &c, nil
}

func applyDefaults(c *Config) {
	if c.App.Port == 0 {
		c.App.Port = 3004
	}
	if c.WS.PingIntervalSeconds == 0 {
		c.WS.PingIntervalSeconds = 25
	}
	if c.WS.WriteDeadlineSeconds == 0 {
		c.WS.WriteDeadlineSeconds = 10
	}
	if c.WS.MaxMessageSizeBytes == 0 {
		c.WS.MaxMessageSizeBytes = 65536
	}
	if c.WS.PollWaitSeconds == 0 {
		c.WS.PollWaitSeconds = 20
	}
	if c.WS.PollSessionTTLSecs == 0 {
		c.WS.PollSessionTTLSecs = 60
	}
	// 150 requests per 4 minutes unless overridden
	if c.RateLimit.Requests == 0 {
		c.RateLimit.Requests = 150
	}
	if c.RateLimit.WindowSeconds == 0 {
		c.RateLimit.WindowSeconds = 240
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = "udx"
	}
	if c.Kafka.TopicOrgMessage == "" {
		c.Kafka.TopicOrgMessage = "udx.org.messages"
	}
	c.PingInterval = time.Duration(c.WS.PingIntervalSeconds) * time.Second
	c.WriteDeadline = time.Duration(c.WS.WriteDeadlineSeconds) * time.Second
	c.PollWait = time.Duration(c.WS.PollWaitSeconds) * time.Second
	c.PollSessionTTL = time.Duration(c.WS.PollSessionTTLSecs) * time.Second
	c.RateWindow = time.Duration(c.RateLimit.WindowSeconds) * time.Second
}
