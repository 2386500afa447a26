package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	HTTP         HTTPConfig         `mapstructure:"http"`
	Storage      StorageConfig      `mapstructure:"storage"`
	AWS          AWSConfig          `mapstructure:"aws"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Notification NotificationConfig `mapstructure:"notification"`
	Tracing      TracingConfig      `mapstructure:"tracing"`
	Logger       LoggerConfig       `mapstructure:"logger"`
}

type HTTPConfig struct {
	Port    int           `mapstructure:"port"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type StorageConfig struct {
	Backend string `mapstructure:"backend"`
	Table   string `mapstructure:"table"`
}

type AWSConfig struct {
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"`
	Profile  string `mapstructure:"profile"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
	FenceTTL time.Duration `mapstructure:"fence_ttl"`
}

type NotificationConfig struct {
	Backend        string `mapstructure:"backend"`
	TopicArn       string `mapstructure:"topic_arn"`
	AMQPURL        string `mapstructure:"amqp_url"`
	Exchange       string `mapstructure:"exchange"`
	NotifyOnReject bool   `mapstructure:"notify_on_reject"`
	Policy         string `mapstructure:"policy"`
}

type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Endpoint    string `mapstructure:"endpoint"`
	ServiceName string `mapstructure:"service_name"`
	Environment string `mapstructure:"environment"`
	Version     string `mapstructure:"version"`
}

type LoggerConfig struct {
	Level string `mapstructure:"level"`
}

const (
	BackendDynamoDB = "dynamodb"
	BackendMySQL    = "mysql"
	// BackendMemory keeps adverts in process memory. Development only.
	BackendMemory = "memory"

	NotifierSNS      = "sns"
	NotifierRabbitMQ = "rabbitmq"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.timeout", "10s")
	v.SetDefault("storage.backend", BackendDynamoDB)
	v.SetDefault("storage.table", "Adverts")
	v.SetDefault("aws.region", "eu-west-1")
	v.SetDefault("aws.endpoint", "")
	v.SetDefault("aws.profile", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "3306")
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "adverts")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.ttl", "10m")
	v.SetDefault("redis.fence_ttl", "5s")
	v.SetDefault("notification.backend", NotifierSNS)
	v.SetDefault("notification.topic_arn", "")
	v.SetDefault("notification.amqp_url", "")
	v.SetDefault("notification.exchange", "adverts")
	v.SetDefault("notification.notify_on_reject", true)
	v.SetDefault("notification.policy", "fatal")
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.service_name", "advert-service")
	v.SetDefault("tracing.environment", "development")
	v.SetDefault("tracing.version", "dev")
	v.SetDefault("logger.level", "info")
}

// LoadConfig reads config.yaml from the given paths (the working directory
// when none are given). Environment variables prefixed ADVERT_ override file
// values, e.g. ADVERT_NOTIFICATION_TOPIC_ARN.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if len(paths) == 0 {
		paths = []string{"."}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix("ADVERT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendDynamoDB, BackendMySQL, BackendMemory:
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}

	switch c.Notification.Backend {
	case NotifierSNS:
		if c.Notification.TopicArn == "" {
			return fmt.Errorf("notification.topic_arn is required for the sns backend")
		}
	case NotifierRabbitMQ:
		if c.Notification.AMQPURL == "" || c.Notification.Exchange == "" {
			return fmt.Errorf("notification.amqp_url and notification.exchange are required for the rabbitmq backend")
		}
	default:
		return fmt.Errorf("unknown notification backend %q", c.Notification.Backend)
	}

	switch c.Notification.Policy {
	case "fatal", "best_effort":
	default:
		return fmt.Errorf("unknown notification policy %q", c.Notification.Policy)
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when redis is enabled")
	}

	if c.Redis.Enabled && c.Redis.FenceTTL <= 0 {
		return fmt.Errorf("redis.fence_ttl must be positive when redis is enabled")
	}

	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		return fmt.Errorf("tracing.endpoint is required when tracing is enabled")
	}

	return nil
}

func MustLoadConfig() *Config {
	config, err := LoadConfig()
	if err != nil {
		log.Fatalf("Could not load configuration: %v", err)
	}
	return config
}
