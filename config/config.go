package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/webitel/grade-exporter/internal/errors"
)

type AppConfig struct {
	File     string          `json:"-"`
	Consul   *ConsulConfig   `json:"consul,omitempty"`
	Redis    *RedisConfig    `json:"redis,omitempty"`
	Database *DatabaseConfig `json:"database,omitempty"`
	Source   *SourceConfig   `json:"source,omitempty"`
	Sink     *SinkConfig     `json:"sink,omitempty"`
	Export   *ExportConfig   `json:"export,omitempty"`
	Nats     *NatsConfig     `json:"nats,omitempty"`
}

type ConsulConfig struct {
	Id            string `json:"id"`
	Address       string `json:"address"`
	PublicAddress string `json:"publicAddress"`
}

type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type DatabaseConfig struct {
	Url string `json:"url"`
}

// SourceConfig points at the host gradebook database (read-only) and
// names the roles whose holders are gradable.
type SourceConfig struct {
	Url   string  `json:"url"`
	Roles []int64 `json:"roles"`
}

// SinkConfig points at the external database receiving grades. Timeout
// bounds one import call; a timed-out record is a per-record error,
// not a pipeline abort.
type SinkConfig struct {
	Url     string        `json:"url"`
	Timeout time.Duration `json:"timeout"`
}

type ExportConfig struct {
	Workers  int    `json:"workers"`
	Schedule string `json:"schedule"`
}

type NatsConfig struct {
	Addr string `json:"addr"`
}

func LoadConfig() (*AppConfig, error) {
	bindFlagsAndEnv()

	configFile := getConfigFilePath()
	if configFile != "" {
		if err := loadFromFile(configFile); err != nil {
			return nil, err
		}
	}

	cfg, err := buildAppConfig(configFile)
	if err != nil {
		return nil, err
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func bindFlagsAndEnv() {
	pflag.String("config_file", "", "Configuration file in JSON format")

	// database
	pflag.String("data_source", "", "Data source")
	pflag.String("gradebook_source", "", "Host gradebook data source (read-only)")
	pflag.String("gradebook_roles", "5", "Comma-separated role ids eligible for grading")
	pflag.String("sink_source", "", "External sink data source")
	pflag.Int("sink_timeout", 5000, "Per-record sink import timeout in milliseconds")

	// consul
	pflag.String("id", "", "Service id")
	pflag.String("consul", "", "Host to consul")
	pflag.String("grpc_addr", "", "Public gRPC address with port")

	// redis
	pflag.String("redis_addr", "localhost:6379", "Redis address")
	pflag.String("redis_password", "", "Redis password")
	pflag.Int("redis_db", 0, "Redis DB number")

	// export
	pflag.Int("workers", 4, "Number of concurrent export workers")
	pflag.String("export_schedule", "@hourly", "Cron spec for automated query exports")

	// nats
	pflag.String("nats_addr", "", "NATS address for the event forwarder (optional)")

	pflag.Parse()

	_ = viper.BindPFlags(pflag.CommandLine)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Explicit mapping
	_ = viper.BindEnv("id", "CONSUL_ID")
	_ = viper.BindEnv("consul", "CONSUL_HOST")
	_ = viper.BindEnv("grpc_addr", "GRPC_ADDR")
	_ = viper.BindEnv("redis_addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis_password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis_db", "REDIS_DB")
	_ = viper.BindEnv("gradebook_source", "GRADEBOOK_SOURCE")
	_ = viper.BindEnv("gradebook_roles", "GRADEBOOK_ROLES")
	_ = viper.BindEnv("sink_source", "SINK_SOURCE")
	_ = viper.BindEnv("nats_addr", "NATS_ADDR")
}

func getConfigFilePath() string {
	file := viper.GetString("config_file")
	if file == "" {
		file = os.Getenv("GRADE_EXPORTER_CONFIG_FILE")
	}
	return file
}

func loadFromFile(path string) error {
	viper.SetConfigFile(path)
	viper.SetConfigType("json")
	if err := viper.ReadInConfig(); err != nil {
		return errors.New(fmt.Sprintf("could not load config file: %s", err.Error()))
	}
	return nil
}

func buildAppConfig(file string) (*AppConfig, error) {
	roles, err := parseRoles(viper.GetString("gradebook_roles"))
	if err != nil {
		return nil, err
	}

	return &AppConfig{
		File:     file,
		Database: &DatabaseConfig{Url: viper.GetString("data_source")},
		Source: &SourceConfig{
			Url:   viper.GetString("gradebook_source"),
			Roles: roles,
		},
		Sink: &SinkConfig{
			Url:     viper.GetString("sink_source"),
			Timeout: time.Duration(viper.GetInt("sink_timeout")) * time.Millisecond,
		},
		Export: &ExportConfig{
			Workers:  viper.GetInt("workers"),
			Schedule: viper.GetString("export_schedule"),
		},
		Consul: &ConsulConfig{
			Id:            viper.GetString("id"),
			Address:       viper.GetString("consul"),
			PublicAddress: viper.GetString("grpc_addr"),
		},
		Redis: &RedisConfig{
			Addr:     viper.GetString("redis_addr"),
			Password: viper.GetString("redis_password"),
			DB:       viper.GetInt("redis_db"),
		},
		Nats: &NatsConfig{Addr: viper.GetString("nats_addr")},
	}, nil
}

func parseRoles(raw string) ([]int64, error) {
	var roles []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, errors.New(fmt.Sprintf("invalid gradebook role id: %s", part))
		}
		roles = append(roles, id)
	}
	return roles, nil
}

func validateConfig(cfg *AppConfig) error {
	if cfg.Database.Url == "" {
		return errors.New("Data source is required")
	}
	if cfg.Source.Url == "" {
		return errors.New("Gradebook source is required")
	}
	if len(cfg.Source.Roles) == 0 {
		return errors.New("At least one gradebook role is required")
	}
	if cfg.Sink.Url == "" {
		return errors.New("Sink source is required")
	}
	if cfg.Consul.Id == "" {
		return errors.New("Service id is required")
	}
	if cfg.Consul.Address == "" {
		return errors.New("Consul address is required")
	}
	if cfg.Consul.PublicAddress == "" {
		return errors.New("gRPC address is required")
	}
	if cfg.Redis.Addr == "" {
		return errors.New("Redis address is required")
	}
	return nil
}
