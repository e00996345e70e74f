package config

import (
	"log"

	"github.com/spf13/viper"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Business BusinessConfig `mapstructure:"business"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	PointsEvents   string `mapstructure:"points_events"`
	RewardRedeemed string `mapstructure:"reward_redeemed"`
}

// BusinessConfig holds the tunable business rules: how many points each
// event earns, the catalog page size and the background job knobs.
type BusinessConfig struct {
	RegistrationPoints   int    `mapstructure:"registration_points"`
	MissingReportPoints  int    `mapstructure:"missing_report_points"`
	SightingReportPoints int    `mapstructure:"sighting_report_points"`
	SocialSharePoints    int    `mapstructure:"social_share_points"`
	RewardPageSize       int    `mapstructure:"reward_page_size"`
	HistoryLimit         int    `mapstructure:"history_limit"`
	VoucherSweepMinutes  int    `mapstructure:"voucher_sweep_minutes"`
	MaxRetryCount        int    `mapstructure:"max_retry_count"`
	DefaultVoucherPrefix string `mapstructure:"default_voucher_prefix"`
	DefaultValidityDays  int    `mapstructure:"default_validity_days"`
}

var GlobalConfig *Config

// LoadConfig reads the YAML config file and applies business defaults.
func LoadConfig(configPath string) *Config {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	viper.SetDefault("business.registration_points", 10)
	viper.SetDefault("business.missing_report_points", 5)
	viper.SetDefault("business.sighting_report_points", 20)
	viper.SetDefault("business.social_share_points", 1)
	viper.SetDefault("business.reward_page_size", 6)
	viper.SetDefault("business.history_limit", 50)
	viper.SetDefault("business.voucher_sweep_minutes", 60)
	viper.SetDefault("business.max_retry_count", 3)
	viper.SetDefault("business.default_voucher_prefix", "MPR")
	viper.SetDefault("business.default_validity_days", 30)

	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("failed to read config file: %v", err)
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		log.Fatalf("failed to parse config file: %v", err)
	}

	GlobalConfig = config
	return config
}

// Defaults returns a config populated with the business defaults only,
// for use by tests and in-process consumers that skip the YAML file.
func Defaults() *Config {
	return &Config{
		Business: BusinessConfig{
			RegistrationPoints:   10,
			MissingReportPoints:  5,
			SightingReportPoints: 20,
			SocialSharePoints:    1,
			RewardPageSize:       6,
			HistoryLimit:         50,
			VoucherSweepMinutes:  60,
			MaxRetryCount:        3,
			DefaultVoucherPrefix: "MPR",
			DefaultValidityDays:  30,
		},
	}
}
