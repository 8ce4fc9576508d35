// Package config provides configuration management for the application.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type Config struct {
	RabbitMQ   RabbitMQConfig
	Logging    LoggingConfig
	Database   DatabaseConfig
	Server     ServerConfig
	Pipeline   PipelineConfig
	Downloader DownloaderConfig
	Deepgram   DeepgramConfig
	OpenAI     OpenAIConfig
	Auth       AuthConfig
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port            int
	ShutdownTimeout time.Duration
}

// DatabaseConfig contains database connection configuration.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type DatabaseConfig struct {
	Host           string
	Name           string
	User           string
	Password       string
	SSLMode        string
	Port           int
	MaxConnections int
	MinConnections int
	MaxIdleTime    time.Duration
	MaxLifetime    time.Duration
}

// URL returns the postgres:// connection URL for this configuration.
func (c *DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

// RabbitMQConfig contains RabbitMQ connection and queue configuration.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type RabbitMQConfig struct {
	Host       string
	User       string
	Password   string
	Exchange   string
	Queue      string
	RoutingKey string
	Port       int
}

// PipelineConfig contains transcription pipeline configuration.
type PipelineConfig struct {
	// RequestDelay is the fixed pause applied before each external attempt
	// after the first within a batch.
	RequestDelay time.Duration
	// CallTimeout bounds a single download+transcribe sequence.
	CallTimeout time.Duration
	// StaleProcessingAfter is the age at which a processing row is treated
	// as orphaned and becomes re-acquirable.
	StaleProcessingAfter time.Duration
	// ReconcileInterval is how often the worker sweeps stale processing rows.
	ReconcileInterval time.Duration
}

// DownloaderConfig contains audio download configuration.
type DownloaderConfig struct {
	AudioDir      string
	MaxAudioBytes int64
	HTTPTimeout   time.Duration
}

// DeepgramConfig contains Deepgram transcription API configuration.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type DeepgramConfig struct {
	APIKey   string
	BaseURL  string
	Model    string
	Language string
	Timeout  time.Duration
}

// OpenAIConfig contains OpenAI content generation configuration.
type OpenAIConfig struct {
	APIKey string
	Model  string
}

// AuthConfig contains API authentication configuration.
type AuthConfig struct {
	APIKeys []string
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level string
	File  string
}

// Load loads configuration from file and environment variables.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Set defaults
	setDefaults()

	// Read environment variables
	viper.AutomaticEnv()
	viper.SetEnvPrefix("APP")

	// Try to read config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found, use defaults and env vars
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	// Server
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.shutdowntimeout", 30*time.Second)

	// Database
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.name", "yt2txt")
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.maxconnections", 10)
	viper.SetDefault("database.minconnections", 5)
	viper.SetDefault("database.maxidletime", 10*time.Minute)
	viper.SetDefault("database.maxlifetime", 1*time.Hour)

	// RabbitMQ
	viper.SetDefault("rabbitmq.host", "localhost")
	viper.SetDefault("rabbitmq.port", 5672)
	viper.SetDefault("rabbitmq.user", "guest")
	viper.SetDefault("rabbitmq.password", "guest")
	viper.SetDefault("rabbitmq.exchange", "yt2txt.transcription")
	viper.SetDefault("rabbitmq.queue", "yt2txt.transcription.jobs")
	viper.SetDefault("rabbitmq.routingkey", "transcription.requested")

	// Pipeline
	viper.SetDefault("pipeline.requestdelay", 5*time.Second)
	viper.SetDefault("pipeline.calltimeout", 10*time.Minute)
	viper.SetDefault("pipeline.staleprocessingafter", 15*time.Minute)
	viper.SetDefault("pipeline.reconcileinterval", 5*time.Minute)

	// Downloader
	viper.SetDefault("downloader.audiodir", "audio_downloads")
	viper.SetDefault("downloader.maxaudiobytes", 100*1024*1024) // 100MB
	viper.SetDefault("downloader.httptimeout", 5*time.Minute)

	// Deepgram
	viper.SetDefault("deepgram.apikey", "")
	viper.SetDefault("deepgram.baseurl", "https://api.deepgram.com")
	viper.SetDefault("deepgram.model", "nova-2")
	viper.SetDefault("deepgram.language", "en")
	viper.SetDefault("deepgram.timeout", 5*time.Minute)

	// OpenAI
	viper.SetDefault("openai.apikey", "")
	viper.SetDefault("openai.model", "gpt-4o")

	// Auth
	viper.SetDefault("auth.apikeys", []string{})

	// Logging
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.file", "")
}
