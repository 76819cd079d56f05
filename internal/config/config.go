package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `json:"server"`
	Mongo     MongoConfig     `json:"mongo"`
	Security  SecurityConfig  `json:"security"`
	Lifecycle LifecycleConfig `json:"lifecycle"`
	Scheduler SchedulerConfig `json:"scheduler"`
	AWS       AWSConfig       `json:"aws"`
	Payments  PaymentsConfig  `json:"payments"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// MongoConfig represents MongoDB configuration
type MongoConfig struct {
	URI      string `json:"uri"`
	Database string `json:"database"`
}

// SecurityConfig holds the shared token secret
type SecurityConfig struct {
	JWTSecret string `json:"jwt_secret"`
}

// LifecycleConfig tunes the report lifecycle
type LifecycleConfig struct {
	ApprovalThreshold int `json:"approval_threshold"`
}

// SchedulerConfig tunes the deadline sweep
type SchedulerConfig struct {
	CronSpec string `json:"cron_spec"`
}

// AWSConfig configures the document store and notification channels
type AWSConfig struct {
	Region         string `json:"region"`
	DocumentBucket string `json:"document_bucket"`
	SenderEmail    string `json:"sender_email"`
}

// PaymentsConfig configures the payout gateway
type PaymentsConfig struct {
	GatewayURL string `json:"gateway_url"`
	APIKey     string `json:"api_key"`
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	// Default config
	config := &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Mongo: MongoConfig{
			URI:      "mongodb://localhost:27017",
			Database: "mutual_aid",
		},
	}

	// Load from file if exists
	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			if err := json.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	// Override with environment variables
	overrideWithEnv(config)

	return config, nil
}

func overrideWithEnv(config *Config) {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if uri := os.Getenv("MONGO_URI"); uri != "" {
		config.Mongo.URI = uri
	}
	if db := os.Getenv("MONGO_DATABASE"); db != "" {
		config.Mongo.Database = db
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		config.Security.JWTSecret = secret
	}
	if threshold := os.Getenv("APPROVAL_THRESHOLD"); threshold != "" {
		if t, err := strconv.Atoi(threshold); err == nil {
			config.Lifecycle.ApprovalThreshold = t
		}
	}
	if spec := os.Getenv("SWEEP_CRON"); spec != "" {
		config.Scheduler.CronSpec = spec
	}
	if region := os.Getenv("AWS_REGION"); region != "" {
		config.AWS.Region = region
	}
	if bucket := os.Getenv("DOCUMENT_BUCKET"); bucket != "" {
		config.AWS.DocumentBucket = bucket
	}
	if sender := os.Getenv("SENDER_EMAIL"); sender != "" {
		config.AWS.SenderEmail = sender
	}
	if url := os.Getenv("PAYMENT_GATEWAY_URL"); url != "" {
		config.Payments.GatewayURL = url
	}
	if key := os.Getenv("PAYMENT_GATEWAY_API_KEY"); key != "" {
		config.Payments.APIKey = key
	}
}

// GetServerAddr returns the server address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
