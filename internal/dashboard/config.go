package dashboard

import (
	"errors"
	"os"
	"time"
)

const (
	defaultPort            = "8080"
	defaultMetricsAddr     = ":9100"
	defaultRTMSBaseURL     = "http://localhost:8000"
	defaultMonitorInterval = 10 * time.Minute
)

// Config holds the service configuration.
type Config struct {
	Port            string
	MetricsAddr     string
	RTMSBaseURL     string
	AIBaseURL       string
	SlackToken      string
	SlackChannel    string
	MonitorInterval time.Duration
	DemoMode        bool
	DemoSeed        int64
}

// ConfigFromEnv creates a Config from environment variables.
func ConfigFromEnv() Config {
	cfg := Config{
		Port:            getEnvOrDefault("PORT", defaultPort),
		MetricsAddr:     getEnvOrDefault("METRICS_ADDR", defaultMetricsAddr),
		RTMSBaseURL:     getEnvOrDefault("RTMS_BASE_URL", defaultRTMSBaseURL),
		AIBaseURL:       os.Getenv("AI_BASE_URL"),
		SlackToken:      os.Getenv("SLACK_TOKEN"),
		SlackChannel:    os.Getenv("SLACK_CHANNEL"),
		MonitorInterval: defaultMonitorInterval,
		DemoMode:        os.Getenv("DEMO_MODE") == "true",
	}
	if v := os.Getenv("MONITOR_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.MonitorInterval = d
		}
	}
	return cfg
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if !c.DemoMode && c.RTMSBaseURL == "" {
		return errors.New("RTMS_BASE_URL is required unless demo mode is enabled")
	}
	if c.SlackToken != "" && c.SlackChannel == "" {
		return errors.New("SLACK_CHANNEL is required when SLACK_TOKEN is set")
	}
	if c.MonitorInterval <= 0 {
		c.MonitorInterval = defaultMonitorInterval
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
