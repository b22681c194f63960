package app

import (
	"errors"
	"time"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	PipelinePath string // hcl file or directory
	SessionID    string
	SourceURL    string
	Transport    string // "http" or "socketio"
	LayoutMode   string // "layered" or "linear"

	PollInterval time.Duration
	Lookback     time.Duration
	Grace        time.Duration

	StatusPort      int
	HealthcheckPort int
	LogFormat       string
	LogLevel        string
}

// NewConfig validates a Config and fills defaults.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.PipelinePath == "" {
		return nil, errors.New("PipelinePath is a required configuration field and cannot be empty")
	}
	if cfg.SessionID != "" && cfg.SourceURL == "" {
		return nil, errors.New("SourceURL is required when a session is being watched")
	}
	switch cfg.Transport {
	case "", "http", "socketio":
	default:
		return nil, errors.New("Transport must be 'http' or 'socketio'")
	}
	if cfg.Transport == "" {
		cfg.Transport = "http"
	}
	switch cfg.LayoutMode {
	case "", "layered", "linear":
	default:
		return nil, errors.New("LayoutMode must be 'layered' or 'linear'")
	}
	if cfg.LayoutMode == "" {
		cfg.LayoutMode = "layered"
	}

	return &cfg, nil
}
