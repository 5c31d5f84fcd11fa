package config

import (
	"encoding/base64"
	"fmt"
	"time"
)

const (
	DefaultTickInterval = time.Second
	DefaultReapInterval = time.Hour
	DefaultDedupWindow  = 5 * time.Minute
	DefaultStaleAfter   = 24 * time.Hour
)

type Config struct {
	ServerAddr     string
	DatabaseDSN    string
	RedisAddr      string
	StageAPIURL    string
	EventFeedURL   string
	SigningKey     []byte
	AllowedOrigins []string
	// TickInterval drives the reconciliation scheduler.
	TickInterval time.Duration
	// ReapInterval drives the staleness reaper.
	ReapInterval time.Duration
	// DedupWindow is the queue's trailing content-dedup window. It must be
	// much longer than TickInterval or no-op ticks will not be suppressed.
	DedupWindow time.Duration
	// StaleAfter is how long a room may go untouched before it is reapable.
	StaleAfter time.Duration
}

func decodeSigningSecret(base64Secret string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(base64Secret)
}

func NewConfig(serverAddr, databaseDSN, redisAddr, stageAPIURL, eventFeedURL, base64Secret string, allowedOrigins []string) (*Config, error) {
	if serverAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}
	if databaseDSN == "" {
		return nil, fmt.Errorf("database DSN cannot be empty")
	}
	if redisAddr == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}
	if stageAPIURL == "" {
		return nil, fmt.Errorf("stage API URL cannot be empty")
	}
	if eventFeedURL == "" {
		return nil, fmt.Errorf("event feed URL cannot be empty")
	}
	if base64Secret == "" {
		return nil, fmt.Errorf("signing secret cannot be empty")
	}

	// Decode the base64 encoded signing secret
	signingKey, err := decodeSigningSecret(base64Secret)
	if err != nil {
		return nil, fmt.Errorf("decode signing secret: %w", err)
	}

	return &Config{
		ServerAddr:     serverAddr,
		DatabaseDSN:    databaseDSN,
		RedisAddr:      redisAddr,
		StageAPIURL:    stageAPIURL,
		EventFeedURL:   eventFeedURL,
		SigningKey:     signingKey,
		AllowedOrigins: allowedOrigins,
		TickInterval:   DefaultTickInterval,
		ReapInterval:   DefaultReapInterval,
		DedupWindow:    DefaultDedupWindow,
		StaleAfter:     DefaultStaleAfter,
	}, nil
}
