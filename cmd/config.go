package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Token            string `json:"token" yaml:"token"`
	Https            bool   `json:"https" yaml:"https"`
	DaemonHost       string `json:"daemonHost" yaml:"daemonHost"`
	ReconnectTimeout uint16 `json:"reconnectTimeout" yaml:"reconnectTimeout"`
	// SampleInterval is the track sampling interval in milliseconds.
	SampleInterval uint32 `json:"sampleInterval" yaml:"sampleInterval"`
	// MaxTrackPeriod caps requested track periods, in seconds.
	MaxTrackPeriod uint32 `json:"maxTrackPeriod" yaml:"maxTrackPeriod"`
	GPU            bool   `json:"gpu" yaml:"gpu"`
}

func NewConfig() Config {
	return Config{
		Https:            false,
		DaemonHost:       "localhost:9002",
		ReconnectTimeout: 5,
		SampleInterval:   100,
		MaxTrackPeriod:   60,
		GPU:              true,
	}
}

// LoadConfig overlays the file at path on NewConfig. Files ending in .yaml
// or .yml are parsed as YAML, everything else as JSON.
func LoadConfig(path string) (Config, error) {
	config := NewConfig()
	configRaw, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("read config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(configRaw, &config)
	default:
		err = json.Unmarshal(configRaw, &config)
	}
	if err != nil {
		return config, fmt.Errorf("parse config %s: %w", filepath.Base(path), err)
	}
	return config, nil
}

func (c Config) SampleDuration() time.Duration {
	if c.SampleInterval == 0 {
		return 0
	}
	return time.Duration(c.SampleInterval) * time.Millisecond
}

// TrackPeriod converts a requested period in seconds, capping it at
// MaxTrackPeriod when one is set.
func (c Config) TrackPeriod(seconds float64) time.Duration {
	period := time.Duration(seconds * float64(time.Second))
	if c.MaxTrackPeriod > 0 {
		maxPeriod := time.Duration(c.MaxTrackPeriod) * time.Second
		if period > maxPeriod {
			period = maxPeriod
		}
	}
	return period
}

func (c Config) SocketURL() string {
	scheme := "ws"
	if c.Https {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s/socket", scheme, c.DaemonHost)
}
