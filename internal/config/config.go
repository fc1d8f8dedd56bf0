package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		InstructorPort string   `yaml:"instructor_port"`
		LearnerPort    string   `yaml:"learner_port"`
		AllowedOrigins []string `yaml:"allowed_origins"`
		Mode           string   `yaml:"mode"`
	} `yaml:"server"`
	Store struct {
		Backend       string `yaml:"backend"`
		Timeout       string `yaml:"timeout"`
		FanoutTimeout string `yaml:"fanout_timeout"`
		FanoutLimit   int    `yaml:"fanout_limit"`
	} `yaml:"store"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
		FeedTTL  string `yaml:"feed_ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
}

const (
	// BackendMemory keeps documents inside one process. The instructor and
	// learner services then see separate stores, so it only suits running a
	// single service (tests, demos).
	BackendMemory = "memory"
	// BackendRedis is the shared store both services need to work together.
	BackendRedis = "redis"
)

// Default returns the configuration used when no file is present.
func Default() Config {
	cfg := Config{}
	cfg.Server.InstructorPort = "8080"
	cfg.Server.LearnerPort = "7000"
	cfg.Server.AllowedOrigins = []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	cfg.Server.Mode = "development"
	cfg.Store.Backend = BackendMemory
	cfg.Store.Timeout = "5s"
	cfg.Store.FanoutTimeout = "5s"
	cfg.Store.FanoutLimit = 8
	cfg.Redis.Prefix = "kf:"
	cfg.Redis.FeedTTL = "10m"
	return cfg
}

// Load reads YAML config from path over the defaults. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = BackendMemory
	}
	return cfg, nil
}

// Duration parses a duration string or returns the fallback if empty or invalid.
func Duration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
