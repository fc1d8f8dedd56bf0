package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.InstructorPort != "8080" || cfg.Server.LearnerPort != "7000" {
		t.Fatalf("unexpected default ports %+v", cfg.Server)
	}
	if cfg.Store.Backend != BackendMemory || cfg.Redis.Prefix != "kf:" {
		t.Fatalf("unexpected defaults %+v %+v", cfg.Store, cfg.Redis)
	}
	if len(cfg.Server.AllowedOrigins) != 2 {
		t.Fatalf("expected two default origins, got %v", cfg.Server.AllowedOrigins)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
server:
  learner_port: "7100"
  mode: production
store:
  backend: redis
  timeout: 2s
redis:
  addr: localhost:6379
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.LearnerPort != "7100" || cfg.Server.InstructorPort != "8080" {
		t.Fatalf("expected merged ports, got %+v", cfg.Server)
	}
	if cfg.Store.Backend != BackendRedis || cfg.Redis.Addr != "localhost:6379" || cfg.Redis.Prefix != "kf:" {
		t.Fatalf("unexpected store config %+v %+v", cfg.Store, cfg.Redis)
	}
	if got := Duration(cfg.Store.Timeout, time.Second); got != 2*time.Second {
		t.Fatalf("expected 2s timeout, got %v", got)
	}
}

func TestSampleConfigLoads(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "config", "config.yaml"))
	if err != nil {
		t.Fatalf("load sample config: %v", err)
	}
	if cfg.Store.Backend != BackendMemory && cfg.Store.Backend != BackendRedis {
		t.Fatalf("unexpected backend %q", cfg.Store.Backend)
	}
	if cfg.Server.InstructorPort != "8080" || cfg.Server.LearnerPort != "7000" {
		t.Fatalf("unexpected sample ports %+v", cfg.Server)
	}
	if got := Duration(cfg.Redis.FeedTTL, 0); got != 10*time.Minute {
		t.Fatalf("expected 10m feed ttl, got %v", got)
	}
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	_ = os.WriteFile(path, []byte("server: ["), 0o600)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestDurationFallback(t *testing.T) {
	if got := Duration("", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback, got %v", got)
	}
	if got := Duration("soon", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback on invalid input, got %v", got)
	}
}
