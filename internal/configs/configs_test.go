package configs

import (
	"testing"
	"time"
)

var configKeys = []string{
	"ENVIRONMENT", "PORT", "ALLOWED_ORIGINS", "JWT_SECRET", "COOKIE_SECURE",
	"S3_BUCKET_NAME", "S3_ENDPOINT", "S3_ACCESS_KEY_ID", "S3_SECRET_ACCESS_KEY", "S3_PUBLIC_BASE_URL",
	"DATABASE_URL", "WS_PING_INTERVAL", "WS_PONG_TIMEOUT", "WS_WRITE_WAIT", "WS_SEND_BUFFER",
	"MAX_CONNECTIONS", "PRESENCE_COALESCE", "LOG_LEVEL", "LOG_FILE",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configKeys {
		t.Setenv(k, "")
	}
}

func TestLoadConfigDevelopmentDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if !cfg.IsDevelopment() || cfg.Port != 8080 {
		t.Errorf("unexpected general settings: %+v", cfg)
	}
	if cfg.JWTSecret == "" || cfg.CookieSecure {
		t.Errorf("unexpected security settings: secret=%q secure=%v", cfg.JWTSecret, cfg.CookieSecure)
	}
	if cfg.WSPingInterval != 25*time.Second || cfg.WSPongTimeout != 60*time.Second || cfg.WSWriteWait != 10*time.Second {
		t.Errorf("unexpected websocket timings: %s %s %s", cfg.WSPingInterval, cfg.WSPongTimeout, cfg.WSWriteWait)
	}
	if cfg.WSSendBuffer != 256 || cfg.MaxConnections != 10000 || cfg.PresenceCoalesce != 50*time.Millisecond {
		t.Errorf("unexpected realtime limits: %+v", cfg)
	}
	if cfg.StorageConfigured() {
		t.Error("storage should be unconfigured by default")
	}
	if len(cfg.AllowedOrigins) != 0 {
		t.Errorf("AllowedOrigins = %v, want empty", cfg.AllowedOrigins)
	}
}

func TestLoadConfigProductionRequiresSecrets(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENVIRONMENT", "production")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error without JWT_SECRET")
	}

	t.Setenv("JWT_SECRET", "s3cret")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error without S3 settings")
	}

	t.Setenv("S3_BUCKET_NAME", "bucket")
	t.Setenv("S3_ENDPOINT", "https://s3.example.com")
	t.Setenv("S3_ACCESS_KEY_ID", "id")
	t.Setenv("S3_SECRET_ACCESS_KEY", "key")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error without DATABASE_URL")
	}

	t.Setenv("DATABASE_URL", "postgres://db/justchat")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if !cfg.CookieSecure {
		t.Error("cookies should be secure outside development")
	}
}

func TestLoadConfigParsesOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("ALLOWED_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("WS_PING_INTERVAL", "5s")
	t.Setenv("WS_PONG_TIMEOUT", "15s")
	t.Setenv("MAX_CONNECTIONS", "0")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
	if cfg.WSPingInterval != 5*time.Second || cfg.MaxConnections != 0 {
		t.Errorf("overrides not applied: %+v", cfg)
	}
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"PORT", "80"},
		{"PORT", "abc"},
		{"WS_PING_INTERVAL", "90s"},
		{"WS_SEND_BUFFER", "0"},
		{"MAX_CONNECTIONS", "-1"},
		{"PRESENCE_COALESCE", "soon"},
		{"COOKIE_SECURE", "maybe"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)
			if _, err := LoadConfig(); err == nil {
				t.Errorf("expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}
