package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func validConfigViper() *viper.Viper {
	v := NewViper()
	v.Set("storage.bucket", "hearth-attachments")
	v.Set("storage.access_key_id", "key")
	v.Set("storage.secret_access_key", "secret")
	return v
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(validConfigViper())
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}

	if cfg.HTTPAddress != "0.0.0.0:8080" {
		t.Fatalf("unexpected http address %s", cfg.HTTPAddress)
	}
	if cfg.DatabasePath != "hearth.db" {
		t.Fatalf("unexpected database path %s", cfg.DatabasePath)
	}
	if cfg.SessionCookieName != "hearth_session" {
		t.Fatalf("unexpected cookie name %s", cfg.SessionCookieName)
	}
	if cfg.SessionTTL != 30*24*time.Hour {
		t.Fatalf("unexpected session ttl %v", cfg.SessionTTL)
	}
	if cfg.StorageRegion != "auto" {
		t.Fatalf("unexpected storage region %s", cfg.StorageRegion)
	}
	if cfg.StorageURLExpiry != time.Hour {
		t.Fatalf("unexpected url expiry %v", cfg.StorageURLExpiry)
	}
}

func TestLoadOverrides(t *testing.T) {
	v := validConfigViper()
	v.Set("http.address", "127.0.0.1:9000")
	v.Set("session.ttl_hours", 1)
	v.Set("storage.url_expiry_minutes", 5)

	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if cfg.HTTPAddress != "127.0.0.1:9000" {
		t.Fatalf("unexpected http address %s", cfg.HTTPAddress)
	}
	if cfg.SessionTTL != time.Hour {
		t.Fatalf("unexpected session ttl %v", cfg.SessionTTL)
	}
	if cfg.StorageURLExpiry != 5*time.Minute {
		t.Fatalf("unexpected url expiry %v", cfg.StorageURLExpiry)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*viper.Viper)
		wantErr string
	}{
		{
			name:    "missing database path",
			mutate:  func(v *viper.Viper) { v.Set("database.path", " ") },
			wantErr: "database.path",
		},
		{
			name:    "missing cookie name",
			mutate:  func(v *viper.Viper) { v.Set("session.cookie_name", "") },
			wantErr: "session.cookie_name",
		},
		{
			name:    "missing origin",
			mutate:  func(v *viper.Viper) { v.Set("app.origin", "") },
			wantErr: "app.origin",
		},
		{
			name:    "missing bucket",
			mutate:  func(v *viper.Viper) { v.Set("storage.bucket", "") },
			wantErr: "storage.bucket",
		},
		{
			name:    "missing credentials",
			mutate:  func(v *viper.Viper) { v.Set("storage.secret_access_key", "") },
			wantErr: "storage credentials",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := validConfigViper()
			tc.mutate(v)
			if _, err := Load(v); err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error mentioning %q, got %v", tc.wantErr, err)
			}
		})
	}
}
