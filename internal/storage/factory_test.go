package storage

import (
	"context"
	"strings"
	"testing"
)

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("STORAGE_PROVIDER", "MinIO")
	t.Setenv("MINIO_ENDPOINT", "minio:9000")
	t.Setenv("MINIO_BUCKET", "renders")
	t.Setenv("MINIO_USE_SSL", "true")

	cfg := ConfigFromEnv()
	if cfg.Provider != "minio" {
		t.Errorf("expected lower-cased provider, got %q", cfg.Provider)
	}
	if cfg.Minio.Endpoint != "minio:9000" || cfg.Minio.Bucket != "renders" || !cfg.Minio.UseSSL {
		t.Errorf("unexpected minio config %+v", cfg.Minio)
	}
}

func TestNewProvider(t *testing.T) {
	ctx := context.Background()

	t.Run("localfs", func(t *testing.T) {
		sp, err := NewProvider(ctx, Config{Provider: "localfs", LocalRoot: t.TempDir()})
		if err != nil {
			t.Fatal(err)
		}
		if sp.Provider() != "localfs" {
			t.Errorf("got provider %q", sp.Provider())
		}
	})

	t.Run("localfs without root", func(t *testing.T) {
		if _, err := NewProvider(ctx, Config{Provider: "localfs"}); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("gdrive lists missing settings", func(t *testing.T) {
		_, err := NewProvider(ctx, Config{Provider: "gdrive", GDriveClientID: "id"})
		if err == nil || !strings.Contains(err.Error(), "GDRIVE_CLIENT_SECRET, GDRIVE_REFRESH_TOKEN") {
			t.Errorf("unexpected error %v", err)
		}
	})

	t.Run("minio without bucket", func(t *testing.T) {
		cfg := Config{Provider: "minio"}
		cfg.Minio.Endpoint = "localhost:9000"
		if _, err := NewProvider(ctx, cfg); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("minio client without bucket check", func(t *testing.T) {
		cfg := Config{Provider: "minio"}
		cfg.Minio.Endpoint = "localhost:9000"
		cfg.Minio.Bucket = "renders"
		sp, err := NewProvider(ctx, cfg)
		if err != nil {
			t.Fatal(err)
		}
		if sp.Provider() != "minio" {
			t.Errorf("got provider %q", sp.Provider())
		}
	})

	t.Run("unknown", func(t *testing.T) {
		if _, err := NewProvider(ctx, Config{Provider: "s4"}); err == nil {
			t.Error("expected error")
		}
	})
}

func TestPing(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	sp, err := NewProvider(ctx, Config{Provider: "localfs", LocalRoot: root})
	if err != nil {
		t.Fatal(err)
	}
	if err := Ping(ctx, sp); err != nil {
		t.Errorf("unexpected ping error %v", err)
	}

	missing, _ := NewProvider(ctx, Config{Provider: "localfs", LocalRoot: root + "/missing"})
	if err := Ping(ctx, missing); err == nil {
		t.Error("expected missing root to fail the ping")
	}
}
