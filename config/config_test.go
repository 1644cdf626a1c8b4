package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.UploadDir != "./uploads" {
		t.Errorf("upload dir = %q", cfg.UploadDir)
	}
	if cfg.MaxFileSize != 500<<20 {
		t.Errorf("max file size = %d", cfg.MaxFileSize)
	}
	if cfg.MaxBatchFiles != 50 {
		t.Errorf("max batch files = %d", cfg.MaxBatchFiles)
	}
	if cfg.ArtifactTTL != 10*time.Minute {
		t.Errorf("artifact ttl = %s", cfg.ArtifactTTL)
	}
	if cfg.SweepInterval != time.Minute {
		t.Errorf("sweep interval = %s", cfg.SweepInterval)
	}
	if !cfg.PreferMagick {
		t.Error("expected PreferMagick default true")
	}
	if cfg.DatabaseURL != "" || cfg.RedisAddr != "" || len(cfg.KafkaBrokers) != 0 {
		t.Error("expected integrations disabled by default")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("UPLOAD_DIR", "/tmp/artifacts")
	t.Setenv("ARTIFACT_TTL", "30m")
	t.Setenv("PREFER_MAGICK", "false")
	t.Setenv("MAX_BATCH_FILES", "10")
	t.Setenv("KAFKA_BROKERS", "broker1:9092, broker2:9092")

	cfg := Load()

	if cfg.UploadDir != "/tmp/artifacts" {
		t.Errorf("upload dir = %q", cfg.UploadDir)
	}
	if cfg.ArtifactTTL != 30*time.Minute {
		t.Errorf("artifact ttl = %s", cfg.ArtifactTTL)
	}
	if cfg.PreferMagick {
		t.Error("expected PreferMagick override to false")
	}
	if cfg.MaxBatchFiles != 10 {
		t.Errorf("max batch files = %d", cfg.MaxBatchFiles)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "broker2:9092" {
		t.Errorf("kafka brokers = %v", cfg.KafkaBrokers)
	}
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("MAX_FILE_SIZE", "lots")
	t.Setenv("SWEEP_INTERVAL", "soon")

	cfg := Load()

	if cfg.MaxFileSize != 500<<20 {
		t.Errorf("max file size = %d, want the default kept", cfg.MaxFileSize)
	}
	if cfg.SweepInterval != time.Minute {
		t.Errorf("sweep interval = %s, want the default kept", cfg.SweepInterval)
	}
}
