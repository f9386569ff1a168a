package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestConfig_RoundTrip(t *testing.T) {
	t.Parallel()

	cfg := NewConfig("device-1", "/data/fieldsync", "https://api.example.com")
	cfg.Backend.Token = "tok-123"
	cfg.Backend.TimeoutSeconds = 30
	cfg.Media.Uploader = "s3"
	cfg.Media.S3 = S3Config{
		Bucket: "field-media",
		Prefix: "prod",
		Region: "us-west-2",
	}
	cfg.Queue.MaxAttempts = 8
	cfg.Cache.TTLDays = 14
	cfg.Sync.ProbeIntervalSeconds = 60

	var buf bytes.Buffer
	m := &Manager{}
	if err := m.Write(&buf, cfg); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.DeviceID != "device-1" {
		t.Errorf("DeviceID = %q, want device-1", got.DeviceID)
	}
	if got.Backend.BaseURL != "https://api.example.com" || got.Backend.Token != "tok-123" {
		t.Errorf("Backend = %+v", got.Backend)
	}
	if got.Database.Type != "sqlite" {
		t.Errorf("Database.Type = %q, want sqlite", got.Database.Type)
	}
	if got.Database.DataDir != filepath.Join("/data/fieldsync", "data") {
		t.Errorf("Database.DataDir = %q", got.Database.DataDir)
	}
	if got.Media.Uploader != "s3" || got.Media.S3.Bucket != "field-media" {
		t.Errorf("Media = %+v", got.Media)
	}
	if got.Queue.MaxAttempts != 8 || got.Cache.TTLDays != 14 || got.Sync.ProbeIntervalSeconds != 60 {
		t.Errorf("tuning = %+v / %+v / %+v", got.Queue, got.Cache, got.Sync)
	}
}

func TestConfig_Read_InvalidTOML(t *testing.T) {
	t.Parallel()

	m := &Manager{}
	if _, err := m.Read(bytes.NewBufferString("this is not = [valid")); err == nil {
		t.Error("Read() succeeded on invalid TOML")
	}
}

func TestInit(t *testing.T) {
	t.Parallel()

	t.Run("creates a readable config file", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "nested", "fieldsync.toml")
		cfg := NewConfig("device-1", "/data", "https://api.example.com")

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		got, err := ReadFromFile(path)
		if err != nil {
			t.Fatalf("ReadFromFile() error = %v", err)
		}
		if got.DeviceID != "device-1" {
			t.Errorf("DeviceID = %q, want device-1", got.DeviceID)
		}
	})

	t.Run("refuses to overwrite", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "fieldsync.toml")
		if err := os.WriteFile(path, []byte("device_id = \"existing\"\n"), 0644); err != nil {
			t.Fatalf("seeding file: %v", err)
		}

		if err := Init(path, NewConfig("new", "/data", "https://api")); err == nil {
			t.Error("Init() succeeded over an existing file")
		}
	})
}

func TestReadFromFile_Missing(t *testing.T) {
	t.Parallel()

	if _, err := ReadFromFile(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Error("ReadFromFile() succeeded on a missing file")
	}
}
