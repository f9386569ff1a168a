package upload

import (
	"context"
	"strings"
	"testing"

	"fieldsync/internal/config"
	"fieldsync/internal/testutil"
)

func TestMemoryUploader(t *testing.T) {
	t.Parallel()

	u := NewMemoryUploader(testutil.NewStubIDGenerator(), testutil.FixedClock())
	ctx := context.Background()

	info, err := u.UploadPhoto(ctx, "j1", "d1", []byte{0xFF, 0xD8, 0xFF})
	if err != nil {
		t.Fatalf("UploadPhoto() error = %v", err)
	}
	if info.ID != "id-1" {
		t.Errorf("ID = %q, want id-1", info.ID)
	}
	if !strings.HasPrefix(info.URL, "memory://jobs/j1/doors/d1/photo-") {
		t.Errorf("URL = %q", info.URL)
	}
	if info.UploadedAt.IsZero() {
		t.Error("UploadedAt is zero")
	}

	key := strings.TrimPrefix(info.URL, "memory://")
	data, ok := u.Object(key)
	if !ok {
		t.Fatalf("object %q not stored", key)
	}
	if len(data) != 3 {
		t.Errorf("stored %d bytes, want 3", len(data))
	}

	if _, err := u.UploadVideo(ctx, "j1", "d1", []byte("ftyp")); err != nil {
		t.Fatalf("UploadVideo() error = %v", err)
	}
	if u.Len() != 2 {
		t.Errorf("Len() = %d, want 2", u.Len())
	}
}

func TestNewUploaderFromConfig(t *testing.T) {
	t.Parallel()

	idgen := testutil.NewStubIDGenerator()
	clock := testutil.FixedClock()
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		t.Parallel()
		u, err := NewUploaderFromConfig(ctx, config.MediaConfig{Uploader: "memory"}, nil, idgen, clock)
		if err != nil {
			t.Fatalf("NewUploaderFromConfig() error = %v", err)
		}
		if _, ok := u.(*MemoryUploader); !ok {
			t.Errorf("uploader type = %T, want *MemoryUploader", u)
		}
	})

	t.Run("backend requires a client", func(t *testing.T) {
		t.Parallel()
		if _, err := NewUploaderFromConfig(ctx, config.MediaConfig{}, nil, idgen, clock); err == nil {
			t.Error("expected error for nil backend client")
		}
	})

	t.Run("s3 requires bucket and region", func(t *testing.T) {
		t.Parallel()
		cfg := config.MediaConfig{Uploader: "s3", S3: config.S3Config{Region: "us-west-2"}}
		if _, err := NewUploaderFromConfig(ctx, cfg, nil, idgen, clock); err == nil {
			t.Error("expected error for missing bucket")
		}

		cfg = config.MediaConfig{Uploader: "s3", S3: config.S3Config{Bucket: "b"}}
		if _, err := NewUploaderFromConfig(ctx, cfg, nil, idgen, clock); err == nil {
			t.Error("expected error for missing region")
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		t.Parallel()
		if _, err := NewUploaderFromConfig(ctx, config.MediaConfig{Uploader: "ftp"}, nil, idgen, clock); err == nil {
			t.Error("expected error for unknown uploader type")
		}
	})
}

func TestS3Uploader_ObjectURL(t *testing.T) {
	t.Parallel()

	u := &S3Uploader{bucket: "field-media", region: "us-west-2", prefix: "prod"}
	key := u.key("j1", "d1", "photo-abc")
	if key != "prod/jobs/j1/doors/d1/photo-abc" {
		t.Errorf("key = %q", key)
	}
	if got := u.objectURL(key); got != "https://field-media.s3.us-west-2.amazonaws.com/prod/jobs/j1/doors/d1/photo-abc" {
		t.Errorf("objectURL = %q", got)
	}

	u.baseURL = "https://cdn.example.com"
	if got := u.objectURL(key); got != "https://cdn.example.com/prod/jobs/j1/doors/d1/photo-abc" {
		t.Errorf("objectURL with base = %q", got)
	}
}
