package media

import (
	"bytes"
	"strings"
	"testing"
)

var (
	jpegData = append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, bytes.Repeat([]byte{0x00}, 16)...)
	pngData  = append([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n'}, bytes.Repeat([]byte{0x00}, 16)...)
	mp4Data  = append([]byte{0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p'}, []byte("mp42....")...)
)

func TestValidatePhoto(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		data    []byte
		limits  Limits
		wantErr string
	}{
		{name: "valid JPEG", data: jpegData},
		{name: "valid PNG", data: pngData},
		{name: "empty", data: nil, wantErr: "empty"},
		{name: "unrecognized format", data: []byte("hello world, not an image"), wantErr: "not a recognized image format"},
		{name: "over the cap", data: jpegData, limits: Limits{PhotoMaxBytes: 4}, wantErr: "exceeds"},
		{name: "video container is not a photo", data: mp4Data, wantErr: "not a recognized image format"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ValidatePhoto(tt.data, tt.limits)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("ValidatePhoto() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("ValidatePhoto() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateVideo(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		data    []byte
		limits  Limits
		wantErr string
	}{
		{name: "valid MP4", data: mp4Data},
		{name: "empty", data: nil, wantErr: "empty"},
		{name: "JPEG is not a video", data: jpegData, wantErr: "not a recognized container"},
		{name: "over the cap", data: mp4Data, limits: Limits{VideoMaxBytes: 4}, wantErr: "exceeds"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateVideo(tt.data, tt.limits)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("ValidateVideo() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("ValidateVideo() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateSignature(t *testing.T) {
	t.Parallel()

	if err := ValidateSignature(pngData, Limits{}); err != nil {
		t.Errorf("ValidateSignature(png) error = %v", err)
	}
	if err := ValidateSignature(nil, Limits{}); err == nil {
		t.Error("ValidateSignature(empty) succeeded, want error")
	}
	if err := ValidateSignature([]byte("scribble"), Limits{}); err == nil {
		t.Error("ValidateSignature(non-image) succeeded, want error")
	}
}

func TestLimits_Defaults(t *testing.T) {
	t.Parallel()

	var l Limits
	if got := l.photoMax(); got != DefaultPhotoMaxBytes {
		t.Errorf("photoMax() = %d, want %d", got, DefaultPhotoMaxBytes)
	}
	if got := l.videoMax(); got != DefaultVideoMaxBytes {
		t.Errorf("videoMax() = %d, want %d", got, DefaultVideoMaxBytes)
	}

	l = Limits{PhotoMaxBytes: 1024, VideoMaxBytes: 2048}
	if got := l.photoMax(); got != 1024 {
		t.Errorf("photoMax() = %d, want 1024", got)
	}
	if got := l.videoMax(); got != 2048 {
		t.Errorf("videoMax() = %d, want 2048", got)
	}
}
