package media

import (
	"bytes"
	"fmt"
)

// Default size caps for captured media payloads.
const (
	DefaultPhotoMaxBytes = 10 << 20  // 10MB
	DefaultVideoMaxBytes = 100 << 20 // 100MB
)

// Limits bounds capture payload sizes. Zero fields fall back to defaults.
type Limits struct {
	PhotoMaxBytes int64
	VideoMaxBytes int64
}

func (l Limits) photoMax() int64 {
	if l.PhotoMaxBytes > 0 {
		return l.PhotoMaxBytes
	}
	return DefaultPhotoMaxBytes
}

func (l Limits) videoMax() int64 {
	if l.VideoMaxBytes > 0 {
		return l.VideoMaxBytes
	}
	return DefaultVideoMaxBytes
}

// ValidatePhoto checks a photo capture for non-empty content, a recognized
// image format (JPEG or PNG) and the size cap.
func ValidatePhoto(data []byte, limits Limits) error {
	if len(data) == 0 {
		return fmt.Errorf("photo capture is empty")
	}
	if int64(len(data)) > limits.photoMax() {
		return fmt.Errorf("photo is %d bytes, exceeds the %d byte limit", len(data), limits.photoMax())
	}
	if !isJPEG(data) && !isPNG(data) {
		return fmt.Errorf("photo is not a recognized image format (need JPEG or PNG)")
	}
	return nil
}

// ValidateVideo checks a video capture for non-empty content, an MP4 or
// QuickTime container and the size cap.
func ValidateVideo(data []byte, limits Limits) error {
	if len(data) == 0 {
		return fmt.Errorf("video capture is empty")
	}
	if int64(len(data)) > limits.videoMax() {
		return fmt.Errorf("video is %d bytes, exceeds the %d byte limit", len(data), limits.videoMax())
	}
	if !isMP4(data) {
		return fmt.Errorf("video is not a recognized container (need MP4 or QuickTime)")
	}
	return nil
}

// ValidateSignature checks a signature capture: non-empty PNG or JPEG,
// bounded by the photo cap.
func ValidateSignature(data []byte, limits Limits) error {
	if len(data) == 0 {
		return fmt.Errorf("signature capture is empty")
	}
	if int64(len(data)) > limits.photoMax() {
		return fmt.Errorf("signature is %d bytes, exceeds the %d byte limit", len(data), limits.photoMax())
	}
	if !isJPEG(data) && !isPNG(data) {
		return fmt.Errorf("signature is not a recognized image format (need JPEG or PNG)")
	}
	return nil
}

func isJPEG(data []byte) bool {
	return len(data) >= 3 && bytes.Equal(data[:3], []byte{0xFF, 0xD8, 0xFF})
}

func isPNG(data []byte) bool {
	return len(data) >= 8 && bytes.Equal(data[:8], []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n'})
}

// isMP4 matches ISO base media containers (MP4 and QuickTime), which carry
// an ftyp box at offset 4.
func isMP4(data []byte) bool {
	return len(data) >= 12 && bytes.Equal(data[4:8], []byte("ftyp"))
}
