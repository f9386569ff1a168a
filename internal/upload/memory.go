package upload

import (
	"context"
	"sync"

	"fieldsync/internal/engine"
	"fieldsync/internal/job"
)

// MemoryUploader keeps uploaded media in memory. Used for tests and for
// running against the in-memory database type.
type MemoryUploader struct {
	mu      sync.Mutex
	objects map[string][]byte
	idgen   engine.IDGenerator
	clock   engine.Clock
	// Err, when set, is returned by every upload.
	Err error
}

var _ engine.Uploader = (*MemoryUploader)(nil)

func NewMemoryUploader(idgen engine.IDGenerator, clock engine.Clock) *MemoryUploader {
	return &MemoryUploader{
		objects: make(map[string][]byte),
		idgen:   idgen,
		clock:   clock,
	}
}

func (u *MemoryUploader) UploadPhoto(_ context.Context, jobID, doorID string, data []byte) (*job.MediaInfo, error) {
	return u.store(jobID, doorID, "photo", data)
}

func (u *MemoryUploader) UploadVideo(_ context.Context, jobID, doorID string, data []byte) (*job.MediaInfo, error) {
	return u.store(jobID, doorID, "video", data)
}

func (u *MemoryUploader) store(jobID, doorID, kind string, data []byte) (*job.MediaInfo, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.Err != nil {
		return nil, u.Err
	}
	id := u.idgen.New()
	key := "jobs/" + jobID + "/doors/" + doorID + "/" + kind + "-" + id
	u.objects[key] = append([]byte(nil), data...)
	url := "memory://" + key
	return &job.MediaInfo{
		ID:           id,
		URL:          url,
		ThumbnailURL: url,
		UploadedAt:   u.clock.Now(),
	}, nil
}

// Object returns a stored payload by key, for assertions.
func (u *MemoryUploader) Object(key string) ([]byte, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	data, ok := u.objects[key]
	return data, ok
}

// Len reports the number of stored objects.
func (u *MemoryUploader) Len() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.objects)
}
