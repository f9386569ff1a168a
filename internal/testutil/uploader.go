package testutil

import (
	"context"
	"fmt"
	"sync"

	"fieldsync/internal/engine"
	"fieldsync/internal/job"
)

// StubUploader records uploads and returns sequential MediaInfo values.
// Failures are scripted with FailWith and consumed in order.
type StubUploader struct {
	mu      sync.Mutex
	clock   *StubClock
	counter int
	errs    []error
	photos  int
	videos  int
}

var _ engine.Uploader = (*StubUploader)(nil)

func NewStubUploader(clock *StubClock) *StubUploader {
	return &StubUploader{clock: clock}
}

// FailWith scripts failures for the next uploads, in order.
func (u *StubUploader) FailWith(errs ...error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.errs = append(u.errs, errs...)
}

func (u *StubUploader) UploadPhoto(_ context.Context, jobID, doorID string, _ []byte) (*job.MediaInfo, error) {
	return u.upload("photo", jobID, doorID, &u.photos)
}

func (u *StubUploader) UploadVideo(_ context.Context, jobID, doorID string, _ []byte) (*job.MediaInfo, error) {
	return u.upload("video", jobID, doorID, &u.videos)
}

func (u *StubUploader) upload(kind, jobID, doorID string, count *int) (*job.MediaInfo, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.errs) > 0 {
		err := u.errs[0]
		u.errs = u.errs[1:]
		return nil, err
	}
	*count++
	u.counter++
	id := fmt.Sprintf("media-%d", u.counter)
	url := fmt.Sprintf("https://media.example.com/jobs/%s/doors/%s/%s-%s", jobID, doorID, kind, id)
	return &job.MediaInfo{
		ID:           id,
		URL:          url,
		ThumbnailURL: url + "-thumb",
		UploadedAt:   u.clock.Now(),
	}, nil
}

// PhotoCount reports successful photo uploads.
func (u *StubUploader) PhotoCount() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.photos
}

// VideoCount reports successful video uploads.
func (u *StubUploader) VideoCount() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.videos
}
