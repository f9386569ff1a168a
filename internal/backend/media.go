package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"fieldsync/internal/engine"
	"fieldsync/internal/job"
)

// Uploader sends media to the backend as a multipart attachment with the
// job/door identifiers and a media-type discriminator. The backend issues
// the identifier and the direct/thumbnail URLs.
type Uploader struct {
	client *Client
}

var _ engine.Uploader = (*Uploader)(nil)

// NewUploader creates an Uploader sharing the client's base URL, token and
// transport.
func NewUploader(client *Client) *Uploader {
	return &Uploader{client: client}
}

func (u *Uploader) UploadPhoto(ctx context.Context, jobID, doorID string, data []byte) (*job.MediaInfo, error) {
	return u.upload(ctx, jobID, doorID, engine.MediaPhoto, data)
}

func (u *Uploader) UploadVideo(ctx context.Context, jobID, doorID string, data []byte) (*job.MediaInfo, error) {
	return u.upload(ctx, jobID, doorID, engine.MediaVideo, data)
}

func (u *Uploader) upload(ctx context.Context, jobID, doorID string, mediaType engine.MediaType, data []byte) (*job.MediaInfo, error) {
	path := "/jobs/" + url.PathEscape(jobID) + "/doors/" + url.PathEscape(doorID) + "/media"
	op := "POST " + path

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("media_type", string(mediaType)); err != nil {
		return nil, fmt.Errorf("%s: writing form field: %w", op, err)
	}
	part, err := w.CreateFormFile("file", string(mediaType)+".bin")
	if err != nil {
		return nil, fmt.Errorf("%s: creating form file: %w", op, err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("%s: writing form file: %w", op, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("%s: finalizing form: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.client.baseURL+path, &buf)
	if err != nil {
		return nil, fmt.Errorf("%s: building request: %w", op, err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	u.client.authorize(req)

	resp, err := u.client.http.Do(req)
	if err != nil {
		return nil, &engine.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		io.Copy(io.Discard, resp.Body)
		return nil, &engine.TransportError{Op: op, StatusCode: resp.StatusCode}
	}

	var dto mediaDTO
	if err := json.NewDecoder(resp.Body).Decode(&dto); err != nil {
		return nil, fmt.Errorf("%s: decoding response: %w", op, err)
	}
	info := dto.toMediaInfo()
	if info.UploadedAt.IsZero() {
		info.UploadedAt = time.Now()
	}
	return info, nil
}
