package upload

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"fieldsync/internal/config"
	"fieldsync/internal/engine"
	"fieldsync/internal/job"
)

// S3Uploader stores media directly in an S3 bucket. Photos go through a
// single PutObject; videos go through the upload manager, which switches
// to multipart for large payloads. Object keys are
// <prefix>/jobs/<jobID>/doors/<doorID>/<type>-<id>.
type S3Uploader struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	prefix   string
	baseURL  string
	region   string
	idgen    engine.IDGenerator
	clock    engine.Clock
}

var _ engine.Uploader = (*S3Uploader)(nil)

// NewS3Uploader builds an uploader from config. Static credentials are
// used when configured, otherwise the SDK's default chain applies.
func NewS3Uploader(ctx context.Context, cfg config.S3Config, idgen engine.IDGenerator, clock engine.Clock) (*S3Uploader, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 uploader requires a bucket")
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("s3 uploader requires a region")
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg)
	return &S3Uploader{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   cfg.Bucket,
		prefix:   strings.Trim(cfg.Prefix, "/"),
		baseURL:  strings.TrimSuffix(cfg.PublicBaseURL, "/"),
		region:   cfg.Region,
		idgen:    idgen,
		clock:    clock,
	}, nil
}

func (u *S3Uploader) UploadPhoto(ctx context.Context, jobID, doorID string, data []byte) (*job.MediaInfo, error) {
	id := u.idgen.New()
	key := u.key(jobID, doorID, "photo-"+id)
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(http.DetectContentType(data)),
	})
	if err != nil {
		return nil, &engine.TransportError{Op: "s3 photo upload", Err: err}
	}
	return u.mediaInfo(id, key), nil
}

func (u *S3Uploader) UploadVideo(ctx context.Context, jobID, doorID string, data []byte) (*job.MediaInfo, error) {
	id := u.idgen.New()
	key := u.key(jobID, doorID, "video-"+id)
	// The manager splits large bodies into concurrent multipart uploads.
	_, err := u.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(http.DetectContentType(data)),
	})
	if err != nil {
		return nil, &engine.TransportError{Op: "s3 video upload", Err: err}
	}
	return u.mediaInfo(id, key), nil
}

func (u *S3Uploader) key(jobID, doorID, name string) string {
	return path.Join(u.prefix, "jobs", jobID, "doors", doorID, name)
}

func (u *S3Uploader) mediaInfo(id, key string) *job.MediaInfo {
	url := u.objectURL(key)
	return &job.MediaInfo{
		ID:           id,
		URL:          url,
		ThumbnailURL: url,
		UploadedAt:   u.clock.Now(),
	}
}

func (u *S3Uploader) objectURL(key string) string {
	if u.baseURL != "" {
		return u.baseURL + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", u.bucket, u.region, key)
}
