package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
)

// WriteError reports a failed durable write of the audio object, whether the
// staged file could not be read or the store rejected the upload.
type WriteError struct {
	Bucket string
	Key    string
	Err    error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("storage write s3://%s/%s: %v", e.Bucket, e.Key, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Uploader writes staged audio files to an S3 bucket.
type Uploader struct {
	uploader s3manageriface.UploaderAPI
	bucket   string
	logger   *slog.Logger
}

func NewUploader(sess *session.Session, bucket string, logger *slog.Logger) *Uploader {
	return &Uploader{
		uploader: s3manager.NewUploader(sess),
		bucket:   bucket,
		logger:   logger,
	}
}

// NewUploaderWithAPI wires an explicit uploader implementation, used by tests.
func NewUploaderWithAPI(api s3manageriface.UploaderAPI, bucket string, logger *slog.Logger) *Uploader {
	return &Uploader{uploader: api, bucket: bucket, logger: logger}
}

// Upload writes the file at path to the bucket under key and returns the
// object's location URI. Names are unique per job, so overwrite semantics are
// left to the store.
func (u *Uploader) Upload(ctx context.Context, path, key string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", &WriteError{Bucket: u.bucket, Key: key, Err: err}
	}
	defer file.Close()

	out, err := u.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
		Body:   file,
	})
	if err != nil {
		return "", &WriteError{Bucket: u.bucket, Key: key, Err: err}
	}

	u.logger.Info("file uploaded",
		slog.String("bucket", u.bucket),
		slog.String("key", key),
		slog.String("location", out.Location),
	)
	return out.Location, nil
}
