// Package documents stores death certificates and payout statements. The
// lifecycle core only ever sees opaque document references; retrieval is
// for the admin review screen.
package documents

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// Store persists uploaded files and returns opaque references.
type Store interface {
	Store(ctx context.Context, kind, fileName string, body io.Reader) (string, error)
	Retrieve(ctx context.Context, ref string) (io.ReadCloser, error)
	PresignedURL(ctx context.Context, ref string, expiry time.Duration) (string, error)
}

// S3Store implements Store on an S3 bucket.
type S3Store struct {
	client   *s3.Client
	uploader *manager.Uploader
	presign  *s3.PresignClient
	bucket   string
}

// NewS3Store creates an S3-backed document store.
func NewS3Store(client *s3.Client, bucket string) *S3Store {
	return &S3Store{
		client:   client,
		uploader: manager.NewUploader(client),
		presign:  s3.NewPresignClient(client),
		bucket:   bucket,
	}
}

// Store uploads the file under a generated key and returns it as the
// document reference.
func (s *S3Store) Store(ctx context.Context, kind, fileName string, body io.Reader) (string, error) {
	key := fmt.Sprintf("%s/%s/%s", kind, uuid.New().String(), fileName)
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   body,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload document: %w", err)
	}
	return key, nil
}

// Retrieve streams a stored document back.
func (s *S3Store) Retrieve(ctx context.Context, ref string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(ref),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download document: %w", err)
	}
	return out.Body, nil
}

// PresignedURL returns a short-lived direct download link for the admin
// review screen.
func (s *S3Store) PresignedURL(ctx context.Context, ref string, expiry time.Duration) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(ref),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("failed to presign document url: %w", err)
	}
	return req.URL, nil
}
