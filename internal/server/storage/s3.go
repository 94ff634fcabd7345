// Package storage uploads staged files to S3-compatible object storage
// (AWS S3 or MinIO) and returns their public URLs.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	sc "github.com/dmitrijs2005/accountkeeper/internal/server/config"
	"github.com/google/uuid"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	now = time.Now
)

type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Uploader puts files into one bucket.
type S3Uploader struct {
	api           objectPutter
	bucket        string
	publicBaseURL string
}

// NewS3Uploader builds a client with static credentials and path-style
// addressing, which MinIO requires.
func NewS3Uploader(ctx context.Context, cfg *sc.Config) (*S3Uploader, error) {
	awsCfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(cfg.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3RootUser,
			cfg.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3BaseEndpoint)
		}
		o.UsePathStyle = true
	})

	return &S3Uploader{
		api:           client,
		bucket:        cfg.S3Bucket,
		publicBaseURL: publicBaseURL(cfg),
	}, nil
}

// publicBaseURL is S3PublicBaseURL when set, else the path-style bucket URL.
func publicBaseURL(cfg *sc.Config) string {
	if cfg.S3PublicBaseURL != "" {
		return strings.TrimRight(cfg.S3PublicBaseURL, "/")
	}
	return strings.TrimRight(cfg.S3BaseEndpoint, "/") + "/" + cfg.S3Bucket
}

// ObjectKey returns a date-partitioned random key keeping ext.
func ObjectKey(ext string) string {
	d := now().UTC()
	return fmt.Sprintf("uploads/%d/%02d/%02d/%s%s", d.Year(), d.Month(), d.Day(), uuid.New(), ext)
}

// Upload reads the file at path, stores it under a fresh key and returns
// the object's public URL.
func (u *S3Uploader) Upload(ctx context.Context, path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read staged file: %w", err)
	}

	key := ObjectKey(filepath.Ext(path))
	contentType := http.DetectContentType(content)

	_, err = u.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(content),
		ContentLength: aws.Int64(int64(len(content))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return "", err
	}

	return u.publicBaseURL + "/" + key, nil
}
