// Package archive keeps a copy of uploaded exam documents in object storage.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	"github.com/triagify/triagify-backend/internal/config"
)

// Archive stores raw documents under a key.
type Archive interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
}

// Nop discards documents. It is used when no bucket is configured.
type Nop struct{}

func (Nop) Put(context.Context, string, []byte, string) error { return nil }

type putObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3 writes private objects into one bucket.
type S3 struct {
	client putObjectAPI
	bucket string
}

// New returns an S3 archive when cfg.Bucket is set and Nop otherwise.
// Credentials and region come from the default AWS chain; AWS_ENDPOINT_URL
// may point at an S3-compatible store.
func New(ctx context.Context, cfg config.ArchiveConfig) (Archive, error) {
	if cfg.Bucket == "" {
		return Nop{}, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	client := s3.New(s3.Options{
		Region:       awsCfg.Region,
		Credentials:  awsCfg.Credentials,
		HTTPClient:   awsCfg.HTTPClient,
		BaseEndpoint: awsCfg.BaseEndpoint,
		UsePathStyle: true,
	})
	return &S3{client: client, bucket: cfg.Bucket}, nil
}

func (a *S3) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		ACL:         types.ObjectCannedACLPrivate,
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", a.bucket, key, err)
	}
	return nil
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ExamKey builds a unique object key for an exam document of a screening:
// <prefix>/<screeningID>/<yyyymmdd>-<uuid>-<sanitized filename>.
func ExamKey(prefix, screeningID, filename string, now time.Time) string {
	name := unsafeChars.ReplaceAllString(path.Base(strings.ReplaceAll(filename, `\`, "/")), "_")
	name = strings.Trim(name, "._")
	if name == "" {
		name = "document"
	}
	return path.Join(prefix, screeningID, fmt.Sprintf("%s-%s-%s", now.UTC().Format("20060102"), uuid.NewString(), name))
}
