package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// PutObjectAPI is the subset of the S3 client the store needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Config configures an S3 client. Empty credentials use anonymous access,
// which only works against buckets that allow it.
type S3Config struct {
	Bucket          string `json:"bucket" yaml:"bucket" validate:"required"`
	Prefix          string `json:"prefix" yaml:"prefix"`
	Region          string `json:"region" yaml:"region" validate:"required"`
	Endpoint        string `json:"endpoint" yaml:"endpoint" validate:"omitempty,url"`
	AccessKeyID     string `json:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `json:"-" yaml:"-"`
	PathStyle       bool   `json:"path_style" yaml:"path_style"`
}

// NewS3Client builds an S3 client from cfg. Endpoint targets
// S3-compatible services such as MinIO.
func NewS3Client(cfg S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		UsePathStyle: cfg.PathStyle,
		Credentials:  aws.AnonymousCredentials{},
	}
	if cfg.AccessKeyID != "" {
		creds := aws.Credentials{
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
			Source:          "billform",
		}
		opts.Credentials = aws.NewCredentialsCache(aws.CredentialsProviderFunc(
			func(context.Context) (aws.Credentials, error) { return creds, nil }))
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// S3Store uploads documents to a bucket.
type S3Store struct {
	client  PutObjectAPI
	bucket  string
	prefix  string
	maxSize int64
	now     func() time.Time
}

// NewS3Store creates an S3 store. Keys are prefix + name; maxSize 0 means
// no limit.
func NewS3Store(client PutObjectAPI, bucket, prefix string, maxSize int64) *S3Store {
	return &S3Store{
		client:  client,
		bucket:  bucket,
		prefix:  prefix,
		maxSize: maxSize,
		now:     time.Now,
	}
}

// Kind returns "s3".
func (s *S3Store) Kind() string { return "s3" }

// Put buffers r and uploads it with a single PutObject call. Rendered
// documents are small, so multipart upload is not needed.
func (s *S3Store) Put(ctx context.Context, name, contentType string, r io.Reader) (Location, error) {
	if err := validName(name); err != nil {
		return Location{}, err
	}

	var buf bytes.Buffer
	reader := r
	if s.maxSize > 0 {
		reader = io.LimitReader(r, s.maxSize+1)
	}
	n, err := io.Copy(&buf, reader)
	if err != nil {
		return Location{}, err
	}
	if s.maxSize > 0 && n > s.maxSize {
		return Location{}, ErrTooLarge
	}

	key := s.prefix + name
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(buf.Bytes()),
		ContentLength: aws.Int64(n),
		ContentType:   aws.String(contentType),
		Metadata: map[string]string{
			"exported-at": s.now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return Location{}, fmt.Errorf("export: s3 put %s: %w", key, err)
	}
	return Location{
		Store: s.Kind(),
		Name:  name,
		URL:   "s3://" + s.bucket + "/" + key,
		Size:  n,
	}, nil
}
