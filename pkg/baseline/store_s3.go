package baseline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/ethpandaops/dbbench/pkg/config"
	"github.com/sirupsen/logrus"
)

const defaultS3Prefix = "baselines"

// s3Store keeps one JSON object per benchmark in an S3-compatible bucket.
type s3Store struct {
	log    logrus.FieldLogger
	cfg    *config.S3StorageConfig
	client *s3.Client
}

// Ensure interface compliance.
var _ Store = (*s3Store)(nil)

// NewS3Store creates a store backed by the bucket in cfg.
func NewS3Store(log logrus.FieldLogger, cfg *config.S3StorageConfig) Store {
	return &s3Store{
		log:    log.WithField("component", "baseline-s3"),
		cfg:    cfg,
		client: newS3Client(cfg),
	}
}

func newS3Client(cfg *config.S3StorageConfig) *s3.Client {
	return s3.New(s3.Options{}, func(o *s3.Options) {
		if cfg.Region != "" {
			o.Region = cfg.Region
		} else {
			o.Region = "us-east-1"
		}

		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
		}

		if cfg.ForcePathStyle {
			o.UsePathStyle = true
		}

		if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
			o.Credentials = credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID, cfg.SecretAccessKey, "",
			)
		}
	})
}

func (s *s3Store) Type() string {
	return config.StorageS3
}

// Start verifies the bucket is reachable.
func (s *s3Store) Start(ctx context.Context) error {
	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.cfg.Bucket),
	}); err != nil {
		return fmt.Errorf("checking bucket s3://%s: %w", s.cfg.Bucket, err)
	}

	return nil
}

func (s *s3Store) Stop() error {
	return nil
}

func (s *s3Store) Save(ctx context.Context, r *Result) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling baseline: %w", err)
	}

	key := s.objectKey(r.Key())

	s.log.WithFields(logrus.Fields{
		"key":    key,
		"bucket": s.cfg.Bucket,
	}).Debug("Uploading baseline")

	if _, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	}); err != nil {
		return fmt.Errorf("putting object %q: %w", key, err)
	}

	return nil
}

func (s *s3Store) Load(ctx context.Context, name string) (*Result, error) {
	key := s.objectKey(StorageKey(name))

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("getting object %q: %w", key, err)
	}

	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("reading object %q: %w", key, err)
	}

	var r Result
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decoding baseline: %w", err)
	}

	return &r, nil
}

// Delete removes the object. S3 deletes are idempotent, so existence is
// checked first to report ErrNotFound.
func (s *s3Store) Delete(ctx context.Context, name string) error {
	key := s.objectKey(StorageKey(name))

	if _, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	}); err != nil {
		if isS3NotFound(err) {
			return ErrNotFound
		}

		return fmt.Errorf("checking object %q: %w", key, err)
	}

	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("deleting object %q: %w", key, err)
	}

	return nil
}

func (s *s3Store) List(ctx context.Context) ([]Entry, error) {
	prefix := s.resolvePrefix() + "/"
	entries := make([]Entry, 0)

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.cfg.Bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing baselines under %q: %w", prefix, err)
		}

		for _, obj := range page.Contents {
			if e, ok := entryFromObject(prefix, obj); ok {
				entries = append(entries, e)
			}
		}
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })

	return entries, nil
}

func entryFromObject(prefix string, obj s3types.Object) (Entry, bool) {
	key := aws.ToString(obj.Key)
	name := strings.TrimPrefix(key, prefix)

	if name == "" || strings.Contains(name, "/") || !strings.HasSuffix(name, baselineExt) {
		return Entry{}, false
	}

	return Entry{
		Key:       strings.TrimSuffix(name, baselineExt),
		UpdatedAt: aws.ToTime(obj.LastModified).UTC(),
		Size:      aws.ToInt64(obj.Size),
	}, true
}

// resolvePrefix returns the configured key prefix without trailing slashes.
func (s *s3Store) resolvePrefix() string {
	prefix := s.cfg.Prefix
	if prefix == "" {
		prefix = defaultS3Prefix
	}

	return strings.TrimRight(prefix, "/")
}

func (s *s3Store) objectKey(key string) string {
	return s.resolvePrefix() + "/" + key + baselineExt
}

// isS3NotFound returns true if the error indicates the object does not exist.
func isS3NotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}

	var nf *s3types.NotFound
	if errors.As(err, &nf) {
		return true
	}

	// Some S3-compatible implementations return a generic error with
	// "NoSuchKey" in the message rather than the typed error.
	return strings.Contains(err.Error(), "NoSuchKey")
}
