package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/custodia-labs/corpora-core/internal/core/domain"
	"github.com/custodia-labs/corpora-core/internal/core/ports/driven"
)

// Verify interface compliance
var (
	_ driven.RecordSource  = (*S3Source)(nil)
	_ driven.ArtifactStore = (*S3ArtifactStore)(nil)
)

// S3Config configures access to an S3-compatible bucket. Endpoint and
// UsePathStyle make it work against MinIO.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	Prefix          string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

// newS3Client builds an S3 client from the config, honoring static
// credentials and custom endpoints when set.
func newS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("%w: s3 bucket is required", domain.ErrConfiguration)
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	loadOptions := []func(*config.LoadOptions) error{
		config.WithRegion(region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOptions = append(loadOptions, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOptions...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	endpoint := strings.TrimSpace(cfg.Endpoint)
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		if cfg.UsePathStyle {
			o.UsePathStyle = true
		}
	})
	return client, nil
}

// S3Source reads a batch from a JSONL object in an S3-compatible bucket.
type S3Source struct {
	client *s3.Client
	bucket string
	key    string
	name   string
}

// NewS3Source creates a record source over the object at key.
// The source name is the object's base name without its extension.
func NewS3Source(ctx context.Context, cfg S3Config, key string) (*S3Source, error) {
	client, err := newS3Client(ctx, cfg)
	if err != nil {
		return nil, err
	}

	fullKey := key
	if prefix := strings.Trim(cfg.Prefix, "/"); prefix != "" {
		fullKey = path.Join(prefix, key)
	}
	base := path.Base(fullKey)

	return &S3Source{
		client: client,
		bucket: cfg.Bucket,
		key:    fullKey,
		name:   strings.TrimSuffix(base, path.Ext(base)),
	}, nil
}

// Name identifies the batch.
func (s *S3Source) Name() string {
	return s.name
}

// Open starts reading the batch object. A missing object reports
// domain.ErrNotFound.
func (s *S3Source) Open(ctx context.Context) (driven.RecordReader, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &s.key,
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, fmt.Errorf("batch object %s: %w", s.key, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("s3 get object %s: %w", s.key, err)
	}
	return newLineReader(out.Body), nil
}

// S3ArtifactStore publishes snapshots to an S3-compatible bucket, one
// prefix per version.
type S3ArtifactStore struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3ArtifactStore creates an artifact store over the configured bucket.
func NewS3ArtifactStore(ctx context.Context, cfg S3Config) (*S3ArtifactStore, error) {
	client, err := newS3Client(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &S3ArtifactStore{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// WriteSnapshot uploads manifest.json, records.jsonl, and audit.jsonl
// under the version's prefix. Retried runs overwrite the objects with
// identical content.
func (s *S3ArtifactStore) WriteSnapshot(ctx context.Context, snap *domain.Snapshot) error {
	manifestJSON, recordsJSONL, auditJSONL, err := snapshotFiles(snap)
	if err != nil {
		return err
	}

	uploads := []struct {
		name        string
		contentType string
		data        []byte
	}{
		{manifestFile, "application/json", manifestJSON},
		{recordsFile, "application/x-ndjson", recordsJSONL},
		{auditFile, "application/x-ndjson", auditJSONL},
	}
	for _, u := range uploads {
		key := s.objectKey(snap.Manifest.VersionID, u.name)
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      &s.bucket,
			Key:         &key,
			Body:        bytes.NewReader(u.data),
			ContentType: aws.String(u.contentType),
		})
		if err != nil {
			return fmt.Errorf("s3 put object %s: %w", key, err)
		}
	}
	return nil
}

func (s *S3ArtifactStore) objectKey(versionID, name string) string {
	if s.prefix == "" {
		return path.Join(versionID, name)
	}
	return path.Join(s.prefix, versionID, name)
}
