package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"eldercare/backend/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// SigV4 presigned URLs cannot outlive seven days.
const maxPresignExpiry = 7 * 24 * time.Hour

type S3Store struct {
	bucket   string
	logger   *slog.Logger
	uploader *manager.Uploader
	presign  *s3.PresignClient
	s3Client *s3.Client
}

func NewS3Store(cfg *config.Config, logger *slog.Logger) (*S3Store, error) {
	if cfg.S3BucketName == "" {
		return nil, errors.New("s3 bucket is required")
	}

	s3Opts := []func(*s3.Options){}
	if cfg.S3Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true // MinIO
		})
	}

	awsCfg := aws.Config{
		Region: cfg.S3Region,
		Credentials: aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
			cfg.S3AccessKeyID,
			cfg.S3SecretAccessKey,
			"",
		)),
	}

	s3Client := s3.NewFromConfig(awsCfg, s3Opts...)

	logger.Info("s3 blob store initialized", "endpoint", cfg.S3Endpoint, "bucket", cfg.S3BucketName)

	return &S3Store{
		bucket:   cfg.S3BucketName,
		logger:   logger,
		uploader: manager.NewUploader(s3Client),
		presign:  s3.NewPresignClient(s3Client),
		s3Client: s3Client,
	}, nil
}

func (s *S3Store) Save(ctx context.Context, key string, payload []byte, contentType string) error {
	if err := ValidateKey(key); err != nil {
		return failure("save", key, err)
	}

	result, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String(contentType),
		IfNoneMatch: aws.String("*"),
	})
	if err != nil {
		if isPreconditionFailed(err) {
			return failure("save", key, ErrExists)
		}
		return failure("save", key, fmt.Errorf("failed to upload blob: %w", err))
	}

	s.logger.DebugContext(ctx, "blob uploaded", "location", result.Location, "size", len(payload))
	return nil
}

// S3 answers a conditional put on an existing key with 412 PreconditionFailed.
func isPreconditionFailed(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "PreconditionFailed"
}

func (s *S3Store) IssueRetrievalURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", failure("sign", key, err)
	}

	_, err := s.s3Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return "", failure("sign", key, ErrNotFound)
		}
		return "", failure("sign", key, fmt.Errorf("failed to stat blob: %w", err))
	}

	u, err := s.presignGet(ctx, key, expiry)
	if err != nil {
		return "", failure("sign", key, err)
	}
	return u, nil
}

func (s *S3Store) presignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if expiry > maxPresignExpiry {
		s.logger.WarnContext(ctx, "presign expiry clamped", "requested", expiry, "max", maxPresignExpiry)
		expiry = maxPresignExpiry
	}

	request, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	return request.URL, nil
}

func (s *S3Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ValidateKey(key); err != nil {
		return nil, failure("open", key, err)
	}

	out, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, failure("open", key, ErrNotFound)
		}
		return nil, failure("open", key, fmt.Errorf("failed to get blob: %w", err))
	}
	return out.Body, nil
}

func (s *S3Store) List(ctx context.Context, prefix string) ([]string, error) {
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}

	paginator := s3.NewListObjectsV2Paginator(s.s3Client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	keys := []string{}
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, failure("list", prefix, fmt.Errorf("failed to list blobs: %w", err))
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}

func (s *S3Store) HealthCheck(ctx context.Context) error {
	_, err := s.s3Client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		return fmt.Errorf("storage health check failed: %w", err)
	}
	return nil
}

var _ BlobStore = (*S3Store)(nil)
