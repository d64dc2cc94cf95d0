package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/Mindburn-Labs/depot/pkg/cas"
)

// S3Adapter stores artifacts in an S3-compatible bucket. Objects are
// keyed {prefix}{digest}.blob; artifact metadata rides in S3 object
// metadata so no secondary index is needed.
type S3Adapter struct {
	client *s3.Client
	bucket string
	prefix string
}

// S3Config holds configuration for the S3 adapter.
type S3Config struct {
	Bucket   string
	Region   string
	Endpoint string // Optional custom endpoint (for MinIO, LocalStack, etc.)
	Prefix   string // Optional key prefix
}

// Object metadata keys. S3 lowercases metadata names on the wire.
const (
	s3MetaFilename   = "filename"
	s3MetaUploadedAt = "uploaded-at"
	s3MetaCustom     = "custom-" // prefix for caller-supplied entries
)

// NewS3Adapter creates an S3-backed adapter using the default AWS
// credential chain.
func NewS3Adapter(ctx context.Context, cfg S3Config) (*S3Adapter, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	clientOpts := func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true // Required for MinIO/LocalStack
		}
	}

	return &S3Adapter{
		client: s3.NewFromConfig(awsCfg, clientOpts),
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

func (s *S3Adapter) objectKey(digest cas.Digest) string {
	return s.prefix + string(digest) + blobSuffix
}

// Put uploads the blob with its metadata attached to the object.
func (s *S3Adapter) Put(ctx context.Context, digest cas.Digest, data []byte, meta Metadata) error {
	objMeta := map[string]string{
		s3MetaUploadedAt: meta.UploadedAt.UTC().Format(time.RFC3339Nano),
	}
	if meta.Filename != "" {
		objMeta[s3MetaFilename] = meta.Filename
	}
	for k, v := range meta.Custom {
		objMeta[s3MetaCustom+k] = v
	}

	contentType := meta.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.objectKey(digest)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		Metadata:    objMeta,
	})
	if err != nil {
		return fmt.Errorf("s3 put failed for %s: %w", digest, err)
	}
	return nil
}

// Get downloads the object; the returned body streams directly from S3.
func (s *S3Adapter) Get(ctx context.Context, digest cas.Digest) (*StoredArtifact, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(digest)),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("s3 get failed for %s: %w", digest, err)
	}

	size := int64(0)
	if result.ContentLength != nil {
		size = *result.ContentLength
	}

	meta := Metadata{Size: size}
	if result.ContentType != nil {
		meta.ContentType = *result.ContentType
	}
	for k, v := range result.Metadata {
		switch {
		case k == s3MetaFilename:
			meta.Filename = v
		case k == s3MetaUploadedAt:
			meta.UploadedAt, _ = time.Parse(time.RFC3339Nano, v)
		case strings.HasPrefix(k, s3MetaCustom):
			if meta.Custom == nil {
				meta.Custom = make(map[string]string)
			}
			meta.Custom[strings.TrimPrefix(k, s3MetaCustom)] = v
		}
	}

	return &StoredArtifact{
		Digest:   digest,
		Body:     result.Body,
		Size:     size,
		Metadata: meta,
	}, nil
}

// Delete removes the object, reporting whether it was present.
// S3 DeleteObject succeeds for absent keys, so presence is checked
// first; the check and the delete are not atomic, which is acceptable
// for immutable content.
func (s *S3Adapter) Delete(ctx context.Context, digest cas.Digest) (bool, error) {
	existed, err := s.Exists(ctx, digest)
	if err != nil {
		return false, err
	}
	if !existed {
		return false, nil
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(digest)),
	})
	if err != nil {
		return false, fmt.Errorf("s3 delete failed for %s: %w", digest, err)
	}
	return true, nil
}

// Exists probes the object with HeadObject (no body transfer).
func (s *S3Adapter) Exists(ctx context.Context, digest cas.Digest) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(digest)),
	})
	if err != nil {
		if isS3NotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("s3 head failed for %s: %w", digest, err)
	}
	return true, nil
}

// List pages through the bucket with ListObjectsV2; the continuation
// token is the cursor.
func (s *S3Adapter) List(ctx context.Context, opts ListOptions) ([]cas.Digest, string, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	input := &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		Prefix:  aws.String(s.prefix),
		MaxKeys: aws.Int32(int32(limit)),
	}
	if opts.Cursor != "" {
		input.ContinuationToken = aws.String(opts.Cursor)
	}

	result, err := s.client.ListObjectsV2(ctx, input)
	if err != nil {
		return nil, "", fmt.Errorf("s3 list failed: %w", err)
	}

	digests := make([]cas.Digest, 0, len(result.Contents))
	for _, obj := range result.Contents {
		if obj.Key == nil {
			continue
		}
		name := strings.TrimSuffix(path.Base(*obj.Key), blobSuffix)
		d := cas.Digest(name)
		if d.Validate() != nil {
			continue
		}
		digests = append(digests, d)
	}

	next := ""
	if result.NextContinuationToken != nil {
		next = *result.NextContinuationToken
	}
	return digests, next, nil
}

func isS3NotFound(err error) bool {
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	return errors.As(err, &notFound) || errors.As(err, &noSuchKey)
}
