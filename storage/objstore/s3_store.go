package objstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"deltaglass.dev/deltaglass/storage"
)

// S3Store is an ObjectStore over one S3 bucket. Paths given to List and Read
// are relative to the configured key prefix.
type S3Store struct {
	svc    S3Service
	bucket string
	prefix string
	ctx    context.Context
}

type NewS3StoreParams struct {
	Bucket string
	Prefix string

	// Region overrides the region from the default config chain.
	Region string

	// AccessKeyID and SecretAccessKey select static credentials instead of
	// the default provider chain. Used for S3-compatible endpoints.
	AccessKeyID     string
	SecretAccessKey string

	// Service overrides the S3 client, used by tests.
	Service S3Service
}

func NewS3Store(ctx context.Context, params *NewS3StoreParams) (*S3Store, error) {
	svc := params.Service
	if svc == nil {
		var opts []func(*config.LoadOptions) error
		if params.Region != "" {
			opts = append(opts, config.WithRegion(params.Region))
		}
		if params.AccessKeyID != "" {
			opts = append(opts, config.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(params.AccessKeyID, params.SecretAccessKey, "")))
		}
		cfg, err := config.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("loading aws config: %w", err)
		}
		svc = s3.NewFromConfig(cfg)
	}

	return &S3Store{
		svc:    svc,
		bucket: params.Bucket,
		prefix: params.Prefix,
		ctx:    ctx,
	}, nil
}

func (s *S3Store) List(prefix string) iter.Seq2[storage.FileMeta, error] {
	fullPrefix := path.Join(s.prefix, prefix)

	return func(yield func(storage.FileMeta, error) bool) {
		var continuationToken *string
		for {
			out, err := s.svc.ListObjectsV2(s.ctx, &s3.ListObjectsV2Input{
				Bucket:            &s.bucket,
				Prefix:            &fullPrefix,
				ContinuationToken: continuationToken,
			})
			if err != nil {
				yield(storage.FileMeta{}, fmt.Errorf("s3 list %s: %w", fullPrefix, err))
				return
			}

			for _, obj := range out.Contents {
				meta := storage.FileMeta{
					Path: s.relativeKey(aws.ToString(obj.Key)),
					Size: aws.ToInt64(obj.Size),
				}
				if obj.LastModified != nil {
					meta.LastModified = *obj.LastModified
				}
				if !yield(meta, nil) {
					return
				}
			}

			if !aws.ToBool(out.IsTruncated) {
				return
			}
			continuationToken = out.NextContinuationToken
		}
	}
}

func (s *S3Store) Read(p string) ([]byte, error) {
	key := path.Join(s.prefix, p)
	out, err := s.svc.GetObject(s.ctx, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	})
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return nil, fmt.Errorf("s3 read %s: %w", key, storage.ErrNotExist)
	}
	if err != nil {
		return nil, fmt.Errorf("s3 read %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("s3 read %s: %w", key, err)
	}
	return data, nil
}

func (s *S3Store) relativeKey(key string) string {
	if s.prefix == "" {
		return key
	}
	rel, err := filepathRel(s.prefix, key)
	if err != nil {
		return key
	}
	return rel
}

func filepathRel(prefix, key string) (string, error) {
	if len(key) <= len(prefix) || key[:len(prefix)] != prefix {
		return "", fmt.Errorf("key %q not under prefix %q", key, prefix)
	}
	rel := key[len(prefix):]
	if rel[0] == '/' {
		rel = rel[1:]
	}
	return rel, nil
}

var _ storage.ObjectStore = (*S3Store)(nil)
