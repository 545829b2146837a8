package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	oerrors "github.com/modkit/cli/internal/errors"
)

const s3Scheme = "s3://"

// S3Options configures access to archives referenced as s3://bucket/key.
type S3Options struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// IsS3Ref reports whether ref names an object store archive.
func IsS3Ref(ref string) bool {
	return strings.HasPrefix(ref, s3Scheme)
}

// ParseS3Ref splits s3://bucket/key into its bucket and key.
func ParseS3Ref(ref string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(ref, s3Scheme)
	if !ok {
		return "", "", fmt.Errorf("%q is not an s3:// reference", ref)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" || strings.Trim(key, "/") == "" {
		return "", "", fmt.Errorf("%q must have the form s3://bucket/key", ref)
	}
	return bucket, key, nil
}

func newS3Client(opts S3Options) (*minio.Client, error) {
	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	access := strings.TrimSpace(opts.AccessKey)
	secret := strings.TrimSpace(opts.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("s3 access key and secret key are required")
	}
	region := strings.TrimSpace(opts.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: opts.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}
	return client, nil
}

func openS3(ctx context.Context, ref string, opts S3Options) (blob, int64, error) {
	bucket, key, err := ParseS3Ref(ref)
	if err != nil {
		return nil, 0, oerrors.NewExtractionError("invalid archive reference", ref, err)
	}

	client, err := newS3Client(opts)
	if err != nil {
		return nil, 0, oerrors.NewExtractionError("cannot reach object store", ref, err)
	}

	obj, err := client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, 0, oerrors.NewExtractionError("cannot fetch archive", ref, err)
	}
	info, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, 0, oerrors.NewExtractionError("cannot fetch archive", ref, err)
	}
	return obj, info.Size, nil
}
