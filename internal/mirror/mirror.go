package mirror

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/qtdeploy/qtdeploy/internal/config"
	"github.com/qtdeploy/qtdeploy/internal/release"
	"github.com/sirupsen/logrus"
)

const (
	defaultRegion    = "auto"
	checksumMetadata = "checksum"
)

// NewS3Client creates a client for any S3 compatible storage. A custom
// endpoint is addressed path style.
func NewS3Client(ctx context.Context, cfg config.Mirror) (*s3.Client, error) {
	region := cfg.Region
	if region == "" {
		region = defaultRegion
	}
	opts := []func(*awsConfig.LoadOptions) error{
		awsConfig.WithRegion(region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsConfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, awsConfig.WithEndpointResolverWithOptions(aws.EndpointResolverWithOptionsFunc(
			func(_, _ string, _ ...interface{}) (aws.Endpoint, error) {
				return aws.Endpoint{
					URL:               cfg.Endpoint,
					HostnameImmutable: true,
				}, nil
			},
		)))
	}
	s3Cfg, err := awsConfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(s3Cfg), nil
}

// Mirror copies release archives to a bucket below <prefix>/<tag>/.
type Mirror struct {
	log    *logrus.Entry
	client *s3.Client
	bucket string
	prefix string
}

func New(log *logrus.Entry, client *s3.Client, cfg config.Mirror) *Mirror {
	return &Mirror{
		log:    log,
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}
}

func (m *Mirror) Key(archivePath, tag string) string {
	return path.Join(m.prefix, tag, filepath.Base(archivePath))
}

func fileChecksum(f *os.File) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Upload stores the archive unless an object with the same checksum is
// already present. It returns the object key.
func (m *Mirror) Upload(ctx context.Context, archivePath, tag string) (string, error) {
	key := m.Key(archivePath, tag)
	f, err := os.Open(archivePath)
	if err != nil {
		return "", fmt.Errorf("could not open archive: %w", err)
	}
	defer f.Close()
	checksum, err := fileChecksum(f)
	if err != nil {
		return "", fmt.Errorf("could not hash archive: %w", err)
	}

	headRes, err := m.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(key),
	})
	if err == nil && headRes.Metadata[checksumMetadata] == checksum {
		m.log.Infof("archive %s is already mirrored", key)
		return key, nil
	}
	var apiErr smithy.APIError
	if err != nil && (!errors.As(err, &apiErr) || apiErr.ErrorCode() != "NotFound") {
		return "", fmt.Errorf("could not check if archive exists: %w", err)
	}

	m.log.Infof("uploading %s to bucket %s...", key, m.bucket)
	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(m.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(release.MediaType(archivePath)),
		Metadata: map[string]string{
			checksumMetadata: checksum,
		},
	})
	if err != nil {
		return "", fmt.Errorf("could not upload archive: %w", err)
	}
	return key, nil
}
