package services

import (
	"context"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go/logging"
	"github.com/tourforge/backend/internal/config"
)

// S3Service keeps an offsite copy of published bundles. Mirroring is
// best-effort: serving always reads the local artifact, so a missing or
// stale mirror never affects readers.
type S3Service struct {
	client *s3.Client
	cfg    *config.Config
}

func NewS3Service(cfg *config.Config) (*S3Service, error) {
	client, err := buildClient(cfg.BundleS3Endpoint, cfg.BundleS3Region, cfg.BundleS3AccessKeyID, cfg.BundleS3SecretAccessKey, cfg.BundleS3UsePathStyle)
	if err != nil {
		return nil, err
	}
	return &S3Service{client: client, cfg: cfg}, nil
}

func buildClient(endpoint, region, key, secret string, pathStyle bool) (*s3.Client, error) {
	resolver := awsconfig.WithEndpointResolverWithOptions(aws.EndpointResolverWithOptionsFunc(
		func(service, rgn string, options ...interface{}) (aws.Endpoint, error) {
			if endpoint != "" {
				return aws.Endpoint{URL: endpoint, SigningRegion: region}, nil
			}
			return aws.Endpoint{}, &aws.EndpointNotFoundError{}
		}))
	cfg, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(key, secret, "")),
		resolver,
		awsconfig.WithLogger(logging.NewStandardLogger(nil)),
	)
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = pathStyle
		if endpoint != "" {
			o.BaseEndpoint = &endpoint
		}
	})
	return client, nil
}

// UploadBundle mirrors a bundle archive under its storage key
func (s *S3Service) UploadBundle(ctx context.Context, key string, body io.Reader) error {
	uploader := manager.NewUploader(s.client)
	ctype := "application/zip"
	_, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      &s.cfg.BundleBucket,
		Key:         &key,
		Body:        body,
		ContentType: &ctype,
		ACL:         s3types.ObjectCannedACLPrivate,
	}, func(u *manager.Uploader) { u.PartSize = 10 * 1024 * 1024 })
	return err
}

// DeleteBundle removes a mirrored bundle
func (s *S3Service) DeleteBundle(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &s.cfg.BundleBucket,
		Key:    &key,
	})
	return err
}
