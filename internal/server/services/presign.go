// Package services implements the application services behind the HTTP API:
// upload-URL issuance, batch admission, job record management, work-queue
// access and AI result storage.
package services

import (
	"context"
	"strings"

	sc "github.com/dmitrijs2005/receiptpipe/internal/server/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// Presigner mints time-limited, method-and-key-bound URLs for direct client
// access to object storage. The server never proxies file bytes itself.
type Presigner struct {
	config *sc.Config
}

// NewPresigner constructs a Presigner from server configuration.
func NewPresigner(config *sc.Config) *Presigner {
	return &Presigner{config: config}
}

func (p *Presigner) getPresignClient() (*s3.PresignClient, error) {
	cfg, err := loadDefaultAWSConfig(context.Background(),
		config.WithRegion(p.config.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			p.config.S3RootUser,     // MINIO_ROOT_USER
			p.config.S3RootPassword, // MINIO_ROOT_PASSWORD
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(p.config.S3BaseEndpoint)
	})

	return newS3PresignClient(client), nil
}

// PresignedPutURL returns a write authorization for the given key, bound to
// the declared content type and length, valid for the configured upload TTL.
func (p *Presigner) PresignedPutURL(ctx context.Context, key, contentType string, size int64) (string, error) {

	presignClient, err := p.getPresignClient()
	if err != nil {
		return "", err
	}

	bucket := p.config.S3Bucket

	// Presigned PUT
	req, err := presignPutObject(presignClient, ctx, &s3.PutObjectInput{
		Bucket:        &bucket,
		Key:           &key,
		ContentType:   &contentType,
		ContentLength: aws.Int64(size),
	}, s3.WithPresignExpires(p.config.UploadURLTTL))

	if err != nil {
		return "", err
	}

	return req.URL, nil
}

// PresignedGetURL returns a read authorization for the given key, valid for
// the configured download TTL.
func (p *Presigner) PresignedGetURL(ctx context.Context, key string) (string, error) {

	presignClient, err := p.getPresignClient()
	if err != nil {
		return "", err
	}

	bucket := p.config.S3Bucket

	// Presigned GET
	req, err := presignGetObject(presignClient, ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(p.config.DownloadURLTTL))
	if err != nil {
		return "", err
	}

	return req.URL, nil
}

// ObjectURL resolves a storage key to a publicly addressable read URL.
// With a custom base endpoint (MinIO and friends) the path-style form is
// used; otherwise the virtual-hosted AWS form.
func (p *Presigner) ObjectURL(key string) string {
	if p.config.S3BaseEndpoint != "" {
		return strings.TrimRight(p.config.S3BaseEndpoint, "/") + "/" + p.config.S3Bucket + "/" + key
	}
	return "https://" + p.config.S3Bucket + ".s3.amazonaws.com/" + key
}
