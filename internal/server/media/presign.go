// Package media issues presigned S3 URLs for post images. Uploads and
// downloads go straight to the object store; the server only stores keys.
package media

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

const presignExpiry = 15 * time.Minute

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

	now = time.Now
)

// Options configures the S3-compatible backend.
type Options struct {
	Region       string
	RootUser     string
	RootPassword string
	BaseEndpoint string
	Bucket       string
}

// Presigner lazily builds one presign client and reuses it.
type Presigner struct {
	opts Options

	once   sync.Once
	client *s3.PresignClient
	err    error
}

func NewPresigner(opts Options) *Presigner {
	return &Presigner{opts: opts}
}

func (p *Presigner) presignClient(ctx context.Context) (*s3.PresignClient, error) {
	p.once.Do(func() {
		cfg, err := loadDefaultAWSConfig(ctx,
			config.WithRegion(p.opts.Region),
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				p.opts.RootUser,
				p.opts.RootPassword,
				"",
			)))
		if err != nil {
			p.err = err
			return
		}
		client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(p.opts.BaseEndpoint)
			o.UsePathStyle = true
		})
		p.client = newS3PresignClient(client)
	})
	return p.client, p.err
}

// NewImageKey returns a fresh object key for an image of a post by ownerID.
func NewImageKey(ownerID string) string {
	d := now().UTC()
	return fmt.Sprintf("posts/%s/%d/%02d/%02d/%s", ownerID, d.Year(), d.Month(), d.Day(), uuid.NewString())
}

// UploadURL returns a presigned PUT URL for key.
func (p *Presigner) UploadURL(ctx context.Context, key string) (string, error) {
	pc, err := p.presignClient(ctx)
	if err != nil {
		return "", err
	}
	bucket := p.opts.Bucket
	req, err := presignPutObject(pc, ctx, &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(presignExpiry))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}

// DownloadURL returns a presigned GET URL for key.
func (p *Presigner) DownloadURL(ctx context.Context, key string) (string, error) {
	pc, err := p.presignClient(ctx)
	if err != nil {
		return "", err
	}
	bucket := p.opts.Bucket
	req, err := presignGetObject(pc, ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(presignExpiry))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}
