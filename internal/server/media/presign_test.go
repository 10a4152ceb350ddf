package media

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testOpts = Options{
	Region:       "us-east-1",
	RootUser:     "minioadmin",
	RootPassword: "minioadmin",
	BaseEndpoint: "http://127.0.0.1:9000",
	Bucket:       "posts",
}

// stubAWS replaces the client constructors and restores them on cleanup.
func stubAWS(t *testing.T) *string {
	t.Helper()
	origLoad, origNewS3, origNewPre := loadDefaultAWSConfig, newS3ClientFromConfig, newS3PresignClient
	origPut, origGet := presignPutObject, presignGetObject
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNewS3
		newS3PresignClient = origNewPre
		presignPutObject = origPut
		presignGetObject = origGet
	})

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		var lo awsconfig.LoadOptions
		for _, fn := range optFns {
			if err := fn(&lo); err != nil {
				t.Fatalf("load options fn error: %v", err)
			}
		}
		if lo.Region != "us-east-1" {
			t.Fatalf("region not applied: %q", lo.Region)
		}
		return aws.Config{}, nil
	}

	var endpoint string
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		var opts s3.Options
		for _, fn := range optFns {
			fn(&opts)
		}
		endpoint = aws.ToString(opts.BaseEndpoint)
		return &s3.Client{}
	}
	newS3PresignClient = func(c *s3.Client) *s3.PresignClient { return &s3.PresignClient{} }
	return &endpoint
}

func TestUploadAndDownloadURL(t *testing.T) {
	endpoint := stubAWS(t)

	var putKey, getKey, bucket string
	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		putKey, bucket = *in.Key, *in.Bucket
		var po s3.PresignOptions
		for _, fn := range optFns {
			fn(&po)
		}
		assert.Equal(t, 15*time.Minute, po.Expires)
		return &v4.PresignedHTTPRequest{URL: "https://s3/put"}, nil
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		getKey = *in.Key
		return &v4.PresignedHTTPRequest{URL: "https://s3/get"}, nil
	}

	p := NewPresigner(testOpts)
	url, err := p.UploadURL(context.Background(), "posts/u1/k")
	require.NoError(t, err)
	assert.Equal(t, "https://s3/put", url)
	assert.Equal(t, "posts/u1/k", putKey)
	assert.Equal(t, "posts", bucket)
	assert.Equal(t, "http://127.0.0.1:9000", *endpoint)

	url, err = p.DownloadURL(context.Background(), "posts/u1/k")
	require.NoError(t, err)
	assert.Equal(t, "https://s3/get", url)
	assert.Equal(t, "posts/u1/k", getKey)
}

func TestPresigner_ConfigErrorIsSticky(t *testing.T) {
	stubAWS(t)
	calls := 0
	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		calls++
		return aws.Config{}, errors.New("load-fail")
	}

	p := NewPresigner(testOpts)
	_, err := p.UploadURL(context.Background(), "k")
	assert.EqualError(t, err, "load-fail")
	_, err = p.DownloadURL(context.Background(), "k")
	assert.EqualError(t, err, "load-fail")
	assert.Equal(t, 1, calls)
}

func TestPresigner_PresignErrors(t *testing.T) {
	stubAWS(t)
	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return nil, errors.New("put-fail")
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return nil, errors.New("get-fail")
	}

	p := NewPresigner(testOpts)
	_, err := p.UploadURL(context.Background(), "k")
	assert.EqualError(t, err, "put-fail")
	_, err = p.DownloadURL(context.Background(), "k")
	assert.EqualError(t, err, "get-fail")
}

func TestNewImageKey(t *testing.T) {
	orig := now
	now = func() time.Time { return time.Date(2024, 3, 7, 10, 0, 0, 0, time.UTC) }
	defer func() { now = orig }()

	key := NewImageKey("u1")
	assert.Regexp(t, regexp.MustCompile(`^posts/u1/2024/03/07/[0-9a-f-]{36}$`), key)
	assert.NotEqual(t, key, NewImageKey("u1"))
}
