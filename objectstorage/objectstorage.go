// Package objectstorage stores uploaded documents in an S3 compatible
// bucket.
package objectstorage

import (
	"context"
	"fmt"
	"io"
	"path"
	"slices"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.vocdoni.io/dvote/log"

	"github.com/investplan/payments-backend/metrics"
)

const (
	// DefaultEndpoint is the S3 endpoint of the document bucket.
	DefaultEndpoint = "https://tos-ap-southeast-1.bytepluses.com"
	// DefaultRegion is the region of DefaultEndpoint.
	DefaultRegion = "ap-southeast"
	// DefaultBucket receives the uploaded documents.
	DefaultBucket = "legal-doc-storage"
	// DefaultMaxFileSize is the largest accepted document, 16 MiB.
	DefaultMaxFileSize = 16 << 20
	// DefaultMaxAttempts bounds the attempts of a single S3 request.
	DefaultMaxAttempts = 3
)

// DefaultAllowedExtensions are the document types accepted by default.
var DefaultAllowedExtensions = []string{"pdf", "doc", "docx", "txt"}

var (
	// ErrCredentialsNotConfigured is returned by New when the access or secret key is missing.
	ErrCredentialsNotConfigured = fmt.Errorf("storage credentials not configured")
	// ErrInvalidObjectName is returned when a name is empty once sanitized.
	ErrInvalidObjectName = fmt.Errorf("invalid object name")
	// ErrFileTooLarge is returned when an upload exceeds the configured size.
	ErrFileTooLarge = fmt.Errorf("file too large")
)

// Config holds the configuration for the object storage client.
type Config struct {
	Endpoint          string
	Region            string
	Bucket            string
	AccessKey         string
	SecretKey         string
	AllowedExtensions []string
	MaxFileSize       int64
	// UsePathStyle addresses the bucket in the path instead of the host,
	// as local S3 stand-ins require.
	UsePathStyle bool
	MaxAttempts  int
}

func (c *Config) setDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = DefaultEndpoint
	}
	if !strings.Contains(c.Endpoint, "://") {
		c.Endpoint = "https://" + c.Endpoint
	}
	if c.Region == "" {
		c.Region = DefaultRegion
	}
	if c.Bucket == "" {
		c.Bucket = DefaultBucket
	}
	if len(c.AllowedExtensions) == 0 {
		c.AllowedExtensions = slices.Clone(DefaultAllowedExtensions)
	}
	for i, ext := range c.AllowedExtensions {
		c.AllowedExtensions[i] = strings.ToLower(strings.TrimPrefix(ext, "."))
	}
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = DefaultMaxFileSize
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
}

// Client uploads objects to a single bucket.
type Client struct {
	s3       *s3.Client
	uploader *manager.Uploader
	bucket   string
	allowed  []string
	maxSize  int64
	metrics  *metrics.Metrics
}

// New initializes a new Client with the provided credentials and configuration.
func New(ctx context.Context, conf *Config, m *metrics.Metrics) (*Client, error) {
	if conf == nil {
		return nil, fmt.Errorf("invalid object storage configuration")
	}
	conf.setDefaults()
	if conf.AccessKey == "" || conf.SecretKey == "" {
		return nil, ErrCredentialsNotConfigured
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(conf.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(conf.AccessKey, conf.SecretKey, "")),
		awsconfig.WithRetryMaxAttempts(conf.MaxAttempts),
	)
	if err != nil {
		return nil, fmt.Errorf("cannot load storage configuration: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(conf.Endpoint)
		o.UsePathStyle = conf.UsePathStyle
	})
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = manager.MinUploadPartSize
		u.Concurrency = 2
	})

	log.Infow("object storage initialized",
		"endpoint", conf.Endpoint,
		"bucket", conf.Bucket,
		"maxFileSize", conf.MaxFileSize)
	return &Client{
		s3:       client,
		uploader: uploader,
		bucket:   conf.Bucket,
		allowed:  conf.AllowedExtensions,
		maxSize:  conf.MaxFileSize,
		metrics:  m,
	}, nil
}

// Bucket returns the bucket objects are stored in.
func (osc *Client) Bucket() string {
	if osc == nil {
		return DefaultBucket
	}
	return osc.bucket
}

// AllowedExtensions returns the accepted file extensions, without the dot.
// A nil client reports the defaults so requests can still be validated
// while storage is not configured.
func (osc *Client) AllowedExtensions() []string {
	if osc == nil {
		return DefaultAllowedExtensions
	}
	return osc.allowed
}

// Allowed reports whether filename carries an accepted extension.
func (osc *Client) Allowed(filename string) bool {
	return allowedExtension(filename, osc.AllowedExtensions())
}

func (osc *Client) maxFileSize() int64 {
	if osc == nil {
		return DefaultMaxFileSize
	}
	return osc.maxSize
}

func allowedExtension(filename string, allowed []string) bool {
	ext := path.Ext(filename)
	if ext == "" {
		return false
	}
	return slices.Contains(allowed, strings.ToLower(ext[1:]))
}

// PutResult describes a stored object.
type PutResult struct {
	Bucket   string
	Key      string
	Location string
	Size     int64
}

// Put streams body into the bucket under name, sanitized with SecureFilename.
// It fails with ErrFileTooLarge when body is longer than the configured
// limit, with a *ClientError when the request never got a response and with
// a *ServerError when the service rejected it.
func (osc *Client) Put(ctx context.Context, name string, body io.Reader, contentType string) (*PutResult, error) {
	key := SecureFilename(name)
	if key == "" {
		return nil, ErrInvalidObjectName
	}
	limited := &limitedReader{r: body, remaining: osc.maxSize}
	input := &s3.PutObjectInput{
		Bucket: aws.String(osc.bucket),
		Key:    aws.String(key),
		Body:   limited,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	out, err := osc.uploader.Upload(ctx, input)
	if limited.exceeded {
		return nil, ErrFileTooLarge
	}
	if err != nil {
		return nil, classify(err)
	}
	log.Debugw("object stored", "bucket", osc.bucket, "key", key, "size", limited.read)
	return &PutResult{
		Bucket:   osc.bucket,
		Key:      key,
		Location: out.Location,
		Size:     limited.read,
	}, nil
}

// limitedReader fails once more than remaining bytes have been read.
type limitedReader struct {
	r         io.Reader
	remaining int64
	read      int64
	exceeded  bool
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.exceeded {
		return 0, ErrFileTooLarge
	}
	// read one byte past the limit to tell an exact fit from an overflow
	if int64(len(p)) > l.remaining+1 {
		p = p[:l.remaining+1]
	}
	n, err := l.r.Read(p)
	l.read += int64(n)
	if int64(n) > l.remaining {
		l.exceeded = true
		return 0, ErrFileTooLarge
	}
	l.remaining -= int64(n)
	return n, err
}

// CheckBucket verifies the bucket is reachable with the configured credentials.
func (osc *Client) CheckBucket(ctx context.Context) error {
	if _, err := osc.s3.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(osc.bucket)}); err != nil {
		return classify(err)
	}
	return nil
}
