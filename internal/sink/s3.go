// Package sink uploads encoded frames to object storage.
package sink

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

// DefaultUploadTimeout bounds a single frame upload.
const DefaultUploadTimeout = 30 * time.Second

// S3Config holds the object storage settings.
type S3Config struct {
	AccessKey string
	SecretKey string
	Endpoint  string
	Region    string
	Bucket    string
	// Prefix is prepended to every object key.
	Prefix string
	// NamePattern is a fmt pattern taking the frame index.
	NamePattern string
	// ACL is the canned ACL, e.g. public-read. Empty leaves the bucket default.
	ACL string
	// CDNURL, when set, is used to build frame locations.
	CDNURL        string
	UploadTimeout time.Duration
}

// Validate checks required settings and fills in defaults.
func (c *S3Config) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("s3 bucket is required")
	}
	if (c.AccessKey == "") != (c.SecretKey == "") {
		return fmt.Errorf("s3 access key and secret key must be set together")
	}
	if c.Region == "" {
		c.Region = "us-east-1"
	}
	if c.NamePattern == "" {
		c.NamePattern = "frame_%05d.png"
	}
	if c.UploadTimeout <= 0 {
		c.UploadTimeout = DefaultUploadTimeout
	}
	return nil
}

// S3Writer uploads frames as PNG objects.
type S3Writer struct {
	client s3iface.S3API
	logger *slog.Logger
	cfg    S3Config
}

// NewS3Writer creates a session from cfg. Without static keys the default
// credential chain is used.
func NewS3Writer(cfg S3Config, logger *slog.Logger) (*S3Writer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	awsCfg := &aws.Config{
		Region:           aws.String(cfg.Region),
		S3ForcePathStyle: aws.Bool(cfg.Endpoint != ""),
	}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
	}
	if cfg.AccessKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, "")
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 session: %w", err)
	}
	return NewS3WriterWithClient(s3.New(sess), cfg, logger)
}

// NewS3WriterWithClient uses an existing client.
func NewS3WriterWithClient(client s3iface.S3API, cfg S3Config, logger *slog.Logger) (*S3Writer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &S3Writer{client: client, cfg: cfg, logger: logger}, nil
}

// Key returns the object key of frame index.
func (w *S3Writer) Key(index int) string {
	name := fmt.Sprintf(w.cfg.NamePattern, index)
	if w.cfg.Prefix == "" {
		return name
	}
	return path.Join(w.cfg.Prefix, name)
}

// Location returns the public URL of a frame when a CDN is configured,
// otherwise its s3:// URI.
func (w *S3Writer) Location(index int) string {
	key := w.Key(index)
	if w.cfg.CDNURL != "" {
		return strings.TrimRight(w.cfg.CDNURL, "/") + "/" + key
	}
	return "s3://" + w.cfg.Bucket + "/" + key
}

// WriteFrame uploads one encoded frame.
func (w *S3Writer) WriteFrame(ctx context.Context, index int, time float64, pngData []byte) error {
	ctx, cancel := context.WithTimeout(ctx, w.cfg.UploadTimeout)
	defer cancel()

	key := w.Key(index)
	size := int64(len(pngData))
	input := &s3.PutObjectInput{
		Bucket:        aws.String(w.cfg.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(pngData),
		ContentLength: aws.Int64(size),
		ContentType:   aws.String("image/png"),
		Metadata: map[string]*string{
			"Frame-Time": aws.String(fmt.Sprintf("%g", time)),
		},
	}
	if w.cfg.ACL != "" {
		input.ACL = aws.String(w.cfg.ACL)
	}

	if _, err := w.client.PutObjectWithContext(ctx, input); err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}

	w.log().Debug("Uploaded frame", "key", key, "bytes", size)
	return nil
}

func (w *S3Writer) log() *slog.Logger {
	if w.logger != nil {
		return w.logger
	}
	return slog.Default()
}
