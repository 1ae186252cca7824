// Package storage archives generated invoices to S3-compatible object storage.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	billingapp "github.com/squill/backend/internal/application/billing"
	"github.com/squill/backend/internal/domain/billing"
	infraconfig "github.com/squill/backend/internal/infrastructure/config"
)

const (
	contentTypeJSON = "application/json"
	contentTypePDF  = "application/pdf"
)

var _ billingapp.InvoiceArchiver = (*S3InvoiceArchive)(nil)

// S3InvoiceArchive stores invoice JSON and PDFs in an S3 bucket.
// Works against AWS S3 and compatible servers (MinIO, RustFS).
type S3InvoiceArchive struct {
	client *s3.Client
	bucket string
	prefix string
	logger *zap.Logger
}

// S3InvoiceArchiveOption configures S3InvoiceArchive
type S3InvoiceArchiveOption func(*S3InvoiceArchive)

// WithLogger sets a custom logger
func WithLogger(logger *zap.Logger) S3InvoiceArchiveOption {
	return func(a *S3InvoiceArchive) {
		a.logger = logger
	}
}

// NewS3InvoiceArchive creates an archive from configuration
func NewS3InvoiceArchive(cfg *infraconfig.StorageConfig, opts ...S3InvoiceArchiveOption) (*S3InvoiceArchive, error) {
	if cfg == nil {
		return nil, errors.New("storage configuration is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}
	if cfg.AccessKey == "" {
		return nil, errors.New("storage access key is required")
	}
	if cfg.SecretKey == "" {
		return nil, errors.New("storage secret key is required")
	}

	endpoint, err := normalizeEndpoint(cfg.Endpoint, cfg.UseSSL)
	if err != nil {
		return nil, err
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	a := &S3InvoiceArchive{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// normalizeEndpoint adds a scheme to bare host:port endpoints.
// An empty endpoint keeps the AWS default resolver.
func normalizeEndpoint(endpoint string, useSSL bool) (string, error) {
	if endpoint == "" {
		return "", nil
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		if useSSL {
			endpoint = "https://" + endpoint
		} else {
			endpoint = "http://" + endpoint
		}
	}
	if _, err := url.Parse(endpoint); err != nil {
		return "", fmt.Errorf("invalid storage endpoint: %w", err)
	}
	return endpoint, nil
}

// EnsureBucket creates the bucket if it doesn't exist.
// Call during startup.
func (a *S3InvoiceArchive) EnsureBucket(ctx context.Context) error {
	_, err := a.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(a.bucket)})
	if err == nil {
		return nil
	}

	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	a.logger.Info("Creating invoice archive bucket", zap.String("bucket", a.bucket))
	_, err = a.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(a.bucket)})
	if err != nil {
		var alreadyOwned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &alreadyOwned) {
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// ArchiveInvoice writes the invoice JSON. Regenerated invoices overwrite
// the previous object.
func (a *S3InvoiceArchive) ArchiveInvoice(ctx context.Context, invoice *billing.Invoice) error {
	data, err := json.Marshal(invoice)
	if err != nil {
		return fmt.Errorf("failed to encode invoice: %w", err)
	}
	return a.put(ctx, a.InvoiceKey(invoice, "json"), data, contentTypeJSON)
}

// ArchivePDF writes a rendered invoice PDF next to its JSON
func (a *S3InvoiceArchive) ArchivePDF(ctx context.Context, invoice *billing.Invoice, pdf []byte) error {
	if len(pdf) == 0 {
		return errors.New("empty PDF")
	}
	return a.put(ctx, a.InvoiceKey(invoice, "pdf"), pdf, contentTypePDF)
}

// InvoiceKey returns "<prefix>/<customer>/<yyyy-mm>/<invoice_id>.<ext>"
func (a *S3InvoiceArchive) InvoiceKey(invoice *billing.Invoice, ext string) string {
	month := invoice.PeriodStart
	if len(month) >= 7 {
		month = month[:7]
	}
	return path.Join(a.prefix, invoice.CustomerID, month, invoice.InvoiceID+"."+ext)
}

// Bucket returns the bucket name
func (a *S3InvoiceArchive) Bucket() string {
	return a.bucket
}

func (a *S3InvoiceArchive) put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}

	a.logger.Debug("archived invoice object",
		zap.String("bucket", a.bucket),
		zap.String("key", key),
		zap.Int("bytes", len(data)))
	return nil
}
