package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3Client is the subset of the S3 API used by S3Archiver.
type S3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Config configures the S3 archive. Archiving is disabled when Bucket is empty.
type S3Config struct {
	Bucket         string        `env:"REPORT_S3_BUCKET"`
	Region         string        `env:"REPORT_S3_REGION" envDefault:"us-east-1"`
	AccessKeyID    string        `env:"REPORT_S3_ACCESS_KEY_ID"`
	SecretKey      string        `env:"REPORT_S3_SECRET_KEY"`
	Endpoint       string        `env:"REPORT_S3_ENDPOINT"` // Optional: for S3-compatible services
	Prefix         string        `env:"REPORT_S3_PREFIX" envDefault:"reports"`
	ForcePathStyle bool          `env:"REPORT_S3_FORCE_PATH_STYLE" envDefault:"false"`
	UploadTimeout  time.Duration `env:"REPORT_S3_UPLOAD_TIMEOUT" envDefault:"30s"`
}

// Enabled reports whether a bucket is configured.
func (c S3Config) Enabled() bool { return c.Bucket != "" }

// S3Archiver stores reports as S3 objects. It is safe for concurrent use.
type S3Archiver struct {
	client        S3Client
	bucket        string
	prefix        string
	uploadTimeout time.Duration
}

// S3Option configures NewS3Archiver.
type S3Option func(*s3Options)

type s3Options struct {
	httpClient      *http.Client
	s3Client        S3Client
	s3ConfigOptions []func(*config.LoadOptions) error
}

// WithS3Client sets a pre-configured client. Useful for testing with mocks.
func WithS3Client(client S3Client) S3Option {
	return func(o *s3Options) {
		o.s3Client = client
	}
}

// WithHTTPClient sets a custom HTTP client for S3 requests.
func WithHTTPClient(client *http.Client) S3Option {
	return func(o *s3Options) {
		o.httpClient = client
	}
}

// WithS3ConfigOption adds a custom AWS config option.
func WithS3ConfigOption(option func(*config.LoadOptions) error) S3Option {
	return func(o *s3Options) {
		o.s3ConfigOptions = append(o.s3ConfigOptions, option)
	}
}

// NewS3Archiver creates an S3 archive.
func NewS3Archiver(ctx context.Context, cfg S3Config, opts ...S3Option) (*S3Archiver, error) {
	if cfg.Bucket == "" || cfg.Region == "" {
		return nil, ErrInvalidConfig
	}

	options := &s3Options{}
	for _, opt := range opts {
		opt(options)
	}

	client := options.s3Client
	if client == nil {
		awsOptions := []func(*config.LoadOptions) error{
			config.WithRegion(cfg.Region),
		}
		if cfg.AccessKeyID != "" && cfg.SecretKey != "" {
			awsOptions = append(awsOptions,
				config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
					cfg.AccessKeyID,
					cfg.SecretKey,
					"",
				)),
			)
		}
		if options.httpClient != nil {
			awsOptions = append(awsOptions, config.WithHTTPClient(options.httpClient))
		}
		awsOptions = append(awsOptions, options.s3ConfigOptions...)

		awsConfig, err := config.LoadDefaultConfig(ctx, awsOptions...)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFailedToLoadConfig, err)
		}

		client = s3.NewFromConfig(awsConfig, func(o *s3.Options) {
			if cfg.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Endpoint)
			}
			o.UsePathStyle = cfg.ForcePathStyle
		})
	}

	return &S3Archiver{
		client:        client,
		bucket:        cfg.Bucket,
		prefix:        cfg.Prefix,
		uploadTimeout: cfg.UploadTimeout,
	}, nil
}

// Archive uploads r as a JSON object.
func (a *S3Archiver) Archive(ctx context.Context, r Report) error {
	body, err := encode(r)
	if err != nil {
		return err
	}

	if a.uploadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.uploadTimeout)
		defer cancel()
	}

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(Key(a.prefix, r)),
		Body:          bytes.NewReader(body),
		ContentType:   aws.String("application/json"),
		ContentLength: aws.Int64(int64(len(body))),
	})
	return classifyS3Error(err)
}

// classifyS3Error converts S3 errors to package errors.
func classifyS3Error(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: put object", ErrOperationTimeout)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: put object", ErrOperationCanceled)
	}

	var nsb *types.NoSuchBucket
	if errors.As(err, &nsb) {
		return ErrBucketNotFound
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch code := apiErr.ErrorCode(); code {
		case "NoSuchBucket":
			return ErrBucketNotFound
		case "AccessDenied":
			return ErrAccessDenied
		case "SlowDown", "ServiceUnavailable", "RequestTimeout":
			return fmt.Errorf("%w: %s", ErrServiceUnavailable, code)
		default:
			return fmt.Errorf("put object failed (code: %s): %w", code, err)
		}
	}

	return errors.Join(ErrFailedToWrite, err)
}
