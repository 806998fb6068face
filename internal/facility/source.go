package facility

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rotisserie/eris"
)

// ObjectGetter is the subset of the S3 client used to read facility files.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Config configures the S3 client for s3:// sources.
type S3Config struct {
	Region          string
	Endpoint        string // optional, for S3-compatible stores
	PathStyle       bool
	AccessKeyID     string // optional, falls back to the default chain
	SecretAccessKey string
}

// NewS3Client builds an S3 client from cfg and the default AWS config chain.
func NewS3Client(ctx context.Context, cfg S3Config, optFns ...func(*s3.Options)) (*s3.Client, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, eris.Wrap(err, "facility: load aws config")
	}
	opts := []func(*s3.Options){func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}}
	return s3.NewFromConfig(awsCfg, append(opts, optFns...)...), nil
}

// Source opens facility files from local paths, http(s) URLs or s3://
// bucket/key locations.
type Source struct {
	HTTP *http.Client
	S3   ObjectGetter // required only for s3:// locations
}

// NewSource returns a Source with a default HTTP client.
func NewSource(s3c ObjectGetter) *Source {
	return &Source{
		HTTP: &http.Client{Timeout: 2 * time.Minute},
		S3:   s3c,
	}
}

// Open returns a reader for location. The caller closes it.
func (s *Source) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	switch {
	case strings.HasPrefix(location, "http://"), strings.HasPrefix(location, "https://"):
		return s.openHTTP(ctx, location)
	case strings.HasPrefix(location, "s3://"):
		return s.openS3(ctx, location)
	default:
		f, err := os.Open(strings.TrimPrefix(location, "file://"))
		if err != nil {
			return nil, eris.Wrapf(err, "facility: open %s", location)
		}
		return f, nil
	}
}

func (s *Source) openHTTP(ctx context.Context, location string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, eris.Wrap(err, "facility: create request")
	}
	client := s.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "facility: fetch %s", location)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close() //nolint:errcheck
		return nil, eris.Errorf("facility: fetch %s: status %d", location, resp.StatusCode)
	}
	return decodeCharset(resp.Body, resp.Header.Get("Content-Type"))
}

func (s *Source) openS3(ctx context.Context, location string) (io.ReadCloser, error) {
	if s.S3 == nil {
		return nil, eris.Errorf("facility: no s3 client configured for %s", location)
	}
	u, err := url.Parse(location)
	if err != nil {
		return nil, eris.Wrapf(err, "facility: parse %s", location)
	}
	bucket, key := u.Host, strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return nil, eris.Errorf("facility: s3 location %q needs bucket and key", location)
	}
	out, err := s.S3.GetObject(ctx, &s3.GetObjectInput{Bucket: &bucket, Key: &key})
	if err != nil {
		return nil, eris.Wrapf(err, "facility: get %s", location)
	}
	return decodeCharset(out.Body, aws.ToString(out.ContentType))
}
