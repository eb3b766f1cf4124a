package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/cloudslice/reductionist/pkg/apperr"
	"github.com/cloudslice/reductionist/pkg/logging"
	"github.com/cloudslice/reductionist/pkg/request"
)

// S3Store fetches byte ranges via aws-sdk-go-v2. Clients are expensive to
// build (they resolve credentials and region config), so one is cached per
// distinct (endpoint, access key) pair, bounded by an LRU so a client that
// churns through many short-lived credential sets cannot grow unbounded.
type S3Store struct {
	region     string
	pathStyle  bool
	clients    *lru.Cache[string, *s3.Client]
	log        logging.Logger
}

func NewS3Store(region string, pathStyle bool, cacheSize int, log logging.Logger) (*S3Store, error) {
	clients, err := lru.New[string, *s3.Client](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("building S3 client cache: %w", err)
	}
	return &S3Store{
		region:    region,
		pathStyle: pathStyle,
		clients:   clients,
		log:       logging.Component(log, "objectstore.s3"),
	}, nil
}

func clientCacheKey(endpoint string, creds request.Credentials) string {
	return endpoint + "\x00" + creds.AccessKey
}

func (s *S3Store) clientFor(ctx context.Context, loc request.Locator, creds request.Credentials) (*s3.Client, error) {
	key := clientCacheKey(loc.Source, creds)
	if c, ok := s.clients.Get(key); ok {
		return c, nil
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(s.region),
	}
	if creds.Present() {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(creds.AccessKey, creds.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "loading AWS config", err)
	}

	var s3Opts []func(*s3.Options)
	if loc.Source != "" {
		endpoint := loc.Source
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			if s.pathStyle {
				o.UsePathStyle = true
			}
		})
	}

	client := s3.NewFromConfig(awsCfg, s3Opts...)
	s.clients.Add(key, client)
	return client, nil
}

func (s *S3Store) FetchRange(ctx context.Context, loc request.Locator, creds request.Credentials, offset, size int64) ([]byte, error) {
	client, err := s.clientFor(ctx, loc, creds)
	if err != nil {
		return nil, err
	}

	rangeHeader := fmt.Sprintf("bytes=%d-%d", offset, offset+size-1)
	resp, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Object),
		Range:  aws.String(rangeHeader),
	})
	if err != nil {
		return nil, classifyS3Error(loc, err)
	}
	defer resp.Body.Close()

	buf := make([]byte, size)
	n, err := io.ReadFull(resp.Body, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, apperr.Wrap(apperr.UpstreamIO, "reading S3 object body", err)
	}
	return buf[:n], nil
}

func (s *S3Store) IsAuthorized(ctx context.Context, loc request.Locator, creds request.Credentials) (bool, error) {
	client, err := s.clientFor(ctx, loc, creds)
	if err != nil {
		return false, err
	}

	_, err = client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Object),
	})
	if err == nil {
		return true, nil
	}

	classified := classifyS3Error(loc, err)
	var appErr *apperr.Error
	if errors.As(classified, &appErr) {
		switch appErr.Kind {
		case apperr.Unauthorized, apperr.Forbidden:
			return false, nil
		case apperr.NotFound:
			// The object's absence says nothing about whether these
			// credentials would be accepted; treat as authorized.
			return true, nil
		}
	}
	return false, classified
}

// classifyS3Error maps an AWS SDK error into the service's error kinds by
// inspecting the smithy API error code, mirroring how the registry client
// classifies GCR/Docker Hub error strings.
func classifyS3Error(loc request.Locator, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NoSuchBucket", "NotFound":
			return apperr.Wrap(apperr.NotFound, fmt.Sprintf("object %s/%s not found", loc.Bucket, loc.Object), err)
		case "AccessDenied":
			return apperr.Wrap(apperr.Forbidden, fmt.Sprintf("access denied to %s/%s", loc.Bucket, loc.Object), err)
		case "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return apperr.Wrap(apperr.Unauthorized, "invalid S3 credentials", err)
		case "InvalidRange":
			return apperr.Wrap(apperr.RangeUnsatisfiable, "requested byte range not satisfiable", err)
		}
	}
	if strings.Contains(err.Error(), "connection refused") || strings.Contains(err.Error(), "no such host") {
		return apperr.Wrap(apperr.UpstreamIO, fmt.Sprintf("connecting to S3 endpoint %s", loc.Source), err)
	}
	return apperr.Wrap(apperr.UpstreamIO, "S3 request failed", err)
}
