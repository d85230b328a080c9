package sink

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/paulmach/orb/geojson"
)

// S3Config holds the R2/S3-compatible endpoint details an S3Sink writes to.
type S3Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	Bucket          string
	BucketPath      string
}

// S3Sink writes a merged ImageResult's feature collection to
// s3://bucket/bucket_path/{image_id}.geojson. AGGREGATE mode: one write per
// image, replacing any prior object (idempotent on image_id).
type S3Sink struct {
	client     *s3.Client
	uploader   *manager.Uploader
	bucket     string
	bucketPath string
	logger     *slog.Logger
}

// NewS3Sink builds an S3Sink against an R2-compatible endpoint, reusing the
// connection tuning the tile-service's NewS3Client applies for bulk uploads.
func NewS3Sink(ctx context.Context, cfg S3Config, logger *slog.Logger) (*S3Sink, error) {
	if logger == nil {
		logger = slog.Default()
	}

	resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		if service == s3.ServiceID {
			return aws.Endpoint{URL: cfg.Endpoint, SigningRegion: cfg.Region}, nil
		}
		return aws.Endpoint{}, &smithy.GenericAPIError{Code: "UnknownEndpoint"}
	})

	httpClient := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        150,
			MaxIdleConnsPerHost: 150,
			IdleConnTimeout:     90 * time.Second,
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
		Timeout: 5 * time.Minute,
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithHTTPClient(httpClient),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, "",
		)),
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithEndpointResolverWithOptions(resolver),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) { o.UsePathStyle = true })

	return &S3Sink{
		client:     client,
		uploader:   manager.NewUploader(client),
		bucket:     cfg.Bucket,
		bucketPath: cfg.BucketPath,
		logger:     logger.With("sink", "S3"),
	}, nil
}

func (s *S3Sink) Name() string { return "S3" }
func (s *S3Sink) Mode() Mode   { return ModeAggregate }
func (s *S3Sink) String() string { return describe(s.Name(), s.Mode()) }

// Write marshals the feature collection and PUTs it, overwriting any
// previous object for the same image_id.
func (s *S3Sink) Write(ctx context.Context, imageID string, features []*geojson.Feature) (bool, error) {
	fc := toFeatureCollection(features)
	body, err := fc.MarshalJSON()
	if err != nil {
		return false, fmt.Errorf("failed to marshal feature collection: %w", err)
	}

	key := fmt.Sprintf("%s/%s.geojson", s.bucketPath, imageID)
	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/geo+json"),
		ACL:         types.ObjectCannedACLPrivate,
	})
	if err != nil {
		s.logger.Error("upload failed", "image_id", imageID, "error", err)
		return false, fmt.Errorf("failed to upload feature collection: %w", err)
	}

	s.logger.Info("wrote feature collection", "image_id", imageID, "key", key, "feature_count", len(features))
	return true, nil
}
