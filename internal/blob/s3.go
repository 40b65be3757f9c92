package blob

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/sony/gobreaker"
)

// checksumMetadataKey is the object metadata key used to compare a blob's
// recorded content hash against a candidate local file for idempotent Put.
const checksumMetadataKey = "x-subtitlegen-checksum"

// S3Config holds the configuration for S3-backed blob storage.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // optional: for S3-compatible endpoints (MinIO, etc.)
	AccessKeyID     string // optional
	SecretAccessKey string // optional
}

// S3Adapter implements Adapter against an S3-compatible object store, with
// the object key namespaced as "<namespace>/<key>", retry/backoff around
// transient faults, and a circuit breaker so a sustained outage trips open
// instead of retrying every call forever.
type S3Adapter struct {
	client  *s3.Client
	bucket  string
	breaker *gobreaker.CircuitBreaker
}

// NewS3Adapter creates an S3Adapter from cfg.
func NewS3Adapter(cfg S3Config, logger *slog.Logger) (*S3Adapter, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var opts []func(*config.LoadOptions) error
	opts = append(opts, config.WithRegion(cfg.Region))
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("blob: load AWS config: %w", err)
	}

	var clientOpts []func(*s3.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	breakerSettings := gobreaker.Settings{
		Name:        "blob-s3",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("blob: circuit breaker state change", slog.String("breaker", name), slog.String("from", from.String()), slog.String("to", to.String()))
		},
	}

	return &S3Adapter{
		client:  s3.NewFromConfig(awsCfg, clientOpts...),
		bucket:  cfg.Bucket,
		breaker: gobreaker.NewCircuitBreaker(breakerSettings),
	}, nil
}

func objectKey(namespace, key string) string {
	return namespace + "/" + key
}

// Put uploads localPath to namespace/key. If the object already exists with
// a matching recorded checksum, it succeeds without re-uploading.
func (a *S3Adapter) Put(ctx context.Context, namespace, key, localPath string) (RemoteRef, error) {
	ctx, cancel := context.WithTimeout(ctx, PerBlobTimeout)
	defer cancel()

	ref := RemoteRef{Namespace: namespace, Key: key}
	objKey := objectKey(namespace, key)

	localHash, err := hashFile(localPath)
	if err != nil {
		return RemoteRef{}, fmt.Errorf("blob: hash local file: %w", err)
	}

	if remoteHash, ok := a.headChecksum(ctx, objKey); ok && remoteHash == localHash {
		return ref, nil
	}

	err = withRetry(ctx, func(ctx context.Context) error {
		_, err := a.breaker.Execute(func() (interface{}, error) {
			f, err := os.Open(localPath) // #nosec G304 - path supplied by the uploader, not external input
			if err != nil {
				return nil, fmt.Errorf("blob: open local file: %w", err)
			}
			defer f.Close()

			_, putErr := a.client.PutObject(ctx, &s3.PutObjectInput{
				Bucket:   aws.String(a.bucket),
				Key:      aws.String(objKey),
				Body:     f,
				Metadata: map[string]string{checksumMetadataKey: localHash},
			})
			if putErr != nil {
				return nil, classify(putErr)
			}
			return nil, nil
		})
		return err
	})
	if err != nil {
		return RemoteRef{}, err
	}

	return ref, nil
}

// headChecksum fetches the recorded checksum metadata for an object, if any.
func (a *S3Adapter) headChecksum(ctx context.Context, objKey string) (string, bool) {
	out, err := a.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(objKey),
	})
	if err != nil {
		return "", false
	}
	sum, ok := out.Metadata[checksumMetadataKey]
	return sum, ok
}

// Exists reports whether an object exists at namespace/key.
func (a *S3Adapter) Exists(ctx context.Context, namespace, key string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, PerBlobTimeout)
	defer cancel()

	objKey := objectKey(namespace, key)
	var found bool
	err := withRetry(ctx, func(ctx context.Context) error {
		_, err := a.breaker.Execute(func() (interface{}, error) {
			_, headErr := a.client.HeadObject(ctx, &s3.HeadObjectInput{
				Bucket: aws.String(a.bucket),
				Key:    aws.String(objKey),
			})
			if headErr != nil {
				var notFound *types.NotFound
				if errors.As(headErr, &notFound) {
					return nil, nil
				}
				return nil, classify(headErr)
			}
			found = true
			return nil, nil
		})
		return err
	})
	if err != nil {
		return false, err
	}
	return found, nil
}

// DeletePrefix deletes every object under namespace.
func (a *S3Adapter) DeletePrefix(ctx context.Context, namespace string) error {
	ctx, cancel := context.WithTimeout(ctx, PerBlobTimeout)
	defer cancel()

	prefix := namespace + "/"
	return withRetry(ctx, func(ctx context.Context) error {
		_, err := a.breaker.Execute(func() (interface{}, error) {
			paginator := s3.NewListObjectsV2Paginator(a.client, &s3.ListObjectsV2Input{
				Bucket: aws.String(a.bucket),
				Prefix: aws.String(prefix),
			})
			for paginator.HasMorePages() {
				page, err := paginator.NextPage(ctx)
				if err != nil {
					return nil, classify(err)
				}
				if len(page.Contents) == 0 {
					continue
				}
				var ids []types.ObjectIdentifier
				for _, obj := range page.Contents {
					ids = append(ids, types.ObjectIdentifier{Key: obj.Key})
				}
				if _, err := a.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
					Bucket: aws.String(a.bucket),
					Delete: &types.Delete{Objects: ids},
				}); err != nil {
					return nil, classify(err)
				}
			}
			return nil, nil
		})
		return err
	})
}

// classify distinguishes retryable transient faults (network errors, 5xx,
// throttling) from fatal faults (authentication, permission, malformed
// request), matching the teacher's HTTP-status classification idiom.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var respErr interface {
		HTTPStatusCode() int
	}
	if errors.As(err, &respErr) {
		switch code := respErr.HTTPStatusCode(); {
		case code == 401 || code == 403:
			return fmt.Errorf("blob: fatal: %w", err)
		case code >= 500 || code == 429:
			return retryable(err)
		}
	}
	// Network-level errors with no HTTP status are treated as transient.
	return retryable(err)
}

var _ Adapter = (*S3Adapter)(nil)
