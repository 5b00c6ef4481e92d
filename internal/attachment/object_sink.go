package attachment

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const objectBackend = "object-storage"

// ObjectConfig describes an S3-compatible bucket.
type ObjectConfig struct {
	// Endpoint is host[:port], optionally with an http:// or https://
	// scheme. When empty it is derived from Namespace and Region as the
	// OCI S3 compatibility endpoint.
	Endpoint  string
	Region    string
	Namespace string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// ObjectSink stores attachments as objects in one bucket.
type ObjectSink struct {
	client *minio.Client
	bucket string
}

// NewObjectSink builds a client for the configured bucket. No request is
// made until the first Store.
func NewObjectSink(cfg ObjectConfig) (*ObjectSink, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("object sink requires a bucket")
	}

	endpoint, secure, err := resolveEndpoint(cfg)
	if err != nil {
		return nil, err
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:       secure,
		Region:       cfg.Region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("creating object storage client: %w", err)
	}
	return &ObjectSink{client: client, bucket: cfg.Bucket}, nil
}

// Store uploads content under name, replacing any existing object.
func (s *ObjectSink) Store(ctx context.Context, name string, content []byte) error {
	if err := validName(name); err != nil {
		return &StorageError{Backend: objectBackend, Name: name, Err: err}
	}

	_, err := s.client.PutObject(ctx, s.bucket, name, bytes.NewReader(content), int64(len(content)),
		minio.PutObjectOptions{ContentType: "application/octet-stream"})
	if err != nil {
		return &StorageError{Backend: objectBackend, Name: name, Err: err}
	}
	return nil
}

func resolveEndpoint(cfg ObjectConfig) (string, bool, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		if cfg.Namespace == "" || cfg.Region == "" {
			return "", false, fmt.Errorf("object sink requires an endpoint or a namespace and region")
		}
		return fmt.Sprintf("%s.compat.objectstorage.%s.oraclecloud.com", cfg.Namespace, cfg.Region), true, nil
	}

	switch {
	case strings.HasPrefix(endpoint, "https://"):
		return strings.TrimSuffix(strings.TrimPrefix(endpoint, "https://"), "/"), true, nil
	case strings.HasPrefix(endpoint, "http://"):
		return strings.TrimSuffix(strings.TrimPrefix(endpoint, "http://"), "/"), false, nil
	default:
		return strings.TrimSuffix(endpoint, "/"), cfg.UseSSL, nil
	}
}
