// Package s3 implements the archive on an S3-compatible backend (AWS S3 or
// MinIO). Single bucket; dataset keys map to object keys under an optional
// prefix.
package s3

import (
	"bytes"
	"context"
	"io"
	"sort"
	"sync"
	"time"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"

	"insightcore/pkg/domain"
)

// Config holds explicit construction parameters. The archive factory fills it
// from environment variables; tests construct it directly.
type Config struct {
	Region          string
	Bucket          string
	Prefix          string // optional object key prefix, e.g. "datasets/"
	Endpoint        string // optional; enables a custom endpoint (e.g. MinIO)
	AccessKeyID     string // optional (falls back to default credentials chain)
	SecretAccessKey string // optional
	SessionToken    string // optional
	PathStyle       bool
}

// Archive implements domain.Archive on a single bucket.
type Archive struct {
	client *awss3.Client
	bucket string
	prefix string

	mu         sync.Mutex
	lastMillis int64
}

// New creates an S3 archive from Config.
func New(ctx context.Context, cfg Config) (*Archive, error) {
	if cfg.Bucket == "" {
		return nil, domain.InsightError{Reason: "s3 bucket required"}
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, domain.StorageError{Op: "s3 configure", Err: err}
	}
	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if cfg.PathStyle {
			o.UsePathStyle = true
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &Archive{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (a *Archive) Driver() domain.Driver { return domain.DriverS3 }

func (a *Archive) nextMillis() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	now := time.Now().UnixMilli()
	if now <= a.lastMillis {
		now = a.lastMillis + 1
	}
	a.lastMillis = now
	return now
}

func (a *Archive) Save(ctx context.Context, d *domain.Dataset) (string, error) {
	payload, err := domain.EncodeRecords(d)
	if err != nil {
		return "", err
	}
	key := domain.DatasetKey{Millis: a.nextMillis(), ID: d.ID, Kind: d.Kind}
	name := key.String()
	objectKey := a.prefix + name
	contentType := "application/json"
	if _, err := a.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket:        &a.bucket,
		Key:           &objectKey,
		Body:          bytes.NewReader(payload),
		ContentType:   &contentType,
		ContentLength: aws.Int64(int64(len(payload))),
	}); err != nil {
		return "", domain.StorageError{Op: "s3 save " + name, Err: err}
	}
	return name, nil
}

func (a *Archive) Delete(ctx context.Context, id string) (bool, error) {
	names, err := a.listKeys(ctx)
	if err != nil {
		return false, domain.StorageError{Op: "s3 delete " + id, Err: err}
	}
	removed := false
	for _, name := range names {
		if !domain.MatchesID(name, id) {
			continue
		}
		objectKey := a.prefix + name
		if _, err := a.client.DeleteObject(ctx, &awss3.DeleteObjectInput{Bucket: &a.bucket, Key: &objectKey}); err != nil {
			return false, domain.StorageError{Op: "s3 delete " + id, Err: err}
		}
		removed = true
	}
	return removed, nil
}

func (a *Archive) LoadAll(ctx context.Context) ([]*domain.Dataset, error) {
	names, err := a.listKeys(ctx)
	if err != nil {
		return nil, domain.StorageError{Op: "s3 load", Err: err}
	}
	var keys []domain.DatasetKey
	for _, name := range names {
		key, err := domain.ParseDatasetKey(name)
		if err != nil {
			continue
		}
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Millis < keys[j].Millis })

	datasets := make([]*domain.Dataset, 0, len(keys))
	for _, key := range keys {
		name := key.String()
		objectKey := a.prefix + name
		out, err := a.client.GetObject(ctx, &awss3.GetObjectInput{Bucket: &a.bucket, Key: &objectKey})
		if err != nil {
			return nil, domain.StorageError{Op: "s3 load " + name, Err: err}
		}
		payload, err := io.ReadAll(out.Body)
		_ = out.Body.Close()
		if err != nil {
			return nil, domain.StorageError{Op: "s3 load " + name, Err: err}
		}
		records, err := domain.DecodeRecords(key.Kind, payload)
		if err != nil {
			return nil, domain.StorageError{Op: "s3 load " + name, Err: err}
		}
		datasets = append(datasets, &domain.Dataset{ID: key.ID, Kind: key.Kind, Records: records})
	}
	if len(datasets) == 0 {
		return nil, nil
	}
	return datasets, nil
}

// listKeys returns the key names (prefix stripped) of every object under the
// configured prefix, following continuation tokens.
func (a *Archive) listKeys(ctx context.Context) ([]string, error) {
	var names []string
	var token *string
	for {
		out, err := a.client.ListObjectsV2(ctx, &awss3.ListObjectsV2Input{
			Bucket:            &a.bucket,
			Prefix:            &a.prefix,
			ContinuationToken: token,
		})
		if err != nil {
			return nil, err
		}
		for _, obj := range out.Contents {
			full := aws.ToString(obj.Key)
			if len(full) < len(a.prefix) {
				continue
			}
			names = append(names, full[len(a.prefix):])
		}
		if out.IsTruncated != nil && *out.IsTruncated && out.NextContinuationToken != nil {
			token = out.NextContinuationToken
			continue
		}
		break
	}
	return names, nil
}

