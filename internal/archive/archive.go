// Package archive keeps decided war room approvals in object storage.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/edvin/warroom/internal/model"
)

// Archiver stores a decided approval record.
type Archiver interface {
	Archive(ctx context.Context, rec model.PendingApproval) error
}

// Noop discards records. Used when no bucket is configured.
type Noop struct{}

func (Noop) Archive(context.Context, model.PendingApproval) error { return nil }

// S3Archiver writes approvals to s3://<bucket>/approvals/<incident>.json.
type S3Archiver struct {
	client *s3.Client
	bucket string
}

// S3Config configures an S3-compatible archive endpoint.
type S3Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
}

func NewS3Archiver(cfg S3Config) *S3Archiver {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return &S3Archiver{client: s3.New(opts), bucket: cfg.Bucket}
}

// Key returns the object key for an incident's approval record.
func Key(incidentID string) string {
	return "approvals/" + incidentID + ".json"
}

func (a *S3Archiver) Archive(ctx context.Context, rec model.PendingApproval) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal approval %s: %w", rec.IncidentID, err)
	}
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(Key(rec.IncidentID)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("archive approval %s to bucket %s: %w", rec.IncidentID, a.bucket, err)
	}
	return nil
}
