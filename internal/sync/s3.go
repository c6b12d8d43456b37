package sync

import (
	"bytes"
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// putObjectAPI is the subset of *s3.Client the destination uses.
type putObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Destination uploads the export as one object in an S3-compatible bucket.
// The header counts are attached as object metadata.
type S3Destination struct {
	client putObjectAPI
	bucket string
	key    string
}

// NewS3Destination creates an S3 destination using the default AWS
// credential chain. If endpoint is non-empty, path-style addressing is
// enabled (for MinIO and similar).
func NewS3Destination(ctx context.Context, bucket, key, region, endpoint string) (*S3Destination, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Destination{client: client, bucket: bucket, key: key}, nil
}

// Name identifies the destination in logs.
func (d *S3Destination) Name() string {
	return "s3://" + d.bucket + "/" + d.key
}

// Write uploads data as the configured object key, replacing any previous
// snapshot.
func (d *S3Destination) Write(ctx context.Context, data []byte) error {
	in := &s3.PutObjectInput{
		Bucket:        aws.String(d.bucket),
		Key:           aws.String(d.key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String("application/x-ndjson"),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if h, ok := parseHeader(data); ok {
		in.Metadata = map[string]string{
			"export-version":   h.Version,
			"form-count":       strconv.Itoa(h.FormCount),
			"submission-count": strconv.Itoa(h.SubmissionCount),
		}
	}
	if _, err := d.client.PutObject(ctx, in); err != nil {
		return fmt.Errorf("s3 put %s: %w", d.Name(), err)
	}
	return nil
}
