package sync

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// DefaultS3Key is the object key used when none is configured.
const DefaultS3Key = "callsheet/snapshot.xlsx"

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// S3Destination uploads snapshots to an S3-compatible bucket. A key
// containing "{date}" gets the UTC export date, which keeps one object per
// day instead of overwriting a single snapshot.
type S3Destination struct {
	client *s3.Client
	bucket string
	key    string
	now    func() time.Time
}

// NewS3Destination loads credentials from the default AWS chain. A
// non-empty endpoint switches to path-style addressing (MinIO and similar).
func NewS3Destination(ctx context.Context, bucket, key, region, endpoint string) (*S3Destination, error) {
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	if key == "" {
		key = DefaultS3Key
	}

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
	return &S3Destination{client: client, bucket: bucket, key: key, now: time.Now}, nil
}

func (d *S3Destination) objectKey() string {
	return strings.ReplaceAll(d.key, "{date}", d.now().UTC().Format("2006-01-02"))
}

// Name returns the object URL, with any date placeholder unexpanded.
func (d *S3Destination) Name() string {
	return "s3://" + d.bucket + "/" + d.key
}

// Write uploads data and tags the object with the export time.
func (d *S3Destination) Write(ctx context.Context, data []byte) error {
	_, err := d.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(d.bucket),
		Key:         aws.String(d.objectKey()),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(xlsxContentType),
		Metadata:    map[string]string{"exported-at": d.now().UTC().Format(time.RFC3339)},
	})
	if err != nil {
		return fmt.Errorf("s3 put object %s: %w", d.objectKey(), err)
	}
	return nil
}
