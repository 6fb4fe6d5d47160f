package blob

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/google/uuid"
)

// S3 stores post media in an S3 (or S3 compatible) bucket.
type S3 struct {
	s3      *s3.S3
	bucket  string
	prefix  string
	baseURL string
	timeout time.Duration
}

// NewS3 builds the client. endpoint is optional and switches to path style
// addressing; baseURL overrides the public URL of stored objects.
func NewS3(region, endpoint, bucket, prefix, baseURL string, timeout time.Duration) (*S3, error) {
	cfg := &aws.Config{Region: aws.String(region)}
	if endpoint != "" {
		cfg.Endpoint = aws.String(endpoint)
		cfg.S3ForcePathStyle = aws.Bool(true)
	}
	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, err
	}
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", bucket, region)
	}
	return &S3{
		s3:      s3.New(sess),
		bucket:  bucket,
		prefix:  prefix,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		timeout: timeout,
	}, nil
}

func (c *S3) Upload(ctx context.Context, raw string) (string, error) {
	img, err := DecodeImage(raw)
	if err != nil {
		return "", err
	}
	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	key := objectKey(c.prefix, uuid.NewString(), img.Ext)
	_, err = c.s3.PutObjectWithContext(cctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(img.Data),
		ContentLength: aws.Int64(int64(len(img.Data))),
		ContentType:   aws.String(img.ContentType),
	})
	if err != nil {
		return "", fmt.Errorf("s3 upload %s: %w", key, err)
	}
	return c.baseURL + "/" + key, nil
}

// Delete lists keys starting with the object id and removes them. S3
// deletes are idempotent so a missing object is not an error.
func (c *S3) Delete(ctx context.Context, objectID string) error {
	if !validID(objectID) {
		return fmt.Errorf("invalid object id %q", objectID)
	}
	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out, err := c.s3.ListObjectsV2WithContext(cctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.bucket),
		Prefix: aws.String(objectKey(c.prefix, objectID, "")),
	})
	if err != nil {
		return fmt.Errorf("s3 list %s: %w", objectID, err)
	}
	for _, obj := range out.Contents {
		if _, err := c.s3.DeleteObjectWithContext(cctx, &s3.DeleteObjectInput{
			Bucket: aws.String(c.bucket),
			Key:    obj.Key,
		}); err != nil {
			return fmt.Errorf("s3 delete %s: %w", aws.StringValue(obj.Key), err)
		}
	}
	return nil
}

func (c *S3) ObjectID(url string) string { return ObjectIDFromURL(url) }

func (c *S3) Close() error { return nil }
