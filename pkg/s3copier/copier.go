// Package s3copier implements the copy and listing capabilities against
// S3-compatible storage endpoints with the AWS SDK, as an alternative to
// shelling out to the grid tools.
package s3copier

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/hep-ops/gridsync/internal/checksum"
	"github.com/hep-ops/gridsync/pkg/transfer"
)

// adler32MetadataKey is the object metadata key CMS-facing endpoints use
// to record the replica checksum.
const adler32MetadataKey = "adler32"

// Copier downloads objects to local files. It implements transfer.Copier.
type Copier struct {
	client     *s3.Client
	downloader *manager.Downloader
	// Checksum verifies the downloaded file against the object's
	// adler32 metadata when the endpoint records one.
	Checksum bool
}

// NewCopier creates a Copier on top of an S3 client.
func NewCopier(client *s3.Client) *Copier {
	return &Copier{
		client:     client,
		downloader: manager.NewDownloader(client),
	}
}

// ParseURL splits an s3://bucket/key URL.
func ParseURL(url string) (bucket, key string, err error) {
	trimmed, ok := strings.CutPrefix(url, "s3://")
	if !ok {
		return "", "", fmt.Errorf("not an S3 URL: %s", url)
	}
	bucket, key, _ = strings.Cut(trimmed, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("missing bucket in S3 URL: %s", url)
	}
	return bucket, strings.TrimPrefix(key, "/"), nil
}

// Copy downloads item.Source (an s3://bucket/key URL) to item.Dest.
// A missing object or denied access is fatal; other failures are left
// retryable.
func (c *Copier) Copy(ctx context.Context, item transfer.Item) error {
	bucket, key, err := ParseURL(item.Source)
	if err != nil {
		return transfer.Fatal(err)
	}

	if err := os.MkdirAll(filepath.Dir(item.Dest), 0755); err != nil {
		return transfer.Fatal(fmt.Errorf("create destination directory: %w", err))
	}
	f, err := os.Create(item.Dest)
	if err != nil {
		return transfer.Fatal(fmt.Errorf("create destination file: %w", err))
	}
	defer f.Close()

	n, err := c.downloader.Download(ctx, f, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		os.Remove(item.Dest)
		return classify(fmt.Errorf("download s3://%s/%s: %w", bucket, key, err))
	}
	if item.Size > 0 && n != item.Size {
		os.Remove(item.Dest)
		return transfer.Retryable(fmt.Errorf("downloaded %d bytes of s3://%s/%s, expected %d", n, bucket, key, item.Size))
	}

	if c.Checksum {
		if err := c.verify(ctx, bucket, key, item.Dest); err != nil {
			os.Remove(item.Dest)
			return err
		}
	}
	return nil
}

func (c *Copier) verify(ctx context.Context, bucket, key, dest string) error {
	head, err := c.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return classify(fmt.Errorf("head s3://%s/%s: %w", bucket, key, err))
	}
	want, ok := head.Metadata[adler32MetadataKey]
	if !ok {
		// Endpoint does not record a checksum; nothing to verify against.
		return nil
	}
	got, err := checksum.FileAdler32(dest)
	if err != nil {
		return transfer.Retryable(fmt.Errorf("checksum %s: %w", dest, err))
	}
	if !checksum.Equal(got, want) {
		return transfer.Retryable(fmt.Errorf("checksum mismatch for s3://%s/%s: got %s, expected %s", bucket, key, got, want))
	}
	return nil
}

// fatalCodes are API error codes for which a retry cannot help.
var fatalCodes = map[string]bool{
	"NoSuchKey":          true,
	"NoSuchBucket":       true,
	"NotFound":           true,
	"AccessDenied":       true,
	"InvalidAccessKeyId": true,
}

func classify(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && fatalCodes[apiErr.ErrorCode()] {
		return transfer.Fatal(err)
	}
	return transfer.Retryable(err)
}
