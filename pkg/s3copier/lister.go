package s3copier

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Entry is one entry of a listed prefix, mirroring a directory listing.
type Entry struct {
	Name string
	Size int64
	Dir  bool
}

// Lister lists one level of a bucket prefix at a time, so the remote
// scanner can walk an object store the way it walks an SRM tree.
type Lister struct {
	client *s3.Client
	bucket string
}

// NewLister creates a Lister for one bucket.
func NewLister(client *s3.Client, bucket string) *Lister {
	return &Lister{client: client, bucket: bucket}
}

// List returns the immediate children of prefix, using '/' as delimiter:
// common prefixes come back as directories, objects as files.
func (l *Lister) List(ctx context.Context, prefix string) ([]Entry, error) {
	prefix = strings.TrimPrefix(prefix, "/")
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	var entries []Entry
	paginator := s3.NewListObjectsV2Paginator(l.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(l.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list s3://%s/%s: %w", l.bucket, prefix, err)
		}
		for _, cp := range page.CommonPrefixes {
			if cp.Prefix == nil {
				continue
			}
			entries = append(entries, Entry{
				Name: path.Base(strings.TrimSuffix(*cp.Prefix, "/")),
				Dir:  true,
			})
		}
		for _, obj := range page.Contents {
			if obj.Key == nil || *obj.Key == prefix {
				continue
			}
			entries = append(entries, Entry{
				Name: path.Base(*obj.Key),
				Size: aws.ToInt64(obj.Size),
			})
		}
	}
	return entries, nil
}
