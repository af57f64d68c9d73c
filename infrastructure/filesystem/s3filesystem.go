package filesystem

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Location is an object in a bucket. A Key ending in "/" (or empty) names
// a prefix.
type Location struct {
	Bucket string
	Key    string
}

func (l Location) IsPrefix() bool {
	return l.Key == "" || strings.HasSuffix(l.Key, "/")
}

func (l Location) String() string {
	return "s3://" + l.Bucket + "/" + l.Key
}

// ParseLocation reports whether s is an s3://bucket/key url.
func ParseLocation(s string) (Location, bool) {
	rest, ok := strings.CutPrefix(s, "s3://")
	if !ok {
		return Location{}, false
	}
	bucket, key, _ := strings.Cut(rest, "/")
	if bucket == "" {
		return Location{}, false
	}
	return Location{Bucket: bucket, Key: key}, true
}

func newClient(ctx context.Context) (*s3.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return s3.NewFromConfig(cfg), nil
}

func ReadFile(ctx context.Context, bucket string, key string, outStream io.Writer) error {
	client, err := newClient(ctx)
	if err != nil {
		return err
	}

	resp, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to get object %s from bucket %s: %w", key, bucket, err)
	}
	defer resp.Body.Close()

	if _, err = io.Copy(outStream, resp.Body); err != nil {
		return fmt.Errorf("failed to copy object %s from bucket %s: %w", key, bucket, err)
	}
	return nil
}

func ListFiles(ctx context.Context, bucket string, prefix string) ([]string, error) {
	client, err := newClient(ctx)
	if err != nil {
		return nil, err
	}

	var keys []string
	paginator := s3.NewListObjectsV2Paginator(client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects in bucket %s: %w", bucket, err)
		}
		for _, obj := range page.Contents {
			if obj.Key != nil {
				keys = append(keys, *obj.Key)
			}
		}
	}
	return keys, nil
}

// File is a named file read into memory.
type File struct {
	Name string
	Data []byte
}

// ReadAll reads a local path or an s3 url. An s3 prefix yields every
// object under it whose name ends in ext.
func ReadAll(ctx context.Context, location string, ext string) ([]File, error) {
	loc, ok := ParseLocation(location)
	if !ok {
		data, err := os.ReadFile(location)
		if err != nil {
			return nil, err
		}
		return []File{{Name: location, Data: data}}, nil
	}

	keys := []string{loc.Key}
	if loc.IsPrefix() {
		all, err := ListFiles(ctx, loc.Bucket, loc.Key)
		if err != nil {
			return nil, err
		}
		keys = keys[:0]
		for _, k := range all {
			if strings.EqualFold(path.Ext(k), ext) {
				keys = append(keys, k)
			}
		}
		if len(keys) == 0 {
			return nil, fmt.Errorf("no %s files under %s", ext, loc)
		}
	}

	files := make([]File, 0, len(keys))
	for _, k := range keys {
		var buf bytes.Buffer
		if err := ReadFile(ctx, loc.Bucket, k, &buf); err != nil {
			return nil, err
		}
		files = append(files, File{Name: Location{Bucket: loc.Bucket, Key: k}.String(), Data: buf.Bytes()})
	}
	return files, nil
}
