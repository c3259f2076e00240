package record

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Archive is a destination for exported runs.
type Archive interface {
	// Put stores one object under key.
	Put(ctx context.Context, key, contentType string, body io.Reader) error
}

// FSArchive stores exported runs as files under a directory.
type FSArchive struct {
	dir string
}

var _ Archive = (*FSArchive)(nil)

// NewFSArchive creates an archive rooted at dir. The directory is
// created on first Put.
func NewFSArchive(dir string) *FSArchive {
	return &FSArchive{dir: dir}
}

// Put implements Archive.
func (a *FSArchive) Put(ctx context.Context, key, contentType string, body io.Reader) error {
	path := filepath.Join(a.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("archive mkdir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("archive create: %w", err)
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		return fmt.Errorf("archive write: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("archive close: %w", err)
	}
	return nil
}

// S3Archive stores exported runs in an S3 bucket.
//
// Example usage:
//
//	cfg, _ := config.LoadDefaultConfig(ctx)
//	arch := record.NewS3Archive(s3.NewFromConfig(cfg), "my-bucket", "weft/runs/")
type S3Archive struct {
	client *s3.Client
	bucket string
	prefix string
}

var _ Archive = (*S3Archive)(nil)

// NewS3Archive creates an archive writing to bucket under prefix.
func NewS3Archive(client *s3.Client, bucket, prefix string) *S3Archive {
	return &S3Archive{client: client, bucket: bucket, prefix: prefix}
}

// Put implements Archive.
func (a *S3Archive) Put(ctx context.Context, key, contentType string, body io.Reader) error {
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(a.prefix + key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("s3 archive put failed: %w", err)
	}
	return nil
}

// ArchiveRun exports one run as NDJSON and stores it in the archive
// under "<runID>.ndjson".
func (s *Store) ArchiveRun(ctx context.Context, a Archive, runID string) error {
	var buf bytes.Buffer
	if err := s.ExportNDJSON(ctx, &buf, runID); err != nil {
		return err
	}
	return a.Put(ctx, runID+".ndjson", "application/x-ndjson", &buf)
}
