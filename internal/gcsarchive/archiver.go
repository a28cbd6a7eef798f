// Package gcsarchive stores processed statement uploads in a Google Cloud
// Storage bucket so the original files survive local temp-dir cleanup.
package gcsarchive

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

const uploadTimeout = 2 * time.Minute

// Archiver uploads statement files to a GCS bucket and fetches them back.
// It assumes Application Default Credentials are configured.
type Archiver struct {
	client *storage.Client
	bucket string
}

// NewArchiver creates an Archiver backed by the given bucket.
func NewArchiver(ctx context.Context, bucket string) (*Archiver, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewArchiver: creating storage client: %w", err)
	}
	return &Archiver{client: client, bucket: bucket}, nil
}

// Close releases the underlying storage client.
func (a *Archiver) Close() error {
	return a.client.Close()
}

// ArchiveFile uploads a local file under the given object name and returns
// the gs:// URI of the stored object.
func (a *Archiver) ArchiveFile(ctx context.Context, objectName, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("ArchiveFile: open file %q: %w", localPath, err)
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := a.client.Bucket(a.bucket).Object(objectName).NewWriter(ctx)
	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("ArchiveFile: copy file to GCS writer: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("ArchiveFile: finalize upload: %w", err)
	}

	return fmt.Sprintf("gs://%s/%s", a.bucket, objectName), nil
}

// Fetch downloads the object bytes from the given gs:// URI.
func (a *Archiver) Fetch(ctx context.Context, gcsURI string) ([]byte, error) {
	bucket, object, err := ParseURI(gcsURI)
	if err != nil {
		return nil, fmt.Errorf("Fetch: %w", err)
	}

	r, err := a.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("Fetch: open GCS object reader: %w", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("Fetch: read GCS object: %w", err)
	}
	return data, nil
}

// ParseURI splits a gs://bucket/path URI into bucket and object path.
func ParseURI(gcsURI string) (bucket, object string, err error) {
	if !strings.HasPrefix(gcsURI, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", gcsURI)
	}

	trimmed := strings.TrimPrefix(gcsURI, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", gcsURI)
	}
	return parts[0], parts[1], nil
}

// ObjectName builds the archive object key for an upload: one folder per
// user, a timestamp prefix to keep repeated uploads of the same file apart.
func ObjectName(userID, sourceFile string, now time.Time) string {
	return fmt.Sprintf("statements/%s/%s_%s", userID, now.UTC().Format("20060102T150405"), sourceFile)
}
