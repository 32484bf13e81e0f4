package tabular

import (
	"context"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
)

const gcsScheme = "gs://"

// gcsObject is a Cloud Storage object reader that owns its client.
type gcsObject struct {
	*storage.Reader
	client *storage.Client
}

// Close closes the object reader and the client.
func (o *gcsObject) Close() error {
	err := o.Reader.Close()
	if cerr := o.client.Close(); err == nil {
		err = cerr
	}
	return err
}

// openGCS opens a gs://bucket/object URI for streaming. Credentials come from
// the environment (Application Default Credentials).
func openGCS(ctx context.Context, uri string) (io.ReadCloser, error) {
	bucket, object, err := parseGCSURI(uri)
	if err != nil {
		return nil, err
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	r, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("open GCS object reader: %w", err)
	}

	return &gcsObject{Reader: r, client: client}, nil
}

// parseGCSURI splits gs://bucket/path/to/object into bucket and object name.
func parseGCSURI(uri string) (bucket, object string, err error) {
	rest, ok := strings.CutPrefix(uri, gcsScheme)
	if !ok {
		return "", "", fmt.Errorf("not a GCS URI: %q", uri)
	}

	bucket, object, _ = strings.Cut(rest, "/")
	if bucket == "" || object == "" {
		return "", "", fmt.Errorf("invalid GCS URI %q, expected gs://bucket/object", uri)
	}

	return bucket, object, nil
}
