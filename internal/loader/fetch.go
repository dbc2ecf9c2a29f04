package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"k8s.io/klog/v2"
)

// ErrUnsupportedURI is returned by Fetch for URIs it cannot resolve.
var ErrUnsupportedURI = errors.New("unsupported weights URI")

// Fetch resolves a weights location to a local file path.
//
// Local paths are returned unchanged. gs://bucket/object URIs are
// downloaded into dir, unless a file of the same name is already there.
func Fetch(ctx context.Context, uri, dir string) (string, error) {
	bucket, object, ok, err := parseGCSURI(uri)
	if err != nil {
		return "", err
	}
	if !ok {
		return uri, nil
	}

	log := klog.FromContext(ctx)

	dest := filepath.Join(dir, path.Base(object))
	if _, err := os.Stat(dest); err == nil {
		log.V(1).Info("using cached weights", "source", uri, "path", dest)
		return dest, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating cache directory: %w", err)
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return "", fmt.Errorf("creating GCS storage client: %w", err)
	}
	defer client.Close()

	log.Info("downloading weights from GCS", "source", uri, "destination", dest)

	startedAt := time.Now()
	r, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return "", fmt.Errorf("opening object from GCS %q: %w", uri, err)
	}
	defer r.Close()

	n, err := writeToFile(ctx, r, dest)
	if err != nil {
		return "", fmt.Errorf("downloading from GCS: %w", err)
	}

	log.Info("downloaded weights from GCS", "source", uri, "destination", dest, "bytes", n, "duration", time.Since(startedAt))
	return dest, nil
}

// parseGCSURI splits gs://bucket/object. ok is false for anything that is
// not a URI at all.
func parseGCSURI(uri string) (bucket, object string, ok bool, err error) {
	scheme, rest, found := strings.Cut(uri, "://")
	if !found {
		return "", "", false, nil
	}
	if scheme != "gs" {
		return "", "", false, fmt.Errorf("%w: %q", ErrUnsupportedURI, uri)
	}
	bucket, object, _ = strings.Cut(rest, "/")
	if bucket == "" || object == "" || strings.HasSuffix(object, "/") {
		return "", "", false, fmt.Errorf("%w: %q (expected gs://bucket/object)", ErrUnsupportedURI, uri)
	}
	return bucket, object, true, nil
}

func writeToFile(ctx context.Context, src io.Reader, destinationPath string) (int64, error) {
	log := klog.FromContext(ctx)

	tempFile, err := os.CreateTemp(filepath.Dir(destinationPath), "download")
	if err != nil {
		return 0, fmt.Errorf("creating temp file: %w", err)
	}

	shouldDeleteTempFile := true
	defer func() {
		if shouldDeleteTempFile {
			if err := os.Remove(tempFile.Name()); err != nil {
				log.Error(err, "removing temp file", "path", tempFile.Name())
			}
		}
	}()

	shouldCloseTempFile := true
	defer func() {
		if shouldCloseTempFile {
			if err := tempFile.Close(); err != nil {
				log.Error(err, "closing temp file", "path", tempFile.Name())
			}
		}
	}()

	n, err := io.Copy(tempFile, src)
	if err != nil {
		return n, fmt.Errorf("downloading from upstream source: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return n, fmt.Errorf("closing temp file: %w", err)
	}
	shouldCloseTempFile = false

	if err := os.Rename(tempFile.Name(), destinationPath); err != nil {
		return n, fmt.Errorf("renaming temp file: %w", err)
	}
	shouldDeleteTempFile = false

	return n, nil
}
