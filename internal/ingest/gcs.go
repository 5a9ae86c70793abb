package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"cloud.google.com/go/storage"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/iterator"

	"github.com/joseph-ayodele/pdf-tagger/constants"
)

// Object is a listed blob.
type Object struct {
	Name string
	Size int64
}

// Bucket lists and reads objects; storageBucket backs it with Cloud Storage.
type Bucket interface {
	List(ctx context.Context, bucket, prefix string) ([]Object, error)
	Open(ctx context.Context, bucket, name string) (io.ReadCloser, error)
}

// GCS mirrors gs://bucket/prefix inputs into Dir so the pipeline can open
// them as local files.
type GCS struct {
	Dir     string
	Workers int
	store   Bucket
	closer  io.Closer
	logger  *slog.Logger
}

// NewGCS creates a storage client with application default credentials.
func NewGCS(ctx context.Context, dir string, workers int, logger *slog.Logger) (*GCS, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage.NewClient: %w", err)
	}
	g := NewGCSWithBucket(storageBucket{client}, dir, workers, logger)
	g.closer = client
	return g, nil
}

// NewGCSWithBucket mirrors through any Bucket implementation.
func NewGCSWithBucket(b Bucket, dir string, workers int, logger *slog.Logger) *GCS {
	if logger == nil {
		logger = slog.Default()
	}
	if workers <= 0 {
		workers = 8
	}
	return &GCS{Dir: dir, Workers: workers, store: b, logger: logger}
}

func (g *GCS) Close() error {
	if g.closer != nil {
		return g.closer.Close()
	}
	return nil
}

// ParseURI splits gs://bucket/prefix.
func ParseURI(uri string) (bucket, prefix string, err error) {
	rest, ok := strings.CutPrefix(uri, constants.GCSPrefix)
	if !ok {
		return "", "", fmt.Errorf("not a %s uri: %q", constants.GCSPrefix, uri)
	}
	bucket, prefix, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("missing bucket in %q", uri)
	}
	return bucket, prefix, nil
}

// LocalPath is where object name of bucket is mirrored.
func (g *GCS) LocalPath(bucket, name string) string {
	return filepath.Join(g.Dir, bucket, filepath.FromSlash(name))
}

// Download mirrors every PDF under uri and returns the local root of the
// bucket and the local paths in lexical order. Files already mirrored with
// the same size are not fetched again.
func (g *GCS) Download(ctx context.Context, uri string) (string, []string, error) {
	bucket, prefix, err := ParseURI(uri)
	if err != nil {
		return "", nil, err
	}
	objects, err := g.store.List(ctx, bucket, prefix)
	if err != nil {
		return "", nil, fmt.Errorf("list %s: %w", uri, err)
	}

	var (
		mu    sync.Mutex
		paths []string
	)
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.Workers)
	for _, obj := range objects {
		if strings.HasSuffix(obj.Name, "/") || !AllowedExt(filepath.Ext(obj.Name)) {
			continue
		}
		eg.Go(func() error {
			local := g.LocalPath(bucket, obj.Name)
			if info, err := os.Stat(local); err == nil && info.Size() == obj.Size {
				g.logger.Debug("ingest.gcs.cached", "object", obj.Name)
			} else if err := g.fetch(gctx, bucket, obj.Name, local); err != nil {
				return fmt.Errorf("download gs://%s/%s: %w", bucket, obj.Name, err)
			}
			mu.Lock()
			paths = append(paths, local)
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return "", nil, err
	}
	sort.Strings(paths)
	g.logger.Info("ingest.gcs.downloaded", "uri", uri, "objects", len(paths))
	return filepath.Join(g.Dir, bucket), paths, nil
}

func (g *GCS) fetch(ctx context.Context, bucket, name, local string) error {
	if err := os.MkdirAll(filepath.Dir(local), 0o755); err != nil {
		return err
	}
	r, err := g.store.Open(ctx, bucket, name)
	if err != nil {
		return err
	}
	defer r.Close()

	tmp, err := os.CreateTemp(filepath.Dir(local), ".download-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, local)
}

type storageBucket struct {
	client *storage.Client
}

func (s storageBucket) List(ctx context.Context, bucket, prefix string) ([]Object, error) {
	it := s.client.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	var out []Object
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, Object{Name: attrs.Name, Size: attrs.Size})
	}
	return out, nil
}

func (s storageBucket) Open(ctx context.Context, bucket, name string) (io.ReadCloser, error) {
	return s.client.Bucket(bucket).Object(name).NewReader(ctx)
}
