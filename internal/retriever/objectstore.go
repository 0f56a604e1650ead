// Package retriever implements the archive retriever and dedup pass
// (C7): it enumerates archives in a remote collection, downloads and
// merges each time bucket, and yields deduplicated bodies in
// (timestamp, uuid) order.
package retriever

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spideroak/old-log-inn/internal/xerr"
)

// ObjectStore is the seam between the retriever and whatever remote
// archive collection it reads from. ListKeys paginates; a truthy
// truncated return means the caller should call again with the last
// key seen as marker.
type ObjectStore interface {
	ListKeys(ctx context.Context, marker string) (keys []string, truncated bool, err error)
	Download(ctx context.Context, key string, dst io.Writer) error
}

// FSObjectStore is an ObjectStore backed by a directory of files,
// suitable for a single-node deployment where the stream writer's
// complete directory doubles as the archive collection, and for tests.
type FSObjectStore struct {
	Dir string
}

// ListKeys returns every regular file name in Dir in one page; marker
// and pagination are unused since the directory listing is cheap.
func (s *FSObjectStore) ListKeys(ctx context.Context, marker string) ([]string, bool, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, false, &xerr.RemoteStoreError{Key: s.Dir, Err: err}
	}
	var keys []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		keys = append(keys, e.Name())
	}
	sort.Strings(keys)
	return keys, false, nil
}

// Download copies the named file's contents to dst.
func (s *FSObjectStore) Download(ctx context.Context, key string, dst io.Writer) error {
	f, err := os.Open(filepath.Join(s.Dir, key))
	if err != nil {
		return &xerr.RemoteStoreError{Key: key, Err: err}
	}
	defer f.Close()
	if _, err := io.Copy(dst, f); err != nil {
		return &xerr.RemoteStoreError{Key: key, Err: err}
	}
	return nil
}

// keyBucket extracts the ts14 bucket string from a key of the form
// <prefix><ts14><suffix>, or ok=false if the key doesn't match.
func keyBucket(key, prefix, suffix string) (bucket string, ok bool) {
	if !strings.HasPrefix(key, prefix) || !strings.HasSuffix(key, suffix) {
		return "", false
	}
	rest := key[len(prefix):]
	if len(rest) < len(suffix)+14 {
		return "", false
	}
	return rest[:14], true
}
