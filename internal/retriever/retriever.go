package retriever

import (
	"context"
	"log"
	"path/filepath"

	"github.com/spideroak/old-log-inn/internal/filter"
	"github.com/spideroak/old-log-inn/internal/xerr"
)

// Config selects which archives a Retriever reads and how it filters
// their contents.
type Config struct {
	Prefix  string
	Suffix  string
	LowTS   string // inclusive; empty means unbounded
	HighTS  string // inclusive; empty means unbounded
	WorkDir string
	Filter  filter.Filter
}

// Retriever runs the enumerate-then-merge retrieval pass against one
// ObjectStore.
type Retriever struct {
	store ObjectStore
	cfg   Config
}

// New validates cfg and returns a Retriever reading from store.
func New(store ObjectStore, cfg Config) (*Retriever, error) {
	if cfg.Prefix == "" {
		return nil, &xerr.ConfigError{Field: "prefix", Reason: "required"}
	}
	if cfg.WorkDir == "" {
		return nil, &xerr.ConfigError{Field: "work dir", Reason: "required"}
	}
	return &Retriever{store: store, cfg: cfg}, nil
}

// Run enumerates matching archives, groups them by bucket in ascending
// order, and for each bucket downloads, merges, dedups, filters, and
// emits records via emit, in (timestamp, uuid) order within the
// bucket. Buckets are processed in ascending ts14 order, so output
// across the whole run is chronological except for any equal-timestamp
// ties, which break on uuid. A bucket that fails outright (its work
// dir cannot be prepared, or every archive in it is unreadable) is
// logged and skipped; the run continues with the next bucket.
func (r *Retriever) Run(ctx context.Context, emit func(Record) error) error {
	var keys []string
	marker := ""
	for {
		page, truncated, err := r.store.ListKeys(ctx, marker)
		if err != nil {
			return err
		}
		keys = append(keys, page...)
		if !truncated || len(page) == 0 {
			break
		}
		marker = page[len(page)-1]
	}

	groups := enumerate(keys, r.cfg.Prefix, r.cfg.Suffix, r.cfg.LowTS, r.cfg.HighTS)

	for _, g := range groups {
		bucketDir := filepath.Join(r.cfg.WorkDir, g.bucket)
		if err := mergeBucket(ctx, r.store, g.keys, bucketDir, r.cfg.Filter, emit); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("retriever: skipping bucket %s: %v", g.bucket, err)
			continue
		}
	}
	return nil
}
