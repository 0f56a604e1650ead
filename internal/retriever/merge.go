package retriever

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"

	"github.com/spideroak/old-log-inn/internal/filter"
	"github.com/spideroak/old-log-inn/internal/streamwriter"
	"github.com/spideroak/old-log-inn/internal/wire"
	"github.com/spideroak/old-log-inn/internal/xerr"
)

// headerRecord augments a decoded header with the location of its
// still-compressed body bytes inside one archive's data file.
type headerRecord struct {
	header   wire.Header
	dataFile string
	offset   int64
	size     int64
}

// Record is one emitted, deduplicated, filtered body the caller
// receives from a merge pass.
type Record struct {
	Header wire.Header
	Body   string
}

// mergeBucket downloads every key in a bucket to workDir, streams each
// archive's records into a per-archive data file plus an in-memory
// header list, sorts and dedups the combined list by (timestamp,
// uuid), then seeks and yields the body of each surviving header that
// passes f's body regex. Local archives and data files are removed
// before returning. A single archive that fails to download or that
// turns out to be corrupt is logged and skipped; the rest of the
// bucket is still merged and emitted.
func mergeBucket(ctx context.Context, store ObjectStore, keys []string, workDir string, f filter.Filter, emit func(Record) error) error {
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return &xerr.IOError{Op: "create work dir " + workDir, Err: err}
	}
	defer os.RemoveAll(workDir)

	var headers []headerRecord
	var dataFiles []*os.File
	defer func() {
		for _, df := range dataFiles {
			df.Close()
		}
	}()

	for _, key := range keys {
		archivePath := filepath.Join(workDir, "archive-"+key)
		af, err := os.OpenFile(archivePath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
		if err != nil {
			return &xerr.IOError{Op: "create local archive " + archivePath, Err: err}
		}
		if err := store.Download(ctx, key, af); err != nil {
			af.Close()
			os.Remove(archivePath)
			log.Printf("retriever: skipping archive %s: %v", key, err)
			continue
		}
		af.Close()

		dataPath := filepath.Join(workDir, "data-"+key)
		df, err := os.OpenFile(dataPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
		if err != nil {
			return &xerr.IOError{Op: "create data file " + dataPath, Err: err}
		}

		recs, err := streamArchive(archivePath, df, f)
		if err != nil {
			df.Close()
			os.Remove(archivePath)
			log.Printf("retriever: skipping corrupt archive %s: %v", key, err)
			continue
		}
		dataFiles = append(dataFiles, df)
		headers = append(headers, recs...)

		os.Remove(archivePath)
	}

	sort.Slice(headers, func(i, j int) bool {
		if headers[i].header.Timestamp != headers[j].header.Timestamp {
			return headers[i].header.Timestamp < headers[j].header.Timestamp
		}
		return headers[i].header.UUID < headers[j].header.UUID
	})

	deduped := dedup(headers)

	for _, hr := range deduped {
		compressedBody := make([]byte, hr.size)
		df := fileForPath(dataFiles, hr.dataFile)
		if df == nil {
			continue
		}
		if _, err := df.Seek(hr.offset, io.SeekStart); err != nil {
			return &xerr.IOError{Op: "seek data file " + hr.dataFile, Err: err}
		}
		if _, err := io.ReadFull(df, compressedBody); err != nil {
			return &xerr.IOError{Op: "read data file " + hr.dataFile, Err: err}
		}

		body, err := wire.DecodeBody(compressedBody)
		if err != nil {
			return err
		}
		if !f.MatchesBody(body) {
			continue
		}
		if err := emit(Record{Header: hr.header, Body: body}); err != nil {
			return err
		}
	}

	return nil
}

func fileForPath(files []*os.File, path string) *os.File {
	for _, f := range files {
		if f.Name() == path {
			return f
		}
	}
	return nil
}

// streamArchive reads every (header, body) record from the archive at
// path, discards headers failing f's header predicates, writes the
// still-compressed body bytes to dataFile, and returns the augmented
// header list.
func streamArchive(path string, dataFile *os.File, f filter.Filter) ([]headerRecord, error) {
	r, err := streamwriter.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var out []headerRecord
	var offset int64
	for {
		compressedHeader, compressedBody, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		h, err := wire.DecodeHeader(compressedHeader)
		if err != nil {
			return nil, err
		}
		if !f.MatchesHeader(h.Hostname, h.Nodename, h.LogPath) {
			continue
		}

		n, err := dataFile.Write(compressedBody)
		if err != nil {
			return nil, &xerr.IOError{Op: "write data file " + dataFile.Name(), Err: err}
		}
		out = append(out, headerRecord{
			header:   h,
			dataFile: dataFile.Name(),
			offset:   offset,
			size:     int64(n),
		})
		offset += int64(n)
	}
	return out, nil
}

// dedup groups consecutively-equal (timestamp, uuid) keys in a sorted
// slice and keeps the first of each group.
func dedup(sorted []headerRecord) []headerRecord {
	var out []headerRecord
	for i, hr := range sorted {
		if i > 0 &&
			hr.header.Timestamp == sorted[i-1].header.Timestamp &&
			hr.header.UUID == sorted[i-1].header.UUID {
			continue
		}
		out = append(out, hr)
	}
	return out
}
