package streamwriter

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"
)

// fakeClock lets tests advance the Writer's notion of "now" without
// sleeping for real wall-clock time.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func newTestWriter(t *testing.T, granularity int64) (*Writer, *fakeClock) {
	t.Helper()
	work := filepath.Join(t.TempDir(), "work")
	complete := filepath.Join(t.TempDir(), "complete")

	w, err := New(Config{
		Prefix:             "logs.",
		Suffix:             ".gz",
		GranularitySeconds: granularity,
		WorkDir:            work,
		CompleteDir:        complete,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	clock := &fakeClock{t: time.Date(2013, 1, 1, 12, 0, 0, 0, time.UTC)}
	w.now = clock.now
	return w, clock
}

func completeFiles(t *testing.T, w *Writer) []string {
	t.Helper()
	entries, err := os.ReadDir(w.cfg.CompleteDir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

// TestSingleRecordArchive is scenario S1: one write, advance past the
// granularity, force rollover, expect exactly one complete file whose
// reader yields the record then EOF.
func TestSingleRecordArchive(t *testing.T) {
	w, clock := newTestWriter(t, 5)

	if err := w.Write([]byte("aaa"), []byte("bbb")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	clock.t = clock.t.Add(6 * time.Second)
	if err := w.CheckForRollover(); err != nil {
		t.Fatalf("CheckForRollover: %v", err)
	}

	names := completeFiles(t, w)
	if len(names) != 1 {
		t.Fatalf("expected 1 complete file, got %v", names)
	}

	r, err := OpenReader(filepath.Join(w.cfg.CompleteDir, names[0]))
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer r.Close()

	header, body, err := r.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if string(header) != "aaa" || string(body) != "bbb" {
		t.Fatalf("got (%q, %q), want (aaa, bbb)", header, body)
	}

	if _, _, err := r.Next(); err != io.EOF {
		t.Fatalf("expected io.EOF after single record, got %v", err)
	}
}

// TestThreeBucketsPreserveOrder is scenario S2: three writes, each
// followed by advancing past the granularity and forcing rollover.
// Reading the resulting files in sorted filename order must reproduce
// the input order.
func TestThreeBucketsPreserveOrder(t *testing.T) {
	w, clock := newTestWriter(t, 5)

	events := []struct{ header, body string }{
		{"aaa", "111"},
		{"bbb", "222"},
		{"ccc", "333"},
	}

	for _, e := range events {
		if err := w.Write([]byte(e.header), []byte(e.body)); err != nil {
			t.Fatalf("Write: %v", err)
		}
		clock.t = clock.t.Add(6 * time.Second)
		if err := w.CheckForRollover(); err != nil {
			t.Fatalf("CheckForRollover: %v", err)
		}
	}

	names := completeFiles(t, w)
	if len(names) != 3 {
		t.Fatalf("expected 3 complete files, got %v", names)
	}

	for i, name := range names {
		r, err := OpenReader(filepath.Join(w.cfg.CompleteDir, name))
		if err != nil {
			t.Fatalf("OpenReader(%s): %v", name, err)
		}
		header, body, err := r.Next()
		if err != nil {
			t.Fatalf("Next(%s): %v", name, err)
		}
		if string(header) != events[i].header || string(body) != events[i].body {
			t.Fatalf("file %s: got (%q, %q), want (%q, %q)", name, header, body, events[i].header, events[i].body)
		}
		if _, _, err := r.Next(); err != io.EOF {
			t.Fatalf("file %s: expected io.EOF, got %v", name, err)
		}
		r.Close()
	}
}

// TestRolloverAtomicity checks invariant 4: between a write that
// triggers rollover and the next write, exactly one file appears in
// the complete dir, named for the prior bucket.
func TestRolloverAtomicity(t *testing.T) {
	w, clock := newTestWriter(t, 5)

	if err := w.Write([]byte("h1"), []byte("b1")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	firstBucketStr := w.bucketStr

	clock.t = clock.t.Add(10 * time.Second)
	if err := w.Write([]byte("h2"), []byte("b2")); err != nil {
		t.Fatalf("Write (triggers rollover): %v", err)
	}

	names := completeFiles(t, w)
	if len(names) != 1 {
		t.Fatalf("expected exactly 1 complete file, got %v", names)
	}
	want := "logs." + firstBucketStr + ".gz"
	if names[0] != want {
		t.Fatalf("complete file = %q, want %q", names[0], want)
	}
}

// TestFrameRoundTrip checks invariant 2: the reader yields the same
// (header_bytes, body_bytes) in the same order as appended.
func TestFrameRoundTrip(t *testing.T) {
	w, _ := newTestWriter(t, 3600)

	records := [][2]string{
		{"h-one", "body one"},
		{"h-two", "body two, a little longer"},
		{"h-three", ""},
	}
	for _, rec := range records {
		if err := w.Write([]byte(rec[0]), []byte(rec[1])); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	names := completeFiles(t, w)
	if len(names) != 1 {
		t.Fatalf("expected 1 complete file, got %v", names)
	}

	r, err := OpenReader(filepath.Join(w.cfg.CompleteDir, names[0]))
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer r.Close()

	for i, want := range records {
		header, body, err := r.Next()
		if err != nil {
			t.Fatalf("Next() record %d: %v", i, err)
		}
		if string(header) != want[0] || string(body) != want[1] {
			t.Fatalf("record %d: got (%q, %q), want (%q, %q)", i, header, body, want[0], want[1])
		}
	}
	if _, _, err := r.Next(); err != io.EOF {
		t.Fatalf("expected io.EOF at end, got %v", err)
	}
}
