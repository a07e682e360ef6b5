package dataset

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	lserrors "linesearch/internal/errors"
	"linesearch/internal/slogutil"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestReadLines(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{"empty file", "", nil},
		{"trailing newline", "alpha\nbeta\n", []string{"alpha", "beta"}},
		{"no trailing newline", "alpha\nbeta", []string{"alpha", "beta"}},
		{"crlf kept for trimming", "alpha\r\nbeta\r\n", []string{"alpha\r", "beta\r"}},
		{"blank lines", "a\n\n\nb\n", []string{"a", "", "", "b"}},
		{"only newline", "\n", []string{""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "data.txt")
			writeFile(t, path, tt.content)

			snap, err := ReadLines(path)
			if err != nil {
				t.Fatalf("ReadLines failed: %v", err)
			}
			if !reflect.DeepEqual(snap.Lines, tt.want) {
				t.Errorf("Lines = %q, want %q", snap.Lines, tt.want)
			}
			if snap.Source != path {
				t.Errorf("Source = %q, want %q", snap.Source, path)
			}
		})
	}
}

func TestReadLines_Compressed(t *testing.T) {
	dir := t.TempDir()
	content := "11;0;23;11;0;20;\nhello world\n  padded  \n"

	plain := filepath.Join(dir, "data.txt")
	writeFile(t, plain, content)

	var gzBuf bytes.Buffer
	gw := gzip.NewWriter(&gzBuf)
	if _, err := gw.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := gw.Close(); err != nil {
		t.Fatal(err)
	}
	gzPath := filepath.Join(dir, "data.txt.gz")
	writeFile(t, gzPath, gzBuf.String())

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		t.Fatal(err)
	}
	zstPath := filepath.Join(dir, "data.txt.zst")
	writeFile(t, zstPath, string(enc.EncodeAll([]byte(content), nil)))
	_ = enc.Close()

	want, err := ReadLines(plain)
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{gzPath, zstPath} {
		got, err := ReadLines(p)
		if err != nil {
			t.Fatalf("ReadLines(%s) failed: %v", filepath.Base(p), err)
		}
		if !reflect.DeepEqual(got.Lines, want.Lines) {
			t.Errorf("%s lines = %q, want %q", filepath.Base(p), got.Lines, want.Lines)
		}
		if got.Digest != want.Digest {
			t.Errorf("%s digest differs from plain file", filepath.Base(p))
		}
	}
}

func TestReadLines_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := ReadLines(filepath.Join(dir, "absent.txt"))
	if !lserrors.Is(err, lserrors.DatasetMissing) {
		t.Errorf("missing file code = %s, want DATASET_MISSING", lserrors.CodeOf(err))
	}

	bad := filepath.Join(dir, "broken.gz")
	writeFile(t, bad, "definitely not gzip")
	_, err = ReadLines(bad)
	if !lserrors.Is(err, lserrors.DatasetIOFault) {
		t.Errorf("corrupt gzip code = %s, want DATASET_IO_FAULT", lserrors.CodeOf(err))
	}

	_, err = ReadLines(dir)
	if !lserrors.Is(err, lserrors.DatasetIOFault) {
		t.Errorf("directory code = %s, want DATASET_IO_FAULT", lserrors.CodeOf(err))
	}
}

func TestNew_Mode(t *testing.T) {
	logger := slogutil.NewDiscardLogger()
	if m := New("x", true, logger).Mode(); m != ModeTransient {
		t.Errorf("reread=true mode = %s", m)
	}
	if m := New("x", false, logger).Mode(); m != ModeCached {
		t.Errorf("reread=false mode = %s", m)
	}
}

func TestTransient_SeesEveryChange(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data.txt")
	p := NewTransient(path, slogutil.NewDiscardLogger())

	snap, err := p.Load(ctx)
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if snap.Len() != 0 {
		t.Errorf("missing file should load empty, got %d lines", snap.Len())
	}

	writeFile(t, path, "first\n")
	snap, _ = p.Load(ctx)
	if !reflect.DeepEqual(snap.Lines, []string{"first"}) {
		t.Errorf("Lines = %q", snap.Lines)
	}

	writeFile(t, path, "first\nsecond\n")
	snap, _ = p.Load(ctx)
	if snap.Len() != 2 {
		t.Errorf("transient policy should see appended line, got %q", snap.Lines)
	}
}

func TestCached_ReadsOnce(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data.txt")
	writeFile(t, path, "original\n")

	c := NewCached(path, slogutil.NewDiscardLogger())
	first, err := c.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}

	writeFile(t, path, "replaced\n")
	second, err := c.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Error("cached policy should return the same snapshot")
	}
	if second.Lines[0] != "original" {
		t.Errorf("cached content changed to %q", second.Lines[0])
	}
}

func TestCached_MissingNotCached(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "late.txt")
	c := NewCached(path, slogutil.NewDiscardLogger())

	snap, err := c.Load(ctx)
	if err != nil || snap.Len() != 0 {
		t.Fatalf("Load = %v lines, %v; want empty, nil", snap.Len(), err)
	}
	if c.Loaded() {
		t.Fatal("missing file must not be cached")
	}

	writeFile(t, path, "arrived\n")
	snap, err = c.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(snap.Lines, []string{"arrived"}) {
		t.Errorf("Lines = %q, want the late file", snap.Lines)
	}
	if !c.Loaded() {
		t.Error("snapshot should be cached once the file exists")
	}
}

func TestCached_ConcurrentFirstLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.txt")
	writeFile(t, path, "a\nb\nc\n")
	c := NewCached(path, slogutil.NewDiscardLogger())

	const n = 32
	snaps := make([]*Snapshot, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := c.Load(context.Background())
			if err != nil {
				t.Errorf("Load failed: %v", err)
			}
			snaps[i] = s
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		if snaps[i] != snaps[0] {
			t.Fatalf("goroutine %d got a different snapshot", i)
		}
	}
}

func TestCached_Reload(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data.txt")
	writeFile(t, path, "v1\n")

	c := NewCached(path, slogutil.NewDiscardLogger())
	before, _ := c.Load(ctx)

	changed, err := c.Reload(ctx)
	if err != nil || changed {
		t.Errorf("Reload of identical content = %v, %v; want false, nil", changed, err)
	}

	writeFile(t, path, "v2\n")
	changed, err = c.Reload(ctx)
	if err != nil || !changed {
		t.Fatalf("Reload after edit = %v, %v; want true, nil", changed, err)
	}
	after, _ := c.Load(ctx)
	if after.Lines[0] != "v2" {
		t.Errorf("after reload Lines = %q", after.Lines)
	}
	if before.Lines[0] != "v1" {
		t.Error("previous snapshot must not be mutated by reload")
	}

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	changed, err = c.Reload(ctx)
	if err != nil || changed {
		t.Errorf("Reload of missing file = %v, %v; want false, nil", changed, err)
	}
	if s, _ := c.Load(ctx); s.Lines[0] != "v2" {
		t.Error("missing file on reload should keep the current snapshot")
	}
}

func TestDebouncer_CollapsesBurst(t *testing.T) {
	var calls atomic.Int32
	d := newDebouncer(30*time.Millisecond, func() { calls.Add(1) })
	defer d.Stop()

	for i := 0; i < 10; i++ {
		d.Trigger()
		time.Sleep(2 * time.Millisecond)
	}
	time.Sleep(150 * time.Millisecond)

	if got := calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}

func TestDebouncer_StopCancelsPending(t *testing.T) {
	var calls atomic.Int32
	d := newDebouncer(20*time.Millisecond, func() { calls.Add(1) })

	d.Trigger()
	d.Stop()
	d.Trigger()
	time.Sleep(80 * time.Millisecond)

	if got := calls.Load(); got != 0 {
		t.Errorf("calls = %d, want 0 after Stop", got)
	}
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.txt")
	writeFile(t, path, "before\n")

	logger := slogutil.NewDiscardLogger()
	c := NewCached(path, logger)
	if _, err := c.Load(context.Background()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Watch(ctx, c, 20*time.Millisecond, logger) }()
	defer func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Watch returned %v", err)
		}
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	writeFile(t, path, "after\n")

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		s, _ := c.Load(context.Background())
		if s.Lines[0] == "after" {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("watcher did not reload the dataset")
}
