package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"arbitros/internal/assets"
	"arbitros/internal/records"
)

type storeCall struct {
	Op  string
	Arg string
}

// fakeObjects records every call and fails the operations named in fail.
type fakeObjects struct {
	mu      sync.Mutex
	calls   []storeCall
	objects []assets.Object
	fail    map[string]error
	next    int
	hook    func(op string)
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{fail: map[string]error{}}
}

func (f *fakeObjects) record(op, arg string) error {
	f.mu.Lock()
	f.calls = append(f.calls, storeCall{Op: op, Arg: arg})
	err := f.fail[op]
	hook := f.hook
	f.mu.Unlock()
	if hook != nil {
		hook(op)
	}
	return err
}

func (f *fakeObjects) Put(_ context.Context, data []byte, originalName, _ string) (string, error) {
	if err := f.record("put", originalName); err != nil {
		return "", &assets.StoreError{Op: assets.OpWrite, Err: err}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	key := fmt.Sprintf("new%03d%s", f.next, assets.Extension(originalName))
	f.objects = append(f.objects, assets.Object{Key: key, URL: testURL(key), Size: int64(len(data))})
	return testURL(key), nil
}

func (f *fakeObjects) Delete(_ context.Context, url string) error {
	key := assets.KeyFromURL(url)
	if err := f.record("delete", key); err != nil {
		return &assets.StoreError{Op: assets.OpDelete, Key: key, Err: err}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.objects[:0]
	for _, obj := range f.objects {
		if obj.Key != key {
			kept = append(kept, obj)
		}
	}
	f.objects = kept
	return nil
}

func (f *fakeObjects) List(context.Context) ([]assets.Object, error) {
	if err := f.record("list", ""); err != nil {
		return nil, &assets.StoreError{Op: assets.OpList, Err: err}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]assets.Object(nil), f.objects...), nil
}

func (f *fakeObjects) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

func (f *fakeObjects) callsOf(op string) []storeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []storeCall
	for _, c := range f.calls {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeObjects) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// fakeRecords is an in-memory upstream keyed by id.
type fakeRecords struct {
	mu      sync.Mutex
	recs    map[int64]records.Record
	updates []map[string]any
	gets    int
	fail    map[string]error
}

func newFakeRecords(recs ...records.Record) *fakeRecords {
	f := &fakeRecords{recs: map[int64]records.Record{}, fail: map[string]error{}}
	for _, r := range recs {
		f.recs[r.ID] = r
	}
	return f
}

func (f *fakeRecords) Get(_ context.Context, id int64) (records.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if err := f.fail["get"]; err != nil {
		return records.Record{}, err
	}
	rec, ok := f.recs[id]
	if !ok {
		return records.Record{}, &records.NotFoundError{ID: id}
	}
	return rec, nil
}

func (f *fakeRecords) Update(_ context.Context, id int64, fields map[string]any) (records.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, fields)
	if err := f.fail["update"]; err != nil {
		return records.Record{}, err
	}
	rec, ok := f.recs[id]
	if !ok {
		return records.Record{}, &records.NotFoundError{ID: id}
	}
	rec.Imagen = nil
	if v, ok := fields[records.AssetField].(string); ok {
		rec.Imagen = &v
	}
	f.recs[id] = rec
	return rec, nil
}

func (f *fakeRecords) Records(context.Context) ([]records.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail["records"]; err != nil {
		return nil, err
	}
	out := make([]records.Record, 0, len(f.recs))
	for _, r := range f.recs {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeRecords) record(id int64) records.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.recs[id]
}

func (f *fakeRecords) updateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.updates)
}

type capturingLogger struct {
	mu      sync.Mutex
	entries []string
}

func (l *capturingLogger) add(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, level+" "+msg)
}

func (l *capturingLogger) Debug(msg string, _ ...any) { l.add("DEBUG", msg) }
func (l *capturingLogger) Info(msg string, _ ...any)  { l.add("INFO", msg) }
func (l *capturingLogger) Warn(msg string, _ ...any)  { l.add("WARN", msg) }
func (l *capturingLogger) Error(msg string, _ ...any) { l.add("ERROR", msg) }

func (l *capturingLogger) has(prefix string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if strings.HasPrefix(e, prefix) {
			return true
		}
	}
	return false
}

type observation struct {
	Op      string
	Success bool
}

type recordingMetrics struct {
	mu       sync.Mutex
	observed []observation
	bytes    int
	cleanups int
}

func (m *recordingMetrics) Observe(_ context.Context, op string, success bool, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observed = append(m.observed, observation{Op: op, Success: success})
}

func (m *recordingMetrics) UploadedBytes(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bytes += n
}

func (m *recordingMetrics) CleanupFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleanups++
}

var errBoom = errors.New("boom")

func testURL(key string) string {
	return "https://bucket.s3.us-east-1.amazonaws.com/" + key
}

func strptr(s string) *string { return &s }

func pngUpload() Upload {
	return Upload{Data: []byte("\x89PNG fake"), OriginalName: "foto.png", MimeType: "image/png"}
}
