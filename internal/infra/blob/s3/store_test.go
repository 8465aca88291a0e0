package s3

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"arbitros/internal/blob/core"
)

func TestStore_MockedBasicFlow(t *testing.T) {
	store, mock := NewMockForTests("test-bucket")
	ctx := context.Background()
	info, err := store.Put(ctx, "abc.png", bytes.NewReader([]byte("hello")), core.PutOptions{ContentType: "image/png"})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Key != "abc.png" || info.ContentType != "image/png" || info.Size != 5 || info.ETag != "etag123" {
		t.Fatalf("unexpected info %#v", info)
	}
	if body, ct, ok := mock.Object("abc.png"); !ok || string(body) != "hello" || ct != "image/png" {
		t.Fatalf("stored object mismatch: %q %q %v", body, ct, ok)
	}
	if _, err := store.Put(ctx, "abc.png", bytes.NewReader([]byte("again")), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected duplicate put error, got %v", err)
	}
	list, err := store.List(ctx, "")
	if err != nil || len(list) != 1 || list[0].Size != 5 {
		t.Fatalf("list: %v %+v", err, list)
	}
	if ok, err := store.Delete(ctx, "abc.png"); err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
	if ok, err := store.Delete(ctx, "abc.png"); err != nil || !ok {
		t.Fatalf("repeat delete should succeed: %v %v", ok, err)
	}
	if len(mock.Keys()) != 0 {
		t.Fatalf("expected empty bucket, got %v", mock.Keys())
	}
}

func TestStore_ListPaginates(t *testing.T) {
	store, mock := NewMockForTests("bkt")
	mock.SetPageSize(1)
	ctx := context.Background()
	for _, k := range []string{"c.gif", "a.jpg", "b.png"} {
		if _, err := store.Put(ctx, k, bytes.NewReader([]byte(k)), core.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", k, err)
		}
	}
	list, err := store.List(ctx, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 || list[0].Key != "a.jpg" || list[2].Key != "c.gif" {
		t.Fatalf("unexpected listing %+v", list)
	}
	if empty, err := store.List(ctx, "zzz"); err != nil || len(empty) != 0 || empty == nil {
		t.Fatalf("expected empty non-nil list: %v %#v", err, empty)
	}
}

func TestStore_InjectedFailures(t *testing.T) {
	store, mock := NewMockForTests("bkt")
	ctx := context.Background()

	mock.Fail(http.MethodPut, http.StatusInternalServerError)
	if _, err := store.Put(ctx, "k.png", bytes.NewReader([]byte("x")), core.PutOptions{}); err == nil {
		t.Fatalf("expected put failure")
	}
	mock.Fail(http.MethodPut, 0)

	mock.Fail(http.MethodDelete, http.StatusForbidden)
	if _, err := store.Delete(ctx, "k.png"); err == nil {
		t.Fatalf("expected delete failure")
	}
	mock.Fail(http.MethodDelete, 0)

	mock.Fail(http.MethodGet, http.StatusInternalServerError)
	if _, err := store.List(ctx, ""); err == nil {
		t.Fatalf("expected list failure")
	}
	if mock.Calls(http.MethodGet) != 1 {
		t.Fatalf("expected a single list attempt, got %d", mock.Calls(http.MethodGet))
	}
}

func TestStore_PutIssuesSinglePutObject(t *testing.T) {
	store, mock := NewMockForTests("bkt")
	mock.Fail(http.MethodHead, http.StatusForbidden)
	info, err := store.Put(context.Background(), "w.png", bytes.NewReader([]byte("abc")), core.PutOptions{ContentType: "image/png"})
	if err != nil {
		t.Fatalf("put without head permission: %v", err)
	}
	if mock.Calls(http.MethodHead) != 0 || mock.Calls(http.MethodPut) != 1 {
		t.Fatalf("expected 1 PUT and no HEAD, got head=%d put=%d", mock.Calls(http.MethodHead), mock.Calls(http.MethodPut))
	}
	if info.Size != 3 || info.ETag != "etag123" || info.LastModified.IsZero() {
		t.Fatalf("info not built from put output: %#v", info)
	}
}

func TestStore_RequestTimeout(t *testing.T) {
	mock := newMock()
	mock.SetLatency(5 * time.Second)
	store, err := New(context.Background(), Config{
		Bucket: "bkt", Endpoint: "https://mock.s3.local", PathStyle: true,
		AccessKeyID: "AKIA", SecretAccessKey: "SECRET",
		Timeout: 50 * time.Millisecond, Transport: mock, MaxAttempts: 1,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	start := time.Now()
	if _, err := store.List(context.Background(), ""); err == nil {
		t.Fatalf("expected slow list to time out")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("list not bounded by timeout: %v", elapsed)
	}
}

func TestStore_Presign(t *testing.T) {
	store, _ := NewMockForTests("bkt")
	ctx := context.Background()
	u, err := store.PresignURL(ctx, "k.png", core.SignedURLOptions{})
	if err != nil {
		t.Fatalf("presign: %v", err)
	}
	if !strings.Contains(u, "X-Amz-Expires=3600") || !strings.Contains(u, "k.png") {
		t.Fatalf("unexpected presigned url %s", u)
	}
	u, err = store.PresignURL(ctx, "k.png", core.SignedURLOptions{Expiry: 30 * time.Second})
	if err != nil || !strings.Contains(u, "X-Amz-Expires=30") {
		t.Fatalf("presign custom: %v %s", err, u)
	}
	if _, err := store.PresignURL(ctx, "k", core.SignedURLOptions{Method: "PUT"}); !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("expected presign unsupported error, got %v", err)
	}
}

func TestNew(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected error for missing bucket")
	}
	s, err := New(context.Background(), Config{
		Bucket: "bkt", Endpoint: "https://minio.local", PathStyle: true,
		AccessKeyID: "AKIA", SecretAccessKey: "SECRET", SessionToken: "TOKEN",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s.Driver() != core.DriverS3 || s.Bucket() != "bkt" {
		t.Fatalf("unexpected store identity")
	}
}

func TestDecodeChunkedLite(t *testing.T) {
	if _, ok := decodeChunkedLite([]byte("not-chunked")); ok {
		t.Fatalf("expected fail")
	}
	if _, ok := decodeChunkedLite([]byte("5\r\nabc\r\n0\r\n")); ok {
		t.Fatalf("size mismatch should fail")
	}
	if b, ok := decodeChunkedLite([]byte("5\r\nhello\r\n0\r\n")); !ok || string(b) != "hello" {
		t.Fatalf("expected decode hello")
	}
}

func TestMockUnsupportedMethod(t *testing.T) {
	_, mock := NewMockForTests("bkt")
	req, _ := http.NewRequest(http.MethodPatch, "https://mock.s3.local/bkt/key", nil)
	resp, _ := mock.RoundTrip(req)
	if resp.StatusCode != http.StatusNotImplemented {
		t.Fatalf("expected 501, got %d", resp.StatusCode)
	}
}
