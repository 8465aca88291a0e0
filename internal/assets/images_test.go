package assets

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"testing"
	"time"

	"arbitros/internal/blob"
)

var keyPattern = regexp.MustCompile(`^[0-9a-f]{32}\.png$`)

func TestPutGeneratesFreshKeyAndPublicURL(t *testing.T) {
	store := blob.NewMemory("bkt")
	images := New(store, "us-east-1")
	ctx := context.Background()

	u1, err := images.Put(ctx, []byte("png-1"), "Mi Foto.PNG", "image/png")
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	u2, err := images.Put(ctx, []byte("png-2"), "Mi Foto.PNG", "image/png")
	if err != nil {
		t.Fatalf("put second: %v", err)
	}
	if u1 == u2 {
		t.Fatalf("expected distinct keys for repeated uploads")
	}
	const prefix = "https://bkt.s3.us-east-1.amazonaws.com/"
	if !strings.HasPrefix(u1, prefix) {
		t.Fatalf("unexpected url %s", u1)
	}
	key := strings.TrimPrefix(u1, prefix)
	if !keyPattern.MatchString(key) {
		t.Fatalf("key %q does not look generated", key)
	}
	if strings.Contains(u1, "Foto") {
		t.Fatalf("original name leaked into url %s", u1)
	}
	if b, ok := store.Bytes(key); !ok || string(b) != "png-1" {
		t.Fatalf("payload not stored under %s", key)
	}
}

func TestPutUsesInjectedRandomAndBaseURL(t *testing.T) {
	store := blob.NewMemory("bkt")
	seed := bytes.Repeat([]byte{0xab}, 16)
	images := New(store, "eu-west-1", WithRandom(bytes.NewReader(seed)), WithPublicBaseURL("http://localhost:9000/bkt/"))
	u, err := images.Put(context.Background(), []byte("x"), "a.jpeg", "image/jpeg")
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	want := "http://localhost:9000/bkt/" + strings.Repeat("ab", 16) + ".jpeg"
	if u != want {
		t.Fatalf("url = %s, want %s", u, want)
	}
	// the seed is exhausted, so key generation must fail as a write error
	if _, err := images.Put(context.Background(), []byte("x"), "a.jpeg", "image/jpeg"); !IsOp(err, OpWrite) {
		t.Fatalf("expected write error, got %v", err)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	store := blob.NewMemory("bkt")
	images := New(store, "")
	ctx := context.Background()
	u, err := images.Put(ctx, []byte("gif"), "x.gif", "image/gif")
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := images.Delete(ctx, u); err != nil {
			t.Fatalf("delete #%d: %v", i+1, err)
		}
	}
	if err := images.Delete(ctx, ""); !IsOp(err, OpDelete) {
		t.Fatalf("expected delete error for empty url, got %v", err)
	}
}

func TestListReportsObjects(t *testing.T) {
	store := blob.NewMemory("bkt")
	images := New(store, "us-east-2")
	ctx := context.Background()
	list, err := images.List(ctx)
	if err != nil || list == nil || len(list) != 0 {
		t.Fatalf("expected empty list, got %v %#v", err, list)
	}
	if _, err := images.Put(ctx, make([]byte, 2048), "big.webp", "image/webp"); err != nil {
		t.Fatalf("put: %v", err)
	}
	list, err = images.List(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("list: %v %+v", err, list)
	}
	obj := list[0]
	if obj.Size != 2048 || obj.SizeKB != "2.00" || obj.URL != images.URLFor(obj.Key) {
		t.Fatalf("unexpected object %+v", obj)
	}
}

func TestS3BackedFailuresAreAttributed(t *testing.T) {
	store, mock := blob.NewMockS3ForTests("bkt")
	images := New(store, "us-east-1")
	ctx := context.Background()

	mock.Fail(http.MethodPut, http.StatusInternalServerError)
	if _, err := images.Put(ctx, []byte("x"), "a.png", "image/png"); !IsOp(err, OpWrite) {
		t.Fatalf("expected write error, got %v", err)
	}
	mock.Fail(http.MethodPut, 0)

	mock.Fail(http.MethodDelete, http.StatusInternalServerError)
	if err := images.Delete(ctx, "https://bkt.s3.us-east-1.amazonaws.com/aaa111.jpg"); !IsOp(err, OpDelete) {
		t.Fatalf("expected delete error, got %v", err)
	}
	mock.Fail(http.MethodDelete, 0)

	mock.Fail(http.MethodGet, http.StatusInternalServerError)
	if _, err := images.List(ctx); !IsOp(err, OpList) {
		t.Fatalf("expected list error, got %v", err)
	}
	var se *StoreError
	_, err := images.List(ctx)
	if !errors.As(err, &se) || se.Err == nil || !strings.Contains(se.Error(), "object store list") {
		t.Fatalf("unexpected error shape %v", err)
	}
}

func TestS3BackedPutAndPresign(t *testing.T) {
	store, mock := blob.NewMockS3ForTests("bkt")
	images := New(store, "us-east-1")
	ctx := context.Background()
	u, err := images.Put(ctx, []byte("jpeg"), "foto.jpg", "image/jpeg")
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	key := KeyFromURL(u)
	if _, ct, ok := mock.Object(key); !ok || ct != "image/jpeg" {
		t.Fatalf("object %s missing or wrong type %q", key, ct)
	}
	signed, err := images.Presign(ctx, key, 0)
	if err != nil || !strings.Contains(signed, "X-Amz-Expires=3600") {
		t.Fatalf("presign: %v %s", err, signed)
	}
	signed, err = images.Presign(ctx, key, 10*time.Minute)
	if err != nil || !strings.Contains(signed, "X-Amz-Expires=600") {
		t.Fatalf("presign custom: %v %s", err, signed)
	}
}

func TestKeyFromURL(t *testing.T) {
	cases := map[string]string{
		"https://bkt.s3.us-east-1.amazonaws.com/aaa111.jpg": "aaa111.jpg",
		"https://bkt.s3.us-east-1.amazonaws.com/aaa111.jpg?x=1": "aaa111.jpg",
		"aaa111.jpg":      "aaa111.jpg",
		"http://host/a/b": "b",
		"":                "",
		"https://host/":   "",
	}
	for in, want := range cases {
		if got := KeyFromURL(in); got != want {
			t.Errorf("KeyFromURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestExtension(t *testing.T) {
	cases := map[string]string{
		"a.PNG":           ".png",
		"noext":           "",
		"../../etc/x.jpg": ".jpg",
		"weird.j/pg":      "",
		"evil.p%2Fng":     ".p2fng",
		"dot.":            "",
	}
	for in, want := range cases {
		if got := Extension(in); got != want {
			t.Errorf("Extension(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMimeRules(t *testing.T) {
	for _, ok := range []string{"image/jpeg", "image/png", "IMAGE/GIF", "image/webp"} {
		if !AllowedMimeType(ok) {
			t.Errorf("expected %s allowed", ok)
		}
	}
	for _, bad := range []string{"application/pdf", "image/jpg", "", "image/svg+xml"} {
		if AllowedMimeType(bad) {
			t.Errorf("expected %s rejected", bad)
		}
	}
	if NormalizeMimeType("image/JPG; charset=binary") != "image/jpeg" {
		t.Fatalf("expected jpg alias normalised")
	}
}
